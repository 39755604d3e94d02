package session

import (
	"net"
	"strconv"
	"time"
)

// SessionManager 会话管理器接口，支持内存和Redis两种实现
// 会话以 (地址, 端口) 标识，由握手处理器建立，由接口在收到报文时刷新。
type SessionManager interface {
	// Open 建立会话，已存在时仅刷新并返回 false
	Open(address string, port int, now time.Time) bool

	// Touch 刷新已存在的会话，不存在返回 false
	Touch(address string, port int, now time.Time) bool

	// Close 关闭会话，不存在时无操作
	Close(address string, port int)

	// Has 会话是否存在
	Has(address string, port int) bool

	// Tick 由注册表周期驱动，清理空闲超时的会话
	Tick(now time.Time)

	// Count 当前会话数
	Count() int
}

// Key 会话键 host:port
func Key(address string, port int) string {
	return net.JoinHostPort(address, strconv.Itoa(port))
}
