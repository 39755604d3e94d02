// Package network 维护可插拔网络接口注册表，并负责原始报文（raw packet）的分发。
//
// Registry 是组合根：持有 BanList 与 HandlerTable，在状态变化或新的高级接口加入时
// 把封禁条目、报文过滤规则以及名称同步到各接口。原始报文由接口的 I/O 协程经
// HandleRawPacket 送入 Dispatcher。
package network

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// NetworkInterface 基础网络接口能力
// 实现必须是可比较的（通常为指针类型），注册表以值相等判断是否重复注册。
type NetworkInterface interface {
	Start() error
	Shutdown() error
	Tick()
	SetName(name string)
	SetLanName(name string)
}

// AdvancedNetworkInterface 支持原始数据报收发、地址封禁与过滤规则的高级接口
// timeoutSeconds <= 0 表示永久封禁。
type AdvancedNetworkInterface interface {
	NetworkInterface
	SendRawPacket(address string, port int, payload []byte) error
	BlockAddress(address string, timeoutSeconds int)
	UnblockAddress(address string)
	AddRawPacketFilter(pattern *regexp.Regexp)
}

// CombinedNameSetter 需要一次性同时更新名称与局域网名称的接口能力。
// 声明该能力的接口不会收到单独的 SetName/SetLanName 调用。
type CombinedNameSetter interface {
	SetNames(name, lanName string)
}

// InterfaceID 注册时签发的不透明句柄
type InterfaceID = uuid.UUID

// Hooks 接口生命周期外部钩子
type Hooks struct {
	// Approve 在 Start 之前同步调用，返回 false 表示否决注册；nil 视为允许
	Approve func(iface NetworkInterface) bool
	// Removed 注销时通知（不可取消）
	Removed func(iface NetworkInterface)
}

// SessionManager 会话管理协作方：每次注册表 Tick 驱动一次
type SessionManager interface {
	Tick(now time.Time)
	Count() int
}

// SessionInstance 多实例共享会话时，本实例的标识与本地会话数（可选能力）
type SessionInstance interface {
	ServerID() string
	LocalCount() int
}

// RawPacketSink 原始报文入口，由高级接口的 I/O 协程调用，可并发
type RawPacketSink interface {
	HandleRawPacket(source AdvancedNetworkInterface, address string, port int, payload []byte)
}
