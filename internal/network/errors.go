package network

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownInterface 注销未注册（或已注销）的接口
	ErrUnknownInterface = errors.New("unknown network interface")
	// ErrAlreadyRegistered 同一接口未注销前重复注册
	ErrAlreadyRegistered = errors.New("network interface already registered")
	// ErrRegistrationVetoed 注册被外部钩子否决
	ErrRegistrationVetoed = errors.New("network interface registration vetoed")
	// ErrStartFailed 接口启动失败，未加入注册表
	ErrStartFailed = errors.New("network interface failed to start")
	// ErrBadPacket 处理器判定报文畸形或恶意，触发来源地址隔离
	ErrBadPacket = errors.New("bad packet")
)

// BadPacket 构造一个可被 errors.Is(err, ErrBadPacket) 识别的处理失败
func BadPacket(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadPacket, fmt.Sprintf(format, args...))
}
