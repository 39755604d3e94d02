package session

import (
	"regexp"
	"time"

	"github.com/taoyao-code/netfront/internal/network"
	"go.uber.org/zap"
)

// 会话握手报文
const (
	OpenRequest     byte = 0x05
	OpenReply       byte = 0x06
	CloseRequest    byte = 0x15
	ProtocolVersion byte = 0x01
)

var openPattern = regexp.MustCompile(`^\x05`)

// Opener 握手处理器所需的会话能力
type Opener interface {
	Open(address string, port int, now time.Time) bool
}

// OpenHandler 处理会话握手：0x05 <version>
// 版本一致时建立会话并回复 0x06 0x01，否则回复 0x06 0x00。
type OpenHandler struct {
	sessions Opener
	now      func() time.Time
	logger   *zap.Logger
}

func NewOpenHandler(sessions Opener, logger *zap.Logger) *OpenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenHandler{sessions: sessions, now: time.Now, logger: logger}
}

func (h *OpenHandler) Pattern() *regexp.Regexp { return openPattern }

func (h *OpenHandler) Handle(source network.AdvancedNetworkInterface, address string, port int, payload []byte) (bool, error) {
	if len(payload) < 2 {
		return false, network.BadPacket("open request too short: %d bytes", len(payload))
	}
	if payload[1] != ProtocolVersion {
		h.logger.Debug("open request version mismatch",
			zap.String("address", address), zap.Int("port", port), zap.Uint8("version", payload[1]))
		h.reply(source, address, port, 0x00)
		return true, nil
	}
	if h.sessions.Open(address, port, h.now()) {
		h.logger.Info("session opened", zap.String("address", address), zap.Int("port", port))
	}
	h.reply(source, address, port, 0x01)
	return true, nil
}

func (h *OpenHandler) reply(source network.AdvancedNetworkInterface, address string, port int, status byte) {
	if source == nil {
		return
	}
	if err := source.SendRawPacket(address, port, []byte{OpenReply, status}); err != nil {
		h.logger.Warn("send open reply failed", zap.String("address", address), zap.Error(err))
	}
}
