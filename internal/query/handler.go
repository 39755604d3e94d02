// Package query 应答 0xFE 0xFD 前缀的状态查询报文。
//
// 报文格式：FE FD <type:1> <session:4> [<token:4>]
//   - type 0x09 握手：回复 09 <session> <token 十进制 ASCII> 00
//   - type 0x00 状态：token 校验通过后回复 00 <session> name 00 lanName 00 sessions 00
//
// token 由地址经 HMAC-SHA256 派生，客户端无需在服务端保存状态。
package query

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/taoyao-code/netfront/internal/network"
	"go.uber.org/zap"
)

// 查询类型
const (
	TypeStat      byte = 0x00
	TypeHandshake byte = 0x09
)

const minPacketLen = 7

var queryPattern = regexp.MustCompile(`^\xFE\xFD`)

// StatusSource 状态数据来源，通常是 network.Registry
type StatusSource interface {
	Name() string
	LanName() string
	SessionCount() int
}

// Handler 状态查询处理器
type Handler struct {
	source StatusSource
	secret []byte
	logger *zap.Logger
}

// NewHandler secret 为空时随机生成（仅本进程有效）
func NewHandler(source StatusSource, secret string, logger *zap.Logger) *Handler {
	if secret == "" {
		secret = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, secret: []byte(secret), logger: logger}
}

func (h *Handler) Pattern() *regexp.Regexp { return queryPattern }

func (h *Handler) Handle(src network.AdvancedNetworkInterface, address string, port int, payload []byte) (bool, error) {
	if len(payload) < minPacketLen {
		return false, network.BadPacket("query packet too short: %d bytes", len(payload))
	}
	kind := payload[2]
	session := payload[3:7]

	switch kind {
	case TypeHandshake:
		token := h.Token(address)
		var reply bytes.Buffer
		reply.WriteByte(TypeHandshake)
		reply.Write(session)
		reply.WriteString(strconv.FormatInt(int64(int32(token)), 10))
		reply.WriteByte(0)
		h.send(src, address, port, reply.Bytes())
		return true, nil

	case TypeStat:
		if len(payload) < minPacketLen+4 {
			return false, network.BadPacket("stat query without token")
		}
		if binary.BigEndian.Uint32(payload[7:11]) != h.Token(address) {
			h.logger.Debug("query token mismatch", zap.String("address", address), zap.Int("port", port))
			return true, nil
		}
		var reply bytes.Buffer
		reply.WriteByte(TypeStat)
		reply.Write(session)
		for _, field := range []string{h.source.Name(), h.source.LanName(), strconv.Itoa(h.source.SessionCount())} {
			reply.WriteString(field)
			reply.WriteByte(0)
		}
		h.send(src, address, port, reply.Bytes())
		return true, nil
	}
	return false, nil
}

// Token 根据地址派生挑战值
func (h *Handler) Token(address string) uint32 {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(address))
	return binary.BigEndian.Uint32(mac.Sum(nil)[:4])
}

func (h *Handler) send(src network.AdvancedNetworkInterface, address string, port int, payload []byte) {
	if src == nil {
		return
	}
	if err := src.SendRawPacket(address, port, payload); err != nil {
		h.logger.Warn("send query reply failed", zap.String("address", address), zap.Int("port", port), zap.Error(err))
	}
}
