package session

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taoyao-code/netfront/internal/network"
)

type sentReply struct {
	address string
	port    int
	payload []byte
}

type replyIface struct {
	sent []sentReply
}

func (f *replyIface) Start() error                      { return nil }
func (f *replyIface) Shutdown() error                   { return nil }
func (f *replyIface) Tick()                             {}
func (f *replyIface) SetName(string)                    {}
func (f *replyIface) SetLanName(string)                 {}
func (f *replyIface) BlockAddress(string, int)          {}
func (f *replyIface) UnblockAddress(string)             {}
func (f *replyIface) AddRawPacketFilter(*regexp.Regexp) {}
func (f *replyIface) SendRawPacket(address string, port int, payload []byte) error {
	f.sent = append(f.sent, sentReply{address, port, payload})
	return nil
}

func TestOpenHandler(t *testing.T) {
	t.Run("建立会话并回复", func(t *testing.T) {
		m := New(time.Minute)
		h := NewOpenHandler(m, nil)
		src := &replyIface{}

		ok, err := h.Handle(src, "1.2.3.4", 5000, []byte{OpenRequest, ProtocolVersion})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, m.Has("1.2.3.4", 5000))
		require.Len(t, src.sent, 1)
		assert.Equal(t, []byte{OpenReply, 0x01}, src.sent[0].payload)
	})

	t.Run("版本不匹配", func(t *testing.T) {
		m := New(time.Minute)
		h := NewOpenHandler(m, nil)
		src := &replyIface{}

		ok, err := h.Handle(src, "1.2.3.4", 5000, []byte{OpenRequest, 0x7F})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, m.Count())
		assert.Equal(t, []byte{OpenReply, 0x00}, src.sent[0].payload)
	})

	t.Run("报文过短视为坏包", func(t *testing.T) {
		h := NewOpenHandler(New(time.Minute), nil)
		_, err := h.Handle(&replyIface{}, "1.2.3.4", 5000, []byte{OpenRequest})
		assert.True(t, errors.Is(err, network.ErrBadPacket))
	})

	t.Run("匹配规则", func(t *testing.T) {
		h := NewOpenHandler(New(time.Minute), nil)
		assert.True(t, network.MatchPayload(h.Pattern(), []byte{0x05, 0x01}))
		assert.False(t, network.MatchPayload(h.Pattern(), []byte{0x06}))
	})
}
