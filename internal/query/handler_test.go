package query

import (
	"encoding/binary"
	"errors"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taoyao-code/netfront/internal/network"
)

type staticSource struct{}

func (staticSource) Name() string      { return "Lobby" }
func (staticSource) LanName() string   { return "LAN Lobby" }
func (staticSource) SessionCount() int { return 3 }

type captureIface struct {
	replies [][]byte
}

func (c *captureIface) Start() error                      { return nil }
func (c *captureIface) Shutdown() error                   { return nil }
func (c *captureIface) Tick()                             {}
func (c *captureIface) SetName(string)                    {}
func (c *captureIface) SetLanName(string)                 {}
func (c *captureIface) BlockAddress(string, int)          {}
func (c *captureIface) UnblockAddress(string)             {}
func (c *captureIface) AddRawPacketFilter(*regexp.Regexp) {}
func (c *captureIface) SendRawPacket(_ string, _ int, payload []byte) error {
	c.replies = append(c.replies, payload)
	return nil
}

func TestHandler_HandshakeThenStat(t *testing.T) {
	h := NewHandler(staticSource{}, "secret", nil)
	src := &captureIface{}
	session := []byte{0, 0, 0, 7}

	ok, err := h.Handle(src, "1.2.3.4", 5000, append([]byte{0xFE, 0xFD, TypeHandshake}, session...))
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, src.replies, 1)

	reply := src.replies[0]
	assert.Equal(t, TypeHandshake, reply[0])
	assert.Equal(t, session, reply[1:5])
	tokenText := string(reply[5 : len(reply)-1])
	parsed, err := strconv.ParseInt(tokenText, 10, 32)
	require.NoError(t, err)
	assert.Equal(t, h.Token("1.2.3.4"), uint32(int32(parsed)))

	stat := append([]byte{0xFE, 0xFD, TypeStat}, session...)
	stat = binary.BigEndian.AppendUint32(stat, h.Token("1.2.3.4"))
	ok, err = h.Handle(src, "1.2.3.4", 5000, stat)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, src.replies, 2)
	assert.Equal(t, append(append([]byte{TypeStat}, session...), "Lobby\x00LAN Lobby\x003\x00"...), src.replies[1])
}

func TestHandler_Errors(t *testing.T) {
	h := NewHandler(staticSource{}, "secret", nil)

	t.Run("报文过短", func(t *testing.T) {
		_, err := h.Handle(&captureIface{}, "1.2.3.4", 1, []byte{0xFE, 0xFD, 0x09})
		assert.True(t, errors.Is(err, network.ErrBadPacket))
	})

	t.Run("token错误不回复", func(t *testing.T) {
		src := &captureIface{}
		stat := []byte{0xFE, 0xFD, TypeStat, 0, 0, 0, 1, 0, 0, 0, 0}
		if h.Token("1.2.3.4") == 0 {
			stat[10] = 1
		}
		ok, err := h.Handle(src, "1.2.3.4", 1, stat)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, src.replies)
	})

	t.Run("未知类型", func(t *testing.T) {
		ok, err := h.Handle(&captureIface{}, "1.2.3.4", 1, []byte{0xFE, 0xFD, 0x42, 0, 0, 0, 1})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("token与地址相关", func(t *testing.T) {
		other := NewHandler(staticSource{}, "other-secret", nil)
		assert.NotEqual(t, h.Token("1.2.3.4"), other.Token("1.2.3.4"))
		assert.Equal(t, h.Token("1.2.3.4"), h.Token("1.2.3.4"))
	})
}

func TestHandler_PatternMatchesHighBytes(t *testing.T) {
	h := NewHandler(staticSource{}, "", nil)
	assert.True(t, network.MatchPayload(h.Pattern(), []byte{0xFE, 0xFD, 0x00}))
	assert.False(t, network.MatchPayload(h.Pattern(), []byte{0xFD, 0xFE}))
}
