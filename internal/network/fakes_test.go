package network

import (
	"errors"
	"regexp"
	"sync"
	"time"
)

// basicIface 记录调用的基础接口
type basicIface struct {
	mu        sync.Mutex
	startErr  error
	started   int
	shutdowns int
	ticks     int
	names     []string
	lanNames  []string
	tickLog   *[]string
	label     string
}

func (b *basicIface) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	b.started++
	return nil
}

func (b *basicIface) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdowns++
	return nil
}

func (b *basicIface) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ticks++
	if b.tickLog != nil {
		*b.tickLog = append(*b.tickLog, b.label)
	}
}

func (b *basicIface) SetName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names = append(b.names, name)
}

func (b *basicIface) SetLanName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lanNames = append(b.lanNames, name)
}

func (b *basicIface) lastNames() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n, l string
	if len(b.names) > 0 {
		n = b.names[len(b.names)-1]
	}
	if len(b.lanNames) > 0 {
		l = b.lanNames[len(b.lanNames)-1]
	}
	return n, l
}

type blockCall struct {
	address string
	timeout int
}

type sentPacket struct {
	address string
	port    int
	payload []byte
}

// advIface 记录调用的高级接口
type advIface struct {
	basicIface
	sendErr  error
	blocks   []blockCall
	unblocks []string
	filters  []*regexp.Regexp
	sent     []sentPacket
}

func (a *advIface) SendRawPacket(address string, port int, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	a.sent = append(a.sent, sentPacket{address: address, port: port, payload: payload})
	return nil
}

func (a *advIface) BlockAddress(address string, timeoutSeconds int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blocks = append(a.blocks, blockCall{address: address, timeout: timeoutSeconds})
}

func (a *advIface) UnblockAddress(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unblocks = append(a.unblocks, address)
}

func (a *advIface) AddRawPacketFilter(pattern *regexp.Regexp) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filters = append(a.filters, pattern)
}

func (a *advIface) blockCalls() []blockCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]blockCall, len(a.blocks))
	copy(out, a.blocks)
	return out
}

func (a *advIface) filterCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.filters)
}

// combinedIface 声明合并名称更新能力的高级接口
type combinedIface struct {
	advIface
	pairs [][2]string
}

func (c *combinedIface) SetNames(name, lanName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = append(c.pairs, [2]string{name, lanName})
}

// recordingHandler 记录被调用次数的处理器
type recordingHandler struct {
	mu      sync.Mutex
	pattern *regexp.Regexp
	result  bool
	err     error
	calls   int
	order   *[]string
	label   string
}

func newRecordingHandler(label, expr string, result bool, err error) *recordingHandler {
	return &recordingHandler{label: label, pattern: regexp.MustCompile(expr), result: result, err: err}
}

func (h *recordingHandler) Pattern() *regexp.Regexp { return h.pattern }

func (h *recordingHandler) Handle(AdvancedNetworkInterface, string, int, []byte) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.order != nil {
		*h.order = append(*h.order, h.label)
	}
	return h.result, h.err
}

func (h *recordingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// fakeSessions 会话管理器替身
type fakeSessions struct {
	ticks int
	count int
	log   *[]string
}

func (s *fakeSessions) Tick(time.Time) {
	s.ticks++
	if s.log != nil {
		*s.log = append(*s.log, "sessions")
	}
}

func (s *fakeSessions) Count() int { return s.count }

// instanceSessions 带实例信息的会话管理器替身
type instanceSessions struct {
	fakeSessions
	serverID string
	local    int
}

func (s *instanceSessions) ServerID() string { return s.serverID }
func (s *instanceSessions) LocalCount() int  { return s.local }

var errBoom = errors.New("boom")
