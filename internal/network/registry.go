package network

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taoyao-code/netfront/internal/metrics"
	"go.uber.org/zap"
)

// Config 注册表初始广播状态
type Config struct {
	Name    string
	LanName string // 为空表示未设置，读取时回退到 DefaultLanName
	// DefaultLanName 服务级默认局域网名称
	DefaultLanName string
}

type record struct {
	id       InterfaceID
	iface    NetworkInterface
	adv      AdvancedNetworkInterface // 非高级接口为 nil
	combined CombinedNameSetter       // 需要合并更新名称的接口
}

// Registry 网络接口注册表
//
// 注册、注销、名称、封禁与处理器变更以及 Tick 只能由单一属主协程调用；
// HandleRawPacket 与只读查询可由任意协程并发调用。
type Registry struct {
	mu             sync.RWMutex // 保护 name/lanName/records
	name           string
	lanName        string
	defaultLanName string
	records        []*record

	bans       *BanList
	handlers   *HandlerTable
	dispatcher *Dispatcher

	hooks    Hooks
	sessions SessionManager
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.AppMetrics
}

// New 创建注册表，logger/metrics 可为 nil
func New(cfg Config, logger *zap.Logger, m *metrics.AppMetrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	bans := NewBanList()
	handlers := NewHandlerTable()
	r := &Registry{
		name:           cfg.Name,
		lanName:        cfg.LanName,
		defaultLanName: cfg.DefaultLanName,
		bans:           bans,
		handlers:       handlers,
		dispatcher:     NewDispatcher(bans, handlers, logger.Named("dispatch"), m),
		now:            time.Now,
		logger:         logger,
		metrics:        m,
	}
	r.dispatcher.SetQuarantineHook(r.pushBlock)
	return r
}

// SetHooks 设置生命周期钩子
func (r *Registry) SetHooks(h Hooks) { r.hooks = h }

// SetSessionManager 设置会话管理器，每次 Tick 时驱动
func (r *Registry) SetSessionManager(s SessionManager) { r.sessions = s }

// SetClock 替换时钟（测试使用）
func (r *Registry) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// ========== 接口生命周期 ==========

// RegisterInterface 注册并启动接口
// 同一接口未注销前再次注册返回 ErrAlreadyRegistered；钩子否决返回 ErrRegistrationVetoed；
// Start 失败返回包装了 ErrStartFailed 的错误，接口不会加入任何集合。
func (r *Registry) RegisterInterface(iface NetworkInterface) (InterfaceID, error) {
	if r.find(iface) != nil {
		return uuid.Nil, ErrAlreadyRegistered
	}
	if r.hooks.Approve != nil && !r.hooks.Approve(iface) {
		r.logger.Info("network interface registration vetoed", zap.String("type", fmt.Sprintf("%T", iface)))
		return uuid.Nil, ErrRegistrationVetoed
	}
	if err := iface.Start(); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	rec := &record{id: uuid.New(), iface: iface}
	rec.adv, _ = iface.(AdvancedNetworkInterface)
	rec.combined, _ = iface.(CombinedNameSetter)

	r.mu.Lock()
	r.records = append(r.records, rec)
	name, lanName := r.name, r.resolvedLanName()
	r.mu.Unlock()

	if rec.adv != nil {
		now := r.now()
		for _, e := range r.bans.Entries(now) {
			rec.adv.BlockAddress(e.Address, e.RemainingSeconds(now))
		}
		for _, p := range r.handlers.Patterns() {
			rec.adv.AddRawPacketFilter(p)
		}
	}
	rec.pushNames(name, lanName)
	r.updateInterfaceGauge()

	r.logger.Info("network interface registered",
		zap.String("id", rec.id.String()),
		zap.String("type", fmt.Sprintf("%T", iface)),
		zap.Bool("advanced", rec.adv != nil),
	)
	return rec.id, nil
}

// UnregisterInterface 注销并关闭接口，未注册时返回 ErrUnknownInterface
func (r *Registry) UnregisterInterface(iface NetworkInterface) error {
	rec := r.find(iface)
	if rec == nil {
		return ErrUnknownInterface
	}
	return r.unregister(rec)
}

// UnregisterByID 按句柄注销接口
func (r *Registry) UnregisterByID(id InterfaceID) error {
	r.mu.RLock()
	var rec *record
	for _, e := range r.records {
		if e.id == id {
			rec = e
			break
		}
	}
	r.mu.RUnlock()
	if rec == nil {
		return ErrUnknownInterface
	}
	return r.unregister(rec)
}

func (r *Registry) unregister(rec *record) error {
	if r.hooks.Removed != nil {
		r.hooks.Removed(rec.iface)
	}

	r.mu.Lock()
	for i, e := range r.records {
		if e == rec {
			r.records = append(r.records[:i:i], r.records[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if err := rec.iface.Shutdown(); err != nil {
		r.logger.Warn("network interface shutdown failed",
			zap.String("id", rec.id.String()),
			zap.Error(err),
		)
	}
	r.updateInterfaceGauge()
	r.logger.Info("network interface unregistered", zap.String("id", rec.id.String()))
	return nil
}

func (r *Registry) find(iface NetworkInterface) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.records {
		if e.iface == iface {
			return e
		}
	}
	return nil
}

// Lookup 按句柄查找接口
func (r *Registry) Lookup(id InterfaceID) (NetworkInterface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.records {
		if e.id == id {
			return e.iface, true
		}
	}
	return nil, false
}

// Interfaces 按注册顺序返回所有接口
func (r *Registry) Interfaces() []NetworkInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NetworkInterface, 0, len(r.records))
	for _, e := range r.records {
		out = append(out, e.iface)
	}
	return out
}

// AdvancedInterfaces 按注册顺序返回高级接口
func (r *Registry) AdvancedInterfaces() []AdvancedNetworkInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []AdvancedNetworkInterface
	for _, e := range r.records {
		if e.adv != nil {
			out = append(out, e.adv)
		}
	}
	return out
}

func (r *Registry) snapshotRecords() []*record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*record, len(r.records))
	copy(out, r.records)
	return out
}

// ========== 名称广播 ==========

// Name 当前名称
func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// LanName 当前局域网名称，未设置时返回默认值
func (r *Registry) LanName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolvedLanName()
}

func (r *Registry) resolvedLanName() string {
	if r.lanName == "" {
		return r.defaultLanName
	}
	return r.lanName
}

// SetName 更新名称并推送到所有接口
func (r *Registry) SetName(name string) {
	r.mu.Lock()
	r.name = name
	lanName := r.resolvedLanName()
	r.mu.Unlock()

	for _, rec := range r.snapshotRecords() {
		if rec.combined != nil {
			rec.combined.SetNames(name, lanName)
			continue
		}
		rec.iface.SetName(name)
	}
}

// SetLanName 更新局域网名称并推送；空字符串恢复为默认值
func (r *Registry) SetLanName(lanName string) {
	r.mu.Lock()
	r.lanName = lanName
	name, resolved := r.name, r.resolvedLanName()
	r.mu.Unlock()

	for _, rec := range r.snapshotRecords() {
		if rec.combined != nil {
			rec.combined.SetNames(name, resolved)
			continue
		}
		rec.iface.SetLanName(resolved)
	}
}

// SetNames 同一次请求中同时更新名称与局域网名称，每个接口只推送一次
func (r *Registry) SetNames(name, lanName string) {
	r.mu.Lock()
	r.name = name
	r.lanName = lanName
	resolved := r.resolvedLanName()
	r.mu.Unlock()

	for _, rec := range r.snapshotRecords() {
		rec.pushNames(name, resolved)
	}
}

func (rec *record) pushNames(name, lanName string) {
	if rec.combined != nil {
		rec.combined.SetNames(name, lanName)
		return
	}
	rec.iface.SetName(name)
	rec.iface.SetLanName(lanName)
}

// ========== 封禁 ==========

// BlockAddress 封禁地址并把该条目推送到所有高级接口；timeoutSeconds <= 0 为永久封禁
func (r *Registry) BlockAddress(address string, timeoutSeconds int) {
	entry := r.bans.Block(address, timeoutSeconds, r.now())
	r.pushBlock(address, timeoutSeconds)
	r.logger.Info("address blocked",
		zap.String("address", address),
		zap.Int("timeout_seconds", timeoutSeconds),
		zap.Bool("permanent", entry.Permanent()),
	)
}

// pushBlock 把单个封禁条目推送到所有高级接口；也会被分发协程在隔离时调用
func (r *Registry) pushBlock(address string, timeoutSeconds int) {
	for _, rec := range r.snapshotRecords() {
		if rec.adv != nil {
			rec.adv.BlockAddress(address, timeoutSeconds)
		}
	}
	r.updateBanGauge()
}

// UnblockAddress 解除封禁并推送到所有高级接口
func (r *Registry) UnblockAddress(address string) {
	r.bans.Unblock(address)
	for _, rec := range r.snapshotRecords() {
		if rec.adv != nil {
			rec.adv.UnblockAddress(address)
		}
	}
	r.updateBanGauge()
	r.logger.Info("address unblocked", zap.String("address", address))
}

// IsBanned 地址当前是否被封禁
func (r *Registry) IsBanned(address string) bool {
	return r.bans.IsBanned(address, r.now())
}

// BannedAddresses 当前未过期的封禁条目，按地址排序
func (r *Registry) BannedAddresses() []BanEntry {
	entries := r.bans.Entries(r.now())
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
	return entries
}

// CompactBans 清理过期封禁条目
func (r *Registry) CompactBans() int {
	n := r.bans.Compact(r.now())
	if n > 0 {
		r.updateBanGauge()
		r.logger.Debug("expired bans compacted", zap.Int("removed", n))
	}
	return n
}

// ========== 原始报文 ==========

// RegisterRawPacketHandler 注册处理器，新增时把其匹配规则推送到所有高级接口
func (r *Registry) RegisterRawPacketHandler(h RawPacketHandler) bool {
	pattern, added := r.handlers.Register(h)
	if pattern == nil {
		r.logger.Warn("raw packet handler rejected: nil pattern")
		return false
	}
	if !added {
		return false
	}
	for _, rec := range r.snapshotRecords() {
		if rec.adv != nil {
			rec.adv.AddRawPacketFilter(pattern)
		}
	}
	r.updateHandlerGauge()
	r.logger.Debug("raw packet handler registered", zap.String("pattern", pattern.String()))
	return true
}

// UnregisterRawPacketHandler 移除处理器，已推送的过滤规则保留在接口上
func (r *Registry) UnregisterRawPacketHandler(h RawPacketHandler) bool {
	removed := r.handlers.Unregister(h)
	if removed {
		r.updateHandlerGauge()
	}
	return removed
}

// HandleRawPacket 实现 RawPacketSink，供接口 I/O 协程调用
func (r *Registry) HandleRawPacket(source AdvancedNetworkInterface, address string, port int, payload []byte) {
	r.dispatcher.Dispatch(source, address, port, payload, r.now())
}

// SendRawPacket 通过所有高级接口发送原始报文，单个接口失败不影响其余接口，返回成功数
func (r *Registry) SendRawPacket(address string, port int, payload []byte) int {
	sent := 0
	for _, rec := range r.snapshotRecords() {
		if rec.adv == nil {
			continue
		}
		if err := rec.adv.SendRawPacket(address, port, payload); err != nil {
			r.logger.Warn("send raw packet failed",
				zap.String("id", rec.id.String()),
				zap.String("address", address),
				zap.Int("port", port),
				zap.Error(err),
			)
			if r.metrics != nil {
				r.metrics.SendFailuresTotal.Inc()
			}
			continue
		}
		sent++
	}
	return sent
}

// ========== 周期驱动 ==========

// Tick 按注册顺序驱动所有接口，然后驱动会话管理器
func (r *Registry) Tick() {
	for _, rec := range r.snapshotRecords() {
		rec.iface.Tick()
	}
	if r.sessions != nil {
		r.sessions.Tick(r.now())
		if r.metrics != nil {
			r.metrics.SessionCount.Set(float64(r.sessions.Count()))
		}
	}
}

// SessionCount 当前会话数，未设置会话管理器时为 0
func (r *Registry) SessionCount() int {
	if r.sessions == nil {
		return 0
	}
	return r.sessions.Count()
}

// ========== 状态快照 ==========

// InterfaceInfo 接口只读描述
type InterfaceInfo struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Advanced bool   `json:"advanced"`
}

// Status 注册表只读快照
type Status struct {
	Name       string          `json:"name"`
	LanName    string          `json:"lan_name"`
	Interfaces []InterfaceInfo `json:"interfaces"`
	Bans       []BanEntry      `json:"bans"`
	Patterns   []string        `json:"patterns"`
	Sessions   int             `json:"sessions"`
	// LocalSessions 本实例会话数，单实例时与 Sessions 相同
	LocalSessions int    `json:"local_sessions"`
	ServerID      string `json:"server_id,omitempty"`
}

// Snapshot 生成只读快照，可并发调用
func (r *Registry) Snapshot() Status {
	st := Status{
		Name:     r.Name(),
		LanName:  r.LanName(),
		Bans:     r.BannedAddresses(),
		Sessions: r.SessionCount(),
	}
	st.LocalSessions = st.Sessions
	if inst, ok := r.sessions.(SessionInstance); ok {
		st.ServerID = inst.ServerID()
		st.LocalSessions = inst.LocalCount()
	}
	for _, rec := range r.snapshotRecords() {
		st.Interfaces = append(st.Interfaces, InterfaceInfo{
			ID:       rec.id.String(),
			Type:     fmt.Sprintf("%T", rec.iface),
			Advanced: rec.adv != nil,
		})
	}
	for _, p := range r.handlers.Patterns() {
		st.Patterns = append(st.Patterns, p.String())
	}
	return st
}

func (r *Registry) updateInterfaceGauge() {
	if r.metrics == nil {
		return
	}
	basic, advanced := 0, 0
	for _, rec := range r.snapshotRecords() {
		if rec.adv != nil {
			advanced++
		} else {
			basic++
		}
	}
	r.metrics.Interfaces.WithLabelValues("basic").Set(float64(basic))
	r.metrics.Interfaces.WithLabelValues("advanced").Set(float64(advanced))
}

func (r *Registry) updateBanGauge() {
	if r.metrics != nil {
		r.metrics.BannedAddresses.Set(float64(r.bans.Len()))
	}
}

func (r *Registry) updateHandlerGauge() {
	if r.metrics != nil {
		r.metrics.RawHandlers.Set(float64(r.handlers.Len()))
	}
}
