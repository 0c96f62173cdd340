package heatpump

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/heatpump-sync/internal/attribute"
	"github.com/nerrad567/heatpump-sync/internal/estimator"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/influxdb"
	"github.com/nerrad567/heatpump-sync/internal/myuplink"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
	"github.com/nerrad567/heatpump-sync/internal/reconcile"
	"github.com/nerrad567/heatpump-sync/internal/settings"
	"github.com/nerrad567/heatpump-sync/internal/writelog"
	"github.com/nerrad567/heatpump-sync/internal/writequeue"
)

const (
	// DefaultPollInterval is used when neither settings nor config name one.
	DefaultPollInterval = 5 * time.Minute

	// recordTimeout bounds write log inserts for settled writes.
	recordTimeout = 5 * time.Second

	// pollTimeout bounds one scheduled poll or settings-triggered task.
	pollTimeout = 2 * time.Minute
)

// Remote is the remote API used by a session.
type Remote interface {
	FetchDataPoints(ctx context.Context, deviceID string, ids []parameter.ID) ([]parameter.DataPoint, error)
	WriteParameters(ctx context.Context, deviceID string, values map[parameter.ID]float64) error
	DeviceInfo(ctx context.Context, deviceID string) (*myuplink.DeviceInfo, error)
}

// SettingsStore is the per-device settings boundary used by a session.
type SettingsStore interface {
	Get(deviceID string) (settings.Values, error)
	Put(deviceID string, updates settings.Values) ([]string, error)
	SaveState(deviceID, key string, value float64) error
	LoadState(deviceID, key string) (float64, error)
}

// Metrics receives derived values for time-series storage.
// Satisfied by *influxdb.Client.
type Metrics interface {
	WriteEnergy(deviceID string, powerWatts, energyKWh float64, ts time.Time)
	WriteSync(deviceID string, s influxdb.SyncStats, ts time.Time)
}

// WriteRecorder persists the outcome of settled writes.
// Satisfied by *writelog.SQLiteRepository.
type WriteRecorder interface {
	Create(ctx context.Context, e *writelog.Entry) error
}

// SessionConfig holds everything needed to run one device.
type SessionConfig struct {
	DeviceID string
	Name     string
	Catalog  *parameter.Catalog
	Remote   Remote
	Settings SettingsStore

	// Attributes is the device attribute store. Created when nil.
	Attributes *attribute.Store

	// Optional sinks.
	Metrics Metrics
	Writes  WriteRecorder

	// Write queue timings. Zero selects the queue defaults.
	Debounce         time.Duration
	MinWriteInterval time.Duration

	// DefaultPollInterval applies when the poll_interval_minutes setting is unset.
	DefaultPollInterval time.Duration

	// OnReconciled runs after every successful reconcile, with the device lock held.
	OnReconciled func(deviceID string, res *reconcile.Result)

	Logger Logger
	Now    func() time.Time
}

// SessionStatus is a point-in-time view of a session.
type SessionStatus struct {
	DeviceID      string                      `json:"device_id"`
	Name          string                      `json:"name"`
	Family        parameter.Family            `json:"family"`
	LastPoll      *time.Time                  `json:"last_poll,omitempty"`
	LastError     string                      `json:"last_error,omitempty"`
	Polls         int64                       `json:"polls"`
	PendingWrites int                         `json:"pending_writes"`
	WriteInFlight bool                        `json:"write_in_flight"`
	SetpointMode  reconcile.SetpointMode      `json:"setpoint_mode"`
	PollInterval  string                      `json:"poll_interval"`
	Overrides     []parameter.AppliedOverride `json:"overrides,omitempty"`
	Conflicts     []parameter.AppliedOverride `json:"override_conflicts,omitempty"`
}

// Session synchronises one heat pump with its attribute store.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Reconcile, estimator and settings-sync work is serialised by mu.
type Session struct {
	id           string
	name         string
	catalog      *parameter.Catalog
	remote       Remote
	store        SettingsStore
	attrs        *attribute.Store
	metrics      Metrics
	writes       WriteRecorder
	onReconciled func(string, *reconcile.Result)
	defaultPoll  time.Duration
	opMode       bool
	logger       Logger
	now          func() time.Time

	// eff is swapped whole on override changes; readers never lock.
	eff   atomic.Pointer[parameter.EffectiveMap]
	queue *writequeue.Queue

	// Device lock.
	mu          sync.Mutex
	pipeline    *reconcile.Pipeline
	energyDelta estimator.EnergyDelta
	accumulator *estimator.Accumulator

	// Last values read from the device for synced settings, so that the
	// resulting settings change is not written back.
	remoteMu       sync.Mutex
	remoteSettings map[string]float64

	statusMu  sync.RWMutex
	lastPoll  time.Time
	lastErr   string
	polls     int64
	setpoint  reconcile.SetpointMode
	pollEvery time.Duration

	pollReset chan time.Duration
	started   atomic.Bool
	closed    atomic.Bool
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewSession creates a session. Call Start to begin polling.
//
// Parameters:
//   - cfg: Session configuration; DeviceID, Catalog, Remote and Settings are required
//
// Returns:
//   - *Session: Ready to start
//   - error: If a required field is missing
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Remote == nil {
		return nil, fmt.Errorf("remote client is required")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	attrs := cfg.Attributes
	if attrs == nil {
		attrs = attribute.NewStore(cfg.DeviceID)
	}
	defaultPoll := cfg.DefaultPollInterval
	if defaultPoll <= 0 {
		defaultPoll = DefaultPollInterval
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	s := &Session{
		id:             cfg.DeviceID,
		name:           cfg.Name,
		catalog:        cfg.Catalog,
		remote:         cfg.Remote,
		store:          cfg.Settings,
		attrs:          attrs,
		metrics:        cfg.Metrics,
		writes:         cfg.Writes,
		onReconciled:   cfg.OnReconciled,
		defaultPoll:    defaultPoll,
		opMode:         supportsOperationalMode(cfg.Catalog),
		logger:         logger,
		now:            now,
		accumulator:    estimator.NewAccumulator(0),
		remoteSettings: make(map[string]float64),
		setpoint:       reconcile.SetpointPrimary,
		pollReset:      make(chan time.Duration, 1),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
	}

	s.pipeline = reconcile.New(cfg.DeviceID, cfg.Remote, attrs, reconcile.Options{
		Setpoint:    cfg.Catalog.Setpoint,
		Fallbacks:   cfg.Catalog.Fallbacks,
		FormatLabel: reconcile.CapitalizeLabel,
		Logger:      logger,
	})
	s.queue = writequeue.New(s.send, writequeue.Options{
		Debounce:    cfg.Debounce,
		MinInterval: cfg.MinWriteInterval,
		OnFlushed:   s.onFlushed,
		Logger:      logger,
		Now:         now,
	})

	s.rebuildEffectiveMap(s.settingsValues())
	return s, nil
}

// ID returns the device identifier.
func (s *Session) ID() string { return s.id }

// Name returns the configured display name.
func (s *Session) Name() string { return s.name }

// Catalog returns the device family catalog.
func (s *Session) Catalog() *parameter.Catalog { return s.catalog }

// Attributes returns the device attribute store.
func (s *Session) Attributes() *attribute.Store { return s.attrs }

// EffectiveMap returns the parameter map currently in force.
func (s *Session) EffectiveMap() *parameter.EffectiveMap { return s.eff.Load() }

// Start prepares the device and begins periodic polling.
//
// Startup removes attributes the family reports unreliably, stores device
// information into settings, restores the accumulated energy total and runs
// one full poll. Remote failures are logged and do not fail Start.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	for _, name := range s.catalog.Unsupported {
		if s.attrs.Exists(name) {
			s.attrs.Remove(name)
			s.logger.Info("removed unsupported attribute", "device_id", s.id, "attribute", name)
		}
	}

	s.loadDeviceInfo(ctx)
	s.restoreEnergyTotal()

	if err := s.Poll(ctx); err != nil {
		s.logger.Warn("initial poll failed", "device_id", s.id, "error", err)
	}

	interval := s.pollInterval(s.settingsValues())
	s.statusMu.Lock()
	s.pollEvery = interval
	s.statusMu.Unlock()

	s.wg.Add(1)
	go s.pollLoop(interval)

	s.logger.Info("session started", "device_id", s.id, "family", s.catalog.Family, "poll_interval", interval)
	return nil
}

// Close stops polling and rejects every write that has not been sent.
// Safe to call multiple times.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		s.closed.Store(true)
		s.ctxCancel()
		s.queue.Close()
		s.wg.Wait()
		s.logger.Info("session closed", "device_id", s.id)
	})
}

// Poll runs one full cycle: reconcile the monitored list, update the derived
// metrics and refresh the synced settings.
func (s *Session) Poll(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.reconcileLocked(ctx, nil)

	s.statusMu.Lock()
	s.polls++
	s.lastPoll = s.now()
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.statusMu.Unlock()

	if err != nil {
		s.logger.Warn("poll failed", "device_id", s.id, "error", err)
		return err
	}

	s.updatePowerLocked(ctx, true)
	s.syncSettingsLocked(ctx)
	return nil
}

// Reconcile fetches ids (or the full monitored list when ids is empty) and
// applies the result to the attribute store.
func (s *Session) Reconcile(ctx context.Context, ids []parameter.ID) (*reconcile.Result, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked(ctx, ids)
}

func (s *Session) reconcileLocked(ctx context.Context, ids []parameter.ID) (*reconcile.Result, error) {
	eff := s.eff.Load()
	if len(ids) == 0 {
		ids = eff.Monitored()
	}

	start := s.now()
	res, err := s.pipeline.Reconcile(ctx, eff, ids)
	s.recordSync(res, err, start)
	if err != nil {
		return res, err
	}

	s.statusMu.Lock()
	s.setpoint = res.Setpoint
	s.statusMu.Unlock()

	if len(res.Updated) > 0 || len(res.Removed) > 0 {
		s.logger.Debug("reconciled", "device_id", s.id,
			"requested", res.Requested, "returned", res.Returned,
			"updated", len(res.Updated), "removed", len(res.Removed))
	}
	if s.onReconciled != nil {
		s.onReconciled(s.id, res)
	}
	return res, nil
}

func (s *Session) recordSync(res *reconcile.Result, err error, start time.Time) {
	if s.metrics == nil || res == nil {
		return
	}
	s.metrics.WriteSync(s.id, influxdb.SyncStats{
		Requested: res.Requested,
		Returned:  res.Returned,
		Updated:   len(res.Updated),
		Removed:   len(res.Removed),
		Errors:    len(res.Errors),
		Duration:  s.now().Sub(start),
		Failed:    err != nil,
	}, start)
}

// SubmitWrite queues a parameter write and returns its handle.
// The outcome is recorded in the write log once the handle settles.
//
// Parameters:
//   - id: Remote parameter identifier
//   - value: Value to write
//   - source: Originator recorded in the write log ("api", "mqtt", "settings")
func (s *Session) SubmitWrite(id parameter.ID, value float64, source string) (*writequeue.Handle, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParameter, id)
	}

	h := s.queue.Submit(id, value)
	if s.writes != nil {
		s.wg.Add(1)
		go s.recordWrite(h, source)
	}
	return h, nil
}

func (s *Session) recordWrite(h *writequeue.Handle, source string) {
	defer s.wg.Done()
	<-h.Done()

	entry := &writelog.Entry{
		RequestID:   h.ID(),
		DeviceID:    s.id,
		ParameterID: int(h.Parameter()),
		Value:       h.Value(),
		Source:      source,
		Status:      writelog.StatusApplied,
	}
	if err := h.Err(); err != nil {
		entry.Status = writelog.StatusFailed
		if isCleared(err) {
			entry.Status = writelog.StatusCleared
		}
		entry.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.writes.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record write", "device_id", s.id, "parameter", entry.ParameterID, "error", err)
	}
}

// WriteAttribute writes a user-writable attribute through its mapped
// parameter and waits for the outcome. The target temperature goes through
// SetTargetTemperature.
func (s *Session) WriteAttribute(ctx context.Context, name string, value any, source string) error {
	v, err := ToFloat(value)
	if err != nil {
		return err
	}
	if name == parameter.AttrTargetTemperature {
		return s.SetTargetTemperature(ctx, v, source)
	}

	id, ok := s.catalog.Writable[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWritable, name)
	}
	return s.writeAndWait(ctx, id, v, source)
}

// WritableParameter returns the parameter behind a writable attribute,
// honouring the current setpoint source.
func (s *Session) WritableParameter(name string) (parameter.ID, bool) {
	if name == parameter.AttrTargetTemperature && s.catalog.Setpoint != nil {
		first, _ := s.setpointOrder()
		return first, true
	}
	id, ok := s.catalog.Writable[name]
	return id, ok
}

// SetTargetTemperature writes the room setpoint to the currently selected
// setpoint identifier. If that write fails it is retried once on the other
// identifier, and the setpoint source switches when the retry succeeds. The
// attribute is set locally after a successful write.
func (s *Session) SetTargetTemperature(ctx context.Context, value float64, source string) error {
	rule := s.catalog.Setpoint
	if rule == nil {
		id, ok := s.catalog.Writable[parameter.AttrTargetTemperature]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotWritable, parameter.AttrTargetTemperature)
		}
		if err := s.writeAndWait(ctx, id, value, source); err != nil {
			return err
		}
		return s.attrs.Upsert(parameter.AttrTargetTemperature, value)
	}

	first, second := s.setpointOrder()
	firstErr := s.writeAndWait(ctx, first, value, source)
	if firstErr == nil {
		return s.attrs.Upsert(rule.Attribute, value)
	}
	if ctx.Err() != nil || isCleared(firstErr) {
		return firstErr
	}

	s.logger.Warn("setpoint write failed, trying other identifier",
		"device_id", s.id, "parameter", first, "retry", second, "error", firstErr)
	if err := s.writeAndWait(ctx, second, value, source); err != nil {
		return fmt.Errorf("writing target temperature: %w", errors.Join(firstErr, err))
	}

	mode := reconcile.SetpointPrimary
	if second == rule.Alternate {
		mode = reconcile.SetpointAlternate
	}
	s.mu.Lock()
	s.pipeline.SetSetpointMode(mode)
	s.mu.Unlock()
	s.statusMu.Lock()
	s.setpoint = mode
	s.statusMu.Unlock()

	return s.attrs.Upsert(rule.Attribute, value)
}

// setpointOrder returns the selected setpoint identifier and the other one.
func (s *Session) setpointOrder() (parameter.ID, parameter.ID) {
	rule := s.catalog.Setpoint
	s.statusMu.RLock()
	mode := s.setpoint
	s.statusMu.RUnlock()
	if mode == reconcile.SetpointAlternate {
		return rule.Alternate, rule.Primary
	}
	return rule.Primary, rule.Alternate
}

// isCleared reports whether err means the write was never sent.
func isCleared(err error) bool {
	return errors.Is(err, writequeue.ErrQueueCleared) || errors.Is(err, writequeue.ErrQueueClosed) || errors.Is(err, ErrSessionClosed)
}

func (s *Session) writeAndWait(ctx context.Context, id parameter.ID, value float64, source string) error {
	h, err := s.SubmitWrite(id, value, source)
	if err != nil {
		return err
	}
	return h.Wait(ctx)
}

// EnumOptions returns the cached selectable values of an enum parameter.
// id may be a catalog default; it is mapped through the active overrides.
func (s *Session) EnumOptions(id parameter.ID) ([]reconcile.EnumOption, error) {
	eff := s.eff.Load()
	effective := eff.Effective(id)
	desc, ok := eff.Lookup(effective)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParameter, id)
	}
	if desc.Kind != parameter.KindEnum && desc.Kind != parameter.KindWriteOnlyEnum {
		return nil, fmt.Errorf("%w: %d is not an enum", ErrUnknownParameter, id)
	}
	return s.pipeline.CachedEnumOptions(effective), nil
}

// Status returns a snapshot of the session state.
func (s *Session) Status() SessionStatus {
	s.statusMu.RLock()
	st := SessionStatus{
		DeviceID:     s.id,
		Name:         s.name,
		Family:       s.catalog.Family,
		LastError:    s.lastErr,
		Polls:        s.polls,
		SetpointMode: s.setpoint,
		PollInterval: s.pollEvery.String(),
	}
	if !s.lastPoll.IsZero() {
		t := s.lastPoll
		st.LastPoll = &t
	}
	s.statusMu.RUnlock()

	st.PendingWrites = s.queue.Pending()
	st.WriteInFlight = s.queue.InFlight()
	eff := s.eff.Load()
	st.Overrides = eff.Applied()
	st.Conflicts = eff.Conflicts()
	return st
}

// health returns the per-device part of a health message.
func (s *Session) health() DeviceHealth {
	st := s.Status()
	return DeviceHealth{
		DeviceID:     st.DeviceID,
		LastPoll:     st.LastPoll,
		LastError:    st.LastError,
		Polls:        st.Polls,
		PendingWrite: st.PendingWrites,
	}
}

// send delivers a batch. Closing the session does not abort a batch already
// on its way; ctx carries only the queue's send timeout.
func (s *Session) send(ctx context.Context, batch writequeue.Batch) error {
	return s.remote.WriteParameters(ctx, s.id, batch)
}

// onFlushed re-polls exactly the identifiers that were written.
func (s *Session) onFlushed(ctx context.Context, ids []parameter.ID) {
	if _, err := s.Reconcile(ctx, ids); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn("post-write refresh failed", "device_id", s.id, "parameters", ids, "error", err)
	}
}

func (s *Session) pollLoop(interval time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case d := <-s.pollReset:
			interval = d
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
			s.statusMu.Lock()
			s.pollEvery = interval
			s.statusMu.Unlock()
			s.logger.Info("poll interval changed", "device_id", s.id, "interval", interval)
		case <-timer.C:
			s.scheduledPoll()
			timer.Reset(interval)
		}
	}
}

// scheduledPoll runs one poll that Close does not interrupt; s.ctx only
// stops the loop between polls.
func (s *Session) scheduledPoll() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), pollTimeout)
	defer cancel()
	_ = s.Poll(ctx) //nolint:errcheck // logged by Poll
}

// restartPolling replaces the poll interval and restarts the timer.
func (s *Session) restartPolling(d time.Duration) {
	select {
	case s.pollReset <- d:
	default:
		// A restart is already pending; replace it.
		select {
		case <-s.pollReset:
		default:
		}
		s.pollReset <- d
	}
}

func (s *Session) pollInterval(values settings.Values) time.Duration {
	if minutes, ok := values.Int(settings.KeyPollInterval); ok && minutes >= 1 {
		return time.Duration(minutes) * time.Minute
	}
	return s.defaultPoll
}

func (s *Session) settingsValues() settings.Values {
	values, err := s.store.Get(s.id)
	if err != nil {
		s.logger.Warn("failed to read settings", "device_id", s.id, "error", err)
		return settings.Values{}
	}
	return values
}

// rebuildEffectiveMap resolves the catalog against values and swaps the
// result in.
func (s *Session) rebuildEffectiveMap(values settings.Values) *parameter.EffectiveMap {
	eff := parameter.Resolve(s.catalog, s.catalog.Monitored, s.catalog.Overrides, values)
	for _, a := range eff.Applied() {
		s.logger.Info("parameter override applied", "device_id", s.id,
			"setting", a.Setting, "from", a.From, "to", a.To, "attribute", a.Attribute)
	}
	for _, c := range eff.Conflicts() {
		s.logger.Warn("parameter override skipped, target already mapped", "device_id", s.id,
			"setting", c.Setting, "from", c.From, "to", c.To, "taken_by", c.Attribute)
	}
	s.eff.Store(eff)
	return eff
}

func (s *Session) loadDeviceInfo(ctx context.Context) {
	info, err := s.remote.DeviceInfo(ctx, s.id)
	if err != nil {
		s.logger.Warn("failed to load device info", "device_id", s.id, "error", err)
		return
	}
	updates := settings.Values{}
	if info.Product.SerialNumber != "" {
		updates[settings.KeySerialNumber] = info.Product.SerialNumber
	}
	if info.Firmware.CurrentFwVersion != "" {
		updates[settings.KeyFirmware] = info.Firmware.CurrentFwVersion
	}
	if len(updates) == 0 {
		return
	}
	if _, err := s.store.Put(s.id, updates); err != nil {
		s.logger.Warn("failed to store device info", "device_id", s.id, "error", err)
	}
}

// currentIDs returns the effective identifiers of the phase current attributes.
func (s *Session) currentIDs(eff *parameter.EffectiveMap) []parameter.ID {
	wanted := make(map[string]bool, len(s.catalog.Currents))
	for _, name := range s.catalog.Currents {
		if name != "" {
			wanted[name] = true
		}
	}
	var ids []parameter.ID
	for _, d := range eff.Descriptors() {
		if wanted[d.Attribute] {
			ids = append(ids, d.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
