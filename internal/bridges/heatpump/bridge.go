package heatpump

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/heatpump-sync/internal/attribute"
	"github.com/nerrad567/heatpump-sync/internal/estimator"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/config"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
	"github.com/nerrad567/heatpump-sync/internal/reconcile"
	"github.com/nerrad567/heatpump-sync/internal/settings"
	"github.com/nerrad567/heatpump-sync/internal/writequeue"
)

// Bridge operation constants.
const (
	// changeBuffer is the capacity of the attribute change fan-out queue.
	changeBuffer = 256

	// historyTimeout bounds one history insert.
	historyTimeout = 5 * time.Second

	// pruneInterval is how often old attribute history is removed.
	pruneInterval = time.Hour

	// sourceMQTT marks writes received as MQTT commands.
	sourceMQTT = "mqtt"
)

// Logger is the logging surface used by the bridge and its sessions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the interface for MQTT operations.
// Satisfied by *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// DeviceSettings is the settings store as seen by the bridge.
// Satisfied by *settings.Store.
type DeviceSettings interface {
	SettingsStore
	Seed(deviceID string, defaults settings.Values) error
	OnChange(l settings.Listener)
}

// HistoryRecorder persists attribute changes.
// Satisfied by *attribute.SQLiteHistoryRepository.
type HistoryRecorder interface {
	RecordChange(ctx context.Context, c attribute.Change) error
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MetricsSink receives attribute, energy and sync metrics.
// Satisfied by *influxdb.Client.
type MetricsSink interface {
	Metrics
	WriteAttribute(deviceID, attribute string, value float64, ts time.Time)
}

// ChangeObserver receives every attribute change after it is recorded.
type ChangeObserver func(attribute.Change)

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Devices are the configured heat pumps.
	Devices []config.DeviceConfig

	// Sync holds queue timings and default poll interval.
	Sync config.SyncConfig

	// Remote is the remote API client.
	Remote Remote

	// Settings is the device settings store.
	Settings DeviceSettings

	// MQTT is optional. Without it commands, state and health are not published.
	MQTT   MQTTClient
	Topics mqtt.Topics
	QoS    byte

	// Optional sinks.
	History HistoryRecorder
	Metrics MetricsSink
	Writes  WriteRecorder

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Default: 30 seconds.
	HealthInterval time.Duration

	Logger Logger
}

// Bridge runs one Session per configured device and connects them to MQTT,
// the attribute history and the metrics sink.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	sessions map[string]*Session
	order    []string

	mqtt    MQTTClient
	topics  mqtt.Topics
	qos     byte
	history HistoryRecorder
	metrics MetricsSink
	health  *HealthReporter

	retention time.Duration

	changes     chan attribute.Change
	observersMu sync.RWMutex
	observers   []ChangeObserver

	// Devices whose attributes changed since their last state publish.
	dirtyMu sync.Mutex
	dirty   map[string]bool

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger Logger
}

// NewBridge creates a bridge and a session for every configured device.
// Device settings are seeded from config; values already stored are kept.
// Call Start to begin polling.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Remote == nil {
		return nil, fmt.Errorf("remote client is required")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if len(opts.Devices) == 0 {
		return nil, fmt.Errorf("at least one device is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	topics := opts.Topics

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		sessions:  make(map[string]*Session, len(opts.Devices)),
		mqtt:      opts.MQTT,
		topics:    topics,
		qos:       opts.QoS,
		history:   opts.History,
		metrics:   opts.Metrics,
		retention: time.Duration(opts.Sync.HistoryRetentionDays) * 24 * time.Hour,
		changes:   make(chan attribute.Change, changeBuffer),
		dirty:     make(map[string]bool),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    logger,
	}

	var metrics Metrics
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}

	for _, dev := range opts.Devices {
		catalog, err := parameter.ForFamily(parameter.Family(dev.Family))
		if err != nil {
			ctxCancel()
			return nil, fmt.Errorf("device %s: %w", dev.ID, err)
		}
		if err := opts.Settings.Seed(dev.ID, DeviceDefaults(dev, opts.Sync)); err != nil {
			ctxCancel()
			return nil, fmt.Errorf("seeding settings for %s: %w", dev.ID, err)
		}

		attrs := attribute.NewStore(dev.ID)
		attrs.OnChange(b.onAttributeChange)

		s, err := NewSession(SessionConfig{
			DeviceID:            dev.ID,
			Name:                dev.Name,
			Catalog:             catalog,
			Remote:              opts.Remote,
			Settings:            opts.Settings,
			Attributes:          attrs,
			Metrics:             metrics,
			Writes:              opts.Writes,
			Debounce:            opts.Sync.Debounce(),
			MinWriteInterval:    opts.Sync.MinInterval(),
			DefaultPollInterval: time.Duration(opts.Sync.PollMinutes) * time.Minute,
			OnReconciled:        b.onReconciled,
			Logger:              logger,
		})
		if err != nil {
			ctxCancel()
			return nil, fmt.Errorf("device %s: %w", dev.ID, err)
		}
		b.sessions[dev.ID] = s
		b.order = append(b.order, dev.ID)
	}
	sort.Strings(b.order)

	opts.Settings.OnChange(b.onSettingsChange)

	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Topic:     topics.Health(),
		Devices:   b.deviceHealth,
	})
	b.health.SetLogger(logger)

	return b, nil
}

// DeviceDefaults returns the initial settings for a configured device.
func DeviceDefaults(dev config.DeviceConfig, sync config.SyncConfig) settings.Values {
	values := settings.Values{
		settings.KeyPollInterval: sync.PollMinutes,
		settings.KeyVoltage:      estimator.DefaultVoltage,
		settings.KeyPowerFactor:  estimator.DefaultPowerFactor,
		settings.KeyAccumulate:   dev.AccumulateEnergy,
	}
	if dev.PollMinutes > 0 {
		values[settings.KeyPollInterval] = dev.PollMinutes
	}
	if dev.Voltage > 0 {
		values[settings.KeyVoltage] = dev.Voltage
	}
	if dev.PowerFactor > 0 {
		values[settings.KeyPowerFactor] = dev.PowerFactor
	}
	if dev.EnergyParameter > 0 {
		values[settings.KeyEnergyParameter] = dev.EnergyParameter
	}
	for key, id := range dev.Overrides {
		values[key] = id
	}
	return values
}

// Start starts every session in parallel, subscribes to commands and begins
// health reporting. Session start-up failures are returned after all sessions
// have been attempted.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	b.wg.Add(1)
	go b.dispatchChanges()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range b.order {
		s := b.sessions[id]
		g.Go(func() error {
			if err := s.Start(gctx); err != nil {
				return fmt.Errorf("starting session %s: %w", s.ID(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if b.mqtt != nil {
		topic := b.topics.AllDeviceCommands()
		if err := b.mqtt.Subscribe(topic, b.qos, b.handleCommand); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logger.Info("subscribed to commands", "topic", topic)
	}

	if b.history != nil && b.retention > 0 {
		b.wg.Add(1)
		go b.pruneLoop()
	}

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logger.Error("failed to publish healthy status", "error", err)
	}

	b.logger.Info("bridge started", "devices", len(b.sessions))
	return nil
}

// Stop closes every session and stops health reporting.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		for _, id := range b.order {
			b.sessions[id].Close()
		}

		b.health.Stop()
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// Session returns the session for deviceID.
func (b *Bridge) Session(deviceID string) (*Session, error) {
	s, ok := b.sessions[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return s, nil
}

// Sessions returns every session ordered by device ID.
func (b *Bridge) Sessions() []*Session {
	out := make([]*Session, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.sessions[id])
	}
	return out
}

// OnAttributeChange registers an observer for attribute changes on any device.
func (b *Bridge) OnAttributeChange(fn ChangeObserver) {
	if fn == nil {
		return
	}
	b.observersMu.Lock()
	b.observers = append(b.observers, fn)
	b.observersMu.Unlock()
}

// Healthy reports whether MQTT (when configured) is connected and every
// session's last poll succeeded.
func (b *Bridge) Healthy() (bool, string) {
	status, reason := b.health.determineStatus()
	return status == HealthHealthy, reason
}

func (b *Bridge) deviceHealth() []DeviceHealth {
	out := make([]DeviceHealth, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.sessions[id].health())
	}
	return out
}

// onAttributeChange runs inside the attribute store and must not block.
func (b *Bridge) onAttributeChange(c attribute.Change) {
	b.dirtyMu.Lock()
	b.dirty[c.DeviceID] = true
	b.dirtyMu.Unlock()

	select {
	case b.changes <- c:
	default:
		b.logger.Warn("attribute change dropped, fan-out queue full",
			"device_id", c.DeviceID, "attribute", c.Attribute)
	}
}

func (b *Bridge) dispatchChanges() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case c := <-b.changes:
			b.recordChange(c)
		}
	}
}

func (b *Bridge) recordChange(c attribute.Change) {
	if b.history != nil {
		ctx, cancel := context.WithTimeout(b.ctx, historyTimeout)
		if err := b.history.RecordChange(ctx, c); err != nil {
			b.logger.Warn("failed to record attribute change",
				"device_id", c.DeviceID, "attribute", c.Attribute, "error", err)
		}
		cancel()
	}
	if b.metrics != nil && c.Kind != attribute.ChangeRemoved {
		if v, ok := numeric(c.Value); ok {
			b.metrics.WriteAttribute(c.DeviceID, c.Attribute, v, c.At)
		}
	}

	b.observersMu.RLock()
	observers := b.observers
	b.observersMu.RUnlock()
	for _, fn := range observers {
		fn(c)
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// onReconciled publishes the state snapshot when anything changed.
func (b *Bridge) onReconciled(deviceID string, _ *reconcile.Result) {
	b.dirtyMu.Lock()
	changed := b.dirty[deviceID]
	delete(b.dirty, deviceID)
	b.dirtyMu.Unlock()

	if changed {
		b.publishState(deviceID)
	}
}

func (b *Bridge) publishState(deviceID string) {
	if b.mqtt == nil || !b.mqtt.IsConnected() {
		return
	}
	s, ok := b.sessions[deviceID]
	if !ok {
		return
	}

	msg := StateMessage{
		DeviceID:   deviceID,
		Timestamp:  time.Now().UTC(),
		Attributes: s.Attributes().Snapshot(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal state", "device_id", deviceID, "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.DeviceState(deviceID), payload, b.qos, true); err != nil {
		b.logger.Warn("failed to publish state", "device_id", deviceID, "error", err)
	}
}

func (b *Bridge) onSettingsChange(deviceID string, changed []string, values settings.Values) {
	s, ok := b.sessions[deviceID]
	if !ok {
		return
	}
	s.HandleSettingsChange(changed, values)
}

// handleCommand processes a write command received over MQTT.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID, ok := b.topics.DeviceFromTopic(topic)
	if !ok {
		return fmt.Errorf("invalid command topic: %s", topic)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAckError(deviceID, cmd, ErrCodeInvalidCommand, fmt.Sprintf("parsing command: %v", err))
		return nil
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Source == "" {
		cmd.Source = sourceMQTT
	}

	b.logger.Info("received command", "command_id", cmd.ID, "device_id", deviceID,
		"attribute", cmd.Attribute, "parameter_id", cmd.ParameterID)

	s, ok := b.sessions[deviceID]
	if !ok {
		b.publishAckError(deviceID, cmd, ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", deviceID))
		return nil
	}

	value, err := ToFloat(cmd.Value)
	if err != nil {
		b.publishAckError(deviceID, cmd, ErrCodeInvalidValue, err.Error())
		return nil
	}

	switch {
	case cmd.Attribute == parameter.AttrTargetTemperature:
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			err := s.SetTargetTemperature(b.ctx, value, cmd.Source)
			id, _ := s.WritableParameter(cmd.Attribute)
			b.publishAck(deviceID, cmd, id, err)
		}()
		return nil
	case cmd.Attribute != "":
		id, ok := s.WritableParameter(cmd.Attribute)
		if !ok {
			b.publishAckError(deviceID, cmd, ErrCodeNotWritable, fmt.Sprintf("attribute %s is not writable", cmd.Attribute))
			return nil
		}
		cmd.ParameterID = int(id)
	case cmd.ParameterID <= 0:
		b.publishAckError(deviceID, cmd, ErrCodeInvalidCommand, "attribute or parameter_id is required")
		return nil
	}

	h, err := s.SubmitWrite(parameter.ID(cmd.ParameterID), value, cmd.Source)
	if err != nil {
		b.publishAckError(deviceID, cmd, ErrCodeWriteFailed, err.Error())
		return nil
	}

	b.wg.Add(1)
	go b.awaitAck(deviceID, cmd, h)
	return nil
}

func (b *Bridge) awaitAck(deviceID string, cmd CommandMessage, h *writequeue.Handle) {
	defer b.wg.Done()
	select {
	case <-h.Done():
		b.publishAck(deviceID, cmd, h.Parameter(), h.Err())
	case <-b.done:
	}
}

func (b *Bridge) publishAck(deviceID string, cmd CommandMessage, id parameter.ID, err error) {
	ack := AckMessage{
		CommandID:   cmd.ID,
		Timestamp:   time.Now().UTC(),
		DeviceID:    deviceID,
		Status:      AckAccepted,
		ParameterID: int(id),
	}
	if err != nil {
		code := ErrCodeWriteFailed
		if isCleared(err) {
			code = ErrCodeCleared
		}
		ack.Status = AckFailed
		ack.Error = &AckError{Code: code, Message: err.Error()}
	}
	b.sendAck(deviceID, ack)
}

func (b *Bridge) publishAckError(deviceID string, cmd CommandMessage, code, message string) {
	b.logger.Warn("command rejected", "command_id", cmd.ID, "device_id", deviceID, "code", code, "error", message)
	b.sendAck(deviceID, AckMessage{
		CommandID:   cmd.ID,
		Timestamp:   time.Now().UTC(),
		DeviceID:    deviceID,
		Status:      AckFailed,
		ParameterID: cmd.ParameterID,
		Error:       &AckError{Code: code, Message: message},
	})
}

func (b *Bridge) sendAck(deviceID string, ack AckMessage) {
	if b.mqtt == nil {
		return
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.DeviceAck(deviceID), payload, b.qos, false); err != nil {
		b.logger.Warn("failed to publish ack", "device_id", deviceID, "error", err)
	}
}

func (b *Bridge) pruneLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			n, err := b.history.PruneHistory(b.ctx, b.retention)
			if err != nil {
				b.logger.Warn("history prune failed", "error", err)
				continue
			}
			if n > 0 {
				b.logger.Debug("pruned attribute history", "rows", n)
			}
		}
	}
}
