package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/heatpump-sync/internal/myuplink"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

// Fetcher reads data points from the remote device.
type Fetcher interface {
	FetchDataPoints(ctx context.Context, deviceID string, ids []parameter.ID) ([]parameter.DataPoint, error)
}

// Attributes is the attribute store boundary.
type Attributes interface {
	Get(name string) (any, bool)
	Set(name string, value any) error
	Exists(name string) bool
	Add(name string) error
	Remove(name string)
}

// Logger is the logging surface used by the pipeline.
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

// SetpointMode is the source currently selected for the target setpoint.
type SetpointMode string

// Setpoint modes.
const (
	SetpointPrimary   SetpointMode = "primary"
	SetpointAlternate SetpointMode = "alternate"
)

// EnumOption is one cached selectable value.
type EnumOption struct {
	ID    float64 `json:"id"`
	Label string  `json:"label"`
}

// Options configures a Pipeline.
type Options struct {
	Setpoint  *parameter.SetpointRule
	Fallbacks []parameter.FallbackRule

	// FormatLabel is applied to resolved enum labels. Nil leaves them as sent.
	FormatLabel func(string) string

	Logger Logger
}

// Result summarises one reconciliation cycle.
type Result struct {
	Requested int
	Returned  int
	Updated   []string
	Removed   []string
	Unknown   []parameter.ID
	Errors    []error
	NotFound  bool
	Setpoint  SetpointMode
}

// Pipeline reconciles one device's attributes with its remote parameters.
type Pipeline struct {
	deviceID string
	fetch    Fetcher
	attrs    Attributes
	opts     Options
	logger   Logger

	// Cycle state, guarded by the caller's device lock.
	everSeen       map[parameter.ID]bool
	alternate      bool
	fallbackActive map[parameter.ID]bool

	enumMu    sync.RWMutex
	enumCache map[parameter.ID][]parameter.EnumCandidate
}

// New creates a pipeline for one device.
func New(deviceID string, fetch Fetcher, attrs Attributes, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pipeline{
		deviceID:       deviceID,
		fetch:          fetch,
		attrs:          attrs,
		opts:           opts,
		logger:         logger,
		everSeen:       make(map[parameter.ID]bool),
		fallbackActive: make(map[parameter.ID]bool),
		enumCache:      make(map[parameter.ID][]parameter.EnumCandidate),
	}
}

// Reset forgets everything learned since the pipeline was created.
func (p *Pipeline) Reset() {
	p.everSeen = make(map[parameter.ID]bool)
	p.alternate = false
	p.fallbackActive = make(map[parameter.ID]bool)
	p.enumMu.Lock()
	p.enumCache = make(map[parameter.ID][]parameter.EnumCandidate)
	p.enumMu.Unlock()
}

// SetpointMode returns the selected setpoint source.
func (p *Pipeline) SetpointMode() SetpointMode {
	if p.alternate {
		return SetpointAlternate
	}
	return SetpointPrimary
}

// SetSetpointMode forces the setpoint source, used after a write succeeded
// only on the other identifier.
func (p *Pipeline) SetSetpointMode(m SetpointMode) {
	if (m == SetpointAlternate) != p.alternate {
		p.logger.Info("setpoint source switched", "device_id", p.deviceID, "mode", m, "reason", "write")
	}
	p.alternate = m == SetpointAlternate
}

// FallbackActive reports whether the rule with the given primary currently
// publishes its secondary source.
func (p *Pipeline) FallbackActive(primary parameter.ID) bool {
	return p.fallbackActive[primary]
}

// CachedEnumOptions returns the options last reported for an enum parameter.
func (p *Pipeline) CachedEnumOptions(id parameter.ID) []EnumOption {
	p.enumMu.RLock()
	cands := p.enumCache[id]
	p.enumMu.RUnlock()

	out := make([]EnumOption, 0, len(cands))
	for _, c := range cands {
		out = append(out, EnumOption{ID: c.Value, Label: p.formatLabel(c.Label)})
	}
	return out
}

// Reconcile fetches ids and brings the attribute store in line with the
// result.
//
// Parameters:
//   - ctx: Context for the remote fetch
//   - eff: Effective map in force for this cycle
//   - ids: Identifiers to fetch (the full monitored list or a narrow subset)
//
// Returns:
//   - *Result: Summary of the cycle (also returned alongside a fetch error)
//   - error: Fetch failure; per-point errors are reported in Result.Errors
func (p *Pipeline) Reconcile(ctx context.Context, eff *parameter.EffectiveMap, ids []parameter.ID) (*Result, error) {
	res := &Result{Requested: len(ids)}

	points, err := p.fetch.FetchDataPoints(ctx, p.deviceID, ids)
	if err != nil {
		if !errors.Is(err, myuplink.ErrNotFound) {
			res.Setpoint = p.SetpointMode()
			return res, fmt.Errorf("fetching data points: %w", err)
		}
		p.logger.Warn("remote reports parameters not found, treating as absent",
			"device_id", p.deviceID, "requested", len(ids), "error", err)
		res.NotFound = true
		points = nil
	}
	res.Returned = len(points)

	requested := make(map[parameter.ID]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}
	governed := p.governed(eff)
	numeric := make(map[parameter.ID]float64)

	for _, pt := range points {
		desc, ok := eff.Lookup(pt.ID)
		if !ok {
			p.logger.Debug("unknown parameter skipped", "device_id", p.deviceID, "parameter", pt.ID, "name", pt.Name)
			res.Unknown = append(res.Unknown, pt.ID)
			continue
		}
		p.everSeen[pt.ID] = true

		if err := p.applyPoint(desc, pt, governed, numeric, res); err != nil {
			p.logger.Warn("data point skipped", "device_id", p.deviceID, "parameter", pt.ID, "error", err)
			res.Errors = append(res.Errors, err)
		}
	}

	p.selectSetpoint(eff, requested, numeric, res)
	p.applyFallbacks(eff, requested, numeric, res)
	p.removeUnreported(eff, ids, governed, res)

	res.Setpoint = p.SetpointMode()
	return res, nil
}

// applyPoint decodes one point and publishes it unless a rule governs it.
func (p *Pipeline) applyPoint(desc parameter.Descriptor, pt parameter.DataPoint, governed map[parameter.ID]bool, numeric map[parameter.ID]float64, res *Result) error {
	if len(pt.Enum) > 0 && (desc.Kind == parameter.KindEnum || desc.Kind == parameter.KindWriteOnlyEnum) {
		p.enumMu.Lock()
		p.enumCache[pt.ID] = append([]parameter.EnumCandidate(nil), pt.Enum...)
		p.enumMu.Unlock()
	}

	value, err := decode(desc, pt)
	if err != nil {
		return err
	}

	if desc.Kind == parameter.KindNumber {
		numeric[pt.ID] = value.(float64)
	}
	if s, ok := value.(string); ok && (desc.Kind == parameter.KindEnum || desc.Kind == parameter.KindWriteOnlyEnum) {
		value = p.formatLabel(s)
	}

	if !desc.PublishesAttribute() || governed[pt.ID] {
		return nil
	}
	return p.publish(desc.Attribute, value, res)
}

// selectSetpoint chooses the setpoint source and publishes its value.
func (p *Pipeline) selectSetpoint(eff *parameter.EffectiveMap, requested map[parameter.ID]bool, numeric map[parameter.ID]float64, res *Result) {
	rule := p.opts.Setpoint
	if rule == nil {
		return
	}
	primary, alternate := eff.Effective(rule.Primary), eff.Effective(rule.Alternate)
	if !requested[primary] && !requested[alternate] {
		return
	}

	primaryValue, hasPrimary := numeric[primary]
	alternateValue, hasAlternate := numeric[alternate]

	switch {
	case hasAlternate:
		if !p.alternate {
			p.alternate = true
			p.logger.Info("setpoint source switched", "device_id", p.deviceID, "mode", SetpointAlternate, "parameter", alternate)
		}
	case hasPrimary && p.alternate:
		p.alternate = false
		p.logger.Info("setpoint source switched", "device_id", p.deviceID, "mode", SetpointPrimary, "parameter", primary)
	case !hasPrimary && !hasAlternate:
		p.logger.Debug("no setpoint reported this cycle", "device_id", p.deviceID)
		return
	}

	var chosen float64
	var ok bool
	if p.alternate {
		chosen, ok = alternateValue, hasAlternate
		if !ok {
			chosen, ok = primaryValue, hasPrimary
		}
	} else {
		chosen, ok = primaryValue, hasPrimary
		if !ok {
			chosen, ok = alternateValue, hasAlternate
		}
	}
	if !ok {
		return
	}
	if err := p.publish(rule.Attribute, chosen, res); err != nil {
		p.logger.Warn("setpoint update failed", "device_id", p.deviceID, "error", err)
		res.Errors = append(res.Errors, err)
	}
}

// applyFallbacks publishes each rule's primary or, failing that, secondary
// value under the primary attribute and suppresses the secondary attribute.
func (p *Pipeline) applyFallbacks(eff *parameter.EffectiveMap, requested map[parameter.ID]bool, numeric map[parameter.ID]float64, res *Result) {
	for _, rule := range p.opts.Fallbacks {
		primary, secondary := eff.Effective(rule.Primary), eff.Effective(rule.Secondary)
		primaryDesc, ok := eff.Lookup(primary)
		if !ok {
			continue
		}
		if secondaryDesc, ok := eff.Lookup(secondary); ok &&
			secondaryDesc.Attribute != primaryDesc.Attribute && p.attrs.Exists(secondaryDesc.Attribute) {
			p.attrs.Remove(secondaryDesc.Attribute)
			res.Removed = append(res.Removed, secondaryDesc.Attribute)
		}

		if !requested[primary] && !requested[secondary] {
			continue
		}

		pv, hasPrimary := numeric[primary]
		sv, hasSecondary := numeric[secondary]
		switch {
		case hasPrimary && rule.Valid(pv):
			if p.fallbackActive[rule.Primary] {
				p.fallbackActive[rule.Primary] = false
				p.logger.Info("primary source reported again, fallback no longer in effect",
					"device_id", p.deviceID, "attribute", primaryDesc.Attribute, "parameter", primary)
			}
			p.publishOrRecord(primaryDesc.Attribute, pv, res)

		case hasSecondary && rule.Valid(sv):
			if !p.fallbackActive[rule.Primary] {
				p.fallbackActive[rule.Primary] = true
				p.logger.Info("fallback applied", "device_id", p.deviceID,
					"attribute", primaryDesc.Attribute, "source", secondary, "value", sv)
			}
			p.publishOrRecord(primaryDesc.Attribute, sv, res)
		}
	}
}

// removeUnreported drops attributes whose identifier was requested but has
// never been reported since the pipeline started.
func (p *Pipeline) removeUnreported(eff *parameter.EffectiveMap, ids []parameter.ID, governed map[parameter.ID]bool, res *Result) {
	for _, id := range ids {
		if p.everSeen[id] || governed[id] {
			continue
		}
		desc, ok := eff.Lookup(id)
		if !ok || !desc.PublishesAttribute() {
			continue
		}
		if p.attrs.Exists(desc.Attribute) {
			p.attrs.Remove(desc.Attribute)
			res.Removed = append(res.Removed, desc.Attribute)
			p.logger.Info("attribute removed, parameter not reported", "device_id", p.deviceID,
				"attribute", desc.Attribute, "parameter", id)
		}
	}
}

// governed returns identifiers handled by the setpoint or fallback rules.
func (p *Pipeline) governed(eff *parameter.EffectiveMap) map[parameter.ID]bool {
	g := make(map[parameter.ID]bool)
	if r := p.opts.Setpoint; r != nil {
		g[eff.Effective(r.Primary)] = true
		g[eff.Effective(r.Alternate)] = true
	}
	for _, r := range p.opts.Fallbacks {
		g[eff.Effective(r.Primary)] = true
		g[eff.Effective(r.Secondary)] = true
	}
	return g
}

func (p *Pipeline) publishOrRecord(attr string, value any, res *Result) {
	if err := p.publish(attr, value, res); err != nil {
		p.logger.Warn("attribute update failed", "device_id", p.deviceID, "attribute", attr, "error", err)
		res.Errors = append(res.Errors, err)
	}
}

func (p *Pipeline) publish(attr string, value any, res *Result) error {
	if !p.attrs.Exists(attr) {
		if err := p.attrs.Add(attr); err != nil {
			return fmt.Errorf("adding %s: %w", attr, err)
		}
	}
	if err := p.attrs.Set(attr, value); err != nil {
		return fmt.Errorf("setting %s: %w", attr, err)
	}
	res.Updated = append(res.Updated, attr)
	return nil
}

func (p *Pipeline) formatLabel(s string) string {
	if p.opts.FormatLabel == nil {
		return s
	}
	return p.opts.FormatLabel(s)
}
