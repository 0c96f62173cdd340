package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/heatpump-sync/internal/attribute"
	"github.com/nerrad567/heatpump-sync/internal/myuplink"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

type scriptedFetcher struct {
	responses [][]parameter.DataPoint
	err       error
	calls     [][]parameter.ID
}

func (f *scriptedFetcher) FetchDataPoints(_ context.Context, _ string, ids []parameter.ID) ([]parameter.DataPoint, error) {
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, nil
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next, nil
}

func newFSeriesPipeline(t *testing.T, f Fetcher) (*Pipeline, *attribute.Store, *parameter.EffectiveMap) {
	t.Helper()
	cat := parameter.FSeries()
	eff := parameter.Resolve(cat, cat.Monitored, cat.Overrides, nil)
	store := attribute.NewStore("dev-1")
	p := New("dev-1", f, store, Options{
		Setpoint:    cat.Setpoint,
		Fallbacks:   cat.Fallbacks,
		FormatLabel: CapitalizeLabel,
	})
	return p, store, eff
}

func point(id parameter.ID, v any) parameter.DataPoint {
	return parameter.DataPoint{ID: id, Value: v}
}

func TestReconcilePublishesNumbersAndBooleans(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{{
		point(parameter.FOutdoorTemp, 4.5),
		point(parameter.FTemporaryLux, 1.0),
	}}}
	p, store, eff := newFSeriesPipeline(t, f)

	res, err := p.Reconcile(context.Background(), eff, []parameter.ID{parameter.FOutdoorTemp, parameter.FTemporaryLux})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Returned)

	v, ok := store.Get("measure_temperature.outdoor")
	require.True(t, ok)
	assert.Equal(t, 4.5, v)

	b, ok := store.Get("state_button.temp_lux")
	require.True(t, ok)
	assert.Equal(t, true, b)
}

func TestReconcileSetpointSwitching(t *testing.T) {
	ids := []parameter.ID{parameter.FSetPointTemp1, parameter.FSetPointTempF730}
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FSetPointTempF730, 21.5)},
		{point(parameter.FSetPointTemp1, 20.0)},
		{},
	}}
	p, store, eff := newFSeriesPipeline(t, f)
	ctx := context.Background()

	res, err := p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)
	assert.Equal(t, SetpointAlternate, res.Setpoint)
	v, _ := store.Get(parameter.AttrTargetTemperature)
	assert.Equal(t, 21.5, v)

	res, err = p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)
	assert.Equal(t, SetpointPrimary, res.Setpoint)
	v, _ = store.Get(parameter.AttrTargetTemperature)
	assert.Equal(t, 20.0, v)

	// Neither reported: mode and attribute are kept.
	res, err = p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)
	assert.Equal(t, SetpointPrimary, res.Setpoint)
	v, ok := store.Get(parameter.AttrTargetTemperature)
	assert.True(t, ok)
	assert.Equal(t, 20.0, v)
}

func TestReconcileSetpointPrefersSelectedSource(t *testing.T) {
	ids := []parameter.ID{parameter.FSetPointTemp1, parameter.FSetPointTempF730}
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FSetPointTemp1, 20.0), point(parameter.FSetPointTempF730, 22.0)},
	}}
	p, store, eff := newFSeriesPipeline(t, f)

	_, err := p.Reconcile(context.Background(), eff, ids)
	require.NoError(t, err)
	assert.Equal(t, SetpointAlternate, p.SetpointMode())
	v, _ := store.Get(parameter.AttrTargetTemperature)
	assert.Equal(t, 22.0, v)
}

func TestReconcileNarrowPollSwitchesSetpointBackToPrimary(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FSetPointTempF730, 21.5)},
		{point(parameter.FSetPointTemp1, 20.0)},
	}}
	p, store, eff := newFSeriesPipeline(t, f)
	ctx := context.Background()

	_, err := p.Reconcile(ctx, eff, []parameter.ID{parameter.FSetPointTemp1, parameter.FSetPointTempF730})
	require.NoError(t, err)
	require.Equal(t, SetpointAlternate, p.SetpointMode())

	_, err = p.Reconcile(ctx, eff, []parameter.ID{parameter.FSetPointTemp1})
	require.NoError(t, err)
	assert.Equal(t, SetpointPrimary, p.SetpointMode())
	v, _ := store.Get(parameter.AttrTargetTemperature)
	assert.Equal(t, 20.0, v)
}

func TestReconcileNarrowPollOfAlternateSwitchesSetpoint(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FSetPointTemp1, 20.0)},
		{point(parameter.FSetPointTempF730, 22.5)},
	}}
	p, store, eff := newFSeriesPipeline(t, f)
	ctx := context.Background()

	_, err := p.Reconcile(ctx, eff, []parameter.ID{parameter.FSetPointTemp1, parameter.FSetPointTempF730})
	require.NoError(t, err)
	require.Equal(t, SetpointPrimary, p.SetpointMode())

	_, err = p.Reconcile(ctx, eff, []parameter.ID{parameter.FSetPointTempF730})
	require.NoError(t, err)
	assert.Equal(t, SetpointAlternate, p.SetpointMode())
	v, _ := store.Get(parameter.AttrTargetTemperature)
	assert.Equal(t, 22.5, v)
}

func TestReconcileFallbackToSecondary(t *testing.T) {
	ids := []parameter.ID{parameter.FSupplyLine, parameter.FHeatingMediumSupply}
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FSupplyLine, -999.0), point(parameter.FHeatingMediumSupply, 35.2)},
		{point(parameter.FSupplyLine, 30.1), point(parameter.FHeatingMediumSupply, 35.2)},
	}}
	p, store, eff := newFSeriesPipeline(t, f)
	ctx := context.Background()
	require.NoError(t, store.Upsert("measure_temperature.heating_supply", 1.0))

	_, err := p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)
	v, _ := store.Get(parameter.AttrSupplyLine)
	assert.Equal(t, 35.2, v)
	assert.False(t, store.Exists("measure_temperature.heating_supply"))
	assert.True(t, p.FallbackActive(parameter.FSupplyLine))

	_, err = p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)
	v, _ = store.Get(parameter.AttrSupplyLine)
	assert.Equal(t, 30.1, v)
	assert.False(t, store.Exists("measure_temperature.heating_supply"))
	assert.False(t, p.FallbackActive(parameter.FSupplyLine))
}

func TestReconcileFallbackKeepsAttributeWhenBothInvalid(t *testing.T) {
	ids := []parameter.ID{parameter.FSupplyLine, parameter.FHeatingMediumSupply}
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FSupplyLine, 40.0)},
		{point(parameter.FSupplyLine, -999.0), point(parameter.FHeatingMediumSupply, 500.0)},
	}}
	p, store, eff := newFSeriesPipeline(t, f)
	ctx := context.Background()

	_, err := p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)
	_, err = p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)

	v, ok := store.Get(parameter.AttrSupplyLine)
	require.True(t, ok)
	assert.Equal(t, 40.0, v)
}

func TestReconcileSkipsUnknownParameters(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{{
		point(12345, 1.0),
		point(parameter.FOutdoorTemp, 3.0),
	}}}
	p, store, eff := newFSeriesPipeline(t, f)

	res, err := p.Reconcile(context.Background(), eff, []parameter.ID{parameter.FOutdoorTemp})
	require.NoError(t, err)
	assert.Equal(t, []parameter.ID{12345}, res.Unknown)
	assert.True(t, store.Exists("measure_temperature.outdoor"))
}

func TestReconcileDecodeErrorDoesNotAbort(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{{
		point(parameter.FOutdoorTemp, "warm"),
		point(parameter.FRoomTemp, 21.0),
	}}}
	p, store, eff := newFSeriesPipeline(t, f)

	res, err := p.Reconcile(context.Background(), eff, []parameter.ID{parameter.FOutdoorTemp, parameter.FRoomTemp})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrDecode)
	assert.True(t, store.Exists("measure_temperature.room"))
	assert.False(t, store.Exists("measure_temperature.outdoor"))
}

func TestReconcileFetchErrorAborts(t *testing.T) {
	f := &scriptedFetcher{err: myuplink.ErrTransport}
	p, store, eff := newFSeriesPipeline(t, f)
	require.NoError(t, store.Upsert("measure_temperature.outdoor", 1.0))

	_, err := p.Reconcile(context.Background(), eff, []parameter.ID{parameter.FOutdoorTemp})
	require.Error(t, err)
	assert.True(t, errors.Is(err, myuplink.ErrTransport))
	assert.True(t, store.Exists("measure_temperature.outdoor"))
}

func TestReconcileNotFoundRemovesNeverSeen(t *testing.T) {
	f := &scriptedFetcher{err: &myuplink.StatusError{Op: "fetch", StatusCode: 404}}
	p, store, eff := newFSeriesPipeline(t, f)
	require.NoError(t, store.Upsert("measure_temperature.outdoor", 1.0))

	res, err := p.Reconcile(context.Background(), eff, []parameter.ID{parameter.FOutdoorTemp})
	require.NoError(t, err)
	assert.True(t, res.NotFound)
	assert.Contains(t, res.Removed, "measure_temperature.outdoor")
	assert.False(t, store.Exists("measure_temperature.outdoor"))
}

func TestReconcileKeepsPreviouslySeenAttributes(t *testing.T) {
	ids := []parameter.ID{parameter.FOutdoorTemp, parameter.FRoomTemp}
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FOutdoorTemp, 3.0), point(parameter.FRoomTemp, 21.0)},
		{point(parameter.FRoomTemp, 21.5)},
	}}
	p, store, eff := newFSeriesPipeline(t, f)
	ctx := context.Background()

	_, err := p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)
	_, err = p.Reconcile(ctx, eff, ids)
	require.NoError(t, err)

	assert.True(t, store.Exists("measure_temperature.outdoor"))
}

func TestReconcileWriteOnlyEnumIsCachedOnly(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{{
		{ID: parameter.FOperationMode, Value: 1.0, Enum: []parameter.EnumCandidate{
			{Value: 0, Label: "auto"},
			{Value: 1, Label: "manual"},
		}},
	}}}
	p, store, eff := newFSeriesPipeline(t, f)

	_, err := p.Reconcile(context.Background(), eff, []parameter.ID{parameter.FOperationMode})
	require.NoError(t, err)
	assert.False(t, store.Exists("heater_operation_mode"))
	assert.Equal(t, []EnumOption{{ID: 0, Label: "Auto"}, {ID: 1, Label: "Manual"}},
		p.CachedEnumOptions(parameter.FOperationMode))
}

func TestReconcileEnumResolution(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{{
		{ID: parameter.FCompressorStatus, Value: 39.6, Enum: []parameter.EnumCandidate{
			{Value: 20, Label: "off"},
			{Value: 40, Label: "running"},
		}},
	}}}
	p, store, eff := newFSeriesPipeline(t, f)

	_, err := p.Reconcile(context.Background(), eff, []parameter.ID{parameter.FCompressorStatus})
	require.NoError(t, err)
	v, _ := store.Get("status_compressor")
	assert.Equal(t, "Running", v)
}

func TestReconcileResetForgetsState(t *testing.T) {
	f := &scriptedFetcher{responses: [][]parameter.DataPoint{
		{point(parameter.FSetPointTempF730, 21.5), point(parameter.FOutdoorTemp, 2.0)},
		{},
	}}
	p, store, eff := newFSeriesPipeline(t, f)
	ctx := context.Background()

	_, err := p.Reconcile(ctx, eff, []parameter.ID{parameter.FSetPointTemp1, parameter.FSetPointTempF730, parameter.FOutdoorTemp})
	require.NoError(t, err)
	p.Reset()
	assert.Equal(t, SetpointPrimary, p.SetpointMode())

	_, err = p.Reconcile(ctx, eff, []parameter.ID{parameter.FOutdoorTemp})
	require.NoError(t, err)
	assert.False(t, store.Exists("measure_temperature.outdoor"))
}
