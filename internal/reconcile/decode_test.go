package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

func TestResolveEnum(t *testing.T) {
	cands := []parameter.EnumCandidate{
		{Value: 10, Label: "low"},
		{Value: 20, Label: "medium"},
		{Value: 30, Label: "high"},
	}
	tests := []struct {
		name    string
		raw     float64
		tenths  bool
		cands   []parameter.EnumCandidate
		want    string
		matched bool
	}{
		{name: "exact", raw: 20, cands: cands, want: "medium", matched: true},
		{name: "rounded", raw: 9.6, cands: cands, want: "low", matched: true},
		{name: "closest", raw: 24, cands: cands, want: "medium", matched: true},
		{name: "closest far away", raw: 500, cands: cands, want: "high", matched: true},
		{name: "tenths", raw: 2.0, tenths: true, cands: cands, want: "medium", matched: true},
		{name: "no candidates", raw: 7.5, want: "7.5", matched: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := ResolveEnum(tt.raw, tt.cands, tt.tenths)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestDecode(t *testing.T) {
	num := parameter.Descriptor{ID: 1, Kind: parameter.KindNumber, Attribute: "n", Scale: 0.1}
	boolean := parameter.Descriptor{ID: 2, Kind: parameter.KindBoolean, Attribute: "b"}
	str := parameter.Descriptor{ID: 3, Kind: parameter.KindString, Attribute: "s"}
	enum := parameter.Descriptor{ID: 4, Kind: parameter.KindEnum, Attribute: "e"}

	v, err := decode(num, parameter.DataPoint{ID: 1, Value: json.Number("215")})
	require.NoError(t, err)
	assert.InDelta(t, 21.5, v, 1e-9)

	v, err = decode(boolean, parameter.DataPoint{ID: 2, Value: 0.0})
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = decode(boolean, parameter.DataPoint{ID: 2, Value: "true"})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = decode(str, parameter.DataPoint{ID: 3, Value: 12.0})
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	v, err = decode(enum, parameter.DataPoint{ID: 4, Value: "standby"})
	require.NoError(t, err)
	assert.Equal(t, "standby", v)

	_, err = decode(num, parameter.DataPoint{ID: 1, Value: map[string]any{}})
	assert.ErrorIs(t, err, ErrDecode)

	_, err = decode(boolean, parameter.DataPoint{ID: 2, Value: "maybe"})
	assert.ErrorIs(t, err, ErrDecode)

	_, err = decode(str, parameter.DataPoint{ID: 3})
	assert.ErrorIs(t, err, ErrDecode)
}

func TestCapitalizeLabel(t *testing.T) {
	assert.Equal(t, "", CapitalizeLabel(""))
	assert.Equal(t, "Auto", CapitalizeLabel("auto"))
	assert.Equal(t, "Ängsläge", CapitalizeLabel("ängsläge"))
}
