package metric

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueNumeric(t *testing.T) {
	tests := []struct {
		name   string
		value  Value
		want   float64
		wantOK bool
	}{
		{"number", Number(42.5), 42.5, true},
		{"true flag", Flag(true), 1, true},
		{"false flag", Flag(false), 0, true},
		{"zero value", Value{}, 0, false},
		{"nan", Number(math.NaN()), 0, false},
		{"inf", Number(math.Inf(1)), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.value.Numeric()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotIsolatedFromInput(t *testing.T) {
	values := map[string]Value{"speed": Number(10)}
	snap := NewSnapshot("athlete-1", values)

	values["speed"] = Number(99)
	values["agility"] = Number(1)

	got, ok := snap.Get("speed")
	assert.True(t, ok)
	assert.Equal(t, 10.0, got.Num)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, "athlete-1", snap.StudentID())

	_, ok = snap.Get("agility")
	assert.False(t, ok)
}

func TestValueMarshalJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Value{
		"distance_km": Number(12.5),
		"certified":   Flag(true),
		"unset":       {},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"distance_km": 12.5, "certified": true, "unset": null}`, string(out))

	_, err = json.Marshal(Number(math.Inf(1)))
	assert.Error(t, err)
}
