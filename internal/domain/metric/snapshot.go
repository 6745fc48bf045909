// Package metric defines the athlete metric snapshot consumed by the
// achievement engine. Metric values are computed and stored elsewhere; the
// engine only reads them.
package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// Kind distinguishes numeric metrics from boolean ones.
type Kind uint8

const (
	// KindNumber is a numeric metric such as a skill score.
	KindNumber Kind = iota + 1
	// KindBool is a yes/no metric such as "completed certification".
	KindBool
)

// Value is a single stored metric value.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
}

// Number creates a numeric value.
func Number(v float64) Value { return Value{Kind: KindNumber, Num: v} }

// Flag creates a boolean value.
func Flag(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Numeric returns the value as a number. Booleans map to 1 and 0.
// ok is false for zero Values and non-finite numbers.
func (v Value) Numeric() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return 0, false
		}
		return v.Num, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the value as a plain JSON number or boolean.
// A zero Value encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return nil, fmt.Errorf("metric: non-finite value %v", v.Num)
		}
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// Snapshot is an immutable view of one athlete's metrics at evaluation time.
type Snapshot struct {
	studentID string
	values    map[string]Value
}

// NewSnapshot copies values into a new Snapshot.
func NewSnapshot(studentID string, values map[string]Value) Snapshot {
	copied := make(map[string]Value, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Snapshot{studentID: studentID, values: copied}
}

// StudentID returns the athlete the snapshot belongs to.
func (s Snapshot) StudentID() string { return s.studentID }

// Get returns the value stored under name.
func (s Snapshot) Get(name string) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Len returns the number of metrics in the snapshot.
func (s Snapshot) Len() int { return len(s.values) }

// Source supplies the current metric snapshot for an athlete.
// Absent metrics are simply missing from the snapshot, never an error.
type Source interface {
	Snapshot(ctx context.Context, studentID string) (Snapshot, error)
}
