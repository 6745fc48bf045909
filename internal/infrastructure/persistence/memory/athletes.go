package memory

import (
	"context"
	"sync"

	"github.com/stridehub/achievement-engine/internal/domain/metric"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

// Athletes is an in-memory athlete directory and metric source.
type Athletes struct {
	mu      sync.RWMutex
	sports  map[string]string
	metrics map[string]map[string]metric.Value
}

// NewAthletes creates an empty directory.
func NewAthletes() *Athletes {
	return &Athletes{
		sports:  make(map[string]string),
		metrics: make(map[string]map[string]metric.Value),
	}
}

// Add registers an athlete practising sport.
func (a *Athletes) Add(studentID, sport string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sports[studentID] = sport
	if _, ok := a.metrics[studentID]; !ok {
		a.metrics[studentID] = make(map[string]metric.Value)
	}
}

// SetMetric stores a metric value for an athlete.
func (a *Athletes) SetMetric(studentID, name string, v metric.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.metrics[studentID]
	if !ok {
		m = make(map[string]metric.Value)
		a.metrics[studentID] = m
	}
	m[name] = v
}

// SportOf returns the athlete's sport.
func (a *Athletes) SportOf(_ context.Context, studentID string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sport, ok := a.sports[studentID]
	if !ok {
		return "", shared.ErrAthleteNotFound
	}
	return sport, nil
}

// Snapshot implements metric.Source.
func (a *Athletes) Snapshot(_ context.Context, studentID string) (metric.Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return metric.NewSnapshot(studentID, a.metrics[studentID]), nil
}
