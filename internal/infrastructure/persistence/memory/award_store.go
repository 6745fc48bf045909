// Package memory provides in-process implementations of the engine's
// storage boundaries. They back the unit tests and local dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stridehub/achievement-engine/internal/domain/award"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

type pairKey struct {
	studentID string
	badgeID   string
}

// AwardStore implements award.Store. Each pair is serialized by its own
// mutex and writes of a pair operation become visible only on success.
type AwardStore struct {
	mu     sync.RWMutex
	awards map[string]award.Award
	byPair map[pairKey]string
	events []award.Event

	locksMu sync.Mutex
	locks   map[pairKey]*sync.Mutex

	conflicts int
}

// NewAwardStore creates an empty store.
func NewAwardStore() *AwardStore {
	return &AwardStore{
		awards: make(map[string]award.Award),
		byPair: make(map[pairKey]string),
		locks:  make(map[pairKey]*sync.Mutex),
	}
}

// InjectConflicts makes the next n pair operations fail with
// shared.ErrConcurrentModification, as if another writer won the race.
func (s *AwardStore) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

func (s *AwardStore) pairLock(k pairKey) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[k]
	if !ok {
		m = &sync.Mutex{}
		s.locks[k] = m
	}
	return m
}

// WithinPair implements award.Store.
func (s *AwardStore) WithinPair(ctx context.Context, studentID, badgeID string, fn func(tx award.PairTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := pairKey{studentID: studentID, badgeID: badgeID}
	lock := s.pairLock(k)
	lock.Lock()
	defer lock.Unlock()

	tx := &pairTx{store: s, key: k}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *AwardStore) commit(tx *pairTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conflicts > 0 {
		s.conflicts--
		return shared.ErrConcurrentModification
	}

	if tx.inserted != nil {
		if _, exists := s.byPair[tx.key]; exists {
			return shared.ErrConcurrentModification
		}
		s.awards[tx.inserted.ID] = *tx.inserted
		s.byPair[tx.key] = tx.inserted.ID
	}
	if tx.updated != nil {
		if _, exists := s.awards[tx.updated.ID]; !exists {
			return shared.ErrAwardNotFound
		}
		s.awards[tx.updated.ID] = *tx.updated
	}
	s.events = append(s.events, tx.events...)
	return nil
}

// Get implements award.Store.
func (s *AwardStore) Get(_ context.Context, awardID string) (*award.Award, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.awards[awardID]
	if !ok {
		return nil, shared.ErrAwardNotFound
	}
	return &a, nil
}

// ListActive implements award.Store.
func (s *AwardStore) ListActive(ctx context.Context, studentID string) ([]award.Award, error) {
	all, err := s.ListAll(ctx, studentID)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, a := range all {
		if !a.IsRevoked {
			active = append(active, a)
		}
	}
	return active, nil
}

// ListAll implements award.Store.
func (s *AwardStore) ListAll(_ context.Context, studentID string) ([]award.Award, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []award.Award
	for _, a := range s.awards {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].AwardedAt.Before(out[j].AwardedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

// ListEvents implements award.Store.
func (s *AwardStore) ListEvents(_ context.Context, studentID string) ([]award.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []award.Event
	for _, e := range s.events {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

// pairTx stages the writes of one pair operation.
type pairTx struct {
	store    *AwardStore
	key      pairKey
	inserted *award.Award
	updated  *award.Award
	events   []award.Event
}

func (t *pairTx) Load(_ context.Context) (*award.Award, error) {
	if t.inserted != nil {
		a := *t.inserted
		return &a, nil
	}
	if t.updated != nil {
		a := *t.updated
		return &a, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	id, ok := t.store.byPair[t.key]
	if !ok {
		return nil, nil
	}
	a := t.store.awards[id]
	return &a, nil
}

func (t *pairTx) Insert(_ context.Context, a *award.Award) error {
	cp := *a
	t.inserted = &cp
	return nil
}

func (t *pairTx) Update(_ context.Context, a *award.Award) error {
	cp := *a
	if t.inserted != nil && t.inserted.ID == cp.ID {
		t.inserted = &cp
		return nil
	}
	t.updated = &cp
	return nil
}

func (t *pairTx) AppendEvent(_ context.Context, e award.Event) error {
	t.events = append(t.events, e)
	return nil
}
