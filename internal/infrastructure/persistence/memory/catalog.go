package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stridehub/achievement-engine/internal/domain/badge"
	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

// Catalog implements badge.Catalog and badge.Editor.
type Catalog struct {
	mu         sync.RWMutex
	badges     map[string]badge.Badge
	categories map[string]badge.Category
	reads      int
}

// NewCatalog creates a catalog holding badges.
func NewCatalog(badges ...badge.Badge) *Catalog {
	c := &Catalog{
		badges:     make(map[string]badge.Badge, len(badges)),
		categories: make(map[string]badge.Category),
	}
	for _, b := range badges {
		c.badges[b.ID] = cloneBadge(b)
	}
	return c
}

// Reads returns how many ListActive calls reached the catalog.
func (c *Catalog) Reads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reads
}

// ListActive implements badge.Catalog. Results are ordered by badge ID.
func (c *Catalog) ListActive(_ context.Context, sport string) ([]badge.Badge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++

	out := make([]badge.Badge, 0, len(c.badges))
	for _, b := range c.badges {
		if b.Active && b.AppliesTo(sport) {
			out = append(out, cloneBadge(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get implements badge.Catalog.
func (c *Catalog) Get(_ context.Context, id string) (*badge.Badge, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.badges[id]
	if !ok {
		return nil, shared.ErrBadgeNotFound
	}
	cp := cloneBadge(b)
	return &cp, nil
}

// Save implements badge.Editor.
func (c *Catalog) Save(_ context.Context, b badge.Badge) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.CategoryID != "" {
		if _, ok := c.categories[b.CategoryID]; !ok {
			return shared.ErrCategoryNotFound
		}
	}

	now := time.Now().UTC()
	if existing, ok := c.badges[b.ID]; ok {
		b.CreatedAt = existing.CreatedAt
	} else if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	c.badges[b.ID] = cloneBadge(b)
	return nil
}

// SetActive implements badge.Editor.
func (c *Catalog) SetActive(_ context.Context, id string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.badges[id]
	if !ok {
		return shared.ErrBadgeNotFound
	}
	b.Active = active
	b.UpdatedAt = time.Now().UTC()
	c.badges[id] = b
	return nil
}

// SaveCategory implements badge.Editor.
func (c *Catalog) SaveCategory(_ context.Context, cat badge.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories[cat.ID] = cat
	return nil
}

func cloneBadge(b badge.Badge) badge.Badge {
	b.Rules = append([]badge.Rule(nil), b.Rules...)
	return b
}
