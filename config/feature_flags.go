package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles for the engine.
// Each flag can be overridden with FEATURE_<NAME>=true|false.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// FeatureLinearCredit scores unmet rules with partial credit
	// proportional to how close the metric is to the threshold.
	FeatureLinearCredit = "linear_credit"

	// FeatureCatalogCache puts the Redis read-through cache in front of
	// the badge catalog.
	FeatureCatalogCache = "catalog_cache"

	// FeatureCoachAuthorization checks the coach roster before manual
	// awards and revocations.
	FeatureCoachAuthorization = "coach_authorization"
)

func defaultFeatures() []*Feature {
	return []*Feature{
		{
			Name:        FeatureLinearCredit,
			Description: "Partial credit for unmet threshold rules",
			Enabled:     false,
		},
		{
			Name:        FeatureCatalogCache,
			Description: "Redis read-through cache for badge definitions",
			Enabled:     true,
		},
		{
			Name:        FeatureCoachAuthorization,
			Description: "Restrict manual awards and revocations to the athlete's coaches",
			Enabled:     true,
		},
	}
}

// LoadFeatureFlags returns the default flags with environment overrides applied.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	for _, f := range defaultFeatures() {
		if val := os.Getenv(envName(f.Name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				f.Enabled = b
			}
		}
		ff.features[f.Name] = f
	}
	return ff
}

func envName(feature string) string {
	return "FEATURE_" + strings.ToUpper(feature)
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	return ok && f.Enabled
}

// Set toggles a feature at runtime.
func (ff *FeatureFlags) Set(name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if f, ok := ff.features[name]; ok {
		f.Enabled = enabled
		return
	}
	ff.features[name] = &Feature{Name: name, Enabled: enabled}
}

// List returns a copy of all features ordered by name.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
