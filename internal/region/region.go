// Package region resolves per-region policy: age floor, search radius cap,
// default locale and feature toggles. Rules are loaded once and never mutated.
package region

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var builtin []byte

// RuleSet is the immutable policy for one region.
type RuleSet struct {
	MinAge               int     `yaml:"min_age" json:"min_age"`
	MaxDistanceKm        float64 `yaml:"max_distance_km" json:"max_distance_km"`
	DefaultLocale        string  `yaml:"default_locale" json:"default_locale"`
	Timezone             string  `yaml:"timezone" json:"timezone"`
	TranslationEnabled   bool    `yaml:"translation_enabled" json:"translation_enabled"`
	VerificationRequired bool    `yaml:"verification_required" json:"verification_required"`
}

// Defaults applies to regions without an entry. Used when even the rule file
// carries no defaults block.
var Defaults = RuleSet{
	MinAge:             18,
	DefaultLocale:      "en-US",
	Timezone:           "UTC",
	TranslationEnabled: true,
}

// Provider looks up region rules.
type Provider interface {
	// Lookup returns the configured rules and whether the region has an entry.
	Lookup(region string) (RuleSet, bool)
	// Resolve returns the region's rules, or the defaults when it has none.
	Resolve(region string) RuleSet
}

// Rules is a static, read-only Provider.
type Rules struct {
	defaults RuleSet
	byRegion map[string]RuleSet
}

type ruleFile struct {
	Defaults *yaml.Node           `yaml:"defaults"`
	Regions  map[string]yaml.Node `yaml:"regions"`
}

// NewRules builds a provider from an in-memory table.
func NewRules(defaults RuleSet, byRegion map[string]RuleSet) *Rules {
	m := make(map[string]RuleSet, len(byRegion))
	for k, v := range byRegion {
		m[normalize(k)] = v
	}
	return &Rules{defaults: defaults, byRegion: m}
}

// Load reads the built-in rules and, if path is set, overlays the file at path.
// Regions in the file replace built-in regions of the same name; fields a region
// omits inherit from the effective defaults.
func Load(path string) (*Rules, error) {
	r := NewRules(Defaults, nil)
	if err := r.merge(builtin); err != nil {
		return nil, fmt.Errorf("built-in region rules: %w", err)
	}
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region rules %s: %w", path, err)
	}
	if err := r.merge(data); err != nil {
		return nil, fmt.Errorf("region rules %s: %w", path, err)
	}
	return r, nil
}

// Parse builds a provider from YAML alone, without the built-in rules.
func Parse(data []byte) (*Rules, error) {
	r := NewRules(Defaults, nil)
	if err := r.merge(data); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rules) merge(data []byte) error {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Defaults != nil {
		d := r.defaults
		if err := f.Defaults.Decode(&d); err != nil {
			return fmt.Errorf("defaults: %w", err)
		}
		r.defaults = d
	}
	for name, node := range f.Regions {
		rs := r.defaults
		if err := node.Decode(&rs); err != nil {
			return fmt.Errorf("region %q: %w", name, err)
		}
		if err := rs.validate(); err != nil {
			return fmt.Errorf("region %q: %w", name, err)
		}
		r.byRegion[normalize(name)] = rs
	}
	return nil
}

func (rs RuleSet) validate() error {
	if rs.MinAge < 0 {
		return fmt.Errorf("min_age must be >= 0")
	}
	if rs.MaxDistanceKm < 0 {
		return fmt.Errorf("max_distance_km must be >= 0")
	}
	return nil
}

func (r *Rules) Lookup(region string) (RuleSet, bool) {
	rs, ok := r.byRegion[normalize(region)]
	return rs, ok
}

func (r *Rules) Resolve(region string) RuleSet {
	if rs, ok := r.Lookup(region); ok {
		return rs
	}
	return r.defaults
}

// Regions lists configured region names, sorted.
func (r *Rules) Regions() []string {
	out := make([]string, 0, len(r.byRegion))
	for k := range r.byRegion {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EffectiveRadius caps the user's preferred radius by the region maximum.
// Without a region entry (or with no cap configured) the preference is used unmodified.
func EffectiveRadius(p Provider, region string, preferredKm float64) float64 {
	rs, ok := p.Lookup(region)
	if !ok || rs.MaxDistanceKm <= 0 {
		return preferredKm
	}
	if preferredKm < rs.MaxDistanceKm {
		return preferredKm
	}
	return rs.MaxDistanceKm
}

func normalize(region string) string {
	return strings.ToLower(strings.TrimSpace(region))
}
