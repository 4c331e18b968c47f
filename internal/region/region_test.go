package region

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuiltin(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	us, ok := r.Lookup("US-East")
	require.True(t, ok)
	assert.Equal(t, 50.0, us.MaxDistanceKm)
	assert.Equal(t, 18, us.MinAge) // inherited from defaults
	assert.True(t, us.TranslationEnabled)
	assert.Equal(t, "America/New_York", us.Timezone)

	ae, ok := r.Lookup("mena-ae")
	require.True(t, ok)
	assert.Equal(t, 21, ae.MinAge)
	assert.True(t, ae.VerificationRequired)

	jp, _ := r.Lookup("apac-jp")
	assert.False(t, jp.TranslationEnabled)

	assert.Contains(t, r.Regions(), "uk")
}

func TestResolveMissingRegionFallsBackToDefaults(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	_, ok := r.Lookup("atlantis")
	assert.False(t, ok)

	rs := r.Resolve("atlantis")
	assert.Equal(t, 18, rs.MinAge)
	assert.Equal(t, "en-US", rs.DefaultLocale)
	assert.True(t, rs.TranslationEnabled)
	assert.False(t, rs.VerificationRequired)
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
regions:
  us-east:
    max_distance_km: 25
  br:
    min_age: 18
    max_distance_km: 70
    default_locale: pt-BR
`), 0o600))

	r, err := Load(path)
	require.NoError(t, err)

	us, _ := r.Lookup("us-east")
	assert.Equal(t, 25.0, us.MaxDistanceKm)
	// whole region replaced, omitted fields come from defaults
	assert.Equal(t, "en-US", us.DefaultLocale)
	assert.Equal(t, "UTC", us.Timezone)

	br, ok := r.Lookup("br")
	require.True(t, ok)
	assert.Equal(t, "pt-BR", br.DefaultLocale)

	_, ok = r.Lookup("uk")
	assert.True(t, ok, "built-in regions survive an override")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("regions:\n  x:\n    max_distance_km: -1\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("regions: [not, a, map]"))
	assert.Error(t, err)
}

func TestEffectiveRadius(t *testing.T) {
	r := NewRules(Defaults, map[string]RuleSet{
		"us-east": {MinAge: 25, MaxDistanceKm: 50},
		"nocap":   {MinAge: 18},
	})

	assert.Equal(t, 50.0, EffectiveRadius(r, "us-east", 500))
	assert.Equal(t, 10.0, EffectiveRadius(r, "us-east", 10))
	assert.Equal(t, 500.0, EffectiveRadius(r, "nowhere", 500))
	assert.Equal(t, 500.0, EffectiveRadius(r, "nocap", 500))
}
