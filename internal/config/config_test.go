package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Permits.Scan)
	assert.Equal(t, 2, cfg.Permits.Clean)
	assert.Equal(t, 1, cfg.Permits.MemOptimizeAdmin)
	assert.Equal(t, 5*time.Minute, cfg.Cleaner.SizeCacheTTL)
	assert.Equal(t, 1000, cfg.Cleaner.SizeCacheEntries)
	assert.False(t, cfg.Web.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
permits:
  scan: 3
web:
  enabled: true
  port: 9100
`), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Permits.Scan)
	assert.Equal(t, 2, cfg.Permits.Clean, "unset keys keep defaults")
	assert.True(t, cfg.Web.Enabled)
	assert.Equal(t, 9100, cfg.Web.Port)
}

func TestLoadRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`[
		{"name": "UserCaches", "paths": ["~/Library/Caches"], "safe": true, "min_age_days": 7},
		{"name": "Deep", "paths": ["/x"], "safe": false, "advanced": true, "max_depth": 2}
	]`), 0o644))

	rules, err := LoadRules(rulesPath)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "UserCaches", rules[0].Name)
	assert.Equal(t, 7, rules[0].MinAgeDays)
	assert.True(t, rules[1].Advanced)
	assert.Equal(t, 2, rules[1].MaxDepth)
}

func TestLoadRulesMissingFileUsesDefaults(t *testing.T) {
	rules, err := LoadRules("/no/such/rules.json")
	require.NoError(t, err)
	assert.NotEmpty(t, rules)
}

func TestLoadRulesBadJSON(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte("{broken"), 0o644))

	_, err := LoadRules(rulesPath)
	assert.Error(t, err)
}
