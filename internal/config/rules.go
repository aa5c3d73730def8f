package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

// LoadRules reads the category rule file: a JSON array of CategoryRule.
// Rules load once at startup and are treated as immutable afterwards.
func LoadRules(path string) ([]types.CategoryRule, error) {
	data, err := os.ReadFile(utils.ExpandPath(os.ExpandEnv(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRules(), nil
		}
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var rules []types.CategoryRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return rules, nil
}

// DefaultRules is the built-in rule set used when no rule file is present.
func DefaultRules() []types.CategoryRule {
	return []types.CategoryRule{
		{
			Name:        "User Cache",
			Paths:       []string{"~/Library/Caches"},
			Safe:        true,
			Description: "Application caches that are rebuilt on demand",
		},
		{
			Name:        "User Temporary Files",
			Paths:       []string{"~/Library/Application Support/Caches", "/tmp"},
			Safe:        true,
			MinAgeDays:  1,
			Description: "Temporary files older than a day",
		},
		{
			Name:        "User Logs (30d+)",
			Paths:       []string{"~/Library/Logs"},
			Safe:        true,
			MinAgeDays:  30,
			Extensions:  []string{"log", "txt"},
			Description: "Old diagnostic logs",
		},
		{
			Name:        "Crash Reports (30d+)",
			Paths:       []string{"~/Library/Logs/DiagnosticReports"},
			Safe:        true,
			MinAgeDays:  30,
			Description: "Old crash and spin reports",
		},
		{
			Name:        "Old Downloads (90d+)",
			Paths:       []string{"~/Downloads"},
			Safe:        false,
			MinAgeDays:  90,
			Description: "Downloads untouched for three months",
		},
		{
			Name:        "Saved Application State (30d+)",
			Paths:       []string{"~/Library/Saved Application State"},
			Safe:        true,
			MinAgeDays:  30,
			Description: "Stale window restoration state",
		},
		{
			Name:        "System Cache (Advanced)",
			Paths:       []string{"/Library/Caches"},
			Safe:        false,
			Advanced:    true,
			Description: "System-wide caches; requires care",
		},
		{
			Name:        "iOS Backups (Advanced)",
			Paths:       []string{"~/Library/Application Support/MobileSync/Backup"},
			Safe:        false,
			Advanced:    true,
			Description: "Local device backups",
		},
	}
}
