package cleaner

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

// activeRule is a CategoryRule whose paths were expanded and filtered to the
// ones that exist right now. A rule with no extant paths is inactive.
type activeRule struct {
	types.CategoryRule
	roots []string
}

// activateRules expands ~ in every rule path and drops the missing ones.
// Advanced rules with zero extant paths still surface in the report's
// advanced category list, so they are returned separately.
func activateRules(rules []types.CategoryRule) (active []activeRule, advancedNames []string) {
	for _, rule := range rules {
		var roots []string
		for _, p := range rule.Paths {
			expanded := utils.ExpandPath(p)
			if utils.PathExists(expanded) {
				roots = append(roots, expanded)
			}
		}
		if rule.Advanced {
			advancedNames = append(advancedNames, rule.Name)
		}
		if len(roots) == 0 {
			continue
		}
		active = append(active, activeRule{CategoryRule: rule, roots: roots})
	}
	return active, advancedNames
}

// matches applies the rule predicates to one scanned entry. Age uses
// creation time for Desktop/Downloads locations and mtime elsewhere.
func (r *activeRule) matches(path string, meta fileMeta, now time.Time) bool {
	if meta.IsDir {
		return false
	}

	if len(r.Extensions) > 0 {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		found := false
		for _, want := range r.Extensions {
			if ext == strings.ToLower(strings.TrimPrefix(want, ".")) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	lower := strings.ToLower(path)
	if len(r.RequireSubpaths) > 0 {
		found := false
		for _, sub := range r.RequireSubpaths {
			if strings.Contains(lower, strings.ToLower(sub)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, exclude := range r.Excludes {
		if strings.Contains(lower, strings.ToLower(exclude)) {
			return false
		}
	}

	if r.MinAgeDays > 0 {
		ref := meta.ModTime
		if isCreationTimePath(path) {
			ref = meta.Created
		}
		if now.Sub(ref) < time.Duration(r.MinAgeDays)*24*time.Hour {
			return false
		}
	}

	if r.MinSizeKB > 0 && meta.Size < r.MinSizeKB*1024 {
		return false
	}

	return true
}
