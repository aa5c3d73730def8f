// Package cleaner implements the rule-driven storage cleaner: parallel
// filesystem scanning, safety classification, duplicate grouping, validation
// and Trash-first deletion.
package cleaner

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/store"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// scanBatchSize is the traversal batch boundary where cancellation is
// observed.
const scanBatchSize = 100

// Engine owns the cleaner state: rules, caches and the persistence handle.
type Engine struct {
	rules  []types.CategoryRule
	reg    *ops.Registry
	db     *store.Store
	probes Probes

	sizeCache *SizeCache
	metaCache *MetadataCache

	mu         sync.RWMutex
	lastReport *types.EnhancedCleaningReport
}

// Options tunes the engine caches.
type Options struct {
	SizeCacheEntries int
	SizeCacheTTL     time.Duration
}

func NewEngine(rules []types.CategoryRule, reg *ops.Registry, db *store.Store, probes Probes, opts Options) *Engine {
	if probes == nil {
		probes = NewNullProbes()
	}
	return &Engine{
		rules:     rules,
		reg:       reg,
		db:        db,
		probes:    probes,
		sizeCache: NewSizeCache(opts.SizeCacheEntries, opts.SizeCacheTTL),
		metaCache: NewMetadataCache(0, 0),
	}
}

// SizeCache exposes the directory-size cache for invalidation checks.
func (e *Engine) SizeCache() *SizeCache { return e.sizeCache }

// LastReport returns the most recent scan report, if any.
func (e *Engine) LastReport() *types.EnhancedCleaningReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastReport
}

func maxScanWorkers(numCPU int) int {
	if numCPU > 16 {
		return 16
	}
	if numCPU < 1 {
		return 1
	}
	return numCPU
}

type scanUnit struct {
	rule *activeRule
	root string
}

type candidate struct {
	path string
	meta fileMeta
	rule *activeRule
}

// ScanEnhanced walks every active rule in parallel, classifies the matches
// and assembles the enhanced report. Partial results are discarded on
// cancellation.
func (e *Engine) ScanEnhanced(op *ops.Operation) (*types.EnhancedCleaningReport, error) {
	now := time.Now()
	active, advancedNames := activateRules(e.rules)

	var units []scanUnit
	for i := range active {
		for _, root := range active[i].roots {
			units = append(units, scanUnit{rule: &active[i], root: root})
		}
	}

	e.reg.EmitProgress(op, 0, "enumerating rule paths", "scanning", nil, nil)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		out  []candidate
		seen sync.Map
	)

	var scanned, scannedBytes int64
	var tracker ops.ThroughputTracker
	var progressMu sync.Mutex

	sem := make(chan struct{}, maxScanWorkers(runtime.NumCPU()))
	for _, unit := range units {
		if op.Canceled() {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(u scanUnit) {
			defer wg.Done()
			defer func() { <-sem }()

			found := e.scanRoot(op, u, &seen, now)

			mu.Lock()
			out = append(out, found...)
			scanned += int64(len(found))
			for _, c := range found {
				scannedBytes += c.meta.Size
			}
			files, bytes := scanned, scannedBytes
			mu.Unlock()

			progressMu.Lock()
			eta, tput := tracker.Tick(files, bytes, int64(len(units))*64)
			progressMu.Unlock()
			e.reg.EmitProgress(op, 40, "scanning "+u.root, "scanning", eta, tput)
		}(unit)
	}
	wg.Wait()

	if op.Canceled() {
		return nil, ops.ErrCanceled
	}

	e.reg.EmitProgress(op, 60, "classifying candidates", "classifying", nil, nil)

	report := e.buildReport(op, out, advancedNames, now)
	if report == nil {
		return nil, ops.ErrCanceled
	}

	e.mu.Lock()
	e.lastReport = report
	e.mu.Unlock()

	logger.Info().
		Int("files", report.Base.FilesCount).
		Int64("bytes", report.Base.TotalSize).
		Int("duplicate_groups", len(report.DuplicateGroups)).
		Msg("scan complete")
	return report, nil
}

// scanRoot walks one rule root iteratively, observing cancellation at every
// 100-entry batch boundary.
func (e *Engine) scanRoot(op *ops.Operation, u scanUnit, seen *sync.Map, now time.Time) []candidate {
	var found []candidate
	entriesInBatch := 0

	rootDepth := strings.Count(filepath.Clean(u.root), string(filepath.Separator))

	stack := []string{u.root}
	for len(stack) > 0 {
		if op.Canceled() {
			return nil
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if u.rule.MaxDepth > 0 {
			depth := strings.Count(filepath.Clean(dir), string(filepath.Separator)) - rootDepth
			if depth >= u.rule.MaxDepth {
				continue
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			entriesInBatch++
			if entriesInBatch >= scanBatchSize {
				entriesInBatch = 0
				if op.Canceled() {
					return nil
				}
			}

			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, full)
				continue
			}

			meta, err := e.metaCache.Stat(full)
			if err != nil {
				continue
			}
			if !u.rule.matches(full, meta, now) {
				continue
			}

			key := canonical(full)
			if _, loaded := seen.LoadOrStore(key, struct{}{}); loaded {
				continue
			}
			found = append(found, candidate{path: full, meta: meta, rule: u.rule})
		}
	}
	return found
}

// buildReport runs safety analysis, auto-selection and duplicate detection
// over the raw candidates. Returns nil when canceled mid-way.
func (e *Engine) buildReport(op *ops.Operation, candidates []candidate, advancedNames []string, now time.Time) *types.EnhancedCleaningReport {
	report := &types.EnhancedCleaningReport{}

	categories := make(map[string]*types.CategorySummary)
	var scoreSum int

	for i, c := range candidates {
		if i%scanBatchSize == 0 && op.Canceled() {
			return nil
		}

		score, metrics, macos, safeToDelete := e.analyzeSafety(c.path, c.meta, *c.rule, now)
		file := types.EnhancedFile{
			CleanableFile: types.CleanableFile{
				Path:         c.path,
				Size:         c.meta.Size,
				Category:     c.rule.Name,
				Description:  c.rule.Description,
				LastModified: c.meta.ModTime,
				SafeToDelete: safeToDelete,
				SafetyScore:  score,
			},
			SafetyMetrics:   metrics,
			CacheValidation: true,
			Recommendation:  types.RecommendationForScore(score),
			MacOSStatus:     macos,
			ValidationState: types.ValidationPending,
		}
		evaluateAutoSelect(&file, now)

		report.EnhancedFiles = append(report.EnhancedFiles, file)
		report.Base.TotalSize += file.Size
		report.Base.FilesCount++
		scoreSum += score

		summary, ok := categories[c.rule.Name]
		if !ok {
			summary = &types.CategorySummary{Name: c.rule.Name, Advanced: c.rule.Advanced}
			categories[c.rule.Name] = summary
		}
		summary.FilesCount++
		summary.TotalSize += file.Size
		if file.AutoSelect {
			summary.AutoSelected++
		}

		switch file.Recommendation {
		case types.SafeToAutoDelete:
			report.SafetySummary.AutoDeletable++
		case types.SafeWithUserConfirmation:
			report.SafetySummary.NeedsConfirm++
		case types.ReviewRecommended:
			report.SafetySummary.NeedsReview++
		case types.CautionAdvised:
			report.SafetySummary.Caution++
		default:
			report.SafetySummary.DoNotDelete++
		}
	}

	if report.Base.FilesCount > 0 {
		report.SafetySummary.AverageScore = scoreSum / report.Base.FilesCount
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	advancedSet := make(map[string]struct{}, len(advancedNames))
	for _, name := range advancedNames {
		advancedSet[name] = struct{}{}
	}
	for _, name := range names {
		summary := categories[name]
		report.CategorySummaries = append(report.CategorySummaries, *summary)
		if summary.Advanced {
			report.Base.AdvancedCategories = append(report.Base.AdvancedCategories, name)
		} else {
			report.Base.Categories = append(report.Base.Categories, name)
		}
	}
	// Advanced rules with zero hits still surface for UI gating.
	for _, name := range advancedNames {
		if _, hit := categories[name]; !hit {
			report.Base.AdvancedCategories = append(report.Base.AdvancedCategories, name)
		}
	}
	sort.Strings(report.Base.AdvancedCategories)

	e.reg.EmitProgress(op, 85, "detecting duplicates", "duplicates", nil, nil)
	report.DuplicateGroups, report.DuplicateSpaceRecoverable = detectDuplicates(report.EnhancedFiles, op.Canceled)
	if op.Canceled() {
		return nil
	}

	return report
}
