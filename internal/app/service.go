// Package app exposes the backend command surface: every RPC-style command
// the GUI shell can issue. Long-running commands return synchronously while
// streaming progress events keyed by their operation id.
package app

import (
	"errors"
	"fmt"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/cleaner"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/memopt"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/metrics"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/store"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// ErrScanRequired is returned by report accessors before the first scan.
var ErrScanRequired = errors.New("no scan report available; run a scan first")

// Service wires the subsystems behind the command surface.
type Service struct {
	Registry  *ops.Registry
	Sampler   *metrics.Sampler
	Cleaner   *cleaner.Engine
	Optimizer *memopt.Optimizer
	DB        *store.Store
}

func New(reg *ops.Registry, sampler *metrics.Sampler, eng *cleaner.Engine, opt *memopt.Optimizer, db *store.Store) *Service {
	return &Service{
		Registry:  reg,
		Sampler:   sampler,
		Cleaner:   eng,
		Optimizer: opt,
		DB:        db,
	}
}

// --- Telemetry ---

func (s *Service) GetMetricsSnapshot() metrics.MetricsSnapshot {
	return s.Sampler.Snapshot()
}

func (s *Service) GetSystemInfo() (metrics.SystemInfo, error) {
	return metrics.CollectSystemInfo()
}

func (s *Service) GetMemoryStats() (metrics.MemoryStats, error) {
	return s.Sampler.MemoryStats()
}

// GetCPUInfo returns current total usage and core count.
func (s *Service) GetCPUInfo() (totalUsage float64, coreCount int, err error) {
	snap := s.Sampler.Snapshot()
	if snap.Cpu.Value == nil {
		return 0, 0, fmt.Errorf("cpu sample unavailable: %s", snap.Cpu.Error)
	}
	return snap.Cpu.Value.TotalUsage, snap.Cpu.Value.CoreCount, nil
}

func (s *Service) GetDisks() ([]metrics.DiskStats, error) {
	snap := s.Sampler.Snapshot()
	if snap.Disks.Value == nil {
		return nil, fmt.Errorf("disk sample unavailable: %s", snap.Disks.Error)
	}
	return *snap.Disks.Value, nil
}

func (s *Service) GetProcesses() ([]metrics.ProcessInfo, error) {
	return metrics.Processes()
}

func (s *Service) KillProcess(pid int32) error {
	return metrics.KillProcess(pid)
}

// --- Operations ---

// CancelOperation flips the token for id. Unknown ids are a no-op.
func (s *Service) CancelOperation(id string) bool {
	return s.Registry.Cancel(id)
}

func (s *Service) GetOperationState(id string) (ops.State, bool) {
	return s.Registry.Get(id)
}

// --- Storage cleaner ---

// ScanCleanableFilesEnhanced runs a full enhanced scan as a tracked
// operation.
func (s *Service) ScanCleanableFilesEnhanced() (*types.EnhancedCleaningReport, error) {
	op := s.Registry.Register(ops.ClassScan, true)
	if err := s.Registry.Acquire(op); err != nil {
		s.Registry.CompleteCanceled(op, "scan canceled before start")
		return nil, err
	}
	s.Registry.EmitStart(op, nil)

	report, err := s.Cleaner.ScanEnhanced(op)
	switch {
	case errors.Is(err, ops.ErrCanceled):
		s.Registry.CompleteCanceled(op, "scan canceled")
		return nil, err
	case err != nil:
		s.Registry.Fail(op, err.Error())
		return nil, err
	}

	s.Registry.EmitComplete(op, true, false, fmt.Sprintf("found %d cleanable files", report.Base.FilesCount))
	return report, nil
}

// GetCleanableFiles returns the flat candidate list from the last scan.
func (s *Service) GetCleanableFiles() ([]types.CleanableFile, error) {
	report := s.Cleaner.LastReport()
	if report == nil {
		return nil, ErrScanRequired
	}
	files := make([]types.CleanableFile, 0, len(report.EnhancedFiles))
	for _, f := range report.EnhancedFiles {
		files = append(files, f.CleanableFile)
	}
	return files, nil
}

// GetAutoSelectableFiles returns only the candidates that passed every
// auto-selection constraint.
func (s *Service) GetAutoSelectableFiles() ([]types.CleanableFile, error) {
	report := s.Cleaner.LastReport()
	if report == nil {
		return nil, ErrScanRequired
	}
	var files []types.CleanableFile
	for _, f := range report.EnhancedFiles {
		if f.AutoSelect {
			files = append(files, f.CleanableFile)
		}
	}
	return files, nil
}

// GetFilesBySafety filters the last scan by minimum safety score.
func (s *Service) GetFilesBySafety(minSafetyScore int) ([]types.CleanableFile, error) {
	report := s.Cleaner.LastReport()
	if report == nil {
		return nil, ErrScanRequired
	}
	var files []types.CleanableFile
	for _, f := range report.EnhancedFiles {
		if f.SafetyScore >= minSafetyScore {
			files = append(files, f.CleanableFile)
		}
	}
	return files, nil
}

// PrepareDeletionEnhanced validates the request set and creates a recovery
// point for the accepted entries.
func (s *Service) PrepareDeletionEnhanced(filePaths []string) (types.ValidationResult, string, error) {
	return s.Cleaner.PrepareDeletion(filePaths)
}

// CleanFilesEnhanced validates and deletes the request set as a tracked
// operation.
func (s *Service) CleanFilesEnhanced(filePaths []string, allowLowSafety bool) (*types.CleaningResult, error) {
	validation, recoveryID, err := s.Cleaner.PrepareDeletion(filePaths)
	if err != nil {
		return nil, err
	}

	op := s.Registry.Register(ops.ClassClean, true)
	if err := s.Registry.Acquire(op); err != nil {
		s.Registry.CompleteCanceled(op, "clean canceled before start")
		return nil, err
	}
	s.Registry.EmitStart(op, nil)

	result, err := s.Cleaner.Clean(op, validation.Accepted, allowLowSafety, recoveryID)
	// Validation rejects surface as failed files with their block reason.
	for _, issue := range validation.Errors {
		result.FailedFiles = append(result.FailedFiles, types.FailedFile{
			Path: issue.Path, Reason: issue.Message,
		})
	}
	result.FailedCount = len(result.FailedFiles)

	switch {
	case errors.Is(err, ops.ErrCanceled):
		s.Registry.CompleteCanceled(op, "clean canceled")
		return result, err
	case err != nil:
		s.Registry.Fail(op, err.Error())
		return result, err
	}

	s.Registry.EmitComplete(op, true, false,
		fmt.Sprintf("deleted %d files, %d failed", result.DeletedCount, result.FailedCount))
	return result, nil
}

// EmptyTrash empties the user's Trash as a tracked operation.
func (s *Service) EmptyTrash() (freedBytes int64, itemsRemoved int, err error) {
	op := s.Registry.Register(ops.ClassEmptyTrash, true)
	if err := s.Registry.Acquire(op); err != nil {
		s.Registry.CompleteCanceled(op, "empty trash canceled before start")
		return 0, 0, err
	}
	s.Registry.EmitStart(op, nil)

	freed, removed, err := s.Cleaner.EmptyTrash(op)
	switch {
	case errors.Is(err, ops.ErrCanceled):
		s.Registry.CompleteCanceled(op, "empty trash canceled")
		return freed, removed, err
	case err != nil:
		s.Registry.Fail(op, err.Error())
		return freed, removed, err
	}

	s.Registry.EmitComplete(op, true, false, fmt.Sprintf("removed %d items", removed))
	return freed, removed, nil
}

// RestoreFromTrash moves named entries out of the Trash.
func (s *Service) RestoreFromTrash(fileNames []string) (int, error) {
	return s.Cleaner.RestoreFromTrash(fileNames)
}

// RecordUserFeedback stores a user decision about a candidate.
func (s *Service) RecordUserFeedback(filePath string, action types.FeedbackAction) error {
	switch action {
	case types.FeedbackSelected, types.FeedbackDeselected, types.FeedbackIgnored:
	default:
		return fmt.Errorf("unknown feedback action %q", action)
	}
	return s.DB.RecordFeedback(filePath, action)
}

// --- Memory optimizer ---

// OptimizeMemory runs the non-admin reclamation pipeline.
func (s *Service) OptimizeMemory() (*types.MemoryOptimizationResult, error) {
	op := s.Registry.Register(ops.ClassMemOptimize, true)
	if err := s.Registry.Acquire(op); err != nil {
		s.Registry.CompleteCanceled(op, "optimization canceled before start")
		return nil, err
	}
	s.Registry.EmitStart(op, nil)

	result, err := s.Optimizer.Optimize(op)
	switch {
	case errors.Is(err, ops.ErrCanceled):
		s.Registry.CompleteCanceled(op, "optimization canceled")
		return nil, err
	case err != nil:
		s.Registry.Fail(op, err.Error())
		return nil, err
	}

	s.Registry.EmitComplete(op, true, false, result.Message)
	return result, nil
}

// OptimizeMemoryAdmin runs the elevated deep clean.
func (s *Service) OptimizeMemoryAdmin() (*types.MemoryOptimizationResult, error) {
	op := s.Registry.Register(ops.ClassMemOptimizeAdmin, true)
	if err := s.Registry.Acquire(op); err != nil {
		s.Registry.CompleteCanceled(op, "deep clean canceled before start")
		return nil, err
	}
	s.Registry.EmitStart(op, nil)

	result, err := s.Optimizer.OptimizeAdmin(op)
	switch {
	case errors.Is(err, ops.ErrCanceled):
		s.Registry.CompleteCanceled(op, "deep clean canceled")
		return nil, err
	case err != nil:
		s.Registry.Fail(op, err.Error())
		return nil, err
	}

	s.Registry.EmitComplete(op, true, false, result.Message)
	return result, nil
}
