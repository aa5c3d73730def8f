package memopt

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// adminCeiling converts a runaway deep clean into a failure.
const adminCeiling = 20 * time.Minute

const deepCleanScriptPath = "/tmp/macos_optimizer_deep_clean.sh"

// The curated maintenance script. Each step echoes an OK:/ERR: marker so the
// supervisor can report per-stage outcomes.
const deepCleanScript = `#!/bin/bash
set -euo pipefail

run() {
  local label="$1"; shift
  if "$@"; then
    echo "OK:${label}"
  else
    echo "ERR:${label}"
  fi
}

run PURGE purge
run DNS dscacheutil -flushcache
run MDNS killall -HUP mDNSResponder
run CLEAR_SYS_CACHE bash -lc 'rm -rf /Library/Caches/* && rm -rf /private/var/folders/*/C/*'
run CLEAR_SWAP bash -lc 'rm -f /private/var/vm/swapfile*'
run LSREGISTER "/System/Library/Frameworks/CoreServices.framework/Frameworks/LaunchServices.framework/Support/lsregister" -kill -r -domain local -domain system -domain user
run ATSUTIL atsutil databases -remove
run KEXT_TOUCH touch /System/Library/Extensions
run KEXTCACHE kextcache -update-volume /
run PERIODIC periodic daily weekly monthly

run RESTART_Dock killall -KILL Dock
run RESTART_Finder killall -KILL Finder
run RESTART_SysUIS killall -KILL SystemUIServer
run RESTART_cfprefsd killall cfprefsd
`

// adminStages maps script markers to the state-machine stages surfaced in
// progress events.
var adminStages = []struct {
	stage   string
	markers []string
}{
	{"disk_cache", []string{"PURGE", "CLEAR_SYS_CACHE", "CLEAR_SWAP", "ATSUTIL", "PERIODIC"}},
	{"network_cache", []string{"DNS", "MDNS"}},
	{"kext_cache", []string{"KEXT_TOUCH", "KEXTCACHE", "LSREGISTER"}},
	{"restart_services", []string{"RESTART_Dock", "RESTART_Finder", "RESTART_SysUIS", "RESTART_cfprefsd"}},
}

// spawnAdminChild starts the elevated script through osascript. Swapped in
// tests.
var spawnAdminChild = func() (*exec.Cmd, *bytes.Buffer, error) {
	if err := os.WriteFile(deepCleanScriptPath, []byte(deepCleanScript), 0o755); err != nil {
		return nil, nil, fmt.Errorf("write deep clean script: %w", err)
	}

	applescript := fmt.Sprintf(`with timeout of 1200 seconds
  do shell script "%s" with administrator privileges
end timeout`, deepCleanScriptPath)

	cmd := exec.Command("osascript", "-e", applescript)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start admin child: %w", err)
	}
	return cmd, &stdout, nil
}

// OptimizeAdmin runs the elevated deep clean as a supervised child process.
// The registry holds the child handle so cancel kills it; overrunning the
// wall-clock ceiling fails the operation.
func (o *Optimizer) OptimizeAdmin(op *ops.Operation) (*types.MemoryOptimizationResult, error) {
	before, err := o.stats.MemoryStats()
	if err != nil {
		return nil, fmt.Errorf("memory stats unavailable: %w", err)
	}

	o.reg.EmitProgress(op, 5, "requesting administrator access", "auth", nil, nil)

	cmd, output, err := spawnAdminChild()
	if err != nil {
		return nil, err
	}
	op.AttachChild(cmd)
	defer os.Remove(deepCleanScriptPath)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var runErr error
	select {
	case runErr = <-waitErr:
	case <-time.After(adminCeiling):
		op.DetachChild()
		_ = cmd.Process.Kill()
		<-waitErr
		return nil, fmt.Errorf("deep clean exceeded %s ceiling", adminCeiling)
	case <-op.Token().Done():
		// Registry cancel already killed the child; collect its exit.
		<-waitErr
		op.DetachChild()
		return nil, ops.ErrCanceled
	}
	op.DetachChild()

	stdout := output.String()
	if authDenied(stdout) {
		return nil, fmt.Errorf("administrator authorization denied")
	}
	if op.Canceled() {
		return nil, ops.ErrCanceled
	}

	performed := collectStageResults(op, o.reg, stdout)
	if runErr != nil {
		// Unclean exit without a cancel is a failure, not a cancellation.
		return nil, fmt.Errorf("deep clean script failed: %w", runErr)
	}

	o.reg.EmitProgress(op, 95, "deep clean finished", "complete", nil, nil)

	after, err := o.stats.MemoryStats()
	if err != nil {
		after = before
	}

	result := buildResult("admin", before, after, performed)
	logger.Info().Uint64("freed", result.FreedMemory).Msg("admin deep clean complete")
	return result, nil
}

func authDenied(output string) bool {
	return strings.Contains(output, "User canceled") ||
		strings.Contains(output, "canceled") ||
		strings.Contains(output, "-128")
}

// collectStageResults walks the marker output in stage order, emitting a
// progress frame per stage and returning the human-readable step list.
func collectStageResults(op *ops.Operation, reg *ops.Registry, output string) []string {
	var performed []string
	stageCount := len(adminStages)

	for i, stage := range adminStages {
		okCount := 0
		for _, marker := range stage.markers {
			if strings.Contains(output, "OK:"+marker) {
				okCount++
			}
		}
		if okCount > 0 {
			performed = append(performed, fmt.Sprintf("%s (%d/%d steps)", stage.stage, okCount, len(stage.markers)))
		}
		progress := 10 + float64(i+1)/float64(stageCount)*80
		reg.EmitProgress(op, progress, stage.stage, stage.stage, nil, nil)
	}
	return performed
}
