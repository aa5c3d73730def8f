package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPressureStateFor(t *testing.T) {
	tests := []struct {
		pressure float64
		want     PressureState
	}{
		{0, PressureNormal},
		{74.9, PressureNormal},
		{75, PressureWarning},
		{89.9, PressureWarning},
		{90, PressureCritical},
		{100, PressureCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PressureStateFor(tt.pressure), "pressure %.1f", tt.pressure)
	}
}

func TestEnvelopeFresh(t *testing.T) {
	collected := time.Now().Add(-2 * time.Second)
	env := Fresh(CpuStats{TotalUsage: 42}, collected, 15*time.Millisecond)

	require.NotNil(t, env.Value)
	assert.Equal(t, 42.0, env.Value.TotalUsage)
	assert.Empty(t, env.Error)
	assert.Equal(t, int64(15), env.LatencyMS)

	aged := env.withAge(time.Now())
	assert.GreaterOrEqual(t, aged.AgeMS, int64(2000))
}

func TestEnvelopeErrored(t *testing.T) {
	env := Errored[MemoryStats](errors.New("source down"), time.Now(), time.Millisecond)
	assert.Nil(t, env.Value)
	assert.Equal(t, "source down", env.Error)
}

func TestEnvelopeAgeNeverNegative(t *testing.T) {
	env := Fresh(UptimeStats{}, time.Now().Add(time.Minute), 0)
	assert.Equal(t, int64(0), env.withAge(time.Now()).AgeMS)
}

const vmStatFixture = `Mach Virtual Memory Statistics: (page size of 16384 bytes)
Pages free:                               100000.
Pages active:                             200000.
Pages inactive:                           150000.
Pages speculative:                         10000.
Pages wired down:                          80000.
Pages occupied by compressor:              40000.
`

func TestParseVMStat(t *testing.T) {
	stats, err := parseVMStat([]byte(vmStatFixture))
	require.NoError(t, err)

	const page = uint64(16384)
	assert.Equal(t, 100000*page, stats.Free)
	assert.Equal(t, 200000*page, stats.Active)
	assert.Equal(t, 150000*page, stats.Inactive)
	assert.Equal(t, 80000*page, stats.Wired)
	assert.Equal(t, 40000*page, stats.Compressed)

	wantTotal := (100000 + 200000 + 150000 + 10000 + 80000 + 40000) * page
	assert.Equal(t, wantTotal, stats.Total)
	assert.Equal(t, (100000+150000)*page, stats.Available)
	assert.NotEmpty(t, stats.PressureState)
	assert.GreaterOrEqual(t, stats.PressurePercent, 0.0)
	assert.LessOrEqual(t, stats.PressurePercent, 100.0)
}

func TestParseVMStatGarbage(t *testing.T) {
	_, err := parseVMStat([]byte("not vm_stat output"))
	assert.Error(t, err)
}

func TestMemoryStatsFromVMStatRunner(t *testing.T) {
	orig := vmStatRunner
	defer func() { vmStatRunner = orig }()

	vmStatRunner = func() ([]byte, error) { return []byte(vmStatFixture), nil }
	stats, err := memoryStatsFromVMStat()
	require.NoError(t, err)
	assert.NotZero(t, stats.Total)

	vmStatRunner = func() ([]byte, error) { return nil, errors.New("exec failed") }
	_, err = memoryStatsFromVMStat()
	assert.Error(t, err)
}

func TestIsCriticalProcess(t *testing.T) {
	assert.True(t, IsCriticalProcess("kernel_task"))
	assert.True(t, IsCriticalProcess("mds_stores"))
	assert.True(t, IsCriticalProcess("WindowServer"))
	assert.False(t, IsCriticalProcess("Safari"))
	assert.False(t, IsCriticalProcess("my-app"))
}

func TestIsSystemMount(t *testing.T) {
	assert.True(t, isSystemMount("/"))
	assert.True(t, isSystemMount("/System/Volumes/Data"))
	assert.False(t, isSystemMount("/Volumes/External"))
}

func TestCollectWithDeadlineTimeout(t *testing.T) {
	env := collectWithDeadline("slow", func() (int, error) {
		time.Sleep(3 * time.Second)
		return 0, nil
	})
	assert.Nil(t, env.Value)
	assert.Contains(t, env.Error, "deadline exceeded")
}

func TestCollectWithDeadlineSuccess(t *testing.T) {
	env := collectWithDeadline("fast", func() (int, error) { return 7, nil })
	require.NotNil(t, env.Value)
	assert.Equal(t, 7, *env.Value)
}

func TestSnapshotCollectedAtMonotone(t *testing.T) {
	s := NewSampler()

	s.collectUptime()
	first := s.Snapshot().Uptime.CollectedAt
	time.Sleep(5 * time.Millisecond)
	s.collectUptime()
	second := s.Snapshot().Uptime.CollectedAt

	assert.False(t, second.Before(first), "collected_at went backwards within a source")
}
