package metrics

import (
	"github.com/shirou/gopsutil/v3/cpu"
)

const cpuSmoothingSamples = 12

// cpuSamplerState keeps the rolling window that smooths per-tick jitter.
type cpuSamplerState struct {
	readings []float64
}

func newCPUSamplerState() *cpuSamplerState {
	return &cpuSamplerState{readings: make([]float64, 0, cpuSmoothingSamples)}
}

func (s *cpuSamplerState) collect() (CpuStats, error) {
	perCore, err := cpu.Percent(0, true)
	if err != nil {
		return CpuStats{}, err
	}
	total, err := cpu.Percent(0, false)
	if err != nil {
		return CpuStats{}, err
	}

	usage := 0.0
	if len(total) > 0 {
		usage = total[0]
	}

	s.readings = append(s.readings, usage)
	if len(s.readings) > cpuSmoothingSamples {
		s.readings = s.readings[1:]
	}
	var sum float64
	for _, v := range s.readings {
		sum += v
	}
	smoothed := sum / float64(len(s.readings))

	return CpuStats{
		TotalUsage:   smoothed,
		PerCoreUsage: perCore,
		CoreCount:    len(perCore),
	}, nil
}
