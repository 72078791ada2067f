package consumer

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health is a point-in-time system load sample, used to bias the drop
// heuristic under sustained CPU or memory pressure (§4.7's dispatch policy
// is defined purely in terms of frame timing; this extends it with a
// system-load signal the teacher's system package also exposes).
type Health struct {
	CPUPercent float64
	MemPercent float64
}

// SampleHealth takes one CPU/RAM sample, grounded on the teacher's
// pkg/system.System gopsutil usage.
func SampleHealth(ctx context.Context) (Health, error) {
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Health{}, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Health{}, err
	}
	var cpuPct float64
	if len(cpuPercents) > 0 {
		cpuPct = cpuPercents[0]
	}
	return Health{CPUPercent: cpuPct, MemPercent: vm.UsedPercent}, nil
}

// Overloaded reports whether h crosses the thresholds at which the runtime
// should bias towards dropping frames rather than widening the queue.
func (h Health) Overloaded() bool {
	return h.CPUPercent > 90 || h.MemPercent > 90
}

// HealthSampler periodically samples system health on its own ticker,
// feeding Runtime's drop bias.
type HealthSampler struct {
	interval time.Duration
	latest   Health
}

// NewHealthSampler returns a sampler that refreshes every interval.
func NewHealthSampler(interval time.Duration) *HealthSampler {
	return &HealthSampler{interval: interval}
}

// Run samples health every interval until ctx is canceled.
func (hs *HealthSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h, err := SampleHealth(ctx); err == nil {
				hs.latest = h
			}
		}
	}
}

// Latest returns the most recent sample.
func (hs *HealthSampler) Latest() Health {
	return hs.latest
}
