package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/isdelr/sitepulse/internal/telemetry"
)

const (
	MetricHostCPU    = "host_cpu_percent"
	MetricHostMemory = "host_memory_percent"

	highCPUThreshold = 90.0
	alertCooldown    = 15 * time.Minute
	highCPUMessage   = "High CPU usage detected on the telemetry host"
)

// MetricRecorder stores a measurement.
type MetricRecorder interface {
	RecordMetric(name string, value float64, ctx telemetry.Context) telemetry.Event
}

// LogRecorder stores a log line.
type LogRecorder interface {
	Log(level, message string, data map[string]any, ctx telemetry.Context) telemetry.Event
}

// HostSampler periodically records the CPU and memory usage of the host the
// service runs on as performance measurements.
type HostSampler struct {
	metrics  MetricRecorder
	logs     LogRecorder
	interval time.Duration

	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
	now        func() time.Time

	done         chan bool
	stopOnce     sync.Once
	lastCPUAlert time.Time
}

// NewHostSampler creates a new HostSampler. logs may be nil.
func NewHostSampler(metrics MetricRecorder, logs LogRecorder, interval time.Duration) *HostSampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HostSampler{
		metrics:    metrics,
		logs:       logs,
		interval:   interval,
		cpuPercent: hostCPUPercent,
		memPercent: hostMemoryPercent,
		now:        time.Now,
		done:       make(chan bool),
	}
}

// Run starts the periodic sampling.
func (hs *HostSampler) Run() {
	log.Info().Dur("interval", hs.interval).Msg("Starting host sampler...")
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()

	// Run once immediately on start
	hs.sample()

	for {
		select {
		case <-hs.done:
			log.Info().Msg("Stopping host sampler.")
			return
		case <-ticker.C:
			hs.sample()
		}
	}
}

// Stop halts the periodic sampling.
func (hs *HostSampler) Stop() {
	hs.stopOnce.Do(func() { close(hs.done) })
}

func (hs *HostSampler) sample() {
	ctx := telemetry.Context{Component: "host"}

	if cpuPct, err := hs.cpuPercent(); err != nil {
		log.Warn().Err(err).Msg("HostSampler: Could not read CPU usage")
	} else {
		hs.metrics.RecordMetric(MetricHostCPU, cpuPct, ctx)
		hs.checkAndAlertForHighCPU(cpuPct)
	}

	if memPct, err := hs.memPercent(); err != nil {
		log.Warn().Err(err).Msg("HostSampler: Could not read memory usage")
	} else {
		hs.metrics.RecordMetric(MetricHostMemory, memPct, ctx)
	}
}

func (hs *HostSampler) checkAndAlertForHighCPU(pct float64) {
	if pct <= highCPUThreshold || hs.logs == nil {
		return
	}
	now := hs.now()
	if !hs.lastCPUAlert.IsZero() && now.Sub(hs.lastCPUAlert) < alertCooldown {
		return
	}
	hs.logs.Log("warn", highCPUMessage, map[string]any{"cpu_percent": pct}, telemetry.Context{Component: "host"})
	hs.lastCPUAlert = now
}

func hostCPUPercent() (float64, error) {
	pcts, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("no cpu readings")
	}
	return pcts[0], nil
}

func hostMemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
