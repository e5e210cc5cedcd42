// Package sysinfo gathers system metrics via gopsutil: CPU, memory,
// disk, load, network throughput, temperature and uptime. The sysinfo
// module renders snapshots directly, and the feed exports the same
// numbers as sysinfo.* variables so any label can interpolate them.
package sysinfo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"
)

// Config controls collection.
type Config struct {
	// Interval is the polling cadence.
	Interval time.Duration

	// MonitoredMounts restricts disk collection to these mount paths.
	// Empty means the root filesystem only.
	MonitoredMounts []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        5 * time.Second,
		MonitoredMounts: []string{"/"},
	}
}

// CPUMetrics holds aggregate CPU utilisation.
type CPUMetrics struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// MemoryMetrics holds physical and swap memory statistics.
type MemoryMetrics struct {
	Total           uint64  `json:"total"`
	Used            uint64  `json:"used"`
	Available       uint64  `json:"available"`
	SwapTotal       uint64  `json:"swap_total"`
	SwapUsed        uint64  `json:"swap_used"`
	UsedPercent     float64 `json:"used_percent"`
	SwapUsedPercent float64 `json:"swap_used_percent"`
}

// DiskMetrics holds usage data for a single mount point.
type DiskMetrics struct {
	Path        string  `json:"path"`
	FSType      string  `json:"fstype"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// LoadMetrics holds system load averages.
type LoadMetrics struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// NetMetrics holds aggregate throughput rates computed between two
// collections.
type NetMetrics struct {
	RxPerSec float64 `json:"rx_per_sec"`
	TxPerSec float64 `json:"tx_per_sec"`
}

// Metrics is the aggregate snapshot returned by Collect.
type Metrics struct {
	CPU       CPUMetrics    `json:"cpu"`
	Memory    MemoryMetrics `json:"memory"`
	Disks     []DiskMetrics `json:"disks"`
	Load      LoadMetrics   `json:"load"`
	Net       NetMetrics    `json:"net"`
	TempC     float64       `json:"temp_c"`
	Uptime    time.Duration `json:"uptime"`
	Timestamp time.Time     `json:"timestamp"`
}

// Collector gathers metrics. It keeps the previous network counters so
// consecutive collections yield rates.
type Collector struct {
	cfg      Config
	lastNet  *gopsnet.IOCountersStat
	lastTime time.Time
}

// New creates a Collector. Zero-value fields in cfg are replaced with
// defaults.
func New(cfg Config) *Collector {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if len(cfg.MonitoredMounts) == 0 {
		cfg.MonitoredMounts = def.MonitoredMounts
	}
	return &Collector{cfg: cfg}
}

// Interval returns the polling cadence.
func (c *Collector) Interval() time.Duration {
	return c.cfg.Interval
}

// Collect gathers all metrics. Sub-collectors that fail are skipped so
// the caller always gets as much data as possible; the error aggregates
// what went wrong, and is non-nil only when everything failed.
func (c *Collector) Collect(ctx context.Context) (Metrics, error) {
	m := Metrics{Timestamp: time.Now()}
	var errs []string

	parts := []struct {
		name string
		fn   func(context.Context, *Metrics) error
	}{
		{"cpu", c.collectCPU},
		{"memory", c.collectMemory},
		{"disk", c.collectDisk},
		{"load", c.collectLoad},
		{"net", c.collectNet},
		{"temp", c.collectTemp},
		{"uptime", c.collectUptime},
	}
	for _, p := range parts {
		if ctx.Err() != nil {
			return m, ctx.Err()
		}
		if err := p.fn(ctx, &m); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.name, err))
		}
	}

	if len(errs) == len(parts) {
		return m, fmt.Errorf("all sub-collectors failed: %s", strings.Join(errs, "; "))
	}
	return m, nil
}

func (c *Collector) collectCPU(ctx context.Context, m *Metrics) error {
	// interval=0 takes an instantaneous snapshot against the last call.
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return err
	}
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return err
	}
	if len(total) > 0 {
		m.CPU.Total = total[0]
	}
	m.CPU.Count = counts
	return nil
}

func (c *Collector) collectMemory(ctx context.Context, m *Metrics) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return err
	}
	m.Memory.Total = vm.Total
	m.Memory.Used = vm.Used
	m.Memory.Available = vm.Available
	m.Memory.UsedPercent = vm.UsedPercent

	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		// Swap might not exist; not fatal within memory.
		return nil
	}
	m.Memory.SwapTotal = sw.Total
	m.Memory.SwapUsed = sw.Used
	if sw.Total > 0 {
		m.Memory.SwapUsedPercent = sw.UsedPercent
	}
	return nil
}

func (c *Collector) collectDisk(ctx context.Context, m *Metrics) error {
	var lastErr error
	for _, mp := range c.cfg.MonitoredMounts {
		usage, err := disk.UsageWithContext(ctx, mp)
		if err != nil {
			lastErr = err
			continue
		}
		m.Disks = append(m.Disks, DiskMetrics{
			Path:        usage.Path,
			FSType:      usage.Fstype,
			Total:       usage.Total,
			Used:        usage.Used,
			Free:        usage.Free,
			UsedPercent: usage.UsedPercent,
		})
	}
	if len(m.Disks) == 0 {
		return lastErr
	}
	return nil
}

func (c *Collector) collectLoad(ctx context.Context, m *Metrics) error {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return err
	}
	m.Load = LoadMetrics{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	return nil
}

func (c *Collector) collectNet(ctx context.Context, m *Metrics) error {
	counters, err := gopsnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return err
	}
	if len(counters) == 0 {
		return fmt.Errorf("no counters")
	}
	now := time.Now()
	cur := counters[0]
	if c.lastNet != nil {
		dt := now.Sub(c.lastTime).Seconds()
		if dt > 0 {
			m.Net.RxPerSec = float64(cur.BytesRecv-c.lastNet.BytesRecv) / dt
			m.Net.TxPerSec = float64(cur.BytesSent-c.lastNet.BytesSent) / dt
		}
	}
	c.lastNet = &cur
	c.lastTime = now
	return nil
}

func (c *Collector) collectTemp(ctx context.Context, m *Metrics) error {
	stats, err := sensors.TemperaturesWithContext(ctx)
	if err != nil {
		return err
	}
	for _, s := range stats {
		if s.Temperature > m.TempC {
			m.TempC = s.Temperature
		}
	}
	return nil
}

func (c *Collector) collectUptime(ctx context.Context, m *Metrics) error {
	up, err := host.UptimeWithContext(ctx)
	if err != nil {
		return err
	}
	m.Uptime = time.Duration(up) * time.Second
	return nil
}
