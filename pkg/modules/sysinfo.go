package modules

import (
	"context"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/sysinfo"
)

// SysinfoConfig holds the sysinfo module's options.
type SysinfoConfig struct {
	// Format embeds snapshot tokens in braces, e.g.
	// "cpu {cpu_percent}% mem {memory_percent}%".
	Format string `mapstructure:"format"`
	// Mounts are the filesystems behind the disk_* tokens.
	Mounts []string `mapstructure:"mounts"`
}

func DefaultSysinfoConfig() SysinfoConfig {
	return SysinfoConfig{Format: "cpu {cpu_percent}% mem {memory_percent}%"}
}

type sysinfoModule struct {
	cfg       SysinfoConfig
	collector *sysinfo.Collector
	interval  time.Duration
	deps      Deps
}

func newSysinfo(def config.ModuleDef, deps Deps) (Instance, error) {
	cfg := DefaultSysinfoConfig()
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	ccfg := sysinfo.DefaultConfig()
	if def.Interval.Duration > 0 {
		ccfg.Interval = def.Interval.Duration
	}
	if len(cfg.Mounts) > 0 {
		ccfg.MonitoredMounts = cfg.Mounts
	}
	m := &sysinfoModule{
		cfg:       cfg,
		collector: sysinfo.New(ccfg),
		interval:  ccfg.Interval,
		deps:      deps,
	}
	return Instance{Controller: m}, nil
}

func (m *sysinfoModule) Kind() string { return "sysinfo" }

func (m *sysinfoModule) Run(ctx context.Context, emit func(Update)) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		snap, err := m.collector.Collect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.deps.logger().Warn("sysinfo snapshot failed", "err", err)
		} else {
			text := expandTokens(m.cfg.Format, snap.Tokens())
			emit(Update{Kind: "sysinfo", State: StateUpdating, Payload: text})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// expandTokens substitutes {name} references from tokens. Unknown
// names stay literal so a typo shows up on the bar instead of
// vanishing.
func expandTokens(format string, tokens map[string]string) string {
	var b strings.Builder
	b.Grow(len(format))
	for {
		open := strings.IndexByte(format, '{')
		if open < 0 {
			b.WriteString(format)
			return b.String()
		}
		end := strings.IndexByte(format[open:], '}')
		if end < 0 {
			b.WriteString(format)
			return b.String()
		}
		end += open
		b.WriteString(format[:open])
		name := format[open+1 : end]
		if v, ok := tokens[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(format[open : end+1])
		}
		format = format[end+1:]
	}
}
