package sysinfo

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/ironvar"
)

// Feed polls the collector and publishes each snapshot into the
// variable store under the sysinfo.* namespace. One feed runs per
// process, started before any bar comes up.
type Feed struct {
	collector *Collector
	vars      *ironvar.Store
	logger    *slog.Logger
}

// NewFeed builds a feed. logger may be nil.
func NewFeed(collector *Collector, vars *ironvar.Store, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Feed{collector: collector, vars: vars, logger: logger}
}

// Run polls until ctx is cancelled. The first collection happens
// immediately so variables are available by the time widgets render.
func (f *Feed) Run(ctx context.Context) {
	f.collect(ctx)
	ticker := time.NewTicker(f.collector.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.collect(ctx)
		}
	}
}

func (f *Feed) collect(ctx context.Context) {
	m, err := f.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("sysinfo collection failed", "error", err)
		return
	}
	f.publish(m)
}

// publish exports one snapshot.
func (f *Feed) publish(m Metrics) {
	for name, value := range m.Tokens() {
		if err := f.vars.Set("sysinfo."+name, value); err != nil {
			f.logger.Warn("sysinfo variable rejected", "name", name, "error", err)
		}
	}
}
