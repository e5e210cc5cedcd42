package sysinfo

import (
	"context"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/ironvar"
)

func TestCollectReturnsData(t *testing.T) {
	c := New(Config{})
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if m.CPU.Count <= 0 {
		t.Errorf("cpu count = %d", m.CPU.Count)
	}
	if m.Memory.Total == 0 {
		t.Error("memory total = 0")
	}
	if m.Timestamp.IsZero() {
		t.Error("timestamp unset")
	}
}

func TestCollectComputesNetRates(t *testing.T) {
	c := New(Config{})
	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// Rates can be zero on an idle box but must never be negative.
	if m.Net.RxPerSec < 0 || m.Net.TxPerSec < 0 {
		t.Errorf("negative rates: %+v", m.Net)
	}
}

func TestCollectCancelled(t *testing.T) {
	c := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Collect(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestFeedPublishesVariables(t *testing.T) {
	vars := ironvar.NewStore(nil)
	feed := NewFeed(New(Config{Interval: time.Hour}), vars, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		feed.Run(ctx)
		close(done)
	}()

	deadline := time.After(10 * time.Second)
	for {
		if _, ok := vars.Get("sysinfo.cpu_percent"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sysinfo.cpu_percent never published")
		case <-time.After(10 * time.Millisecond):
		}
	}

	for _, name := range []string{
		"sysinfo.memory_percent",
		"sysinfo.memory_total",
		"sysinfo.uptime",
	} {
		if v, ok := vars.Get(name); !ok || v == "" {
			t.Errorf("%s = %q, %v", name, v, ok)
		}
	}
	if got := vars.List("sysinfo"); len(got) < 10 {
		t.Errorf("only %d sysinfo vars published", len(got))
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop on cancel")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.in); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{150 * time.Second, "2m 30s"},
		{90 * time.Minute, "1h 30m"},
		{76 * time.Hour, "3d 4h"},
	}
	for _, tt := range tests {
		if got := HumanDuration(tt.in); got != tt.want {
			t.Errorf("HumanDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
