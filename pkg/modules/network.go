package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	gopsnet "github.com/shirou/gopsutil/v4/net"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/sysinfo"
)

// NetworkConfig holds the network module's options.
type NetworkConfig struct {
	// Interface pins the module to one NIC; empty picks the best
	// connected one.
	Interface string `mapstructure:"interface"`
}

// NetworkPayload is the network module's update payload.
type NetworkPayload struct {
	Interface string
	Kind      string // ethernet, wifi, vpn, other
	Up        bool
	RxPerSec  float64
	TxPerSec  float64
}

const defaultNetworkInterval = 3 * time.Second

type network struct {
	cfg      NetworkConfig
	interval time.Duration
	deps     Deps

	lastName string
	lastRx   uint64
	lastTx   uint64
	lastAt   time.Time
}

func newNetwork(def config.ModuleDef, deps Deps) (Instance, error) {
	var cfg NetworkConfig
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	interval := def.Interval.Duration
	if interval <= 0 {
		interval = defaultNetworkInterval
	}
	n := &network{cfg: cfg, interval: interval, deps: deps}
	return Instance{Controller: n, Widget: WidgetFunc(renderNetwork)}, nil
}

func (n *network) Kind() string { return "network" }

func (n *network) Run(ctx context.Context, emit func(Update)) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		p, err := n.sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.deps.logger().Warn("network sample failed", "err", err)
		} else {
			emit(Update{Kind: "network", State: StateUpdating, Payload: p})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (n *network) sample(ctx context.Context) (NetworkPayload, error) {
	ifaces, err := gopsnet.InterfacesWithContext(ctx)
	if err != nil {
		return NetworkPayload{}, err
	}
	name := n.cfg.Interface
	if name == "" {
		name = pickInterface(ifaces)
	}
	if name == "" {
		n.lastName = ""
		return NetworkPayload{}, nil
	}

	p := NetworkPayload{Interface: name, Kind: classifyNIC(name)}
	for _, iface := range ifaces {
		if iface.Name != name {
			continue
		}
		for _, flag := range iface.Flags {
			if flag == "up" {
				p.Up = true
			}
		}
	}
	if !p.Up {
		n.lastName = ""
		return p, nil
	}

	counters, err := gopsnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return NetworkPayload{}, err
	}
	now := time.Now()
	for _, c := range counters {
		if c.Name != name {
			continue
		}
		// Rates need two samples of the same NIC.
		if n.lastName == name && now.After(n.lastAt) {
			dt := now.Sub(n.lastAt).Seconds()
			p.RxPerSec = float64(c.BytesRecv-n.lastRx) / dt
			p.TxPerSec = float64(c.BytesSent-n.lastTx) / dt
		}
		n.lastName = name
		n.lastRx = c.BytesRecv
		n.lastTx = c.BytesSent
		n.lastAt = now
		break
	}
	return p, nil
}

// pickInterface chooses the NIC to show: connected, not loopback or
// tunnel, wired before wireless.
func pickInterface(ifaces []gopsnet.InterfaceStat) string {
	best := ""
	bestRank := -1
	for _, iface := range ifaces {
		up, loopback := false, false
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if !up || loopback || len(iface.Addrs) == 0 {
			continue
		}
		rank := 0
		switch classifyNIC(iface.Name) {
		case "ethernet":
			rank = 3
		case "wifi":
			rank = 2
		case "vpn":
			rank = 1
		}
		if rank > bestRank {
			best, bestRank = iface.Name, rank
		}
	}
	return best
}

// classifyNIC buckets an interface by its kernel naming convention.
func classifyNIC(name string) string {
	switch {
	case strings.HasPrefix(name, "en") || strings.HasPrefix(name, "eth"):
		return "ethernet"
	case strings.HasPrefix(name, "wl"):
		return "wifi"
	case strings.HasPrefix(name, "wg") || strings.HasPrefix(name, "tun") ||
		strings.HasPrefix(name, "tap") || strings.HasPrefix(name, "tailscale"):
		return "vpn"
	default:
		return "other"
	}
}

func renderNetwork(u Update) Cell {
	p, ok := u.Payload.(NetworkPayload)
	if !ok {
		return defaultRender(u)
	}
	if p.Interface == "" {
		return Cell{Text: "offline", Class: "offline", Urgent: true}
	}
	if !p.Up {
		return Cell{Text: p.Interface + " down", Class: "offline", Urgent: true}
	}
	return Cell{Text: fmt.Sprintf("%s ↓%s ↑%s",
		p.Interface, sysinfo.HumanRate(p.RxPerSec), sysinfo.HumanRate(p.TxPerSec))}
}
