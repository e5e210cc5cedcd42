package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
)

const (
	upowerName   = "org.freedesktop.UPower"
	upowerDevice = "/org/freedesktop/UPower/devices/DisplayDevice"
	deviceIface  = "org.freedesktop.UPower.Device"
)

// UpowerConfig holds the battery module's options.
type UpowerConfig struct {
	// UrgentBelow marks the cell urgent under this percentage.
	UrgentBelow int `mapstructure:"urgent_below"`
}

func DefaultUpowerConfig() UpowerConfig {
	return UpowerConfig{UrgentBelow: 10}
}

// UpowerPayload is the battery module's update payload.
type UpowerPayload struct {
	Percent     int
	State       string // charging, discharging, full, empty, unknown
	TimeToEmpty time.Duration
	TimeToFull  time.Duration
}

type upower struct {
	cfg  UpowerConfig
	deps Deps
}

func newUpower(def config.ModuleDef, deps Deps) (Instance, error) {
	cfg := DefaultUpowerConfig()
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	u := &upower{cfg: cfg, deps: deps}
	return Instance{Controller: u, Widget: WidgetFunc(u.render)}, nil
}

func (u *upower) Kind() string { return "upower" }

func (u *upower) Run(ctx context.Context, emit func(Update)) error {
	sup := &Supervisor{Kind: "upower", Logger: u.deps.Logger, Emit: emit}
	return sup.Run(ctx, u.session(emit))
}

func (u *upower) session(emit func(Update)) Session {
	return func(ctx context.Context, ready func()) error {
		conn, err := dbus.ConnectSystemBus()
		if err != nil {
			return err
		}
		defer conn.Close()

		var hasOwner bool
		busObj := conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")
		if err := busObj.CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, upowerName).Store(&hasOwner); err != nil {
			return err
		}
		if !hasOwner {
			return fmt.Errorf("%w: upower not on the system bus", ErrUnavailable)
		}

		if err := conn.AddMatchSignalContext(ctx,
			dbus.WithMatchObjectPath(upowerDevice),
			dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
			dbus.WithMatchMember("PropertiesChanged"),
		); err != nil {
			return err
		}
		signals := make(chan *dbus.Signal, 16)
		conn.Signal(signals)
		ready()

		if err := u.query(ctx, conn, emit); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-signals:
				if !ok {
					return fmt.Errorf("upower signal stream closed")
				}
				if err := u.query(ctx, conn, emit); err != nil {
					return err
				}
			}
		}
	}
}

func (u *upower) query(ctx context.Context, conn *dbus.Conn, emit func(Update)) error {
	dev := conn.Object(upowerName, upowerDevice)

	var percent float64
	if v, err := dev.GetProperty(deviceIface + ".Percentage"); err != nil {
		return err
	} else if err := v.Store(&percent); err != nil {
		return err
	}

	var state uint32
	if v, err := dev.GetProperty(deviceIface + ".State"); err != nil {
		return err
	} else if err := v.Store(&state); err != nil {
		return err
	}

	p := UpowerPayload{
		Percent: int(percent + 0.5),
		State:   batteryState(state),
	}
	if v, err := dev.GetProperty(deviceIface + ".TimeToEmpty"); err == nil {
		var secs int64
		if v.Store(&secs) == nil {
			p.TimeToEmpty = time.Duration(secs) * time.Second
		}
	}
	if v, err := dev.GetProperty(deviceIface + ".TimeToFull"); err == nil {
		var secs int64
		if v.Store(&secs) == nil {
			p.TimeToFull = time.Duration(secs) * time.Second
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	emit(Update{Kind: "upower", State: StateUpdating, Payload: p})
	return nil
}

// batteryState maps UPower device states to display names.
func batteryState(s uint32) string {
	switch s {
	case 1, 5:
		return "charging"
	case 2, 6:
		return "discharging"
	case 3:
		return "empty"
	case 4:
		return "full"
	default:
		return "unknown"
	}
}

func (u *upower) render(up Update) Cell {
	p, ok := up.Payload.(UpowerPayload)
	if !ok {
		return defaultRender(up)
	}
	switch p.State {
	case "charging":
		return Cell{Text: fmt.Sprintf("chr %d%%", p.Percent)}
	case "full":
		return Cell{Text: "bat full"}
	}
	urgent := p.State == "discharging" && p.Percent <= u.cfg.UrgentBelow
	return Cell{Text: fmt.Sprintf("bat %d%%", p.Percent), Urgent: urgent}
}
