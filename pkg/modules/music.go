package modules

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/mpd"
)

// MusicConfig holds the music module's options.
type MusicConfig struct {
	// Addr overrides MPD_HOST/MPD_PORT.
	Addr string `mapstructure:"addr"`
	// MaxLength truncates the rendered track line, 0 for no limit.
	MaxLength int `mapstructure:"max_length"`
}

func DefaultMusicConfig() MusicConfig {
	return MusicConfig{MaxLength: 50}
}

// MusicPayload is the music module's update payload.
type MusicPayload struct {
	State    string // play, pause, stop
	Title    string
	Artist   string
	Album    string
	Elapsed  time.Duration
	Duration time.Duration
}

type music struct {
	cfg  MusicConfig
	deps Deps
}

func newMusic(def config.ModuleDef, deps Deps) (Instance, error) {
	cfg := DefaultMusicConfig()
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	if cfg.Addr == "" {
		cfg.Addr = mpd.DefaultAddr()
	}
	m := &music{cfg: cfg, deps: deps}
	return Instance{Controller: m, Widget: WidgetFunc(m.render)}, nil
}

func (m *music) Kind() string { return "music" }

func (m *music) Run(ctx context.Context, emit func(Update)) error {
	sup := &Supervisor{Kind: "music", Logger: m.deps.Logger, Emit: emit}
	return sup.Run(ctx, m.session(emit))
}

// session holds one MPD connection through a status/idle loop. Idle
// returns whenever the player or mixer changes; every wakeup emits a
// fresh snapshot.
func (m *music) session(emit func(Update)) Session {
	return func(ctx context.Context, ready func()) error {
		c, err := mpd.Dial(ctx, m.cfg.Addr)
		if err != nil {
			return err
		}
		defer c.Close()
		ready()

		for {
			if err := m.snapshot(ctx, c, emit); err != nil {
				return err
			}
			if _, err := c.Idle(ctx, "player", "mixer"); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (m *music) snapshot(ctx context.Context, c *mpd.Client, emit func(Update)) error {
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	p := MusicPayload{
		State:    st.State,
		Elapsed:  st.Elapsed,
		Duration: st.Duration,
	}
	if st.State != "stop" {
		song, err := c.CurrentSong(ctx)
		if err != nil {
			return err
		}
		p.Title = song.Title
		p.Artist = song.Artist
		p.Album = song.Album
		if p.Title == "" {
			p.Title = song.File
		}
	}
	m.publishDetails(p)
	emit(Update{Kind: "music", State: StateUpdating, Payload: p})
	return nil
}

// publishDetails keeps the music.details variable current so the
// popup template has something to show.
func (m *music) publishDetails(p MusicPayload) {
	if m.deps.Vars == nil {
		return
	}
	details := "stopped"
	if p.State == "play" || p.State == "pause" {
		details = fmt.Sprintf("%s\n%s\n%s", p.Title, p.Artist, p.Album)
	}
	if err := m.deps.Vars.Set("music.details", details); err != nil {
		m.deps.logger().Warn("music variable rejected", "err", err)
	}
}

// Click drives playback with short-lived connections so the session's
// idle loop keeps its own connection to itself.
func (m *music) Click(ctx context.Context, btn Button) error {
	c, err := mpd.Dial(ctx, m.cfg.Addr)
	if err != nil {
		return err
	}
	defer c.Close()
	switch btn {
	case ButtonLeft:
		return c.TogglePause(ctx)
	case ScrollUp:
		return c.Previous(ctx)
	case ScrollDown:
		return c.Next(ctx)
	default:
		return nil
	}
}

func (m *music) render(u Update) Cell {
	p, ok := u.Payload.(MusicPayload)
	if !ok {
		return defaultRender(u)
	}
	switch p.State {
	case "play", "pause":
		mark := "▶"
		if p.State == "pause" {
			mark = "⏸"
		}
		line := p.Title
		if p.Artist != "" {
			line = fmt.Sprintf("%s - %s", p.Artist, p.Title)
		}
		return Cell{Text: mark + " " + truncate(line, m.cfg.MaxLength)}
	default:
		return Cell{Hidden: true}
	}
}

// PopupTemplate exposes track details for the popup manager.
func (m *music) PopupTemplate() string {
	return "#music.details"
}
