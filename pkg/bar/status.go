package bar

import "time"

// ModuleStatus is one module's state as reported over IPC.
type ModuleStatus struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Region  string `json:"region"`
	State   string `json:"state"`
	Text    string `json:"text,omitempty"`
	Class   string `json:"class,omitempty"`
	Urgent  bool   `json:"urgent,omitempty"`
	Visible bool   `json:"visible"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Status is the bar.status IPC payload.
type Status struct {
	Monitor  string         `json:"monitor,omitempty"`
	Position string         `json:"position"`
	Theme    string         `json:"theme"`
	Hidden   bool           `json:"hidden"`
	Uptime   string         `json:"uptime,omitempty"`
	Popup    string         `json:"popup,omitempty"`
	Dropped  uint64         `json:"dropped_events,omitempty"`
	Modules  []ModuleStatus `json:"modules"`
}

// Snapshot reports the full bar state, including modules the surfaces
// are currently not drawing.
func (b *Bar) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		Monitor:  b.monitor,
		Position: b.cfg.Position,
		Theme:    b.theme.Name,
		Hidden:   b.hidden,
		Dropped:  b.bridge.Dropped(),
		Modules:  make([]ModuleStatus, 0, len(b.mods)),
	}
	if !b.started.IsZero() {
		st.Uptime = time.Since(b.started).Round(time.Second).String()
	}
	if p, ok := b.popups.Current(); ok {
		st.Popup = p.Owner
	}
	for _, ms := range b.mods {
		st.Modules = append(st.Modules, ModuleStatus{
			Name:    ms.name,
			Kind:    ms.def.Type,
			Region:  ms.region,
			State:   ms.last.State.String(),
			Text:    ms.cell.Text,
			Class:   ms.cell.Class,
			Urgent:  ms.cell.Urgent,
			Visible: !b.hidden && ms.shown && !ms.cell.Hidden,
			Tooltip: ms.tooltip,
		})
	}
	return st
}
