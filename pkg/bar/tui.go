package bar

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/pulsebar/pkg/modules"
	"gitlab.com/tinyland/lab/pulsebar/pkg/popup"
	"gitlab.com/tinyland/lab/pulsebar/pkg/theme"
)

// Messages into the update loop. Everything the controllers produce
// arrives as updatesMsg; the loop drains the bridge, never the
// controllers directly.
type updatesMsg struct{}

type popupChangedMsg struct{}

type clickDoneMsg struct {
	module string
	err    error
}

// waitUpdates blocks until the bridge has events.
func waitUpdates(b *Bar) tea.Cmd {
	return func() tea.Msg {
		<-b.Notify()
		return updatesMsg{}
	}
}

// waitPopup blocks until the popup arena changes.
func waitPopup(p *popup.Manager) tea.Cmd {
	return func() tea.Msg {
		<-p.Changed()
		return popupChangedMsg{}
	}
}

// clickCmd dispatches a pointer action off the update loop; click
// handlers may spawn processes or talk to sockets.
func clickCmd(b *Bar, name string, btn modules.Button) tea.Cmd {
	return func() tea.Msg {
		return clickDoneMsg{module: name, err: b.Click(context.Background(), name, btn)}
	}
}

// slotRect is a laid-out slot: its cell extent on the bar row, used
// for mouse hit testing and popup anchoring.
type slotRect struct {
	Slot
	x, w int
}

// Model is the interactive terminal surface: one bar strip plus an
// optional popup box, bubbletea-driven.
type Model struct {
	bar *Bar

	width  int
	height int
	focus  int

	line  string
	rects []slotRect

	popupBody  viewport.Model
	popupOpen  bool
	popupOwner string

	quitting bool
}

// NewModel builds the surface for a started bar.
func NewModel(b *Bar) Model {
	return Model{
		bar:       b,
		focus:     -1,
		popupBody: viewport.New(0, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitUpdates(m.bar), waitPopup(m.bar.Popups()))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.relayout()
		m.refreshPopup()

	case updatesMsg:
		_, more := m.bar.Drain()
		m.relayout()
		cmds = append(cmds, waitUpdates(m.bar))
		if more {
			cmds = append(cmds, func() tea.Msg { return updatesMsg{} })
		}

	case popupChangedMsg:
		m.refreshPopup()
		m.relayout()
		cmds = append(cmds, waitPopup(m.bar.Popups()))

	case clickDoneMsg:
		if msg.err != nil {
			m.bar.logger.Warn("click failed", "module", msg.module, "error", msg.err)
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab", "right":
			m.moveFocus(1)
			m.relayout()
		case "shift+tab", "left":
			m.moveFocus(-1)
			m.relayout()
		case "enter":
			if r, ok := m.focused(); ok {
				cmds = append(cmds, clickCmd(m.bar, r.Name, modules.ButtonLeft))
			}
		case "p":
			if r, ok := m.focused(); ok {
				if id, ok := m.bar.Popups().IDFor(r.Name); ok {
					_, _ = m.bar.Popups().Toggle(id)
				}
			}
		case "esc":
			m.bar.Popups().Close()
		default:
			if m.popupOpen {
				var cmd tea.Cmd
				m.popupBody, cmd = m.popupBody.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			if btn, ok := mouseButton(msg.Button); ok {
				if msg.Y == m.barRow() {
					if r, ok := m.hit(msg.X); ok {
						m.focus = r.index
						m.relayout()
						cmds = append(cmds, clickCmd(m.bar, r.Name, btn))
					}
				} else if m.popupOpen && btn == modules.ButtonLeft {
					m.bar.Popups().Close()
				}
			}
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.height <= 1 {
		return m.line
	}
	rows := make([]string, m.height)
	pop := m.popupLines()
	gap := m.bar.PopupGap()

	if popup.SideFor(m.bar.Position()) == popup.SideAbove {
		barRow := m.height - 1
		rows[barRow] = m.line
		first := barRow - gap - len(pop)
		for i, l := range pop {
			if r := first + i; r >= 0 && r < barRow {
				rows[r] = l
			}
		}
	} else {
		rows[0] = m.line
		first := 1 + gap
		for i, l := range pop {
			if r := first + i; r < m.height {
				rows[r] = l
			}
		}
	}
	return strings.Join(rows, "\n")
}

// barRow is the row the strip occupies on screen.
func (m Model) barRow() int {
	if m.bar.Position() == "bottom" {
		return m.height - 1
	}
	return 0
}

type hitRect struct {
	slotRect
	index int
}

// hit maps an x cell coordinate on the bar row to a slot.
func (m Model) hit(x int) (hitRect, bool) {
	for i, r := range m.rects {
		if x >= r.x && x < r.x+r.w {
			return hitRect{slotRect: r, index: i}, true
		}
	}
	return hitRect{}, false
}

func (m Model) focused() (slotRect, bool) {
	if m.focus < 0 || m.focus >= len(m.rects) {
		return slotRect{}, false
	}
	return m.rects[m.focus], true
}

// moveFocus steps focus through the visible slots, wrapping at the
// ends the way the region order reads.
func (m *Model) moveFocus(delta int) {
	n := len(m.rects)
	if n == 0 {
		m.focus = -1
		return
	}
	if m.focus < 0 {
		if delta >= 0 {
			m.focus = 0
		} else {
			m.focus = n - 1
		}
		return
	}
	m.focus = (m.focus + delta + n) % n
}

// relayout rebuilds the styled strip and the hit rectangles. Called
// after every drain so View stays a pure string assembly.
func (m *Model) relayout() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	styles := m.bar.Styles()
	sepText := m.bar.Separator()
	sepW := lipgloss.Width(sepText)

	slots := m.bar.Slots()
	var start, center, end []Slot
	for _, s := range slots {
		switch s.Region {
		case RegionCenter:
			center = append(center, s)
		case RegionEnd:
			end = append(end, s)
		default:
			start = append(start, s)
		}
	}
	if m.focus >= len(slots) {
		m.focus = len(slots) - 1
	}

	startW := stripWidth(start, sepW)
	centerW := stripWidth(center, sepW)
	endW := stripWidth(end, sepW)

	centerX := (width - centerW) / 2
	if centerW > 0 && startW > 0 && centerX < startW+sepW {
		centerX = startW + sepW
	}
	endX := width - endW
	rightOf := startW
	if centerW > 0 {
		rightOf = centerX + centerW
	}
	if endW > 0 && rightOf > 0 && endX < rightOf+sepW {
		endX = rightOf + sepW
	}

	m.rects = m.rects[:0]
	var sb strings.Builder
	x := 0
	appendStrip := func(slots []Slot, baseX int) {
		if len(slots) == 0 {
			return
		}
		if baseX > x {
			sb.WriteString(styles.Bar.Render(strings.Repeat(" ", baseX-x)))
			x = baseX
		}
		for i, s := range slots {
			if i > 0 {
				sb.WriteString(styles.Separator.Render(sepText))
				x += sepW
			}
			st := slotStyle(styles, s)
			if len(m.rects) == m.focus {
				st = st.Underline(true)
			}
			w := lipgloss.Width(s.Text)
			m.rects = append(m.rects, slotRect{Slot: s, x: x, w: w})
			sb.WriteString(st.Render(s.Text))
			x += w
		}
	}
	appendStrip(start, 0)
	appendStrip(center, centerX)
	appendStrip(end, endX)
	if x < width {
		sb.WriteString(styles.Bar.Render(strings.Repeat(" ", width-x)))
	}
	m.line = sb.String()
}

func stripWidth(slots []Slot, sepW int) int {
	w := 0
	for i, s := range slots {
		if i > 0 {
			w += sepW
		}
		w += lipgloss.Width(s.Text)
	}
	return w
}

func slotStyle(styles theme.Styles, s Slot) lipgloss.Style {
	if s.Urgent {
		return styles.Urgent
	}
	return styles.Class(s.Class)
}

// refreshPopup syncs the viewport with the arena's open popup, sizing
// it to fit between the bar and the opposite screen edge.
func (m *Model) refreshPopup() {
	p, ok := m.bar.Popups().Current()
	m.popupOpen = ok
	if !ok {
		m.popupOwner = ""
		return
	}
	m.popupOwner = p.Owner

	w := p.W
	if maxW := m.width - 4; maxW > 0 && w > maxW {
		w = maxW
	}
	if w < 1 {
		w = 1
	}
	// Bar row, gap rows and the two border rows stay outside the body.
	avail := m.height - 1 - m.bar.PopupGap() - 2
	h := p.H
	if avail > 0 && h > avail {
		h = avail
	}
	if h < 1 {
		h = 1
	}
	m.popupBody.Width = w
	m.popupBody.Height = h
	m.popupBody.SetContent(strings.Join(p.Lines, "\n"))
}

// popupLines renders the open popup as screen rows, anchored under the
// owning slot and clamped to the bar width.
func (m *Model) popupLines() []string {
	if !m.popupOpen {
		return nil
	}
	box := m.bar.Styles().Popup.Render(m.popupBody.View())
	boxW := lipgloss.Width(box)

	var anchor popup.Anchor
	for _, r := range m.rects {
		if r.Name == m.popupOwner {
			anchor = popup.Anchor{X: r.x, Width: r.w}
			break
		}
	}
	px := popup.PlaceX(anchor, boxW, m.width)
	if px < 0 {
		px = 0
	}
	prefix := strings.Repeat(" ", px)
	lines := strings.Split(box, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return lines
}

// mouseButton maps bubbletea pointer buttons to module buttons.
func mouseButton(b tea.MouseButton) (modules.Button, bool) {
	switch b {
	case tea.MouseButtonLeft:
		return modules.ButtonLeft, true
	case tea.MouseButtonMiddle:
		return modules.ButtonMiddle, true
	case tea.MouseButtonRight:
		return modules.ButtonRight, true
	case tea.MouseButtonWheelUp:
		return modules.ScrollUp, true
	case tea.MouseButtonWheelDown:
		return modules.ScrollDown, true
	default:
		return 0, false
	}
}

// RunTUI runs the interactive surface until the user quits or ctx is
// cancelled.
func RunTUI(ctx context.Context, b *Bar) error {
	p := tea.NewProgram(NewModel(b),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
