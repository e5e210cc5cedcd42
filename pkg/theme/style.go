package theme

import "github.com/charmbracelet/lipgloss"

// Styles is a theme compiled into lipgloss styles for the terminal
// surface. Build once per theme change, not per frame.
type Styles struct {
	Bar       lipgloss.Style
	Cell      lipgloss.Style
	Urgent    lipgloss.Style
	Dim       lipgloss.Style
	Accent    lipgloss.Style
	Separator lipgloss.Style
	Popup     lipgloss.Style

	classes map[string]lipgloss.Style
}

// Styles compiles the theme.
func (t Theme) Styles() Styles {
	bg := lipgloss.Color(t.Background)
	fg := lipgloss.Color(t.Foreground)

	s := Styles{
		Bar:       lipgloss.NewStyle().Background(bg).Foreground(fg),
		Cell:      lipgloss.NewStyle().Background(bg).Foreground(fg),
		Urgent:    lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color(t.Urgent)).Bold(true),
		Dim:       lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color(t.Dim)),
		Accent:    lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color(t.Accent)),
		Separator: lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color(t.Separator)),
		Popup: lipgloss.NewStyle().
			Background(lipgloss.Color(t.PopupBackground)).
			Foreground(lipgloss.Color(t.PopupForeground)).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.PopupBorder)).
			Padding(0, 1),
		classes: make(map[string]lipgloss.Style, len(t.Classes)),
	}
	for class, color := range t.Classes {
		s.classes[class] = lipgloss.NewStyle().Background(bg).Foreground(lipgloss.Color(color))
	}
	return s
}

// Class returns the style for a module class, falling back to the
// plain cell style.
func (s Styles) Class(name string) lipgloss.Style {
	if st, ok := s.classes[name]; ok {
		return st
	}
	return s.Cell
}
