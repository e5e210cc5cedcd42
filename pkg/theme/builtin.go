package theme

func builtins() []Theme {
	return []Theme{
		defaultTheme(),
		gruvboxTheme(),
		nordTheme(),
		catppuccinTheme(),
		draculaTheme(),
		tokyoNightTheme(),
	}
}

// defaultTheme is a dark neutral palette with a purple accent.
func defaultTheme() Theme {
	return Theme{
		Name:       "default",
		Background: "#1e1e1e",
		Foreground: "#d4d4d4",
		Dim:        "#6b6b6b",
		Accent:     "#7c3aed",
		Urgent:     "#e06c75",
		Separator:  "#3e3e3e",

		PopupBackground: "#1e1e1e",
		PopupForeground: "#d4d4d4",
		PopupBorder:     "#7c3aed",

		Classes: map[string]string{
			"muted":   "#6b6b6b",
			"offline": "#e06c75",
			"error":   "#e06c75",
		},
	}
}

func gruvboxTheme() Theme {
	return Theme{
		Name:       "gruvbox",
		Background: "#282828",
		Foreground: "#ebdbb2",
		Dim:        "#928374",
		Accent:     "#fe8019",
		Urgent:     "#fb4934",
		Separator:  "#504945",

		PopupBackground: "#282828",
		PopupForeground: "#ebdbb2",
		PopupBorder:     "#fe8019",

		Classes: map[string]string{
			"muted":   "#928374",
			"offline": "#fb4934",
			"error":   "#fb4934",
		},
	}
}

func nordTheme() Theme {
	return Theme{
		Name:       "nord",
		Background: "#2e3440",
		Foreground: "#eceff4",
		Dim:        "#4c566a",
		Accent:     "#88c0d0",
		Urgent:     "#bf616a",
		Separator:  "#3b4252",

		PopupBackground: "#2e3440",
		PopupForeground: "#eceff4",
		PopupBorder:     "#88c0d0",

		Classes: map[string]string{
			"muted":   "#4c566a",
			"offline": "#bf616a",
			"error":   "#bf616a",
		},
	}
}

func catppuccinTheme() Theme {
	return Theme{
		Name:       "catppuccin",
		Background: "#1e1e2e",
		Foreground: "#cdd6f4",
		Dim:        "#6c7086",
		Accent:     "#cba6f7",
		Urgent:     "#f38ba8",
		Separator:  "#313244",

		PopupBackground: "#1e1e2e",
		PopupForeground: "#cdd6f4",
		PopupBorder:     "#cba6f7",

		Classes: map[string]string{
			"muted":   "#6c7086",
			"offline": "#f38ba8",
			"error":   "#f38ba8",
		},
	}
}

func draculaTheme() Theme {
	return Theme{
		Name:       "dracula",
		Background: "#282a36",
		Foreground: "#f8f8f2",
		Dim:        "#6272a4",
		Accent:     "#bd93f9",
		Urgent:     "#ff5555",
		Separator:  "#44475a",

		PopupBackground: "#282a36",
		PopupForeground: "#f8f8f2",
		PopupBorder:     "#bd93f9",

		Classes: map[string]string{
			"muted":   "#6272a4",
			"offline": "#ff5555",
			"error":   "#ff5555",
		},
	}
}

func tokyoNightTheme() Theme {
	return Theme{
		Name:       "tokyo-night",
		Background: "#1a1b26",
		Foreground: "#c0caf5",
		Dim:        "#565f89",
		Accent:     "#7aa2f7",
		Urgent:     "#f7768e",
		Separator:  "#292e42",

		PopupBackground: "#1a1b26",
		PopupForeground: "#c0caf5",
		PopupBorder:     "#7aa2f7",

		Classes: map[string]string{
			"muted":   "#565f89",
			"offline": "#f7768e",
			"error":   "#f7768e",
		},
	}
}
