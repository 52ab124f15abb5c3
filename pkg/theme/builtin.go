package theme

func builtins() []Theme {
	return []Theme{
		{
			Name:        "default",
			Foreground:  "#d4d4d4",
			Dim:         "#6B7280",
			Accent:      "#7C3AED",
			Border:      "#6B7280",
			BorderFocus: "#7C3AED",
			Title:       "#d4d4d4",
			StatusOK:    "#4ec970",
			StatusWarn:  "#e5c07b",
			StatusError: "#EF4444",
			HelpKey:     "#7C3AED",
			HelpDesc:    "#6B7280",
		},
		{
			Name:        "gruvbox",
			Foreground:  "#ebdbb2",
			Dim:         "#928374",
			Accent:      "#fe8019",
			Border:      "#504945",
			BorderFocus: "#fe8019",
			Title:       "#ebdbb2",
			StatusOK:    "#b8bb26",
			StatusWarn:  "#fabd2f",
			StatusError: "#fb4934",
			HelpKey:     "#fe8019",
			HelpDesc:    "#928374",
		},
		{
			Name:        "nord",
			Foreground:  "#eceff4",
			Dim:         "#4c566a",
			Accent:      "#88c0d0",
			Border:      "#3b4252",
			BorderFocus: "#88c0d0",
			Title:       "#eceff4",
			StatusOK:    "#a3be8c",
			StatusWarn:  "#ebcb8b",
			StatusError: "#bf616a",
			HelpKey:     "#88c0d0",
			HelpDesc:    "#4c566a",
		},
		{
			Name:        "catppuccin",
			Foreground:  "#cdd6f4",
			Dim:         "#6c7086",
			Accent:      "#cba6f7",
			Border:      "#313244",
			BorderFocus: "#cba6f7",
			Title:       "#cdd6f4",
			StatusOK:    "#a6e3a1",
			StatusWarn:  "#f9e2af",
			StatusError: "#f38ba8",
			HelpKey:     "#cba6f7",
			HelpDesc:    "#6c7086",
		},
		{
			Name:        "dracula",
			Foreground:  "#f8f8f2",
			Dim:         "#6272a4",
			Accent:      "#bd93f9",
			Border:      "#44475a",
			BorderFocus: "#bd93f9",
			Title:       "#f8f8f2",
			StatusOK:    "#50fa7b",
			StatusWarn:  "#f1fa8c",
			StatusError: "#ff5555",
			HelpKey:     "#bd93f9",
			HelpDesc:    "#6272a4",
		},
		{
			Name:        "tokyo-night",
			Foreground:  "#c0caf5",
			Dim:         "#565f89",
			Accent:      "#7aa2f7",
			Border:      "#292e42",
			BorderFocus: "#7aa2f7",
			Title:       "#c0caf5",
			StatusOK:    "#9ece6a",
			StatusWarn:  "#e0af68",
			StatusError: "#f7768e",
			HelpKey:     "#7aa2f7",
			HelpDesc:    "#565f89",
		},
	}
}
