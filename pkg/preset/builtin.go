package preset

// Pane ids used by the built-in presets.
const (
	PaneProgress     = "progress"
	PaneTasks        = "tasks"
	PaneCapabilities = "capabilities"
	PaneStatus       = "status"
	PaneLogs         = "logs"
)

// prQuickPreset is a single progress pane for small terminals.
func prQuickPreset() Preset {
	return Preset{
		Name:        "quick",
		Description: "Progress only, for small terminals",
		Kind:        KindSingle,
		Panes:       []string{PaneProgress},
		MinWidth:    40,
		MinHeight:   10,
		Weights:     map[string]float64{PaneProgress: 1.0},
		Shortcuts:   map[string]string{"alt+p": PaneProgress},
	}
}

// prDevelopmentPreset is three columns: progress, tasks, capabilities.
func prDevelopmentPreset() Preset {
	return Preset{
		Name:        "development",
		Description: "Progress, tasks and capabilities side by side",
		Kind:        KindTriple,
		Panes:       []string{PaneProgress, PaneTasks, PaneCapabilities},
		MinWidth:    100,
		MinHeight:   24,
		Weights: map[string]float64{
			PaneProgress:     0.4,
			PaneTasks:        0.35,
			PaneCapabilities: 0.25,
		},
		Shortcuts: map[string]string{
			"alt+p": PaneProgress,
			"alt+t": PaneTasks,
			"alt+c": PaneCapabilities,
		},
	}
}

// prMonitoringPreset is a 2x2 grid with a wide top row.
func prMonitoringPreset() Preset {
	return Preset{
		Name:        "monitoring",
		Description: "Two by two grid adding workflow status",
		Kind:        KindQuad,
		Panes:       []string{PaneProgress, PaneTasks, PaneCapabilities, PaneStatus},
		MinWidth:    120,
		MinHeight:   30,
		Weights: map[string]float64{
			PaneProgress:     0.35,
			PaneTasks:        0.3,
			PaneCapabilities: 0.2,
			PaneStatus:       0.15,
		},
		Shortcuts: map[string]string{
			"alt+p": PaneProgress,
			"alt+t": PaneTasks,
			"alt+c": PaneCapabilities,
			"alt+s": PaneStatus,
		},
	}
}

// prFullPreset is three panes over two, including logs.
func prFullPreset() Preset {
	return Preset{
		Name:        "full",
		Description: "Everything, with logs along the bottom",
		Kind:        KindFull,
		Panes:       []string{PaneProgress, PaneTasks, PaneCapabilities, PaneStatus, PaneLogs},
		MinWidth:    160,
		MinHeight:   40,
		Weights: map[string]float64{
			PaneProgress:     0.3,
			PaneTasks:        0.25,
			PaneCapabilities: 0.2,
			PaneStatus:       0.15,
			PaneLogs:         0.1,
		},
		Shortcuts: map[string]string{
			"alt+p": PaneProgress,
			"alt+t": PaneTasks,
			"alt+c": PaneCapabilities,
			"alt+s": PaneStatus,
			"alt+l": PaneLogs,
		},
	}
}

// Builtins returns fresh copies of the built-in presets, smallest first.
func Builtins() []Preset {
	return []Preset{
		prQuickPreset(),
		prDevelopmentPreset(),
		prMonitoringPreset(),
		prFullPreset(),
	}
}

// Smallest returns the built-in preset with the lowest minimum width.
func Smallest() Preset {
	return prQuickPreset()
}
