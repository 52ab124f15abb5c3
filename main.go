// flowdeck is a dynamic terminal layout engine for workflow dashboards.
//
// It arranges status panes into named presets, keeps each pane fed from
// the project's .workflow directory, and redraws them as files change.
//
// Usage:
//
//	flowdeck [flags]
//	flowdeck presets
//	flowdeck layout [preset]
//	flowdeck themes
//
// Flags:
//
//	--preset string   Preset to show (default from config: development)
//	--config string   Path to configuration file (default: $XDG_CONFIG_HOME/flowdeck/config.toml)
//	--root string     Project root containing .workflow
//	--mode string     Render mode: static, live, interactive or auto
//	--theme string    Colour theme name or theme file
//	--width int       Terminal width override (0 = auto-detect)
//	--height int      Terminal height override (0 = auto-detect)
//	--verbose         Enable debug logging
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/flowdeck/pkg/app"
	"gitlab.com/tinyland/lab/flowdeck/pkg/config"
	"gitlab.com/tinyland/lab/flowdeck/pkg/engine"
	"gitlab.com/tinyland/lab/flowdeck/pkg/layout"
	"gitlab.com/tinyland/lab/flowdeck/pkg/render"
	"gitlab.com/tinyland/lab/flowdeck/pkg/terminal"
	"gitlab.com/tinyland/lab/flowdeck/pkg/theme"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// liveFrameInterval is how often live mode redraws.
const liveFrameInterval = 250 * time.Millisecond

type options struct {
	configPath string
	preset     string
	theme      string
	root       string
	mode       string
	width      int
	height     int
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flowdeck: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "flowdeck",
		Short:         "Dynamic terminal layout engine for workflow dashboards",
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd.Context(), opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	pf.StringVar(&opts.preset, "preset", "", "Preset to show")
	pf.StringVar(&opts.theme, "theme", "", "Colour theme name or theme file")
	pf.IntVar(&opts.width, "width", 0, "Terminal width override (0 = auto-detect)")
	pf.IntVar(&opts.height, "height", 0, "Terminal height override (0 = auto-detect)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	f := root.Flags()
	f.StringVar(&opts.root, "root", "", "Project root containing .workflow")
	f.StringVar(&opts.mode, "mode", "", "Render mode: "+strings.Join(modeNames(), ", "))

	root.AddCommand(newPresetsCmd(opts), newLayoutCmd(opts), newThemesCmd())
	return root
}

func modeNames() []string {
	names := make([]string, len(render.Modes))
	for i, m := range render.Modes {
		names[i] = string(m)
	}
	return names
}

// loadConfig reads the config file and applies flag overrides on top.
func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	cfg.Merge(&config.Config{General: config.GeneralConfig{
		Preset: opts.preset,
		Root:   opts.root,
		Mode:   opts.mode,
		Theme:  opts.theme,
	}})
	if opts.verbose {
		cfg.General.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// setupLogger writes to the configured log file, or to stderr. The
// interactive screen owns the terminal, so without a log file it logs
// nothing.
func setupLogger(cfg *config.Config, interactive bool) (*slog.Logger, func(), error) {
	level, err := config.ParseLevel(cfg.General.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	var (
		w       io.Writer = os.Stderr
		cleanup           = func() {}
	)
	switch {
	case cfg.General.LogFile != "":
		if err := ensureLogDir(cfg.General.LogFile); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, cleanup = f, func() { f.Close() }
	case interactive:
		w = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, cleanup, nil
}

func runDashboard(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	mode, err := render.ParseMode(cfg.General.Mode)
	if err != nil {
		return err
	}
	mode = render.ResolveMode(mode, terminal.IsTerminal(os.Stdout))

	logger, closeLog, err := setupLogger(cfg, mode == render.ModeInteractive)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := engine.New(cfg, engine.WithLogger(logger), engine.WithSize(opts.width, opts.height))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()
	th, err := cfg.Theme()
	if err != nil {
		return err
	}
	if err := e.Init(ctx); err != nil {
		return err
	}
	logger.Info("flowdeck started",
		"mode", mode, "preset", e.Layout().Geometry().Preset, "theme", th.Name, "root", cfg.General.Root)

	if mode == render.ModeInteractive {
		return app.Run(ctx, e, 0, render.WithTheme(th))
	}

	r, _, err := render.New(mode, os.Stdout, render.WithTheme(th))
	if err != nil {
		return err
	}
	defer r.Close()

	if mode == render.ModeStatic {
		e.Panes().WaitIdle()
		return e.Draw(r, e.Frame())
	}
	return runLive(ctx, e, r, opts)
}

// runLive redraws on a timer and follows terminal resizes until the
// context ends or the engine asks to quit.
func runLive(ctx context.Context, e *engine.Engine, r render.Renderer, opts *options) error {
	if opts.width <= 0 || opts.height <= 0 {
		terminal.Watch(ctx, func(s terminal.Size) {
			s = terminal.Resolve(s, opts.width, opts.height)
			if err := e.Resize(s.Width, s.Height); err != nil {
				slog.Warn("resize", "error", err)
			}
		})
	}

	ticker := time.NewTicker(liveFrameInterval)
	defer ticker.Stop()
	for {
		if err := e.Draw(r, e.Frame()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-e.Quit():
			return nil
		case <-ticker.C:
		}
	}
}

func newPresetsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List available layout presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			set, err := cfg.PresetSet()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, name := range set.Names() {
				p, _ := set.Get(name)
				marker := " "
				if name == cfg.General.Preset {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %d %-12s %4dx%-3d %-40s %s\n",
					marker, i+1, p.Name, p.MinWidth, p.MinHeight, strings.Join(p.Panes, ","), p.Description)
			}
			return nil
		},
	}
}

func newLayoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "layout [preset]",
		Short: "Print pane geometry for a preset at the terminal size",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			set, err := cfg.PresetSet()
			if err != nil {
				return err
			}
			name := cfg.General.Preset
			if len(args) == 1 {
				name = args[0]
			}
			size := terminal.Resolve(terminal.GetSize(), opts.width, opts.height)
			m, err := layout.NewManager(set, name, size.Width, size.Height)
			if err != nil {
				return err
			}
			printGeometry(cmd.OutOrStdout(), m.Geometry(), size)
			return nil
		},
	}
}

func newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List built-in colour themes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range theme.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func printGeometry(w io.Writer, g layout.Geometry, size terminal.Size) {
	fmt.Fprintf(w, "preset %s at %dx%d (%s)\n", g.Preset, size.Width, size.Height, size.Source)
	if g.Substituted {
		fmt.Fprintf(w, "requested %s does not fit\n", g.Requested)
	}
	fmt.Fprintf(w, "area x=%d y=%d %dx%d\n", g.Area.X, g.Area.Y, g.Area.Width, g.Area.Height)
	for _, p := range g.Panes {
		focus := " "
		if p.Focused {
			focus = "*"
		}
		fmt.Fprintf(w, "%s %-14s x=%-4d y=%-4d %dx%d\n", focus, p.ID, p.X, p.Y, p.Width, p.Height)
	}
}

// ensureLogDir creates the parent directory for the log file if needed.
func ensureLogDir(logFile string) error {
	dir := filepath.Dir(logFile)
	return os.MkdirAll(dir, 0755)
}
