package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/npratt/pipeboard/internal/auth"
	"github.com/npratt/pipeboard/internal/config"
	"github.com/npratt/pipeboard/internal/notify"
	"github.com/npratt/pipeboard/internal/pipeline"
	"github.com/npratt/pipeboard/internal/tui"
)

var version = "dev"

var errNoProject = errors.New("no project selected: pass a project id, use --project, or set project.default_id")

// app carries what every command shares.
type app struct {
	v        *viper.Viper
	logLevel *slog.LevelVar
	logger   *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	store   auth.Store
	session *pipeline.Session
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	logLevel := &slog.LevelVar{}
	v := viper.New()
	v.SetEnvPrefix("PIPEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return &app{
		v:        v,
		logLevel: logLevel,
		logger:   NewLogger(stderr, logLevel),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// setup loads configuration and applies flag overrides. It runs before
// every command.
func (a *app) setup(cmd *cobra.Command) error {
	if a.v.GetBool(FlagVerbose) {
		a.logLevel.Set(slog.LevelDebug)
		a.logger.Debug("verbose logging enabled")
	}

	cfg, err := config.LoadConfig(a.v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Apply CLI flag overrides (only if explicitly set)
	flags := cmd.Flags()
	if flags.Changed(FlagAPIURL) {
		cfg.API.BaseURL = a.v.GetString(FlagAPIURL)
	}
	if flags.Changed(FlagStreamURL) {
		cfg.Stream.BaseURL = a.v.GetString(FlagStreamURL)
	}
	if flags.Changed(FlagProject) {
		cfg.Project.DefaultID, _ = flags.GetString(FlagProject)
	}
	if flags.Changed(FlagLogFile) {
		cfg.Paths.Log = a.v.GetString(FlagLogFile)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := auth.NewStore(cfg.Auth)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.store = store
	return nil
}

// tokens prefers --token (or PIPEBOARD_TOKEN) over the configured store.
func (a *app) tokens() auth.TokenSource {
	if tok := a.v.GetString(FlagToken); tok != "" {
		return auth.StaticToken(tok)
	}
	return a.store
}

// openSession returns the command's session, building it on first use.
// Success toasts go to stderr; errors reach the user as the command's
// returned error.
func (a *app) openSession() *pipeline.Session {
	if a.session == nil {
		a.session = a.newSession(notify.NotifierFunc(func(level notify.Level, msg string) {
			if level == notify.LevelSuccess {
				_, _ = fmt.Fprintln(a.stderr, msg)
				return
			}
			a.logger.Debug("notification", "level", level, "message", msg)
		}))
	}
	return a.session
}

func (a *app) newSession(n notify.Notifier) *pipeline.Session {
	return pipeline.Build(a.cfg, a.tokens(), n, a.logger)
}

func (a *app) close() {
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
}

// projectID picks the project from the first argument or the configured
// default.
func (a *app) projectID(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.Project.DefaultID != "" {
		return a.cfg.Project.DefaultID, nil
	}
	return "", errNoProject
}

func (a *app) jsonOutput() bool {
	return a.v.GetBool(FlagJSON)
}

// runDashboard runs the TUI until the user quits.
func (a *app) runDashboard(ctx context.Context, devtools bool, exportDir string) error {
	logResult := SetupTUILogger(a.cfg.Paths.Log, a.logLevel, a.cfg.LogRotation)
	defer func() { _ = logResult.Close() }()
	logger := logResult.Logger
	slog.SetDefault(logger)

	center := notify.NewCenter(
		notify.WithRateLimit(a.cfg.Notify.RatePerSecond, a.cfg.Notify.Burst),
		notify.WithHistory(a.cfg.Notify.History),
		notify.WithLogger(logger),
	)
	defer center.Close()

	s := pipeline.Build(a.cfg, a.tokens(), center, logger)
	defer s.Close()
	s.View.SetProject(a.cfg.Project.DefaultID)

	if exportDir == "" {
		exportDir = a.cfg.Export.Dir
	}

	logger.Info("dashboard starting",
		"version", version,
		"api_url", a.cfg.API.BaseURL,
		"stream_url", a.cfg.Stream.BaseURL,
		"project_id", a.cfg.Project.DefaultID,
	)

	return tui.New(s,
		tui.WithNotifications(center),
		tui.WithLogger(logger),
		tui.WithDevtools(devtools || a.cfg.Devtools),
		tui.WithExportDir(exportDir),
	).Run(ctx)
}

// bindFlags binds every flag of fs to viper by name. --project is read
// from the flag set directly: its name would shadow the project config
// section.
func (a *app) bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == FlagProject {
			return
		}
		_ = a.v.BindPFlag(f.Name, f)
	})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipeboard",
		Short: "Dashboard and CLI for the requirements-to-prompts pipeline",
		Long: `pipeboard follows projects through the backend pipeline: requirements
capture and refinement, delivery planning, and prompt bundle generation.

Without a subcommand it opens the interactive dashboard when stdout is a
terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if f, ok := a.stdout.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
				return cmd.Help()
			}
			return a.runDashboard(cmd.Context(), false, "")
		},
	}
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	// Persistent flags available to all commands
	pf := rootCmd.PersistentFlags()
	pf.Bool(FlagVerbose, false, "Enable verbose (debug) logging")
	pf.String(FlagConfig, "", "Config file path (default: .pipeboard/config.yaml)")
	pf.String(FlagLogFile, "", "Dashboard log file path")
	pf.String(FlagAPIURL, "", "Backend REST base URL")
	pf.String(FlagStreamURL, "", "Live-event stream base URL (empty disables live updates)")
	pf.StringP(FlagProject, "p", "", "Project id (default: project.default_id)")
	pf.String(FlagToken, "", "Bearer token for this invocation (overrides the stored token)")
	pf.Bool(FlagJSON, false, "Output as JSON")
	a.bindFlags(pf)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.stdout, "pipeboard %s\n", version)
		},
	}

	dashboardCmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"ui"},
		Short:   "Open the interactive dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			devtools, _ := cmd.Flags().GetBool(FlagDevtools)
			exportDir, _ := cmd.Flags().GetString(FlagExportDir)
			return a.runDashboard(cmd.Context(), devtools, exportDir)
		},
	}
	dashboardCmd.Flags().Bool(FlagDevtools, false, "Enable the cache inspector (D)")
	dashboardCmd.Flags().String(FlagExportDir, "", "Directory for exports and bundle downloads (default: export.dir)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(newProjectsCmd(a))
	rootCmd.AddCommand(newAuditCmd(a))
	rootCmd.AddCommand(newRetryCmd(a))
	rootCmd.AddCommand(newRequirementsCmd(a))
	rootCmd.AddCommand(newPlanCmd(a))
	rootCmd.AddCommand(newPromptsCmd(a))
	rootCmd.AddCommand(newEventsCmd(a))
	rootCmd.AddCommand(newAuthCmd(a))
	return rootCmd
}

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		a.logger.Debug("command failed", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
