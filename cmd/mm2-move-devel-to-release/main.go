// mm2-move-devel-to-release points the MirrorManager repositories of a
// version at its release tree once the release has been published.
//
// The content on disk does not move. The development tree repositories hand
// their architecture, prefix and version over to the matching release tree
// repositories, and the install repositories are pointed at the release
// install trees (or, for rawhide, redirected).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/config"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/database"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/logging"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/metrics"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/migrate"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/mirrormanager"
)

// errUsage is returned after the usage text has been printed.
var errUsage = errors.New("missing required parameters")

// options are the command line parameters, passed down explicitly.
type options struct {
	configPath string
	version    string
	category   string
	report     string
	metrics    string
	dryRun     bool
	debug      bool
}

// moveParams are the parameters the migration cannot run without.
type moveParams struct {
	Version  string `validate:"required"`
	Category string `validate:"required"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, migrate.ErrUnknownCategory) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mm2-move-devel-to-release --version <version> --category <category>",
		Short: "Move MirrorManager repositories from the development tree to the release tree",
		Long: `Move MirrorManager repositories from the development tree to the release tree.

Run once per release, after the release tree has been published and umdl has
picked it up. Repositories under development/<version> hand their arch, prefix
and version over to the repositories under releases/<version>/Everything, and
the fedora-install-<version> repositories are pointed at the release install
trees. For --version development a fedora-install-rawhide => rawhide redirect
is created instead.

Nothing on disk is changed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMove(cmd, opts)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Configuration file to use")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.Flags().StringVar(&opts.version, "version", "", "Version to move, e.g. 14 or development")
	cmd.Flags().StringVar(&opts.category, "category", "", "Category of the development repositories, e.g. 'Fedora Linux'")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Roll back instead of committing")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write a YAML summary of the changes to this file")
	cmd.Flags().StringVar(&opts.metrics, "metrics-file", "", "Write Prometheus metrics for the textfile collector to this file")

	cmd.AddCommand(newInitDBCmd(opts))
	return cmd
}

// session is everything a subcommand needs once the configuration is loaded.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string
	db     *database.DB
}

func (s *session) Close() {
	_ = s.db.Close()
	_ = s.logger.Sync()
}

func openSession(ctx context.Context, opts *options) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.debug {
		level = logging.LevelDebug
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger, runID := logging.WithRunID(logger)

	db, err := database.Open(ctx, cfg.DBURL)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Debug("connected to database", zap.String("driver", db.Driver()), zap.String("config", opts.configPath))

	return &session{cfg: cfg, logger: logger, runID: runID, db: db}, nil
}

func runMove(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	params := moveParams{Version: opts.version, Category: opts.category}
	if err := validator.New().Struct(params); err != nil {
		_ = cmd.Usage()
		listCategories(ctx, cmd.ErrOrStderr(), opts)
		return errUsage
	}

	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	m := migrate.New(mirrormanager.NewStore(s.db.DB, s.logger), migrate.Options{
		UMDLPrefix: s.cfg.UMDLPrefix,
		Fs:         afero.NewOsFs(),
		Out:        cmd.OutOrStdout(),
		ErrOut:     cmd.ErrOrStderr(),
		Logger:     s.logger,
		DryRun:     opts.dryRun,
	})
	m.Report().RunID = s.runID

	s.logger.Info("moving repositories", zap.String("category", opts.category), zap.String("version", opts.version),
		zap.Bool("dry_run", opts.dryRun))
	started := time.Now()
	err = m.Run(ctx, opts.category, opts.version)
	if opts.metrics != "" {
		writeMetrics(opts, m.Report(), started, err, s.logger)
	}
	if err != nil {
		return err
	}

	if opts.report != "" {
		if err := m.Report().WriteFile(afero.NewOsFs(), opts.report); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(opts *options, report *migrate.Report, started time.Time, runErr error, logger *zap.Logger) {
	redirected := 0
	for _, r := range report.Redirects {
		if !r.Existing {
			redirected++
		}
	}
	metrics.Observe(metrics.Run{
		Category: opts.category,
		Version:  opts.version,
		Counts: map[string]int{
			metrics.ActionMigrated:   len(report.Migrated),
			metrics.ActionDeleted:    len(report.Deleted),
			metrics.ActionRepointed:  len(report.Repointed),
			metrics.ActionSkipped:    len(report.Skipped),
			metrics.ActionRedirected: redirected,
		},
		Started:  started,
		Finished: time.Now(),
		Err:      runErr,
	})
	if err := metrics.WriteTextfile(opts.metrics); err != nil {
		logger.Warn("failed to write metrics", zap.String("path", opts.metrics), zap.Error(err))
	}
}

// listCategories helps an operator who left out a parameter. Failing to
// reach the database only costs the hint.
func listCategories(ctx context.Context, w io.Writer, opts *options) {
	s, err := openSession(ctx, opts)
	if err != nil {
		fmt.Fprintf(w, "\nUnable to list categories: %v\n", err)
		return
	}
	defer s.Close()

	fmt.Fprintln(w)
	if err := migrate.ListCategories(ctx, mirrormanager.NewStore(s.db.DB, s.logger), w); err != nil {
		fmt.Fprintf(w, "Unable to list categories: %v\n", err)
	}
}

func newInitDBCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the MirrorManager tables in an empty development database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := database.Migrate(ctx, s.db, s.logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database initialized")
			return nil
		},
	}
}
