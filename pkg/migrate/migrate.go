// Package migrate moves MirrorManager repository records from a version's
// development tree to its release tree once the release has been published.
//
// Nothing on disk is moved. The migration rewrites which repository row
// points at which directory, version and architecture so that mirrorlists
// and redirects send clients to the release tree.
package migrate

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/mirrormanager"
)

// ErrUnknownCategory is returned when the requested category does not exist.
// The available categories have already been written to the error stream.
var ErrUnknownCategory = errors.New("unknown category")

// Options configure a Migrator. Zero values get usable defaults.
type Options struct {
	// UMDLPrefix is the local directory holding the mirrored trees.
	UMDLPrefix string
	// Fs is used for the on-disk existence checks.
	Fs afero.Fs
	// Out receives progress lines, ErrOut receives skip notices.
	Out    io.Writer
	ErrOut io.Writer
	Logger *zap.Logger
	// DryRun rolls every phase back instead of committing it.
	DryRun bool
}

// Migrator runs the migration phases against a MirrorManager store.
type Migrator struct {
	store      *mirrormanager.Store
	fs         afero.Fs
	umdlPrefix string
	out        io.Writer
	errOut     io.Writer
	logger     *zap.Logger
	dryRun     bool
	report     *Report
}

// New creates a Migrator.
func New(store *mirrormanager.Store, opts Options) *Migrator {
	m := &Migrator{
		store:      store,
		fs:         opts.Fs,
		umdlPrefix: opts.UMDLPrefix,
		out:        opts.Out,
		errOut:     opts.ErrOut,
		logger:     opts.Logger,
		dryRun:     opts.DryRun,
		report:     &Report{DryRun: opts.DryRun},
	}
	if m.fs == nil {
		m.fs = afero.NewOsFs()
	}
	if m.umdlPrefix == "" {
		m.umdlPrefix = "/"
	}
	if m.out == nil {
		m.out = os.Stdout
	}
	if m.errOut == nil {
		m.errOut = os.Stderr
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Report returns what the migrator has done so far.
func (m *Migrator) Report() *Report {
	return m.report
}

// Run migrates the development repositories of category and then the install
// repositories of version.
func (m *Migrator) Run(ctx context.Context, category, version string) error {
	m.report.Category = category
	m.report.Version = version

	if err := m.MigrateDevel(ctx, category, version); err != nil {
		return err
	}
	return m.MigrateInstall(ctx, version)
}

// finish commits the session, or rolls it back on a dry run.
func (m *Migrator) finish(session *mirrormanager.Session, phase string) error {
	if m.dryRun {
		m.logger.Info("dry run, rolling back", zap.String("phase", phase))
		return session.Rollback()
	}
	if err := session.Commit(); err != nil {
		return err
	}
	m.logger.Info("committed", zap.String("phase", phase))
	return nil
}
