package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/database/dberror"
)

// ReleasePath returns the release tree path corresponding to a development
// tree directory of version, and whether dir belongs to that development tree
// at all.
func ReleasePath(dir, version string) (string, bool) {
	develPattern := path.Join("development", version)
	if !strings.Contains(dir, develPattern) {
		return "", false
	}
	return strings.ReplaceAll(dir, develPattern, path.Join("releases", version, "Everything")), true
}

// MigrateDevel hands the architecture, prefix and version of every
// development tree repository in category over to the repository of the
// matching release tree directory, and clears the architecture of the
// development tree repository.
//
// A release directory that is missing is reported and skipped; one that has
// no repository yet is skipped silently. A release directory with more than
// one repository aborts the whole phase without committing anything.
func (m *Migrator) MigrateDevel(ctx context.Context, categoryName, version string) error {
	logger := m.logger.With(zap.String("phase", "devel"), zap.String("category", categoryName),
		zap.String("version", version))

	session, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Rollback() }()

	category, err := session.GetCategoryByName(ctx, categoryName)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			fmt.Fprintf(m.errOut, "Category %q not found.\n", categoryName)
			if lerr := ListCategories(ctx, session, m.errOut); lerr != nil {
				logger.Error("failed to list categories", zap.Error(lerr))
			}
			return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryName)
		}
		return err
	}

	ver, err := session.GetVersion(ctx, category.ProductID, version)
	if err != nil {
		return fmt.Errorf("failed to look up version %s of %s: %w", version, category.ProductName, err)
	}

	repos, err := session.ListCategoryRepositories(ctx, category.ID)
	if err != nil {
		return err
	}

	for i := range repos {
		src := repos[i]
		target, ok := ReleasePath(src.DirectoryName, version)
		if !ok {
			continue
		}

		if !src.ArchID.Valid {
			// Handed over by an earlier run; copying the NULL arch would
			// clear the release repository.
			logger.Warn("development repository has no arch, skipping", zap.String("repository", src.Name))
			fmt.Fprintf(m.errOut, "%s has no arch set, skipping %s\n", src.Name, target)
			m.report.skip(target, SkipAlreadyMoved)
			continue
		}

		dir, err := session.GetDirectoryByName(ctx, target)
		if err != nil {
			if errors.Is(err, dberror.ErrNotFound) {
				fmt.Fprintf(m.errOut, "target directory %s not found, skipping %s\n", target, src.Name)
				m.report.skip(target, SkipNoDirectory)
				continue
			}
			return err
		}

		bound, err := session.ListDirectoryRepositories(ctx, dir.ID)
		if err != nil {
			return err
		}
		switch len(bound) {
		case 0:
			// The release repository has not been created by umdl yet.
			logger.Debug("no repository on target directory", zap.String("directory", target))
			m.report.skip(target, SkipNoRepository)
			continue
		case 1:
		default:
			logger.Error("target directory has more than one repository",
				zap.String("directory", target), zap.Int("repositories", len(bound)))
			return dberror.ErrInconsistent.Msgf("directory %s has %d repositories, expected at most one",
				target, len(bound))
		}

		dst := bound[0]
		dst.Prefix = src.Prefix
		dst.ArchID = src.ArchID
		dst.VersionID = sql.NullInt64{Int64: ver.ID, Valid: true}
		src.ArchID = sql.NullInt64{}

		// The source is written first: (prefix, arch) is unique and dst
		// takes over the source's pair.
		if err := session.UpdateRepository(ctx, &src); err != nil {
			return fmt.Errorf("failed to update %s: %w", src.Name, err)
		}
		if err := session.UpdateRepository(ctx, &dst); err != nil {
			return fmt.Errorf("failed to update %s: %w", dst.Name, err)
		}

		fmt.Fprintf(m.out, "%s => %s\n", src.DirectoryName, target)
		logger.Debug("migrated repository", zap.Int64("from", src.ID), zap.Int64("to", dst.ID))
		m.report.Migrated = append(m.report.Migrated, Move{From: src.DirectoryName, To: target})
	}

	return m.finish(session, "devel")
}
