package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/database/dberror"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/mirrormanager"
)

const (
	// DevelopmentVersion is the version name of the rawhide stream.
	DevelopmentVersion = "development"

	// RawhideInstallRepo is redirected to RawhideRepo instead of being moved.
	RawhideInstallRepo = "fedora-install-rawhide"
	RawhideRepo        = "rawhide"

	sourceArch = "source"

	productName             = "Fedora"
	primaryCategoryName     = "Fedora Linux"
	secondaryCategoryName   = "Fedora Secondary Arches"
	primaryTopDir           = "pub/fedora/linux"
	secondaryTopDir         = "pub/fedora-secondary"
	installRepoPrefixFormat = "fedora-install-%s"
)

// InstallTree returns the directory holding the install tree of version for
// arch, and the category that directory belongs to.
func InstallTree(version string, arch mirrormanager.Arch) (dir, category string) {
	if arch.Primary {
		return path.Join(primaryTopDir, "releases", version, "Fedora", arch.Name, "os"), primaryCategoryName
	}
	return path.Join(secondaryTopDir, "releases", version, "Fedora", arch.Name, "os"), secondaryCategoryName
}

// InstallRepoPrefix is the prefix of the install repositories of version.
func InstallRepoPrefix(version string) string {
	return fmt.Sprintf(installRepoPrefixFormat, version)
}

// MigrateInstall points the fedora-install-<version> repository of every
// architecture at the release install tree.
//
// For the development version the install repositories are not moved;
// instead a redirect from fedora-install-rawhide to rawhide is created once.
//
// Repositories already bound to a release install tree are deleted before
// the install repository is pointed there, except the install repository
// itself when an earlier run already pointed it there. Architectures whose tree is not on
// disk, or not yet known to the database, keep only the deletion. Changes
// are committed once all architectures have been handled.
func (m *Migrator) MigrateInstall(ctx context.Context, version string) error {
	logger := m.logger.With(zap.String("phase", "install"), zap.String("version", version))

	session, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Rollback() }()

	if version == DevelopmentVersion {
		if err := m.redirectRawhide(ctx, session, logger); err != nil {
			return err
		}
		return m.finish(session, "install")
	}

	m.checkVersion(ctx, session, version, logger)

	arches, err := session.ListArches(ctx)
	if err != nil {
		return err
	}
	for _, arch := range arches {
		if arch.Name == sourceArch {
			continue
		}
		if err := m.moveInstallRepo(ctx, session, version, arch, logger.With(zap.String("arch", arch.Name))); err != nil {
			return err
		}
	}

	return m.finish(session, "install")
}

func (m *Migrator) redirectRawhide(ctx context.Context, session *mirrormanager.Session, logger *zap.Logger) error {
	rr, err := session.CreateRepositoryRedirect(ctx, RawhideInstallRepo, RawhideRepo)
	switch {
	case errors.Is(err, dberror.ErrAlreadyExists):
		fmt.Fprintf(m.errOut, "redirect %s => %s already exists\n", RawhideInstallRepo, RawhideRepo)
		m.report.Redirects = append(m.report.Redirects, Redirect{From: RawhideInstallRepo, To: RawhideRepo, Existing: true})
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(m.out, "redirect %s => %s\n", rr.FromRepo, rr.ToRepo)
	logger.Debug("created redirect", zap.Int64("id", rr.ID))
	m.report.Redirects = append(m.report.Redirects, Redirect{From: rr.FromRepo, To: rr.ToRepo})
	return nil
}

// checkVersion warns when version is not a known Fedora version. The install
// repositories are found by prefix, so the migration goes on regardless.
func (m *Migrator) checkVersion(ctx context.Context, session *mirrormanager.Session, version string, logger *zap.Logger) {
	product, err := session.GetProductByName(ctx, productName)
	if err == nil {
		_, err = session.GetVersion(ctx, product.ID, version)
	}
	if err != nil {
		logger.Warn("version not known to the database", zap.String("product", productName), zap.Error(err))
	}
}

func (m *Migrator) moveInstallRepo(ctx context.Context, session *mirrormanager.Session, version string,
	arch mirrormanager.Arch, logger *zap.Logger) error {
	dirName, categoryName := InstallTree(version, arch)

	// Looked up first so a repository repointed by an earlier run is not
	// deleted along with the rest of the tree's repositories.
	prefix := InstallRepoPrefix(version)
	repo, err := session.GetRepositoryByPrefixArch(ctx, prefix, arch.ID)
	if err != nil && !errors.Is(err, dberror.ErrNotFound) {
		return err
	}

	bound, err := session.ListRepositoriesByDirectoryName(ctx, dirName)
	if err != nil {
		return err
	}
	for _, r := range bound {
		if repo != nil && r.ID == repo.ID {
			logger.Debug("install repository already bound to the install tree", zap.Int64("id", r.ID))
			continue
		}
		if err := session.DeleteRepository(ctx, r.ID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", r.Name, err)
		}
		fmt.Fprintf(m.out, "destroying %s\n", r.Name)
		m.report.Deleted = append(m.report.Deleted, r.Name)
	}

	diskPath := filepath.Join(m.umdlPrefix, filepath.FromSlash(dirName))
	exists, err := afero.DirExists(m.fs, diskPath)
	if err != nil {
		logger.Warn("failed to check install tree", zap.String("path", diskPath), zap.Error(err))
	}
	if !exists {
		logger.Debug("install tree not on disk", zap.String("path", diskPath))
		m.report.skip(dirName, SkipNotOnDisk)
		return nil
	}

	dir, err := session.GetDirectoryByName(ctx, dirName)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			fmt.Fprintf(m.errOut, "directory %s exists on disk but is not in the database yet, run umdl and try again\n", dirName)
			m.report.skip(dirName, SkipNoDirectory)
			return nil
		}
		return err
	}

	category, err := session.GetCategoryByName(ctx, categoryName)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			fmt.Fprintf(m.errOut, "category %s not found, skipping %s\n", categoryName, dirName)
			m.report.skip(dirName, SkipNoCategory)
			return nil
		}
		return err
	}

	if repo == nil {
		fmt.Fprintf(m.errOut, "no %s repository for %s, skipping %s\n", prefix, arch.Name, dirName)
		m.report.skip(dirName, SkipNoRepository)
		return nil
	}
	if repo.DirectoryID.Int64 == dir.ID && repo.Name == dir.Name && repo.CategoryID.Int64 == category.ID {
		fmt.Fprintf(m.errOut, "%s already points at %s\n", prefix, dirName)
		m.report.skip(dirName, SkipAlreadyMoved)
		return nil
	}

	oldName := repo.Name
	repo.Name = dir.Name
	repo.DirectoryID = sql.NullInt64{Int64: dir.ID, Valid: true}
	repo.CategoryID = sql.NullInt64{Int64: category.ID, Valid: true}
	if err := session.UpdateRepository(ctx, repo); err != nil {
		return fmt.Errorf("failed to update %s: %w", oldName, err)
	}

	fmt.Fprintf(m.out, "%s => %s\n", oldName, dir.Name)
	logger.Debug("repointed install repository", zap.Int64("id", repo.ID), zap.String("category", categoryName))
	m.report.Repointed = append(m.report.Repointed, Move{From: oldName, To: dir.Name, Arch: arch.Name})
	return nil
}
