package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/database/dberror"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/mirrormanager/testutil"
)

const (
	develX86   = "pub/fedora/linux/development/14/x86_64/os"
	releaseX86 = "pub/fedora/linux/releases/14/Everything/x86_64/os"
	develPPC   = "pub/fedora/linux/development/14/ppc64/os"
	releasePPC = "pub/fedora/linux/releases/14/Everything/ppc64/os"
)

func TestReleasePath(t *testing.T) {
	testCases := []struct {
		dir     string
		version string
		want    string
		ok      bool
	}{
		{dir: develX86, version: "14", want: releaseX86, ok: true},
		{dir: "pub/fedora/linux/development/14/source/SRPMS", version: "14",
			want: "pub/fedora/linux/releases/14/Everything/source/SRPMS", ok: true},
		{dir: "pub/fedora/linux/development/15/x86_64/os", version: "14"},
		{dir: "pub/fedora/linux/development/rawhide/x86_64/os", version: "14"},
		{dir: releaseX86, version: "14"},
	}

	for _, tc := range testCases {
		t.Run(tc.dir, func(t *testing.T) {
			got, ok := ReleasePath(tc.dir, tc.version)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMigrateDevel(t *testing.T) {
	db := newFedoraDB(t)
	develDir := db.AddDirectory(develX86)
	releaseDir := db.AddDirectory(releaseX86)
	src := db.AddRepository(testutil.Repo{
		Name: develX86, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.x86, DirectoryID: develDir,
	})
	dst := db.AddRepository(testutil.Repo{Name: releaseX86, CategoryID: db.linux, DirectoryID: releaseDir})

	h := newHarness(db, false)
	require.NoError(t, h.m.MigrateDevel(context.Background(), "Fedora Linux", "14"))

	release, ok := db.Repository(dst)
	require.True(t, ok)
	assert.Equal(t, db.x86, release.ArchID.Int64)
	assert.True(t, release.ArchID.Valid)
	assert.Equal(t, db.v14, release.VersionID.Int64)
	assert.Equal(t, "fedora-14", release.Prefix.String)

	devel, ok := db.Repository(src)
	require.True(t, ok)
	assert.False(t, devel.ArchID.Valid)
	assert.Equal(t, "fedora-14", devel.Prefix.String)

	assert.Equal(t, develX86+" => "+releaseX86+"\n", h.out.String())
	assert.Empty(t, h.errOut.String())
	assert.Equal(t, []Move{{From: develX86, To: releaseX86}}, h.m.Report().Migrated)
}

func TestMigrateDevelTwiceKeepsReleaseArch(t *testing.T) {
	db := newFedoraDB(t)
	develDir := db.AddDirectory(develX86)
	releaseDir := db.AddDirectory(releaseX86)
	db.AddRepository(testutil.Repo{
		Name: develX86, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.x86, DirectoryID: develDir,
	})
	dst := db.AddRepository(testutil.Repo{Name: releaseX86, CategoryID: db.linux, DirectoryID: releaseDir})

	h := newHarness(db, false)
	require.NoError(t, h.m.MigrateDevel(context.Background(), "Fedora Linux", "14"))
	first, _ := db.Repository(dst)

	h = newHarness(db, false)
	require.NoError(t, h.m.MigrateDevel(context.Background(), "Fedora Linux", "14"))

	second, ok := db.Repository(dst)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Equal(t, db.x86, second.ArchID.Int64)
	assert.True(t, second.ArchID.Valid)
	assert.Empty(t, h.out.String())
	assert.Contains(t, h.errOut.String(), develX86+" has no arch set, skipping "+releaseX86)
	assert.Empty(t, h.m.Report().Migrated)
	assert.Equal(t, []Skip{{Directory: releaseX86, Reason: SkipAlreadyMoved}}, h.m.Report().Skipped)
}

func TestMigrateDevelSkipsMissingTargetDirectory(t *testing.T) {
	db := newFedoraDB(t)
	// No release directory for x86_64.
	develX86Dir := db.AddDirectory(develX86)
	develPPCDir := db.AddDirectory(develPPC)
	releasePPCDir := db.AddDirectory(releasePPC)
	x86Repo := db.AddRepository(testutil.Repo{
		Name: develX86, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.x86, DirectoryID: develX86Dir,
	})
	db.AddRepository(testutil.Repo{
		Name: develPPC, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.ppc, DirectoryID: develPPCDir,
	})
	ppcRelease := db.AddRepository(testutil.Repo{Name: releasePPC, CategoryID: db.linux, DirectoryID: releasePPCDir})

	h := newHarness(db, false)
	require.NoError(t, h.m.MigrateDevel(context.Background(), "Fedora Linux", "14"))

	assert.Contains(t, h.errOut.String(), "target directory "+releaseX86+" not found")
	x86, _ := db.Repository(x86Repo)
	assert.Equal(t, db.x86, x86.ArchID.Int64, "skipped repository keeps its arch")

	// The next repository is still migrated.
	ppc, _ := db.Repository(ppcRelease)
	assert.Equal(t, db.ppc, ppc.ArchID.Int64)
	assert.Contains(t, h.out.String(), develPPC+" => "+releasePPC)
	assert.Equal(t, []Skip{{Directory: releaseX86, Reason: SkipNoDirectory}}, h.m.Report().Skipped)
}

func TestMigrateDevelSkipsTargetWithoutRepository(t *testing.T) {
	db := newFedoraDB(t)
	develDir := db.AddDirectory(develX86)
	db.AddDirectory(releaseX86)
	src := db.AddRepository(testutil.Repo{
		Name: develX86, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.x86, DirectoryID: develDir,
	})

	h := newHarness(db, false)
	require.NoError(t, h.m.MigrateDevel(context.Background(), "Fedora Linux", "14"))

	devel, _ := db.Repository(src)
	assert.Equal(t, db.x86, devel.ArchID.Int64)
	assert.Empty(t, h.out.String())
	assert.Empty(t, h.errOut.String())
	assert.Equal(t, 1, db.Count("repository"))
}

func TestMigrateDevelFailsOnAmbiguousTarget(t *testing.T) {
	db := newFedoraDB(t)
	develPPCDir := db.AddDirectory(develPPC)
	releasePPCDir := db.AddDirectory(releasePPC)
	develX86Dir := db.AddDirectory(develX86)
	releaseX86Dir := db.AddDirectory(releaseX86)

	// Migrated first, then rolled back with the rest of the phase.
	ppcSrc := db.AddRepository(testutil.Repo{
		Name: develPPC, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.ppc, DirectoryID: develPPCDir,
	})
	ppcDst := db.AddRepository(testutil.Repo{Name: releasePPC, CategoryID: db.linux, DirectoryID: releasePPCDir})

	x86Src := db.AddRepository(testutil.Repo{
		Name: develX86, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.x86, DirectoryID: develX86Dir,
	})
	db.AddRepository(testutil.Repo{Name: releaseX86, CategoryID: db.linux, DirectoryID: releaseX86Dir})
	db.AddRepository(testutil.Repo{Name: releaseX86 + "-dup", CategoryID: db.linux, DirectoryID: releaseX86Dir})

	h := newHarness(db, false)
	err := h.m.MigrateDevel(context.Background(), "Fedora Linux", "14")
	require.Error(t, err)
	assert.ErrorIs(t, err, dberror.ErrInconsistent)

	ppc, _ := db.Repository(ppcSrc)
	assert.Equal(t, db.ppc, ppc.ArchID.Int64)
	release, _ := db.Repository(ppcDst)
	assert.False(t, release.ArchID.Valid)
	assert.False(t, release.VersionID.Valid)
	x86, _ := db.Repository(x86Src)
	assert.Equal(t, db.x86, x86.ArchID.Int64)
}

func TestMigrateDevelUnknownCategory(t *testing.T) {
	db := newFedoraDB(t)

	h := newHarness(db, false)
	err := h.m.MigrateDevel(context.Background(), "Fedora Archive", "14")
	require.ErrorIs(t, err, ErrUnknownCategory)

	assert.Contains(t, h.errOut.String(), `Category "Fedora Archive" not found.`)
	assert.Contains(t, h.errOut.String(), "\tFedora Linux\n")
	assert.Contains(t, h.errOut.String(), "\tFedora Secondary Arches\n")
}

func TestMigrateDevelUnknownVersion(t *testing.T) {
	db := newFedoraDB(t)

	h := newHarness(db, false)
	err := h.m.MigrateDevel(context.Background(), "Fedora Linux", "99")
	require.Error(t, err)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnknownCategory)
}

func TestMigrateDevelDryRun(t *testing.T) {
	db := newFedoraDB(t)
	develDir := db.AddDirectory(develX86)
	releaseDir := db.AddDirectory(releaseX86)
	src := db.AddRepository(testutil.Repo{
		Name: develX86, Prefix: "fedora-14", CategoryID: db.linux, ArchID: db.x86, DirectoryID: develDir,
	})
	dst := db.AddRepository(testutil.Repo{Name: releaseX86, CategoryID: db.linux, DirectoryID: releaseDir})

	h := newHarness(db, true)
	require.NoError(t, h.m.MigrateDevel(context.Background(), "Fedora Linux", "14"))

	assert.Contains(t, h.out.String(), develX86+" => "+releaseX86)
	devel, _ := db.Repository(src)
	assert.Equal(t, db.x86, devel.ArchID.Int64)
	release, _ := db.Repository(dst)
	assert.False(t, release.ArchID.Valid)
	assert.True(t, h.m.Report().DryRun)
}
