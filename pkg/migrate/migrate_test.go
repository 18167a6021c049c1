package migrate

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/mirrormanager"
	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/mirrormanager/testutil"
)

const umdlPrefix = "/srv"

// fedoraDB is a MirrorManager database with the Fedora product, its two
// categories, version 14 and a few architectures.
type fedoraDB struct {
	*testutil.Fixture
	product   int64
	linux     int64
	secondary int64
	v14       int64
	x86       int64
	ppc       int64
	source    int64
}

func newFedoraDB(t *testing.T) *fedoraDB {
	t.Helper()
	f := testutil.NewFixture(t)
	db := &fedoraDB{Fixture: f}
	db.product = f.AddProduct("Fedora")
	db.linux = f.AddCategory("Fedora Linux", db.product)
	db.secondary = f.AddCategory("Fedora Secondary Arches", db.product)
	f.AddCategory("Fedora Other", db.product)
	db.v14 = f.AddVersion("14", db.product)
	f.AddVersion("development", db.product)
	db.x86 = f.AddArch("x86_64", true)
	db.ppc = f.AddArch("ppc64", false)
	db.source = f.AddArch("source", true)
	return db
}

type harness struct {
	m      *Migrator
	fs     afero.Fs
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(db *fedoraDB, dryRun bool) *harness {
	h := &harness{
		fs:     afero.NewMemMapFs(),
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
	}
	h.m = New(mirrormanager.NewStore(db.DB.DB, nil), Options{
		UMDLPrefix: umdlPrefix,
		Fs:         h.fs,
		Out:        h.out,
		ErrOut:     h.errOut,
		DryRun:     dryRun,
	})
	return h
}
