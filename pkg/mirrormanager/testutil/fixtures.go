// Package testutil builds throwaway MirrorManager databases for tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/database"
)

// Fixture is an empty, migrated SQLite MirrorManager database with helpers to
// seed and inspect rows.
type Fixture struct {
	t    *testing.T
	DB   *database.DB
	path string
}

// NewFixture creates a migrated SQLite database under t.TempDir. The database
// is closed when the test ends.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "mirrormanager2.sqlite")
	db, err := database.Open(ctx, "sqlite:///"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db, nil))
	return &Fixture{t: t, DB: db, path: path}
}

// URL returns a DB_URL for the fixture database file.
func (f *Fixture) URL() string {
	return "sqlite:///" + f.path
}

func (f *Fixture) insert(query string, args ...any) int64 {
	f.t.Helper()
	var id int64
	require.NoError(f.t, f.DB.QueryRow(query+" RETURNING id", args...).Scan(&id))
	return id
}

// AddProduct inserts a product.
func (f *Fixture) AddProduct(name string) int64 {
	return f.insert(`INSERT INTO product (name) VALUES ($1)`, name)
}

// AddCategory inserts a category of a product.
func (f *Fixture) AddCategory(name string, productID int64) int64 {
	return f.insert(`INSERT INTO category (name, product_id) VALUES ($1, $2)`, name, productID)
}

// AddVersion inserts a version of a product.
func (f *Fixture) AddVersion(name string, productID int64) int64 {
	return f.insert(`INSERT INTO version (name, product_id) VALUES ($1, $2)`, name, productID)
}

// AddArch inserts an architecture.
func (f *Fixture) AddArch(name string, primary bool) int64 {
	return f.insert(`INSERT INTO arch (name, primary_arch) VALUES ($1, $2)`, name, primary)
}

// AddDirectory inserts a directory.
func (f *Fixture) AddDirectory(name string) int64 {
	return f.insert(`INSERT INTO directory (name) VALUES ($1)`, name)
}

// Repo describes a repository row to insert. Zero ids are stored as NULL.
type Repo struct {
	Name        string
	Prefix      string
	CategoryID  int64
	VersionID   int64
	ArchID      int64
	DirectoryID int64
}

// AddRepository inserts a repository.
func (f *Fixture) AddRepository(r Repo) int64 {
	return f.insert(`
		INSERT INTO repository (name, prefix, category_id, version_id, arch_id, directory_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.Name, database.NullString(r.Prefix), nullID(r.CategoryID), nullID(r.VersionID), nullID(r.ArchID),
		nullID(r.DirectoryID))
}

// AddRedirect inserts a repository redirect.
func (f *Fixture) AddRedirect(from, to string) int64 {
	return f.insert(`INSERT INTO repository_redirect (from_repo, to_repo) VALUES ($1, $2)`, from, to)
}

// RepositoryRow is a repository as stored, for assertions.
type RepositoryRow struct {
	Name        string
	Prefix      sql.NullString
	CategoryID  sql.NullInt64
	VersionID   sql.NullInt64
	ArchID      sql.NullInt64
	DirectoryID sql.NullInt64
}

// Repository reads a repository row. ok is false when it does not exist.
func (f *Fixture) Repository(id int64) (row RepositoryRow, ok bool) {
	f.t.Helper()
	err := f.DB.QueryRow(`
		SELECT name, prefix, category_id, version_id, arch_id, directory_id
		FROM repository WHERE id = $1`, id).
		Scan(&row.Name, &row.Prefix, &row.CategoryID, &row.VersionID, &row.ArchID, &row.DirectoryID)
	if err == sql.ErrNoRows {
		return row, false
	}
	require.NoError(f.t, err)
	return row, true
}

// Count returns the number of rows in a table.
func (f *Fixture) Count(table string) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.DB.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// Redirects returns the number of redirects between two repository names.
func (f *Fixture) Redirects(from, to string) int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.DB.QueryRow(
		`SELECT COUNT(*) FROM repository_redirect WHERE from_repo = $1 AND to_repo = $2`, from, to).Scan(&n))
	return n
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
