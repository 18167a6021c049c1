package mirrormanager

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/database/dberror"
)

// Store gives access to the MirrorManager tables.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore creates a store on an open database.
func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Begin starts a session. Every statement of a session runs in one
// transaction: later statements see earlier ones, and nothing is visible to
// other connections until Commit.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to begin transaction").Err(err)
	}
	return &Session{tx: tx, logger: s.logger}, nil
}

// ListCategories returns every category ordered by name, outside of any
// session.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	return listCategories(ctx, s.db, s.logger)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const categoryColumns = `
	SELECT c.id, c.name, COALESCE(c.product_id, 0), COALESCE(p.name, '')
	FROM category c
	LEFT JOIN product p ON p.id = c.product_id`

func scanCategory(row rowScanner) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.ProductID, &c.ProductName)
	return c, err
}

func listCategories(ctx context.Context, q queryer, logger *zap.Logger) ([]Category, error) {
	rows, err := q.QueryContext(ctx, categoryColumns+` ORDER BY c.name`)
	if err != nil {
		logger.Error("failed to list categories", zap.Error(err))
		return nil, dberror.ErrDatabase.Msg("failed to list categories").Err(err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, dberror.ErrDatabase.Msg("failed to scan category").Err(err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to list categories").Err(err)
	}
	return categories, nil
}

// Session is a unit of work on the MirrorManager tables.
type Session struct {
	tx     *sql.Tx
	logger *zap.Logger
}

// Commit makes the session's changes permanent.
func (s *Session) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return dberror.ErrDatabase.Msg("failed to commit").Err(err)
	}
	return nil
}

// Rollback discards the session's changes. Rolling back a session that was
// already committed is a no-op.
func (s *Session) Rollback() error {
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return dberror.ErrDatabase.Msg("failed to roll back").Err(err)
	}
	return nil
}

// ListCategories returns every category ordered by name.
func (s *Session) ListCategories(ctx context.Context) ([]Category, error) {
	return listCategories(ctx, s.tx, s.logger)
}

// GetCategoryByName looks up a category together with its product name.
func (s *Session) GetCategoryByName(ctx context.Context, name string) (*Category, error) {
	row := s.tx.QueryRowContext(ctx, categoryColumns+` WHERE c.name = $1`, name)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("category not found", zap.String("category", name))
			return nil, dberror.ErrNotFound.Msgf("category %q not found", name)
		}
		s.logger.Error("failed to retrieve category", zap.String("category", name), zap.Error(err))
		return nil, dberror.ErrDatabase.Msg("failed to retrieve category").Err(err)
	}
	return &c, nil
}

// GetProductByName looks up a product.
func (s *Session) GetProductByName(ctx context.Context, name string) (*Product, error) {
	var p Product
	err := s.tx.QueryRowContext(ctx, `SELECT id, name FROM product WHERE name = $1`, name).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("product not found", zap.String("product", name))
			return nil, dberror.ErrNotFound.Msgf("product %q not found", name)
		}
		return nil, dberror.ErrDatabase.Msg("failed to retrieve product").Err(err)
	}
	return &p, nil
}

// GetVersion looks up a version by name within a product.
func (s *Session) GetVersion(ctx context.Context, productID int64, name string) (*Version, error) {
	var v Version
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, name, product_id
		FROM version
		WHERE name = $1 AND product_id = $2`, name, productID).Scan(&v.ID, &v.Name, &v.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("version not found", zap.String("version", name), zap.Int64("product_id", productID))
			return nil, dberror.ErrNotFound.Msgf("version %q not found", name)
		}
		return nil, dberror.ErrDatabase.Msg("failed to retrieve version").Err(err)
	}
	return &v, nil
}

// ListArches returns every architecture ordered by name.
func (s *Session) ListArches(ctx context.Context) ([]Arch, error) {
	rows, err := s.tx.QueryContext(ctx, `SELECT id, name, primary_arch FROM arch ORDER BY name`)
	if err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to list arches").Err(err)
	}
	defer rows.Close()

	var arches []Arch
	for rows.Next() {
		var a Arch
		if err := rows.Scan(&a.ID, &a.Name, &a.Primary); err != nil {
			return nil, dberror.ErrDatabase.Msg("failed to scan arch").Err(err)
		}
		arches = append(arches, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to list arches").Err(err)
	}
	return arches, nil
}

// GetDirectoryByName looks up a directory by its exact name.
func (s *Session) GetDirectoryByName(ctx context.Context, name string) (*Directory, error) {
	var d Directory
	err := s.tx.QueryRowContext(ctx, `SELECT id, name, readable FROM directory WHERE name = $1`, name).
		Scan(&d.ID, &d.Name, &d.Readable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("directory not found", zap.String("directory", name))
			return nil, dberror.ErrNotFound.Msgf("directory %q not found", name)
		}
		return nil, dberror.ErrDatabase.Msg("failed to retrieve directory").Err(err)
	}
	return &d, nil
}

const repositoryColumns = `
	SELECT r.id, r.name, r.prefix, r.category_id, r.version_id, r.arch_id, r.directory_id,
		COALESCE(d.name, ''), r.disabled
	FROM repository r
	LEFT JOIN directory d ON d.id = r.directory_id`

func scanRepository(row rowScanner) (Repository, error) {
	var r Repository
	err := row.Scan(&r.ID, &r.Name, &r.Prefix, &r.CategoryID, &r.VersionID, &r.ArchID, &r.DirectoryID,
		&r.DirectoryName, &r.Disabled)
	return r, err
}

func (s *Session) listRepositories(ctx context.Context, where string, args ...any) ([]Repository, error) {
	rows, err := s.tx.QueryContext(ctx, repositoryColumns+" WHERE "+where+" ORDER BY r.id", args...)
	if err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to list repositories").Err(err)
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, dberror.ErrDatabase.Msg("failed to scan repository").Err(err)
		}
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Msg("failed to list repositories").Err(err)
	}
	return repos, nil
}

// ListCategoryRepositories returns the repositories of a category.
func (s *Session) ListCategoryRepositories(ctx context.Context, categoryID int64) ([]Repository, error) {
	return s.listRepositories(ctx, "r.category_id = $1", categoryID)
}

// ListDirectoryRepositories returns the repositories bound to a directory.
func (s *Session) ListDirectoryRepositories(ctx context.Context, directoryID int64) ([]Repository, error) {
	return s.listRepositories(ctx, "r.directory_id = $1", directoryID)
}

// ListRepositoriesByDirectoryName returns the repositories bound to the
// directory with the given name. An unknown directory has none.
func (s *Session) ListRepositoriesByDirectoryName(ctx context.Context, name string) ([]Repository, error) {
	return s.listRepositories(ctx, "d.name = $1", name)
}

// GetRepositoryByPrefixArch looks up the repository with the given prefix and
// architecture.
func (s *Session) GetRepositoryByPrefixArch(ctx context.Context, prefix string, archID int64) (*Repository, error) {
	row := s.tx.QueryRowContext(ctx, repositoryColumns+` WHERE r.prefix = $1 AND r.arch_id = $2`, prefix, archID)
	r, err := scanRepository(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("repository not found", zap.String("prefix", prefix), zap.Int64("arch_id", archID))
			return nil, dberror.ErrNotFound.Msgf("repository with prefix %q not found", prefix)
		}
		return nil, dberror.ErrDatabase.Msg("failed to retrieve repository").Err(err)
	}
	return &r, nil
}

// UpdateRepository writes every mutable column of r.
func (s *Session) UpdateRepository(ctx context.Context, r *Repository) error {
	result, err := s.tx.ExecContext(ctx, `
		UPDATE repository
		SET name = $1, prefix = $2, category_id = $3, version_id = $4, arch_id = $5, directory_id = $6
		WHERE id = $7`,
		r.Name, r.Prefix, r.CategoryID, r.VersionID, r.ArchID, r.DirectoryID, r.ID)
	if err != nil {
		s.logger.Error("failed to update repository", zap.Int64("id", r.ID), zap.Error(err))
		return dberror.ErrDatabase.Msg("failed to update repository").Err(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return dberror.ErrDatabase.Msg("failed to get rows affected").Err(err)
	}
	if n == 0 {
		return dberror.ErrNotFound.Msgf("repository %d not found", r.ID)
	}
	return nil
}

// DeleteRepository removes a repository row.
func (s *Session) DeleteRepository(ctx context.Context, id int64) error {
	result, err := s.tx.ExecContext(ctx, `DELETE FROM repository WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("failed to delete repository", zap.Int64("id", id), zap.Error(err))
		return dberror.ErrDatabase.Msg("failed to delete repository").Err(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return dberror.ErrDatabase.Msg("failed to get rows affected").Err(err)
	}
	if n == 0 {
		return dberror.ErrNotFound.Msgf("repository %d not found", id)
	}
	return nil
}

// GetRepositoryRedirect looks up the redirect between two repository names.
func (s *Session) GetRepositoryRedirect(ctx context.Context, from, to string) (*RepositoryRedirect, error) {
	var rr RepositoryRedirect
	err := s.tx.QueryRowContext(ctx, `
		SELECT id, from_repo, COALESCE(to_repo, '')
		FROM repository_redirect
		WHERE from_repo = $1 AND to_repo = $2`, from, to).Scan(&rr.ID, &rr.FromRepo, &rr.ToRepo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msgf("redirect %s -> %s not found", from, to)
		}
		return nil, dberror.ErrDatabase.Msg("failed to retrieve redirect").Err(err)
	}
	return &rr, nil
}

// CreateRepositoryRedirect inserts a redirect. If the same redirect already
// exists it returns ErrAlreadyExists and inserts nothing.
func (s *Session) CreateRepositoryRedirect(ctx context.Context, from, to string) (*RepositoryRedirect, error) {
	existing, err := s.GetRepositoryRedirect(ctx, from, to)
	switch {
	case err == nil:
		s.logger.Info("redirect already exists", zap.String("from", from), zap.String("to", to), zap.Int64("id", existing.ID))
		return existing, dberror.ErrAlreadyExists.Msgf("redirect %s -> %s already exists", from, to)
	case !errors.Is(err, dberror.ErrNotFound):
		return nil, err
	}

	rr := RepositoryRedirect{FromRepo: from, ToRepo: to}
	err = s.tx.QueryRowContext(ctx, `
		INSERT INTO repository_redirect (from_repo, to_repo)
		VALUES ($1, $2)
		RETURNING id`, from, to).Scan(&rr.ID)
	if err != nil {
		s.logger.Error("failed to insert redirect", zap.String("from", from), zap.String("to", to), zap.Error(err))
		return nil, dberror.ErrDatabase.Msg("failed to insert redirect").Err(err)
	}
	return &rr, nil
}
