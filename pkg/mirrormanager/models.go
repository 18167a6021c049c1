// Package mirrormanager reads and updates the MirrorManager2 tables that bind
// mirrored directories to categories, versions and architectures.
package mirrormanager

import (
	"database/sql"
)

// Product is a distribution, e.g. "Fedora".
type Product struct {
	ID   int64
	Name string
}

// Category groups the directories of a product, e.g. "Fedora Linux".
type Category struct {
	ID          int64
	Name        string
	ProductID   int64
	ProductName string
}

// Version is a release of a product, e.g. "14" or "development".
type Version struct {
	ID        int64
	Name      string
	ProductID int64
}

// Arch is a CPU architecture. Primary architectures are published under the
// main tree, secondary ones under the secondary-arch tree.
type Arch struct {
	ID      int64
	Name    string
	Primary bool
}

// Directory is a path discovered on the master mirror, relative to the
// mirror root.
type Directory struct {
	ID       int64
	Name     string
	Readable bool
}

// Repository binds a directory to a category, version and architecture.
type Repository struct {
	ID            int64
	Name          string
	Prefix        sql.NullString
	CategoryID    sql.NullInt64
	VersionID     sql.NullInt64
	ArchID        sql.NullInt64
	DirectoryID   sql.NullInt64
	DirectoryName string
	Disabled      bool
}

// RepositoryRedirect aliases one repository name to another.
type RepositoryRedirect struct {
	ID       int64
	FromRepo string
	ToRepo   string
}
