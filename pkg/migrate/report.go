package migrate

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Reasons a directory was skipped.
const (
	SkipNoDirectory  = "directory not in database"
	SkipNoRepository = "no repository"
	SkipNoCategory   = "category not found"
	SkipNotOnDisk    = "not on disk"
	SkipAlreadyMoved = "already moved"
)

// Report summarizes a migration run.
type Report struct {
	RunID     string     `yaml:"run_id,omitempty"`
	Category  string     `yaml:"category,omitempty"`
	Version   string     `yaml:"version,omitempty"`
	DryRun    bool       `yaml:"dry_run"`
	Migrated  []Move     `yaml:"migrated,omitempty"`
	Deleted   []string   `yaml:"deleted,omitempty"`
	Repointed []Move     `yaml:"repointed,omitempty"`
	Redirects []Redirect `yaml:"redirects,omitempty"`
	Skipped   []Skip     `yaml:"skipped,omitempty"`
}

// Move is a repository handed from one directory to another.
type Move struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Arch string `yaml:"arch,omitempty"`
}

// Redirect is a repository redirect that was created, or found in place.
type Redirect struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Existing bool   `yaml:"existing,omitempty"`
}

// Skip is a directory that was left alone.
type Skip struct {
	Directory string `yaml:"directory"`
	Reason    string `yaml:"reason"`
}

func (r *Report) skip(dir, reason string) {
	r.Skipped = append(r.Skipped, Skip{Directory: dir, Reason: reason})
}

// WriteYAML encodes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the report as YAML to path.
func (r *Report) WriteFile(fs afero.Fs, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
