package migrate

import (
	"context"
	"fmt"
	"io"

	"github.com/fedora-infra/mm2-move-devel-to-release/pkg/mirrormanager"
)

// categoryLister is satisfied by both *mirrormanager.Store and
// *mirrormanager.Session.
type categoryLister interface {
	ListCategories(ctx context.Context) ([]mirrormanager.Category, error)
}

// ListCategories writes the name of every category to w, one per line.
func ListCategories(ctx context.Context, lister categoryLister, w io.Writer) error {
	categories, err := lister.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	fmt.Fprintln(w, "Available categories:")
	for _, c := range categories {
		fmt.Fprintf(w, "\t%s\n", c.Name)
	}
	return nil
}
