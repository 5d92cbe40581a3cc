// Package remarks is the read-only catalog of approved transfer annotations.
package remarks

import (
	"context"

	"github.com/deachawatss/BME-Putaway/internal/store"
)

// Option is the subset of store.RemarkOption exposed to callers.
type Option struct {
	ID   int
	Name string
}

// List returns the active remark options in catalog order. The result is
// finite, fully materialized, and safe to call repeatedly.
func List(ctx context.Context, st *store.Store) ([]Option, error) {
	rows, err := st.ListRemarkOptions(ctx, st.DB())
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(rows))
	for _, r := range rows {
		out = append(out, Option{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

// IsKnown reports whether name is either empty (no remark, explicitly
// allowed) or matches one of the active catalog entries.
// The engine does not reject unknown remarks outright — the catalog exists
// to drive caller-side selection UIs, and the audit row records whatever
// text the caller supplies verbatim — but callers that want strict
// enforcement can use this to surface their own validation error.
func IsKnown(ctx context.Context, st *store.Store, name string) (bool, error) {
	if name == "" {
		return true, nil
	}
	opts, err := List(ctx, st)
	if err != nil {
		return false, err
	}
	for _, o := range opts {
		if o.Name == name {
			return true, nil
		}
	}
	return false, nil
}
