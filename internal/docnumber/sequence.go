// Package docnumber allocates BT-<n> transfer document numbers from the
// persistent BT sequence counter.
package docnumber

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/deachawatss/BME-Putaway/internal/store"
)

// Series is the name of the sequence counter the transfer engine uses.
const Series = "BT"

// Next allocates the next BT document number inside tx. It must be called
// late in the transaction, immediately before the audit rows are written,
// so the counter row — a hot point shared by every transfer — is held for
// the minimum possible duration.
func Next(ctx context.Context, st *store.Store, tx *sql.Tx) (string, error) {
	n, err := st.NextSequence(ctx, tx, Series)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", Series, n), nil
}
