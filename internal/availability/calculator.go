// Package availability computes the free and committed quantity of a lot
// in a bin.
package availability

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/deachawatss/BME-Putaway/internal/store"
	"github.com/deachawatss/BME-Putaway/internal/xerrors"
)

// Tolerance is the absolute-difference threshold below which two decimal
// quantities are treated as equal, to absorb floating-point noise in
// quantities carried to three decimal places.
var Tolerance = decimal.New(1, -3)

// View is the snapshot returned by the Availability Calculator.
type View struct {
	Key            store.LotKey
	OnHand         decimal.Decimal
	CommittedSales decimal.Decimal
	Available      decimal.Decimal
	PendingCommit  decimal.Decimal
}

// Calculate reads the lot row and the pending-outbound audit sum for key
// within the given Execer, returning a consistent snapshot. Callers that
// need the read to participate in a write must pass a *sql.Tx obtained
// from store.Store.WithinTransfer.
func Calculate(ctx context.Context, st *store.Store, ex store.Execer, key store.LotKey) (View, error) {
	row, err := st.GetLotRow(ctx, ex, key)
	if err != nil {
		return View{}, err
	}
	return fromRow(ctx, st, ex, row)
}

// FromLockedRow builds a View from a row already locked by
// store.Store.WithinTransfer, avoiding a second read of the lot row itself.
func FromLockedRow(ctx context.Context, st *store.Store, ex store.Execer, row *store.LotRow) (View, error) {
	return fromRow(ctx, st, ex, row)
}

func fromRow(ctx context.Context, st *store.Store, ex store.Execer, row *store.LotRow) (View, error) {
	pending, err := st.SumPendingOutbound(ctx, ex, row.LotNo, row.BinNo)
	if err != nil {
		return View{}, err
	}

	available := row.OnHand.Sub(row.CommittedSales)
	if available.IsNegative() {
		return View{}, xerrors.New(xerrors.InvariantViolation, "on_hand minus committed_sales is negative").
			With("item_key", row.ItemKey, "location", row.Location, "lot_no", row.LotNo, "bin_no", row.BinNo,
				"on_hand", row.OnHand.String(), "committed_sales", row.CommittedSales.String())
	}

	return View{
		Key:            row.Key(),
		OnHand:         row.OnHand,
		CommittedSales: row.CommittedSales,
		Available:      available,
		PendingCommit:  pending,
	}, nil
}

// WithinTolerance reports whether a and b differ by less than Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// GreaterWithTolerance reports whether a is greater than b by at least
// Tolerance (i.e. a meaningfully exceeds b, not just within rounding noise).
func GreaterWithTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).GreaterThanOrEqual(Tolerance)
}
