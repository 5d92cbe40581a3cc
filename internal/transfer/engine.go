package transfer

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/deachawatss/BME-Putaway/internal/availability"
	"github.com/deachawatss/BME-Putaway/internal/remarks"
	"github.com/deachawatss/BME-Putaway/internal/store"
	"github.com/deachawatss/BME-Putaway/internal/xerrors"
)

// Engine wires the store and the component packages together into the
// callable bin-transfer operations. It is transport-agnostic: nothing
// here knows about HTTP, auth, or routing.
type Engine struct {
	store *store.Store
}

// NewEngine builds an Engine over an already-open store.
func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st}
}

// SearchAvailability reports on-hand, committed and available quantity for
// a lot/bin key.
func (e *Engine) SearchAvailability(ctx context.Context, key store.LotKey) (AvailabilityView, error) {
	view, err := availability.Calculate(ctx, e.store, e.store.DB(), key)
	if err != nil {
		return AvailabilityView{}, err
	}
	return AvailabilityView{
		Key:            view.Key,
		OnHand:         view.OnHand,
		CommittedSales: view.CommittedSales,
		Available:      view.Available,
		PendingCommit:  view.PendingCommit,
	}, nil
}

// ValidateBin runs the existence checks of the precondition gate standalone,
// for a UI that wants to validate a bin choice before submitting a full
// transfer.
func (e *Engine) ValidateBin(ctx context.Context, location, bin string) (BinValidation, error) {
	trimmed := strings.TrimSpace(bin)
	if trimmed == "" {
		return BinValidation{IsValid: false, Message: "bin is required"}, nil
	}
	exists, err := e.store.BinExists(ctx, e.store.DB(), location, trimmed)
	if err != nil {
		return BinValidation{}, err
	}
	if !exists {
		return BinValidation{IsValid: false, Message: "bin does not exist in location"}, nil
	}
	return BinValidation{IsValid: true, Message: ""}, nil
}

// ListRemarks returns the configured remark catalog.
func (e *Engine) ListRemarks(ctx context.Context) ([]remarks.Option, error) {
	return remarks.List(ctx, e.store)
}

// ListPendingForLotBin lists the unprocessed audit rows for a lot/bin, the
// candidates an operator picks from for a committed transfer's subset.
func (e *Engine) ListPendingForLotBin(ctx context.Context, lot, bin string) ([]PendingRow, error) {
	rows, err := e.store.ListPendingAuditRows(ctx, e.store.DB(), lot, bin)
	if err != nil {
		return nil, err
	}
	out := make([]PendingRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, PendingRow{
			LotTranNo: r.LotTranNo,
			LotNo:     r.LotNo,
			BinNo:     r.BinNo,
			DocNo:     r.IssueDocNo,
			LineNo:    r.IssueDocLineNo,
			Qty:       r.QtyIssued,
			TypeName:  transactionTypeName(r.TransactionType),
		})
	}
	return out, nil
}

func transactionTypeName(t int) string {
	switch t {
	case store.TxnTypeNegativeAdjustment:
		return "negative adjustment"
	case store.TxnTypePositiveAdjustment:
		return "positive adjustment"
	default:
		return "pending outbound"
	}
}

// validateQty rejects non-positive quantities and anything carrying more
// than three fractional digits.
func validateQty(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return xerrors.New(xerrors.InvalidQuantity, "transfer quantity must be greater than zero").
			With("qty", qty.String())
	}
	if !qty.Round(3).Equal(qty) {
		return xerrors.New(xerrors.InvalidQuantity, "transfer quantity may not carry more than three fractional digits").
			With("qty", qty.String())
	}
	return nil
}

// correlate mints a per-call correlation id and a logrus entry carrying it,
// used when logging a SystemError or InvariantViolation failure.
func correlate(fields log.Fields) (string, *log.Entry) {
	id := uuid.NewString()
	if fields == nil {
		fields = log.Fields{}
	}
	fields["correlation_id"] = id
	return id, log.WithFields(fields)
}

func logSystemFailure(entry *log.Entry, err error) {
	if xerrors.Is(err, xerrors.SystemError) || xerrors.Is(err, xerrors.InvariantViolation) {
		entry.WithError(err).Error("transfer engine system failure")
	}
}
