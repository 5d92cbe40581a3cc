package transfer

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/deachawatss/BME-Putaway/internal/store"
)

// auditLeg is a tagged variant over the two sides of one transfer:
// issueLeg and receiptLeg are the two cases, and writeLeg is the single
// function that writes either into the audit table.
type auditLeg interface {
	apply(base store.AuditRow) store.AuditRow
}

// issueLeg is the source-side leg: transaction_type 9, qty_issued populated.
type issueLeg struct {
	docNo  string
	lineNo int
	qty    decimal.Decimal
}

func (l issueLeg) apply(base store.AuditRow) store.AuditRow {
	base.TransactionType = store.TxnTypeNegativeAdjustment
	base.IssueDocNo = l.docNo
	base.IssueDocLineNo = l.lineNo
	base.QtyIssued = l.qty
	return base
}

// receiptLeg is the destination-side leg: transaction_type 8, qty_received
// populated, with the fixed sentinel values the audit schema expects
// (customer_key="", date_quarantine=NULL).
type receiptLeg struct {
	docNo  string
	lineNo int
	qty    decimal.Decimal
}

func (l receiptLeg) apply(base store.AuditRow) store.AuditRow {
	base.TransactionType = store.TxnTypePositiveAdjustment
	base.ReceiptDocNo = l.docNo
	base.ReceiptDocLineNo = l.lineNo
	base.QtyReceived = l.qty
	base.CustomerKey = ""
	base.DateQuarantine = nil
	return base
}

// writeLeg populates base with leg's columns and inserts the resulting
// audit row inside tx.
func writeLeg(ctx context.Context, st *store.Store, tx *sql.Tx, leg auditLeg, base store.AuditRow) (int64, error) {
	row := leg.apply(base)
	return st.InsertAuditRow(ctx, tx, row)
}

// baseAuditRow builds the columns both legs of one transfer share: the lot
// identity, vendor/expiry data echoed from the source row, the user, remark
// and reference, and processed='N'.
func baseAuditRow(source *store.LotRow, binNo, userID, remark, reference string) store.AuditRow {
	return store.AuditRow{
		LotNo:        source.LotNo,
		ItemKey:      source.ItemKey,
		Location:     source.Location,
		BinNo:        binNo,
		VendorKey:    source.VendorKey,
		VendorLotNo:  source.VendorLotNo,
		DateExpiry:   source.DateExpiry,
		DateReceived: source.DateReceived,
		UserID:       userID,
		Remark:       remark,
		Reference:    reference,
		Processed:    store.ProcessedNo,
	}
}
