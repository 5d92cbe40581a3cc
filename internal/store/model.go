package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotKey identifies a single lot row: one per (item, location, lot, bin).
type LotKey struct {
	ItemKey  string
	Location string
	LotNo    string
	BinNo    string
}

// OutboundPendingTypes are the transaction types the legacy system treats as
// "pending outbound" when recomputing commitment from the audit stream.
var OutboundPendingTypes = []int{2, 3, 5, 7, 9, 10, 12, 16, 17, 20, 21}

// Transaction types the engine itself writes.
const (
	TxnTypeNegativeAdjustment = 9 // source leg
	TxnTypePositiveAdjustment = 8 // destination leg
)

// Processed sentinel values for AuditRow.Processed.
const (
	ProcessedNo      = "N"
	ProcessedPartial = "P"
	ProcessedYes     = "Y"
)

// LotRow mirrors the legacy inventory master row for one (item, location,
// lot, bin). The engine mutates CommittedSales only; OnHand is owned by the
// downstream batch job.
type LotRow struct {
	ItemKey        string
	Location       string
	LotNo          string
	BinNo          string
	VendorKey      string
	VendorLotNo    string
	DateReceived   time.Time
	DateExpiry     time.Time
	LotStatus      string
	OnHand         decimal.Decimal
	CommittedSales decimal.Decimal
	Reserved       decimal.Decimal
}

// Key returns the LotKey this row is stored under.
func (r LotRow) Key() LotKey {
	return LotKey{ItemKey: r.ItemKey, Location: r.Location, LotNo: r.LotNo, BinNo: r.BinNo}
}

// Available returns on_hand - committed_sales.
func (r LotRow) Available() decimal.Decimal {
	return r.OnHand.Sub(r.CommittedSales)
}

// AuditRow is an append-only movement record. The engine writes only the
// columns relevant to its own legs (types 8 and 9); other columns are
// carried for bit-exact parity with the legacy schema so the downstream
// batch job can read rows the engine never wrote.
type AuditRow struct {
	LotTranNo       int64
	LotNo           string
	ItemKey         string
	Location        string
	BinNo           string
	TransactionType int
	IssueDocNo      string
	IssueDocLineNo  int
	ReceiptDocNo    string
	ReceiptDocLineNo int
	QtyIssued       decimal.Decimal
	QtyReceived     decimal.Decimal
	VendorKey       string
	VendorLotNo     string
	CustomerKey     string
	DateExpiry      time.Time
	DateReceived    time.Time
	DateQuarantine  *time.Time
	UserID          string
	Remark          string
	Reference       string
	Timestamp       time.Time
	Processed       string
}

// RemarkOption is a read-only catalog entry.
type RemarkOption struct {
	ID     int
	Name   string
	Active bool
}

// ReconcileMode selects who applies on_hand effects after a transfer.
// Only ReconcileModeBatchJob is implemented; see DESIGN.md for why
// ReconcileModeDirect is named but not built out.
type ReconcileMode int

const (
	ReconcileModeBatchJob ReconcileMode = iota
	ReconcileModeDirect
)
