// Package transfer implements the bin-transfer coordinator: the
// free-quantity and committed-quantity paths, plus the transport-agnostic
// read operations built on top of them.
package transfer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/deachawatss/BME-Putaway/internal/receipt"
	"github.com/deachawatss/BME-Putaway/internal/store"
)

// TransferRequest is the free-quantity transfer's wire contract, with
// quantities already parsed to decimal.Decimal.
type TransferRequest struct {
	LotNo       string
	ItemKey     string
	Location    string
	BinFrom     string
	BinTo       string
	TransferQty decimal.Decimal
	UserID      string
	Remarks     string
	Reference   string
}

// CommittedTransferRequest is the "transfer with committed" variant.
// Either FullCommit is set, consuming the entire committed_sales balance,
// or TranNos names the explicit subset of pending audit rows whose
// qty_issued must sum to Qty.
type CommittedTransferRequest struct {
	LotNo      string
	ItemKey    string
	Location   string
	BinFrom    string
	BinTo      string
	Qty        decimal.Decimal
	UserID     string
	Remarks    string
	Reference  string
	FullCommit bool
	TranNos    []int64
}

// TransferResult is the success envelope returned by both transfer paths.
type TransferResult struct {
	Success               bool
	DocumentNo            string
	Message               string
	Timestamp             time.Time
	SourceLotStatus       string
	DestinationLotStatus  string
	Receipt               receipt.Receipt
}

// AvailabilityView is returned by SearchAvailability.
type AvailabilityView struct {
	Key            store.LotKey
	OnHand         decimal.Decimal
	CommittedSales decimal.Decimal
	Available      decimal.Decimal
	PendingCommit  decimal.Decimal
}

// BinValidation is returned by ValidateBin.
type BinValidation struct {
	IsValid bool
	Message string
}

// PendingRow is one row of ListPendingForLotBin's result.
type PendingRow struct {
	LotTranNo int64
	LotNo     string
	BinNo     string
	DocNo     string
	LineNo    int
	Qty       decimal.Decimal
	TypeName  string
}
