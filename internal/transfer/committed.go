package transfer

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/deachawatss/BME-Putaway/internal/availability"
	"github.com/deachawatss/BME-Putaway/internal/docnumber"
	"github.com/deachawatss/BME-Putaway/internal/precondition"
	"github.com/deachawatss/BME-Putaway/internal/receipt"
	"github.com/deachawatss/BME-Putaway/internal/store"
	"github.com/deachawatss/BME-Putaway/internal/xerrors"
)

// TransferCommitted settles an already-pending commitment on the source
// bin by re-pointing it against the destination bin, without touching
// free stock.
func (e *Engine) TransferCommitted(ctx context.Context, req CommittedTransferRequest) (TransferResult, error) {
	_, logEntry := correlate(log.Fields{"op": "TransferCommitted", "item_key": req.ItemKey, "lot_no": req.LotNo})

	if err := validateQty(req.Qty); err != nil {
		return TransferResult{}, err
	}

	binFrom := strings.TrimSpace(req.BinFrom)
	binTo := strings.TrimSpace(req.BinTo)
	itemKey := strings.TrimSpace(req.ItemKey)
	location := strings.TrimSpace(req.Location)
	lotNo := strings.TrimSpace(req.LotNo)

	sourceKey := store.LotKey{ItemKey: itemKey, Location: location, LotNo: lotNo, BinNo: binFrom}
	destKey := store.LotKey{ItemKey: itemKey, Location: location, LotNo: lotNo, BinNo: binTo}

	var result TransferResult
	err := e.store.WithinTransfer(ctx, sourceKey, func(ctx context.Context, tx *sql.Tx, source *store.LotRow) error {
		// 1. Gate preconditions.
		if err := precondition.Check(ctx, e.store, tx, precondition.Request{
			ItemKey: itemKey, Location: location, LotNo: lotNo, SourceBin: binFrom, DestBin: binTo,
		}); err != nil {
			return err
		}

		// 2. Verify committed_sales >= qty, resolving which scenario
		// applies (qty > committed, qty == committed, qty < committed).
		if availability.GreaterWithTolerance(req.Qty, source.CommittedSales) {
			return xerrors.New(xerrors.InsufficientCommitted, "requested quantity exceeds committed quantity").
				With("requested", req.Qty.String(), "committed", source.CommittedSales.String())
		}

		if !availability.WithinTolerance(req.Qty, source.CommittedSales) {
			// qty < committed_sales: an explicit subset must be supplied
			// and must sum to exactly qty.
			if req.FullCommit || len(req.TranNos) == 0 {
				return xerrors.New(xerrors.SelectionMismatch, "a subset of pending commitment rows is required when qty is less than committed_sales")
			}
			rows, err := e.store.GetAuditRowsByTranNo(ctx, tx, req.TranNos)
			if err != nil {
				return err
			}
			if err := validateSubset(rows, req, sourceKey); err != nil {
				return err
			}
		}

		// 3. Allocate the document number late, just before the audit writes.
		docNo, err := docnumber.Next(ctx, e.store, tx)
		if err != nil {
			return err
		}

		// 4. Release the reservation on the source: it is being re-homed,
		// not consumed. The engine deliberately does not mark or delete
		// the original pending audit rows; that remains the batch job's
		// responsibility.
		if err := e.store.AdjustCommittedSales(ctx, tx, sourceKey, req.Qty.Neg()); err != nil {
			return err
		}

		destExists, err := e.store.LotRowExists(ctx, tx, destKey)
		if err != nil {
			return err
		}
		destStatus := source.LotStatus
		if destExists {
			if status, ok, err := e.store.DestinationLotStatus(ctx, tx, destKey); err != nil {
				return err
			} else if ok {
				destStatus = status
			}
		}

		// 5. Paired audit rows, attributing qty regardless of how many
		// pending rows it aggregated.
		base := baseAuditRow(source, binFrom, req.UserID, req.Remarks, req.Reference)
		if _, err := writeLeg(ctx, e.store, tx, issueLeg{docNo: docNo, lineNo: 1, qty: req.Qty}, base); err != nil {
			return err
		}
		destBase := baseAuditRow(source, binTo, req.UserID, req.Remarks, req.Reference)
		if _, err := writeLeg(ctx, e.store, tx, receiptLeg{docNo: docNo, lineNo: 1, qty: req.Qty}, destBase); err != nil {
			return err
		}

		now := time.Now().UTC()
		result = TransferResult{
			Success:              true,
			DocumentNo:           docNo,
			Message:              "committed transfer settled",
			Timestamp:            now,
			SourceLotStatus:      source.LotStatus,
			DestinationLotStatus: destStatus,
			Receipt: receipt.Project(receipt.Inputs{
				DocumentNo:           docNo,
				ItemKey:              itemKey,
				Location:             location,
				SourceBin:            binFrom,
				DestBin:              binTo,
				LotNo:                lotNo,
				PreTransferOnHand:    source.OnHand,
				Qty:                  req.Qty,
				SourceLotStatus:      source.LotStatus,
				DestinationLotStatus: destStatus,
				Timestamp:            now,
				Remark:               req.Remarks,
				Reference:            req.Reference,
			}),
		}
		return nil
	})
	if err != nil {
		logSystemFailure(logEntry, err)
		return TransferResult{}, err
	}
	return result, nil
}

// validateSubset checks that every named row belongs to the requested
// (lot, source bin), is still pending, and that the rows' qty_issued sums
// to req.Qty within tolerance.
func validateSubset(rows []store.AuditRow, req CommittedTransferRequest, sourceKey store.LotKey) error {
	if len(rows) != len(req.TranNos) {
		return xerrors.New(xerrors.SelectionMismatch, "one or more selected rows were not found").
			With("requested_rows", len(req.TranNos), "found_rows", len(rows))
	}

	var sum decimal.Decimal
	for _, r := range rows {
		if r.LotNo != sourceKey.LotNo || r.BinNo != sourceKey.BinNo {
			return xerrors.New(xerrors.SelectionMismatch, "selected row does not belong to the source lot and bin").
				With("lot_tran_no", r.LotTranNo)
		}
		if r.Processed != store.ProcessedNo && r.Processed != store.ProcessedPartial {
			return xerrors.New(xerrors.SelectionMismatch, "selected row is no longer pending").
				With("lot_tran_no", r.LotTranNo)
		}
		sum = sum.Add(r.QtyIssued)
	}

	if !availability.WithinTolerance(sum, req.Qty) {
		return xerrors.New(xerrors.SelectionMismatch, "selected rows do not sum to the requested quantity").
			With("selected_sum", sum.String(), "requested", req.Qty.String())
	}
	return nil
}
