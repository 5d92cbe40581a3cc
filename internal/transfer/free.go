package transfer

import (
	"context"
	"database/sql"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/deachawatss/BME-Putaway/internal/availability"
	"github.com/deachawatss/BME-Putaway/internal/docnumber"
	"github.com/deachawatss/BME-Putaway/internal/precondition"
	"github.com/deachawatss/BME-Putaway/internal/receipt"
	"github.com/deachawatss/BME-Putaway/internal/store"
	"github.com/deachawatss/BME-Putaway/internal/xerrors"
)

// Transfer executes the free-quantity path: reserve qty on the source
// commitment and emit the paired audit rows, all inside the one
// transaction store.Store.WithinTransfer opens and locks.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	_, logEntry := correlate(log.Fields{"op": "Transfer", "item_key": req.ItemKey, "lot_no": req.LotNo})

	if err := validateQty(req.TransferQty); err != nil {
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

		// 2-3. Availability of the locked source row; reject if qty exceeds
		// it outside tolerance.
		view, err := availability.FromLockedRow(ctx, e.store, tx, source)
		if err != nil {
			return err
		}
		if availability.GreaterWithTolerance(req.TransferQty, view.Available) {
			return xerrors.New(xerrors.InsufficientQuantity, "requested quantity exceeds available quantity").
				With("requested", req.TransferQty.String(), "available", view.Available.String())
		}

		// 4. Allocate the document number late, just before the audit writes.
		docNo, err := docnumber.Next(ctx, e.store, tx)
		if err != nil {
			return err
		}

		// 5. Reserve qty on the source commitment. On-hand is untouched;
		// the downstream batch job reconciles it.
		if err := e.store.AdjustCommittedSales(ctx, tx, sourceKey, req.TransferQty); err != nil {
			return err
		}

		// 6. Destination visibility check only; the engine does not
		// create the destination row.
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

		// 7-8. Paired audit rows.
		base := baseAuditRow(source, binFrom, req.UserID, req.Remarks, req.Reference)
		if _, err := writeLeg(ctx, e.store, tx, issueLeg{docNo: docNo, lineNo: 1, qty: req.TransferQty}, base); err != nil {
			return err
		}
		destBase := baseAuditRow(source, binTo, req.UserID, req.Remarks, req.Reference)
		if _, err := writeLeg(ctx, e.store, tx, receiptLeg{docNo: docNo, lineNo: 1, qty: req.TransferQty}, destBase); err != nil {
			return err
		}

		now := time.Now().UTC()
		result = TransferResult{
			Success:              true,
			DocumentNo:           docNo,
			Message:              "transfer committed",
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
				Qty:                  req.TransferQty,
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
