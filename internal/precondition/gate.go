// Package precondition implements the ordered system-state checks every
// transfer must pass before the engine touches a lot row.
package precondition

import (
	"context"
	"strings"

	"github.com/deachawatss/BME-Putaway/internal/store"
	"github.com/deachawatss/BME-Putaway/internal/xerrors"
)

// Request is the subset of a transfer request the gate needs to check.
type Request struct {
	ItemKey   string
	Location  string
	LotNo     string
	SourceBin string
	DestBin   string
}

// Check runs six ordered checks against ex, returning the first failure.
// Checks 1-2 are pure string/bin-master checks and don't
// need a lock; checks 3-6 read shared system state. Callers on the write
// path run Check against the same *sql.Tx that later takes the row lock, so
// the whole gate is part of the one transaction.
func Check(ctx context.Context, st *store.Store, ex store.Execer, req Request) error {
	destBin := strings.TrimSpace(req.DestBin)
	sourceBin := strings.TrimSpace(req.SourceBin)

	// 1. Destination bin is non-empty, trimmed, and different from source.
	if destBin == "" {
		return xerrors.New(xerrors.InvalidBin, "destination bin is required")
	}
	if destBin == sourceBin {
		return xerrors.New(xerrors.InvalidBin, "destination bin must differ from source bin").
			With("bin", destBin)
	}

	// 2. Destination bin exists in location.
	exists, err := st.BinExists(ctx, ex, req.Location, destBin)
	if err != nil {
		return err
	}
	if !exists {
		return xerrors.New(xerrors.InvalidBin, "destination bin does not exist in location").
			With("location", req.Location, "bin", destBin)
	}

	// 3. Freeze_Inventory flag is not truthy.
	frozen, err := st.IsFreezeInventory(ctx, ex)
	if err != nil {
		return err
	}
	if frozen {
		return xerrors.New(xerrors.InventoryFrozen, "inventory is frozen")
	}

	// 4. No physical count in progress for (item, location).
	counting, err := st.IsPhysicalCountInProgress(ctx, ex, req.ItemKey, req.Location)
	if err != nil {
		return err
	}
	if counting {
		return xerrors.New(xerrors.PhysicalCountInProgress, "a physical count is in progress").
			With("item_key", req.ItemKey, "location", req.Location)
	}

	// 5. Item is serial-lot-tracked and multi-bin-enabled.
	transferrable, err := st.IsTransferrable(ctx, ex, req.ItemKey)
	if err != nil {
		return err
	}
	if !transferrable {
		return xerrors.New(xerrors.NotTransferrable, "item is not serial-lot-tracked and multi-bin-enabled").
			With("item_key", req.ItemKey)
	}

	// 6. The lot row at the source bin exists.
	exists, err = st.LotRowExists(ctx, ex, store.LotKey{
		ItemKey: req.ItemKey, Location: req.Location, LotNo: req.LotNo, BinNo: sourceBin,
	})
	if err != nil {
		return err
	}
	if !exists {
		return xerrors.New(xerrors.LotNotFound, "no lot row at source bin").
			With("item_key", req.ItemKey, "location", req.Location, "bin_no", sourceBin)
	}

	return nil
}
