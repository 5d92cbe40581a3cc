package transfer_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/deachawatss/BME-Putaway/internal/store"
	"github.com/deachawatss/BME-Putaway/internal/testutil"
	"github.com/deachawatss/BME-Putaway/internal/transfer"
	"github.com/deachawatss/BME-Putaway/internal/xerrors"
)

// TestTransferCommittedFullConsume is scenario S4: a committed transfer
// that consumes the entire committed_sales balance via one pending row.
func TestTransferCommittedFullConsume(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "K0802-4B",
		store.OutboundPendingTypes[0], decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)

	result, err := engine.TransferCommitted(context.Background(), transfer.CommittedTransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", Qty: decimal.NewFromInt(50),
		UserID: "DECHAWAT", FullCommit: true,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	source, err := st.GetLotRow(context.Background(), st.DB(), store.LotKey{
		ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "K0802-4B",
	})
	require.NoError(t, err)
	require.True(t, decimal.Zero.Equal(source.CommittedSales))

	// The original pending row is untouched; only the two new legs exist
	// alongside it.
	rows, err := st.ListPendingAuditRows(context.Background(), st.DB(), "2600107-1", "K0802-4B")
	require.NoError(t, err)
	require.Len(t, rows, 2) // original pending row + the new issue leg
}

// TestTransferCommittedSubset is scenario S5: committed_sales=80 from three
// pending rows of 30/30/20; request qty=60 against the first two rows.
func TestTransferCommittedSubset(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(80))
	row1 := testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "K0802-4B",
		store.OutboundPendingTypes[0], decimal.NewFromInt(30))
	row2 := testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "K0802-4B",
		store.OutboundPendingTypes[0], decimal.NewFromInt(30))
	testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "K0802-4B",
		store.OutboundPendingTypes[0], decimal.NewFromInt(20))
	engine := transfer.NewEngine(st)

	result, err := engine.TransferCommitted(context.Background(), transfer.CommittedTransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", Qty: decimal.NewFromInt(60),
		UserID: "DECHAWAT", TranNos: []int64{row1, row2},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	source, err := st.GetLotRow(context.Background(), st.DB(), store.LotKey{
		ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "K0802-4B",
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(20).Equal(source.CommittedSales))
}

func TestTransferCommittedRejectsQtyOverCommitted(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)

	_, err := engine.TransferCommitted(context.Background(), transfer.CommittedTransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", Qty: decimal.NewFromInt(51),
		UserID: "DECHAWAT", FullCommit: true,
	})
	require.True(t, xerrors.Is(err, xerrors.InsufficientCommitted))
}

func TestTransferCommittedRejectsEmptySubset(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(80))
	testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "K0802-4B",
		store.OutboundPendingTypes[0], decimal.NewFromInt(80))
	engine := transfer.NewEngine(st)

	_, err := engine.TransferCommitted(context.Background(), transfer.CommittedTransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", Qty: decimal.NewFromInt(60),
		UserID: "DECHAWAT",
	})
	require.True(t, xerrors.Is(err, xerrors.SelectionMismatch))
}

func TestTransferCommittedRejectsSubsetThatDoesNotSumExactly(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(80))
	row1 := testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "K0802-4B",
		store.OutboundPendingTypes[0], decimal.NewFromInt(30))
	row2 := testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "K0802-4B",
		store.OutboundPendingTypes[0], decimal.NewFromInt(30))
	engine := transfer.NewEngine(st)

	_, err := engine.TransferCommitted(context.Background(), transfer.CommittedTransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", Qty: decimal.NewFromInt(61),
		UserID: "DECHAWAT", TranNos: []int64{row1, row2},
	})
	require.True(t, xerrors.Is(err, xerrors.SelectionMismatch))
}

func TestTransferCommittedRejectsRowFromAnotherBin(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(40))
	foreignRow := testutil.SeedPendingAuditRow(t, st, "2600107-1", "INBC1403", "TFC1", "WHKON1",
		store.OutboundPendingTypes[0], decimal.NewFromInt(30))
	engine := transfer.NewEngine(st)

	_, err := engine.TransferCommitted(context.Background(), transfer.CommittedTransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", Qty: decimal.NewFromInt(30),
		UserID: "DECHAWAT", TranNos: []int64{foreignRow},
	})
	require.True(t, xerrors.Is(err, xerrors.SelectionMismatch))
}
