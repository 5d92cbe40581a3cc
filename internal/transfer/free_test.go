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

func seedTransferFixture(t *testing.T, st *store.Store, onHand, committed decimal.Decimal) {
	testutil.SeedBin(t, st, "TFC1", "K0802-4B")
	testutil.SeedBin(t, st, "TFC1", "WHKON1")
	testutil.SeedTransferrableItem(t, st, "INBC1403")
	testutil.SeedLotRow(t, st, testutil.LotFixture{
		ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "K0802-4B",
		LotStatus: "A", OnHand: onHand, CommittedSales: committed,
	})
	testutil.SeedLotRow(t, st, testutil.LotFixture{
		ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "WHKON1",
		LotStatus: "A", OnHand: decimal.Zero, CommittedSales: decimal.Zero,
	})
}

// TestTransferSimpleFreeQty is scenario S1: a plain free-quantity transfer.
func TestTransferSimpleFreeQty(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)

	result, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.NewFromInt(500),
		UserID: "DECHAWAT",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Regexp(t, `^BT-\d+$`, result.DocumentNo)

	row, err := st.GetLotRow(context.Background(), st.DB(), store.LotKey{
		ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "K0802-4B",
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(550).Equal(row.CommittedSales))

	rows, err := st.ListPendingAuditRows(context.Background(), st.DB(), "2600107-1", "K0802-4B")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, store.TxnTypeNegativeAdjustment, rows[0].TransactionType)
	require.True(t, decimal.NewFromInt(500).Equal(rows[0].QtyIssued))

	// The receipt leg (type 8) is not an outbound type, so
	// ListPendingAuditRows never returns it; read audit_rows directly.
	var destCount, destType int
	err = st.DB().QueryRowContext(context.Background(),
		`SELECT COUNT(*), COALESCE(MAX(transaction_type), 0) FROM audit_rows WHERE lot_no=? AND bin_no=?`,
		"2600107-1", "WHKON1").Scan(&destCount, &destType)
	require.NoError(t, err)
	require.Equal(t, 1, destCount)
	require.Equal(t, store.TxnTypePositiveAdjustment, destType)
}

// TestTransferInsufficientFreeQty is scenario S2.
func TestTransferInsufficientFreeQty(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)

	_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.NewFromInt(950),
		UserID: "DECHAWAT",
	})
	require.True(t, xerrors.Is(err, xerrors.InsufficientQuantity))

	row, err := st.GetLotRow(context.Background(), st.DB(), store.LotKey{
		ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "K0802-4B",
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(50).Equal(row.CommittedSales))

	rows, err := st.ListPendingAuditRows(context.Background(), st.DB(), "2600107-1", "K0802-4B")
	require.NoError(t, err)
	require.Empty(t, rows)
}

// TestTransferInvalidDestinationBin is scenario S3.
func TestTransferInvalidDestinationBin(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)

	_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "K0802-4B", TransferQty: decimal.NewFromInt(10),
		UserID: "DECHAWAT",
	})
	require.True(t, xerrors.Is(err, xerrors.InvalidBin))
}

func TestTransferRejectsZeroQty(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)

	_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.Zero,
		UserID: "DECHAWAT",
	})
	require.True(t, xerrors.Is(err, xerrors.InvalidQuantity))
}

func TestTransferRejectsFourDecimalQty(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)

	_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.RequireFromString("1.2345"),
		UserID: "DECHAWAT",
	})
	require.True(t, xerrors.Is(err, xerrors.InvalidQuantity))
}

func TestTransferQtyExactlyAvailableSucceeds(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50)) // available = 925
	engine := transfer.NewEngine(st)

	_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.NewFromInt(925),
		UserID: "DECHAWAT",
	})
	require.NoError(t, err)
}

func TestTransferQtyWithinToleranceOfAvailableSucceeds(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.RequireFromString("974.9999"), decimal.NewFromInt(50)) // available = 924.9999
	engine := transfer.NewEngine(st)

	_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.NewFromInt(925),
		UserID: "DECHAWAT",
	})
	require.NoError(t, err)
}

func TestTransferQtyMeaningfullyOverAvailableFails(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50)) // available = 925
	engine := transfer.NewEngine(st)

	_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.RequireFromString("925.01"),
		UserID: "DECHAWAT",
	})
	require.True(t, xerrors.Is(err, xerrors.InsufficientQuantity))
}

// TestTransferRoundTripRestoresCommittedSales checks that a transfer
// followed by its mirror-image reverse transfer returns committed_sales to
// its starting value.
func TestTransferRoundTripRestoresCommittedSales(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(975), decimal.NewFromInt(50))
	engine := transfer.NewEngine(st)
	ctx := context.Background()

	_, err := engine.Transfer(ctx, transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.NewFromInt(300),
		UserID: "DECHAWAT",
	})
	require.NoError(t, err)

	_, err = engine.Transfer(ctx, transfer.TransferRequest{
		LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
		BinFrom: "WHKON1", BinTo: "K0802-4B", TransferQty: decimal.NewFromInt(300),
		UserID: "DECHAWAT",
	})
	require.NoError(t, err)

	source, err := st.GetLotRow(ctx, st.DB(), store.LotKey{ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "K0802-4B"})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(50).Equal(source.CommittedSales))

	dest, err := st.GetLotRow(ctx, st.DB(), store.LotKey{ItemKey: "INBC1403", Location: "TFC1", LotNo: "2600107-1", BinNo: "WHKON1"})
	require.NoError(t, err)
	require.True(t, decimal.Zero.Equal(dest.CommittedSales))
}

// TestTransferConcurrentRequestsExactlyOneWins is scenario S6: two
// concurrent requests for qty=500 against available=900 (on_hand=900,
// committed_sales=0); only one can succeed.
func TestTransferConcurrentRequestsExactlyOneWins(t *testing.T) {
	st := testutil.NewStore(t)
	seedTransferFixture(t, st, decimal.NewFromInt(900), decimal.Zero)
	engine := transfer.NewEngine(st)

	type outcome struct {
		err error
	}
	results := make(chan outcome, 2)
	run := func() {
		_, err := engine.Transfer(context.Background(), transfer.TransferRequest{
			LotNo: "2600107-1", ItemKey: "INBC1403", Location: "TFC1",
			BinFrom: "K0802-4B", BinTo: "WHKON1", TransferQty: decimal.NewFromInt(500),
			UserID: "DECHAWAT",
		})
		results <- outcome{err: err}
	}
	go run()
	go run()

	first := <-results
	second := <-results

	successes := 0
	for _, o := range []outcome{first, second} {
		if o.err == nil {
			successes++
		} else {
			require.True(t, xerrors.Is(o.err, xerrors.InsufficientQuantity))
		}
	}
	require.Equal(t, 1, successes)
}
