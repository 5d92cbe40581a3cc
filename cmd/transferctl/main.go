package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/deachawatss/BME-Putaway/internal/config"
	"github.com/deachawatss/BME-Putaway/internal/store"
	"github.com/deachawatss/BME-Putaway/internal/transfer"
)

type app struct {
	cfg config.Args
}

func (a *app) openEngine(ctx context.Context) (*store.Store, *transfer.Engine, error) {
	a.cfg.Log.Apply()

	var st *store.Store
	var err error
	switch a.cfg.Store.Driver {
	case "postgres":
		st, err = store.OpenPostgres(ctx, a.cfg.Store.DSN)
	default:
		dsn := a.cfg.Store.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		st, err = store.OpenSQLite(dsn)
	}
	if err != nil {
		return nil, nil, err
	}
	return st, transfer.NewEngine(st), nil
}

// migrateCmd applies the package's own schema, for the SQLite demo path.
// Production Postgres schemas are owned outside this tool.
type migrateCmd struct{}

func (c *migrateCmd) Execute(_ []string) error {
	ctx := context.Background()
	st, _, err := rootApp.openEngine(ctx)
	if err != nil {
		return err
	}
	return st.Migrate(ctx)
}

type lotKeyFlags struct {
	ItemKey  string `long:"item" required:"true" description:"item key"`
	Location string `long:"location" required:"true" description:"location code"`
	LotNo    string `long:"lot" required:"true" description:"lot number"`
	BinNo    string `long:"bin" required:"true" description:"bin number"`
}

type availabilityCmd struct {
	lotKeyFlags
}

func (c *availabilityCmd) Execute(_ []string) error {
	ctx := context.Background()
	_, engine, err := rootApp.openEngine(ctx)
	if err != nil {
		return err
	}
	view, err := engine.SearchAvailability(ctx, store.LotKey{
		ItemKey: c.ItemKey, Location: c.Location, LotNo: c.LotNo, BinNo: c.BinNo,
	})
	if err != nil {
		return err
	}
	return printJSON(view)
}

type validateBinCmd struct {
	Location string `long:"location" required:"true"`
	Bin      string `long:"bin" required:"true"`
}

func (c *validateBinCmd) Execute(_ []string) error {
	ctx := context.Background()
	_, engine, err := rootApp.openEngine(ctx)
	if err != nil {
		return err
	}
	result, err := engine.ValidateBin(ctx, c.Location, c.Bin)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type remarksCmd struct{}

func (c *remarksCmd) Execute(_ []string) error {
	ctx := context.Background()
	_, engine, err := rootApp.openEngine(ctx)
	if err != nil {
		return err
	}
	opts, err := engine.ListRemarks(ctx)
	if err != nil {
		return err
	}
	return printJSON(opts)
}

type pendingCmd struct {
	LotNo string `long:"lot" required:"true"`
	Bin   string `long:"bin" required:"true"`
}

func (c *pendingCmd) Execute(_ []string) error {
	ctx := context.Background()
	_, engine, err := rootApp.openEngine(ctx)
	if err != nil {
		return err
	}
	rows, err := engine.ListPendingForLotBin(ctx, c.LotNo, c.Bin)
	if err != nil {
		return err
	}
	return printJSON(rows)
}

type transferCmd struct {
	lotKeyFlags
	BinTo     string `long:"bin-to" required:"true" description:"destination bin"`
	Qty       string `long:"qty" required:"true" description:"quantity to transfer"`
	User      string `long:"user" required:"true" description:"user id performing the transfer"`
	Remark    string `long:"remark" description:"remark catalog entry"`
	Reference string `long:"reference" description:"free-text reference"`
}

func (c *transferCmd) Execute(_ []string) error {
	qty, err := decimal.NewFromString(c.Qty)
	if err != nil {
		return fmt.Errorf("parsing --qty: %w", err)
	}
	ctx := context.Background()
	_, engine, err := rootApp.openEngine(ctx)
	if err != nil {
		return err
	}
	result, err := engine.Transfer(ctx, transfer.TransferRequest{
		LotNo: c.LotNo, ItemKey: c.ItemKey, Location: c.Location,
		BinFrom: c.BinNo, BinTo: c.BinTo, TransferQty: qty,
		UserID: c.User, Remarks: c.Remark, Reference: c.Reference,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

type transferCommittedCmd struct {
	lotKeyFlags
	BinTo      string `long:"bin-to" required:"true"`
	Qty        string `long:"qty" required:"true"`
	User       string `long:"user" required:"true"`
	Remark     string `long:"remark"`
	Reference  string `long:"reference"`
	FullCommit bool   `long:"full-commit" description:"consume the entire committed_sales balance"`
	TranNos    []int64 `long:"tran-no" description:"pending lot_tran_no to include; repeatable"`
}

func (c *transferCommittedCmd) Execute(_ []string) error {
	qty, err := decimal.NewFromString(c.Qty)
	if err != nil {
		return fmt.Errorf("parsing --qty: %w", err)
	}
	ctx := context.Background()
	_, engine, err := rootApp.openEngine(ctx)
	if err != nil {
		return err
	}
	result, err := engine.TransferCommitted(ctx, transfer.CommittedTransferRequest{
		LotNo: c.LotNo, ItemKey: c.ItemKey, Location: c.Location,
		BinFrom: c.BinNo, BinTo: c.BinTo, Qty: qty,
		UserID: c.User, Remarks: c.Remark, Reference: c.Reference,
		FullCommit: c.FullCommit, TranNos: c.TranNos,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rootApp = &app{}

func main() {
	parser := flags.NewParser(&rootApp.cfg, flags.Default)

	mustAddCommand(parser, "migrate", "apply the demo schema", &migrateCmd{})
	mustAddCommand(parser, "availability", "report on-hand, committed and available quantity", &availabilityCmd{})
	mustAddCommand(parser, "validate-bin", "check whether a bin exists in a location", &validateBinCmd{})
	mustAddCommand(parser, "remarks", "list the active remark catalog", &remarksCmd{})
	mustAddCommand(parser, "pending", "list pending audit rows for a lot/bin", &pendingCmd{})
	mustAddCommand(parser, "transfer", "transfer free quantity between bins", &transferCmd{})
	mustAddCommand(parser, "transfer-committed", "settle a committed quantity against a new bin", &transferCommittedCmd{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fail(err)
	}
}

func mustAddCommand(parser *flags.Parser, name, short string, data interface{}) {
	if _, err := parser.AddCommand(name, short, short, data); err != nil {
		fail(err)
	}
}

func fail(err error) {
	msg := err.Error()
	log.WithField("error", strings.TrimSpace(msg)).Error("transferctl failed")
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
