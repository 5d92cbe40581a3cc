// Package store is the typed gateway over the persistent store: lots, bins,
// audit records, and the sequence counter. Every mutation happens inside an
// explicit transaction with the row lock the dialect provides.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" database/sql driver
	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"github.com/deachawatss/BME-Putaway/internal/xerrors"
)

// Execer is satisfied by both *sql.DB and *sql.Tx, letting read-only query
// helpers run against either a bare connection or an in-flight transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the gateway over lot rows, audit rows, and the sequence counter
// that every transfer path reads and writes through.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres opens the production store against a Postgres DSN via pgx.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.SystemError, err, "opening postgres store")
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, xerrors.Wrap(xerrors.SystemError, err, "connecting to postgres store")
	}
	logger().Info("connected to postgres store")
	return &Store{db: db, dialect: Postgres}, nil
}

// OpenSQLite opens a SQLite-backed store for tests and for the local CLI
// demo path. The _txlock=immediate parameter is what gives SQLite's lack of
// row-level locking the same single-writer-per-source-row serialization
// Postgres gets from "FOR UPDATE" (see Dialect.ForUpdateClause).
func OpenSQLite(path string) (*Store, error) {
	dsn := path
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_txlock=immediate", path, sep)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.SystemError, err, "opening sqlite store")
	}
	db.SetMaxOpenConns(1) // SQLite allows one writer; avoid pool contention masquerading as DB-level locks.
	return &Store{db: db, dialect: SQLite}, nil
}

// NewStore wraps an already-open *sql.DB, used by callers that manage their
// own connection lifecycle.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying *sql.DB for read-only operations that don't need
// a row lock (search, validation, listing).
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies Schema(dialect) against the store's connection. Exists for
// tests and for the CLI's local SQLite demo mode; production Postgres
// schemas are owned outside the engine.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range Schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return xerrors.Wrap(xerrors.SystemError, err, "applying schema")
		}
	}
	return nil
}

// WithinTransfer opens a transaction, locks the source lot row with
// UPDLOCK/ROWLOCK-equivalent semantics, and invokes fn with the locked row.
// fn's returned error rolls the transaction back; a nil error commits.
// This is the single persistent-store transaction every write path —
// free-quantity and committed-quantity alike — runs inside.
func (s *Store) WithinTransfer(ctx context.Context, key LotKey, fn func(ctx context.Context, tx *sql.Tx, source *LotRow) error) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.TxOptions())
	if err != nil {
		return classifyTxError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	source, err := s.lockLotRow(ctx, tx, key)
	if err != nil {
		return err
	}
	if source.OnHand.Sub(source.CommittedSales).IsNegative() {
		return xerrors.New(xerrors.InvariantViolation, "lot row available quantity is negative on read").
			With("item_key", key.ItemKey, "location", key.Location, "lot_no", key.LotNo, "bin_no", key.BinNo)
	}

	if err := fn(ctx, tx, source); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classifyTxError(err)
	}
	committed = true
	return nil
}

func (s *Store) lockLotRow(ctx context.Context, tx *sql.Tx, key LotKey) (*LotRow, error) {
	q := fmt.Sprintf(
		`SELECT item_key, location, lot_no, bin_no, vendor_key, vendor_lot_no, date_received, date_expiry, lot_status, on_hand, committed_sales, reserved
		 FROM lot_rows WHERE item_key=%s AND location=%s AND lot_no=%s AND bin_no=%s%s`,
		s.dialect.Placeholder(0), s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
		s.dialect.ForUpdateClause(),
	)
	row := tx.QueryRowContext(ctx, q, key.ItemKey, key.Location, key.LotNo, key.BinNo)
	return scanLotRow(row.Scan)
}

// GetLotRow reads a lot row without a lock, for read-only operations
// (searchAvailability) that don't run inside a write transaction.
func (s *Store) GetLotRow(ctx context.Context, ex Execer, key LotKey) (*LotRow, error) {
	q := fmt.Sprintf(
		`SELECT item_key, location, lot_no, bin_no, vendor_key, vendor_lot_no, date_received, date_expiry, lot_status, on_hand, committed_sales, reserved
		 FROM lot_rows WHERE item_key=%s AND location=%s AND lot_no=%s AND bin_no=%s`,
		s.dialect.Placeholder(0), s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
	)
	row := ex.QueryRowContext(ctx, q, key.ItemKey, key.Location, key.LotNo, key.BinNo)
	return scanLotRow(row.Scan)
}

func scanLotRow(scan func(dest ...interface{}) error) (*LotRow, error) {
	var r LotRow
	err := scan(&r.ItemKey, &r.Location, &r.LotNo, &r.BinNo, &r.VendorKey, &r.VendorLotNo,
		&r.DateReceived, &r.DateExpiry, &r.LotStatus, &r.OnHand, &r.CommittedSales, &r.Reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerrors.New(xerrors.LotNotFound, "lot row not found").
			With("item_key", r.ItemKey)
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.SystemError, err, "scanning lot row")
	}
	return &r, nil
}

// LotRowExists reports whether a lot row exists at key, used by the
// free-qty path's destination-visibility check.
func (s *Store) LotRowExists(ctx context.Context, ex Execer, key LotKey) (bool, error) {
	q := fmt.Sprintf(
		`SELECT COUNT(*) FROM lot_rows WHERE item_key=%s AND location=%s AND lot_no=%s AND bin_no=%s`,
		s.dialect.Placeholder(0), s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
	)
	var n int
	if err := ex.QueryRowContext(ctx, q, key.ItemKey, key.Location, key.LotNo, key.BinNo).Scan(&n); err != nil {
		return false, xerrors.Wrap(xerrors.SystemError, err, "counting lot rows")
	}
	return n > 0, nil
}

// DestinationLotStatus returns the lot status of an existing destination
// row, or ok=false if no such row exists yet.
func (s *Store) DestinationLotStatus(ctx context.Context, ex Execer, key LotKey) (status string, ok bool, err error) {
	row, err := s.GetLotRow(ctx, ex, key)
	if xerrors.Is(err, xerrors.LotNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.LotStatus, true, nil
}

// AdjustCommittedSales applies delta (positive or negative) to
// committed_sales on the row at key, inside the caller's transaction.
func (s *Store) AdjustCommittedSales(ctx context.Context, tx *sql.Tx, key LotKey, delta decimal.Decimal) error {
	q := fmt.Sprintf(
		`UPDATE lot_rows SET committed_sales = committed_sales + %s WHERE item_key=%s AND location=%s AND lot_no=%s AND bin_no=%s`,
		s.dialect.Placeholder(0), s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3), s.dialect.Placeholder(4),
	)
	res, err := tx.ExecContext(ctx, q, delta, key.ItemKey, key.Location, key.LotNo, key.BinNo)
	if err != nil {
		return xerrors.Wrap(xerrors.SystemError, err, "updating committed_sales")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return xerrors.New(xerrors.LotNotFound, "lot row disappeared during transfer")
	}
	return nil
}

// SumPendingOutbound sums qty_issued across audit_rows and qc_audit_rows for
// (lot, bin) restricted to processed in {N,P} and the outbound transaction
// types — the pending_commit figure reported alongside available quantity.
// It does not enter available, which is on_hand minus committed_sales.
func (s *Store) SumPendingOutbound(ctx context.Context, ex Execer, lot, bin string) (decimal.Decimal, error) {
	// Each half of the UNION needs its own run of placeholders: Postgres
	// numbers parameters positionally across the whole statement, so the
	// same $1 cannot be reused to mean two different argument slots.
	ph := newPlaceholderSeq(s.dialect)
	lotPH1, binPH1 := ph.next(), ph.next()
	typesPH1 := ph.nextN(len(OutboundPendingTypes))
	lotPH2, binPH2 := ph.next(), ph.next()
	typesPH2 := ph.nextN(len(OutboundPendingTypes))

	var fullArgs []interface{}
	appendArgs := func() {
		fullArgs = append(fullArgs, lot, bin)
		for _, t := range OutboundPendingTypes {
			fullArgs = append(fullArgs, t)
		}
	}
	appendArgs()
	appendArgs()

	q := fmt.Sprintf(`
		SELECT COALESCE(SUM(qty_issued), 0) FROM (
			SELECT qty_issued FROM audit_rows
				WHERE lot_no=%s AND bin_no=%s AND processed IN ('%s','%s') AND transaction_type IN (%s)
			UNION ALL
			SELECT qty_issued FROM qc_audit_rows
				WHERE lot_no=%s AND bin_no=%s AND processed IN ('%s','%s') AND transaction_type IN (%s)
		) pending`,
		lotPH1, binPH1, ProcessedNo, ProcessedPartial, strings.Join(typesPH1, ", "),
		lotPH2, binPH2, ProcessedNo, ProcessedPartial, strings.Join(typesPH2, ", "),
	)

	var sum decimal.Decimal
	if err := ex.QueryRowContext(ctx, q, fullArgs...).Scan(&sum); err != nil {
		return decimal.Zero, xerrors.Wrap(xerrors.SystemError, err, "summing pending outbound")
	}
	return sum, nil
}

// ListPendingAuditRows returns the pending (processed in {N,P}, outbound
// type) audit rows for (lot, bin), used by listPendingForLotBin and by the
// committed-quantity path's subset validation.
func (s *Store) ListPendingAuditRows(ctx context.Context, ex Execer, lot, bin string) ([]AuditRow, error) {
	typesIn := placeholderList(s.dialect, 2, len(OutboundPendingTypes))
	args := []interface{}{lot, bin}
	for _, t := range OutboundPendingTypes {
		args = append(args, t)
	}
	q := fmt.Sprintf(`
		SELECT lot_tran_no, lot_no, item_key, location, bin_no, transaction_type, issue_doc_no, issue_doc_line_no,
			receipt_doc_no, receipt_doc_line_no, qty_issued, qty_received, processed
		FROM audit_rows
		WHERE lot_no=%s AND bin_no=%s AND processed IN ('%s','%s') AND transaction_type IN (%s)
		ORDER BY lot_tran_no ASC`,
		s.dialect.Placeholder(0), s.dialect.Placeholder(1), ProcessedNo, ProcessedPartial, typesIn,
	)
	rows, err := ex.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.SystemError, err, "listing pending audit rows")
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.LotTranNo, &r.LotNo, &r.ItemKey, &r.Location, &r.BinNo, &r.TransactionType,
			&r.IssueDocNo, &r.IssueDocLineNo, &r.ReceiptDocNo, &r.ReceiptDocLineNo, &r.QtyIssued, &r.QtyReceived, &r.Processed); err != nil {
			return nil, xerrors.Wrap(xerrors.SystemError, err, "scanning pending audit row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetAuditRowsByTranNo loads specific pending audit rows by their
// lot_tran_no, used to validate an explicit commitment subset when qty is
// less than committed_sales.
func (s *Store) GetAuditRowsByTranNo(ctx context.Context, ex Execer, tranNos []int64) ([]AuditRow, error) {
	if len(tranNos) == 0 {
		return nil, nil
	}
	in := placeholderList(s.dialect, 0, len(tranNos))
	args := make([]interface{}, len(tranNos))
	for i, n := range tranNos {
		args[i] = n
	}
	q := fmt.Sprintf(`
		SELECT lot_tran_no, lot_no, item_key, location, bin_no, transaction_type, qty_issued, processed
		FROM audit_rows WHERE lot_tran_no IN (%s)`, in)
	rows, err := ex.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.SystemError, err, "loading audit rows by tran no")
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.LotTranNo, &r.LotNo, &r.ItemKey, &r.Location, &r.BinNo, &r.TransactionType, &r.QtyIssued, &r.Processed); err != nil {
			return nil, xerrors.Wrap(xerrors.SystemError, err, "scanning audit row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertAuditRow writes one leg of a transfer. Columns not populated by the
// caller carry their zero value, which for the fixed sentinels
// (customer_key="", date_quarantine=NULL, processed="N") matches what the
// legacy schema expects as long as callers don't override them.
func (s *Store) InsertAuditRow(ctx context.Context, tx *sql.Tx, row AuditRow) (int64, error) {
	if row.Processed == "" {
		row.Processed = ProcessedNo
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}

	cols := []string{
		"lot_no", "item_key", "location", "bin_no", "transaction_type",
		"issue_doc_no", "issue_doc_line_no", "receipt_doc_no", "receipt_doc_line_no",
		"qty_issued", "qty_received", "vendor_key", "vendor_lot_no", "customer_key",
		"date_expiry", "date_received", "date_quarantine", "user_id", "remark", "reference",
		"created_at", "processed",
	}
	args := []interface{}{
		row.LotNo, row.ItemKey, row.Location, row.BinNo, row.TransactionType,
		row.IssueDocNo, row.IssueDocLineNo, row.ReceiptDocNo, row.ReceiptDocLineNo,
		row.QtyIssued, row.QtyReceived, row.VendorKey, row.VendorLotNo, row.CustomerKey,
		row.DateExpiry, row.DateReceived, row.DateQuarantine, row.UserID, row.Remark, row.Reference,
		row.Timestamp, row.Processed,
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = s.dialect.Placeholder(i)
	}
	insertSQL := fmt.Sprintf("INSERT INTO audit_rows (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if s.dialect.Name() == "postgres" {
		var id int64
		if err := tx.QueryRowContext(ctx, insertSQL+" RETURNING lot_tran_no", args...).Scan(&id); err != nil {
			return 0, xerrors.Wrap(xerrors.SystemError, err, "inserting audit row")
		}
		return id, nil
	}
	res, err := tx.ExecContext(ctx, insertSQL, args...)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.SystemError, err, "inserting audit row")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, xerrors.Wrap(xerrors.SystemError, err, "reading inserted audit row id")
	}
	return id, nil
}

// NextSequence atomically allocates the next value of the named counter
// inside the caller's transaction.
func (s *Store) NextSequence(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	lockSQL := fmt.Sprintf(`SELECT value FROM sequence_counters WHERE name=%s%s`, s.dialect.Placeholder(0), s.dialect.ForUpdateClause())
	var current int64
	err := tx.QueryRowContext(ctx, lockSQL, name).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		insertSQL := fmt.Sprintf(`INSERT INTO sequence_counters (name, value) VALUES (%s, %s)`, s.dialect.Placeholder(0), s.dialect.Placeholder(1))
		if _, err := tx.ExecContext(ctx, insertSQL, name, 0); err != nil {
			return 0, xerrors.Wrap(xerrors.SystemError, err, "initializing sequence counter")
		}
		current = 0
	} else if err != nil {
		return 0, classifyTxError(err)
	}

	next := current + 1
	updateSQL := fmt.Sprintf(`UPDATE sequence_counters SET value=%s WHERE name=%s`, s.dialect.Placeholder(0), s.dialect.Placeholder(1))
	if _, err := tx.ExecContext(ctx, updateSQL, next, name); err != nil {
		return 0, xerrors.Wrap(xerrors.SystemError, err, "bumping sequence counter")
	}
	return next, nil
}

// BinExists reports whether bin is registered for location in the bin
// master.
func (s *Store) BinExists(ctx context.Context, ex Execer, location, bin string) (bool, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM bin_master WHERE location=%s AND bin_no=%s`, s.dialect.Placeholder(0), s.dialect.Placeholder(1))
	var n int
	if err := ex.QueryRowContext(ctx, q, location, bin).Scan(&n); err != nil {
		return false, xerrors.Wrap(xerrors.SystemError, err, "checking bin master")
	}
	return n > 0, nil
}

// IsFreezeInventory reports the Freeze_Inventory flag from the parameter
// store.
func (s *Store) IsFreezeInventory(ctx context.Context, ex Execer) (bool, error) {
	return s.paramTruthy(ctx, ex, "Freeze_Inventory")
}

func (s *Store) paramTruthy(ctx context.Context, ex Execer, name string) (bool, error) {
	q := fmt.Sprintf(`SELECT value FROM parameter_store WHERE name=%s`, s.dialect.Placeholder(0))
	var v string
	err := ex.QueryRowContext(ctx, q, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.Wrap(xerrors.SystemError, err, "reading parameter store")
	}
	return isTruthy(v), nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "y", "yes":
		return true
	default:
		return false
	}
}

// IsPhysicalCountInProgress reports whether (item, location) has an active
// physical count.
func (s *Store) IsPhysicalCountInProgress(ctx context.Context, ex Execer, item, location string) (bool, error) {
	q := fmt.Sprintf(`SELECT in_progress FROM physical_count_flags WHERE item_key=%s AND location=%s`,
		s.dialect.Placeholder(0), s.dialect.Placeholder(1))
	var v int
	err := ex.QueryRowContext(ctx, q, item, location).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.Wrap(xerrors.SystemError, err, "reading physical count flags")
	}
	return v != 0, nil
}

// IsTransferrable reports whether item is serial-lot-tracked and
// multi-bin-enabled.
func (s *Store) IsTransferrable(ctx context.Context, ex Execer, item string) (bool, error) {
	q := fmt.Sprintf(`SELECT serial_lot_tracked, multi_bin_enabled FROM item_master WHERE item_key=%s`, s.dialect.Placeholder(0))
	var serial, multiBin int
	err := ex.QueryRowContext(ctx, q, item).Scan(&serial, &multiBin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.Wrap(xerrors.SystemError, err, "reading item master")
	}
	return serial != 0 && multiBin != 0, nil
}

// ListRemarkOptions returns the active remark catalog entries in id order.
func (s *Store) ListRemarkOptions(ctx context.Context, ex Execer) ([]RemarkOption, error) {
	q := `SELECT id, name, active FROM remark_options WHERE active != 0 ORDER BY id ASC`
	rows, err := ex.QueryContext(ctx, q)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.SystemError, err, "listing remark options")
	}
	defer rows.Close()

	var out []RemarkOption
	for rows.Next() {
		var r RemarkOption
		var active int
		if err := rows.Scan(&r.ID, &r.Name, &active); err != nil {
			return nil, xerrors.Wrap(xerrors.SystemError, err, "scanning remark option")
		}
		r.Active = active != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholderList(dialect Dialect, startAt, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = dialect.Placeholder(startAt + i)
	}
	return strings.Join(parts, ", ")
}

// placeholderSeq hands out sequential placeholders for statements built from
// more than one parameterized clause, so Postgres's positional $N numbering
// stays consistent with the argument slice actually passed to the driver.
type placeholderSeq struct {
	dialect Dialect
	idx     int
}

func newPlaceholderSeq(dialect Dialect) *placeholderSeq {
	return &placeholderSeq{dialect: dialect}
}

func (p *placeholderSeq) next() string {
	ph := p.dialect.Placeholder(p.idx)
	p.idx++
	return ph
}

func (p *placeholderSeq) nextN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = p.next()
	}
	return out
}

// classifyTxError maps low-level transaction failures onto the Contention
// and Timeout kinds, the two a caller should treat as retryable.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.Timeout, err, "store operation exceeded its deadline")
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "lock_not_available") || strings.Contains(msg, "could not obtain lock") {
		return xerrors.Wrap(xerrors.Contention, err, "could not acquire row lock within the lock-wait budget")
	}
	return xerrors.Wrap(xerrors.SystemError, err, "store transaction failed")
}

// logger returns a component-scoped logrus entry.
func logger() *log.Entry {
	return log.WithField("component", "store")
}
