package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All quantities and notionals are stored as NUMERIC for exact precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const snapshotColumns = `snapshot_id, chore_id, security_id, side,
	px::TEXT, qty::TEXT, notional::TEXT,
	user_data, underlying_account, instrument_type, broker, chore_status,
	filled_qty::TEXT, avg_fill_px::TEXT, fill_notional::TEXT,
	last_update_fill_qty::TEXT, last_update_fill_px::TEXT,
	cxled_qty::TEXT, cxled_notional::TEXT, avg_cxled_px::TEXT,
	pending_amend_dn_qty::TEXT, pending_amend_dn_px::TEXT,
	pending_amend_up_qty::TEXT, pending_amend_up_px::TEXT,
	total_amend_dn_qty::TEXT, total_amend_up_qty::TEXT,
	last_lapsed_qty::TEXT, total_lapsed_qty::TEXT,
	create_date_time, last_update_date_time`

func (s *PostgresStore) GetByChoreID(ctx context.Context, choreID string) (*model.ChoreSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM chore_snapshots WHERE chore_id = $1`, choreID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: chore %s", ErrNotFound, choreID)
		}
		return nil, fmt.Errorf("get snapshot %s: %w", choreID, err)
	}
	return snap, nil
}

func (s *PostgresStore) Create(ctx context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error) {
	stored := *snap
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chore_snapshots (
			chore_id, security_id, side, px, qty, notional,
			user_data, underlying_account, instrument_type, broker, chore_status,
			filled_qty, avg_fill_px, fill_notional,
			last_update_fill_qty, last_update_fill_px,
			cxled_qty, cxled_notional, avg_cxled_px,
			pending_amend_dn_qty, pending_amend_dn_px,
			pending_amend_up_qty, pending_amend_up_px,
			total_amend_dn_qty, total_amend_up_qty,
			last_lapsed_qty, total_lapsed_qty,
			create_date_time, last_update_date_time
		) VALUES (
			$1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC,
			$7, $8, $9, $10, $11,
			$12::NUMERIC, $13::NUMERIC, $14::NUMERIC,
			$15::NUMERIC, $16::NUMERIC,
			$17::NUMERIC, $18::NUMERIC, $19::NUMERIC,
			$20::NUMERIC, $21::NUMERIC,
			$22::NUMERIC, $23::NUMERIC,
			$24::NUMERIC, $25::NUMERIC,
			$26::NUMERIC, $27::NUMERIC,
			$28, $29
		) RETURNING snapshot_id`,
		snap.ChoreID, snap.Brief.SecurityID, string(snap.Brief.Side),
		snap.Brief.Px.String(), snap.Brief.Qty.String(), snap.Brief.Notional.String(),
		snap.Brief.UserData, snap.Brief.UnderlyingAccount, snap.Brief.InstrumentType,
		snap.Brief.Broker, string(snap.Status),
		snap.FilledQty.String(), snap.AvgFillPx.String(), snap.FillNotional.String(),
		snap.LastUpdateFillQty.String(), snap.LastUpdateFillPx.String(),
		snap.CxledQty.String(), snap.CxledNotional.String(), snap.AvgCxledPx.String(),
		snap.PendingAmendDnQty.String(), snap.PendingAmendDnPx.String(),
		snap.PendingAmendUpQty.String(), snap.PendingAmendUpPx.String(),
		snap.TotalAmendDnQty.String(), snap.TotalAmendUpQty.String(),
		snap.LastLapsedQty.String(), snap.TotalLapsedQty.String(),
		snap.CreatedAt, snap.UpdatedAt,
	).Scan(&stored.SnapshotID)
	if err != nil {
		return nil, fmt.Errorf("create snapshot %s: %w", snap.ChoreID, err)
	}
	return &stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE chore_snapshots SET
			px = $2::NUMERIC, qty = $3::NUMERIC, notional = $4::NUMERIC,
			broker = $5, chore_status = $6,
			filled_qty = $7::NUMERIC, avg_fill_px = $8::NUMERIC,
			fill_notional = $9::NUMERIC,
			last_update_fill_qty = $10::NUMERIC, last_update_fill_px = $11::NUMERIC,
			cxled_qty = $12::NUMERIC, cxled_notional = $13::NUMERIC,
			avg_cxled_px = $14::NUMERIC,
			pending_amend_dn_qty = $15::NUMERIC, pending_amend_dn_px = $16::NUMERIC,
			pending_amend_up_qty = $17::NUMERIC, pending_amend_up_px = $18::NUMERIC,
			total_amend_dn_qty = $19::NUMERIC, total_amend_up_qty = $20::NUMERIC,
			last_lapsed_qty = $21::NUMERIC, total_lapsed_qty = $22::NUMERIC,
			last_update_date_time = $23
		 WHERE chore_id = $1`,
		snap.ChoreID,
		snap.Brief.Px.String(), snap.Brief.Qty.String(), snap.Brief.Notional.String(),
		snap.Brief.Broker, string(snap.Status),
		snap.FilledQty.String(), snap.AvgFillPx.String(),
		snap.FillNotional.String(),
		snap.LastUpdateFillQty.String(), snap.LastUpdateFillPx.String(),
		snap.CxledQty.String(), snap.CxledNotional.String(),
		snap.AvgCxledPx.String(),
		snap.PendingAmendDnQty.String(), snap.PendingAmendDnPx.String(),
		snap.PendingAmendUpQty.String(), snap.PendingAmendUpPx.String(),
		snap.TotalAmendDnQty.String(), snap.TotalAmendUpQty.String(),
		snap.LastLapsedQty.String(), snap.TotalLapsedQty.String(),
		snap.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update snapshot %s: %w", snap.ChoreID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: chore %s", ErrNotFound, snap.ChoreID)
	}
	return s.GetByChoreID(ctx, snap.ChoreID)
}

func (s *PostgresStore) ListOpen(ctx context.Context) ([]model.ChoreSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotColumns+` FROM chore_snapshots
		 WHERE chore_status NOT IN ('DOD', 'FILLED', 'OVER_FILLED', 'OVER_CXLED')
		 ORDER BY create_date_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.ChoreSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanSnapshot.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*model.ChoreSnapshot, error) {
	var snap model.ChoreSnapshot
	var side, status string
	dec := make([]string, 19)

	err := row.Scan(
		&snap.SnapshotID, &snap.ChoreID, &snap.Brief.SecurityID, &side,
		&dec[0], &dec[1], &dec[2],
		&snap.Brief.UserData, &snap.Brief.UnderlyingAccount,
		&snap.Brief.InstrumentType, &snap.Brief.Broker, &status,
		&dec[3], &dec[4], &dec[5],
		&dec[6], &dec[7],
		&dec[8], &dec[9], &dec[10],
		&dec[11], &dec[12],
		&dec[13], &dec[14],
		&dec[15], &dec[16],
		&dec[17], &dec[18],
		&snap.CreatedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	snap.Brief.ChoreID = snap.ChoreID
	snap.Brief.Side = model.Side(side)
	snap.Status = model.ChoreStatus(status)

	fields := []*decimal.Decimal{
		&snap.Brief.Px, &snap.Brief.Qty, &snap.Brief.Notional,
		&snap.FilledQty, &snap.AvgFillPx, &snap.FillNotional,
		&snap.LastUpdateFillQty, &snap.LastUpdateFillPx,
		&snap.CxledQty, &snap.CxledNotional, &snap.AvgCxledPx,
		&snap.PendingAmendDnQty, &snap.PendingAmendDnPx,
		&snap.PendingAmendUpQty, &snap.PendingAmendUpPx,
		&snap.TotalAmendDnQty, &snap.TotalAmendUpQty,
		&snap.LastLapsedQty, &snap.TotalLapsedQty,
	}
	for i, f := range fields {
		v, err := decimal.NewFromString(dec[i])
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: parse numeric column %d: %w", snap.ChoreID, i, err)
		}
		*f = v
	}

	return &snap, nil
}
