package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hems/hems/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const transferCols = `t.id, t.transfer_number, t.patient_id, t.origin_hospital_id,
	t.destination_hospital_id, t.triage_entry_id, t.ambulance_id, t.urgency, t.reason,
	t.status, t.bed_reserved, t.requested_at, t.approved_at, t.rejected_at,
	t.departure_time, t.arrival_time, t.completed_at, t.cancelled_at,
	h.county_id, t.created_at, t.updated_at`

const transferFrom = `FROM transfers t JOIN hospitals h ON h.id = t.origin_hospital_id`

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var t Transfer
	err := row.Scan(
		&t.ID, &t.TransferNumber, &t.PatientID, &t.OriginHospitalID,
		&t.DestinationHospitalID, &t.TriageEntryID, &t.AmbulanceID, &t.Urgency, &t.Reason,
		&t.Status, &t.BedReserved, &t.RequestedAt, &t.ApprovedAt, &t.RejectedAt,
		&t.DepartureTime, &t.ArrivalTime, &t.CompletedAt, &t.CancelledAt,
		&t.CountyID, &t.CreatedAt, &t.UpdatedAt,
	)
	return &t, err
}

func (r *RepoPG) Create(ctx context.Context, t *Transfer) error {
	q := `INSERT INTO transfers (id, transfer_number, patient_id, origin_hospital_id,
		destination_hospital_id, triage_entry_id, ambulance_id, urgency, reason,
		status, bed_reserved, requested_at, approved_at, rejected_at,
		departure_time, arrival_time, completed_at, cancelled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.conn(ctx).Exec(ctx, q,
		t.ID, t.TransferNumber, t.PatientID, t.OriginHospitalID,
		t.DestinationHospitalID, t.TriageEntryID, t.AmbulanceID, t.Urgency, t.Reason,
		t.Status, t.BedReserved, t.RequestedAt, t.ApprovedAt, t.RejectedAt,
		t.DepartureTime, t.ArrivalTime, t.CompletedAt, t.CancelledAt, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE t.id = $1", transferCols, transferFrom)
	return scanTransfer(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) Update(ctx context.Context, t *Transfer) error {
	q := `UPDATE transfers SET destination_hospital_id = $2, triage_entry_id = $3,
		ambulance_id = $4, urgency = $5, reason = $6, updated_at = $7
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		t.ID, t.DestinationHospitalID, t.TriageEntryID,
		t.AmbulanceID, t.Urgency, t.Reason, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM transfers WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) UpdateStatus(ctx context.Context, t *Transfer, expected string) (bool, error) {
	q := `UPDATE transfers SET status = $2, ambulance_id = $3, bed_reserved = $4,
		approved_at = $5, rejected_at = $6, departure_time = $7, arrival_time = $8,
		completed_at = $9, cancelled_at = $10, updated_at = $11
		WHERE id = $1 AND status = $12`
	tag, err := r.conn(ctx).Exec(ctx, q,
		t.ID, t.Status, t.AmbulanceID, t.BedReserved,
		t.ApprovedAt, t.RejectedAt, t.DepartureTime, t.ArrivalTime,
		t.CompletedAt, t.CancelledAt, t.UpdatedAt, expected,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Transfer, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["origin_hospital_id"]; ok {
		where = append(where, fmt.Sprintf("t.origin_hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["destination_hospital_id"]; ok {
		where = append(where, fmt.Sprintf("t.destination_hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("(t.origin_hospital_id = $%d OR t.destination_hospital_id = $%d)", idx, idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["patient_id"]; ok {
		where = append(where, fmt.Sprintf("t.patient_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("t.status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["urgency"]; ok {
		where = append(where, fmt.Sprintf("t.urgency = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["county_id"]; ok {
		where = append(where, fmt.Sprintf("h.county_id = $%d", idx))
		args = append(args, v)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", transferFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY t.requested_at DESC LIMIT $%d OFFSET $%d",
		transferCols, transferFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, nil
}
