package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hems/hems/internal/platform/db"
)

type LogRepoPG struct {
	pool *pgxpool.Pool
}

func NewLogRepoPG(pool *pgxpool.Pool) *LogRepoPG {
	return &LogRepoPG{pool: pool}
}

func (r *LogRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const logCols = `d.id, d.dispatch_number, d.caller_name, d.caller_phone, d.location,
	d.description, d.severity, d.ambulance_id, d.hospital_id, d.patient_id, d.status,
	d.received_at, d.dispatched_at, d.arrived_on_scene, d.departed_scene,
	d.arrived_hospital, d.handover_completed, d.cleared_at,
	h.county_id, d.created_at, d.updated_at`

const logFrom = `FROM dispatch_logs d JOIN hospitals h ON h.id = d.hospital_id`

func scanLog(row pgx.Row) (*Log, error) {
	var l Log
	err := row.Scan(
		&l.ID, &l.DispatchNumber, &l.CallerName, &l.CallerPhone, &l.Location,
		&l.Description, &l.Severity, &l.AmbulanceID, &l.HospitalID, &l.PatientID, &l.Status,
		&l.ReceivedAt, &l.DispatchedAt, &l.ArrivedOnScene, &l.DepartedScene,
		&l.ArrivedHospital, &l.HandoverCompleted, &l.ClearedAt,
		&l.CountyID, &l.CreatedAt, &l.UpdatedAt,
	)
	return &l, err
}

func (r *LogRepoPG) Create(ctx context.Context, l *Log) error {
	q := `INSERT INTO dispatch_logs (id, dispatch_number, caller_name, caller_phone, location,
		description, severity, ambulance_id, hospital_id, patient_id, status,
		received_at, dispatched_at, arrived_on_scene, departed_scene,
		arrived_hospital, handover_completed, cleared_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.conn(ctx).Exec(ctx, q,
		l.ID, l.DispatchNumber, l.CallerName, l.CallerPhone, l.Location,
		l.Description, l.Severity, l.AmbulanceID, l.HospitalID, l.PatientID, l.Status,
		l.ReceivedAt, l.DispatchedAt, l.ArrivedOnScene, l.DepartedScene,
		l.ArrivedHospital, l.HandoverCompleted, l.ClearedAt, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *LogRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Log, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE d.id = $1", logCols, logFrom)
	return scanLog(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *LogRepoPG) Update(ctx context.Context, l *Log) error {
	q := `UPDATE dispatch_logs SET
		caller_name = $2, caller_phone = $3, location = $4, description = $5,
		severity = $6, ambulance_id = $7, hospital_id = $8, patient_id = $9,
		updated_at = $10
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		l.ID, l.CallerName, l.CallerPhone, l.Location, l.Description,
		l.Severity, l.AmbulanceID, l.HospitalID, l.PatientID, l.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *LogRepoPG) UpdateStatus(ctx context.Context, l *Log, expected string) (bool, error) {
	q := `UPDATE dispatch_logs SET status = $2, ambulance_id = $3,
		dispatched_at = $4, arrived_on_scene = $5, departed_scene = $6,
		arrived_hospital = $7, handover_completed = $8, cleared_at = $9,
		updated_at = $10
		WHERE id = $1 AND status = $11`
	tag, err := r.conn(ctx).Exec(ctx, q,
		l.ID, l.Status, l.AmbulanceID,
		l.DispatchedAt, l.ArrivedOnScene, l.DepartedScene,
		l.ArrivedHospital, l.HandoverCompleted, l.ClearedAt,
		l.UpdatedAt, expected,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *LogRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Log, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("d.hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("d.status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["severity"]; ok {
		where = append(where, fmt.Sprintf("d.severity = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["ambulance_id"]; ok {
		where = append(where, fmt.Sprintf("d.ambulance_id = $%d", idx))
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

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", logFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY d.received_at DESC LIMIT $%d OFFSET $%d",
		logCols, logFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, nil
}
