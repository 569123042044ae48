package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

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

const entryCols = `t.id, t.patient_id, t.hospital_id, t.officer_id, t.category,
	t.chief_complaint, t.heart_rate, t.blood_pressure_sys, t.blood_pressure_dia,
	t.temperature, t.respiratory_rate, t.oxygen_saturation, t.pain_scale,
	t.notes, t.status, t.completed_at, h.county_id, t.created_at, t.updated_at`

const entryFrom = `FROM triage_entries t JOIN hospitals h ON h.id = t.hospital_id`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.PatientID, &e.HospitalID, &e.OfficerID, &e.Category,
		&e.ChiefComplaint, &e.HeartRate, &e.BloodPressureSys, &e.BloodPressureDia,
		&e.Temperature, &e.RespiratoryRate, &e.OxygenSaturation, &e.PainScale,
		&e.Notes, &e.Status, &e.CompletedAt, &e.CountyID, &e.CreatedAt, &e.UpdatedAt,
	)
	return &e, err
}

func (r *RepoPG) Create(ctx context.Context, e *Entry) error {
	q := `INSERT INTO triage_entries (id, patient_id, hospital_id, officer_id, category,
		chief_complaint, heart_rate, blood_pressure_sys, blood_pressure_dia,
		temperature, respiratory_rate, oxygen_saturation, pain_scale,
		notes, status, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.conn(ctx).Exec(ctx, q,
		e.ID, e.PatientID, e.HospitalID, e.OfficerID, e.Category,
		e.ChiefComplaint, e.HeartRate, e.BloodPressureSys, e.BloodPressureDia,
		e.Temperature, e.RespiratoryRate, e.OxygenSaturation, e.PainScale,
		e.Notes, e.Status, e.CompletedAt, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE t.id = $1", entryCols, entryFrom)
	return scanEntry(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) Update(ctx context.Context, e *Entry) error {
	q := `UPDATE triage_entries SET
		officer_id = $2, category = $3, chief_complaint = $4, heart_rate = $5,
		blood_pressure_sys = $6, blood_pressure_dia = $7, temperature = $8,
		respiratory_rate = $9, oxygen_saturation = $10, pain_scale = $11,
		notes = $12, status = $13, completed_at = $14, updated_at = $15
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		e.ID, e.OfficerID, e.Category, e.ChiefComplaint, e.HeartRate,
		e.BloodPressureSys, e.BloodPressureDia, e.Temperature,
		e.RespiratoryRate, e.OxygenSaturation, e.PainScale,
		e.Notes, e.Status, e.CompletedAt, e.UpdatedAt,
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
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM triage_entries WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("t.hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["patient_id"]; ok {
		where = append(where, fmt.Sprintf("t.patient_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["category"]; ok {
		where = append(where, fmt.Sprintf("t.category = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("t.status = $%d", idx))
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

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", entryFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d",
		entryCols, entryFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, nil
}

func (r *RepoPG) ConditionalSetStatus(ctx context.Context, id uuid.UUID, expected, next string, completedAt *time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE triage_entries SET status = $3, completed_at = COALESCE($4, completed_at), updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, expected, next, completedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
