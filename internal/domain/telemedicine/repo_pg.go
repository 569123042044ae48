package telemedicine

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

const sessionCols = `s.id, s.session_number, s.patient_id, s.specialist_id, s.hospital_id,
	s.scheduled_at, s.start_time, s.end_time, s.reason, s.notes, s.status,
	h.county_id, s.created_at, s.updated_at`

const sessionFrom = `FROM telemedicine_sessions s JOIN hospitals h ON h.id = s.hospital_id`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.SessionNumber, &s.PatientID, &s.SpecialistID, &s.HospitalID,
		&s.ScheduledAt, &s.StartTime, &s.EndTime, &s.Reason, &s.Notes, &s.Status,
		&s.CountyID, &s.CreatedAt, &s.UpdatedAt,
	)
	return &s, err
}

func (r *RepoPG) Create(ctx context.Context, s *Session) error {
	q := `INSERT INTO telemedicine_sessions (id, session_number, patient_id, specialist_id,
		hospital_id, scheduled_at, start_time, end_time, reason, notes, status,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.conn(ctx).Exec(ctx, q,
		s.ID, s.SessionNumber, s.PatientID, s.SpecialistID,
		s.HospitalID, s.ScheduledAt, s.StartTime, s.EndTime, s.Reason, s.Notes, s.Status,
		s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE s.id = $1", sessionCols, sessionFrom)
	return scanSession(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) Update(ctx context.Context, s *Session) error {
	q := `UPDATE telemedicine_sessions SET
		patient_id = $2, specialist_id = $3, hospital_id = $4, scheduled_at = $5,
		start_time = $6, end_time = $7, reason = $8, notes = $9, status = $10,
		updated_at = $11
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		s.ID, s.PatientID, s.SpecialistID, s.HospitalID, s.ScheduledAt,
		s.StartTime, s.EndTime, s.Reason, s.Notes, s.Status, s.UpdatedAt,
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
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM telemedicine_sessions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Session, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("s.hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["patient_id"]; ok {
		where = append(where, fmt.Sprintf("s.patient_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["specialist_id"]; ok {
		where = append(where, fmt.Sprintf("s.specialist_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("s.status = $%d", idx))
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

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", sessionFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY s.scheduled_at DESC LIMIT $%d OFFSET $%d",
		sessionCols, sessionFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

func (r *RepoPG) ConditionalSetStatus(ctx context.Context, id uuid.UUID, expected, next string, startTime, endTime *time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE telemedicine_sessions SET status = $3,
		start_time = COALESCE($4, start_time), end_time = COALESCE($5, end_time),
		updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, expected, next, startTime, endTime)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
