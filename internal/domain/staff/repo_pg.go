package staff

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

const memberCols = `id, first_name, last_name, email, phone, role, hospital_id,
	county_id, specialty, license_no, password_hash, is_active, last_login_at,
	created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(
		&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.Role, &m.HospitalID,
		&m.CountyID, &m.Specialty, &m.LicenseNo, &m.PasswordHash, &m.IsActive, &m.LastLoginAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return &m, err
}

func (r *RepoPG) Create(ctx context.Context, m *Member) error {
	q := fmt.Sprintf(`INSERT INTO staff (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, memberCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		m.ID, m.FirstName, m.LastName, m.Email, m.Phone, m.Role, m.HospitalID,
		m.CountyID, m.Specialty, m.LicenseNo, m.PasswordHash, m.IsActive, m.LastLoginAt,
		m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	q := fmt.Sprintf("SELECT %s FROM staff WHERE id = $1", memberCols)
	return scanMember(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) GetByEmail(ctx context.Context, email string) (*Member, error) {
	q := fmt.Sprintf("SELECT %s FROM staff WHERE LOWER(email) = LOWER($1)", memberCols)
	return scanMember(r.conn(ctx).QueryRow(ctx, q, email))
}

func (r *RepoPG) Update(ctx context.Context, m *Member) error {
	q := `UPDATE staff SET
		first_name = $2, last_name = $3, email = $4, phone = $5, role = $6,
		hospital_id = $7, county_id = $8, specialty = $9, license_no = $10,
		password_hash = $11, is_active = $12, updated_at = $13
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		m.ID, m.FirstName, m.LastName, m.Email, m.Phone, m.Role,
		m.HospitalID, m.CountyID, m.Specialty, m.LicenseNo,
		m.PasswordHash, m.IsActive, m.UpdatedAt,
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
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM staff WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		"UPDATE staff SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1", id)
	return err
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Member, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["county_id"]; ok {
		where = append(where, fmt.Sprintf("county_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["role"]; ok {
		where = append(where, fmt.Sprintf("role = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["is_active"]; ok {
		where = append(where, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, v == "true")
		idx++
	}
	if v, ok := params["name"]; ok {
		where = append(where, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d)", idx, idx))
		args = append(args, "%"+v+"%")
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM staff %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM staff %s ORDER BY last_name, first_name LIMIT $%d OFFSET $%d",
		memberCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, nil
}

type ShiftRepoPG struct {
	pool *pgxpool.Pool
}

func NewShiftRepoPG(pool *pgxpool.Pool) *ShiftRepoPG {
	return &ShiftRepoPG{pool: pool}
}

func (r *ShiftRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const shiftCols = `id, staff_id, hospital_id, ward, start_time, end_time, created_at, updated_at`

func scanShift(row pgx.Row) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.StaffID, &s.HospitalID, &s.Ward, &s.StartTime, &s.EndTime,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *ShiftRepoPG) Create(ctx context.Context, s *Shift) error {
	q := fmt.Sprintf("INSERT INTO shifts (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)", shiftCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		s.ID, s.StaffID, s.HospitalID, s.Ward, s.StartTime, s.EndTime, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *ShiftRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Shift, error) {
	q := fmt.Sprintf("SELECT %s FROM shifts WHERE id = $1", shiftCols)
	return scanShift(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *ShiftRepoPG) Update(ctx context.Context, s *Shift) error {
	q := `UPDATE shifts SET staff_id = $2, hospital_id = $3, ward = $4,
		start_time = $5, end_time = $6, updated_at = $7 WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		s.ID, s.StaffID, s.HospitalID, s.Ward, s.StartTime, s.EndTime, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ShiftRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM shifts WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ShiftRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Shift, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["staff_id"]; ok {
		where = append(where, fmt.Sprintf("staff_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["ward"]; ok {
		where = append(where, fmt.Sprintf("ward = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["from"]; ok {
		where = append(where, fmt.Sprintf("end_time >= $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["to"]; ok {
		where = append(where, fmt.Sprintf("start_time <= $%d", idx))
		args = append(args, v)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM shifts %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM shifts %s ORDER BY start_time LIMIT $%d OFFSET $%d",
		shiftCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}
