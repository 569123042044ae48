package hospital

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

const hospitalCols = `id, code, name, county_id, sub_county, level, category,
	bed_capacity, icu_capacity, phone, email, address, latitude, longitude,
	operational_status, created_at, updated_at`

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(
		&h.ID, &h.Code, &h.Name, &h.CountyID, &h.SubCounty, &h.Level, &h.Category,
		&h.BedCapacity, &h.ICUCapacity, &h.Phone, &h.Email, &h.Address, &h.Latitude, &h.Longitude,
		&h.OperationalStatus, &h.CreatedAt, &h.UpdatedAt,
	)
	return &h, err
}

func (r *RepoPG) Create(ctx context.Context, h *Hospital) error {
	q := fmt.Sprintf(`INSERT INTO hospitals (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`, hospitalCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		h.ID, h.Code, h.Name, h.CountyID, h.SubCounty, h.Level, h.Category,
		h.BedCapacity, h.ICUCapacity, h.Phone, h.Email, h.Address, h.Latitude, h.Longitude,
		h.OperationalStatus, h.CreatedAt, h.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	q := fmt.Sprintf("SELECT %s FROM hospitals WHERE id = $1", hospitalCols)
	return scanHospital(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) GetByCode(ctx context.Context, code string) (*Hospital, error) {
	q := fmt.Sprintf("SELECT %s FROM hospitals WHERE code = $1", hospitalCols)
	return scanHospital(r.conn(ctx).QueryRow(ctx, q, code))
}

func (r *RepoPG) Update(ctx context.Context, h *Hospital) error {
	q := `UPDATE hospitals SET
		code = $2, name = $3, county_id = $4, sub_county = $5, level = $6, category = $7,
		bed_capacity = $8, icu_capacity = $9, phone = $10, email = $11, address = $12,
		latitude = $13, longitude = $14, operational_status = $15, updated_at = $16
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		h.ID, h.Code, h.Name, h.CountyID, h.SubCounty, h.Level, h.Category,
		h.BedCapacity, h.ICUCapacity, h.Phone, h.Email, h.Address,
		h.Latitude, h.Longitude, h.OperationalStatus, h.UpdatedAt,
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
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM hospitals WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Hospital, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["county_id"]; ok {
		where = append(where, fmt.Sprintf("county_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["level"]; ok {
		where = append(where, fmt.Sprintf("level = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["category"]; ok {
		where = append(where, fmt.Sprintf("category = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["operational_status"]; ok {
		where = append(where, fmt.Sprintf("operational_status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["name"]; ok {
		where = append(where, fmt.Sprintf("name ILIKE $%d", idx))
		args = append(args, "%"+v+"%")
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM hospitals %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM hospitals %s ORDER BY name LIMIT $%d OFFSET $%d",
		hospitalCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, nil
}

func (r *RepoPG) HasPatients(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM patients WHERE hospital_id = $1)", id).Scan(&exists)
	return exists, err
}
