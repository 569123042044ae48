package dispatch

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

type AmbulanceRepoPG struct {
	pool *pgxpool.Pool
}

func NewAmbulanceRepoPG(pool *pgxpool.Pool) *AmbulanceRepoPG {
	return &AmbulanceRepoPG{pool: pool}
}

func (r *AmbulanceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ambulanceCols = `a.id, a.unit_number, a.hospital_id, a.vehicle_type, a.status,
	a.driver_name, a.driver_phone, a.latitude, a.longitude, a.last_serviced,
	h.county_id, a.created_at, a.updated_at`

const ambulanceFrom = `FROM ambulances a JOIN hospitals h ON h.id = a.hospital_id`

func scanAmbulance(row pgx.Row) (*Ambulance, error) {
	var a Ambulance
	err := row.Scan(
		&a.ID, &a.UnitNumber, &a.HospitalID, &a.VehicleType, &a.Status,
		&a.DriverName, &a.DriverPhone, &a.Latitude, &a.Longitude, &a.LastServiced,
		&a.CountyID, &a.CreatedAt, &a.UpdatedAt,
	)
	return &a, err
}

func (r *AmbulanceRepoPG) Create(ctx context.Context, a *Ambulance) error {
	q := `INSERT INTO ambulances (id, unit_number, hospital_id, vehicle_type, status,
		driver_name, driver_phone, latitude, longitude, last_serviced, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.conn(ctx).Exec(ctx, q,
		a.ID, a.UnitNumber, a.HospitalID, a.VehicleType, a.Status,
		a.DriverName, a.DriverPhone, a.Latitude, a.Longitude, a.LastServiced,
		a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *AmbulanceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ambulance, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE a.id = $1", ambulanceCols, ambulanceFrom)
	return scanAmbulance(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *AmbulanceRepoPG) Update(ctx context.Context, a *Ambulance) error {
	q := `UPDATE ambulances SET
		unit_number = $2, hospital_id = $3, vehicle_type = $4, status = $5,
		driver_name = $6, driver_phone = $7, latitude = $8, longitude = $9,
		last_serviced = $10, updated_at = $11
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		a.ID, a.UnitNumber, a.HospitalID, a.VehicleType, a.Status,
		a.DriverName, a.DriverPhone, a.Latitude, a.Longitude,
		a.LastServiced, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AmbulanceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM ambulances WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AmbulanceRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Ambulance, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("a.hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("a.status = $%d", idx))
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

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", ambulanceFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY a.unit_number LIMIT $%d OFFSET $%d",
		ambulanceCols, ambulanceFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Ambulance
	for rows.Next() {
		a, err := scanAmbulance(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *AmbulanceRepoPG) ConditionalSetStatus(ctx context.Context, id uuid.UUID, expected, next string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		"UPDATE ambulances SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2",
		id, expected, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *AmbulanceRepoPG) Release(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE ambulances SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($2, $3)`,
		id, AmbulanceAvailable, AmbulanceOutOfService)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
