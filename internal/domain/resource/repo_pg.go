package resource

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

const resourceCols = `r.id, r.hospital_id, r.name, r.resource_type, r.total_capacity,
	r.available_capacity, r.reserved_capacity, r.in_use_capacity,
	r.critical_level, r.reorder_level, r.status, r.is_operational,
	h.county_id, r.created_at, r.updated_at`

const resourceFrom = `FROM resources r JOIN hospitals h ON h.id = r.hospital_id`

func scanResource(row pgx.Row) (*Resource, error) {
	var res Resource
	err := row.Scan(
		&res.ID, &res.HospitalID, &res.Name, &res.ResourceType, &res.TotalCapacity,
		&res.AvailableCapacity, &res.ReservedCapacity, &res.InUseCapacity,
		&res.CriticalLevel, &res.ReorderLevel, &res.Status, &res.IsOperational,
		&res.CountyID, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.NeedsReorder = res.AvailableCapacity <= res.ReorderLevel
	return &res, nil
}

func (r *RepoPG) Create(ctx context.Context, res *Resource) error {
	q := `INSERT INTO resources (id, hospital_id, name, resource_type, total_capacity,
		available_capacity, reserved_capacity, in_use_capacity,
		critical_level, reorder_level, status, is_operational, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.conn(ctx).Exec(ctx, q,
		res.ID, res.HospitalID, res.Name, res.ResourceType, res.TotalCapacity,
		res.AvailableCapacity, res.ReservedCapacity, res.InUseCapacity,
		res.CriticalLevel, res.ReorderLevel, res.Status, res.IsOperational,
		res.CreatedAt, res.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Resource, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE r.id = $1", resourceCols, resourceFrom)
	return scanResource(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) Update(ctx context.Context, res *Resource) error {
	q := `UPDATE resources SET
		name = $2, resource_type = $3, total_capacity = $4, available_capacity = $5,
		reserved_capacity = $6, in_use_capacity = $7, critical_level = $8,
		reorder_level = $9, status = $10, is_operational = $11, updated_at = $12
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		res.ID, res.Name, res.ResourceType, res.TotalCapacity, res.AvailableCapacity,
		res.ReservedCapacity, res.InUseCapacity, res.CriticalLevel,
		res.ReorderLevel, res.Status, res.IsOperational, res.UpdatedAt,
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
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM resources WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Resource, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("r.hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["resource_type"]; ok {
		where = append(where, fmt.Sprintf("r.resource_type = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("r.status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["county_id"]; ok {
		where = append(where, fmt.Sprintf("h.county_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if _, ok := params["needs_reorder"]; ok {
		where = append(where, "r.available_capacity <= r.reorder_level")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", resourceFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY r.name LIMIT $%d OFFSET $%d",
		resourceCols, resourceFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, res)
	}
	return items, total, nil
}
