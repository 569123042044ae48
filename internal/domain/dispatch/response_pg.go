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

type ResponseRepoPG struct {
	pool *pgxpool.Pool
}

func NewResponseRepoPG(pool *pgxpool.Pool) *ResponseRepoPG {
	return &ResponseRepoPG{pool: pool}
}

func (r *ResponseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const responseCols = `e.id, e.response_number, e.dispatch_id, e.ambulance_id, e.hospital_id,
	e.response_type, e.location, e.status, e.arrived_on_scene, e.completed_at,
	h.county_id, e.created_at, e.updated_at`

const responseFrom = `FROM emergency_responses e JOIN hospitals h ON h.id = e.hospital_id`

func scanResponse(row pgx.Row) (*Response, error) {
	var res Response
	err := row.Scan(
		&res.ID, &res.ResponseNumber, &res.DispatchID, &res.AmbulanceID, &res.HospitalID,
		&res.ResponseType, &res.Location, &res.Status, &res.ArrivedOnScene, &res.CompletedAt,
		&res.CountyID, &res.CreatedAt, &res.UpdatedAt,
	)
	return &res, err
}

func (r *ResponseRepoPG) Create(ctx context.Context, res *Response) error {
	q := `INSERT INTO emergency_responses (id, response_number, dispatch_id, ambulance_id,
		hospital_id, response_type, location, status, arrived_on_scene, completed_at,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.conn(ctx).Exec(ctx, q,
		res.ID, res.ResponseNumber, res.DispatchID, res.AmbulanceID,
		res.HospitalID, res.ResponseType, res.Location, res.Status, res.ArrivedOnScene,
		res.CompletedAt, res.CreatedAt, res.UpdatedAt,
	)
	return err
}

func (r *ResponseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Response, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE e.id = $1", responseCols, responseFrom)
	return scanResponse(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *ResponseRepoPG) Update(ctx context.Context, res *Response) error {
	q := `UPDATE emergency_responses SET
		dispatch_id = $2, ambulance_id = $3, hospital_id = $4, response_type = $5,
		location = $6, updated_at = $7
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		res.ID, res.DispatchID, res.AmbulanceID, res.HospitalID, res.ResponseType,
		res.Location, res.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ResponseRepoPG) UpdateStatus(ctx context.Context, res *Response, expected string) (bool, error) {
	q := `UPDATE emergency_responses SET status = $2, arrived_on_scene = $3,
		completed_at = $4, updated_at = $5
		WHERE id = $1 AND status = $6`
	tag, err := r.conn(ctx).Exec(ctx, q,
		res.ID, res.Status, res.ArrivedOnScene, res.CompletedAt, res.UpdatedAt, expected)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ResponseRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Response, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("e.hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("e.status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["dispatch_id"]; ok {
		where = append(where, fmt.Sprintf("e.dispatch_id = $%d", idx))
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

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", responseFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY e.created_at DESC LIMIT $%d OFFSET $%d",
		responseCols, responseFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Response
	for rows.Next() {
		res, err := scanResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, res)
	}
	return items, total, nil
}
