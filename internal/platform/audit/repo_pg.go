package audit

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

const auditCols = `id, user_id, user_name, user_role, action, entity_type, entity_id,
	hospital_id, description, changes, ip_address, user_agent, success, error_message, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.UserID, &e.UserName, &e.UserRole, &e.Action, &e.EntityType, &e.EntityID,
		&e.HospitalID, &e.Description, &e.Changes, &e.IPAddress, &e.UserAgent, &e.Success, &e.ErrorMessage, &e.CreatedAt,
	)
	return &e, err
}

func (r *RepoPG) Insert(ctx context.Context, e *Entry) error {
	q := fmt.Sprintf(`INSERT INTO audit_logs (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, auditCols)
	_, err := r.conn(ctx).Exec(ctx, q,
		e.ID, e.UserID, e.UserName, e.UserRole, e.Action, e.EntityType, e.EntityID,
		e.HospitalID, e.Description, e.Changes, e.IPAddress, e.UserAgent, e.Success, e.ErrorMessage, e.CreatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q := fmt.Sprintf("SELECT %s FROM audit_logs WHERE id = $1", auditCols)
	return scanEntry(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Entry, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["action"]; ok {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["entity_type"]; ok {
		where = append(where, fmt.Sprintf("entity_type = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["entity_id"]; ok {
		where = append(where, fmt.Sprintf("entity_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["user_id"]; ok {
		where = append(where, fmt.Sprintf("user_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["success"]; ok {
		where = append(where, fmt.Sprintf("success = $%d", idx))
		args = append(args, v == "true")
		idx++
	}
	if v, ok := params["from"]; ok {
		where = append(where, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["to"]; ok {
		where = append(where, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, v)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM audit_logs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		auditCols, whereClause, idx, idx+1)
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
