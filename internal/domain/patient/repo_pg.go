package patient

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

const patientCols = `p.id, p.patient_number, p.first_name, p.last_name, p.national_id,
	p.date_of_birth, p.gender, p.phone, p.next_of_kin_name, p.next_of_kin_phone,
	p.blood_group, p.allergies, p.hospital_id, p.status, h.county_id,
	p.created_at, p.updated_at`

const patientFrom = `FROM patients p JOIN hospitals h ON h.id = p.hospital_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.PatientNumber, &p.FirstName, &p.LastName, &p.NationalID,
		&p.DateOfBirth, &p.Gender, &p.Phone, &p.NextOfKinName, &p.NextOfKinPhone,
		&p.BloodGroup, &p.Allergies, &p.HospitalID, &p.Status, &p.CountyID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return &p, err
}

func (r *RepoPG) Create(ctx context.Context, p *Patient) error {
	q := `INSERT INTO patients (id, patient_number, first_name, last_name, national_id,
		date_of_birth, gender, phone, next_of_kin_name, next_of_kin_phone,
		blood_group, allergies, hospital_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.conn(ctx).Exec(ctx, q,
		p.ID, p.PatientNumber, p.FirstName, p.LastName, p.NationalID,
		p.DateOfBirth, p.Gender, p.Phone, p.NextOfKinName, p.NextOfKinPhone,
		p.BloodGroup, p.Allergies, p.HospitalID, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	q := fmt.Sprintf("SELECT %s %s WHERE p.id = $1", patientCols, patientFrom)
	return scanPatient(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) Update(ctx context.Context, p *Patient) error {
	q := `UPDATE patients SET
		first_name = $2, last_name = $3, national_id = $4, date_of_birth = $5,
		gender = $6, phone = $7, next_of_kin_name = $8, next_of_kin_phone = $9,
		blood_group = $10, allergies = $11, hospital_id = $12, status = $13, updated_at = $14
		WHERE id = $1`
	tag, err := r.conn(ctx).Exec(ctx, q,
		p.ID, p.FirstName, p.LastName, p.NationalID, p.DateOfBirth,
		p.Gender, p.Phone, p.NextOfKinName, p.NextOfKinPhone,
		p.BloodGroup, p.Allergies, p.HospitalID, p.Status, p.UpdatedAt,
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
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM patients WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if v, ok := params["hospital_id"]; ok {
		where = append(where, fmt.Sprintf("p.hospital_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["status"]; ok {
		where = append(where, fmt.Sprintf("p.status = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["county_id"]; ok {
		where = append(where, fmt.Sprintf("h.county_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["national_id"]; ok {
		where = append(where, fmt.Sprintf("p.national_id = $%d", idx))
		args = append(args, v)
		idx++
	}
	if v, ok := params["name"]; ok {
		where = append(where, fmt.Sprintf("(p.first_name ILIKE $%d OR p.last_name ILIKE $%d)", idx, idx))
		args = append(args, "%"+v+"%")
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) %s %s", patientFrom, whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s %s %s ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d",
		patientCols, patientFrom, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *RepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		"UPDATE patients SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RepoPG) HasActiveTriage(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM triage_entries WHERE patient_id = $1 AND status = 'IN_PROGRESS')", id).Scan(&exists)
	return exists, err
}
