package postgres

import (
	"context"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TemplateRepo implements TemplateRepository using PostgreSQL.
type TemplateRepo struct{ db *DB }

// NewTemplateRepo constructs a template repository.
func NewTemplateRepo(db *DB) *TemplateRepo { return &TemplateRepo{db: db} }

// Create inserts a template row; CreatedAt is filled from the database.
// An unknown society yields errs.ErrNotFound.
func (r *TemplateRepo) Create(ctx context.Context, t *model.Template) error {
	const q = `
INSERT INTO certificate_templates (id, society_id, name, file_ref, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	err := r.db.Pool.QueryRow(ctx, q, t.ID, t.SocietyID, t.Name, t.FileRef, t.CreatedBy).Scan(&t.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	}
	return err
}

// Get selects a template with its society name.
func (r *TemplateRepo) Get(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	const q = `
SELECT t.id, t.society_id, s.name, t.name, t.file_ref, t.created_by, t.created_at
FROM certificate_templates t
JOIN societies s ON s.id = t.society_id
WHERE t.id = $1`
	var t model.Template
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&t.ID, &t.SocietyID, &t.SocietyName, &t.Name, &t.FileRef, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		return nil, noRows(err)
	}
	return &t, nil
}

// ListForSociety returns templates of a society, newest first.
func (r *TemplateRepo) ListForSociety(ctx context.Context, societyID uuid.UUID) ([]model.Template, error) {
	const q = `
SELECT t.id, t.society_id, s.name, t.name, t.file_ref, t.created_by, t.created_at
FROM certificate_templates t
JOIN societies s ON s.id = t.society_id
WHERE t.society_id = $1
ORDER BY t.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, societyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Template
	for rows.Next() {
		var t model.Template
		if err = rows.Scan(&t.ID, &t.SocietyID, &t.SocietyName, &t.Name, &t.FileRef, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a template only if it belongs to the society.
func (r *TemplateRepo) Delete(ctx context.Context, id, societyID uuid.UUID) error {
	const q = `DELETE FROM certificate_templates WHERE id = $1 AND society_id = $2`
	tag, err := r.db.Pool.Exec(ctx, q, id, societyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
