package postgres

import (
	"context"

	"github.com/and161185/eventcert/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccessRepo answers society-management capability questions.
type AccessRepo struct{ db *DB }

// NewAccessRepo constructs an access repository.
func NewAccessRepo(db *DB) *AccessRepo { return &AccessRepo{db: db} }

// CanManageSociety reports whether the actor is a super admin or a core member of the society.
func (r *AccessRepo) CanManageSociety(ctx context.Context, actor model.Actor, societyID uuid.UUID) (bool, error) {
	if actor.Role == model.RoleSuperAdmin {
		return true, nil
	}
	const q = `
SELECT EXISTS (
  SELECT 1 FROM society_core_members WHERE society_id = $1 AND user_id = $2
)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, societyID, actor.UserID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
