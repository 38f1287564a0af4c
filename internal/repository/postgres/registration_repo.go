package postgres

import (
	"context"
	"errors"

	"github.com/and161185/eventcert/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// RegistrationRepo reads event, registration and attendance rows owned by the event platform.
type RegistrationRepo struct{ db *DB }

// NewRegistrationRepo constructs a registration repository.
func NewRegistrationRepo(db *DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// GetEvent selects a single event.
func (r *RegistrationRepo) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	const q = `
SELECT id, society_id, title, event_date, venue, is_paid, base_fee_amount
FROM events
WHERE id = $1`
	var e model.Event
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&e.ID, &e.SocietyID, &e.Title, &e.Date, &e.Venue, &e.IsPaid, &e.BaseFeeAmount)
	if err != nil {
		return nil, noRows(err)
	}
	return &e, nil
}

// ListRegisteredForEvent returns ids of active registrations in registration order.
func (r *RegistrationRepo) ListRegisteredForEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	const q = `
SELECT id
FROM registrations
WHERE event_id = $1 AND status = 'registered'
ORDER BY created_at, id`
	rows, err := r.db.Pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadContext joins registration, student, event and society, then looks up the latest
// attendance mark. Every call hits the database.
func (r *RegistrationRepo) LoadContext(ctx context.Context, registrationID uuid.UUID) (*model.RegistrationContext, error) {
	const q = `
SELECT r.id, r.event_id, r.user_id, r.status, r.payment_required, r.fee_amount,
       COALESCE(r.payment_status, ''),
       u.name, u.email,
       e.title, e.event_date, e.venue, e.is_paid, e.base_fee_amount,
       s.id, s.name
FROM registrations r
JOIN users u ON u.id = r.user_id
JOIN events e ON e.id = r.event_id
JOIN societies s ON s.id = e.society_id
WHERE r.id = $1`
	var rc model.RegistrationContext
	err := r.db.Pool.QueryRow(ctx, q, registrationID).Scan(
		&rc.RegistrationID, &rc.EventID, &rc.UserID, &rc.RegistrationStatus, &rc.PaymentRequired, &rc.FeeAmount,
		&rc.PaymentStatus,
		&rc.StudentName, &rc.StudentEmail,
		&rc.EventTitle, &rc.EventDate, &rc.Venue, &rc.IsPaid, &rc.BaseFeeAmount,
		&rc.SocietyID, &rc.SocietyName,
	)
	if err != nil {
		return nil, noRows(err)
	}

	const qa = `
SELECT attendance_status
FROM attendance
WHERE event_id = $1 AND user_id = $2
ORDER BY marked_at DESC
LIMIT 1`
	err = r.db.Pool.QueryRow(ctx, qa, rc.EventID, rc.UserID).Scan(&rc.AttendanceStatus)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		rc.AttendanceStatus = model.AttendanceNone
	case err != nil:
		return nil, err
	}
	return &rc, nil
}
