package postgres

import (
	"context"
	"errors"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// CertificateRepo implements CertificateRepository using PostgreSQL.
type CertificateRepo struct{ db *DB }

// NewCertificateRepo constructs a certificate repository.
func NewCertificateRepo(db *DB) *CertificateRepo { return &CertificateRepo{db: db} }

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const certCols = `c.id, c.registration_id, c.template_id, c.verification_token, c.status,
       c.file_ref, c.file_digest, c.issued_by, c.issued_at`

const viewSelect = `
SELECT ` + certCols + `,
       r.event_id, e.title, e.event_date, r.user_id, u.name, u.email, s.name
FROM certificates c
JOIN registrations r ON r.id = c.registration_id
JOIN users u ON u.id = r.user_id
JOIN events e ON e.id = r.event_id
JOIN societies s ON s.id = e.society_id
`

func scanCert(row pgx.Row, c *model.Certificate) error {
	return row.Scan(&c.ID, &c.RegistrationID, &c.TemplateID, &c.Token, &c.Status,
		&c.FileRef, &c.FileDigest, &c.IssuedBy, &c.IssuedAt)
}

func scanView(row pgx.Row, v *model.CertificateView) error {
	return row.Scan(&v.ID, &v.RegistrationID, &v.TemplateID, &v.Token, &v.Status,
		&v.FileRef, &v.FileDigest, &v.IssuedBy, &v.IssuedAt,
		&v.EventID, &v.EventTitle, &v.EventDate, &v.UserID, &v.StudentName, &v.StudentEmail, &v.SocietyName)
}

func getByRegistration(ctx context.Context, q rowQuerier, registrationID uuid.UUID) (*model.Certificate, error) {
	const sql = `SELECT ` + certCols + ` FROM certificates c WHERE c.registration_id = $1`
	var c model.Certificate
	if err := scanCert(q.QueryRow(ctx, sql, registrationID), &c); err != nil {
		return nil, noRows(err)
	}
	return &c, nil
}

// CreateOnce writes c unless the registration already has a certificate.
//
// The check, persist and insert run in one transaction holding a per-registration
// advisory lock, so persist (which writes the document) runs at most once per
// registration. If another writer still wins on the unique constraint, its row is
// returned with existed=true.
func (r *CertificateRepo) CreateOnce(ctx context.Context, c *model.Certificate, persist func(context.Context) error) (*model.Certificate, bool, error) {
	var (
		saved   *model.Certificate
		existed bool
	)
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, c.RegistrationID.String()); err != nil {
			return err
		}

		prev, err := getByRegistration(ctx, tx, c.RegistrationID)
		if err == nil {
			saved, existed = prev, true
			return nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return err
		}

		if err = persist(ctx); err != nil {
			return err
		}

		const q = `
INSERT INTO certificates (id, registration_id, template_id, verification_token, status, file_ref, file_digest, issued_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING issued_at`
		err = tx.QueryRow(ctx, q, c.ID, c.RegistrationID, c.TemplateID, c.Token, c.Status, c.FileRef, c.FileDigest, c.IssuedBy).
			Scan(&c.IssuedAt)
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		if err != nil {
			return err
		}
		saved = c
		return nil
	})

	if errors.Is(err, errs.ErrAlreadyExists) {
		prev, gerr := r.GetByRegistration(ctx, c.RegistrationID)
		if gerr != nil {
			return nil, false, gerr
		}
		return prev, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return saved, existed, nil
}

// GetByRegistration returns the certificate of a registration.
func (r *CertificateRepo) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*model.Certificate, error) {
	return getByRegistration(ctx, r.db.Pool, registrationID)
}

// GetByToken returns the certificate with its display data.
func (r *CertificateRepo) GetByToken(ctx context.Context, token string) (*model.CertificateView, error) {
	const q = viewSelect + `WHERE c.verification_token = $1`
	var v model.CertificateView
	if err := scanView(r.db.Pool.QueryRow(ctx, q, token), &v); err != nil {
		return nil, noRows(err)
	}
	return &v, nil
}

// ListForEvent returns certificates of an event, newest first.
func (r *CertificateRepo) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]model.CertificateView, error) {
	const q = viewSelect + `WHERE r.event_id = $1 ORDER BY c.issued_at DESC`
	return r.list(ctx, q, eventID)
}

// ListForUser returns certificates of a student, newest first.
func (r *CertificateRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.CertificateView, error) {
	const q = viewSelect + `WHERE r.user_id = $1 ORDER BY c.issued_at DESC`
	return r.list(ctx, q, userID)
}

func (r *CertificateRepo) list(ctx context.Context, q string, arg uuid.UUID) ([]model.CertificateView, error) {
	rows, err := r.db.Pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CertificateView
	for rows.Next() {
		var v model.CertificateView
		if err = scanView(rows, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
