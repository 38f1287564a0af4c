// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/eventcert/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TemplateRepository stores certificate template metadata. HTML bodies live in object storage.
type TemplateRepository interface {
	// Create inserts a template row.
	Create(ctx context.Context, t *model.Template) error
	// Get loads a template by ID with its society name.
	Get(ctx context.Context, id uuid.UUID) (*model.Template, error)
	// ListForSociety returns a society's templates, newest first.
	ListForSociety(ctx context.Context, societyID uuid.UUID) ([]model.Template, error)
	// Delete hard-deletes a template scoped to its owning society.
	Delete(ctx context.Context, id, societyID uuid.UUID) error
}

// RegistrationRepository reads event, registration and attendance data owned by the event platform.
type RegistrationRepository interface {
	// GetEvent loads an event by ID.
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	// ListRegisteredForEvent returns IDs of registrations with status registered.
	ListRegisteredForEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	// LoadContext joins registration, student, event, society, payment and attendance.
	LoadContext(ctx context.Context, registrationID uuid.UUID) (*model.RegistrationContext, error)
}

// CertificateRepository stores issued certificates.
type CertificateRepository interface {
	// CreateOnce runs persist and inserts c unless the registration already has a certificate,
	// in which case the existing one is returned with existed=true and persist is not called.
	CreateOnce(ctx context.Context, c *model.Certificate, persist func(ctx context.Context) error) (saved *model.Certificate, existed bool, err error)
	// GetByRegistration loads the certificate of a registration.
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*model.Certificate, error)
	// GetByToken loads a certificate with display data by verification token.
	GetByToken(ctx context.Context, token string) (*model.CertificateView, error)
	// ListForEvent returns certificates issued for an event, newest first.
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]model.CertificateView, error)
	// ListForUser returns certificates of a student, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.CertificateView, error)
}

// AccessRepository answers the capability gate for society management.
type AccessRepository interface {
	// CanManageSociety reports whether the actor may manage certificates of the society.
	CanManageSociety(ctx context.Context, actor model.Actor, societyID uuid.UUID) (bool, error)
}
