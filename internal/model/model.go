// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Registration, payment and attendance states as stored by the event platform.
const (
	RegistrationRegistered = "registered"
	RegistrationCancelled  = "cancelled"

	PaymentApproved  = "approved"
	PaymentSubmitted = "submitted"
	PaymentRejected  = "rejected"

	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceNone    = "none" // no attendance row for event+student
)

// Roles carried in bearer tokens.
const (
	RoleStudent    = "student"
	RoleSuperAdmin = "super_admin"
)

// CertificateStatus is the lifecycle state of an issued certificate.
type CertificateStatus string

const (
	StatusReady   CertificateStatus = "ready"
	StatusRevoked CertificateStatus = "revoked"
)

// Actor is the authenticated caller of a management operation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Event is the subset of an event row the pipeline reads.
type Event struct {
	ID            uuid.UUID
	SocietyID     uuid.UUID
	Title         string
	Date          time.Time
	Venue         string
	IsPaid        bool
	BaseFeeAmount *float64 // nil for free events
}

// Template is a society-owned HTML skeleton with {{ placeholder }} markers.
type Template struct {
	ID          uuid.UUID
	SocietyID   uuid.UUID
	SocietyName string // joined, read-only
	Name        string
	FileRef     string // storage key of the HTML body
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
}

// RegistrationContext is a fresh, read-only join of everything eligibility and rendering need
// for one registration. It is never cached.
type RegistrationContext struct {
	RegistrationID     uuid.UUID
	EventID            uuid.UUID
	UserID             uuid.UUID
	RegistrationStatus string
	PaymentRequired    bool
	FeeAmount          *float64
	PaymentStatus      string // "" when no payment was ever submitted

	StudentName  string
	StudentEmail string

	EventTitle    string
	EventDate     time.Time
	Venue         string
	IsPaid        bool
	BaseFeeAmount *float64

	SocietyID   uuid.UUID
	SocietyName string

	AttendanceStatus string // AttendanceNone when absent from the attendance table
}

// Certificate is an issued artifact record.
type Certificate struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID // unique
	TemplateID     uuid.UUID
	Token          string // unique, public
	Status         CertificateStatus
	FileRef        string
	FileDigest     string // hex BLAKE2b-256 of the PDF
	IssuedBy       uuid.UUID
	IssuedAt       time.Time
}

// CertificateView is a certificate joined with display data for listings and verification.
type CertificateView struct {
	Certificate
	EventID      uuid.UUID
	EventTitle   string
	EventDate    time.Time
	UserID       uuid.UUID
	StudentName  string
	StudentEmail string
	SocietyName  string
}

// IssueRequest asks for one participant certificate.
type IssueRequest struct {
	RegistrationID uuid.UUID
	TemplateID     uuid.UUID
	BaseURL        string
}

// BulkIssueRequest asks for certificates for every registered attendee of an event.
type BulkIssueRequest struct {
	EventID    uuid.UUID
	TemplateID uuid.UUID
	BaseURL    string
}

// Skip records a registration excluded from a bulk run.
type Skip struct {
	RegistrationID uuid.UUID
	Reason         string
}

// BulkResult collects the outcome of a bulk run. Created includes pre-existing certificates.
type BulkResult struct {
	Created []Certificate
	Skipped []Skip
}

// VerificationStatus is the public outcome of a token lookup.
type VerificationStatus string

const (
	VerificationValid   VerificationStatus = "valid"
	VerificationRevoked VerificationStatus = "revoked"
)

// Verification is the public payload of a token lookup. For revoked certificates only
// CertificateID, EventTitle and StudentName are populated.
type Verification struct {
	Status        VerificationStatus
	CertificateID uuid.UUID
	// CertificateStatus is the stored lifecycle state; set for valid results.
	CertificateStatus CertificateStatus
	StudentName       string
	StudentEmail      string
	EventTitle        string
	EventDate         time.Time
	SocietyName       string
	FileRef           string
	FileDigest        string
}

// IssuedEvent is published after a new certificate row is written.
type IssuedEvent struct {
	CertificateID  uuid.UUID `json:"certificate_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	IssuedBy       uuid.UUID `json:"issued_by"`
	IssuedAt       time.Time `json:"issued_at"`
}
