// Package convert maps google.protobuf.Struct payloads to validated request DTOs and
// domain results back to Struct responses.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	u "github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/eventcert/internal/errs"
	model "github.com/and161185/eventcert/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// --- requests (client -> server) ---

// IssueCertificateRequest is the body of IssueCertificate.
type IssueCertificateRequest struct {
	RegistrationID string `json:"registration_id" validate:"required,uuid"`
	TemplateID     string `json:"template_id"     validate:"required,uuid"`
	BaseURL        string `json:"base_url"        validate:"omitempty,http_url"`
}

// Model returns the domain request. Call after Decode.
func (r IssueCertificateRequest) Model() model.IssueRequest {
	return model.IssueRequest{
		RegistrationID: u.FromStringOrNil(r.RegistrationID),
		TemplateID:     u.FromStringOrNil(r.TemplateID),
		BaseURL:        r.BaseURL,
	}
}

// IssueEventCertificatesRequest is the body of IssueEventCertificates.
type IssueEventCertificatesRequest struct {
	EventID    string `json:"event_id"    validate:"required,uuid"`
	TemplateID string `json:"template_id" validate:"required,uuid"`
	BaseURL    string `json:"base_url"    validate:"omitempty,http_url"`
}

// Model returns the domain request. Call after Decode.
func (r IssueEventCertificatesRequest) Model() model.BulkIssueRequest {
	return model.BulkIssueRequest{
		EventID:    u.FromStringOrNil(r.EventID),
		TemplateID: u.FromStringOrNil(r.TemplateID),
		BaseURL:    r.BaseURL,
	}
}

type VerifyCertificateRequest struct {
	Token string `json:"token" validate:"required"`
}

type CreateTemplateRequest struct {
	SocietyID string `json:"society_id" validate:"required,uuid"`
	Name      string `json:"name"       validate:"required"`
	HTML      string `json:"html"       validate:"required"`
}

type ListTemplatesRequest struct {
	SocietyID string `json:"society_id" validate:"required,uuid"`
}

type DeleteTemplateRequest struct {
	SocietyID  string `json:"society_id"  validate:"required,uuid"`
	TemplateID string `json:"template_id" validate:"required,uuid"`
}

type ListEventCertificatesRequest struct {
	EventID string `json:"event_id" validate:"required,uuid"`
}

// ListMyCertificatesRequest takes no fields; the caller comes from the bearer token.
type ListMyCertificatesRequest struct{}

// UUID parses a field already checked by Decode.
func UUID(s string) u.UUID { return u.FromStringOrNil(s) }

// Decode unmarshals in into dst, rejecting unknown fields, and validates dst.
// Every failure wraps errs.ErrValidation. A nil in decodes as an empty object.
func Decode(in *structpb.Struct, dst any) error {
	raw := []byte("{}")
	if in != nil {
		b, err := protojson.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrValidation, err)
		}
		raw = b
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}

// --- responses (server -> client) ---

func ts(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Certificate renders a certificate record.
func Certificate(c model.Certificate) map[string]any {
	return map[string]any{
		"id":              c.ID.String(),
		"registration_id": c.RegistrationID.String(),
		"template_id":     c.TemplateID.String(),
		"token":           c.Token,
		"status":          string(c.Status),
		"file_ref":        c.FileRef,
		"file_digest":     c.FileDigest,
		"issued_by":       c.IssuedBy.String(),
		"issued_at":       ts(c.IssuedAt),
	}
}

// CertificateView renders a listed certificate with its display data.
func CertificateView(v model.CertificateView) map[string]any {
	m := Certificate(v.Certificate)
	m["event_id"] = v.EventID.String()
	m["event_title"] = v.EventTitle
	m["event_date"] = ts(v.EventDate)
	m["user_id"] = v.UserID.String()
	m["student_name"] = v.StudentName
	m["student_email"] = v.StudentEmail
	m["society_name"] = v.SocietyName
	return m
}

// Template renders template metadata. The HTML body is never returned.
func Template(t model.Template) map[string]any {
	return map[string]any{
		"id":           t.ID.String(),
		"society_id":   t.SocietyID.String(),
		"society_name": t.SocietyName,
		"name":         t.Name,
		"file_ref":     t.FileRef,
		"created_by":   t.CreatedBy.String(),
		"created_at":   ts(t.CreatedAt),
	}
}

// BulkResult renders {created: [...], skipped: [{registration_id, reason}]}.
func BulkResult(r *model.BulkResult) map[string]any {
	created := make([]any, 0, len(r.Created))
	for _, c := range r.Created {
		created = append(created, Certificate(c))
	}
	skipped := make([]any, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		skipped = append(skipped, map[string]any{
			"registration_id": s.RegistrationID.String(),
			"reason":          s.Reason,
		})
	}
	return map[string]any{"created": created, "skipped": skipped}
}

// Verification renders the public payload. status is the verification outcome and
// certificate_status the stored lifecycle state. Revoked certificates carry only
// status, certificate_id, event_title and student_name.
func Verification(v *model.Verification) map[string]any {
	if v.Status == model.VerificationRevoked {
		return map[string]any{
			"status":         string(v.Status),
			"certificate_id": v.CertificateID.String(),
			"event_title":    v.EventTitle,
			"student_name":   v.StudentName,
		}
	}
	return map[string]any{
		"status":             string(v.Status),
		"certificate_id":     v.CertificateID.String(),
		"certificate_status": string(v.CertificateStatus),
		"student_name":       v.StudentName,
		"student_email":      v.StudentEmail,
		"event_title":        v.EventTitle,
		"event_date":         ts(v.EventDate),
		"society_name":       v.SocietyName,
		"file_ref":           v.FileRef,
		"file_digest":        v.FileDigest,
	}
}

// Items wraps a list under key.
func Items[T any](key string, in []T, fn func(T) map[string]any) map[string]any {
	out := make([]any, 0, len(in))
	for _, it := range in {
		out = append(out, fn(it))
	}
	return map[string]any{key: out}
}

// ToStruct converts a response map to a protobuf Struct.
func ToStruct(m map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(m)
}
