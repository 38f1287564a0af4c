package convert

import (
	"errors"
	"testing"
	"time"

	u "github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/eventcert/internal/errs"
	model "github.com/and161185/eventcert/internal/model"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestDecode_IssueCertificate(t *testing.T) {
	reg, tpl := u.Must(u.NewV4()), u.Must(u.NewV4())
	in := mustStruct(t, map[string]any{
		"registration_id": reg.String(),
		"template_id":     tpl.String(),
		"base_url":        "https://events.example.edu",
	})

	var req IssueCertificateRequest
	require.NoError(t, Decode(in, &req))
	m := req.Model()
	require.Equal(t, reg, m.RegistrationID)
	require.Equal(t, tpl, m.TemplateID)
	require.Equal(t, "https://events.example.edu", m.BaseURL)
}

func TestDecode_Rejects(t *testing.T) {
	id := u.Must(u.NewV4()).String()
	cases := map[string]map[string]any{
		"missing template": {"registration_id": id},
		"bad uuid":         {"registration_id": "x", "template_id": id},
		"bad base url":     {"registration_id": id, "template_id": id, "base_url": "not a url"},
		"unknown field":    {"registration_id": id, "template_id": id, "extra": true},
		"wrong type":       {"registration_id": 42, "template_id": id},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			var req IssueCertificateRequest
			err := Decode(mustStruct(t, m), &req)
			require.Error(t, err)
			require.True(t, errors.Is(err, errs.ErrValidation), "got %v", err)
		})
	}
}

func TestDecode_NilStruct(t *testing.T) {
	var empty ListMyCertificatesRequest
	require.NoError(t, Decode(nil, &empty))

	var req VerifyCertificateRequest
	require.ErrorIs(t, Decode(nil, &req), errs.ErrValidation)
}

func TestVerification_RevokedIsRestricted(t *testing.T) {
	id := u.Must(u.NewV4())
	m := Verification(&model.Verification{
		Status:        model.VerificationRevoked,
		CertificateID: id,
		EventTitle:    "Intro to Go",
		StudentName:   "Ada",
		FileRef:       "certificates/x.pdf",
	})
	require.Equal(t, map[string]any{
		"status":         "revoked",
		"certificate_id": id.String(),
		"event_title":    "Intro to Go",
		"student_name":   "Ada",
	}, m)

}

func TestVerification_ValidCarriesBothStatuses(t *testing.T) {
	id := u.Must(u.NewV4())
	m := Verification(&model.Verification{
		Status:            model.VerificationValid,
		CertificateID:     id,
		CertificateStatus: model.StatusReady,
		FileRef:           "certificates/x.pdf",
	})
	require.Equal(t, "valid", m["status"])
	require.Equal(t, "ready", m["certificate_status"])
	require.Equal(t, id.String(), m["certificate_id"])
	require.Equal(t, "certificates/x.pdf", m["file_ref"])

	_, err := ToStruct(m)
	require.NoError(t, err)
}

func TestBulkResult_ToStruct(t *testing.T) {
	reg := u.Must(u.NewV4())
	res := &model.BulkResult{
		Created: []model.Certificate{{ID: u.Must(u.NewV4()), RegistrationID: reg, Status: model.StatusReady, IssuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}},
		Skipped: []model.Skip{{RegistrationID: reg, Reason: "not eligible: attendance is absent"}},
	}
	s, err := ToStruct(BulkResult(res))
	require.NoError(t, err)

	created := s.Fields["created"].GetListValue().GetValues()
	require.Len(t, created, 1)
	require.Equal(t, "2026-01-02T03:04:05Z", created[0].GetStructValue().Fields["issued_at"].GetStringValue())
	skipped := s.Fields["skipped"].GetListValue().GetValues()
	require.Equal(t, "not eligible: attendance is absent", skipped[0].GetStructValue().Fields["reason"].GetStringValue())
}

func TestItems_Empty(t *testing.T) {
	s, err := ToStruct(Items("templates", []model.Template(nil), Template))
	require.NoError(t, err)
	require.NotNil(t, s.Fields["templates"].GetListValue())
	require.Empty(t, s.Fields["templates"].GetListValue().GetValues())
}
