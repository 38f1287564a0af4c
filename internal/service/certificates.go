package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/eventcert/internal/crypto"
	"github.com/and161185/eventcert/internal/eligibility"
	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/events"
	"github.com/and161185/eventcert/internal/metrics"
	"github.com/and161185/eventcert/internal/model"
	"github.com/and161185/eventcert/internal/pdf"
	"github.com/and161185/eventcert/internal/render"
	"github.com/and161185/eventcert/internal/repository"
	"github.com/and161185/eventcert/internal/storage"
	"github.com/and161185/eventcert/internal/token"
)

// ParticipantRole is the role printed on participant certificates.
const ParticipantRole = "Participant"

// CertificateService issues, lists and verifies participant certificates.
type CertificateService interface {
	// Issue creates the certificate of one registration, or returns the existing one.
	Issue(ctx context.Context, actor model.Actor, req model.IssueRequest) (*model.Certificate, error)
	// IssueForEvent runs Issue for every registered attendee and reports per-registration outcomes.
	IssueForEvent(ctx context.Context, actor model.Actor, req model.BulkIssueRequest) (*model.BulkResult, error)
	// Verify resolves a public verification token.
	Verify(ctx context.Context, tok string) (*model.Verification, error)
	// ListForEvent returns an event's certificates for its society managers.
	ListForEvent(ctx context.Context, actor model.Actor, eventID uuid.UUID) ([]model.CertificateView, error)
	// ListForUser returns the caller's own certificates.
	ListForUser(ctx context.Context, actor model.Actor) ([]model.CertificateView, error)
}

// DefaultPublishTimeout bounds a certificate.issued publish when none is configured.
const DefaultPublishTimeout = 5 * time.Second

// CertificateDeps wires CertificateServiceImpl. Publisher, Logger, Metrics and Now are optional.
type CertificateDeps struct {
	Registrations repository.RegistrationRepository
	Templates     repository.TemplateRepository
	Certificates  repository.CertificateRepository
	Access        repository.AccessRepository
	Store         storage.Store
	Renderer      pdf.Renderer
	Publisher     events.Publisher
	// PublishTimeout bounds each certificate.issued publish; DefaultPublishTimeout when zero.
	PublishTimeout time.Duration
	Policy         eligibility.Policy
	// BaseURL is used when a request carries no base URL.
	BaseURL string
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type CertificateServiceImpl struct {
	regs      repository.RegistrationRepository
	templates repository.TemplateRepository
	certs     repository.CertificateRepository
	access    repository.AccessRepository
	store     storage.Store
	renderer  pdf.Renderer
	pub       events.Publisher
	pubWait   time.Duration
	policy    eligibility.Policy
	baseURL   string
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(d CertificateDeps) *CertificateServiceImpl {
	s := &CertificateServiceImpl{
		regs:      d.Registrations,
		templates: d.Templates,
		certs:     d.Certificates,
		access:    d.Access,
		store:     d.Store,
		renderer:  d.Renderer,
		pub:       d.Publisher,
		pubWait:   d.PublishTimeout,
		policy:    d.Policy,
		baseURL:   d.BaseURL,
		log:       d.Logger,
		metrics:   d.Metrics,
		now:       d.Now,
	}
	if s.pub == nil {
		s.pub = events.Nop{}
	}
	if s.pubWait <= 0 {
		s.pubWait = DefaultPublishTimeout
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *CertificateServiceImpl) resolveBaseURL(reqBase string) (string, error) {
	base := reqBase
	if base == "" {
		base = s.baseURL
	}
	if base == "" {
		return "", fmt.Errorf("%w: base url required", errs.ErrValidation)
	}
	if _, err := token.VerificationURL(base, ""); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return base, nil
}

// Issue loads the registration, checks the caller manages its society and runs the pipeline.
func (s *CertificateServiceImpl) Issue(ctx context.Context, actor model.Actor, req model.IssueRequest) (*model.Certificate, error) {
	if req.RegistrationID == uuid.Nil || req.TemplateID == uuid.Nil {
		return nil, fmt.Errorf("%w: registration_id and template_id are required", errs.ErrValidation)
	}
	base, err := s.resolveBaseURL(req.BaseURL)
	if err != nil {
		return nil, err
	}

	rc, err := s.regs.LoadContext(ctx, req.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if err = authorize(ctx, s.access, actor, rc.SocietyID); err != nil {
		return nil, err
	}
	tpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	cert, existed, err := s.issue(ctx, actor, rc, tpl, base)
	if err != nil {
		return nil, err
	}
	s.countIssued(existed)
	return cert, nil
}

// IssueForEvent validates the request up front, then processes every registered attendee
// sequentially. After iteration starts no error is returned: failures land in Skipped.
func (s *CertificateServiceImpl) IssueForEvent(ctx context.Context, actor model.Actor, req model.BulkIssueRequest) (*model.BulkResult, error) {
	if req.EventID == uuid.Nil || req.TemplateID == uuid.Nil {
		return nil, fmt.Errorf("%w: event_id and template_id are required", errs.ErrValidation)
	}
	base, err := s.resolveBaseURL(req.BaseURL)
	if err != nil {
		return nil, err
	}

	ev, err := s.regs.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if err = authorize(ctx, s.access, actor, ev.SocietyID); err != nil {
		return nil, err
	}
	tpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if tpl.SocietyID != ev.SocietyID {
		return nil, fmt.Errorf("%w: template belongs to another society", errs.ErrValidation)
	}

	ids, err := s.regs.ListRegisteredForEvent(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	res := &model.BulkResult{Created: []model.Certificate{}, Skipped: []model.Skip{}}
	for _, regID := range ids {
		cert, existed, err := s.issueRegistration(ctx, actor, regID, tpl, base)
		if err != nil {
			s.metrics.IncIssued(metrics.OutcomeSkipped)
			s.log.Warn("certificate skipped",
				zap.String("event_id", req.EventID.String()),
				zap.String("registration_id", regID.String()),
				zap.Error(err),
			)
			res.Skipped = append(res.Skipped, model.Skip{RegistrationID: regID, Reason: err.Error()})
			continue
		}
		s.countIssued(existed)
		res.Created = append(res.Created, *cert)
	}

	s.log.Info("bulk issuance finished",
		zap.String("event_id", req.EventID.String()),
		zap.String("actor", actor.UserID.String()),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func (s *CertificateServiceImpl) issueRegistration(ctx context.Context, actor model.Actor, regID uuid.UUID, tpl *model.Template, base string) (*model.Certificate, bool, error) {
	rc, err := s.regs.LoadContext(ctx, regID)
	if err != nil {
		return nil, false, fmt.Errorf("load registration: %w", err)
	}
	return s.issue(ctx, actor, rc, tpl, base)
}

// issue is the per-registration pipeline: eligibility, template ownership, existing
// certificate, template body, token and URL, placeholders, PDF, then the guarded write.
func (s *CertificateServiceImpl) issue(ctx context.Context, actor model.Actor, rc *model.RegistrationContext, tpl *model.Template, base string) (*model.Certificate, bool, error) {
	if err := s.policy.Check(rc, s.now()); err != nil {
		return nil, false, err
	}
	if tpl.SocietyID != rc.SocietyID {
		return nil, false, fmt.Errorf("%w: template belongs to another society", errs.ErrValidation)
	}

	prev, err := s.certs.GetByRegistration(ctx, rc.RegistrationID)
	switch {
	case err == nil:
		return prev, true, nil
	case !errors.Is(err, errs.ErrNotFound):
		return nil, false, fmt.Errorf("lookup certificate: %w", err)
	}

	body, err := s.store.Get(ctx, tpl.FileRef)
	if err != nil {
		return nil, false, fmt.Errorf("load template body: %w", err)
	}

	tok, err := token.New()
	if err != nil {
		return nil, false, fmt.Errorf("mint token: %w", err)
	}
	verifyURL, err := token.VerificationURL(base, tok)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	doc, err := s.renderer.Render(ctx, render.Placeholders(string(body), placeholderValues(rc, tok, verifyURL)))
	if err != nil {
		return nil, false, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, err
	}
	key := storage.CertificateKey(rc.EventID, rc.RegistrationID)
	cert := &model.Certificate{
		ID:             id,
		RegistrationID: rc.RegistrationID,
		TemplateID:     tpl.ID,
		Token:          tok,
		Status:         model.StatusReady,
		FileRef:        key,
		FileDigest:     crypto.Digest(doc),
		IssuedBy:       actor.UserID,
	}

	saved, existed, err := s.certs.CreateOnce(ctx, cert, func(ctx context.Context) error {
		return s.store.Put(ctx, key, doc)
	})
	if err != nil {
		return nil, false, fmt.Errorf("save certificate: %w", err)
	}
	if !existed {
		s.publish(ctx, rc, saved)
	}
	return saved, existed, nil
}

func placeholderValues(rc *model.RegistrationContext, tok, verifyURL string) map[string]any {
	return map[string]any{
		"name":             html.EscapeString(rc.StudentName),
		"email":            html.EscapeString(rc.StudentEmail),
		"role":             ParticipantRole,
		"event_title":      html.EscapeString(rc.EventTitle),
		"event_date":       rc.EventDate.Format(time.DateOnly),
		"venue":            html.EscapeString(rc.Venue),
		"society_name":     html.EscapeString(rc.SocietyName),
		"token":            tok,
		"verification_url": html.EscapeString(verifyURL),
	}
}

func (s *CertificateServiceImpl) publish(ctx context.Context, rc *model.RegistrationContext, c *model.Certificate) {
	ev := model.IssuedEvent{
		CertificateID:  c.ID,
		RegistrationID: c.RegistrationID,
		EventID:        rc.EventID,
		IssuedBy:       c.IssuedBy,
		IssuedAt:       c.IssuedAt,
	}
	ctx, cancel := context.WithTimeout(ctx, s.pubWait)
	defer cancel()
	if err := s.pub.Issued(ctx, ev); err != nil {
		s.log.Error("publish certificate.issued",
			zap.String("certificate_id", c.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *CertificateServiceImpl) countIssued(existed bool) {
	if existed {
		s.metrics.IncIssued(metrics.OutcomeExisting)
		return
	}
	s.metrics.IncIssued(metrics.OutcomeCreated)
}

// Verify returns the public view of a certificate. Unknown and malformed tokens are
// both ErrNotFound. Revoked certificates expose only id, event title and student name.
func (s *CertificateServiceImpl) Verify(ctx context.Context, tok string) (*model.Verification, error) {
	if !token.Valid(tok) {
		s.metrics.IncVerification(metrics.VerifyNotFound)
		return nil, errs.ErrNotFound
	}
	v, err := s.certs.GetByToken(ctx, tok)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.metrics.IncVerification(metrics.VerifyNotFound)
		}
		return nil, err
	}

	if v.Status == model.StatusRevoked {
		s.metrics.IncVerification(metrics.VerifyRevoked)
		return &model.Verification{
			Status:        model.VerificationRevoked,
			CertificateID: v.ID,
			EventTitle:    v.EventTitle,
			StudentName:   v.StudentName,
		}, nil
	}

	s.metrics.IncVerification(metrics.VerifyValid)
	return &model.Verification{
		Status:            model.VerificationValid,
		CertificateID:     v.ID,
		CertificateStatus: v.Status,
		StudentName:       v.StudentName,
		StudentEmail:      v.StudentEmail,
		EventTitle:        v.EventTitle,
		EventDate:         v.EventDate,
		SocietyName:       v.SocietyName,
		FileRef:           v.FileRef,
		FileDigest:        v.FileDigest,
	}, nil
}

// ListForEvent requires the caller to manage the event's society.
func (s *CertificateServiceImpl) ListForEvent(ctx context.Context, actor model.Actor, eventID uuid.UUID) ([]model.CertificateView, error) {
	if eventID == uuid.Nil {
		return nil, fmt.Errorf("%w: event_id is required", errs.ErrValidation)
	}
	ev, err := s.regs.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if err = authorize(ctx, s.access, actor, ev.SocietyID); err != nil {
		return nil, err
	}
	return s.certs.ListForEvent(ctx, eventID)
}

// ListForUser returns certificates of the authenticated caller.
func (s *CertificateServiceImpl) ListForUser(ctx context.Context, actor model.Actor) ([]model.CertificateView, error) {
	if actor.UserID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	return s.certs.ListForUser(ctx, actor.UserID)
}

func authorize(ctx context.Context, access repository.AccessRepository, actor model.Actor, societyID uuid.UUID) error {
	if actor.UserID == uuid.Nil {
		return errs.ErrUnauthorized
	}
	ok, err := access.CanManageSociety(ctx, actor, societyID)
	if err != nil {
		return fmt.Errorf("check access: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: not a manager of this society", errs.ErrForbidden)
	}
	return nil
}
