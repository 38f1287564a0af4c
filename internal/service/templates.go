package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
	"github.com/and161185/eventcert/internal/pdf"
	"github.com/and161185/eventcert/internal/repository"
	"github.com/and161185/eventcert/internal/storage"
)

// MaxTemplateName bounds template display names in runes.
const MaxTemplateName = 200

// TemplateService manages society-owned certificate templates.
type TemplateService interface {
	// Create stores the HTML body and registers the template.
	Create(ctx context.Context, actor model.Actor, societyID uuid.UUID, name, body string) (*model.Template, error)
	// List returns the society's templates, newest first.
	List(ctx context.Context, actor model.Actor, societyID uuid.UUID) ([]model.Template, error)
	// Delete removes a template owned by the society.
	Delete(ctx context.Context, actor model.Actor, societyID, templateID uuid.UUID) error
}

type TemplateServiceImpl struct {
	repo   repository.TemplateRepository
	access repository.AccessRepository
	store  storage.Store
	log    *zap.Logger
}

// NewTemplateService constructs TemplateService. log may be nil.
func NewTemplateService(repo repository.TemplateRepository, access repository.AccessRepository, store storage.Store, log *zap.Logger) *TemplateServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TemplateServiceImpl{repo: repo, access: access, store: store, log: log}
}

// Create validates input, uploads the body, then inserts the row. The body is removed
// again if the insert fails.
func (s *TemplateServiceImpl) Create(ctx context.Context, actor model.Actor, societyID uuid.UUID, name, body string) (*model.Template, error) {
	name = strings.TrimSpace(name)
	switch {
	case societyID == uuid.Nil:
		return nil, fmt.Errorf("%w: society_id is required", errs.ErrValidation)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", errs.ErrValidation)
	case utf8.RuneCountInString(name) > MaxTemplateName:
		return nil, fmt.Errorf("%w: name longer than %d", errs.ErrValidation, MaxTemplateName)
	case strings.TrimSpace(body) == "":
		return nil, fmt.Errorf("%w: html is required", errs.ErrValidation)
	case len(body) > pdf.MaxHTMLBytes:
		return nil, fmt.Errorf("%w: html larger than %d bytes", errs.ErrValidation, pdf.MaxHTMLBytes)
	}
	if err := authorize(ctx, s.access, actor, societyID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	t := &model.Template{
		ID:        id,
		SocietyID: societyID,
		Name:      name,
		FileRef:   storage.TemplateKey(societyID, id),
		CreatedBy: actor.UserID,
	}
	if err = s.store.Put(ctx, t.FileRef, []byte(body)); err != nil {
		return nil, fmt.Errorf("store template: %w", err)
	}
	if err = s.repo.Create(ctx, t); err != nil {
		if derr := s.store.Delete(ctx, t.FileRef); derr != nil {
			s.log.Warn("remove orphan template body", zap.String("key", t.FileRef), zap.Error(derr))
		}
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// List returns templates of a society the caller manages.
func (s *TemplateServiceImpl) List(ctx context.Context, actor model.Actor, societyID uuid.UUID) ([]model.Template, error) {
	if societyID == uuid.Nil {
		return nil, fmt.Errorf("%w: society_id is required", errs.ErrValidation)
	}
	if err := authorize(ctx, s.access, actor, societyID); err != nil {
		return nil, err
	}
	return s.repo.ListForSociety(ctx, societyID)
}

// Delete hard-deletes the row, then removes the body best-effort. Issued certificates
// keep their PDFs.
func (s *TemplateServiceImpl) Delete(ctx context.Context, actor model.Actor, societyID, templateID uuid.UUID) error {
	if societyID == uuid.Nil || templateID == uuid.Nil {
		return fmt.Errorf("%w: society_id and template_id are required", errs.ErrValidation)
	}
	if err := authorize(ctx, s.access, actor, societyID); err != nil {
		return err
	}

	t, err := s.repo.Get(ctx, templateID)
	if err != nil {
		return err
	}
	if t.SocietyID != societyID {
		return errs.ErrNotFound
	}
	if err = s.repo.Delete(ctx, templateID, societyID); err != nil {
		return err
	}
	if err = s.store.Delete(ctx, t.FileRef); err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.log.Warn("remove template body", zap.String("key", t.FileRef), zap.Error(err))
	}
	return nil
}
