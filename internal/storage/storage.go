// Package storage keeps template HTML and issued PDF documents in a blob store.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/and161185/eventcert/internal/errs"
)

// Store is a flat key/value blob store. Keys are slash-separated relative paths.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// CheckKey rejects empty, absolute and parent-escaping keys.
func CheckKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: bad storage key %q", errs.ErrValidation, key)
	}
	if c := path.Clean(key); c != key || c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return fmt.Errorf("%w: bad storage key %q", errs.ErrValidation, key)
	}
	return nil
}

// CertificateKey is the storage key of the PDF issued for a registration.
func CertificateKey(eventID, registrationID fmt.Stringer) string {
	return fmt.Sprintf("certificates/event_%s_reg_%s.pdf", eventID, registrationID)
}

// TemplateKey is the storage key of a template's HTML body.
func TemplateKey(societyID, templateID fmt.Stringer) string {
	return fmt.Sprintf("templates/society_%s/%s.html", societyID, templateID)
}
