package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/limiter"
	"github.com/and161185/eventcert/internal/metrics"
	"github.com/and161185/eventcert/internal/model"
)

// Verifier resolves tokens on behalf of an anonymous client.
type Verifier interface {
	// VerifyFrom checks the client's lookup budget, then verifies tok.
	VerifyFrom(ctx context.Context, clientIP, tok string) (*model.Verification, time.Duration, error)
}

// GuardedVerifier counts unknown-token lookups per client IP and refuses blocked clients
// with errs.ErrRateLimited. Limiter backend errors are logged and the lookup proceeds.
type GuardedVerifier struct {
	svc     CertificateService
	lim     limiter.Limiter
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewGuardedVerifier wraps svc. A nil lim disables limiting.
func NewGuardedVerifier(svc CertificateService, lim limiter.Limiter, log *zap.Logger, m *metrics.Metrics) *GuardedVerifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &GuardedVerifier{svc: svc, lim: lim, log: log, metrics: m}
}

// VerifyFrom returns the verification and, when rate limited, a retry-after hint.
func (g *GuardedVerifier) VerifyFrom(ctx context.Context, clientIP, tok string) (*model.Verification, time.Duration, error) {
	if g.lim == nil {
		v, err := g.svc.Verify(ctx, tok)
		return v, 0, err
	}

	ipHash := limiter.HashIP(clientIP)
	ok, retry, err := g.lim.Allow(ctx, ipHash)
	if err != nil {
		g.log.Warn("verify limiter allow", zap.Error(err))
	} else if !ok {
		g.metrics.IncVerification(metrics.VerifyRateLimited)
		return nil, retry, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry.Round(time.Second))
	}

	v, err := g.svc.Verify(ctx, tok)
	if errors.Is(err, errs.ErrNotFound) {
		if _, _, ferr := g.lim.Failure(ctx, ipHash); ferr != nil {
			g.log.Warn("verify limiter failure", zap.Error(ferr))
		}
	}
	return v, 0, err
}
