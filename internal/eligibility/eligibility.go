// Package eligibility decides whether a registration qualifies for a participant certificate.
package eligibility

import (
	"fmt"
	"time"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
)

// Policy holds the optional rules. The zero value applies the mandatory rules only.
type Policy struct {
	// RequirePastEvent rejects registrations whose event date is not before now.
	RequirePastEvent bool
}

// Eligible applies the mandatory rules with the zero Policy.
func Eligible(rc *model.RegistrationContext) bool {
	return Policy{}.Check(rc, time.Time{}) == nil
}

// Check applies the rule chain, fail-fast, and returns an error wrapping errs.ErrNotEligible
// that names the first failed rule:
//  1. registration status is registered
//  2. paid event with required payment has an approved payment
//  3. attendance is present
//  4. (policy) event date is in the past
func (p Policy) Check(rc *model.RegistrationContext, now time.Time) error {
	if rc == nil {
		return fmt.Errorf("%w: no registration context", errs.ErrNotEligible)
	}

	if rc.RegistrationStatus != model.RegistrationRegistered {
		return fmt.Errorf("%w: registration is %s", errs.ErrNotEligible, orNone(rc.RegistrationStatus))
	}

	if rc.IsPaid && rc.PaymentRequired && rc.PaymentStatus != model.PaymentApproved {
		return fmt.Errorf("%w: payment is %s", errs.ErrNotEligible, orNone(rc.PaymentStatus))
	}

	if rc.AttendanceStatus != model.AttendancePresent {
		return fmt.Errorf("%w: attendance is %s", errs.ErrNotEligible, orNone(rc.AttendanceStatus))
	}

	if p.RequirePastEvent && !rc.EventDate.Before(now) {
		return fmt.Errorf("%w: event has not taken place yet", errs.ErrNotEligible)
	}

	return nil
}

func orNone(s string) string {
	if s == "" {
		return model.AttendanceNone
	}
	return s
}
