// Package numerator holds the pure building blocks of invoice numbering:
// reset cadences, period keys, display templates and the counter contracts
// implemented by storage.
package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"invoicenum/internal/core/apperror"
)

// ResetPeriod is the cadence at which a sequence restarts from 1.
type ResetPeriod string

const (
	ResetMonthly ResetPeriod = "MONTHLY"
	ResetYearly  ResetPeriod = "YEARLY"
	ResetNever   ResetPeriod = "NEVER"
)

// neverKey is the period key of date-independent counters.
const neverKey = "NEVER"

// ResetPeriods lists every supported cadence.
func ResetPeriods() []ResetPeriod {
	return []ResetPeriod{ResetMonthly, ResetYearly, ResetNever}
}

// ParseResetPeriod converts user input into a ResetPeriod (case-insensitive).
func ParseResetPeriod(s string) (ResetPeriod, error) {
	rp := ResetPeriod(strings.ToUpper(strings.TrimSpace(s)))
	if !rp.IsValid() {
		return "", apperror.NewValidation("unknown reset period").
			WithDetail("field", "resetPeriod").
			WithDetail("value", s)
	}
	return rp, nil
}

// IsValid reports whether rp is one of the supported cadences.
func (rp ResetPeriod) IsValid() bool {
	switch rp {
	case ResetMonthly, ResetYearly, ResetNever:
		return true
	}
	return false
}

func (rp ResetPeriod) String() string { return string(rp) }

// PeriodComponents is the counter scope derived from an issue date.
//
// Month is 0 for YEARLY and NEVER; both fields are 0 for NEVER. These zeros are
// lookup sentinels and must never reach a rendered invoice number: display
// values come from TemplateContext.
type PeriodComponents struct {
	Year  int
	Month int
}

// PeriodFor derives the counter scope of an issue date.
func PeriodFor(rp ResetPeriod, issueDate time.Time) PeriodComponents {
	switch rp {
	case ResetMonthly:
		return PeriodComponents{Year: issueDate.Year(), Month: int(issueDate.Month())}
	case ResetYearly:
		return PeriodComponents{Year: issueDate.Year()}
	default:
		return PeriodComponents{}
	}
}

// BuildPeriodKey is the single formatting authority for counter period keys.
//
//	MONTHLY -> "2026-02"
//	YEARLY  -> "2026"
//	NEVER   -> "NEVER"
//
// A MONTHLY key with month 0 would merge every month into one scope, so it is
// rejected as an invariant violation.
func BuildPeriodKey(rp ResetPeriod, year, month int) (string, error) {
	switch rp {
	case ResetMonthly:
		if month < 1 || month > 12 {
			return "", apperror.NewInvariantViolation("monthly period key requires a calendar month").
				WithDetail("year", year).
				WithDetail("month", month)
		}
		return fmt.Sprintf("%04d-%02d", year, month), nil
	case ResetYearly:
		return strconv.Itoa(year), nil
	case ResetNever:
		return neverKey, nil
	default:
		return "", apperror.NewInvariantViolation("unknown reset period").
			WithDetail("reset_period", string(rp))
	}
}

// ParsePeriodKey is the inverse of BuildPeriodKey.
func ParsePeriodKey(rp ResetPeriod, key string) (PeriodComponents, error) {
	switch rp {
	case ResetMonthly:
		y, m, ok := strings.Cut(key, "-")
		if ok {
			year, errY := strconv.Atoi(y)
			month, errM := strconv.Atoi(m)
			if errY == nil && errM == nil && month >= 1 && month <= 12 {
				return PeriodComponents{Year: year, Month: month}, nil
			}
		}
	case ResetYearly:
		if year, err := strconv.Atoi(key); err == nil {
			return PeriodComponents{Year: year}, nil
		}
	case ResetNever:
		if key == neverKey {
			return PeriodComponents{}, nil
		}
	}
	return PeriodComponents{}, fmt.Errorf("malformed %s period key %q", rp, key)
}

// Scope identifies one counter: (tenant, reset period, period key).
// Period carries the components the key was built from so that healing can
// query persisted invoices by (year, month).
type Scope struct {
	TenantID    string
	ResetPeriod ResetPeriod
	PeriodKey   string
	Period      PeriodComponents
}

// NewScope builds a scope through BuildPeriodKey.
func NewScope(tenantID string, rp ResetPeriod, period PeriodComponents) (Scope, error) {
	key, err := BuildPeriodKey(rp, period.Year, period.Month)
	if err != nil {
		return Scope{}, err
	}
	return Scope{TenantID: tenantID, ResetPeriod: rp, PeriodKey: key, Period: period}, nil
}

// ScopeFor derives the scope governing issueDate under rp.
func ScopeFor(tenantID string, rp ResetPeriod, issueDate time.Time) (Scope, error) {
	return NewScope(tenantID, rp, PeriodFor(rp, issueDate))
}

func (s Scope) String() string {
	return s.TenantID + "/" + string(s.ResetPeriod) + "/" + s.PeriodKey
}

// DateOf truncates t to a calendar date in its own location, expressed in UTC.
// Issue dates and effective dates are calendar dates, not instants.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date.
func ParseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperror.NewValidation("invalid date, expected YYYY-MM-DD").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return t, nil
}
