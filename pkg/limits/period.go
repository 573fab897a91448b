package limits

import (
	"fmt"
	"strings"
	"time"
)

// Period is the accounting window a limit applies to.
type Period string

const (
	PeriodLifetime Period = "lifetime"
	PeriodMonthly  Period = "monthly"
)

// ParsePeriod accepts the values stored in plan_limits.limit_period.
// An empty value means lifetime.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lifetime", "total":
		return PeriodLifetime, nil
	case "monthly", "month":
		return PeriodMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// Window is a half-open time range [Start, End). A zero Start means the
// window has no lower bound.
type Window struct {
	Start time.Time
	End   time.Time
}

// Bounded reports whether the window has a lower bound.
func (w Window) Bounded() bool { return !w.Start.IsZero() }

// WindowAt returns the accounting window for p ending at now. Monthly windows
// start at midnight on the first day of now's month in loc.
func WindowAt(p Period, now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	if p == PeriodMonthly {
		return Window{
			Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc),
			End:   now,
		}
	}
	return Window{End: now}
}

// Policy assigns the default accounting period to each resource. Limits
// loaded from the database carry their own period and override it.
type Policy map[Resource]Period

// DefaultPolicy: customers, QR codes, storage, seats, webhooks and domains
// are lifetime totals; documents, API calls and email sends reset monthly.
var DefaultPolicy = Policy{
	ResourceCustomers:     PeriodLifetime,
	ResourceQRCodes:       PeriodLifetime,
	ResourceDocuments:     PeriodMonthly,
	ResourceAPICalls:      PeriodMonthly,
	ResourceStorage:       PeriodLifetime,
	ResourceTeamMembers:   PeriodLifetime,
	ResourceWebhooks:      PeriodLifetime,
	ResourceCustomDomains: PeriodLifetime,
	ResourceEmailSends:    PeriodMonthly,
}

// Period returns the configured period for r, lifetime when unset.
func (p Policy) Period(r Resource) Period {
	if period, ok := p[r]; ok {
		return period
	}
	return PeriodLifetime
}
