/*
recurrence.go - Next-occurrence calculation for recurring schedules

PURPOSE:
  A recurrence token is "frequency" optionally followed by ";until=<date>",
  e.g. "weekly", "monthly;until=2025-12-31". This file parses the token and
  computes the next scheduled date. Pure functions, no side effects.

POLICY:
  - daily   -> +1 day
  - weekly  -> +7 days
  - monthly -> +1 calendar month (normalized by the calendar when the
               day-of-month does not exist in the target month)
  - any other non-empty token -> treated as weekly. This is an explicit
    fallback, not an error: a malformed token must never wedge a payout.
*/
package ledger

import (
	"strings"
	"time"
)

// =============================================================================
// FREQUENCY TOKENS
// =============================================================================

const (
	FreqOnce    = "once"
	FreqDaily   = "daily"
	FreqWeekly  = "weekly"
	FreqMonthly = "monthly"
)

// Recurrence is the parsed form of a schedule's recurrence token.
type Recurrence struct {
	Frequency string
	Until     *time.Time // inclusive end of the chain, nil = unbounded
}

// IsRepeating reports whether completing a schedule with this recurrence
// should spawn a successor.
func (r Recurrence) IsRepeating() bool {
	return r.Frequency != "" && r.Frequency != FreqOnce
}

// ParseRecurrence splits "frequency[;until=ISO-date]". Unknown parameters
// are ignored; an unparseable until-date is treated as absent.
func ParseRecurrence(token string) Recurrence {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(token)), ";")
	rec := Recurrence{Frequency: strings.TrimSpace(parts[0])}

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if v, ok := strings.CutPrefix(p, "until="); ok {
			if t, err := time.Parse("2006-01-02", v); err == nil {
				rec.Until = &t
			} else if t, err := time.Parse(time.RFC3339, v); err == nil {
				rec.Until = &t
			}
		}
	}
	return rec
}

// NextDate computes the occurrence after current for the given frequency.
// Unrecognized non-empty frequencies advance by one week.
func NextDate(current time.Time, frequency string) time.Time {
	switch frequency {
	case FreqDaily:
		return current.AddDate(0, 0, 1)
	case FreqWeekly:
		return current.AddDate(0, 0, 7)
	case FreqMonthly:
		return current.AddDate(0, 1, 0)
	default:
		return current.AddDate(0, 0, 7)
	}
}

// NextOccurrence applies the until-bound: it returns the successor date for
// the chain, or false when the recurrence does not repeat or the successor
// would fall past the until-date.
func (r Recurrence) NextOccurrence(current time.Time) (time.Time, bool) {
	if !r.IsRepeating() {
		return time.Time{}, false
	}
	next := NextDate(current, r.Frequency)
	if r.Until != nil && next.After(*r.Until) {
		return time.Time{}, false
	}
	return next, true
}
