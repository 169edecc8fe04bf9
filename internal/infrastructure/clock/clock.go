// Package clock provides the wall clock used by the ledger and the reminder sweep.
package clock

import "time"

// System reads the real time in a fixed location.
type System struct {
	loc *time.Location
}

// NewSystem returns a clock for loc. A nil loc means UTC.
func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{loc: loc}
}

func (c System) Now() time.Time { return time.Now().In(c.loc) }

func (c System) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (c System) Location() *time.Location { return c.loc }
