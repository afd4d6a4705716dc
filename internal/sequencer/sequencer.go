// Package sequencer enforces the caller-facing guarantees on assembled rows:
// strictly increasing keys across the whole logical session, the row limit,
// and any client-side row filter the server cannot apply.
package sequencer

import (
	"github.com/litetable/litetable-read/litetable"
)

// Config configures a Sequencer for one stream attempt.
type Config struct {
	// LastEmittedKey is the last row key handed to the caller in this
	// logical session, spanning earlier attempts. Empty on a first attempt.
	LastEmittedKey string
	// Remaining is the number of rows the logical read may still emit.
	// Zero or negative means unlimited.
	Remaining int64
	// RowFilter, when set, drops rows the caller does not want. Filtered
	// rows still advance the resume key but do not consume the limit.
	RowFilter func(*litetable.Row) bool
}

// Sequencer sits between the Assembler and the caller. It never buffers: one
// row goes in, and either comes out or is dropped.
type Sequencer struct {
	lastKey   string
	remaining int64
	limited   bool
	filter    func(*litetable.Row) bool
}

// New creates a Sequencer seeded with the session's cumulative state.
func New(cfg *Config) *Sequencer {
	return &Sequencer{
		lastKey:   cfg.LastEmittedKey,
		remaining: cfg.Remaining,
		limited:   cfg.Remaining > 0,
		filter:    cfg.RowFilter,
	}
}

// Observe runs one assembled row through the session-level checks. emit
// reports whether the row should be handed to the caller. The ordering check
// here is deliberately redundant with the Assembler's per-attempt check: it
// spans attempts, so a resumed stream replaying an already-emitted row is
// caught even if the fresh Assembler was mis-seeded.
func (s *Sequencer) Observe(row *litetable.Row) (bool, error) {
	if s.lastKey != "" && row.Key <= s.lastKey {
		return false, litetable.NewError(litetable.ErrProtocolViolation,
			"row %q arrived at or before the last emitted row %q", row.Key, s.lastKey)
	}
	s.lastKey = row.Key

	if s.filter != nil && !s.filter(row) {
		return false, nil
	}
	if s.limited {
		s.remaining--
	}
	return true, nil
}

// Exhausted reports whether the row limit has been reached. Once true, the
// session must stop pulling chunks and end the logical read.
func (s *Sequencer) Exhausted() bool {
	return s.limited && s.remaining <= 0
}

// LastKey returns the key of the last row observed, committed rows that were
// filtered out included. It is the exclusive lower bound for a resume.
func (s *Sequencer) LastKey() string {
	return s.lastKey
}

// Remaining returns the rows still allowed, for building a resumed request.
func (s *Sequencer) Remaining() int64 {
	if !s.limited {
		return 0
	}
	return s.remaining
}
