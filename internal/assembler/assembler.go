// Package assembler turns an ordered sequence of wire chunks into whole rows.
// It is a pure state machine: no I/O, one chunk in, at most one row out.
package assembler

import (
	"github.com/litetable/litetable-read/litetable"
)

type state int

const (
	// awaitingNewRow means no row is in progress; the next chunk must carry
	// a row key (or be a protocol violation).
	awaitingNewRow state = iota
	// rowInProgress means a row has been started and cells are complete up
	// to the last chunk applied.
	rowInProgress
	// cellInProgress means a value is split across chunks and the current
	// cell cannot be closed until the declared byte count is reached.
	cellInProgress
)

// partialRow accumulates one row between its first chunk and its commit or
// reset. It is owned exclusively by the Assembler and never shared.
type partialRow struct {
	key     string
	columns map[string]litetable.VersionedQualifier

	// assembly cursors
	family       string
	qualifier    string
	familySet    bool
	qualifierSet bool

	// cell being assembled
	timestamp int64
	labels    []string
	buf       []byte
	declared  int // total bytes expected for a split value
}

// Assembler applies chunks in arrival order and emits a Row at each commit
// boundary. Exactly one partial row is in progress at a time. All failures
// are fatal to the instance; the caller discards it and starts fresh.
type Assembler struct {
	state   state
	lastKey string
	row     *partialRow
}

// New creates an Assembler. lastEmittedKey seeds the row-key ordering check:
// on a resumed attempt it is the last key committed before the break, so a
// stream that replays committed rows is rejected at its first chunk. Pass ""
// for an initial attempt.
func New(lastEmittedKey string) *Assembler {
	return &Assembler{
		state:   awaitingNewRow,
		lastKey: lastEmittedKey,
	}
}

// Process applies one chunk. It returns a non-nil Row only when the chunk
// commits the row in progress. A returned error wraps
// litetable.ErrProtocolViolation and poisons the Assembler.
func (a *Assembler) Process(c *litetable.CellChunk) (*litetable.Row, error) {
	if c.ResetRow {
		return nil, a.resetRow(c)
	}

	if a.state == cellInProgress {
		return a.continueCell(c)
	}

	startedRow := false
	if a.state == awaitingNewRow {
		if c.RowKey == "" {
			return nil, violation("first chunk of a row carries no row key")
		}
		if a.lastKey != "" && c.RowKey <= a.lastKey {
			return nil, violation("row key %q does not increase past %q", c.RowKey, a.lastKey)
		}
		a.row = &partialRow{
			key:     c.RowKey,
			columns: make(map[string]litetable.VersionedQualifier),
		}
		a.state = rowInProgress
		startedRow = true
	} else if c.RowKey != "" && c.RowKey != a.row.key {
		return nil, violation("row key changed from %q to %q without a commit", a.row.key, c.RowKey)
	}

	if err := a.applyCursors(c); err != nil {
		return nil, err
	}

	if err := a.applyValue(c); err != nil {
		return nil, err
	}

	// Every chunk must advance assembly: a chunk that moves no cursor,
	// carries no bytes, and is not a commit is malformed.
	advanced := startedRow || c.Family != nil || c.Qualifier != nil ||
		len(c.Value) > 0 || c.ValueSize > 0 || c.CommitRow
	if !advanced {
		return nil, violation("chunk for row %q advances nothing", a.row.key)
	}

	if c.CommitRow {
		if a.state == cellInProgress {
			return nil, violation("commit_row for %q with a value still incomplete", a.row.key)
		}
		return a.commit(), nil
	}

	return nil, nil
}

// resetRow discards the row in progress, including any half-assembled cell
// buffer. A reset chunk must carry nothing else.
func (a *Assembler) resetRow(c *litetable.CellChunk) error {
	if a.state == awaitingNewRow {
		return violation("reset_row with no row in progress")
	}
	if c.RowKey != "" || c.Family != nil || c.Qualifier != nil ||
		len(c.Value) > 0 || c.ValueSize > 0 || c.CommitRow {
		return violation("reset_row chunk carries row data")
	}
	a.row = nil
	a.state = awaitingNewRow
	return nil
}

// applyCursors moves the family/qualifier cursors. A new qualifier starts a
// new cell with the chunk's timestamp and labels.
func (a *Assembler) applyCursors(c *litetable.CellChunk) error {
	if c.Family != nil {
		if c.Qualifier == nil {
			return violation("family %q set without a qualifier", *c.Family)
		}
		a.row.family = *c.Family
		a.row.familySet = true
		a.row.qualifierSet = false
	}
	if c.Qualifier != nil {
		if !a.row.familySet {
			return violation("qualifier %q set before any family", *c.Qualifier)
		}
		a.row.qualifier = *c.Qualifier
		a.row.qualifierSet = true
	}
	return nil
}

// applyValue opens a cell for a value-bearing chunk and closes it unless the
// chunk declares a larger total size than the bytes it carries.
func (a *Assembler) applyValue(c *litetable.CellChunk) error {
	opensCell := c.Qualifier != nil || len(c.Value) > 0 || c.ValueSize > 0
	if !opensCell {
		return nil
	}
	if !a.row.qualifierSet {
		return violation("value for row %q arrived before any qualifier", a.row.key)
	}

	a.row.timestamp = c.Timestamp
	a.row.labels = c.Labels
	a.row.buf = append([]byte(nil), c.Value...)
	a.row.declared = c.ValueSize

	if a.row.declared > 0 {
		if len(a.row.buf) > a.row.declared {
			return violation("value for row %q exceeds its declared size %d", a.row.key, a.row.declared)
		}
		if len(a.row.buf) < a.row.declared {
			a.state = cellInProgress
			return nil
		}
	}
	a.closeCell()
	return nil
}

// continueCell appends the next piece of a split value. Continuation chunks
// may carry nothing but value bytes (and optionally repeat the declared size
// or commit the row once the value is whole).
func (a *Assembler) continueCell(c *litetable.CellChunk) (*litetable.Row, error) {
	if c.RowKey != "" || c.Family != nil || c.Qualifier != nil || c.Timestamp != 0 {
		return nil, violation("cursor change for %q in the middle of a split value", a.row.key)
	}
	if c.ValueSize != 0 && c.ValueSize != a.row.declared {
		return nil, violation("declared value size changed from %d to %d mid-cell", a.row.declared, c.ValueSize)
	}
	if len(c.Value) == 0 && !c.CommitRow {
		return nil, violation("chunk for row %q advances nothing", a.row.key)
	}

	a.row.buf = append(a.row.buf, c.Value...)
	if len(a.row.buf) > a.row.declared {
		return nil, violation("value for row %q exceeds its declared size %d", a.row.key, a.row.declared)
	}
	if len(a.row.buf) == a.row.declared {
		a.closeCell()
		a.state = rowInProgress
	}

	if c.CommitRow {
		if a.state == cellInProgress {
			return nil, violation("commit_row for %q with a value still incomplete", a.row.key)
		}
		return a.commit(), nil
	}
	return nil, nil
}

// closeCell appends the finished cell to the row's family → qualifier map.
// Cells are kept in delivery order; the assembler never re-sorts.
func (a *Assembler) closeCell() {
	r := a.row
	vq, ok := r.columns[r.family]
	if !ok {
		vq = make(litetable.VersionedQualifier)
		r.columns[r.family] = vq
	}
	vq[r.qualifier] = append(vq[r.qualifier], litetable.TimestampedValue{
		Value:     r.buf,
		Timestamp: r.timestamp,
		Labels:    r.labels,
	})
	r.buf = nil
	r.declared = 0
}

// commit finalizes the partial row and resets the machine for the next one.
func (a *Assembler) commit() *litetable.Row {
	row := &litetable.Row{
		Key:     a.row.key,
		Columns: a.row.columns,
	}
	a.lastKey = a.row.key
	a.row = nil
	a.state = awaitingNewRow
	return row
}

func violation(format string, args ...interface{}) error {
	return litetable.NewError(litetable.ErrProtocolViolation, format, args...)
}
