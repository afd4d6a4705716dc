package litetable

import (
	"context"
)

// TimestampedValue stores a single cell version: its value, the server-assigned
// timestamp in microseconds, and any labels the read filter attached to it.
type TimestampedValue struct {
	Value     []byte   `json:"value"`
	Timestamp int64    `json:"timestamp"`
	Labels    []string `json:"labels,omitempty"`
}

// VersionedQualifier maps qualifiers to their timestamped values. The value
// slice preserves delivery order, which the server sends newest-first.
type VersionedQualifier map[string][]TimestampedValue

// Row defines a fully-assembled row of LiteTable data:
//
// Example:
//
//	Row{
//	  Key: "row1",
//	  Columns: map[string]VersionedQualifier{
//	    "family1": {
//	      "qualifier1": {{Value: []byte("value1"), Timestamp: 1111}},
//	      "qualifier2": {{Value: []byte("value2"), Timestamp: 1111}},
//	    },
//	    "family2": {
//	      "qualifier1": {{Value: []byte("value3"), Timestamp: 1112}},
//	    },
//	  },
//	}
//
// A Row is immutable once it has been handed to the caller. A row committed
// with no cells has a non-nil, empty Columns map.
type Row struct {
	Key     string                        `json:"key"`
	Columns map[string]VersionedQualifier `json:"cols"` // family → qualifier → []TimestampedValue
}

// CellChunk is one wire fragment of a streaming row read. A chunk never owns
// state across its siblings: nil Family/Qualifier mean "cursor unchanged", and
// a value split across chunks declares its total length once via ValueSize.
type CellChunk struct {
	// RowKey is set on the first chunk of each row and empty otherwise.
	RowKey string
	// Family, when non-nil, moves the assembly cursor to a new column family.
	Family *string
	// Qualifier, when non-nil, starts a new cell under the current family.
	Qualifier *string
	// Timestamp is the cell version in microseconds; meaningful only on the
	// chunk that starts a cell.
	Timestamp int64
	// Labels are filter labels for the cell being started.
	Labels []string
	// Value carries raw cell bytes, possibly only a piece of the full value.
	Value []byte
	// ValueSize is the declared total byte length of a value that is split
	// across chunks. Zero means the chunk's Value completes the cell.
	ValueSize int
	// ResetRow discards everything accumulated for the current row.
	ResetRow bool
	// CommitRow marks the row complete and ready to emit.
	CommitRow bool
}

// RowRange is a contiguous span of row keys: Start is inclusive, End is
// exclusive. An empty End means the range is unbounded above.
type RowRange struct {
	Start string
	End   string
}

// ReadRequest describes one logical row read. Filter uses the LiteTable query
// expression syntax (ex: "family=main qualifier=status latest=2") and is
// passed through to the server untouched.
type ReadRequest struct {
	Table  string
	Keys   []string
	Ranges []RowRange
	Filter string
	// Limit caps the number of rows the logical read may return across all
	// attempts combined. Zero means unlimited.
	Limit int64
	// StartKeyExclusive is populated only on a resumed attempt: the server
	// must not send any row with a key at or below it.
	StartKeyExclusive string
}

// ChunkStream is one underlying stream attempt. Recv blocks until the next
// chunk arrives, returns io.EOF on clean end-of-stream, or any other error on
// transport failure. Close releases the stream; it is safe to call more than
// once.
type ChunkStream interface {
	Recv() (*CellChunk, error)
	Close()
}

// Transport opens chunk streams against the server. It is implemented by the
// RPC layer (or a test double); the read core only issues requests and
// consumes responses through it.
type Transport interface {
	OpenReadStream(ctx context.Context, req *ReadRequest) (ChunkStream, error)
}
