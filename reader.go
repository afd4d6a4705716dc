// Package litetableread is the client-side read path for a LiteTable server.
// It reassembles whole rows from the size-bounded chunks of a streaming read
// and transparently resumes the stream after transient transport failures,
// without duplicating or dropping rows.
//
// The RPC layer is a collaborator, not part of this package: anything that
// can open a chunk stream (litetable.Transport) plugs in. Rows come back as
// a lazy, pull-based sequence:
//
//	rows, err := reader.ReadRows(&litetable.ReadRequest{Table: "metrics", Limit: 100})
//	...
//	for {
//		row, err := rows.Next(ctx)
//		if errors.Is(err, litetable.Done) {
//			break
//		}
//		...
//	}
package litetableread

import (
	"context"
	"errors"
	"time"

	"github.com/litetable/litetable-read/internal/retry"
	"github.com/litetable/litetable-read/internal/session"
	"github.com/litetable/litetable-read/litetable"
)

type Config struct {
	// Transport opens chunk streams against the server.
	Transport litetable.Transport

	// Backoff and budget knobs for resuming broken streams. Zero values
	// take the defaults (100ms initial, 30s cap, 2.0 multiplier, 10
	// attempts, 5m elapsed).
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	MaxAttempts       int
	MaxElapsed        time.Duration

	// RetryProtocolViolations permits one defensive retry of a malformed
	// chunk sequence before it is treated as terminal.
	RetryProtocolViolations bool

	// AttemptTimeout bounds a single stream attempt; zero means unbounded.
	AttemptTimeout time.Duration
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Transport == nil {
		errGrp = append(errGrp, errors.New("transport is required"))
	}
	return errors.Join(errGrp...)
}

// Reader issues logical row reads. It is safe for concurrent use: each read
// owns its session state exclusively.
type Reader struct {
	transport      litetable.Transport
	policy         *retry.Policy
	attemptTimeout time.Duration
}

// New creates a Reader.
func New(cfg *Config) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	policy, err := retry.New(&retry.Config{
		InitialBackoff:          cfg.InitialBackoff,
		MaxBackoff:              cfg.MaxBackoff,
		Multiplier:              cfg.BackoffMultiplier,
		MaxAttempts:             cfg.MaxAttempts,
		MaxElapsed:              cfg.MaxElapsed,
		RetryProtocolViolations: cfg.RetryProtocolViolations,
	})
	if err != nil {
		return nil, err
	}

	return &Reader{
		transport:      cfg.Transport,
		policy:         policy,
		attemptTimeout: cfg.AttemptTimeout,
	}, nil
}

// ReadRows starts one logical read. No request is issued until the first
// call to Rows.Next.
func (r *Reader) ReadRows(req *litetable.ReadRequest) (*Rows, error) {
	return r.readRows(req, nil)
}

// ReadRowsFiltered is ReadRows with a client-side row predicate for
// conditions the server's filter expression cannot express. Rows the
// predicate rejects are dropped without consuming the row limit.
func (r *Reader) ReadRowsFiltered(req *litetable.ReadRequest, keep func(*litetable.Row) bool) (*Rows, error) {
	return r.readRows(req, keep)
}

func (r *Reader) readRows(req *litetable.ReadRequest, keep func(*litetable.Row) bool) (*Rows, error) {
	s, err := session.New(&session.Config{
		Transport:      r.transport,
		Policy:         r.policy,
		Request:        req,
		RowFilter:      keep,
		AttemptTimeout: r.attemptTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Rows{session: s}, nil
}

// Rows is the caller-facing row sequence of one logical read: lazy, finite,
// ordered, and non-restartable. It is single-consumer.
type Rows struct {
	session *session.Session
}

// Next returns the next row. It blocks while awaiting chunks or sitting out
// a retry backoff; the consumer's pace is the only thing driving chunk
// consumption. It returns litetable.Done once the sequence ends cleanly, or
// the terminal error that failed the read. Rows already returned stay valid
// either way.
func (r *Rows) Next(ctx context.Context) (*litetable.Row, error) {
	return r.session.Next(ctx)
}

// Close aborts the read: the in-flight stream is released and no further
// resumed requests are issued. Safe to call at any time, from any goroutine.
func (r *Rows) Close() {
	r.session.Close()
}
