// Package session orchestrates one logical row read across any number of
// underlying stream attempts. It presents a single continuous, ordered,
// pull-based row sequence; transport interruptions surface to the caller only
// as latency.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/litetable/litetable-read/internal/assembler"
	"github.com/litetable/litetable-read/internal/retry"
	"github.com/litetable/litetable-read/internal/sequencer"
	"github.com/litetable/litetable-read/litetable"
	"github.com/rs/zerolog/log"
)

//go:generate mockgen -destination=session_mock.go -package=session -source=session.go

type transport interface {
	OpenReadStream(ctx context.Context, req *litetable.ReadRequest) (litetable.ChunkStream, error)
}

type retryPolicy interface {
	Decide(err error, attempt int, elapsed time.Duration) retry.Decision
}

type state int

const (
	stateIdle state = iota
	stateStreaming
	stateRetryWait
	stateDone
	stateFailed
)

type Config struct {
	Transport transport
	Policy    retryPolicy
	// Request is the caller's original read request. The session derives
	// resumed requests from it and never mutates it.
	Request *litetable.ReadRequest
	// RowFilter optionally drops rows client-side; see sequencer.Config.
	RowFilter func(*litetable.Row) bool
	// AttemptTimeout bounds a single stream attempt. Zero means no
	// per-attempt bound; the retry policy's elapsed cap still applies.
	AttemptTimeout time.Duration
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Transport == nil {
		errGrp = append(errGrp, errors.New("transport is required"))
	}
	if c.Policy == nil {
		errGrp = append(errGrp, errors.New("retry policy is required"))
	}
	if c.Request == nil {
		errGrp = append(errGrp, errors.New("read request is required"))
	} else if c.Request.Table == "" {
		errGrp = append(errGrp, fmt.Errorf("read request has no table"))
	}
	return errors.Join(errGrp...)
}

// Session is the bookkeeping for one logical read. It is single-consumer:
// Next must not be called concurrently with itself. Close is safe to call
// from any goroutine at any time.
type Session struct {
	id        string
	transport transport
	policy    retryPolicy
	req       *litetable.ReadRequest
	rowFilter func(*litetable.Row) bool
	timeout   time.Duration

	state state
	asm   *assembler.Assembler
	seq   *sequencer.Sequencer

	// resumption state, in memory only for the lifetime of the session
	lastEmittedKey string
	remaining      int64
	limited        bool
	attempts       int
	started        time.Time
	err            error

	closed   atomic.Bool
	closedCh chan struct{}

	// mu guards stream/cancel against a concurrent Close while Next is
	// blocked in Recv.
	mu     sync.Mutex
	stream litetable.ChunkStream
	cancel context.CancelFunc
}

// New creates a Session in the IDLE state. No request is issued until the
// first call to Next.
func New(cfg *Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Session{
		id:        uuid.NewString(),
		transport: cfg.Transport,
		policy:    cfg.Policy,
		req:       cfg.Request,
		rowFilter: cfg.RowFilter,
		timeout:   cfg.AttemptTimeout,
		state:     stateIdle,
		remaining: cfg.Request.Limit,
		limited:   cfg.Request.Limit > 0,
		closedCh:  make(chan struct{}),
	}, nil
}

// Next returns the next assembled row. It blocks while awaiting chunks or
// sitting out a retry backoff. It returns litetable.Done once the sequence
// has ended cleanly, or the terminal error that failed the session. ctx
// should be the same context across calls; it governs the logical read.
func (s *Session) Next(ctx context.Context) (*litetable.Row, error) {
	for {
		if s.closed.Load() && s.state != stateFailed {
			s.state = stateDone
		}

		switch s.state {
		case stateDone:
			return nil, litetable.Done
		case stateFailed:
			return nil, s.err
		case stateIdle:
			if err := s.openAttempt(ctx); err != nil {
				if werr := s.handleFailure(ctx, err); werr != nil {
					return nil, werr
				}
			}
		case stateStreaming:
			row, err := s.pump()
			if err != nil {
				if errors.Is(err, litetable.Done) {
					return nil, litetable.Done
				}
				if werr := s.handleFailure(ctx, err); werr != nil {
					return nil, werr
				}
				continue
			}
			if row != nil {
				return row, nil
			}
		default:
			// stateRetryWait is only ever held inside handleFailure.
			return nil, fmt.Errorf("session %s in unexpected state %d", s.id, s.state)
		}
	}
}

// pump pulls chunks from the current stream until a row is emitted, the
// limit is exhausted, or the stream ends. A nil row with a nil error means
// the row that committed was filtered out and the caller should keep pumping.
func (s *Session) pump() (*litetable.Row, error) {
	c, err := s.recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// clean end-of-stream: no more data for this request
			s.finish()
			return nil, litetable.Done
		}
		return nil, err
	}

	row, err := s.asm.Process(c)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	emit, err := s.seq.Observe(row)
	if err != nil {
		return nil, err
	}

	// Only committed rows move the resume key, so a row left half-chunked
	// by a broken stream is re-streamed from scratch on resume.
	s.lastEmittedKey = s.seq.LastKey()
	if s.limited {
		s.remaining = s.seq.Remaining()
	}

	if s.seq.Exhausted() {
		// Stop requesting further chunks: release the stream now.
		s.finish()
		if emit {
			return row, nil
		}
		return nil, litetable.Done
	}
	if emit {
		return row, nil
	}
	return nil, nil
}

// openAttempt issues the initial or resumed read request and installs a
// fresh Assembler/Sequencer pair. No partial row state survives from any
// earlier attempt.
func (s *Session) openAttempt(ctx context.Context) error {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	req, empty := s.buildRequest()
	if empty {
		// Everything the caller asked for was already emitted before the
		// stream broke; nothing is left to resume.
		s.finish()
		return nil
	}

	var attemptCtx context.Context
	var cancel context.CancelFunc
	if s.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}

	s.attempts++
	log.Debug().
		Str("session", s.id).
		Int("attempt", s.attempts).
		Str("resumeKey", req.StartKeyExclusive).
		Int64("limit", req.Limit).
		Msg("opening read stream")

	stream, err := s.transport.OpenReadStream(attemptCtx, req)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		stream.Close()
		cancel()
		s.state = stateDone
		return nil
	}
	s.stream = stream
	s.cancel = cancel
	s.mu.Unlock()

	s.asm = assembler.New(s.lastEmittedKey)
	s.seq = sequencer.New(&sequencer.Config{
		LastEmittedKey: s.lastEmittedKey,
		Remaining:      s.remaining,
		RowFilter:      s.rowFilter,
	})
	s.state = stateStreaming
	return nil
}

// buildRequest derives the request for the next attempt. On a resume it
// rewrites the row set so the server cannot re-send committed rows even if it
// ignores StartKeyExclusive. empty reports that the resumed row set has no
// keys or ranges left.
func (s *Session) buildRequest() (*litetable.ReadRequest, bool) {
	req := &litetable.ReadRequest{
		Table:  s.req.Table,
		Filter: s.req.Filter,
		Keys:   s.req.Keys,
		Ranges: s.req.Ranges,
	}
	if s.limited {
		req.Limit = s.remaining
	}
	if s.lastEmittedKey == "" {
		return req, false
	}

	req.StartKeyExclusive = s.lastEmittedKey
	req.Keys = trimKeys(s.req.Keys, s.lastEmittedKey)
	req.Ranges = trimRanges(s.req.Ranges, s.lastEmittedKey)

	hadRowSet := len(s.req.Keys) > 0 || len(s.req.Ranges) > 0
	empty := hadRowSet && len(req.Keys) == 0 && len(req.Ranges) == 0
	return req, empty
}

// trimKeys keeps only explicit keys strictly past the resume point.
func trimKeys(keys []string, after string) []string {
	var out []string
	for _, k := range keys {
		if k > after {
			out = append(out, k)
		}
	}
	return out
}

// trimRanges drops ranges entirely at or below the resume point and bumps the
// start of any range straddling it. after+"\x00" is the smallest key strictly
// greater than after.
func trimRanges(ranges []litetable.RowRange, after string) []litetable.RowRange {
	var out []litetable.RowRange
	for _, r := range ranges {
		if r.End != "" && r.End <= after {
			continue
		}
		if r.Start <= after {
			r.Start = after + "\x00"
		}
		out = append(out, r)
	}
	return out
}

// handleFailure discards the in-flight attempt, consults the retry policy,
// and either sits out the backoff (returning nil so the caller loops into a
// fresh attempt) or latches the terminal error.
func (s *Session) handleFailure(ctx context.Context, cause error) error {
	s.releaseStream()

	if s.closed.Load() {
		s.state = stateDone
		return litetable.Done
	}

	d := s.policy.Decide(cause, s.attempts, time.Since(s.started))
	if !d.Retry {
		s.state = stateFailed
		if d.Exhausted {
			s.err = litetable.NewError(litetable.ErrSessionExhausted,
				"%s after %d attempts, last error: %v", d.Reason, s.attempts, cause)
		} else {
			s.err = cause
		}
		log.Debug().
			Str("session", s.id).
			Int("attempt", s.attempts).
			Str("reason", d.Reason).
			Err(cause).
			Msg("read session failed")
		return s.err
	}

	log.Debug().
		Str("session", s.id).
		Int("attempt", s.attempts).
		Dur("backoff", d.Delay).
		Str("reason", d.Reason).
		Msg("retrying read stream")

	s.state = stateRetryWait
	timer := time.NewTimer(d.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.state = stateFailed
		s.err = ctx.Err()
		return s.err
	case <-s.closedCh:
		s.state = stateDone
		return litetable.Done
	case <-timer.C:
	}

	s.state = stateIdle
	return nil
}

// recv reads one chunk, holding no locks so Close can interrupt it via the
// attempt context.
func (s *Session) recv() (*litetable.CellChunk, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return nil, io.EOF
	}
	return stream.Recv()
}

// finish ends the session cleanly.
func (s *Session) finish() {
	s.releaseStream()
	s.state = stateDone
}

func (s *Session) releaseStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close aborts the logical read: it releases the in-flight stream and stops
// any further resumed requests. A subsequent or concurrent Next returns
// litetable.Done. Close is idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.closedCh)
	s.releaseStream()
}
