// Package retry decides whether a failed stream attempt should be resumed.
// The policy is a pure decision function over the error class, the attempt
// count, and the elapsed session time; it performs no waiting itself.
package retry

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/litetable/litetable-read/litetable"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxAttempts    = 10
	defaultMaxElapsed     = 5 * time.Minute
)

// Decision is the outcome of consulting the policy after a failure.
type Decision struct {
	// Retry reports whether the session should open a resumed stream.
	Retry bool
	// Delay is how long to wait before the resumed attempt.
	Delay time.Duration
	// Reason is a short human-readable explanation, for logging.
	Reason string
	// Exhausted reports that the decision is terminal because the retry
	// budget ran out, not because of the error's class.
	Exhausted bool
}

type errClass int

const (
	classTransient errClass = iota
	classPermanent
	classProtocol
)

type Config struct {
	// InitialBackoff is the delay before the first resumed attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Multiplier grows the backoff between consecutive attempts.
	Multiplier float64
	// MaxAttempts caps the total number of stream attempts per session.
	MaxAttempts int
	// MaxElapsed caps the total time a session may spend across attempts.
	MaxElapsed time.Duration
	// RetryProtocolViolations permits a single defensive retry of a
	// protocol violation before it becomes terminal. Off by default: a
	// violation usually means a client/server mismatch, not a blip.
	RetryProtocolViolations bool
}

// Policy is an exponential-backoff retry policy with full jitter and hard
// attempt/time caps. One Policy may be shared by concurrent read sessions.
type Policy struct {
	initial     time.Duration
	max         time.Duration
	multiplier  float64
	maxAttempts int
	maxElapsed  time.Duration
	retryProto  bool

	// rndMu serializes jitter draws: rand.Rand is not safe for concurrent
	// use and the Policy is shared across sessions.
	rndMu sync.Mutex
	rnd   *rand.Rand
}

// New creates a Policy, filling zero config fields with defaults.
func New(cfg *Config) (*Policy, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var errGrp []error
	if cfg.InitialBackoff < 0 {
		errGrp = append(errGrp, errors.New("initial backoff cannot be negative"))
	}
	if cfg.MaxBackoff < 0 {
		errGrp = append(errGrp, errors.New("max backoff cannot be negative"))
	}
	if cfg.Multiplier < 0 || (cfg.Multiplier > 0 && cfg.Multiplier < 1) {
		errGrp = append(errGrp, errors.New("multiplier must be at least 1"))
	}
	if cfg.MaxAttempts < 0 {
		errGrp = append(errGrp, errors.New("max attempts cannot be negative"))
	}
	if err := errors.Join(errGrp...); err != nil {
		return nil, err
	}

	p := &Policy{
		initial:     cfg.InitialBackoff,
		max:         cfg.MaxBackoff,
		multiplier:  cfg.Multiplier,
		maxAttempts: cfg.MaxAttempts,
		maxElapsed:  cfg.MaxElapsed,
		retryProto:  cfg.RetryProtocolViolations,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if p.initial == 0 {
		p.initial = defaultInitialBackoff
	}
	if p.max == 0 {
		p.max = defaultMaxBackoff
	}
	if p.multiplier == 0 {
		p.multiplier = defaultMultiplier
	}
	if p.maxAttempts == 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.maxElapsed == 0 {
		p.maxElapsed = defaultMaxElapsed
	}
	return p, nil
}

// Decide classifies err and returns the retry decision for the attempt that
// just failed. attempt is 1-based: the count of stream attempts made so far.
// Budget caps force a terminal decision regardless of the error class.
func (p *Policy) Decide(err error, attempt int, elapsed time.Duration) Decision {
	if attempt >= p.maxAttempts {
		return Decision{Reason: "attempt budget exhausted", Exhausted: true}
	}
	if elapsed >= p.maxElapsed {
		return Decision{Reason: "time budget exhausted", Exhausted: true}
	}

	switch classify(err) {
	case classPermanent:
		return Decision{Reason: "permanent error"}
	case classProtocol:
		if p.retryProto && attempt == 1 {
			return Decision{Retry: true, Delay: p.backoff(attempt), Reason: "defensive retry of protocol violation"}
		}
		return Decision{Reason: "protocol violation"}
	default:
		return Decision{Retry: true, Delay: p.backoff(attempt), Reason: "transient transport error"}
	}
}

// backoff computes the capped exponential delay for the given attempt with
// full jitter: uniform in (0, cappedExponential].
func (p *Policy) backoff(attempt int) time.Duration {
	d := float64(p.initial)
	for i := 1; i < attempt; i++ {
		d *= p.multiplier
		if d >= float64(p.max) {
			d = float64(p.max)
			break
		}
	}
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return time.Duration(p.rnd.Int63n(int64(d))) + 1
}

// classify maps an error onto the taxonomy: protocol violations are their own
// class, cancellation and invalid requests are permanent, and everything that
// looks like a transport hiccup is transient.
func classify(err error) errClass {
	if errors.Is(err, litetable.ErrProtocolViolation) {
		return classProtocol
	}
	if errors.Is(err, context.Canceled) {
		return classPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return classTransient
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
			return classTransient
		case codes.InvalidArgument, codes.PermissionDenied, codes.NotFound,
			codes.FailedPrecondition, codes.Unauthenticated, codes.OutOfRange:
			return classPermanent
		}
	}

	// Raw socket failures (connection reset, broken pipe) surface as
	// net.OpError rather than a gRPC status.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classTransient
	}

	return classPermanent
}
