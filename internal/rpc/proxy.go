package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lava-submitter/internal/metrics"

	"github.com/rs/zerolog"
)

// Caller performs one remote procedure call. args are positional parameters and
// the decoded result is stored in reply.
type Caller interface {
	Call(ctx context.Context, method string, args []interface{}, reply interface{}) error
}

// Policy bounds the transport retry loop.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy retries a transport failure for up to 15 minutes.
var DefaultPolicy = Policy{MaxAttempts: 60, Delay: 15 * time.Second}

// Proxy wraps a Caller with retry on protocol errors. Faults and retry
// exhaustion come back as *FatalError.
type Proxy struct {
	caller Caller
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
	log    *zerolog.Logger
}

func NewProxy(caller Caller, policy Policy, log *zerolog.Logger) *Proxy {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Proxy{caller: caller, policy: policy, sleep: sleepCtx, log: log}
}

// WithSleep replaces the delay function, used by tests.
func (p *Proxy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Proxy {
	p.sleep = sleep
	return p
}

// Call runs method until it succeeds, faults, or the attempt budget runs out.
// Errors that are neither faults nor protocol errors are returned as-is.
func (p *Proxy) Call(ctx context.Context, method string, reply interface{}, args ...interface{}) error {
	for n := 1; ; n++ {
		err := classify(p.caller.Call(ctx, method, args, reply))
		if err == nil {
			return nil
		}

		var fault *Fault
		if errors.As(err, &fault) {
			p.log.Error().Str("method", method).Int("code", fault.Code).Str("fault", fault.Msg).Msg("scheduler rejected call")
			return &FatalError{Method: method, Err: err}
		}

		var proto *ProtocolError
		if !errors.As(err, &proto) {
			return err
		}

		if n >= p.policy.MaxAttempts {
			p.log.Error().Err(err).Str("method", method).Int("attempts", n).Msg("transport retries exhausted")
			return &FatalError{Method: method, Err: fmt.Errorf("a protocol error occurred after %d attempts: %w", n, err)}
		}

		metrics.IncRPCRetry(method)
		p.log.Warn().Err(err).Str("method", method).Int("attempt", n).Dur("delay", p.policy.Delay).Msg("transport error, retrying")
		if serr := p.sleep(ctx, p.policy.Delay); serr != nil {
			return serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
