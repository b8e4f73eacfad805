package rpc

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"regexp"
	"strconv"
)

// faultPattern matches the text kolo/xmlrpc gives a decoded fault response.
// Every other server error string is a failed read of the response.
var faultPattern = regexp.MustCompile(`^Fault\((-?\d+)\): (?s:(.*))$`)

// ProtocolError is a transport level failure (HTTP status, dropped connection).
// The call may succeed if repeated.
type ProtocolError struct {
	Code int
	Msg  string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error (Err %d %s)", e.Code, e.Msg)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Fault means the scheduler received and rejected the call.
type Fault struct {
	Code int
	Msg  string
}

func (e *Fault) Error() string {
	return fmt.Sprintf("fault: %s (code: %d)", e.Msg, e.Code)
}

// FatalError ends the whole process, not just the current attempt.
type FatalError struct {
	Method string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("FATAL: %s: %v", e.Method, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// classify maps errors coming out of the XML-RPC stack onto Fault and
// ProtocolError. Anything else is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}
	var proto *ProtocolError
	if errors.As(err, &proto) {
		return proto
	}
	var server rpc.ServerError
	if errors.As(err, &server) {
		m := faultPattern.FindStringSubmatch(string(server))
		if m == nil {
			return &ProtocolError{Err: err}
		}
		code, _ := strconv.Atoi(m[1])
		return &Fault{Code: code, Msg: m[2]}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, rpc.ErrShutdown) {
		return &ProtocolError{Err: err}
	}
	return err
}
