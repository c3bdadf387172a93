package core

import (
	"errors"
	"fmt"
)

// Tokens returned to the host regardless of how a command was handled.
const (
	AckSend   = "send"
	AckUnload = "unload"
)

// ErrUnloaded is returned for commands sent to a plugin after Unload.
var ErrUnloaded = errors.New("plugin unloaded")

// Outcome describes what a dispatched command actually did.
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeFailed     Outcome = "failed"
)

// Result is the tagged outcome of Plugin.Dispatch.
type Result struct {
	Outcome Outcome
	Err     error
}

// Dispatched reports a command that took effect.
func Dispatched() Result { return Result{Outcome: OutcomeDispatched} }

// Ignored reports a command that was recognized as a no-op or not recognized at all.
func Ignored() Result { return Result{Outcome: OutcomeIgnored} }

// Failed reports a command that could not be carried out.
func Failed(err error) Result { return Result{Outcome: OutcomeFailed, Err: err} }

// Ack returns the fixed acknowledgement token. It does not depend on the outcome.
func (r Result) Ack() string { return AckSend }

// OK reports whether the command did not fail.
func (r Result) OK() bool { return r.Outcome != OutcomeFailed }

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	}
	return string(r.Outcome)
}
