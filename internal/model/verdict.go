package model

import "encoding/json"

// Verdict is the readiness result of one pipeline stage. It is either
// Ready or Blocked; no other implementations exist.
type Verdict interface {
	IsReady() bool
	// Reasons returns a copy of the blocking reasons, nil when ready.
	Reasons() []string
	verdict()
}

// Ready means the stage may run. For the stream stage this is the "valid" arm.
type Ready struct{}

func (Ready) IsReady() bool     { return true }
func (Ready) Reasons() []string { return nil }
func (Ready) verdict()          {}

func (Ready) MarshalJSON() ([]byte, error) {
	return json.Marshal(verdictJSON{Status: "ready"})
}

// Blocked means the stage may not run. For the stream stage this is the
// "error" arm. It always carries at least one reason, so build it with
// NewBlocked; reading the reasons of a zero Blocked panics.
type Blocked struct {
	reasons []string
}

const errNoReason = "model: blocked verdict requires at least one reason"

// NewBlocked builds a Blocked verdict. It panics when reasons is empty:
// a blocked verdict without a reason is a programming error.
func NewBlocked(reasons ...string) Blocked {
	if len(reasons) == 0 {
		panic(errNoReason)
	}
	return Blocked{reasons: append([]string(nil), reasons...)}
}

func (b Blocked) mustReasons() []string {
	if len(b.reasons) == 0 {
		panic(errNoReason)
	}
	return b.reasons
}

func (Blocked) IsReady() bool { return false }

func (b Blocked) Reasons() []string {
	return append([]string(nil), b.mustReasons()...)
}

func (Blocked) verdict() {}

func (b Blocked) MarshalJSON() ([]byte, error) {
	return json.Marshal(verdictJSON{Status: "blocked", Reasons: b.mustReasons()})
}

// VerdictOf returns Ready when reasons is empty and Blocked otherwise
func VerdictOf(reasons []string) Verdict {
	if len(reasons) == 0 {
		return Ready{}
	}
	return NewBlocked(reasons...)
}

type verdictJSON struct {
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}
