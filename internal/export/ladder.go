package export

import "fmt"

// LadderState is the state of a single chunk fetch.
type LadderState int

const (
	// Requesting means an attempt at (Proxy, Pass) is due or in flight
	Requesting LadderState = iota
	// Advancing means the last attempt failed and the next proxy is up
	Advancing
	// Retrying means every proxy failed this pass and a new pass starts at proxy 0
	Retrying
	// Succeeded is terminal: the chunk was fetched
	Succeeded
	// Exhausted is terminal: every proxy failed on every pass
	Exhausted
)

// String returns the string representation of the state.
func (s LadderState) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Advancing:
		return "advancing"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Ladder walks the proxy list once per pass for up to budget passes, so a
// chunk is attempted at most proxies*budget times.
type Ladder struct {
	proxies int
	budget  int

	state    LadderState
	proxy    int
	pass     int
	attempts int
}

// NewLadder creates a ladder over n proxies with the given pass budget.
func NewLadder(proxies, budget int) (*Ladder, error) {
	if proxies < 1 {
		return nil, fmt.Errorf("ladder needs at least one proxy, got %d", proxies)
	}
	if budget < 1 {
		return nil, fmt.Errorf("retry budget must be at least 1, got %d", budget)
	}
	return &Ladder{proxies: proxies, budget: budget}, nil
}

// State returns the current state.
func (l *Ladder) State() LadderState { return l.state }

// Position returns the proxy ordinal and pass of the next attempt.
func (l *Ladder) Position() (proxy, pass int) { return l.proxy, l.pass }

// Attempts returns how many attempts have been reported.
func (l *Ladder) Attempts() int { return l.attempts }

// MaxAttempts returns proxies*budget.
func (l *Ladder) MaxAttempts() int { return l.proxies * l.budget }

// Done reports whether the ladder reached a terminal state.
func (l *Ladder) Done() bool {
	return l.state == Succeeded || l.state == Exhausted
}

// Next moves an Advancing or Retrying ladder back to Requesting.
func (l *Ladder) Next() {
	if l.state == Advancing || l.state == Retrying {
		l.state = Requesting
	}
}

// Succeed records a successful attempt.
func (l *Ladder) Succeed() {
	if l.Done() {
		return
	}
	l.attempts++
	l.state = Succeeded
}

// Fail records a failed attempt and applies, in order: try the next proxy
// in this pass, start a new pass at proxy 0, or give up.
func (l *Ladder) Fail() LadderState {
	if l.Done() {
		return l.state
	}
	l.attempts++

	switch {
	case l.proxy+1 < l.proxies:
		l.proxy++
		l.state = Advancing
	case l.pass+1 < l.budget:
		l.proxy = 0
		l.pass++
		l.state = Retrying
	default:
		l.state = Exhausted
	}
	return l.state
}
