package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/voxfree/voxfree/internal/ttypes"
)

var (
	// ErrControllerClosed is returned when operations are attempted after Close()
	ErrControllerClosed = errors.New("controller closed")

	// ErrUtteranceCanceled is the cause attached to canceled utterances
	ErrUtteranceCanceled = errors.New("utterance canceled")
)

// Controller wraps the voice engine. Only one utterance is active at a
// time: Speak cancels whatever was playing before. Lifecycle events from
// the engine are relayed to subscribers in order, with started always first
// and paused/resumed only between started and the terminal event. Events
// for utterances that are no longer current are dropped.
type Controller struct {
	engine        ttypes.VoiceEngine
	logger        *log.Logger
	maxTextLength int

	// opMu serializes Speak, Cancel, Pause and Resume so engine calls are
	// never interleaved.
	opMu sync.Mutex

	mu      sync.Mutex
	state   ttypes.State
	current *Utterance
	lastErr error
	closed  bool
	voices  []ttypes.Voice
	subs    map[int]chan ttypes.UtteranceEvent
	nextSub int
	stats   ControllerStats
}

// ControllerStats counts finished utterances by outcome.
type ControllerStats struct {
	Spoken       int64
	Canceled     int64
	Failed       int64
	DroppedStale int64
	LastActivity time.Time
}

// Utterance is the handle returned by Speak.
type Utterance struct {
	ID      string
	Request ttypes.SpeechRequest

	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	started bool
	paused  bool
	ended   bool
}

// Done is closed when the utterance reaches a terminal event.
func (u *Utterance) Done() <-chan struct{} {
	return u.done
}

// Err returns the terminal error, or nil if the utterance ended normally.
// It is only meaningful after Done is closed.
func (u *Utterance) Err() error {
	select {
	case <-u.done:
		return u.err
	default:
		return nil
	}
}

// Wait blocks until the utterance finishes or ctx is done.
func (u *Utterance) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the logger used by the controller.
func WithLogger(l *log.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxTextLength overrides DefaultMaxTextLength.
func WithMaxTextLength(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxTextLength = n
		}
	}
}

// NewController creates a controller around engine.
func NewController(engine ttypes.VoiceEngine, opts ...ControllerOption) (*Controller, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	c := &Controller{
		engine:        engine,
		logger:        log.Default(),
		maxTextLength: DefaultMaxTextLength,
		state:         ttypes.StateIdle,
		subs:          make(map[int]chan ttypes.UtteranceEvent),
		stats:         ControllerStats{LastActivity: time.Now()},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Speak validates req and hands it to the engine, canceling any active
// utterance first. Validation errors are returned before the engine is
// touched.
func (c *Controller) Speak(ctx context.Context, req ttypes.SpeechRequest) (*Utterance, error) {
	req, err := NewSpeechRequest(req.Text, req.VoiceID, req.Rate, req.Pitch, req.Volume, c.maxTextLength)
	if err != nil {
		return nil, err
	}
	if err := c.checkVoice(req.VoiceID); err != nil {
		return nil, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrControllerClosed
	}
	prev := c.current
	if prev != nil {
		c.finishLocked(prev, ttypes.EventCanceled, nil)
	}
	c.mu.Unlock()

	if prev != nil {
		c.logger.Debug("Canceling previous utterance", "id", prev.ID)
		if err := c.engine.Cancel(); err != nil {
			c.logger.Warn("Engine cancel failed", "err", err)
		}
	}

	uctx, cancel := context.WithCancel(ctx)
	u := &Utterance{
		ID:      uuid.NewString(),
		Request: req,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	c.current = u
	c.lastErr = nil
	c.state = ttypes.StatePending
	c.stats.LastActivity = time.Now()
	c.mu.Unlock()

	c.logger.Debug("Speaking", "id", u.ID, "chars", len([]rune(req.Text)), "voice", req.VoiceID,
		"rate", req.Rate, "pitch", req.Pitch, "volume", req.Volume)

	if err := c.engine.Speak(uctx, req, c.emitter(u)); err != nil {
		terr := NewTTSError(ErrorCodeEngineFailure, "voice engine rejected the utterance", err).
			WithContext("utterance_id", u.ID)

		c.mu.Lock()
		if c.current == u {
			c.current = nil
			c.state = ttypes.StateError
			c.lastErr = terr
			c.stats.Failed++
		}
		if !u.ended {
			u.ended = true
			u.err = terr
			close(u.done)
		}
		c.mu.Unlock()
		cancel()

		c.logger.Error("Engine failed to start utterance", "id", u.ID, "err", err)
		return nil, terr
	}

	return u, nil
}

// Cancel stops the active utterance immediately and returns the controller
// to idle. Calling it with nothing active is a no-op.
func (c *Controller) Cancel() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	u := c.current
	if u == nil {
		c.mu.Unlock()
		return nil
	}
	c.finishLocked(u, ttypes.EventCanceled, nil)
	c.mu.Unlock()

	c.logger.Debug("Utterance canceled", "id", u.ID)

	if err := c.engine.Cancel(); err != nil {
		return NewTTSError(ErrorCodeEngineFailure, "failed to stop the voice engine", err)
	}
	return nil
}

// Pause pauses the active utterance.
func (c *Controller) Pause() error {
	return c.pauseResume(true)
}

// Resume resumes a paused utterance.
func (c *Controller) Resume() error {
	return c.pauseResume(false)
}

// TogglePause pauses when speaking and resumes when paused.
func (c *Controller) TogglePause() error {
	if c.State() == ttypes.StatePaused {
		return c.Resume()
	}
	return c.Pause()
}

func (c *Controller) pauseResume(pause bool) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	u := c.current
	ok := u != nil && u.started && u.paused != pause
	c.mu.Unlock()
	if !ok {
		return ErrNothingToPause
	}

	var err error
	event, verb := ttypes.EventResumed, "resume"
	if pause {
		err = c.engine.Pause()
		event, verb = ttypes.EventPaused, "pause"
	} else {
		err = c.engine.Resume()
	}
	if err != nil {
		return NewTTSError(ErrorCodeEngineFailure, "voice engine could not "+verb, err)
	}

	// engines that report pause/resume themselves are deduplicated here
	c.handle(u, event, nil)
	return nil
}

// State returns the controller state.
func (c *Controller) State() ttypes.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the active utterance, or nil.
func (c *Controller) Current() *Utterance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// LastError returns the error of the most recent failed utterance.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Stats returns a snapshot of the controller counters.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Subscribe returns a channel receiving every relayed event and a function
// that unsubscribes. Events are dropped for subscribers whose buffer is full.
func (c *Controller) Subscribe(buffer int) (<-chan ttypes.UtteranceEvent, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan ttypes.UtteranceEvent, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Voices returns the cached voice list, enumerating it on first use.
func (c *Controller) Voices(ctx context.Context) ([]ttypes.Voice, error) {
	c.mu.Lock()
	cached := c.voices
	c.mu.Unlock()

	if cached != nil {
		return cloneVoices(cached), nil
	}
	return c.RefreshVoices(ctx)
}

// RefreshVoices re-enumerates the engine's voices.
func (c *Controller) RefreshVoices(ctx context.Context) ([]ttypes.Voice, error) {
	voices, err := c.engine.Voices(ctx)
	if err != nil {
		return nil, NewTTSError(ErrorCodeEngineUnavailable, "could not list voices", err)
	}
	if voices == nil {
		voices = []ttypes.Voice{}
	}

	c.mu.Lock()
	c.voices = voices
	c.mu.Unlock()

	c.logger.Debug("Voices refreshed", "count", len(voices))
	return cloneVoices(voices), nil
}

// Close cancels any active utterance, closes subscriber channels and
// releases the engine.
func (c *Controller) Close() error {
	if err := c.Cancel(); err != nil {
		c.logger.Warn("Cancel during close failed", "err", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	return c.engine.Close()
}

func (c *Controller) checkVoice(id string) error {
	if id == "" {
		return nil
	}

	c.mu.Lock()
	voices := c.voices
	c.mu.Unlock()

	// unknown until the engine has been asked
	if voices == nil {
		return nil
	}
	for _, v := range voices {
		if v.ID == id {
			return nil
		}
	}
	return NewTTSError(ErrorCodeInvalidInput, fmt.Sprintf("voice %q is not available", id), ErrUnknownVoice)
}

func (c *Controller) emitter(u *Utterance) ttypes.EmitFunc {
	return func(t ttypes.EventType, err error) {
		c.handle(u, t, err)
	}
}

// handle applies one engine signal to u. Signals that would break event
// ordering, or that belong to an utterance that is no longer current, are
// dropped.
func (c *Controller) handle(u *Utterance, t ttypes.EventType, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != u || u.ended {
		c.stats.DroppedStale++
		c.logger.Debug("Dropping stale event", "id", u.ID, "event", t)
		return
	}

	switch t {
	case ttypes.EventStarted:
		if u.started {
			return
		}
		u.started = true
		c.state = ttypes.StateSpeaking
		c.publishLocked(u, t, nil)

	case ttypes.EventPaused:
		if !u.started || u.paused {
			return
		}
		u.paused = true
		c.state = ttypes.StatePaused
		c.publishLocked(u, t, nil)

	case ttypes.EventResumed:
		if !u.paused {
			return
		}
		u.paused = false
		c.state = ttypes.StateSpeaking
		c.publishLocked(u, t, nil)

	case ttypes.EventEnded, ttypes.EventError, ttypes.EventCanceled:
		c.finishLocked(u, t, err)
	}
}

// finishLocked publishes the terminal event for u and clears it. A started
// event is synthesized first if the engine never reported one.
func (c *Controller) finishLocked(u *Utterance, t ttypes.EventType, err error) {
	if u.ended {
		return
	}
	if !u.started && t != ttypes.EventCanceled {
		u.started = true
		c.publishLocked(u, ttypes.EventStarted, nil)
	}

	u.ended = true
	switch t {
	case ttypes.EventEnded:
		c.state = ttypes.StateIdle
		c.stats.Spoken++
	case ttypes.EventCanceled:
		u.err = NewTTSError(ErrorCodeCanceled, "utterance canceled", ErrUtteranceCanceled)
		c.state = ttypes.StateIdle
		c.stats.Canceled++
	default:
		if err == nil {
			err = errors.New("unknown engine error")
		}
		u.err = NewTTSError(ErrorCodeEngineFailure, "speech failed", err).WithContext("utterance_id", u.ID)
		c.lastErr = u.err
		c.state = ttypes.StateError
		c.stats.Failed++
		c.logger.Error("Utterance failed", "id", u.ID, "err", err)
	}

	c.publishLocked(u, t, u.err)
	c.current = nil
	c.stats.LastActivity = time.Now()
	u.cancel()
	close(u.done)
}

func (c *Controller) publishLocked(u *Utterance, t ttypes.EventType, err error) {
	ev := ttypes.UtteranceEvent{
		UtteranceID: u.ID,
		Type:        t,
		Err:         err,
		At:          time.Now(),
	}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("Subscriber too slow, dropping event", "id", u.ID, "event", t)
		}
	}
}

func cloneVoices(v []ttypes.Voice) []ttypes.Voice {
	out := make([]ttypes.Voice, len(v))
	copy(out, v)
	return out
}
