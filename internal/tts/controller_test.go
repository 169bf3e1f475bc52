package tts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxfree/voxfree/internal/ttypes"
)

// fakeEngine records calls and lets tests drive lifecycle signals by hand.
type fakeEngine struct {
	mu        sync.Mutex
	voices    []ttypes.Voice
	voicesErr error
	speakErr  error
	autoStart bool
	requests  []ttypes.SpeechRequest
	emits     []ttypes.EmitFunc
	cancels   int
	pauses    int
	resumes   int
	listCalls int
	closed    bool
}

func (f *fakeEngine) Voices(ctx context.Context) ([]ttypes.Voice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.voices, f.voicesErr
}

func (f *fakeEngine) Speak(ctx context.Context, req ttypes.SpeechRequest, emit ttypes.EmitFunc) error {
	f.mu.Lock()
	if f.speakErr != nil {
		f.mu.Unlock()
		return f.speakErr
	}
	f.requests = append(f.requests, req)
	f.emits = append(f.emits, emit)
	auto := f.autoStart
	f.mu.Unlock()

	if auto {
		emit(ttypes.EventStarted, nil)
	}
	return nil
}

func (f *fakeEngine) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeEngine) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeEngine) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) emit(i int, t ttypes.EventType, err error) {
	f.mu.Lock()
	e := f.emits[i]
	f.mu.Unlock()
	e(t, err)
}

func (f *fakeEngine) counts() (speaks, cancels, pauses, resumes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests), f.cancels, f.pauses, f.resumes
}

func newTestController(t *testing.T, engine *fakeEngine, opts ...ControllerOption) *Controller {
	t.Helper()
	c, err := NewController(engine, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// drain returns the events currently buffered on ch.
func drain(ch <-chan ttypes.UtteranceEvent) []ttypes.UtteranceEvent {
	var out []ttypes.UtteranceEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventNames(evs []ttypes.UtteranceEvent) string {
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = ev.Type.String()
	}
	return strings.Join(names, ",")
}

func speakReq(text string) ttypes.SpeechRequest {
	return ttypes.SpeechRequest{Text: text, Rate: 1, Pitch: 1, Volume: 1}
}

func TestNewController_NilEngine(t *testing.T) {
	if _, err := NewController(nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
}

func TestController_SpeakLifecycle(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestController(t, engine)
	events, unsubscribe := c.Subscribe(8)
	defer unsubscribe()

	u, err := c.Speak(context.Background(), speakReq("Hello there."))
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == "" {
		t.Fatal("utterance has no ID")
	}
	if got := c.State(); got != ttypes.StatePending {
		t.Errorf("State() before start = %v, want pending", got)
	}

	engine.emit(0, ttypes.EventStarted, nil)
	if got := c.State(); got != ttypes.StateSpeaking {
		t.Errorf("State() after start = %v, want speaking", got)
	}

	engine.emit(0, ttypes.EventEnded, nil)

	if err := u.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
	if got := c.State(); got != ttypes.StateIdle {
		t.Errorf("State() after end = %v, want idle", got)
	}
	evs := drain(events)
	if got := eventNames(evs); got != "started,ended" {
		t.Errorf("events = %s", got)
	}
	for _, ev := range evs {
		if ev.UtteranceID != u.ID {
			t.Errorf("event for %s, want %s", ev.UtteranceID, u.ID)
		}
	}
	if c.Stats().Spoken != 1 {
		t.Errorf("Spoken = %d", c.Stats().Spoken)
	}
}

func TestController_SpeakValidation(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestController(t, engine, WithMaxTextLength(10))

	tests := []struct {
		name string
		text string
		want ErrorCode
	}{
		{"empty", "", ErrorCodeInvalidInput},
		{"whitespace", "   ", ErrorCodeInvalidInput},
		{"too long", "this is longer than ten", ErrorCodeTextTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Speak(context.Background(), speakReq(tt.text))
			if CodeOf(err) != tt.want {
				t.Errorf("error = %v, want code %s", err, tt.want)
			}
			if Notify(err).Kind != NotifyInput {
				t.Errorf("Notify kind = %v, want input", Notify(err).Kind)
			}
		})
	}

	if speaks, _, _, _ := engine.counts(); speaks != 0 {
		t.Errorf("engine was called %d times for invalid input", speaks)
	}
}

func TestController_ClampsRequest(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestController(t, engine)

	if _, err := c.Speak(context.Background(), ttypes.SpeechRequest{Text: " hi ", Rate: 9, Pitch: 0, Volume: 4}); err != nil {
		t.Fatal(err)
	}

	engine.mu.Lock()
	req := engine.requests[0]
	engine.mu.Unlock()

	if req.Text != "hi" || req.Rate != 2.0 || req.Pitch != 0.5 || req.Volume != 1.0 {
		t.Errorf("engine got %+v", req)
	}
}

func TestController_CancelIsImmediateAndIdempotent(t *testing.T) {
	engine := &fakeEngine{autoStart: true}
	c := newTestController(t, engine)
	events, unsubscribe := c.Subscribe(8)
	defer unsubscribe()

	u, err := c.Speak(context.Background(), speakReq("A long passage."))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Cancel(); err != nil {
		t.Fatal(err)
	}
	if got := c.State(); got != ttypes.StateIdle {
		t.Fatalf("State() right after Cancel = %v, want idle", got)
	}
	select {
	case <-u.Done():
	default:
		t.Fatal("utterance not finished after Cancel")
	}
	if CodeOf(u.Err()) != ErrorCodeCanceled {
		t.Errorf("Err() = %v, want canceled", u.Err())
	}

	if err := c.Cancel(); err != nil {
		t.Errorf("second Cancel() = %v", err)
	}
	if _, cancels, _, _ := engine.counts(); cancels != 1 {
		t.Errorf("engine Cancel called %d times, want 1", cancels)
	}

	// a late signal from the canceled utterance is ignored
	engine.emit(0, ttypes.EventEnded, nil)

	if got := eventNames(drain(events)); got != "started,canceled" {
		t.Errorf("events = %s", got)
	}

	// no lockout after cancel
	if _, err := c.Speak(context.Background(), speakReq("Next.")); err != nil {
		t.Fatalf("Speak after Cancel = %v", err)
	}
	if got := c.State(); got != ttypes.StateSpeaking {
		t.Errorf("State() = %v, want speaking", got)
	}
}

func TestController_CancelWithNothingActive(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestController(t, engine)

	for i := 0; i < 3; i++ {
		if err := c.Cancel(); err != nil {
			t.Fatalf("Cancel() = %v", err)
		}
	}
	if _, cancels, _, _ := engine.counts(); cancels != 0 {
		t.Errorf("engine Cancel called %d times", cancels)
	}
}

func TestController_SpeakCancelsPrevious(t *testing.T) {
	engine := &fakeEngine{autoStart: true}
	c := newTestController(t, engine)
	events, unsubscribe := c.Subscribe(16)
	defer unsubscribe()

	first, err := c.Speak(context.Background(), speakReq("First."))
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Speak(context.Background(), speakReq("Second."))
	if err != nil {
		t.Fatal(err)
	}

	if CodeOf(first.Err()) != ErrorCodeCanceled {
		t.Errorf("first.Err() = %v, want canceled", first.Err())
	}
	if c.Current() != second {
		t.Error("second utterance is not current")
	}

	// stale end for the first must not finish the second
	engine.emit(0, ttypes.EventEnded, nil)
	select {
	case <-second.Done():
		t.Fatal("stale event finished the current utterance")
	default:
	}
	if c.Stats().DroppedStale == 0 {
		t.Error("stale event was not counted")
	}

	engine.emit(1, ttypes.EventEnded, nil)
	if err := second.Wait(context.Background()); err != nil {
		t.Errorf("second.Wait() = %v", err)
	}

	evs := drain(events)
	if got := eventNames(evs); got != "started,canceled,started,ended" {
		t.Errorf("events = %s", got)
	}
	if evs[0].UtteranceID != first.ID || evs[3].UtteranceID != second.ID {
		t.Errorf("events attributed to the wrong utterances")
	}
}

func TestController_EventOrdering(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestController(t, engine)
	events, unsubscribe := c.Subscribe(16)
	defer unsubscribe()

	u, err := c.Speak(context.Background(), speakReq("Out of order."))
	if err != nil {
		t.Fatal(err)
	}

	// pause/resume before start are dropped
	engine.emit(0, ttypes.EventPaused, nil)
	engine.emit(0, ttypes.EventResumed, nil)
	// end without start gets a synthesized start first
	engine.emit(0, ttypes.EventEnded, nil)
	// nothing after the terminal event
	engine.emit(0, ttypes.EventStarted, nil)
	engine.emit(0, ttypes.EventError, errors.New("late"))

	if err := u.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v", err)
	}
	if got := eventNames(drain(events)); got != "started,ended" {
		t.Errorf("events = %s", got)
	}
}

func TestController_PauseResume(t *testing.T) {
	engine := &fakeEngine{}
	c := newTestController(t, engine)
	events, unsubscribe := c.Subscribe(16)
	defer unsubscribe()

	if err := c.Pause(); !errors.Is(err, ErrNothingToPause) {
		t.Errorf("Pause() with nothing active = %v", err)
	}

	if _, err := c.Speak(context.Background(), speakReq("Pause me.")); err != nil {
		t.Fatal(err)
	}
	if err := c.Pause(); !errors.Is(err, ErrNothingToPause) {
		t.Errorf("Pause() before start = %v", err)
	}

	engine.emit(0, ttypes.EventStarted, nil)

	if err := c.TogglePause(); err != nil {
		t.Fatal(err)
	}
	if got := c.State(); got != ttypes.StatePaused {
		t.Errorf("State() = %v, want paused", got)
	}
	// engine reporting its own pause is deduplicated
	engine.emit(0, ttypes.EventPaused, nil)

	if err := c.Pause(); !errors.Is(err, ErrNothingToPause) {
		t.Errorf("second Pause() = %v", err)
	}

	if err := c.TogglePause(); err != nil {
		t.Fatal(err)
	}
	if got := c.State(); got != ttypes.StateSpeaking {
		t.Errorf("State() = %v, want speaking", got)
	}

	engine.emit(0, ttypes.EventEnded, nil)

	_, _, pauses, resumes := engine.counts()
	if pauses != 1 || resumes != 1 {
		t.Errorf("engine pauses=%d resumes=%d", pauses, resumes)
	}
	if got := eventNames(drain(events)); got != "started,paused,resumed,ended" {
		t.Errorf("events = %s", got)
	}
}

func TestController_EngineError(t *testing.T) {
	engine := &fakeEngine{autoStart: true}
	c := newTestController(t, engine)

	u, err := c.Speak(context.Background(), speakReq("Fail please."))
	if err != nil {
		t.Fatal(err)
	}

	engine.emit(0, ttypes.EventError, errors.New("audio device lost"))

	werr := u.Wait(context.Background())
	if CodeOf(werr) != ErrorCodeEngineFailure {
		t.Fatalf("Wait() = %v, want engine failure", werr)
	}
	if !strings.Contains(werr.Error(), "audio device lost") {
		t.Errorf("cause missing: %v", werr)
	}
	if c.State() != ttypes.StateError {
		t.Errorf("State() = %v, want error", c.State())
	}
	if c.LastError() == nil {
		t.Error("LastError() is nil")
	}
	if Notify(werr).Kind != NotifySpeech {
		t.Errorf("Notify kind = %v", Notify(werr).Kind)
	}

	// a new utterance clears the error state
	if _, err := c.Speak(context.Background(), speakReq("Again.")); err != nil {
		t.Fatal(err)
	}
	if c.LastError() != nil || c.State() != ttypes.StateSpeaking {
		t.Errorf("state after retry: %v / %v", c.State(), c.LastError())
	}
}

func TestController_EngineRejectsSpeak(t *testing.T) {
	engine := &fakeEngine{speakErr: errors.New("no audio device")}
	c := newTestController(t, engine)

	u, err := c.Speak(context.Background(), speakReq("Hello."))
	if u != nil {
		t.Error("expected nil utterance")
	}
	if CodeOf(err) != ErrorCodeEngineFailure {
		t.Fatalf("error = %v", err)
	}
	if c.State() != ttypes.StateError || c.Current() != nil {
		t.Errorf("State() = %v, Current() = %v", c.State(), c.Current())
	}
}

func TestController_Voices(t *testing.T) {
	engine := &fakeEngine{voices: []ttypes.Voice{
		{ID: "en", Name: "English", Language: "en", Default: true},
		{ID: "de", Name: "German", Language: "de"},
	}}
	c := newTestController(t, engine)

	ctx := context.Background()
	voices, err := c.Voices(ctx)
	if err != nil || len(voices) != 2 {
		t.Fatalf("Voices() = %v, %v", voices, err)
	}
	if _, err := c.Voices(ctx); err != nil {
		t.Fatal(err)
	}
	engine.mu.Lock()
	calls := engine.listCalls
	engine.mu.Unlock()
	if calls != 1 {
		t.Errorf("engine listed voices %d times, want 1 (cached)", calls)
	}

	// the returned slice is a copy
	voices[0].Name = "changed"
	again, _ := c.Voices(ctx)
	if again[0].Name != "English" {
		t.Error("Voices() exposes internal state")
	}

	engine.mu.Lock()
	engine.voices = append(engine.voices, ttypes.Voice{ID: "fr", Name: "French", Language: "fr"})
	engine.mu.Unlock()

	refreshed, err := c.RefreshVoices(ctx)
	if err != nil || len(refreshed) != 3 {
		t.Fatalf("RefreshVoices() = %v, %v", refreshed, err)
	}

	if _, err := c.Speak(ctx, ttypes.SpeechRequest{Text: "Bonjour.", VoiceID: "fr", Rate: 1, Pitch: 1, Volume: 1}); err != nil {
		t.Errorf("Speak with known voice: %v", err)
	}
	_, err = c.Speak(ctx, ttypes.SpeechRequest{Text: "Hola.", VoiceID: "es", Rate: 1, Pitch: 1, Volume: 1})
	if !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("Speak with unknown voice = %v", err)
	}
}

func TestController_VoicesError(t *testing.T) {
	engine := &fakeEngine{voicesErr: errors.New("espeak crashed")}
	c := newTestController(t, engine)

	_, err := c.RefreshVoices(context.Background())
	if CodeOf(err) != ErrorCodeEngineUnavailable {
		t.Errorf("error = %v", err)
	}
}

func TestController_Close(t *testing.T) {
	engine := &fakeEngine{autoStart: true}
	c, err := NewController(engine)
	if err != nil {
		t.Fatal(err)
	}
	events, _ := c.Subscribe(8)

	if _, err := c.Speak(context.Background(), speakReq("Bye.")); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	got := []ttypes.UtteranceEvent{}
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-events:
			if !ok {
				done = true
				break
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("subscriber channel not closed")
		}
	}
	if eventNames(got) != "started,canceled" {
		t.Errorf("events = %s", eventNames(got))
	}

	engine.mu.Lock()
	closed := engine.closed
	engine.mu.Unlock()
	if !closed {
		t.Error("engine not closed")
	}

	if _, err := c.Speak(context.Background(), speakReq("Hello.")); !errors.Is(err, ErrControllerClosed) {
		t.Errorf("Speak after Close = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestController_ConcurrentSpeakAndCancel(t *testing.T) {
	engine := &fakeEngine{autoStart: true}
	c := newTestController(t, engine)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.Speak(context.Background(), speakReq("Race."))
		}()
		go func() {
			defer wg.Done()
			_ = c.Cancel()
		}()
	}
	wg.Wait()

	_ = c.Cancel()
	if got := c.State(); got != ttypes.StateIdle {
		t.Errorf("State() = %v, want idle", got)
	}
}
