package audio

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMockPlayer_FinishClosesDone(t *testing.T) {
	mp := DefaultMockPlayer()

	done, err := mp.Play([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if !mp.IsPlaying() {
		t.Fatal("should be playing")
	}

	select {
	case <-done:
		t.Fatal("done closed before Finish")
	default:
	}

	mp.Finish()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done not closed after Finish")
	}
	if mp.State() != StateStopped {
		t.Errorf("State() = %s", mp.State())
	}
}

func TestMockPlayer_AutoFinish(t *testing.T) {
	mp := DefaultMockPlayer()
	mp.SetDelayFactor(0.1)

	// one second of audio at 22050 Hz plays in ~100ms
	done, err := mp.Play(make([]byte, 44100))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback never finished")
	}
}

func TestMockPlayer_PauseHoldsCompletion(t *testing.T) {
	mp := DefaultMockPlayer()
	mp.SetDelayFactor(0.05)

	done, err := mp.Play(make([]byte, 44100))
	if err != nil {
		t.Fatal(err)
	}
	if err := mp.Pause(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
		t.Fatal("finished while paused")
	case <-time.After(150 * time.Millisecond):
	}

	if err := mp.Resume(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("did not finish after resume")
	}
}

func TestMockPlayer_StateErrors(t *testing.T) {
	mp := DefaultMockPlayer()

	if err := mp.Pause(); err == nil {
		t.Error("Pause() while stopped should fail")
	}
	if err := mp.Resume(); err == nil {
		t.Error("Resume() while stopped should fail")
	}
	if err := mp.Stop(); err != nil {
		t.Errorf("Stop() while stopped = %v", err)
	}
	if _, err := mp.Play(nil); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Play(nil) = %v", err)
	}

	mp.SetPlayError(errors.New("device busy"))
	if _, err := mp.Play([]byte{1, 2}); err == nil {
		t.Error("expected configured play error")
	}
	mp.SetPlayError(nil)

	if err := mp.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := mp.Play([]byte{1, 2}); !errors.Is(err, ErrPlayerClosed) {
		t.Errorf("Play after Close = %v", err)
	}
}

func TestMockPlayer_PlayReplacesCurrent(t *testing.T) {
	mp := DefaultMockPlayer()

	first, _ := mp.Play([]byte{1, 2})
	second, err := mp.Play([]byte{3, 4})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-first:
	default:
		t.Error("first playback not finished by second Play")
	}
	select {
	case <-second:
		t.Error("second playback finished early")
	default:
	}
	if got := mp.LastAudio(); len(got) != 2 || got[0] != 3 {
		t.Errorf("LastAudio() = %v", got)
	}

	plays, _, _, stops := mp.Counts()
	if plays != 2 || stops != 1 {
		t.Errorf("plays=%d stops=%d", plays, stops)
	}
}

func TestMockPlayer_Callbacks(t *testing.T) {
	var played, paused, resumed, stopped, closed atomic.Int32
	mp := NewMockPlayer(MockCallbacks{
		OnPlay:   func([]byte) { played.Add(1) },
		OnPause:  func() { paused.Add(1) },
		OnResume: func() { resumed.Add(1) },
		OnStop:   func() { stopped.Add(1) },
		OnClose:  func() { closed.Add(1) },
	})

	_, _ = mp.Play([]byte{1, 2})
	_ = mp.Pause()
	_ = mp.Resume()
	_ = mp.Stop()
	_ = mp.Close()

	if played.Load() != 1 || paused.Load() != 1 || resumed.Load() != 1 || stopped.Load() != 1 || closed.Load() != 1 {
		t.Errorf("callbacks: play=%d pause=%d resume=%d stop=%d close=%d",
			played.Load(), paused.Load(), resumed.Load(), stopped.Load(), closed.Load())
	}
}

func TestMockPlayer_Volume(t *testing.T) {
	mp := DefaultMockPlayer()

	if err := mp.SetVolume(0.3); err != nil {
		t.Fatal(err)
	}
	if mp.Volume() != 0.3 {
		t.Errorf("Volume() = %v", mp.Volume())
	}
	if err := mp.SetVolume(-1); err == nil {
		t.Error("expected error for negative volume")
	}
}
