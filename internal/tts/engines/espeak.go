package engines

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/voxfree/voxfree/internal/ttypes"
)

const (
	espeakBaseWPM   = 175
	espeakMinWPM    = 80
	espeakMaxWPM    = 450
	espeakBasePitch = 50

	// espeak-ng writes 22050 Hz mono 16-bit WAV
	EspeakSampleRate = 22050

	maxEspeakOutput = 50 * 1024 * 1024
)

// Runner executes a command and returns its stdout. It exists so tests
// can replace the espeak process.
type Runner func(ctx context.Context, name string, args []string, stdin string) ([]byte, error)

// EspeakConfig holds configuration for the espeak synthesizer.
type EspeakConfig struct {
	// Binary is the espeak or espeak-ng executable (required)
	Binary string

	// Voice used when a request does not name one
	DefaultVoice string

	// Timeout bounds a single synthesis; zero means 30s
	Timeout time.Duration

	// Runner overrides process execution
	Runner Runner
}

// EspeakSynthesizer renders speech with the espeak-ng command line tool.
// A fresh process is started for every request with stdin pre-filled.
type EspeakSynthesizer struct {
	binary       string
	defaultVoice string
	timeout      time.Duration
	run          Runner

	mu     sync.Mutex
	voices []ttypes.Voice
}

// NewEspeakSynthesizer creates a synthesizer for the given binary.
func NewEspeakSynthesizer(cfg EspeakConfig) (*EspeakSynthesizer, error) {
	if cfg.Binary == "" {
		return nil, errors.New("espeak binary is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Runner == nil {
		cfg.Runner = runCommand
	}

	return &EspeakSynthesizer{
		binary:       cfg.Binary,
		defaultVoice: cfg.DefaultVoice,
		timeout:      cfg.Timeout,
		run:          cfg.Runner,
	}, nil
}

// Name implements Synthesizer.
func (s *EspeakSynthesizer) Name() string {
	return "espeak"
}

// Synthesize renders req to WAV.
func (s *EspeakSynthesizer) Synthesize(ctx context.Context, req ttypes.SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.run(ctx, s.binary, s.args(req), req.Text)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("synthesis timeout after %s: %w", s.timeout, ctx.Err())
		}
		return nil, err
	}

	if len(out) == 0 {
		return nil, errors.New("espeak produced no audio output")
	}
	if len(out) > maxEspeakOutput {
		return nil, fmt.Errorf("espeak output too large: %d bytes (max %d)", len(out), maxEspeakOutput)
	}
	return out, nil
}

// args builds the command line for req.
func (s *EspeakSynthesizer) args(req ttypes.SpeechRequest) []string {
	args := []string{"--stdout", "--stdin"}

	voice := req.VoiceID
	if voice == "" {
		voice = s.defaultVoice
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}

	args = append(args,
		"-s", strconv.Itoa(espeakWPM(req.Rate)),
		"-p", strconv.Itoa(espeakPitch(req.Pitch)),
	)
	return args
}

// espeakWPM maps a rate multiplier onto espeak words per minute.
func espeakWPM(rate float64) int {
	if rate <= 0 || math.IsNaN(rate) {
		rate = 1
	}
	wpm := int(math.Round(espeakBaseWPM * rate))
	return max(espeakMinWPM, min(espeakMaxWPM, wpm))
}

// espeakPitch maps a pitch multiplier onto espeak's 0-99 scale.
func espeakPitch(pitch float64) int {
	if pitch <= 0 || math.IsNaN(pitch) {
		pitch = 1
	}
	p := int(math.Round(espeakBasePitch * pitch))
	return max(0, min(99, p))
}

// Voices lists installed espeak voices. The result is cached after the
// first successful call.
func (s *EspeakSynthesizer) Voices(ctx context.Context) ([]ttypes.Voice, error) {
	s.mu.Lock()
	cached := s.voices
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.run(ctx, s.binary, []string{"--voices"}, "")
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	voices := parseEspeakVoices(out, s.defaultVoice)
	if len(voices) == 0 {
		return nil, errors.New("espeak reported no voices")
	}

	s.mu.Lock()
	s.voices = voices
	s.mu.Unlock()
	return voices, nil
}

// parseEspeakVoices reads the table printed by `espeak --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
func parseEspeakVoices(out []byte, defaultVoice string) []ttypes.Voice {
	var voices []ttypes.Voice
	seen := make(map[string]bool)

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}

		id := fields[1]
		if seen[id] {
			continue
		}
		seen[id] = true

		v := ttypes.Voice{
			ID:       id,
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: canonicalLanguage(id),
		}
		if _, gender, ok := strings.Cut(fields[2], "/"); ok {
			switch gender {
			case "M":
				v.Gender = "male"
			case "F":
				v.Gender = "female"
			}
		}
		if defaultVoice != "" && id == defaultVoice {
			v.Default = true
		}
		voices = append(voices, v)
	}

	if defaultVoice == "" {
		for i := range voices {
			if voices[i].ID == "en" || voices[i].ID == "en-us" {
				voices[i].Default = true
				break
			}
		}
	}
	return voices
}

// canonicalLanguage returns the BCP 47 form of an espeak language name,
// or the name unchanged when it does not parse.
func canonicalLanguage(name string) string {
	tag, err := language.Parse(name)
	if err != nil {
		return name
	}
	return tag.String()
}

// runCommand runs name with stdin pre-filled and returns stdout.
func runCommand(ctx context.Context, name string, args []string, stdin string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// interrupt first so espeak can release the audio device
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 100 * time.Millisecond

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}
