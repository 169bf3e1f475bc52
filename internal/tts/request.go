package tts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/voxfree/voxfree/internal/ttypes"
)

// DefaultMaxTextLength is the default upper bound on input text, in characters.
const DefaultMaxTextLength = 5000

// ValidateText rejects empty and over-length input before any engine or
// network activity. Length is counted in characters after trimming.
func ValidateText(text string, maxLength int) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return NewTTSError(ErrorCodeInvalidInput, "nothing to speak", ErrEmptyText)
	}

	if maxLength > 0 {
		if n := utf8.RuneCountInString(trimmed); n > maxLength {
			return NewTTSError(ErrorCodeTextTooLong,
				fmt.Sprintf("text is %d characters (max %d)", n, maxLength),
				ErrTextTooLong).
				WithContext("length", n).
				WithContext("max", maxLength)
		}
	}

	return nil
}

// NewSpeechRequest validates text and builds a request with clamped parameters.
func NewSpeechRequest(text, voiceID string, rate, pitch, volume float64, maxLength int) (ttypes.SpeechRequest, error) {
	if err := ValidateText(text, maxLength); err != nil {
		return ttypes.SpeechRequest{}, err
	}

	return ttypes.SpeechRequest{
		Text:    strings.TrimSpace(text),
		VoiceID: voiceID,
		Rate:    ClampRate(rate),
		Pitch:   ClampPitch(pitch),
		Volume:  ClampVolume(volume),
	}, nil
}

// ClampRate bounds a rate multiplier to [0.5, 2.0].
func ClampRate(v float64) float64 {
	return clamp(v, ttypes.MinRate, ttypes.MaxRate)
}

// ClampPitch bounds a pitch multiplier to [0.5, 2.0].
func ClampPitch(v float64) float64 {
	return clamp(v, ttypes.MinPitch, ttypes.MaxPitch)
}

// ClampVolume bounds a volume to [0.0, 1.0].
func ClampVolume(v float64) float64 {
	return clamp(v, ttypes.MinVolume, ttypes.MaxVolume)
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
