package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a WAV file")

// WAV is decoded PCM audio.
type WAV struct {
	SampleRate int
	Channels   int
	BitDepth   int
	PCM        []byte
}

// Duration returns the play time of the samples.
func (w WAV) Duration() time.Duration {
	return Duration(len(w.PCM), w.SampleRate, w.Channels)
}

// DecodeWAV extracts the format and PCM samples from a RIFF/WAVE file.
// espeak writes placeholder sizes when streaming to stdout, so a data
// chunk that claims more bytes than are present is read to the end.
func DecodeWAV(data []byte) (WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAV{}, ErrNotWAV
	}

	var w WAV
	haveFormat := false
	pos := 12

	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return WAV{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return WAV{}, fmt.Errorf("unsupported WAV encoding %d (only PCM)", format)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			w.BitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFormat = true

		case "data":
			if !haveFormat {
				return WAV{}, fmt.Errorf("%w: data before fmt chunk", ErrNotWAV)
			}
			end := body + size
			if size == 0 || end > len(data) || end < body {
				end = len(data)
			}
			w.PCM = data[body:end]
			// drop a trailing partial sample frame
			if frame := w.Channels * w.BitDepth / 8; frame > 0 {
				w.PCM = w.PCM[:len(w.PCM)-len(w.PCM)%frame]
			}
			return w, nil
		}

		if size < 0 || body+size > len(data) {
			break
		}
		// chunks are word aligned
		pos = body + size + size%2
	}

	return WAV{}, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// EncodeWAV wraps 16-bit PCM in a RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitDepth = 16
	blockAlign := channels * bitDepth / 8

	out := make([]byte, 44+len(pcm))
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], bitDepth)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}
