// Package audio plays 16-bit PCM through oto/v3 with pause, resume and stop,
// and decodes the WAV output of on-device synthesizers.
package audio
