// Package engines contains the voice engines behind the utterance controller.
// Each engine pairs a Synthesizer (espeak-ng, or a silent mock) with an
// audio player and implements ttypes.VoiceEngine.
package engines
