// Package export downloads audio for text from a remote text-to-speech
// endpoint. Text is chunked and each chunk is fetched through an ordered
// list of relay proxies, one pass after another, until the retry budget
// runs out. An exhausted export hands the unproxied request URL to the
// user so the audio can be saved by hand.
package export
