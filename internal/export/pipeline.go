package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/voxfree/voxfree/internal/cache"
	"github.com/voxfree/voxfree/internal/tts"
	"github.com/voxfree/voxfree/internal/ttypes"
	"golang.org/x/time/rate"
)

// maxBackoff caps the jittered delay between passes.
const maxBackoff = 30 * time.Second

// ErrExhausted matches an *ExhaustedError.
var ErrExhausted = errors.New("every proxy failed for the whole retry budget")

// ExhaustedError reports the chunk that could not be fetched.
type ExhaustedError struct {
	Chunk     int
	Attempts  int
	ManualURL string
	Last      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("chunk %d: %d attempts failed, last: %v", e.Chunk, e.Attempts, e.Last)
}

// Is makes errors.Is(err, ErrExhausted) true.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Attempt records one fetch of one chunk through one proxy.
type Attempt struct {
	Chunk    int
	Proxy    int
	Pass     int
	Err      *AttemptError // nil on success
	Bytes    int
	Duration time.Duration
}

// Outcome returns "success" or the failure kind.
func (a Attempt) Outcome() string {
	if a.Err == nil {
		return "success"
	}
	return a.Err.Kind.String()
}

// ChunkReport summarizes how one chunk was obtained.
type ChunkReport struct {
	Index    int
	Chars    int
	Cached   bool
	Proxy    int // ordinal that served the chunk, -1 when cached or failed
	Bytes    int
	Attempts []Attempt
}

// Result is the outcome of an export. On failure it still describes the
// work done up to the failing chunk.
type Result struct {
	Audio        []byte
	Chunks       []ChunkReport
	Attempts     int
	Elapsed      time.Duration
	ManualURL    string
	ManualOpened bool
}

// Summary formats the result for humans.
func (r *Result) Summary() string {
	cached := 0
	for _, c := range r.Chunks {
		if c.Cached {
			cached++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d chunk", len(r.Chunks))
	if len(r.Chunks) != 1 {
		b.WriteString("s")
	}
	fmt.Fprintf(&b, ", %d attempt", r.Attempts)
	if r.Attempts != 1 {
		b.WriteString("s")
	}
	if cached > 0 {
		fmt.Fprintf(&b, " (%d cached)", cached)
	}
	fmt.Fprintf(&b, ", %s in %s", humanize.Bytes(uint64(len(r.Audio))), r.Elapsed.Round(10*time.Millisecond))
	return b.String()
}

// Pipeline exports text to audio through the remote endpoint, one chunk at
// a time, walking the proxy ladder for each chunk.
type Pipeline struct {
	config    tts.ExportConfig
	maxLength int
	chunkSize int

	target  Target
	proxies []Proxy
	fetcher Fetcher
	opener  Opener
	cache   ttypes.AudioCache
	limiter *rate.Limiter
	logger  *log.Logger

	onAttempt func(Attempt)

	wait   func(ctx context.Context, d time.Duration) error
	jitter func() float64
	now    func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// WithOpener replaces the browser opener used for the manual fallback.
func WithOpener(o Opener) Option {
	return func(p *Pipeline) {
		p.opener = o
	}
}

// WithCache caches fetched chunks by language and text.
func WithCache(c ttypes.AudioCache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithLimits sets the maximum input length and chunk size.
func WithLimits(limits tts.LimitsConfig) Option {
	return func(p *Pipeline) {
		p.maxLength = limits.MaxTextLength
		p.chunkSize = limits.ChunkSize
	}
}

// WithProgress is called after every attempt.
func WithProgress(fn func(Attempt)) Option {
	return func(p *Pipeline) {
		p.onAttempt = fn
	}
}

// New creates a pipeline. config is validated.
func New(config tts.ExportConfig, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	proxies, err := ParseProxies(config.Proxies)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:    config,
		maxLength: tts.DefaultMaxTextLength,
		chunkSize: 200,
		target: Target{
			Endpoint: config.Endpoint,
			Client:   config.Client,
			Encoding: config.Encoding,
		},
		proxies: proxies,
		opener:  BrowserOpener{},
		logger:  log.Default(),
		wait:    sleep,
		jitter:  rand.Float64,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = NewHTTPFetcher(nil, config.RequestTimeout)
	}
	if config.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}
	p.logger = p.logger.WithPrefix("export")

	return p, nil
}

// Export fetches audio for text in language lang. Input errors are
// returned before any request is made. When a chunk exhausts the ladder
// the remaining chunks are skipped, the manual fallback runs, and the
// error is a *tts.TTSError with code EXPORT_EXHAUSTED wrapping an
// *ExhaustedError.
func (p *Pipeline) Export(ctx context.Context, text, lang string) (*Result, error) {
	start := p.now()
	res := &Result{}

	if err := tts.ValidateText(text, p.maxLength); err != nil {
		return res, err
	}
	chunks, err := tts.Chunk(text, p.chunkSize)
	if err != nil {
		return res, tts.NewTTSError(tts.ErrorCodeInvalidInput, "cannot split text", err)
	}

	lang = LanguageCode(lang)
	p.logger.Debug("Export started", "chunks", len(chunks), "lang", lang, "proxies", len(p.proxies))

	var audio bytes.Buffer
	for i, chunk := range chunks {
		if i > 0 && p.config.ChunkDelay > 0 {
			if err := p.wait(ctx, p.config.ChunkDelay); err != nil {
				res.Elapsed = p.now().Sub(start)
				return res, canceled(err)
			}
		}

		data, report, err := p.fetchChunk(ctx, chunk, lang)
		res.Chunks = append(res.Chunks, report)
		res.Attempts += len(report.Attempts)

		if err != nil {
			res.Elapsed = p.now().Sub(start)
			var ex *ExhaustedError
			if errors.As(err, &ex) {
				return res, p.fallback(res, ex, len(chunks))
			}
			return res, canceled(err)
		}
		audio.Write(data)
	}

	res.Audio = audio.Bytes()
	res.Elapsed = p.now().Sub(start)
	p.logger.Info("Export finished", "summary", res.Summary())
	return res, nil
}

// fetchChunk walks the ladder for one chunk.
func (p *Pipeline) fetchChunk(ctx context.Context, chunk ttypes.TextChunk, lang string) ([]byte, ChunkReport, error) {
	report := ChunkReport{Index: chunk.Index, Chars: len([]rune(chunk.Content)), Proxy: -1}

	target, err := p.target.URL(chunk.Content, lang)
	if err != nil {
		return nil, report, err
	}

	key := cache.GenerateCacheKey("export", lang, chunk.Content)
	if p.cache != nil {
		if data, ok := p.cache.Get(key); ok {
			report.Cached = true
			report.Bytes = len(data)
			p.logger.Debug("Chunk served from cache", "chunk", chunk.Index)
			return data, report, nil
		}
	}

	ladder, err := NewLadder(len(p.proxies), p.config.RetryBudget)
	if err != nil {
		return nil, report, err
	}

	var last error
	for !ladder.Done() {
		switch ladder.State() {
		case Advancing:
			ladder.Next()
		case Retrying:
			_, pass := ladder.Position()
			if err := p.wait(ctx, p.backoff(pass)); err != nil {
				return nil, report, err
			}
			ladder.Next()
		}

		// the token is taken before the attempt timeout starts
		if err := p.throttle(ctx); err != nil {
			return nil, report, err
		}

		proxy, pass := ladder.Position()
		attempt := Attempt{Chunk: chunk.Index, Proxy: proxy, Pass: pass}

		began := p.now()
		data, aerr := p.attempt(ctx, p.proxies[proxy].Wrap(target))
		attempt.Duration = p.now().Sub(began)

		if ctx.Err() != nil {
			return nil, report, ctx.Err()
		}

		if aerr == nil {
			ladder.Succeed()
			attempt.Bytes = len(data)
			p.record(&report, attempt)
			report.Proxy = proxy
			report.Bytes = len(data)
			if p.cache != nil {
				if err := p.cache.Put(key, data); err != nil {
					p.logger.Debug("Caching chunk failed", "err", err)
				}
			}
			return data, report, nil
		}

		attempt.Err = aerr
		last = aerr
		p.record(&report, attempt)
		next := ladder.Fail()
		p.logger.Debug("Attempt failed",
			"chunk", chunk.Index, "proxy", p.proxies[proxy].Host(), "pass", pass,
			"outcome", aerr.Kind, "err", aerr, "next", next)
	}

	return nil, report, &ExhaustedError{
		Chunk:     chunk.Index,
		Attempts:  ladder.Attempts(),
		ManualURL: target,
		Last:      last,
	}
}

// throttle waits for the request rate limit under the export context.
func (p *Pipeline) throttle(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the next token comes after the caller's deadline
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// attempt runs one fetch under the per-request timeout and classifies any
// failure.
func (p *Pipeline) attempt(ctx context.Context, url string) ([]byte, *AttemptError) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	data, err := p.fetcher.Fetch(attemptCtx, url)
	if err != nil {
		var aerr *AttemptError
		switch {
		case errors.As(err, &aerr):
			return nil, aerr
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			return nil, &AttemptError{Kind: FailTimeout, Err: fmt.Errorf("no response within %s", p.config.RequestTimeout)}
		default:
			return nil, &AttemptError{Kind: FailNetwork, Err: err}
		}
	}
	if len(data) == 0 {
		return nil, &AttemptError{Kind: FailEmpty}
	}
	return data, nil
}

func (p *Pipeline) record(report *ChunkReport, a Attempt) {
	report.Attempts = append(report.Attempts, a)
	if p.onAttempt != nil {
		p.onAttempt(a)
	}
}

// backoff returns the pause before retry pass pass (1-based).
func (p *Pipeline) backoff(pass int) time.Duration {
	base := p.config.RetryDelay
	if !p.config.Jitter || base <= 0 {
		return base
	}

	d := float64(base) * math.Pow(2, float64(pass-1))
	d *= 0.5 + p.jitter()
	return min(time.Duration(d), maxBackoff)
}

// fallback hands the unproxied URL to the user and builds the terminal error.
func (p *Pipeline) fallback(res *Result, ex *ExhaustedError, total int) error {
	res.ManualURL = ex.ManualURL

	if p.config.ManualFallback {
		// the raw URL carries the text to the endpoint without a proxy
		p.logger.Warn("Export exhausted; opening the unproxied request for manual save",
			"chunk", ex.Chunk, "attempts", ex.Attempts)
		if err := p.opener.Open(ex.ManualURL); err != nil {
			p.logger.Warn("Could not open browser", "err", err)
		} else {
			res.ManualOpened = true
		}
	} else {
		p.logger.Warn("Export exhausted; manual fallback disabled",
			"chunk", ex.Chunk, "attempts", ex.Attempts)
	}

	return tts.NewTTSError(tts.ErrorCodeExportExhausted,
		fmt.Sprintf("chunk %d of %d could not be downloaded", ex.Chunk+1, total), ex).
		WithContext("manual_url", ex.ManualURL).
		WithContext("manual_opened", res.ManualOpened)
}

func canceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return tts.NewTTSError(tts.ErrorCodeCanceled, "export canceled", err)
	}
	return err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
