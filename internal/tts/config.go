package tts

import (
	"fmt"
	"strings"
	"time"

	"github.com/voxfree/voxfree/internal/ttypes"
)

// Config contains all configuration options.
type Config struct {
	Debug bool `yaml:"debug" env:"VOXFREE_DEBUG" envDefault:"false"`

	Speech SpeechConfig `yaml:"speech"`
	Limits LimitsConfig `yaml:"limits"`
	Export ExportConfig `yaml:"export"`
	Cache  CacheConfig  `yaml:"cache"`
}

// SpeechConfig holds the defaults used for on-device speech.
type SpeechConfig struct {
	Engine   string  `yaml:"engine" env:"VOXFREE_SPEECH_ENGINE" envDefault:"espeak"`
	Binary   string  `yaml:"binary" env:"VOXFREE_SPEECH_BINARY"`
	Voice    string  `yaml:"voice" env:"VOXFREE_SPEECH_VOICE"`
	Language string  `yaml:"language" env:"VOXFREE_SPEECH_LANGUAGE" envDefault:"en"`
	Rate     float64 `yaml:"rate" env:"VOXFREE_SPEECH_RATE" envDefault:"1.0"`
	Pitch    float64 `yaml:"pitch" env:"VOXFREE_SPEECH_PITCH" envDefault:"1.0"`
	Volume   float64 `yaml:"volume" env:"VOXFREE_SPEECH_VOLUME" envDefault:"1.0"`

	SampleRate int           `yaml:"sample_rate" env:"VOXFREE_SPEECH_SAMPLE_RATE" envDefault:"22050"`
	Timeout    time.Duration `yaml:"timeout" env:"VOXFREE_SPEECH_TIMEOUT" envDefault:"30s"`
}

// LimitsConfig bounds the input accepted by speak and export.
type LimitsConfig struct {
	MaxTextLength int `yaml:"max_text_length" env:"VOXFREE_MAX_TEXT_LENGTH" envDefault:"5000"`
	ChunkSize     int `yaml:"chunk_size" env:"VOXFREE_CHUNK_SIZE" envDefault:"200"`
}

// ExportConfig controls the remote export pipeline.
type ExportConfig struct {
	Endpoint string `yaml:"endpoint" env:"VOXFREE_EXPORT_ENDPOINT"`
	Client   string `yaml:"client" env:"VOXFREE_EXPORT_CLIENT" envDefault:"tw-ob"`
	Encoding string `yaml:"encoding" env:"VOXFREE_EXPORT_ENCODING" envDefault:"UTF-8"`

	// Proxies are URL templates; {url} is replaced with the escaped target URL.
	Proxies []string `yaml:"proxies"`

	RetryBudget       int           `yaml:"retry_budget" env:"VOXFREE_EXPORT_RETRY_BUDGET" envDefault:"3"`
	RetryDelay        time.Duration `yaml:"retry_delay" env:"VOXFREE_EXPORT_RETRY_DELAY" envDefault:"1s"`
	Jitter            bool          `yaml:"jitter" env:"VOXFREE_EXPORT_JITTER" envDefault:"false"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"VOXFREE_EXPORT_REQUEST_TIMEOUT" envDefault:"10s"`
	ChunkDelay        time.Duration `yaml:"chunk_delay" env:"VOXFREE_EXPORT_CHUNK_DELAY" envDefault:"500ms"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"VOXFREE_EXPORT_RPM" envDefault:"0"`

	OutputDir      string `yaml:"output_dir" env:"VOXFREE_EXPORT_OUTPUT_DIR" envDefault:"."`
	Extension      string `yaml:"extension" env:"VOXFREE_EXPORT_EXTENSION" envDefault:"mp3"`
	ManualFallback bool   `yaml:"manual_fallback" env:"VOXFREE_EXPORT_MANUAL_FALLBACK" envDefault:"true"`
}

// CacheConfig controls the chunk-audio cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" env:"VOXFREE_CACHE_ENABLED" envDefault:"true"`
	Dir     string `yaml:"dir" env:"VOXFREE_CACHE_DIR"`
	// MaxSize is the disk cache size in megabytes
	MaxSize int           `yaml:"max_size" env:"VOXFREE_CACHE_MAX_SIZE" envDefault:"100"`
	TTL     time.Duration `yaml:"ttl" env:"VOXFREE_CACHE_TTL" envDefault:"168h"`
}

// DefaultEndpoint is the public translate TTS endpoint.
const DefaultEndpoint = "https://translate.google.com/translate_tts"

// DefaultProxies are the CORS relays tried, in order, before each retry pass.
var DefaultProxies = []string{
	"https://corsproxy.io/?{url}",
	"https://api.allorigins.win/raw?url={url}",
	"https://api.codetabs.com/v1/proxy?quest={url}",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Speech: DefaultSpeechConfig(),
		Limits: LimitsConfig{
			MaxTextLength: DefaultMaxTextLength,
			ChunkSize:     200,
		},
		Export: DefaultExportConfig(),
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 100,
			TTL:     7 * 24 * time.Hour,
		},
	}
}

// DefaultSpeechConfig returns default speech settings.
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		Engine:     string(ttypes.EngineEspeak),
		Language:   "en",
		Rate:       1.0,
		Pitch:      1.0,
		Volume:     1.0,
		SampleRate: 22050,
		Timeout:    30 * time.Second,
	}
}

// DefaultExportConfig returns default export settings.
func DefaultExportConfig() ExportConfig {
	proxies := make([]string, len(DefaultProxies))
	copy(proxies, DefaultProxies)

	return ExportConfig{
		Endpoint:       DefaultEndpoint,
		Client:         "tw-ob",
		Encoding:       "UTF-8",
		Proxies:        proxies,
		RetryBudget:    3,
		RetryDelay:     time.Second,
		RequestTimeout: 10 * time.Second,
		ChunkDelay:     500 * time.Millisecond,
		OutputDir:      ".",
		Extension:      "mp3",
		ManualFallback: true,
	}
}

// Validate checks if the configuration is valid. Out-of-range speech
// parameters are clamped rather than rejected.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Speech.Engine) {
	case string(ttypes.EngineEspeak), string(ttypes.EngineMock):
		c.Speech.Engine = strings.ToLower(c.Speech.Engine)
	case "":
		return ErrNoEngineConfigured
	default:
		return fmt.Errorf("%w: %q (must be one of espeak, mock)", ErrInvalidEngine, c.Speech.Engine)
	}

	c.Speech.Rate = ClampRate(c.Speech.Rate)
	c.Speech.Pitch = ClampPitch(c.Speech.Pitch)
	c.Speech.Volume = ClampVolume(c.Speech.Volume)

	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	sampleRateValid := false
	for _, sr := range validSampleRates {
		if c.Speech.SampleRate == sr {
			sampleRateValid = true
			break
		}
	}
	if !sampleRateValid {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.Speech.SampleRate, validSampleRates)
	}

	if c.Limits.MaxTextLength <= 0 {
		return fmt.Errorf("limits.max_text_length must be positive, got %d", c.Limits.MaxTextLength)
	}
	if c.Limits.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.Limits.ChunkSize)
	}

	return c.Export.Validate()
}

// Validate checks the export section.
func (e *ExportConfig) Validate() error {
	if e.Endpoint == "" {
		return fmt.Errorf("export.endpoint must not be empty")
	}
	if len(e.Proxies) == 0 {
		return fmt.Errorf("export.proxies must list at least one proxy")
	}
	for i, p := range e.Proxies {
		if !strings.Contains(p, "{url}") {
			return fmt.Errorf("export.proxies[%d] %q has no {url} placeholder", i, p)
		}
	}
	if e.RetryBudget < 1 {
		return fmt.Errorf("export.retry_budget must be at least 1, got %d", e.RetryBudget)
	}
	if e.RetryDelay < 0 || e.ChunkDelay < 0 {
		return fmt.Errorf("export delays must not be negative")
	}
	if e.RequestTimeout <= 0 {
		return fmt.Errorf("export.request_timeout must be positive, got %s", e.RequestTimeout)
	}
	if e.RequestsPerMinute < 0 {
		return fmt.Errorf("export.requests_per_minute must not be negative, got %d", e.RequestsPerMinute)
	}
	e.Extension = strings.TrimPrefix(e.Extension, ".")
	if e.Extension == "" {
		e.Extension = "mp3"
	}
	return nil
}

// MaxAttemptsPerChunk is the number of fetches made for one chunk before
// the export is declared exhausted.
func (e ExportConfig) MaxAttemptsPerChunk() int {
	return len(e.Proxies) * e.RetryBudget
}
