package tts

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads configuration from Viper.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("debug") {
		cfg.Debug = viper.GetBool("debug")
	}

	cfg.Speech = loadSpeechConfig()
	cfg.Limits = loadLimitsConfig()
	cfg.Export = loadExportConfig()
	cfg.Cache = loadCacheConfig()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadSpeechConfig() SpeechConfig {
	cfg := DefaultSpeechConfig()

	if viper.IsSet("speech.engine") {
		cfg.Engine = viper.GetString("speech.engine")
	}
	if viper.IsSet("speech.binary") {
		cfg.Binary = viper.GetString("speech.binary")
	}
	if viper.IsSet("speech.voice") {
		cfg.Voice = viper.GetString("speech.voice")
	}
	if viper.IsSet("speech.language") {
		cfg.Language = viper.GetString("speech.language")
	}
	if viper.IsSet("speech.rate") {
		cfg.Rate = viper.GetFloat64("speech.rate")
	}
	if viper.IsSet("speech.pitch") {
		cfg.Pitch = viper.GetFloat64("speech.pitch")
	}
	if viper.IsSet("speech.volume") {
		cfg.Volume = viper.GetFloat64("speech.volume")
	}
	if viper.IsSet("speech.sample_rate") {
		cfg.SampleRate = viper.GetInt("speech.sample_rate")
	}
	if d, ok := durationSetting("speech.timeout"); ok {
		cfg.Timeout = d
	}

	return cfg
}

func loadLimitsConfig() LimitsConfig {
	cfg := DefaultConfig().Limits

	if viper.IsSet("limits.max_text_length") {
		cfg.MaxTextLength = viper.GetInt("limits.max_text_length")
	}
	if viper.IsSet("limits.chunk_size") {
		cfg.ChunkSize = viper.GetInt("limits.chunk_size")
	}

	return cfg
}

func loadExportConfig() ExportConfig {
	cfg := DefaultExportConfig()

	if viper.IsSet("export.endpoint") {
		cfg.Endpoint = viper.GetString("export.endpoint")
	}
	if viper.IsSet("export.client") {
		cfg.Client = viper.GetString("export.client")
	}
	if viper.IsSet("export.encoding") {
		cfg.Encoding = viper.GetString("export.encoding")
	}
	if viper.IsSet("export.proxies") {
		cfg.Proxies = viper.GetStringSlice("export.proxies")
	}
	if viper.IsSet("export.retry_budget") {
		cfg.RetryBudget = viper.GetInt("export.retry_budget")
	}
	if d, ok := durationSetting("export.retry_delay"); ok {
		cfg.RetryDelay = d
	}
	if viper.IsSet("export.jitter") {
		cfg.Jitter = viper.GetBool("export.jitter")
	}
	if d, ok := durationSetting("export.request_timeout"); ok {
		cfg.RequestTimeout = d
	}
	if d, ok := durationSetting("export.chunk_delay"); ok {
		cfg.ChunkDelay = d
	}
	if viper.IsSet("export.requests_per_minute") {
		cfg.RequestsPerMinute = viper.GetInt("export.requests_per_minute")
	}
	if viper.IsSet("export.output_dir") {
		cfg.OutputDir = viper.GetString("export.output_dir")
	}
	if viper.IsSet("export.extension") {
		cfg.Extension = viper.GetString("export.extension")
	}
	if viper.IsSet("export.manual_fallback") {
		cfg.ManualFallback = viper.GetBool("export.manual_fallback")
	}

	return cfg
}

func loadCacheConfig() CacheConfig {
	cfg := DefaultConfig().Cache

	if viper.IsSet("cache.enabled") {
		cfg.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.dir") {
		cfg.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.max_size") {
		cfg.MaxSize = viper.GetInt("cache.max_size")
	}
	if d, ok := durationSetting("cache.ttl"); ok {
		cfg.TTL = d
	}

	return cfg
}

// durationSetting reads a duration written either as a Go duration string
// ("750ms") or as a bare number of milliseconds.
func durationSetting(key string) (time.Duration, bool) {
	if !viper.IsSet(key) {
		return 0, false
	}
	raw := viper.GetString(key)
	if d, err := time.ParseDuration(raw); err == nil {
		return d, true
	}
	if ms := viper.GetInt64(key); ms > 0 || raw == "0" {
		return time.Duration(ms) * time.Millisecond, true
	}
	return 0, false
}

// SetDefaults sets default values in Viper.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("debug", defaults.Debug)

	viper.SetDefault("speech.engine", defaults.Speech.Engine)
	viper.SetDefault("speech.language", defaults.Speech.Language)
	viper.SetDefault("speech.rate", defaults.Speech.Rate)
	viper.SetDefault("speech.pitch", defaults.Speech.Pitch)
	viper.SetDefault("speech.volume", defaults.Speech.Volume)
	viper.SetDefault("speech.sample_rate", defaults.Speech.SampleRate)
	viper.SetDefault("speech.timeout", defaults.Speech.Timeout.String())

	viper.SetDefault("limits.max_text_length", defaults.Limits.MaxTextLength)
	viper.SetDefault("limits.chunk_size", defaults.Limits.ChunkSize)

	viper.SetDefault("export.endpoint", defaults.Export.Endpoint)
	viper.SetDefault("export.client", defaults.Export.Client)
	viper.SetDefault("export.encoding", defaults.Export.Encoding)
	viper.SetDefault("export.proxies", defaults.Export.Proxies)
	viper.SetDefault("export.retry_budget", defaults.Export.RetryBudget)
	viper.SetDefault("export.retry_delay", defaults.Export.RetryDelay.String())
	viper.SetDefault("export.jitter", defaults.Export.Jitter)
	viper.SetDefault("export.request_timeout", defaults.Export.RequestTimeout.String())
	viper.SetDefault("export.chunk_delay", defaults.Export.ChunkDelay.String())
	viper.SetDefault("export.requests_per_minute", defaults.Export.RequestsPerMinute)
	viper.SetDefault("export.output_dir", defaults.Export.OutputDir)
	viper.SetDefault("export.extension", defaults.Export.Extension)
	viper.SetDefault("export.manual_fallback", defaults.Export.ManualFallback)

	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.max_size", defaults.Cache.MaxSize)
	viper.SetDefault("cache.ttl", defaults.Cache.TTL.String())
}
