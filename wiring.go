package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/voxfree/voxfree/internal/cache"
	"github.com/voxfree/voxfree/internal/export"
	"github.com/voxfree/voxfree/internal/tts"
	"github.com/voxfree/voxfree/internal/tts/engines"
	"github.com/voxfree/voxfree/internal/ttypes"
)

// openCache returns nil when caching is disabled.
func openCache(c tts.Config) (*cache.Manager, error) {
	if !c.Cache.Enabled {
		return nil, nil
	}

	cc := cache.DefaultConfig()
	cc.Dir = c.Cache.Dir
	cc.DiskCapacity = int64(c.Cache.MaxSize) * 1024 * 1024
	cc.TTL = c.Cache.TTL

	store, err := cache.NewManager(cc, log.Default())
	if err != nil {
		return nil, fmt.Errorf("unable to open cache: %w", err)
	}
	return store, nil
}

// newEngine checks that the configured engine can run here and builds it.
// store may be nil.
func newEngine(c tts.Config, store *cache.Manager) (*engines.PlaybackEngine, error) {
	kind := ttypes.EngineType(c.Speech.Engine)

	res := tts.ValidateEngine(kind, c)
	if !res.Available {
		if res.Guidance != "" {
			return nil, fmt.Errorf("%w\n\n%s", res.Error, res.Guidance)
		}
		return nil, res.Error
	}

	o := engines.Options{
		Binary:       res.Details["binary_path"],
		DefaultVoice: c.Speech.Voice,
		Timeout:      c.Speech.Timeout,
		SampleRate:   c.Speech.SampleRate,
		Logger:       log.Default(),
	}
	if store != nil {
		o.Cache = store
	}

	log.Debug("Creating voice engine", "engine", kind, "details", res.Details)
	return engines.New(kind, o)
}

// newController builds the engine and wraps it in an utterance controller.
func newController(c tts.Config, store *cache.Manager) (*tts.Controller, error) {
	engine, err := newEngine(c, store)
	if err != nil {
		return nil, err
	}
	controller, err := tts.NewController(engine,
		tts.WithLogger(log.Default()),
		tts.WithMaxTextLength(c.Limits.MaxTextLength))
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return controller, nil
}

// newPipeline builds the export pipeline. store and progress may be nil.
func newPipeline(c tts.Config, store *cache.Manager, progress func(export.Attempt)) (*export.Pipeline, error) {
	opts := []export.Option{
		export.WithLimits(c.Limits),
		export.WithLogger(log.Default()),
	}
	if store != nil {
		opts = append(opts, export.WithCache(store))
	}
	if progress != nil {
		opts = append(opts, export.WithProgress(progress))
	}
	return export.New(c.Export, opts...)
}

func newSaver(c tts.Config) *export.Saver {
	return export.NewSaver(c.Export.OutputDir, c.Export.Extension)
}
