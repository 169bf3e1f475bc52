package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/voxfree/voxfree/internal/tts"
	"github.com/voxfree/voxfree/internal/ttypes"
)

var (
	voiceID string
	rate    float64
	pitch   float64
	volume  float64

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT]",
		Short: "Speak text with the on-device voice",
		Long: paragraph(fmt.Sprintf("\n%s text read from the arguments, a file, the clipboard or stdin. Press ctrl+c to stop.",
			keyword("Speak"))),
		Example: paragraph("voxfree speak \"Hello there\"\nvoxfree speak --file notes.md --rate 1.25\necho hi | voxfree speak --voice en-gb"),
		RunE:    runSpeak,
	}
)

func addSpeechFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&voiceID, "voice", "v", "", "voice id (see voxfree voices)")
	cmd.Flags().Float64VarP(&rate, "rate", "r", 1.0, "speaking rate, 0.5 to 2.0")
	cmd.Flags().Float64VarP(&pitch, "pitch", "p", 1.0, "pitch, 0.5 to 2.0")
	cmd.Flags().Float64Var(&volume, "volume", 1.0, "volume, 0.0 to 1.0")
}

// speechSettings applies the flags the user set on top of the configuration.
func speechSettings(cmd *cobra.Command) tts.SpeechConfig {
	s := cfg.Speech
	if cmd.Flags().Changed("voice") {
		s.Voice = voiceID
	}
	if cmd.Flags().Changed("rate") {
		s.Rate = rate
	}
	if cmd.Flags().Changed("pitch") {
		s.Pitch = pitch
	}
	if cmd.Flags().Changed("volume") {
		s.Volume = volume
	}
	return s
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text, err := readInput(args)
	if err != nil {
		return reportError(cmd, err)
	}
	speech := speechSettings(cmd)

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close() //nolint:errcheck
	}

	controller, err := newController(cfg, store)
	if err != nil {
		return reportError(cmd, err)
	}
	defer controller.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	events, unsubscribe := controller.Subscribe(16)
	defer unsubscribe()
	go func() {
		for ev := range events {
			log.Debug("Utterance event", "id", ev.UtteranceID, "event", ev.Type, "err", ev.Err)
		}
	}()

	u, err := controller.Speak(ctx, ttypes.SpeechRequest{
		Text:    text,
		VoiceID: speech.Voice,
		Rate:    speech.Rate,
		Pitch:   speech.Pitch,
		Volume:  speech.Volume,
	})
	if err != nil {
		return reportError(cmd, err)
	}

	err = u.Wait(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		_ = controller.Cancel()
		fmt.Fprintln(os.Stderr, subtle("stopped"))
		return nil
	}
	if err != nil {
		return reportError(cmd, err)
	}
	return nil
}

// reportError prints the user-facing notification for err and keeps cobra
// from printing it a second time.
func reportError(cmd *cobra.Command, err error) error {
	n := tts.Notify(err)
	if n.Message != "" {
		fmt.Fprintf(os.Stderr, "%s: %s\n", failure(n.Title), n.Message)
	} else {
		fmt.Fprintln(os.Stderr, failure(n.Title))
	}
	log.Error(n.Title, "kind", n.Kind, "err", err)
	cmd.SilenceErrors = true
	return err
}

func init() {
	addInputFlags(speakCmd)
	addSpeechFlags(speakCmd)
}
