package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/voxfree/voxfree/internal/export"
	"github.com/voxfree/voxfree/internal/tts"
)

var (
	language    string
	outputDir   string
	toStdout    bool
	noFallback  bool
	retryBudget int
	proxies     []string
	jitter      bool
	verbose     bool

	exportCmd = &cobra.Command{
		Use:   "export [TEXT]",
		Short: "Export text to an audio file through the remote endpoint",
		Long: paragraph(fmt.Sprintf("\n%s text to audio. Text is split into chunks and each chunk is fetched through "+
			"the configured relay proxies, in order, for up to retry_budget passes. When every attempt fails "+
			"the unproxied request is opened in your browser so you can save the audio by hand.",
			keyword("Export"))),
		Example: paragraph("voxfree export \"Hello there\"\nvoxfree export --file chapter.md --lang de -o ~/audio\nvoxfree export --stdout \"hi\" > hi.mp3"),
		RunE:    runExport,
	}
)

// exportSettings applies the flags the user set on top of the configuration.
func exportSettings(cmd *cobra.Command) tts.Config {
	c := cfg
	if cmd.Flags().Changed("output-dir") {
		c.Export.OutputDir = outputDir
	}
	if cmd.Flags().Changed("no-fallback") {
		c.Export.ManualFallback = !noFallback
	}
	if cmd.Flags().Changed("retries") {
		c.Export.RetryBudget = retryBudget
	}
	if cmd.Flags().Changed("proxy") {
		c.Export.Proxies = proxies
	}
	if cmd.Flags().Changed("jitter") {
		c.Export.Jitter = jitter
	}
	if cmd.Flags().Changed("lang") {
		c.Speech.Language = language
	}
	return c
}

func runExport(cmd *cobra.Command, args []string) error {
	text, err := readInput(args)
	if err != nil {
		return reportError(cmd, err)
	}
	c := exportSettings(cmd)

	store, err := openCache(c)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close() //nolint:errcheck
	}

	hosts, err := export.ParseProxies(c.Export.Proxies)
	if err != nil {
		return err
	}
	progress := func(a export.Attempt) {
		log.Debug("Export attempt", "chunk", a.Chunk, "proxy", a.Proxy, "pass", a.Pass, "outcome", a.Outcome(), "duration", a.Duration)
		if !verbose {
			return
		}
		line := fmt.Sprintf("chunk %d via %s, pass %d: %s", a.Chunk+1, hosts[a.Proxy].Host(), a.Pass+1, a.Outcome())
		if a.Err == nil {
			line += " (" + humanize.Bytes(uint64(a.Bytes)) + ")"
		}
		fmt.Fprintln(os.Stderr, subtle(line))
	}

	pipeline, err := newPipeline(c, store, progress)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := pipeline.Export(ctx, text, c.Speech.Language)
	if err != nil {
		return reportError(cmd, err)
	}

	if toStdout {
		_, err := os.Stdout.Write(res.Audio)
		return err
	}

	path, err := newSaver(c).Save(res.Audio)
	if err != nil {
		return reportError(cmd, tts.NewTTSError(tts.ErrorCodeSaveFailed, "could not save the audio", err))
	}

	fmt.Fprintf(os.Stderr, "%s %s %s\n", keyword("Saved"), path, subtle("("+res.Summary()+")"))
	return nil
}

func init() {
	addInputFlags(exportCmd)
	exportCmd.Flags().StringVarP(&language, "lang", "l", "", "language of the text, e.g. en or pt-BR (default from config)")
	exportCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for the audio file (default from config)")
	exportCmd.Flags().BoolVar(&toStdout, "stdout", false, "write the audio to stdout instead of a file")
	exportCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "do not open the unproxied request in a browser when every proxy fails")
	exportCmd.Flags().IntVar(&retryBudget, "retries", 0, "passes through the proxy list before giving up (default from config)")
	exportCmd.Flags().StringSliceVar(&proxies, "proxy", nil, "relay proxy template containing {url}; repeat to set the order")
	exportCmd.Flags().BoolVar(&jitter, "jitter", false, "exponential backoff with jitter between passes")
	exportCmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "print every attempt")
}
