// Package main provides the entry point for the VoxFree CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/voxfree/voxfree/internal/export"
	"github.com/voxfree/voxfree/internal/tts"
	"github.com/voxfree/voxfree/ui"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	engineName string
	debug      bool

	// cfg is loaded in PersistentPreRunE and read by every command.
	cfg tts.Config

	rootCmd = &cobra.Command{
		Use:   "voxfree [TEXT]",
		Short: "Speak text aloud, or export it as audio",
		Long: paragraph(
			fmt.Sprintf("\nSpeak text with an on-device voice, or %s it to an audio file through a ladder of relay proxies.", keyword("export")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	loaded, err := tts.LoadConfigFromViper()
	if err != nil {
		return err
	}
	if debug || loaded.Debug {
		loaded.Debug = true
		log.SetLevel(log.DebugLevel)
	}

	// the --engine flag wins over the configured engine
	kind, err := tts.ValidateEngineSelection(engineName, loaded)
	if err != nil {
		return err
	}
	loaded.Speech.Engine = string(kind)

	cfg = loaded
	log.Debug("Configuration loaded", "file", viper.ConfigFileUsed(), "engine", cfg.Speech.Engine, "cmd", cmd.Name())
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	// text given on the command line, or piped in, is spoken directly
	piped, err := stdinIsPipe()
	if err != nil {
		return err
	}
	if len(args) > 0 || piped || inputFile != "" || fromClipboard {
		return runSpeak(cmd, args)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("no text given and stdout is not a terminal; try voxfree speak TEXT")
	}
	return runTUI()
}

func runTUI() error {
	// Read environment to get UI settings
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.Apply(cfg)

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close() //nolint:errcheck
	}

	controller, err := newController(cfg, store)
	if err != nil {
		return err
	}
	defer controller.Close() //nolint:errcheck

	progress := make(chan export.Attempt, 64)
	pipeline, err := newPipeline(cfg, store, func(a export.Attempt) {
		select {
		case progress <- a:
		default:
		}
	})
	if err != nil {
		return err
	}

	p := ui.NewProgram(uiCfg, ui.Deps{
		Controller: controller,
		Exporter:   pipeline,
		Saver:      newSaver(cfg),
		Progress:   progress,
	})
	ui.WatchConfig(p, tts.LoadConfigFromViper)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&engineName, "engine", "E", "", "voice engine (espeak or mock)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output to the log file")
	addInputFlags(rootCmd)
	addSpeechFlags(rootCmd)

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	tts.SetDefaults()

	rootCmd.AddCommand(speakCmd, exportCmd, voicesCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "voxfree")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "voxfree")}, dirs...)
	}

	if c := os.Getenv("VOXFREE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("voxfree")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("voxfree")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "voxfree.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
