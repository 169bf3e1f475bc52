package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

const defaultConfig = `# log debug output to the log file
debug: false

speech:
  # voice engine: espeak (espeak-ng or espeak) or mock
  engine: "espeak"
  # binary: "/usr/bin/espeak-ng"
  # voice id as listed by voxfree voices (empty uses the engine default)
  voice: ""
  # language hint for export and voice filtering
  language: "en"
  # rate and pitch multipliers (0.5 to 2.0), volume (0.0 to 1.0)
  rate: 1.0
  pitch: 1.0
  volume: 1.0
  sample_rate: 22050
  timeout: "30s"

limits:
  # longest text accepted by speak and export
  max_text_length: 5000
  # export chunk size in characters
  chunk_size: 200

export:
  endpoint: "https://translate.google.com/translate_tts"
  client: "tw-ob"
  encoding: "UTF-8"
  # relay proxies, tried in order; {url} is replaced with the escaped target
  proxies:
    - "https://corsproxy.io/?{url}"
    - "https://api.allorigins.win/raw?url={url}"
    - "https://api.codetabs.com/v1/proxy?quest={url}"
  # passes through the whole proxy list before giving up
  retry_budget: 3
  # pause before each new pass
  retry_delay: "1s"
  # exponential backoff with jitter instead of a flat retry_delay
  jitter: false
  request_timeout: "10s"
  # pause between chunks
  chunk_delay: "500ms"
  # 0 disables request rate limiting
  requests_per_minute: 0
  output_dir: "."
  extension: "mp3"
  # open the unproxied request in a browser when every proxy failed
  manual_fallback: true

cache:
  enabled: true
  # dir: "~/.cache/voxfree/audio"
  # disk cache size in MB
  max_size: 100
  ttl: "168h"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the voxfree config file",
	Long:    paragraph(fmt.Sprintf("\n%s the voxfree config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("voxfree config\nvoxfree config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// a broken config must still be editable
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("VoxFree", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
