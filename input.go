package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/voxfree/voxfree/internal/tts"
)

var (
	inputFile     string
	fromClipboard bool
	asMarkdown    bool

	markdownExtensions = []string{".md", ".mdown", ".mkdn", ".mkd", ".markdown"}
)

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "read text from a file (- for stdin)")
	cmd.Flags().BoolVar(&fromClipboard, "clipboard", false, "read text from the system clipboard")
	cmd.Flags().BoolVarP(&asMarkdown, "markdown", "m", false, "strip markdown formatting before speaking")
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readInput collects the text to speak or export. Positional arguments win,
// then --file, then --clipboard, then a stdin pipe.
func readInput(args []string) (string, error) {
	text, markdown, err := rawInput(args)
	if err != nil {
		return "", err
	}
	if asMarkdown || markdown {
		text = tts.PlainText(text)
	}
	if strings.TrimSpace(text) == "" {
		return "", tts.NewTTSError(tts.ErrorCodeInvalidInput, "no text to speak", nil)
	}
	return text, nil
}

func rawInput(args []string) (text string, markdown bool, err error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), false, nil

	case inputFile == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), false, nil

	case inputFile != "":
		path, err := homedir.Expand(inputFile)
		if err != nil {
			return "", false, err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("unable to open file: %w", err)
		}
		return string(b), isMarkdownFile(path), nil

	case fromClipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", false, fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, false, nil
	}

	piped, err := stdinIsPipe()
	if err != nil {
		return "", false, err
	}
	if !piped {
		return "", false, errors.New("no text given: pass it as an argument, with --file, --clipboard or on stdin")
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", false, fmt.Errorf("unable to read from stdin: %w", err)
	}
	return string(b), false, nil
}

func isMarkdownFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range markdownExtensions {
		if ext == v {
			return true
		}
	}
	return false
}
