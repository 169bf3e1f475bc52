package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/voxfree/voxfree/internal/ttypes"
	"golang.org/x/term"
)

var (
	voicesLang string
	refresh    bool

	voicesCmd = &cobra.Command{
		Use:     "voices",
		Short:   "List the voices of the configured engine",
		Example: paragraph("voxfree voices\nvoxfree voices --lang de\nvoxfree voices --engine mock"),
		Args:    cobra.NoArgs,
		RunE:    runVoices,
	}
)

func runVoices(cmd *cobra.Command, _ []string) error {
	controller, err := newController(cfg, nil)
	if err != nil {
		return reportError(cmd, err)
	}
	defer controller.Close() //nolint:errcheck

	voices, err := controller.Voices(cmd.Context())
	if err == nil && refresh {
		voices, err = controller.RefreshVoices(cmd.Context())
	}
	if err != nil {
		return reportError(cmd, err)
	}
	voices = filterByLanguage(voices, voicesLang)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return writeVoicesPlain(os.Stdout, voices)
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w, 120)
	}
	style := styles.LightStyle
	if termenv.HasDarkBackground() {
		style = styles.DarkStyle
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(voicesMarkdown(voices, cfg.Speech.Engine))
	if err != nil {
		return fmt.Errorf("unable to render voices: %w", err)
	}
	_, err = fmt.Fprint(os.Stdout, out)
	return err
}

// filterByLanguage keeps voices whose language starts with lang, ignoring
// case and treating _ like -.
func filterByLanguage(voices []ttypes.Voice, lang string) []ttypes.Voice {
	lang = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
	if lang == "" {
		return voices
	}
	var out []ttypes.Voice
	for _, v := range voices {
		vl := strings.ToLower(v.Language)
		if vl == lang || strings.HasPrefix(vl, lang+"-") {
			out = append(out, v)
		}
	}
	return out
}

func voicesMarkdown(voices []ttypes.Voice, engine string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Voices (%s)\n\n", engine)
	if len(voices) == 0 {
		b.WriteString("No voices found.\n")
		return b.String()
	}

	b.WriteString("| ID | Name | Language | Gender | |\n|---|---|---|---|---|\n")
	for _, v := range voices {
		def := ""
		if v.Default {
			def = "default"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s |\n",
			v.ID, escapeCell(v.Name), v.Language, v.Gender, def)
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeVoicesPlain(w io.Writer, voices []ttypes.Voice) error {
	for _, v := range voices {
		def := ""
		if v.Default {
			def = "*"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.Language, v.Gender, def); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesLang, "lang", "l", "", "only list voices for this language")
	voicesCmd.Flags().BoolVar(&refresh, "refresh", false, "enumerate the voices again instead of using the cached list")
}
