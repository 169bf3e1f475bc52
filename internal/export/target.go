package export

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when the language hint is empty or unparseable.
const DefaultLanguage = "en"

// Target builds unproxied requests against the remote text-to-speech endpoint.
type Target struct {
	Endpoint string
	Client   string
	Encoding string
}

// LanguageCode reduces a language hint ("en-US", "pt_BR", "de") to the
// primary subtag the endpoint expects.
func LanguageCode(hint string) string {
	hint = strings.TrimSpace(strings.ReplaceAll(hint, "_", "-"))
	if hint == "" {
		return DefaultLanguage
	}

	tag, err := language.Parse(hint)
	if err != nil {
		return DefaultLanguage
	}
	base, conf := tag.Base()
	if conf == language.No {
		return DefaultLanguage
	}
	return base.String()
}

// URL returns the request URL speaking text in language lang.
func (t Target) URL(text, lang string) (string, error) {
	if t.Endpoint == "" {
		return "", errors.New("export endpoint is not configured")
	}

	u, err := url.Parse(t.Endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("ie", t.Encoding)
	q.Set("tl", LanguageCode(lang))
	q.Set("client", t.Client)
	q.Set("q", text)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
