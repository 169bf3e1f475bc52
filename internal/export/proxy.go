package export

import (
	"fmt"
	"net/url"
	"strings"
)

// Placeholder is replaced by the escaped target URL in a proxy template.
const Placeholder = "{url}"

// Proxy is a relay that fetches a target URL on our behalf.
type Proxy struct {
	// Ordinal is the 0-based position in the priority list
	Ordinal  int
	Template string
}

// ParseProxies validates templates and assigns ordinals in list order.
func ParseProxies(templates []string) ([]Proxy, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("at least one proxy template is required")
	}

	proxies := make([]Proxy, 0, len(templates))
	for i, tpl := range templates {
		tpl = strings.TrimSpace(tpl)
		if !strings.Contains(tpl, Placeholder) {
			return nil, fmt.Errorf("proxy %d (%q) has no %s placeholder", i, tpl, Placeholder)
		}
		if _, err := url.Parse(strings.ReplaceAll(tpl, Placeholder, "x")); err != nil {
			return nil, fmt.Errorf("proxy %d: %w", i, err)
		}
		proxies = append(proxies, Proxy{Ordinal: i, Template: tpl})
	}
	return proxies, nil
}

// Wrap returns the proxied form of target.
func (p Proxy) Wrap(target string) string {
	return strings.ReplaceAll(p.Template, Placeholder, url.QueryEscape(target))
}

// Host returns the proxy host for logs and reports.
func (p Proxy) Host() string {
	u, err := url.Parse(strings.ReplaceAll(p.Template, Placeholder, ""))
	if err != nil || u.Host == "" {
		return p.Template
	}
	return u.Host
}
