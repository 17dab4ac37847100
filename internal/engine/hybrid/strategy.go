package hybrid

import (
	"strings"
)

// Strategy says what to do with a page whose served HTML lacked the marker.
type Strategy int

const (
	// StrategyStatic: no scripts, so the marker can never appear.
	StrategyStatic Strategy = iota
	// StrategyRender: scripts might inject the marker; render in the browser.
	StrategyRender
)

func (s Strategy) String() string {
	switch s {
	case StrategyStatic:
		return "static"
	case StrategyRender:
		return "render"
	}
	return "unknown"
}

// frameworkHints are lowercase substrings left in served HTML by client-side frameworks.
var frameworkHints = map[string][]string{
	"next":    {"__next", "_next/static"},
	"nuxt":    {"__nuxt", "_nuxt/"},
	"react":   {"data-reactroot", "react-dom"},
	"vue":     {"data-v-", "vue.min.js"},
	"angular": {"ng-version", "ng-app"},
	"svelte":  {"svelte-"},
}

// DetermineStrategy classifies a page from its served script count.
func DetermineStrategy(scripts int) Strategy {
	if scripts == 0 {
		return StrategyStatic
	}
	return StrategyRender
}

// Framework names the client-side framework html appears to be built with, or "".
func Framework(html string) string {
	html = strings.ToLower(html)
	for name, hints := range frameworkHints {
		for _, h := range hints {
			if strings.Contains(html, h) {
				return name
			}
		}
	}
	return ""
}
