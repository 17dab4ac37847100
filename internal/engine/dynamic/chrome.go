// internal/engine/dynamic/chrome.go
package dynamic

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

// chromeBinaries are looked up in PATH when no install location matches.
var chromeBinaries = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"msedge",
}

// FindChrome locates a Chrome/Chromium executable. A configured path wins,
// then CHROME_PATH, then the usual install locations, then PATH. An empty
// result leaves the choice to chromedp.
func FindChrome(configured string) string {
	for _, p := range []struct{ path, source string }{
		{configured, "config"},
		{os.Getenv("CHROME_PATH"), "CHROME_PATH"},
	} {
		if p.path == "" {
			continue
		}
		if isExecutable(p.path) {
			return p.path
		}
		log.Warn().Str("path", p.path).Str("source", p.source).Msg("Chrome path is not executable")
	}

	for _, path := range installLocations(runtime.GOOS) {
		if isExecutable(path) {
			log.Debug().Str("path", path).Msg("Chrome found at install location")
			return path
		}
	}

	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Chrome found in PATH")
			return path
		}
	}

	log.Warn().Str("os", runtime.GOOS).Msg("Chrome not found, using chromedp default")
	return ""
}

func installLocations(goos string) []string {
	home := os.Getenv("HOME")
	switch goos {
	case "darwin":
		apps := []string{"Google Chrome", "Chromium", "Microsoft Edge"}
		var out []string
		for _, root := range []string{"/Applications", filepath.Join(home, "Applications")} {
			for _, app := range apps {
				out = append(out, filepath.Join(root, app+".app", "Contents", "MacOS", app))
			}
		}
		return out
	case "windows":
		var out []string
		for _, root := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if root == "" {
				continue
			}
			out = append(out,
				filepath.Join(root, "Google", "Chrome", "Application", "chrome.exe"),
				filepath.Join(root, "Chromium", "Application", "chrome.exe"),
				filepath.Join(root, "Microsoft", "Edge", "Application", "msedge.exe"),
			)
		}
		return out
	default:
		out := []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
		}
		if home != "" {
			out = append(out, filepath.Join(home, ".local/share/flatpak/exports/bin/org.chromium.Chromium"))
		}
		return out
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode()&0o111 != 0
}

// GetChromeVersion returns the "--version" line of the browser, or a placeholder.
func GetChromeVersion(chromePath string) string {
	if chromePath == "" {
		return "unknown"
	}
	if runtime.GOOS == "windows" {
		return "detected"
	}
	out, err := exec.Command(chromePath, "--version").Output()
	if err != nil {
		return "detected"
	}
	return strings.TrimSpace(string(out))
}
