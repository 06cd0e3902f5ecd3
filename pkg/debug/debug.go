// Package debug provides category-based debug logging for rollcall.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via ROLLCALL_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via ROLLCALL_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("ratelimit", "bucket created", "key", key)
//	if debug.Enabled("auth") { /* expensive formatting */ }
//
// Debug output is emitted at slog DEBUG level, so a category only shows
// when the level is DEBUG as well.
package debug

import (
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Known lists the categories the server emits. "all" enables every one.
var Known = []string{"auth", "ratelimit", "token", "storage", "transport", "config"}

// categories holds the set of enabled debug categories.
// Access is read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	// Available before Init so package-level setup can log.
	categories = parseCategories(os.Getenv("ROLLCALL_DEBUG"))
}

// Init configures the debug system. Called at startup with values
// from config and/or environment. Environment overrides config.
// Unknown category names are reported with a warning and otherwise ignored.
func Init(configCategories string, configLevel string) {
	cats := os.Getenv("ROLLCALL_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("ROLLCALL_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))

	if unknown := Unknown(categories); len(unknown) > 0 {
		slog.Warn("unknown debug categories", "categories", unknown, "known", Known)
	}
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level string to a slog.Level. Unknown values
// select INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Unknown returns the enabled names that are neither in Known nor "all",
// sorted.
func Unknown(enabled map[string]bool) []string {
	var out []string
	for name := range enabled {
		if name != "all" && !slices.Contains(Known, name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
