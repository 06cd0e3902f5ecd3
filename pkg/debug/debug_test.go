package debug

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]bool
	}{
		{"empty", "", map[string]bool{}},
		{"single", "ratelimit", map[string]bool{"ratelimit": true}},
		{"multiple", "ratelimit,token", map[string]bool{"ratelimit": true, "token": true}},
		{"all", "all", map[string]bool{"all": true}},
		{"with spaces", " ratelimit , token ", map[string]bool{"ratelimit": true, "token": true}},
		{"uppercase normalized", "RATELIMIT,Token", map[string]bool{"ratelimit": true, "token": true}},
		{"empty segments", "ratelimit,,token", map[string]bool{"ratelimit": true, "token": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.input)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %v, want %v", k, got[k], v)
				}
			}
			if len(got) != len(tt.want) {
				t.Errorf("len(got) = %d, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestEnabled(t *testing.T) {
	// Save and restore.
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("ratelimit,token")

	if !Enabled("ratelimit") {
		t.Error("ratelimit should be enabled")
	}
	if !Enabled("token") {
		t.Error("token should be enabled")
	}
	if Enabled("storage") {
		t.Error("storage should not be enabled")
	}
	if Enabled("all") {
		t.Error("all should not be enabled (not in categories)")
	}
}

func TestEnabled_All(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("all")

	if !Enabled("ratelimit") {
		t.Error("ratelimit should be enabled via 'all'")
	}
	if !Enabled("token") {
		t.Error("token should be enabled via 'all'")
	}
	if !Enabled("anything") {
		t.Error("anything should be enabled via 'all'")
	}
}

func TestEnabled_Empty(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	if Enabled("ratelimit") {
		t.Error("nothing should be enabled when no categories set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestUnknown(t *testing.T) {
	got := Unknown(parseCategories("all,ratelimit,mcp,bogus,token"))
	want := []string{"bogus", "mcp"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Unknown = %v, want %v", got, want)
	}
	if got := Unknown(parseCategories("auth,storage")); len(got) != 0 {
		t.Errorf("Unknown = %v, want none", got)
	}
}

func TestInit_EnvOverridesConfig(t *testing.T) {
	orig := categories
	origLogger := slog.Default()
	defer func() {
		categories = orig
		slog.SetDefault(origLogger)
	}()

	t.Setenv("ROLLCALL_DEBUG", "token")
	t.Setenv("ROLLCALL_LOG_LEVEL", "")
	Init("storage", "DEBUG")

	if !Enabled("token") {
		t.Error("token should be enabled from the environment")
	}
	if Enabled("storage") {
		t.Error("storage from config should be overridden by the environment")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("DEBUG level from config should be active")
	}
}

func TestLog_DisabledCategory(t *testing.T) {
	orig := categories
	defer func() { categories = orig }()

	categories = parseCategories("")

	// Should not panic or produce output.
	Log("ratelimit", "test message", "key", "value")
}
