package sysutil

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func restoreLogging(t *testing.T) {
	t.Helper()
	lvl, def := zerolog.GlobalLevel(), zerolog.DefaultContextLogger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(lvl)
		zerolog.DefaultContextLogger = def
	})
}

func TestSetLogLevel(t *testing.T) {
	restoreLogging(t)
	for in, want := range map[string]zerolog.Level{
		"debug":     zerolog.DebugLevel,
		"  DeBuG  ": zerolog.DebugLevel,
		"":          zerolog.InfoLevel,
		"warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
	} {
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != want {
			t.Errorf("SetLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLogger_BecomesContextFallback(t *testing.T) {
	restoreLogging(t)
	var buf bytes.Buffer
	SetupLogger("warn", false, &buf)

	zerolog.Ctx(context.Background()).Info().Msg("dropped")
	zerolog.Ctx(context.Background()).Warn().Str("order_code", "abc").Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"order_code":"abc"`) || !strings.Contains(out, `"service":"service-desk"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSetupLogger_Pretty(t *testing.T) {
	restoreLogging(t)
	var buf bytes.Buffer
	l := SetupLogger("info", true, &buf)
	l.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("pretty output should not be JSON: %s", buf.String())
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := FirstNonEmpty(" ", ""); got != "" {
		t.Fatalf("got %q", got)
	}
}
