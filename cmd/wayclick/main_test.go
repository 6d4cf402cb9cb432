//go:build linux

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"wayclick/internal/adapters/linuxinput"
	"wayclick/internal/core/autoclicker"

	"fyne.io/fyne/v2"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.interval != 0.1 {
		t.Fatalf("interval = %v, want 0.1", cfg.interval)
	}
	if cfg.button != autoclicker.ButtonLeft {
		t.Fatalf("button = %v, want left", cfg.button)
	}
	if cfg.hotkeyCode != linuxinput.CodeKEYF8 {
		t.Fatalf("hotkey = %d, want KEY_F8", cfg.hotkeyCode)
	}
	if !cfg.ui {
		t.Fatalf("ui should default to true")
	}
	if cfg.backend != "auto" {
		t.Fatalf("backend = %q, want auto", cfg.backend)
	}
	if cfg.deviceName != linuxinput.DefaultDeviceName {
		t.Fatalf("deviceName = %q", cfg.deviceName)
	}
	if cfg.logLevel != slog.LevelInfo {
		t.Fatalf("logLevel = %v, want info", cfg.logLevel)
	}
}

func TestParseConfigFlags(t *testing.T) {
	cfg, err := parseConfig([]string{
		"--interval", "0.0001",
		"--button", "right",
		"--hotkey", "F9",
		"--backend", "evdev",
		"--cli",
		"--log-level", "warning",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseConfig() error = %v", err)
	}
	if cfg.interval != autoclicker.MinInterval.Seconds() {
		t.Fatalf("interval = %v, want clamped to floor", cfg.interval)
	}
	if cfg.button != autoclicker.ButtonRight {
		t.Fatalf("button = %v, want right", cfg.button)
	}
	if got := formatCodeName(cfg.hotkeyCode); got != "KEY_F9" {
		t.Fatalf("hotkey = %s, want KEY_F9", got)
	}
	if cfg.ui {
		t.Fatalf("--cli should disable the GUI")
	}
	if cfg.logLevel != slog.LevelWarn {
		t.Fatalf("logLevel = %v, want warn", cfg.logLevel)
	}
	if got := resolveLinuxBackend(cfg.backend); got != "wayland" {
		t.Fatalf("resolveLinuxBackend(evdev) = %q, want wayland", got)
	}
}

func TestParseConfigRejectsInvalidInput(t *testing.T) {
	cases := [][]string{
		{"--interval", "0"},
		{"--interval", "-1"},
		{"--interval", "NaN"},
		{"--button", "side"},
		{"--hotkey", "KEY_DOES_NOT_EXIST"},
		{"--backend", "windows"},
		{"--log-level", "loud"},
		{"--device-name", " "},
		{"extra"},
	}
	for _, args := range cases {
		if _, err := parseConfig(args, io.Discard); err == nil {
			t.Fatalf("parseConfig(%v) expected error", args)
		}
	}
}

func TestRunUsageErrors(t *testing.T) {
	var stderr strings.Builder
	if code := run([]string{"--button", "side"}, io.Discard, &stderr); code != exitUsage {
		t.Fatalf("run() = %d, want %d", code, exitUsage)
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected an error message")
	}
	if code := run([]string{"-h"}, io.Discard, io.Discard); code != exitOK {
		t.Fatalf("run(-h) = %d, want 0", code)
	}
	if _, err := parseConfig([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
}

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("%w: denied", linuxinput.ErrOutputPermission), exitNoPerm},
		{fmt.Errorf("%w: no module", linuxinput.ErrOutputUnavailable), exitUnavailable},
		{errors.New("other"), exitFailure},
	}
	for _, tc := range cases {
		if got := exitCodeFor(tc.err); got != tc.want {
			t.Fatalf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for raw, want := range cases {
		got, err := parseLogLevel(raw)
		if err != nil || got != want {
			t.Fatalf("parseLogLevel(%q) = %v, %v", raw, got, err)
		}
	}
}

func TestResolveLinuxBackendFromSession(t *testing.T) {
	t.Setenv("XDG_SESSION_TYPE", "x11")
	if got := resolveLinuxBackend("auto"); got != "x11" {
		t.Fatalf("resolveLinuxBackend = %q, want x11", got)
	}
	t.Setenv("XDG_SESSION_TYPE", "")
	t.Setenv("WAYLAND_DISPLAY", "wayland-0")
	if got := resolveLinuxBackend(""); got != "wayland" {
		t.Fatalf("resolveLinuxBackend = %q, want wayland", got)
	}
}

func TestLineSinkWriterSplitsLines(t *testing.T) {
	var lines []string
	w := &lineSinkWriter{sink: func(line string) { lines = append(lines, line) }}

	_, _ = w.Write([]byte("first li"))
	_, _ = w.Write([]byte("ne\n\nsecond\nthi"))
	if len(lines) != 2 || lines[0] != "first line" || lines[1] != "second" {
		t.Fatalf("lines = %q", lines)
	}
	_, _ = w.Write([]byte("rd\n"))
	if len(lines) != 3 || lines[2] != "third" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestLocalKeyName(t *testing.T) {
	cases := map[uint16]fyne.KeyName{
		linuxinput.CodeKEYF8: fyne.KeyF8,
	}
	esc, err := linuxinput.ParseCode("KEY_ESC")
	if err != nil {
		t.Fatalf("ParseCode() error = %v", err)
	}
	cases[esc] = fyne.KeyEscape
	q, err := linuxinput.ParseCode("KEY_Q")
	if err != nil {
		t.Fatalf("ParseCode() error = %v", err)
	}
	cases[q] = fyne.KeyQ

	for code, want := range cases {
		if got := localKeyName(code); got != want {
			t.Fatalf("localKeyName(%d) = %q, want %q", code, got, want)
		}
	}
}
