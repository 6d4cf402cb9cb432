//go:build !linux

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const defaultDeviceName = "wayclick-virtual-mouse"

func parseHotkeyCode(value string) (uint16, error) {
	return 0, fmt.Errorf("unsupported platform")
}

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" || backend == "auto" {
		return "auto", nil
	}
	return "", fmt.Errorf("invalid --backend %q (unsupported platform)", value)
}

func formatCodeName(code uint16) string {
	return fmt.Sprintf("%d", code)
}

func captureHotkey(_ time.Duration, _ *slog.Logger) (uint16, error) {
	return 0, fmt.Errorf("unsupported platform")
}

func listInputDevices(_ io.Writer, _ uint16) error {
	return fmt.Errorf("input device listing is not supported on this platform")
}

func isOutputPermissionError(error) bool { return false }
func isOutputUnavailableError(error) bool { return false }

func permissionDeniedHint() string {
	return "Permission denied opening the output device."
}

func openBackend(_ config, _ *slog.Logger) (*backend, error) {
	return nil, fmt.Errorf("wayclick is not supported on this platform")
}
