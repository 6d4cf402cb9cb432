//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"wayclick/internal/adapters/linuxinput"
	"wayclick/internal/adapters/x11input"
	"wayclick/internal/core/autoclicker"
	"wayclick/internal/core/hotkey"
)

const defaultDeviceName = linuxinput.DefaultDeviceName

func parseHotkeyCode(value string) (uint16, error) {
	return linuxinput.ParseCode(value)
}

func parseBackendChoice(value string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(value))
	if backend == "" {
		backend = "auto"
	}
	switch backend {
	case "auto", "wayland", "x11", "evdev":
		return backend, nil
	default:
		return "", fmt.Errorf("invalid --backend %q (linux supports auto|wayland|x11)", value)
	}
}

func formatCodeName(code uint16) string {
	return linuxinput.FormatCodeName(code)
}

func captureHotkey(timeout time.Duration, logger *slog.Logger) (uint16, error) {
	return linuxinput.CaptureNextKeyCode(timeout, logger)
}

func listInputDevices(w io.Writer, hotkeyCode uint16) error {
	devices, err := linuxinput.ListInputDevices(hotkeyCode)
	if err != nil {
		return err
	}
	for _, dev := range devices {
		virtualTag := "physical"
		if dev.IsVirtual {
			virtualTag = "virtual"
		}
		pointerTag := "non-pointer"
		if dev.IsPointer {
			pointerTag = "pointer"
		}
		line := fmt.Sprintf("%s: %s [%s, %s", dev.Path, dev.Name, virtualTag, pointerTag)
		if dev.HasHotkey {
			line += ", hotkey"
		}
		fmt.Fprintln(w, line+"]")
	}
	return nil
}

func isOutputPermissionError(err error) bool {
	return errors.Is(err, linuxinput.ErrOutputPermission)
}

func isOutputUnavailableError(err error) bool {
	return errors.Is(err, linuxinput.ErrOutputUnavailable)
}

func permissionDeniedHint() string {
	return "Permission denied creating the virtual pointer. Run as root or add a udev rule granting access to /dev/uinput and /dev/input/event*."
}

func openBackend(cfg config, logger *slog.Logger) (*backend, error) {
	switch resolveLinuxBackend(cfg.backend) {
	case "x11":
		return openX11Backend(logger)
	default:
		return openWaylandBackend(cfg, logger)
	}
}

func openWaylandBackend(cfg config, logger *slog.Logger) (*backend, error) {
	injector, err := linuxinput.CreateVirtualPointer(cfg.deviceName, autoclicker.Buttons, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("Created virtual pointer", "name", cfg.deviceName)

	return &backend{
		name:   "wayland",
		device: autoclicker.NewDevice(injector),
		discover: func(code uint16) ([]hotkey.Source, error) {
			return linuxinput.OpenHotkeySources(code, logger)
		},
	}, nil
}

func openX11Backend(logger *slog.Logger) (*backend, error) {
	conn, err := x11input.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: x11: %v", linuxinput.ErrOutputUnavailable, err)
	}
	logger.Debug("Connected to X server")

	return &backend{
		name:     "x11",
		device:   autoclicker.NewDevice(conn.Injector()),
		discover: conn.HotkeySources,
		closers:  []io.Closer{conn},
	}, nil
}

func resolveLinuxBackend(configured string) string {
	choice := strings.ToLower(strings.TrimSpace(configured))
	if choice == "" {
		choice = "auto"
	}
	if choice == "evdev" {
		choice = "wayland"
	}
	if choice != "auto" {
		return choice
	}

	sessionType := strings.ToLower(strings.TrimSpace(os.Getenv("XDG_SESSION_TYPE")))
	switch sessionType {
	case "wayland":
		return "wayland"
	case "x11":
		return "x11"
	}

	if strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) != "" {
		return "wayland"
	}
	if strings.TrimSpace(os.Getenv("DISPLAY")) != "" {
		return "x11"
	}
	return "wayland"
}
