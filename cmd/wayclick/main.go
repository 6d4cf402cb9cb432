package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"wayclick/internal/core/autoclicker"
	"wayclick/internal/core/coordinator"
	"wayclick/internal/core/hotkey"

	"go.uber.org/multierr"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitUnavailable = 69
	exitNoPerm      = 77
)

type config struct {
	interval      float64
	button        autoclicker.Button
	hotkeyCode    uint16
	hotkeyRaw     string
	backend       string
	deviceName    string
	listDevices   bool
	captureHotkey bool
	ui            bool
	logLevel      slog.Level
}

// backend is everything a platform hands to the coordinator.
type backend struct {
	name     string
	device   *autoclicker.Device
	discover hotkey.DiscoverFunc
	closers  []io.Closer
}

// close releases a backend that never reached a coordinator.
func (b *backend) close() error {
	err := b.device.Close()
	for _, closer := range b.closers {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

type lineSinkWriter struct {
	sink  func(line string)
	mu    sync.Mutex
	lines bytes.Buffer
}

func (w *lineSinkWriter) Write(p []byte) (int, error) {
	if w.sink == nil {
		return len(p), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx == -1 {
			_, _ = w.lines.Write(p)
			break
		}
		_, _ = w.lines.Write(p[:idx])
		line := strings.TrimSpace(w.lines.String())
		w.lines.Reset()
		if line != "" {
			w.sink(line)
		}
		p = p[idx+1:]
	}
	return total, nil
}

func newSlogLogger(level slog.Level, out io.Writer, sink func(line string)) *slog.Logger {
	if sink != nil {
		out = io.MultiWriter(out, &lineSinkWriter{sink: sink})
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (expected debug|info|warning|error)", value)
	}
}

func parseConfig(args []string, output io.Writer) (config, error) {
	cfg := config{}
	flags := flag.NewFlagSet("wayclick", flag.ContinueOnError)
	flags.SetOutput(output)

	var buttonRaw string
	var backendRaw string
	var logLevelRaw string
	var cliMode bool

	flags.Float64Var(&cfg.interval, "interval", autoclicker.DefaultInterval.Seconds(), "Seconds between clicks (minimum 0.001).")
	flags.StringVar(&buttonRaw, "button", "left", "Mouse button to click: left|right|middle.")
	flags.StringVar(&cfg.hotkeyRaw, "hotkey", "KEY_F8", "Emergency stop key, as an evdev name (KEY_F8, F8) or number.")
	flags.StringVar(&backendRaw, "backend", "auto", "Input backend: auto|wayland|x11.")
	flags.StringVar(&cfg.deviceName, "device-name", defaultDeviceName, "Name of the virtual pointer created through uinput.")
	flags.BoolVar(&cfg.listDevices, "list-devices", false, "Print available input devices and exit.")
	flags.BoolVar(&cfg.captureHotkey, "capture-hotkey", false, "Wait for the next key press, print its name and exit.")
	flags.BoolVar(&cfg.ui, "ui", true, "Start the desktop GUI (Fyne). Use --ui=false or --cli for terminal mode.")
	flags.BoolVar(&cliMode, "cli", false, "Force terminal mode: click immediately until the hotkey or a signal stops it.")
	flags.StringVar(&logLevelRaw, "log-level", "info", "Log verbosity: debug|info|warning|error.")

	if err := flags.Parse(args); err != nil {
		return cfg, err
	}
	if flags.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(flags.Args(), " "))
	}
	if math.IsNaN(cfg.interval) || cfg.interval <= 0 {
		return cfg, fmt.Errorf("--interval must be > 0")
	}
	if cfg.interval < autoclicker.MinInterval.Seconds() {
		cfg.interval = autoclicker.MinInterval.Seconds()
	}
	if strings.TrimSpace(cfg.deviceName) == "" {
		return cfg, fmt.Errorf("--device-name must not be empty")
	}
	if cliMode {
		cfg.ui = false
	}

	button, err := autoclicker.ParseButton(buttonRaw)
	if err != nil {
		return cfg, err
	}
	hotkeyCode, err := parseHotkeyCode(cfg.hotkeyRaw)
	if err != nil {
		return cfg, err
	}
	parsedLevel, err := parseLogLevel(logLevelRaw)
	if err != nil {
		return cfg, err
	}
	backendChoice, err := parseBackendChoice(backendRaw)
	if err != nil {
		return cfg, err
	}

	cfg.button = button
	cfg.hotkeyCode = hotkeyCode
	cfg.backend = backendChoice
	cfg.logLevel = parsedLevel
	return cfg, nil
}

// exitCodeFor maps a backend construction error to a sysexits code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case isOutputPermissionError(err):
		return exitNoPerm
	case isOutputUnavailableError(err):
		return exitUnavailable
	default:
		return exitFailure
	}
}

func reportBackendError(stderr io.Writer, err error) int {
	code := exitCodeFor(err)
	if code == exitNoPerm {
		fmt.Fprintln(stderr, permissionDeniedHint())
	}
	fmt.Fprintln(stderr, err)
	return code
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseConfig(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if cfg.listDevices {
		if err := listInputDevices(stdout, cfg.hotkeyCode); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
		return exitOK
	}

	if cfg.captureHotkey {
		fmt.Fprintln(stderr, "Press the key to use as the hotkey...")
		code, err := captureHotkey(10*time.Second, newSlogLogger(cfg.logLevel, stderr, nil))
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailure
		}
		fmt.Fprintln(stdout, formatCodeName(code))
		return exitOK
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.ui {
		return runUI(ctx, cfg, stderr)
	}
	return runTerminal(ctx, cfg, stderr)
}

// runTerminal clicks immediately and returns once the engine stops or ctx is done.
func runTerminal(ctx context.Context, cfg config, stderr io.Writer) int {
	logger := newSlogLogger(cfg.logLevel, stderr, nil)

	b, err := openBackend(cfg, logger)
	if err != nil {
		return reportBackendError(stderr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := coordinator.NewQueue()
	coord, err := coordinator.New(coordinator.Config{
		Device:     b.device,
		Hotkey:     cfg.hotkeyCode,
		Discover:   b.discover,
		Dispatcher: queue,
		OnStatus: func(running bool) {
			logger.Info("Status changed", "running", running)
			if !running {
				cancel()
			}
		},
		Button:  cfg.button,
		Closers: b.closers,
	}, logger)
	if err != nil {
		_ = b.close()
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	coord.Configure(cfg.interval, cfg.button)

	coord.Open()
	hotkeyName := formatCodeName(cfg.hotkeyCode)
	if coord.HotkeyActive() {
		logger.Info("Hotkey armed", "hotkey", hotkeyName, "sources", coord.HotkeySources())
	} else {
		logger.Warn("Hotkey is unavailable; stop with Ctrl+C", "hotkey", hotkeyName)
	}

	logger.Info("Backend", "name", b.name)
	logger.Info("Clicking", "button", coord.Button().String(), "interval", coord.Interval())
	logger.Info("Press the hotkey or Ctrl+C to stop", "hotkey", hotkeyName)
	coord.Start()

	_ = queue.Run(ctx)

	err = coord.Shutdown()
	stats := coord.Stats()
	logger.Info("Stopped", "clicks", stats.Clicks, "dropped", stats.Dropped)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	return exitOK
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
