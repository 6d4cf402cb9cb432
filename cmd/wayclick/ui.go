package main

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"wayclick/internal/core/autoclicker"
	"wayclick/internal/core/coordinator"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const (
	sliderMaxSeconds = 2.0
	maxUILogLines    = 50
)

type wayclickTheme struct {
	base fyne.Theme
}

func newWayclickTheme() fyne.Theme {
	return &wayclickTheme{base: theme.DarkTheme()}
}

func (t *wayclickTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 0x0d, G: 0x10, B: 0x14, A: 0xff}
	case theme.ColorNameButton:
		return color.NRGBA{R: 0x1d, G: 0x23, B: 0x2c, A: 0xff}
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 0x13, G: 0x18, B: 0x1f, A: 0xff}
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0x5a, G: 0xa9, B: 0xff, A: 0xff}
	case theme.ColorNameError:
		return color.NRGBA{R: 0xff, G: 0x82, B: 0x82, A: 0xff}
	case theme.ColorNameSuccess:
		return color.NRGBA{R: 0x7f, G: 0xd4, B: 0xa8, A: 0xff}
	}
	return t.base.Color(name, variant)
}

func (t *wayclickTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *wayclickTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *wayclickTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNamePadding, theme.SizeNameInnerPadding:
		return 8
	}
	return t.base.Size(name)
}

// localKeyName returns the Fyne key name for an evdev key code, used when the
// window itself has focus.
func localKeyName(code uint16) fyne.KeyName {
	name := strings.TrimPrefix(formatCodeName(code), "KEY_")
	switch name {
	case "ESC":
		return fyne.KeyEscape
	case "ENTER":
		return fyne.KeyReturn
	case "SPACE":
		return fyne.KeySpace
	case "TAB":
		return fyne.KeyTab
	}
	return fyne.KeyName(name)
}

func formatInterval(seconds float64) string {
	return fmt.Sprintf("%.3f s", seconds)
}

func statusText(running bool, hotkeyName string) string {
	if running {
		return fmt.Sprintf("Clicking (press %s to stop)", hotkeyName)
	}
	return "Stopped"
}

// logPanel keeps the last log lines. Lines are only pushed to the window once
// attach has been called, so logging before the app exists is safe.
type logPanel struct {
	mu    sync.Mutex
	lines []string
	do    func(fn func())
	show  func(text string)
}

func (p *logPanel) append(line string) {
	p.mu.Lock()
	p.lines = append(p.lines, line)
	if len(p.lines) > maxUILogLines {
		p.lines = p.lines[len(p.lines)-maxUILogLines:]
	}
	text := strings.Join(p.lines, "\n")
	do, show := p.do, p.show
	p.mu.Unlock()

	if show == nil {
		return
	}
	do(func() { show(text) })
}

// attach starts forwarding lines through do and shows what was buffered. It
// must run on the UI goroutine.
func (p *logPanel) attach(do func(fn func()), show func(text string)) {
	p.mu.Lock()
	p.do = do
	p.show = show
	text := strings.Join(p.lines, "\n")
	p.mu.Unlock()

	show(text)
}

func runUI(ctx context.Context, cfg config, stderr io.Writer) int {
	debugLogs := cfg.logLevel <= slog.LevelDebug
	panel := &logPanel{}
	var sink func(line string)
	if debugLogs {
		sink = panel.append
	}
	logger := newSlogLogger(cfg.logLevel, stderr, sink)

	fApp := app.New()
	fApp.Settings().SetTheme(newWayclickTheme())

	// Output construction is fatal, so it happens before any window exists.
	b, err := openBackend(cfg, logger)
	if err != nil {
		return reportBackendError(stderr, err)
	}

	window := fApp.NewWindow("WayClick")
	window.Resize(fyne.NewSize(520, 360))
	window.CenterOnScreen()

	hotkeyName := strings.TrimPrefix(formatCodeName(cfg.hotkeyCode), "KEY_")

	intervalValue := widget.NewLabel(formatInterval(cfg.interval))
	intervalValue.Alignment = fyne.TextAlignTrailing
	intervalValue.TextStyle = fyne.TextStyle{Bold: true}

	intervalSlider := widget.NewSlider(autoclicker.MinInterval.Seconds(), sliderMaxSeconds)
	intervalSlider.Step = autoclicker.MinInterval.Seconds()
	intervalSlider.SetValue(cfg.interval)

	buttonChoice := widget.NewRadioGroup([]string{"left", "right", "middle"}, nil)
	buttonChoice.Horizontal = true
	buttonChoice.Required = true
	buttonChoice.SetSelected(cfg.button.String())

	statusLabel := widget.NewLabel(statusText(false, hotkeyName))
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}
	clicksLabel := widget.NewLabel("Clicks: 0")

	hotkeyText := canvas.NewText("", theme.Color(theme.ColorNameForeground))
	startStopBtn := widget.NewButton("Start", nil)
	startStopBtn.Importance = widget.HighImportance

	onStatus := func(running bool) {
		statusLabel.SetText(statusText(running, hotkeyName))
		if running {
			startStopBtn.SetText("Stop")
			return
		}
		startStopBtn.SetText("Start")
	}

	coord, err := coordinator.New(coordinator.Config{
		Device:     b.device,
		Hotkey:     cfg.hotkeyCode,
		Discover:   b.discover,
		Dispatcher: coordinator.FuncDispatcher(fyne.Do),
		OnStatus:   onStatus,
		Button:     cfg.button,
		Closers:    b.closers,
	}, logger)
	if err != nil {
		_ = b.close()
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	coord.Configure(cfg.interval, cfg.button)

	intervalSlider.OnChanged = func(v float64) {
		intervalValue.SetText(formatInterval(v))
		coord.Configure(v, coord.Button())
	}
	buttonChoice.OnChanged = func(selected string) {
		if button, err := autoclicker.ParseButton(selected); err == nil {
			coord.SetButton(button)
		}
	}
	startStopBtn.OnTapped = func() {
		if !coord.IsRunning() {
			coord.Configure(intervalSlider.Value, coord.Button())
		}
		coord.Toggle()
	}

	keyName := localKeyName(cfg.hotkeyCode)
	window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == keyName && coord.IsRunning() {
			logger.Info("Stopped by window hotkey")
			coord.Stop()
		}
	})

	coord.Open()
	if coord.HotkeyActive() {
		hotkeyText.Text = fmt.Sprintf("Hotkey: %s (global, %s backend, %d source(s))", hotkeyName, b.name, coord.HotkeySources())
	} else {
		hotkeyText.Text = fmt.Sprintf("Global hotkey unavailable: %s only works while this window has focus", hotkeyName)
		hotkeyText.Color = theme.Color(theme.ColorNameError)
	}

	var closeOnce sync.Once
	var shutdownErr error
	cleanup := func() {
		closeOnce.Do(func() {
			shutdownErr = coord.Shutdown()
		})
	}

	stopTicker := make(chan struct{})
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		var last uint64
		for {
			select {
			case <-stopTicker:
				return
			case <-ticker.C:
				clicks := coord.Stats().Clicks
				if clicks == last {
					continue
				}
				last = clicks
				fyne.Do(func() {
					clicksLabel.SetText(fmt.Sprintf("Clicks: %d", clicks))
				})
			}
		}
	}()

	requestQuit := func() {
		cleanup()
		fApp.Quit()
	}

	go func() {
		<-ctx.Done()
		fyne.Do(requestQuit)
	}()

	window.SetCloseIntercept(requestQuit)

	titleText := canvas.NewText("WayClick", theme.Color(theme.ColorNamePrimary))
	titleText.TextStyle = fyne.TextStyle{Bold: true}
	titleText.TextSize = 26

	intervalTitle := widget.NewLabel("Interval")
	intervalTitle.TextStyle = fyne.TextStyle{Bold: true}
	settingsCard := widget.NewCard("Settings", "", container.NewVBox(
		container.NewBorder(nil, nil, intervalTitle, intervalValue, nil),
		intervalSlider,
		widget.NewForm(widget.NewFormItem("Button", buttonChoice)),
	))

	mainContent := container.NewVBox(
		titleText,
		settingsCard,
		statusLabel,
		clicksLabel,
		hotkeyText,
		startStopBtn,
	)
	var rootContent fyne.CanvasObject = container.NewPadded(mainContent)
	if debugLogs {
		logGrid := widget.NewTextGrid()
		logScroll := container.NewVScroll(logGrid)
		logScroll.SetMinSize(fyne.NewSize(0, 120))
		fApp.Lifecycle().SetOnStarted(func() {
			panel.attach(fyne.Do, func(text string) {
				logGrid.SetText(text)
				logScroll.ScrollToBottom()
			})
		})
		logsCard := widget.NewCard("Logs", "", logScroll)
		split := container.NewVSplit(rootContent, logsCard)
		split.SetOffset(0.7)
		rootContent = split
	}

	window.SetContent(rootContent)
	window.ShowAndRun()

	close(stopTicker)
	cleanup()
	if shutdownErr != nil {
		fmt.Fprintln(stderr, shutdownErr)
		return exitFailure
	}
	return exitOK
}
