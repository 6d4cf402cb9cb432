//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"time"

	"wayclick/internal/core/autoclicker"
	"wayclick/internal/core/hotkey"

	evdev "github.com/holoplot/go-evdev"
)

const (
	defaultCaptureTimeout = 10 * time.Second
	captureIdle           = 10 * time.Millisecond
)

// CaptureNextKeyCode waits for the next key press on any physical key-capable
// device. It helps users pick a --hotkey.
func CaptureNextKeyCode(timeout time.Duration, logger autoclicker.Logger) (uint16, error) {
	sources, err := openSources(func(dev *evdev.InputDevice) bool {
		return len(dev.CapableEvents(evdev.EV_KEY)) > 0
	}, logger)
	if err != nil {
		return 0, err
	}
	if len(sources) == 0 {
		return 0, errors.New("no readable input devices with key events found")
	}
	defer func() {
		for _, src := range sources {
			_ = src.Close()
		}
	}()
	return firstKeyPress(sources, timeout, captureIdle)
}

// firstKeyPress polls sources in turn until one reports a key press (value 1)
// or timeout passes. Sources that fail are dropped.
func firstKeyPress(sources []hotkey.Source, timeout, idle time.Duration) (uint16, error) {
	if timeout <= 0 {
		timeout = defaultCaptureTimeout
	}
	expired := make(chan struct{})
	timer := time.AfterFunc(timeout, func() { close(expired) })
	defer timer.Stop()

	live := append([]hotkey.Source(nil), sources...)
	for {
		for i := 0; i < len(live); {
			events, err := live[i].ReadEvents()
			if err != nil {
				live = append(live[:i], live[i+1:]...)
				continue
			}
			for _, event := range events {
				if event.Type == autoclicker.EventTypeKey && event.Value == 1 {
					return event.Code, nil
				}
			}
			i++
		}
		if len(live) == 0 {
			return 0, errors.New("every input device failed while waiting for a key press")
		}
		if !pause(expired, idle) {
			return 0, fmt.Errorf("timed out after %v waiting for a key press", timeout)
		}
	}
}
