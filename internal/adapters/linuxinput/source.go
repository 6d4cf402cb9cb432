//go:build linux

package linuxinput

import (
	"errors"
	"syscall"
	"time"

	"wayclick/internal/core/autoclicker"

	evdev "github.com/holoplot/go-evdev"
)

const readBatch = 64

// evdevSource is a hotkey.Source over a non-blocking evdev node.
type evdevSource struct {
	dev  *evdev.InputDevice
	path string
	name string
}

func (s *evdevSource) Path() string {
	return s.path
}

func (s *evdevSource) ReadEvents() ([]autoclicker.Event, error) {
	raw, err := s.dev.ReadSlice(readBatch)
	if err != nil {
		if isWouldBlockError(err) {
			return nil, nil
		}
		return nil, err
	}
	return convertEvents(raw), nil
}

func (s *evdevSource) Close() error {
	err := s.dev.Close()
	if isDeviceClosedError(err) {
		return nil
	}
	return err
}

func convertEvents(raw []evdev.InputEvent) []autoclicker.Event {
	events := make([]autoclicker.Event, 0, len(raw))
	for _, event := range raw {
		events = append(events, autoclicker.Event{
			Type:  uint16(event.Type),
			Code:  uint16(event.Code),
			Value: event.Value,
		})
	}
	return events
}

func isDeviceClosedError(err error) bool {
	return errors.Is(err, syscall.EBADF) || errors.Is(err, syscall.ENODEV)
}

func isWouldBlockError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// pause sleeps for d and reports false if done closed first.
func pause(done <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		return true
	}
}
