//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"wayclick/internal/core/autoclicker"

	evdev "github.com/holoplot/go-evdev"
)

var (
	ErrOutputPermission  = errors.New("insufficient permission to create uinput device")
	ErrOutputUnavailable = errors.New("uinput device support unavailable")
)

const DefaultDeviceName = "wayclick-virtual-mouse"

type evdevInjector struct {
	dev *evdev.InputDevice
}

func (e *evdevInjector) WriteEvents(events ...autoclicker.Event) error {
	for _, event := range events {
		ev := evdev.InputEvent{
			Type:  evdev.EvType(event.Type),
			Code:  evdev.EvCode(event.Code),
			Value: event.Value,
		}
		if err := e.dev.WriteOne(&ev); err != nil {
			return err
		}
	}
	return nil
}

func (e *evdevInjector) Close() error {
	if e.dev == nil {
		return nil
	}
	return e.dev.Close()
}

// CreateVirtualPointer creates a uinput device able to press buttons. Permission
// failures wrap ErrOutputPermission. Any other failure is retried once with only
// BTN_LEFT declared before returning an error wrapping ErrOutputUnavailable.
func CreateVirtualPointer(name string, buttons []autoclicker.Button, logger autoclicker.Logger) (autoclicker.Injector, error) {
	if name == "" {
		name = DefaultDeviceName
	}
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}

	dev, err := evdev.CreateDevice(name, id, buttonCapabilities(buttons))
	if err == nil {
		return &evdevInjector{dev: dev}, nil
	}
	if isPermissionError(err) {
		return nil, fmt.Errorf("%w: %v", ErrOutputPermission, err)
	}

	logger.Warn("Creating virtual pointer failed; retrying with default capabilities", "err", err)
	dev, retryErr := evdev.CreateDevice(name, id, buttonCapabilities([]autoclicker.Button{autoclicker.ButtonLeft}))
	if retryErr == nil {
		return &evdevInjector{dev: dev}, nil
	}
	if isPermissionError(retryErr) {
		return nil, fmt.Errorf("%w: %v", ErrOutputPermission, retryErr)
	}
	return nil, fmt.Errorf("%w: %v", ErrOutputUnavailable, retryErr)
}

func buttonCapabilities(buttons []autoclicker.Button) map[evdev.EvType][]evdev.EvCode {
	codes := make([]evdev.EvCode, 0, len(buttons))
	for _, button := range buttons {
		codes = append(codes, evdev.EvCode(button))
	}
	return map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: codes,
	}
}

func isPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES)
}
