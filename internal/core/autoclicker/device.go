package autoclicker

import (
	"errors"
	"sync"
)

var ErrDeviceClosed = errors.New("output device is closed")

// Device is the process-wide virtual pointer. It is safe for concurrent use and
// may be closed exactly once; clicks after Close fail with ErrDeviceClosed.
type Device struct {
	mu       sync.Mutex
	injector Injector
	closed   bool
}

func NewDevice(injector Injector) *Device {
	return &Device{injector: injector}
}

// Click writes a press and a release of button, each followed by SYN_REPORT.
func (d *Device) Click(button Button) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.injector == nil {
		return ErrDeviceClosed
	}

	code := uint16(button)
	if err := d.injector.WriteEvents(
		Event{Type: EventTypeKey, Code: code, Value: 1},
		Event{Type: EventTypeSyn, Code: SynReportCode, Value: 0},
	); err != nil {
		return err
	}
	return d.injector.WriteEvents(
		Event{Type: EventTypeKey, Code: code, Value: 0},
		Event{Type: EventTypeSyn, Code: SynReportCode, Value: 0},
	)
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.injector == nil {
		return nil
	}
	return d.injector.Close()
}
