package autoclicker

import (
	"fmt"
	"strings"
	"time"
)

const (
	EventTypeSyn uint16 = 0x00
	EventTypeKey uint16 = 0x01

	SynReportCode uint16 = 0
	KeyF8Code     uint16 = 66
)

const (
	MinInterval     = time.Millisecond
	DefaultInterval = 100 * time.Millisecond
)

// Button is the evdev code of a pointer button the engine can actuate.
type Button uint16

const (
	ButtonLeft   Button = 0x110
	ButtonRight  Button = 0x111
	ButtonMiddle Button = 0x112
)

// Buttons lists every button a virtual pointer must declare.
var Buttons = []Button{ButtonLeft, ButtonRight, ButtonMiddle}

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return fmt.Sprintf("button(%#x)", uint16(b))
	}
}

func ParseButton(value string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "left", "":
		return ButtonLeft, nil
	case "right":
		return ButtonRight, nil
	case "middle":
		return ButtonMiddle, nil
	default:
		return 0, fmt.Errorf("unknown button %q (expected left|right|middle)", value)
	}
}

type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

type Stats struct {
	Clicks  uint64
	Dropped uint64
}

// Injector writes events to an output device. Each WriteEvents call is one batch.
type Injector interface {
	WriteEvents(events ...Event) error
	Close() error
}

// Clicker emits one complete click.
type Clicker interface {
	Click(button Button) error
}

// Dispatcher runs fn later on the presentation loop. Do must not block.
type Dispatcher interface {
	Do(fn func())
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
