//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

const CodeKEYF8 uint16 = uint16(evdev.KEY_F8)

// ParseCode resolves a hotkey given as an evdev name (KEY_F8, or F8 without the
// prefix) or as a decimal or 0x-prefixed number.
func ParseCode(value string) (uint16, error) {
	name := strings.ToUpper(strings.TrimSpace(value))
	if name == "" {
		return 0, errors.New("hotkey code is empty")
	}
	for _, candidate := range []string{name, "KEY_" + name} {
		if code, ok := evdev.KEYFromString[candidate]; ok {
			return uint16(code), nil
		}
	}

	code, err := strconv.ParseUint(name, 0, 16)
	if err == nil {
		return uint16(code), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("hotkey code out of range: %s", value)
	}
	return 0, fmt.Errorf("unknown hotkey %q: use names like KEY_F8/KEY_PAUSE or a numeric code", value)
}

// FormatCodeName is the inverse of ParseCode; unnamed codes print as numbers.
func FormatCodeName(code uint16) string {
	if name := evdev.CodeName(evdev.EV_KEY, evdev.EvCode(code)); name != "" {
		return name
	}
	return strconv.FormatUint(uint64(code), 10)
}
