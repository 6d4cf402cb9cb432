//go:build linux

package x11input

import (
	"strings"

	"wayclick/internal/adapters/linuxinput"
	"wayclick/internal/core/autoclicker"

	"github.com/BurntSushi/xgb/xproto"
)

var keysymByToken = map[string]string{
	"ESC":        "Escape",
	"ENTER":      "Return",
	"TAB":        "Tab",
	"SPACE":      "space",
	"BACKSPACE":  "BackSpace",
	"CAPSLOCK":   "Caps_Lock",
	"NUMLOCK":    "Num_Lock",
	"SCROLLLOCK": "Scroll_Lock",
	"PAUSE":      "Pause",
	"SYSRQ":      "Print",
	"INSERT":     "Insert",
	"DELETE":     "Delete",
	"HOME":       "Home",
	"END":        "End",
	"PAGEUP":     "Page_Up",
	"PAGEDOWN":   "Page_Down",
	"UP":         "Up",
	"DOWN":       "Down",
	"LEFT":       "Left",
	"RIGHT":      "Right",
	"MENU":       "Menu",
	"GRAVE":      "grave",
	"MINUS":      "minus",
	"EQUAL":      "equal",
}

// keysymForCode maps an evdev key code to the X keysym name keybind understands.
func keysymForCode(code uint16) (string, bool) {
	name := linuxinput.FormatCodeName(code)
	if !strings.HasPrefix(name, "KEY_") {
		return "", false
	}
	token := strings.TrimPrefix(name, "KEY_")

	if keysym, ok := keysymByToken[token]; ok {
		return keysym, true
	}
	if len(token) == 1 && token[0] >= 'A' && token[0] <= 'Z' {
		return strings.ToLower(token), true
	}
	if len(token) == 1 && token[0] >= '0' && token[0] <= '9' {
		return token, true
	}
	if len(token) > 1 && token[0] == 'F' && isDigits(token[1:]) {
		return token, true
	}
	return "", false
}

func buttonIndex(button autoclicker.Button) (byte, bool) {
	switch button {
	case autoclicker.ButtonLeft:
		return xproto.ButtonIndex1, true
	case autoclicker.ButtonMiddle:
		return xproto.ButtonIndex2, true
	case autoclicker.ButtonRight:
		return xproto.ButtonIndex3, true
	default:
		return 0, false
	}
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
