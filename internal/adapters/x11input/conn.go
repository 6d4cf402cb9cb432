//go:build linux

// Package x11input clicks through XTest and watches the hotkey through a
// passive key grab on the root window.
package x11input

import (
	"fmt"
	"sort"
	"sync"

	"wayclick/internal/core/autoclicker"
	"wayclick/internal/core/hotkey"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
)

const sourcePath = "x11-global"

type Conn struct {
	xu      *xgbutil.XUtil
	conn    *xgb.Conn
	rootWin xproto.Window

	injectMu  sync.Mutex
	closeOnce sync.Once
}

// Open connects to $DISPLAY and checks that the XTEST extension is present.
func Open() (*Conn, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}
	conn := xu.Conn()
	if conn == nil {
		return nil, fmt.Errorf("failed to open X11 connection")
	}
	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return nil, err
	}
	keybind.Initialize(xu)

	return &Conn{xu: xu, conn: conn, rootWin: xu.RootWin()}, nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
	return nil
}

// Injector returns an output that presses X buttons through XTest.
func (c *Conn) Injector() autoclicker.Injector {
	return &x11Injector{c: c}
}

// HotkeySources grabs code on the root window and returns it as a single source.
func (c *Conn) HotkeySources(code uint16) ([]hotkey.Source, error) {
	keysym, ok := keysymForCode(code)
	if !ok {
		return nil, fmt.Errorf("hotkey %d has no X11 keysym", code)
	}
	keycodes := uniqueKeycodes(keybind.StrToKeycodes(c.xu, keysym))
	if len(keycodes) == 0 {
		return nil, fmt.Errorf("failed to resolve X11 key %q", keysym)
	}

	grabbed := make([]xproto.Keycode, 0, len(keycodes))
	for _, key := range keycodes {
		if err := xproto.GrabKeyChecked(
			c.conn,
			false,
			c.rootWin,
			xproto.ModMaskAny,
			key,
			xproto.GrabModeAsync,
			xproto.GrabModeAsync,
		).Check(); err != nil {
			c.ungrab(grabbed)
			return nil, fmt.Errorf("grab %s: %w", keysym, err)
		}
		grabbed = append(grabbed, key)
	}

	set := make(map[xproto.Keycode]struct{}, len(grabbed))
	for _, key := range grabbed {
		set[key] = struct{}{}
	}
	return []hotkey.Source{&keySource{c: c, code: code, keycodes: set, grabbed: grabbed}}, nil
}

func (c *Conn) ungrab(keys []xproto.Keycode) {
	for _, key := range keys {
		xproto.UngrabKey(c.conn, key, c.rootWin, xproto.ModMaskAny)
	}
}

type x11Injector struct {
	c *Conn
}

func (i *x11Injector) WriteEvents(events ...autoclicker.Event) error {
	i.c.injectMu.Lock()
	defer i.c.injectMu.Unlock()

	for _, event := range events {
		switch event.Type {
		case autoclicker.EventTypeSyn:
			if event.Code == autoclicker.SynReportCode {
				i.c.conn.Sync()
			}
		case autoclicker.EventTypeKey:
			detail, ok := buttonIndex(autoclicker.Button(event.Code))
			if !ok {
				return fmt.Errorf("button %#x has no X11 equivalent", event.Code)
			}

			var eventType byte
			switch event.Value {
			case 1:
				eventType = xproto.ButtonPress
			case 0:
				eventType = xproto.ButtonRelease
			default:
				continue
			}

			if err := xtest.FakeInputChecked(
				i.c.conn,
				eventType,
				detail,
				xproto.TimeCurrentTime,
				i.c.rootWin,
				0,
				0,
				0,
			).Check(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close leaves the shared connection open; Conn.Close owns it.
func (i *x11Injector) Close() error {
	return nil
}

type keyTransition struct {
	keycode xproto.Keycode
	press   bool
	time    xproto.Timestamp
}

type keySource struct {
	c        *Conn
	code     uint16
	keycodes map[xproto.Keycode]struct{}
	grabbed  []xproto.Keycode
}

func (s *keySource) Path() string {
	return sourcePath
}

// ReadEvents drains pending X events without blocking.
func (s *keySource) ReadEvents() ([]autoclicker.Event, error) {
	var transitions []keyTransition
	for {
		event, xerr := s.c.conn.PollForEvent()
		if event == nil && xerr == nil {
			break
		}
		// Errors from unrelated unchecked requests share this queue.
		if xerr != nil {
			continue
		}
		switch ev := event.(type) {
		case xproto.KeyPressEvent:
			if _, ok := s.keycodes[ev.Detail]; ok {
				transitions = append(transitions, keyTransition{keycode: ev.Detail, press: true, time: ev.Time})
			}
		case xproto.KeyReleaseEvent:
			if _, ok := s.keycodes[ev.Detail]; ok {
				transitions = append(transitions, keyTransition{keycode: ev.Detail, press: false, time: ev.Time})
			}
		}
	}
	return collapseAutorepeat(s.code, transitions), nil
}

func (s *keySource) Close() error {
	s.c.ungrab(s.grabbed)
	return nil
}

// collapseAutorepeat turns X11's synthetic release+press pairs, which share a
// timestamp, into a single repeat event.
func collapseAutorepeat(code uint16, transitions []keyTransition) []autoclicker.Event {
	events := make([]autoclicker.Event, 0, len(transitions))
	for i := 0; i < len(transitions); i++ {
		tr := transitions[i]
		value := int32(0)
		if tr.press {
			value = 1
		} else if i+1 < len(transitions) {
			next := transitions[i+1]
			if next.press && next.keycode == tr.keycode && next.time == tr.time {
				value = 2
				i++
			}
		}
		events = append(events, autoclicker.Event{Type: autoclicker.EventTypeKey, Code: code, Value: value})
	}
	return events
}

func uniqueKeycodes(keycodes []xproto.Keycode) []xproto.Keycode {
	uniq := make(map[xproto.Keycode]struct{}, len(keycodes))
	for _, keycode := range keycodes {
		uniq[keycode] = struct{}{}
	}
	result := make([]xproto.Keycode, 0, len(uniq))
	for key := range uniq {
		result = append(result, key)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
