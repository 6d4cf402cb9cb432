//go:build linux

package linuxinput

import (
	"os"
	"slices"
	"sort"
	"strings"

	"wayclick/internal/core/autoclicker"
	"wayclick/internal/core/hotkey"

	evdev "github.com/holoplot/go-evdev"
)

var virtualNameTokens = []string{"virtual", "uinput", "ydotool", "wayclick", "autoclicker"}

type DeviceInfo struct {
	Path      string
	Name      string
	IsVirtual bool
	IsPointer bool
	HasHotkey bool
}

// ListInputDevices describes every readable input device. HasHotkey is set when
// the device can report hotkeyCode.
func ListInputDevices(hotkeyCode uint16) ([]DeviceInfo, error) {
	var devices []DeviceInfo
	err := scanDevices(func(path, name string, dev *evdev.InputDevice) {
		devices = append(devices, DeviceInfo{
			Path:      path,
			Name:      name,
			IsVirtual: deviceIsVirtual(dev, name),
			IsPointer: deviceIsPointer(dev),
			HasHotkey: deviceSupportsCode(dev, hotkeyCode),
		})
		_ = dev.Close()
	}, nil)
	return devices, err
}

// OpenHotkeySources opens every physical device that exposes code and prepares
// it for non-blocking reads. Devices that cannot be opened are skipped; an empty
// result is not an error.
func OpenHotkeySources(code uint16, logger autoclicker.Logger) ([]hotkey.Source, error) {
	return openSources(func(dev *evdev.InputDevice) bool {
		return deviceSupportsCode(dev, code)
	}, logger)
}

// openSources opens the physical devices accepted by keep as non-blocking sources.
func openSources(keep func(dev *evdev.InputDevice) bool, logger autoclicker.Logger) ([]hotkey.Source, error) {
	var sources []hotkey.Source
	err := scanDevices(func(path, name string, dev *evdev.InputDevice) {
		if deviceIsVirtual(dev, name) || !keep(dev) {
			_ = dev.Close()
			return
		}
		if err := dev.NonBlock(); err != nil {
			logger.Debug("Failed to set nonblocking mode", "path", path, "err", err)
			_ = dev.Close()
			return
		}
		sources = append(sources, &evdevSource{dev: dev, path: path, name: name})
	}, func(path string, err error) {
		logger.Debug("Skipping unreadable input device", "path", path, "err", err)
	})
	return sources, err
}

// scanDevices opens each input node in path order and passes it to visit, which
// owns the device from then on. Nodes that cannot be opened go to skip if set.
func scanDevices(visit func(path, name string, dev *evdev.InputDevice), skip func(path string, err error)) error {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return err
	}
	sort.Slice(paths, func(i, j int) bool {
		return paths[i].Path < paths[j].Path
	})

	for _, p := range paths {
		dev, err := evdev.OpenWithFlags(p.Path, os.O_RDONLY)
		if err != nil {
			if skip != nil {
				skip(p.Path, err)
			}
			continue
		}
		name := p.Name
		if actual, err := dev.Name(); err == nil && actual != "" {
			name = actual
		}
		visit(p.Path, name, dev)
	}
	return nil
}

func deviceSupportsCode(device *evdev.InputDevice, code uint16) bool {
	return slices.Contains(device.CapableEvents(evdev.EV_KEY), evdev.EvCode(code))
}

func deviceIsVirtual(device *evdev.InputDevice, name string) bool {
	if id, err := device.InputID(); err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	return nameIsVirtual(name)
}

func nameIsVirtual(name string) bool {
	lower := strings.ToLower(name)
	return slices.ContainsFunc(virtualNameTokens, func(token string) bool {
		return strings.Contains(lower, token)
	})
}

// deviceIsPointer reports relative X/Y motion or any absolute axis.
func deviceIsPointer(device *evdev.InputDevice) bool {
	rel := device.CapableEvents(evdev.EV_REL)
	if slices.Contains(rel, evdev.REL_X) && slices.Contains(rel, evdev.REL_Y) {
		return true
	}
	return len(device.CapableEvents(evdev.EV_ABS)) > 0
}
