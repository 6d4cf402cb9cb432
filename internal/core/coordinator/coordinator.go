// Package coordinator ties the click engine, the hotkey monitor and the output
// device together behind the API the presentation layer uses.
package coordinator

import (
	"fmt"
	"io"
	"sync"
	"time"

	"wayclick/internal/core/autoclicker"
	"wayclick/internal/core/hotkey"

	"go.uber.org/multierr"
)

type Config struct {
	Device     *autoclicker.Device
	Hotkey     uint16
	Discover   hotkey.DiscoverFunc
	Dispatcher autoclicker.Dispatcher
	// OnStatus always runs on the Dispatcher's loop.
	OnStatus    func(running bool)
	Interval    time.Duration
	Button      autoclicker.Button
	JoinTimeout time.Duration
	// Closers are released after the device, in order.
	Closers []io.Closer
}

type Coordinator struct {
	device     *autoclicker.Device
	engine     *autoclicker.Engine
	monitor    *hotkey.Monitor
	dispatcher autoclicker.Dispatcher
	onStatus   func(running bool)
	closers    []io.Closer
	logger     autoclicker.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(cfg Config, logger autoclicker.Logger) (*Coordinator, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("output device is nil")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	c := &Coordinator{
		device:     cfg.Device,
		dispatcher: cfg.Dispatcher,
		onStatus:   cfg.OnStatus,
		closers:    cfg.Closers,
		logger:     logger,
	}

	engine, err := autoclicker.NewEngine(autoclicker.EngineConfig{
		Interval:    cfg.Interval,
		Button:      cfg.Button,
		JoinTimeout: cfg.JoinTimeout,
		OnStatus:    c.publishStatus,
	}, cfg.Device, logger)
	if err != nil {
		return nil, err
	}
	c.engine = engine

	discover := cfg.Discover
	if discover == nil {
		discover = func(uint16) ([]hotkey.Source, error) { return nil, nil }
	}
	monitor, err := hotkey.NewMonitor(hotkey.Config{
		Code:       cfg.Hotkey,
		Discover:   discover,
		Dispatcher: cfg.Dispatcher,
		OnPress:    c.emergencyStop,
	}, logger)
	if err != nil {
		return nil, err
	}
	c.monitor = monitor
	return c, nil
}

// Open starts watching for the hotkey.
func (c *Coordinator) Open() {
	c.monitor.Start()
}

func (c *Coordinator) Configure(intervalSeconds float64, button autoclicker.Button) {
	c.engine.SetIntervalSeconds(intervalSeconds)
	c.engine.SetButton(button)
}

func (c *Coordinator) SetInterval(d time.Duration) {
	c.engine.SetInterval(d)
}

func (c *Coordinator) SetButton(button autoclicker.Button) {
	c.engine.SetButton(button)
}

func (c *Coordinator) Interval() time.Duration {
	return c.engine.Interval()
}

func (c *Coordinator) Button() autoclicker.Button {
	return c.engine.Button()
}

func (c *Coordinator) Start() {
	c.engine.Start()
}

func (c *Coordinator) Stop() {
	c.engine.Stop()
}

// Toggle starts the engine when idle and stops it when running.
func (c *Coordinator) Toggle() {
	if c.engine.IsRunning() {
		c.engine.Stop()
		return
	}
	c.engine.Start()
}

func (c *Coordinator) IsRunning() bool {
	return c.engine.IsRunning()
}

func (c *Coordinator) Stats() autoclicker.Stats {
	return c.engine.Stats()
}

// HotkeyActive reports whether a readable device is being watched for the hotkey.
func (c *Coordinator) HotkeyActive() bool {
	return c.monitor.Active()
}

// HotkeySources reports how many input sources are watched for the hotkey.
func (c *Coordinator) HotkeySources() int {
	return c.monitor.Sources()
}

// Shutdown stops the engine, then the monitor, then closes the device and the
// remaining closers. Later calls return the first result.
func (c *Coordinator) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.engine.Stop()
		c.monitor.Stop()
		err := c.device.Close()
		for _, closer := range c.closers {
			err = multierr.Append(err, closer.Close())
		}
		if err != nil {
			c.logger.Warn("Shutdown finished with errors", "err", err)
		}
		c.shutdownErr = err
	})
	return c.shutdownErr
}

// emergencyStop runs on the dispatcher loop after a hotkey press.
func (c *Coordinator) emergencyStop() {
	if c.engine.Stop() {
		c.logger.Info("Stopped by hotkey")
	}
}

// publishStatus is called by the engine while the transition is still held, so
// queued notifications keep transition order.
func (c *Coordinator) publishStatus(running bool) {
	if c.onStatus == nil {
		return
	}
	c.dispatcher.Do(func() {
		c.onStatus(running)
	})
}
