// Package hotkey watches raw input sources for one designated key and reports
// each fresh press through a Dispatcher.
package hotkey

import (
	"fmt"
	"sync"
	"time"

	"wayclick/internal/core/autoclicker"

	"go.uber.org/multierr"
)

const (
	defaultPollInterval = 10 * time.Millisecond
	defaultStopTimeout  = 500 * time.Millisecond
)

// Source is one readable input stream. ReadEvents must not block: it returns
// no events and a nil error when nothing is pending.
type Source interface {
	Path() string
	ReadEvents() ([]autoclicker.Event, error)
	Close() error
}

// DiscoverFunc returns every source that can report code.
type DiscoverFunc func(code uint16) ([]Source, error)

type Config struct {
	Code       uint16
	Discover   DiscoverFunc
	Dispatcher autoclicker.Dispatcher
	// OnPress is handed to Dispatcher once per rising edge of Code.
	OnPress      func()
	PollInterval time.Duration
	StopTimeout  time.Duration
}

type Monitor struct {
	cfg    Config
	logger autoclicker.Logger

	mu      sync.Mutex
	started bool
	sources []Source
	stopCh  chan struct{}
	doneCh  chan struct{}
	// lingering is the done channel of a goroutine that outlived Stop. It
	// still owns its sources and closes them on exit.
	lingering chan struct{}

	// holder is the source whose press is currently held. Owned by the
	// monitor goroutine.
	holder Source
}

func NewMonitor(cfg Config, logger autoclicker.Logger) (*Monitor, error) {
	if cfg.Discover == nil {
		return nil, fmt.Errorf("discover func is nil")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is nil")
	}
	if cfg.OnPress == nil {
		return nil, fmt.Errorf("press callback is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Monitor{cfg: cfg, logger: logger}, nil
}

// Start discovers sources and begins watching them. With no usable source the
// monitor stays inert and never fires.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	if m.lingering != nil {
		if !waitDone(m.lingering, m.cfg.StopTimeout) {
			m.logger.Warn("Previous hotkey monitor is still running; emergency stop key is inactive")
			return
		}
		m.lingering = nil
	}

	sources, err := m.cfg.Discover(m.cfg.Code)
	if err != nil {
		m.logger.Warn("Hotkey discovery failed; emergency stop key is inactive", "err", err)
		return
	}
	if len(sources) == 0 {
		m.logger.Warn("No readable input device exposes the hotkey; emergency stop key is inactive", "code", m.cfg.Code)
		return
	}
	for _, src := range sources {
		m.logger.Info("Watching hotkey source", "path", src.Path())
	}

	m.sources = sources
	m.holder = nil
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(sources, m.stopCh, m.doneCh)
}

// Stop ends monitoring and releases all sources. It is safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false

	if m.stopCh != nil {
		close(m.stopCh)
		if !waitDone(m.doneCh, m.cfg.StopTimeout) {
			m.logger.Warn("Hotkey monitor did not exit in time", "timeout", m.cfg.StopTimeout)
			m.lingering = m.doneCh
			go m.closeSourcesAfter(m.doneCh, m.sources)
			m.sources = nil
		}
	}

	if err := closeSources(m.sources); err != nil {
		m.logger.Debug("Closing hotkey sources", "err", err)
	}
	m.sources = nil
	m.stopCh = nil
	m.doneCh = nil
}

// Active reports whether a monitor goroutine is watching at least one source.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && len(m.sources) > 0
}

// Sources reports how many sources the running monitor holds open.
func (m *Monitor) Sources() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

func (m *Monitor) run(sources []Source, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	live := make([]Source, len(sources))
	copy(live, sources)

	for {
		if stopped(stopCh) {
			return
		}

		idle := true
		for i := 0; i < len(live); {
			events, err := live[i].ReadEvents()
			if err != nil {
				if !stopped(stopCh) {
					m.logger.Warn("Hotkey source unreadable; skipping it", "path", live[i].Path(), "err", err)
				}
				if m.holder == live[i] {
					m.holder = nil
				}
				live = append(live[:i], live[i+1:]...)
				continue
			}
			if len(events) > 0 {
				idle = false
			}
			for _, event := range events {
				m.handleEvent(live[i], event)
			}
			i++
		}

		if len(live) == 0 {
			m.logger.Warn("All hotkey sources failed; emergency stop key is inactive")
			return
		}
		if idle && !sleepWithStop(stopCh, m.cfg.PollInterval) {
			return
		}
	}
}

// handleEvent updates the held state and reports whether a press was dispatched.
// A release from any source clears the held state.
func (m *Monitor) handleEvent(src Source, event autoclicker.Event) bool {
	if event.Type != autoclicker.EventTypeKey || event.Code != m.cfg.Code {
		return false
	}
	switch event.Value {
	case 1:
		if m.holder != nil {
			return false
		}
		m.holder = src
		m.cfg.Dispatcher.Do(m.cfg.OnPress)
		return true
	case 0:
		m.holder = nil
	}
	return false
}

func (m *Monitor) closeSourcesAfter(doneCh <-chan struct{}, sources []Source) {
	<-doneCh
	if err := closeSources(sources); err != nil {
		m.logger.Debug("Closing hotkey sources", "err", err)
	}
}

func closeSources(sources []Source) error {
	var err error
	for _, src := range sources {
		err = multierr.Append(err, src.Close())
	}
	return err
}

func waitDone(doneCh <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-doneCh:
		return true
	case <-timer.C:
		return false
	}
}

func stopped(stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

func sleepWithStop(stopCh <-chan struct{}, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}
