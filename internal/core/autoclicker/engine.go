package autoclicker

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultJoinTimeout = 500 * time.Millisecond
	maxIntervalSeconds = float64(math.MaxInt64) / float64(time.Second)
)

type EngineConfig struct {
	Interval    time.Duration
	Button      Button
	JoinTimeout time.Duration
	// OnStatus is called with the new running state after every transition.
	// It runs while the transition is still serialized, so it must not block.
	OnStatus func(running bool)
}

// Engine clicks Output once per interval on its own goroutine until stopped.
type Engine struct {
	output      Clicker
	logger      Logger
	onStatus    func(running bool)
	joinTimeout time.Duration

	intervalNanos atomic.Int64
	button        atomic.Uint32

	mu      sync.Mutex
	running atomic.Bool
	killCh  chan struct{}
	doneCh  chan struct{}

	clicks  atomic.Uint64
	dropped atomic.Uint64
}

func NewEngine(cfg EngineConfig, output Clicker, logger Logger) (*Engine, error) {
	if output == nil {
		return nil, fmt.Errorf("output is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Button == 0 {
		cfg.Button = ButtonLeft
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}

	e := &Engine{
		output:      output,
		logger:      logger,
		onStatus:    cfg.OnStatus,
		joinTimeout: cfg.JoinTimeout,
	}
	e.SetInterval(cfg.Interval)
	e.SetButton(cfg.Button)
	return e, nil
}

// SetInterval stores d, raised to MinInterval. The loop picks it up on its next cycle.
func (e *Engine) SetInterval(d time.Duration) {
	if d < MinInterval {
		d = MinInterval
	}
	e.intervalNanos.Store(int64(d))
}

func (e *Engine) SetIntervalSeconds(seconds float64) {
	switch {
	case math.IsNaN(seconds) || seconds < MinInterval.Seconds():
		e.SetInterval(MinInterval)
	case seconds >= maxIntervalSeconds:
		e.SetInterval(time.Duration(math.MaxInt64))
	default:
		e.SetInterval(time.Duration(seconds * float64(time.Second)))
	}
}

func (e *Engine) Interval() time.Duration {
	return time.Duration(e.intervalNanos.Load())
}

func (e *Engine) SetButton(button Button) {
	e.button.Store(uint32(button))
}

func (e *Engine) Button() Button {
	return Button(e.button.Load())
}

func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

func (e *Engine) Stats() Stats {
	return Stats{Clicks: e.clicks.Load(), Dropped: e.dropped.Load()}
}

// Start launches the click loop. It reports false if the engine was already running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		return false
	}
	killCh := make(chan struct{})
	doneCh := make(chan struct{})
	e.killCh = killCh
	e.doneCh = doneCh
	e.running.Store(true)
	go e.clickLoop(killCh, doneCh)

	e.logger.Info("Clicking started", "interval", e.Interval(), "button", e.Button().String())
	e.notify(true)
	return true
}

// Stop requests the loop to exit and waits for it up to the join timeout.
// It reports false if the engine was not running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() {
		return false
	}
	e.running.Store(false)
	close(e.killCh)

	timer := time.NewTimer(e.joinTimeout)
	defer timer.Stop()
	select {
	case <-e.doneCh:
	case <-timer.C:
		e.logger.Warn("Click loop did not exit in time", "timeout", e.joinTimeout)
	}

	e.logger.Info("Clicking stopped", "clicks", e.clicks.Load(), "dropped", e.dropped.Load())
	e.notify(false)
	return true
}

func (e *Engine) notify(running bool) {
	if e.onStatus != nil {
		e.onStatus(running)
	}
}

func (e *Engine) clickLoop(killCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-killCh:
			return
		default:
		}

		cycleStart := time.Now()
		e.clickOnce()
		remaining := e.Interval() - time.Since(cycleStart)
		if !waitOrKill(killCh, remaining) {
			return
		}
	}
}

func (e *Engine) clickOnce() {
	if err := e.output.Click(e.Button()); err != nil {
		e.dropped.Add(1)
		e.logger.Debug("Click dropped", "err", err)
		return
	}
	e.clicks.Add(1)
}

// waitOrKill sleeps for d unless killCh closes first. It reports whether the loop
// should continue.
func waitOrKill(killCh <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-killCh:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-killCh:
		return false
	case <-timer.C:
		return true
	}
}
