package hotkey

import (
	"errors"
	"sync"
	"testing"
	"time"

	"wayclick/internal/core/autoclicker"
)

const testCode = autoclicker.KeyF8Code

type scriptedSource struct {
	path string

	mu      sync.Mutex
	pending []autoclicker.Event
	err      error
	reads    int
	failures int
	closed   bool
}

func (s *scriptedSource) Path() string { return s.path }

func (s *scriptedSource) ReadEvents() ([]autoclicker.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		s.failures++
		return nil, s.err
	}
	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *scriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *scriptedSource) push(events ...autoclicker.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, events...)
}

func (s *scriptedSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *scriptedSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *scriptedSource) failedReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// blockingSource parks its first read until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

func newBlockingSource() *blockingSource {
	return &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingSource) Path() string { return "/dev/input/event8" }

func (b *blockingSource) ReadEvents() ([]autoclicker.Event, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil, nil
}

func (b *blockingSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *blockingSource) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (s *scriptedSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// manualDispatcher queues callbacks until drain is called, like a UI loop.
type manualDispatcher struct {
	mu    sync.Mutex
	queue []func()
}

func (d *manualDispatcher) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, fn)
}

func (d *manualDispatcher) drain() int {
	d.mu.Lock()
	queue := d.queue
	d.queue = nil
	d.mu.Unlock()
	for _, fn := range queue {
		fn()
	}
	return len(queue)
}

func (d *manualDispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func key(value int32) autoclicker.Event {
	return autoclicker.Event{Type: autoclicker.EventTypeKey, Code: testCode, Value: value}
}

func newTestMonitor(t *testing.T, dispatcher *manualDispatcher, onPress func(), sources ...Source) *Monitor {
	t.Helper()
	monitor, err := NewMonitor(Config{
		Code: testCode,
		Discover: func(code uint16) ([]Source, error) {
			if code != testCode {
				t.Errorf("Discover() code = %d, want %d", code, testCode)
			}
			return sources, nil
		},
		Dispatcher:   dispatcher,
		OnPress:      onPress,
		PollInterval: 2 * time.Millisecond,
	}, noopLogger{})
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	t.Cleanup(monitor.Stop)
	return monitor
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestHandleEventFiresOnRisingEdgeOnly(t *testing.T) {
	dispatcher := &manualDispatcher{}
	monitor := newTestMonitor(t, dispatcher, func() {})
	src := &scriptedSource{path: "/dev/input/event3"}

	if !monitor.handleEvent(src, key(1)) {
		t.Fatalf("expected dispatch on first press")
	}
	if monitor.handleEvent(src, key(1)) {
		t.Fatalf("expected no dispatch for repeated press while held")
	}
	if monitor.handleEvent(src, key(2)) {
		t.Fatalf("expected no dispatch for autorepeat")
	}
	monitor.handleEvent(src, key(0))
	if !monitor.handleEvent(src, key(1)) {
		t.Fatalf("expected dispatch after release and new press")
	}
	if got := dispatcher.pending(); got != 2 {
		t.Fatalf("dispatched %d callbacks, want 2", got)
	}
}

func TestHandleEventIgnoresOtherCodes(t *testing.T) {
	dispatcher := &manualDispatcher{}
	monitor := newTestMonitor(t, dispatcher, func() {})
	src := &scriptedSource{path: "/dev/input/event3"}

	monitor.handleEvent(src, autoclicker.Event{Type: autoclicker.EventTypeKey, Code: testCode + 1, Value: 1})
	monitor.handleEvent(src, autoclicker.Event{Type: autoclicker.EventTypeSyn, Code: testCode, Value: 1})
	if got := dispatcher.pending(); got != 0 {
		t.Fatalf("dispatched %d callbacks for unrelated events", got)
	}
}

func TestMonitorDispatchesPressFromSources(t *testing.T) {
	dispatcher := &manualDispatcher{}
	var (
		mu    sync.Mutex
		calls int
	)
	onPress := func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	keyboard := &scriptedSource{path: "/dev/input/event3"}
	other := &scriptedSource{path: "/dev/input/event7"}
	monitor := newTestMonitor(t, dispatcher, onPress, keyboard, other)

	monitor.Start()
	if !monitor.Active() {
		t.Fatalf("expected monitor to be active")
	}
	if got := monitor.Sources(); got != 2 {
		t.Fatalf("Sources() = %d, want 2", got)
	}

	keyboard.push(key(1), key(1), key(1))
	waitFor(t, "first press", func() bool { return dispatcher.pending() == 1 })

	mu.Lock()
	direct := calls
	mu.Unlock()
	if direct != 0 {
		t.Fatalf("press callback ran on the monitor goroutine")
	}

	// Held across sources: a press on another device while held is not a new edge.
	other.push(key(1), key(0), key(1))
	waitFor(t, "second press", func() bool { return dispatcher.pending() == 2 })

	dispatcher.drain()
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("press callback ran %d times, want 2", calls)
	}
}

func TestMonitorInertWithoutSources(t *testing.T) {
	dispatcher := &manualDispatcher{}
	monitor := newTestMonitor(t, dispatcher, func() {})

	monitor.Start()
	if monitor.Active() {
		t.Fatalf("expected inert monitor")
	}
	monitor.Stop()
	monitor.Stop()
}

func TestMonitorInertOnDiscoveryError(t *testing.T) {
	monitor, err := NewMonitor(Config{
		Code: testCode,
		Discover: func(uint16) ([]Source, error) {
			return nil, errors.New("permission denied")
		},
		Dispatcher: &manualDispatcher{},
		OnPress:    func() {},
	}, noopLogger{})
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	monitor.Start()
	if monitor.Active() {
		t.Fatalf("expected inert monitor after discovery error")
	}
	monitor.Stop()
}

func TestMonitorSkipsFailedSource(t *testing.T) {
	dispatcher := &manualDispatcher{}
	broken := &scriptedSource{path: "/dev/input/event1"}
	healthy := &scriptedSource{path: "/dev/input/event2"}
	broken.fail(errors.New("no such device"))
	monitor := newTestMonitor(t, dispatcher, func() {}, broken, healthy)

	monitor.Start()
	waitFor(t, "healthy source polling", func() bool { return healthy.readCount() > 3 })
	if got := broken.readCount(); got != 1 {
		t.Fatalf("failed source read %d times, want 1", got)
	}

	healthy.push(key(1))
	waitFor(t, "press from healthy source", func() bool { return dispatcher.pending() == 1 })
}

func TestMonitorStopReleasesSourcesAndIsIdempotent(t *testing.T) {
	src := &scriptedSource{path: "/dev/input/event4"}
	monitor := newTestMonitor(t, &manualDispatcher{}, func() {}, src)

	monitor.Start()
	start := time.Now()
	monitor.Stop()
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Stop() took %v", elapsed)
	}
	if !src.isClosed() {
		t.Fatalf("expected source to be closed")
	}
	if monitor.Active() || monitor.Sources() != 0 {
		t.Fatalf("expected monitor inactive after stop")
	}
	monitor.Stop()
}

func TestMonitorRestartRediscovers(t *testing.T) {
	var discoveries int
	monitor, err := NewMonitor(Config{
		Code: testCode,
		Discover: func(uint16) ([]Source, error) {
			discoveries++
			return []Source{&scriptedSource{path: "/dev/input/event5"}}, nil
		},
		Dispatcher: &manualDispatcher{},
		OnPress:    func() {},
	}, noopLogger{})
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	monitor.Start()
	monitor.Start()
	monitor.Stop()
	monitor.Start()
	monitor.Stop()
	if discoveries != 2 {
		t.Fatalf("discovered %d times, want 2", discoveries)
	}
}

func TestDroppedSourceReleasesHeldKey(t *testing.T) {
	dispatcher := &manualDispatcher{}
	unplugged := &scriptedSource{path: "/dev/input/event1"}
	spare := &scriptedSource{path: "/dev/input/event2"}
	monitor := newTestMonitor(t, dispatcher, func() {}, unplugged, spare)

	monitor.Start()
	unplugged.push(key(1))
	waitFor(t, "press on first keyboard", func() bool { return dispatcher.pending() == 1 })

	// The keyboard disappears while the key is still down.
	unplugged.fail(errors.New("no such device"))
	waitFor(t, "source dropped", func() bool { return unplugged.failedReads() == 1 })

	spare.push(key(1))
	waitFor(t, "press on second keyboard", func() bool { return dispatcher.pending() == 2 })
}

func TestStopIsBoundedAndDefersCloseOfBusySource(t *testing.T) {
	busy := newBlockingSource()
	fresh := &scriptedSource{path: "/dev/input/event6"}
	var (
		mu          sync.Mutex
		discoveries int
	)
	monitor, err := NewMonitor(Config{
		Code: testCode,
		Discover: func(uint16) ([]Source, error) {
			mu.Lock()
			defer mu.Unlock()
			discoveries++
			if discoveries == 1 {
				return []Source{busy}, nil
			}
			return []Source{fresh}, nil
		},
		Dispatcher:   &manualDispatcher{},
		OnPress:      func() {},
		PollInterval: 2 * time.Millisecond,
		StopTimeout:  30 * time.Millisecond,
	}, noopLogger{})
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	t.Cleanup(monitor.Stop)

	monitor.Start()
	select {
	case <-busy.entered:
	case <-time.After(time.Second):
		t.Fatalf("monitor never read the source")
	}

	start := time.Now()
	monitor.Stop()
	elapsed := time.Since(start)
	if elapsed < 20*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Fatalf("Stop() took %v, want about the 30ms stop timeout", elapsed)
	}
	if busy.isClosed() {
		t.Fatalf("source closed while the monitor goroutine was still reading it")
	}

	// A restart while the old goroutine is stuck stays inert.
	monitor.Start()
	if monitor.Active() {
		t.Fatalf("monitor started a second goroutine next to a stuck one")
	}
	monitor.Stop()

	close(busy.release)
	waitFor(t, "deferred close", busy.isClosed)

	monitor.Start()
	if !monitor.Active() {
		t.Fatalf("expected restart to succeed once the old goroutine exited")
	}
	mu.Lock()
	defer mu.Unlock()
	if discoveries != 2 {
		t.Fatalf("discovered %d times, want 2", discoveries)
	}
}

type recordingLogger struct {
	noopLogger
	mu    sync.Mutex
	infos []string
}

func (r *recordingLogger) Info(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func TestStartLogsEachSourceOnce(t *testing.T) {
	logger := &recordingLogger{}
	sources := []Source{
		&scriptedSource{path: "/dev/input/event3"},
		&scriptedSource{path: "/dev/input/event4"},
	}
	monitor, err := NewMonitor(Config{
		Code:       testCode,
		Discover:   func(uint16) ([]Source, error) { return sources, nil },
		Dispatcher: &manualDispatcher{},
		OnPress:    func() {},
	}, logger)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	monitor.Start()
	monitor.Stop()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	watching := 0
	for _, msg := range logger.infos {
		if msg == "Watching hotkey source" {
			watching++
		}
	}
	if watching != len(sources) {
		t.Fatalf("logged %d watch lines for %d sources", watching, len(sources))
	}
}
