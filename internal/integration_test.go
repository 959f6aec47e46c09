package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/blinkd/internal/blink"
	"github.com/sweeney/blinkd/internal/gpio"
	"github.com/sweeney/blinkd/internal/logic"
	"github.com/sweeney/blinkd/internal/mqtt"
	"github.com/sweeney/blinkd/internal/status"
	"github.com/sweeney/blinkd/internal/web"
)

// pipe wires a module to the tracker and publish queue the way the daemon does.
type pipe struct {
	tracker *status.Tracker
	queue   *mqtt.Queue
	now     func() time.Time
}

func (p *pipe) Fired(level bool, firing uint64) {
	p.tracker.RecordFiring(level, firing)
	p.queue.Enqueue(logic.LevelEvent(p.now(), level, firing))
}

func (p *pipe) Edge(count uint64) {
	p.tracker.RecordEdge(count)
	p.queue.Enqueue(logic.EdgeEvent(p.now(), count))
}

type stack struct {
	platform  *gpio.FakePlatform
	clock     *blink.ManualClock
	publisher *mqtt.FakePublisher
	queue     *mqtt.Queue
	tracker   *status.Tracker
	module    *blink.Module
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log, _ := test.NewNullLogger()
	s := &stack{
		platform:  gpio.NewFakePlatform(),
		clock:     blink.NewManualClock(),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), status.Config{}),
	}
	s.queue = mqtt.NewQueue(s.publisher, 64, log)
	now := func() time.Time { return time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC) }
	s.module = blink.New(blink.Options{
		Platform: s.platform,
		Clock:    s.clock,
		Log:      log,
		Observer: &pipe{tracker: s.tracker, queue: s.queue, now: now},
	})
	t.Cleanup(func() {
		s.module.Unload()
		s.queue.Close()
	})
	return s
}

// TestIntegrationFullFlow drives firings and edges through to MQTT payloads.
func TestIntegrationFullFlow(t *testing.T) {
	s := newStack(t)
	if err := s.module.Load(blink.Config{}); err != nil {
		t.Fatalf("load: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !s.clock.Fire() {
			t.Fatalf("firing %d did not happen", i+1)
		}
	}
	for i := 0; i < 4; i++ {
		if !s.platform.Edge(17) {
			t.Fatalf("edge %d not delivered", i+1)
		}
	}

	s.module.Unload()
	s.queue.Close()

	if s.platform.Held() != 0 {
		t.Errorf("expected nothing held after unload, got %d", s.platform.Held())
	}
	if s.platform.Level(16) || s.platform.Level(18) {
		t.Error("outputs should be off after unload")
	}

	if len(s.publisher.Events) != 7 {
		t.Fatalf("expected 7 events, got %d", len(s.publisher.Events))
	}
	wantLevels := []logic.State{logic.StateOff, logic.StateOn, logic.StateOff}
	for i, want := range wantLevels {
		e := s.publisher.Events[i]
		if e.Type != logic.EventLevel || e.Level != want || e.Firing != uint64(i+1) {
			t.Errorf("event %d: got %+v, want LEVEL %s firing %d", i, e, want, i+1)
		}
	}
	for i := 0; i < 4; i++ {
		e := s.publisher.Events[3+i]
		if e.Type != logic.EventEdge || e.Edges != uint64(i+1) {
			t.Errorf("event %d: got %+v, want EDGE %d", 3+i, e, i+1)
		}
	}

	for i, payload := range s.publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Blink.Timestamp != "2026-01-01T12:00:01Z" {
			t.Errorf("payload %d: timestamp %q", i, parsed.Blink.Timestamp)
		}
		if parsed.Blink.Event == "" {
			t.Errorf("payload %d: missing event", i)
		}
	}

	snap := s.tracker.Snapshot()
	if snap.Level != logic.StateOff || snap.Counts.Firings != 3 || snap.Counts.Edges != 4 {
		t.Errorf("tracker: got level %s counts %+v", snap.Level, snap.Counts)
	}
	if s.module.EdgeCount() != 4 {
		t.Errorf("EdgeCount after unload: got %d, want 4", s.module.EdgeCount())
	}
}

// TestIntegrationNoEventsBeforeFirstFiring checks that loading alone publishes nothing.
func TestIntegrationNoEventsBeforeFirstFiring(t *testing.T) {
	s := newStack(t)
	if err := s.module.Load(blink.Config{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.queue.Close()

	if len(s.publisher.Events) != 0 {
		t.Errorf("expected no events, got %d", len(s.publisher.Events))
	}
	if s.platform.Level(16) || s.platform.Level(18) {
		t.Error("outputs should start off")
	}
}

func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	s := newStack(t)
	s.publisher.PublishError = errors.New("connection lost")
	if err := s.module.Load(blink.Config{}); err != nil {
		t.Fatalf("load: %v", err)
	}

	s.clock.Fire()
	s.platform.Edge(17)
	s.clock.Fire()

	if got := s.module.Snapshot().Firings; got != 2 {
		t.Errorf("firings: got %d, want 2", got)
	}
	if got := s.module.EdgeCount(); got != 1 {
		t.Errorf("edges: got %d, want 1", got)
	}
}

func TestIntegrationLoadFailureLeavesNothingHeld(t *testing.T) {
	s := newStack(t)
	s.platform.NoInterrupt[17] = true

	err := s.module.Load(blink.Config{})
	if !errors.Is(err, blink.ErrInterruptMappingFailed) {
		t.Fatalf("expected ErrInterruptMappingFailed, got %v", err)
	}
	if s.platform.Held() != 0 {
		t.Errorf("expected nothing held, got %d", s.platform.Held())
	}
	if s.platform.Edge(17) {
		t.Error("no handler should be registered")
	}
}

// TestIntegrationStatusPage checks that counts reach the HTTP JSON endpoint.
func TestIntegrationStatusPage(t *testing.T) {
	s := newStack(t)
	srv := httptest.NewServer(web.New(":0", s.tracker).Handler())
	defer srv.Close()

	if err := s.module.Load(blink.Config{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	snap := s.module.Snapshot()
	s.tracker.Update(snap.Running, logic.StateOf(snap.Level), logic.Counts{})
	s.clock.Fire()
	s.clock.Fire()
	s.platform.Edge(17)
	s.platform.Edge(17)

	resp, err := http.Get(srv.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sj.Status.Running || sj.Status.Level != "ON" {
		t.Errorf("status: running %v level %q", sj.Status.Running, sj.Status.Level)
	}
	if sj.Status.Counts.Firings != 2 || sj.Status.Counts.Edges != 2 {
		t.Errorf("counts: got %+v", sj.Status.Counts)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("healthz: got %d, want 200", health.StatusCode)
	}
}
