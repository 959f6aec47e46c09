package gpio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFakePlatformRequestOutput(t *testing.T) {
	f := NewFakePlatform()

	l, err := f.RequestOutput(16, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Pin() != 16 {
		t.Errorf("Pin: got %d, want 16", l.Pin())
	}
	if !f.Level(16) {
		t.Error("expected initial level on")
	}

	if err := l.SetValue(false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v, err := l.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v {
		t.Error("expected level off after SetValue(false)")
	}
}

func TestFakePlatformDoubleClaim(t *testing.T) {
	f := NewFakePlatform()

	if _, err := f.RequestOutput(16, false); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := f.RequestInput(16)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("second claim: got %v, want ErrBusy", err)
	}
}

func TestFakePlatformOutOfRange(t *testing.T) {
	f := NewFakePlatform()

	_, err := f.RequestOutput(f.Lines, false)
	if !errors.Is(err, ErrInvalidPin) {
		t.Errorf("got %v, want ErrInvalidPin", err)
	}
	_, err = f.RequestInput(-1)
	if !errors.Is(err, ErrInvalidPin) {
		t.Errorf("got %v, want ErrInvalidPin", err)
	}
}

func TestFakePlatformClaimError(t *testing.T) {
	f := NewFakePlatform()
	f.ClaimErrors[18] = errors.New("simulated error")

	_, err := f.RequestOutput(18, false)
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if f.Held() != 0 {
		t.Errorf("Held: got %d, want 0", f.Held())
	}
}

func TestFakePlatformCloseIsIdempotent(t *testing.T) {
	f := NewFakePlatform()
	l, _ := f.RequestOutput(16, false)

	if err := l.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if f.IsHeld(16) {
		t.Error("line should not be held after close")
	}
	if err := l.SetValue(true); !errors.Is(err, ErrClosed) {
		t.Errorf("SetValue after close: got %v, want ErrClosed", err)
	}

	releases := 0
	for _, op := range f.Ops() {
		if op == "release 16" {
			releases++
		}
	}
	if releases != 1 {
		t.Errorf("expected 1 release op, got %d", releases)
	}
}

func TestFakePlatformInterrupt(t *testing.T) {
	f := NewFakePlatform()
	if _, err := f.RequestInput(17); err != nil {
		t.Fatalf("RequestInput: %v", err)
	}

	irq, err := f.MapInterrupt(17)
	if err != nil {
		t.Fatalf("MapInterrupt: %v", err)
	}
	if irq == 17 {
		t.Error("fake irq should differ from the pin number")
	}

	count := 0
	intr, err := f.RegisterInterrupt(irq, func() { count++ })
	if err != nil {
		t.Fatalf("RegisterInterrupt: %v", err)
	}
	if intr.IRQ() != irq {
		t.Errorf("IRQ: got %d, want %d", intr.IRQ(), irq)
	}

	f.Edge(17)
	f.Edge(17)
	if count != 2 {
		t.Errorf("count: got %d, want 2", count)
	}

	if err := intr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.Edge(17) {
		t.Error("handler ran after unregister")
	}
	if count != 2 {
		t.Errorf("count after unregister: got %d, want 2", count)
	}
}

func TestFakePlatformMapRequiresInput(t *testing.T) {
	f := NewFakePlatform()

	if _, err := f.MapInterrupt(17); !errors.Is(err, ErrNoInterrupt) {
		t.Errorf("unclaimed: got %v, want ErrNoInterrupt", err)
	}

	f.RequestOutput(16, false)
	if _, err := f.MapInterrupt(16); !errors.Is(err, ErrNoInterrupt) {
		t.Errorf("output: got %v, want ErrNoInterrupt", err)
	}

	f.RequestInput(17)
	f.NoInterrupt[17] = true
	if _, err := f.MapInterrupt(17); !errors.Is(err, ErrNoInterrupt) {
		t.Errorf("no mapping: got %v, want ErrNoInterrupt", err)
	}
}

func TestFakePlatformRegisterTwice(t *testing.T) {
	f := NewFakePlatform()
	f.RequestInput(17)
	irq, _ := f.MapInterrupt(17)

	if _, err := f.RegisterInterrupt(irq, func() {}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := f.RegisterInterrupt(irq, func() {}); !errors.Is(err, ErrBusy) {
		t.Errorf("second register: got %v, want ErrBusy", err)
	}
}

// TestFakePlatformUnregisterWaitsForHandler checks that Close blocks until
// an in-flight handler has returned.
func TestFakePlatformUnregisterWaitsForHandler(t *testing.T) {
	f := NewFakePlatform()
	f.RequestInput(17)
	irq, _ := f.MapInterrupt(17)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	returned := false
	intr, _ := f.RegisterInterrupt(irq, func() {
		close(entered)
		<-release
		mu.Lock()
		returned = true
		mu.Unlock()
	})

	go f.Edge(17)
	<-entered

	closed := make(chan struct{})
	go func() {
		intr.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while handler was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-closed

	mu.Lock()
	defer mu.Unlock()
	if !returned {
		t.Error("handler had not returned when Close returned")
	}
}

func TestFakePlatformOpsOrder(t *testing.T) {
	f := NewFakePlatform()
	out, _ := f.RequestOutput(16, false)
	in, _ := f.RequestInput(17)
	out.SetValue(true)
	in.Close()
	out.Close()

	want := []string{"output 16 off", "input 17", "write 16 on", "release 17", "release 16"}
	got := f.Ops()
	if len(got) != len(want) {
		t.Fatalf("ops: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op %d: got %q, want %q", i, got[i], want[i])
		}
	}

	f.ResetOps()
	if len(f.Ops()) != 0 {
		t.Error("expected empty ops after ResetOps")
	}
}
