package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

func TestMachine_SetAndCurrent(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()

	if got := m.Current("light.x"); got != "" {
		t.Errorf("Current() = %q, want empty", got)
	}
	if err := m.Set(ctx, "light.x", "on", nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := m.Current("light.x"); got != "on" {
		t.Errorf("Current() = %q, want on", got)
	}

	rec, ok := m.Get("light.x")
	if !ok || rec.Context == nil || rec.LastChanged.IsZero() {
		t.Errorf("Get() = %+v, %v", rec, ok)
	}
}

func TestMachine_SetValidation(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()

	if err := m.Set(ctx, "Light X", "on", nil); !errors.Is(err, ErrInvalidEntityID) {
		t.Errorf("Set(bad id) error = %v, want ErrInvalidEntityID", err)
	}
	if err := m.Set(ctx, "light.x", "  ", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Set(empty state) error = %v, want ErrInvalidState", err)
	}
}

func TestMachine_WatchTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		sequence []string
		want     int
	}{
		{"off to on", "off", "on", []string{"off", "on", "off", "on"}, 2},
		{"on to off", "on", "off", []string{"off", "on", "off", "on"}, 1},
		{"initial on is not off to on", "off", "on", []string{"on"}, 0},
		{"unavailable to on ignored", "off", "on", []string{"unavailable", "on"}, 0},
		{"repeated state ignored", "off", "on", []string{"off", "on", "on"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			ctx := context.Background()

			count := 0
			detach := m.WatchTransition("light.x", tt.from, tt.to,
				func(context.Context, core.Transition) { count++ },
				core.WatchMetadata{PlatformType: "device"})
			defer detach()

			for _, s := range tt.sequence {
				if err := m.Set(ctx, "light.x", s, nil); err != nil {
					t.Fatalf("Set(%s) error = %v", s, err)
				}
			}
			if count != tt.want {
				t.Errorf("handler called %d times, want %d", count, tt.want)
			}
		})
	}
}

func TestMachine_WatchOtherEntityIgnored(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()
	_ = m.Set(ctx, "light.y", "off", nil)

	count := 0
	detach := m.WatchTransition("light.x", "off", "on",
		func(context.Context, core.Transition) { count++ }, core.WatchMetadata{})
	defer detach()

	_ = m.Set(ctx, "light.y", "on", nil)
	if count != 0 {
		t.Errorf("handler called %d times, want 0", count)
	}
}

func TestMachine_TransitionCarriesOrigin(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()
	_ = m.Set(ctx, "light.x", "off", nil)

	origin := core.NewContext("user-1", "")
	var got core.Transition
	detach := m.WatchTransition("light.x", "off", "on",
		func(_ context.Context, tr core.Transition) { got = tr }, core.WatchMetadata{})
	defer detach()

	_ = m.Set(ctx, "light.x", "on", origin)
	if got.Context != origin || got.From != "off" || got.To != "on" || got.At.IsZero() {
		t.Errorf("transition = %+v", got)
	}
}

func TestMachine_DetachIdempotent(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()
	_ = m.Set(ctx, "light.x", "off", nil)

	count := 0
	detach := m.WatchTransition("light.x", "off", "on",
		func(context.Context, core.Transition) { count++ }, core.WatchMetadata{})
	keep := m.WatchTransition("light.x", "off", "on",
		func(context.Context, core.Transition) {}, core.WatchMetadata{})
	defer keep()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detach()
		}()
	}
	wg.Wait()

	if n := m.WatchCount(); n != 1 {
		t.Errorf("WatchCount() = %d, want 1", n)
	}

	_ = m.Set(ctx, "light.x", "on", nil)
	if count != 0 {
		t.Errorf("detached handler called %d times", count)
	}
}

func TestMachine_HandlerPanicRecovered(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()
	_ = m.Set(ctx, "light.x", "off", nil)

	detach1 := m.WatchTransition("light.x", "off", "on",
		func(context.Context, core.Transition) { panic("boom") }, core.WatchMetadata{})
	defer detach1()

	called := false
	detach2 := m.WatchTransition("light.x", "off", "on",
		func(context.Context, core.Transition) { called = true }, core.WatchMetadata{})
	defer detach2()

	if err := m.Set(ctx, "light.x", "on", nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !called {
		t.Error("second handler not called after first panicked")
	}
}

func TestMachine_OnChange(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()

	var seen []string
	detach := m.OnChange(func(tr core.Transition) { seen = append(seen, tr.EntityID+"="+tr.To) })

	_ = m.Set(ctx, "light.x", "on", nil)
	_ = m.Set(ctx, "light.x", "on", nil)
	detach()
	_ = m.Set(ctx, "light.x", "off", nil)

	if len(seen) != 1 || seen[0] != "light.x=on" {
		t.Errorf("OnChange saw %v", seen)
	}
}

func TestMachine_All(t *testing.T) {
	m := NewMachine()
	ctx := context.Background()
	_ = m.Set(ctx, "switch.b", "on", nil)
	_ = m.Set(ctx, "light.a", "off", nil)

	all := m.All()
	if len(all) != 2 || all[0].EntityID != "light.a" || all[1].EntityID != "switch.b" {
		t.Errorf("All() = %+v", all)
	}
}
