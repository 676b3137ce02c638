package workflow

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fpang/virtual-tryon/internal/garment"
)

func TestRegistrySessionsAreIndependent(t *testing.T) {
	r := NewRegistry(time.Hour)
	a := r.Create()
	b := r.Create()
	if a == b {
		t.Fatal("ids must be unique")
	}

	if err := r.Update(a, func(s *Session) error {
		s.ToggleGarment(garment.Top)
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	r.View(b, func(s *Session) {
		if !s.Garments.Empty() {
			t.Error("session b saw session a's selection")
		}
	})
}

func TestRegistryNotFoundAndDelete(t *testing.T) {
	r := NewRegistry(time.Hour)
	if err := r.View("missing", func(*Session) {}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	id := r.Create()
	if !r.Delete(id) {
		t.Error("Delete should report existing session")
	}
	if r.Delete(id) {
		t.Error("second Delete should report false")
	}
}

func TestRegistryExpiry(t *testing.T) {
	r := NewRegistry(time.Minute)
	now := time.Now()
	r.now = func() time.Time { return now }

	old := r.Create()
	now = now.Add(30 * time.Second)
	fresh := r.Create()

	now = now.Add(45 * time.Second)
	if err := r.View(old, func(*Session) {}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected expired session, got %v", err)
	}
	if err := r.View(fresh, func(*Session) {}); err != nil {
		t.Errorf("fresh session expired early: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after sweep", r.Len())
	}
}

func TestRegistryUpdateSerializes(t *testing.T) {
	r := NewRegistry(time.Hour)
	id := r.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Update(id, func(s *Session) error {
				s.SetGenerationResult(GenerationResult{})
				return nil
			})
		}()
	}
	wg.Wait()

	r.View(id, func(s *Session) {
		if s.AutoDesignCounter != 51 {
			t.Errorf("counter = %d, want 51", s.AutoDesignCounter)
		}
	})
}
