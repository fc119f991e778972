package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/smartfriend/mortgage-advisor/internal/model"
)

func TestCreateAndExists(t *testing.T) {
	s := NewMemoryStore()

	id := s.Create()
	if id == "" {
		t.Fatal("Create returned empty id")
	}
	if !s.Exists(id) {
		t.Error("freshly created session should exist")
	}
	if s.Exists("nope") {
		t.Error("unknown id should not exist")
	}

	if id2 := s.Create(); id2 == id {
		t.Error("session ids must be unique")
	}
}

func TestFreshSessionHistoryEmpty(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create()

	hist, err := s.History(id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("fresh history has %d messages, want 0", len(hist))
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create()

	for i := 0; i < 10; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		if err := s.Append(id, model.Message{Role: role, Content: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	hist, err := s.History(id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 10 {
		t.Fatalf("history length = %d, want 10", len(hist))
	}
	for i, msg := range hist {
		if want := fmt.Sprintf("m%d", i); msg.Content != want {
			t.Errorf("history[%d] = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestUnknownSessionErrors(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Append("missing", model.Message{Role: model.RoleUser, Content: "hi"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Append err = %v, want ErrNotFound", err)
	}
	if _, err := s.History("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("History err = %v, want ErrNotFound", err)
	}
	if err := s.MergeUserData("missing", map[string]any{"income": 1.0}); !errors.Is(err, ErrNotFound) {
		t.Errorf("MergeUserData err = %v, want ErrNotFound", err)
	}
	if _, err := s.CreatedAt("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreatedAt err = %v, want ErrNotFound", err)
	}
}

func TestMergeUserData(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create()

	if err := s.MergeUserData(id, map[string]any{"income": 40000.0, "property_price": 2_000_000.0}); err != nil {
		t.Fatalf("MergeUserData: %v", err)
	}
	if err := s.MergeUserData(id, map[string]any{"income": 45000.0}); err != nil {
		t.Fatalf("MergeUserData: %v", err)
	}

	data, err := s.UserData(id)
	if err != nil {
		t.Fatalf("UserData: %v", err)
	}
	if data["income"] != 45000.0 {
		t.Errorf("income = %v, want later merge to win", data["income"])
	}
	if data["property_price"] != 2_000_000.0 {
		t.Errorf("property_price = %v, want earlier value retained", data["property_price"])
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	id := s.Create()
	_ = s.Append(id, model.Message{Role: model.RoleUser, Content: "original"})

	hist, _ := s.History(id)
	hist[0].Content = "mutated"

	again, _ := s.History(id)
	if again[0].Content != "original" {
		t.Error("mutating a returned history slice must not affect the store")
	}
}

func TestConcurrentDistinctSessions(t *testing.T) {
	s := NewMemoryStore()

	const sessions = 16
	const perSession = 50

	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = s.Create()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perSession; i++ {
				_ = s.Append(id, model.Message{Role: model.RoleUser, Content: fmt.Sprintf("m%d", i)})
				_, _ = s.History(id)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		hist, err := s.History(id)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(hist) != perSession {
			t.Fatalf("history length = %d, want %d", len(hist), perSession)
		}
		for i, msg := range hist {
			if want := fmt.Sprintf("m%d", i); msg.Content != want {
				t.Fatalf("session %s history[%d] = %q, want %q", id, i, msg.Content, want)
			}
		}
	}
}
