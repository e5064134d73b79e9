package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/natea/conversational-reflection/internal/history"
)

func utterance(role history.Role, text string) history.Utterance {
	return history.Utterance{Role: role, Text: text, Timestamp: time.Now()}
}

func TestMemoryRecorder_RecordAndRecent(t *testing.T) {
	t.Parallel()

	r := history.NewMemoryRecorder(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := r.Record(ctx, utterance(history.RoleUser, fmt.Sprintf("msg %d", i))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got := r.Recent(2)
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d records", len(got))
	}
	if got[0].Text != "msg 1" || got[1].Text != "msg 2" {
		t.Errorf("Recent order wrong: %q, %q", got[0].Text, got[1].Text)
	}
}

func TestMemoryRecorder_EvictsOldest(t *testing.T) {
	t.Parallel()

	r := history.NewMemoryRecorder(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := r.Record(ctx, utterance(history.RoleAssistant, fmt.Sprintf("msg %d", i))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got := r.Recent(10)
	if len(got) != 3 {
		t.Fatalf("expected capacity 3, got %d records", len(got))
	}
	if got[0].Text != "msg 2" {
		t.Errorf("oldest surviving record = %q, want %q", got[0].Text, "msg 2")
	}
	if got[2].Text != "msg 4" {
		t.Errorf("newest record = %q, want %q", got[2].Text, "msg 4")
	}
}

func TestMemoryRecorder_DefaultCapacity(t *testing.T) {
	t.Parallel()

	r := history.NewMemoryRecorder(0)
	ctx := context.Background()
	if err := r.Record(ctx, utterance(history.RoleUser, "hello")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := r.Recent(1); len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("Recent = %v", got)
	}
}

func TestMemoryRecorder_RecentMoreThanStored(t *testing.T) {
	t.Parallel()

	r := history.NewMemoryRecorder(10)
	if got := r.Recent(5); len(got) != 0 {
		t.Errorf("empty recorder returned %d records", len(got))
	}
}

func TestMemoryRecorder_RecentNegative(t *testing.T) {
	t.Parallel()

	r := history.NewMemoryRecorder(10)
	if err := r.Record(context.Background(), history.Utterance{Role: history.RoleUser, Text: "hello"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := r.Recent(-1); len(got) != 0 {
		t.Errorf("Recent(-1) returned %d records, want 0", len(got))
	}
}

func TestMemoryRecorder_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	r := history.NewMemoryRecorder(100)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				_ = r.Record(ctx, utterance(history.RoleUser, "concurrent"))
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if got := len(r.Recent(200)); got != 100 {
		t.Errorf("stored %d records, want 100", got)
	}
}
