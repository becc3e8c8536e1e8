// Package storetest provides a conformance suite for conversation.Store
// implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/serhrag/ragchat/internal/conversation"
)

// Run exercises the Store contract against stores built by newStore.
// Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) conversation.Store) {
	t.Helper()

	t.Run("GetUnknown", func(t *testing.T) {
		s := newStore(t)
		msgs, ok, err := s.Get(context.Background(), "missing")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok || len(msgs) != 0 {
			t.Errorf("Get(missing) = %v, %v, want empty, false", msgs, ok)
		}
		if n, _ := s.Len(context.Background()); n != 0 {
			t.Errorf("Len() = %d, want 0 (Get must not create)", n)
		}
	})

	t.Run("AppendPreservesOrder", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if err := s.Append(ctx, "c1",
			conversation.Message{Role: conversation.RoleUser, Content: "olá"},
			conversation.Message{Role: conversation.RoleAssistant, Content: "oi"},
		); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if err := s.Append(ctx, "c1", conversation.Message{Role: conversation.RoleUser, Content: "de novo"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		msgs, ok, err := s.Get(ctx, "c1")
		if err != nil || !ok {
			t.Fatalf("Get() = _, %v, %v", ok, err)
		}
		want := []conversation.Message{
			{Role: conversation.RoleUser, Content: "olá"},
			{Role: conversation.RoleAssistant, Content: "oi"},
			{Role: conversation.RoleUser, Content: "de novo"},
		}
		if len(msgs) != len(want) {
			t.Fatalf("len(msgs) = %d, want %d", len(msgs), len(want))
		}
		for i := range want {
			if msgs[i] != want[i] {
				t.Errorf("msgs[%d] = %+v, want %+v", i, msgs[i], want[i])
			}
		}
	})

	t.Run("AppendRejectsInvalidBatch", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		err := s.Append(ctx, "c1",
			conversation.Message{Role: conversation.RoleUser, Content: "ok"},
			conversation.Message{Role: "system", Content: "bad"},
		)
		if !errors.Is(err, conversation.ErrInvalidMessage) {
			t.Fatalf("Append() error = %v, want ErrInvalidMessage", err)
		}
		if _, ok, _ := s.Get(ctx, "c1"); ok {
			t.Error("rejected batch must not create the conversation")
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_ = s.Append(ctx, "c1", conversation.Message{Role: conversation.RoleUser, Content: "original"})

		msgs, _, _ := s.Get(ctx, "c1")
		msgs[0].Content = "mutated"

		again, _, _ := s.Get(ctx, "c1")
		if again[0].Content != "original" {
			t.Errorf("stored content = %q, want %q", again[0].Content, "original")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_ = s.Append(ctx, "c1", conversation.Message{Role: conversation.RoleUser, Content: "x"})

		ok, err := s.Delete(ctx, "c1")
		if err != nil || !ok {
			t.Fatalf("Delete(existing) = %v, %v, want true, nil", ok, err)
		}
		if _, found, _ := s.Get(ctx, "c1"); found {
			t.Error("conversation still present after Delete")
		}
		ok, err = s.Delete(ctx, "c1")
		if err != nil || ok {
			t.Errorf("Delete(missing) = %v, %v, want false, nil", ok, err)
		}
	})

	t.Run("ListSortedWithCounts", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_ = s.Append(ctx, "b",
			conversation.Message{Role: conversation.RoleUser, Content: "1"},
			conversation.Message{Role: conversation.RoleAssistant, Content: "2"},
		)
		_ = s.Append(ctx, "a", conversation.Message{Role: conversation.RoleUser, Content: "1"})

		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want := []conversation.Summary{{ID: "a", MessageCount: 1}, {ID: "b", MessageCount: 2}}
		if len(list) != len(want) {
			t.Fatalf("List() = %+v, want %+v", list, want)
		}
		for i := range want {
			if list[i] != want[i] {
				t.Errorf("List()[%d] = %+v, want %+v", i, list[i], want[i])
			}
		}
		if n, _ := s.Len(ctx); n != 2 {
			t.Errorf("Len() = %d, want 2", n)
		}
	})

	t.Run("ConcurrentDistinctKeys", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const workers, perWorker = 8, 10
		var wg sync.WaitGroup
		for w := range workers {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				id := fmt.Sprintf("c%d", w)
				for i := range perWorker {
					msg := conversation.Message{Role: conversation.RoleUser, Content: fmt.Sprint(i)}
					if err := s.Append(ctx, id, msg); err != nil {
						t.Errorf("Append(%s) error = %v", id, err)
						return
					}
				}
			}(w)
		}
		wg.Wait()

		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != workers {
			t.Fatalf("List() = %d conversations, want %d", len(list), workers)
		}
		for _, sum := range list {
			if sum.MessageCount != perWorker {
				t.Errorf("%s has %d messages, want %d", sum.ID, sum.MessageCount, perWorker)
			}
		}
	})
}
