package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutorvox/tutorvox/internal/history"
	"github.com/tutorvox/tutorvox/internal/tutor"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Ping(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	id := uuid.New()
	started := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	if err := s.BeginSession(ctx, id, "B1", started); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].ID != id || sessions[0].Level != "B1" {
		t.Errorf("session = %+v", sessions[0])
	}
	if !sessions[0].StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", sessions[0].StartedAt, started)
	}
	if !sessions[0].EndedAt.IsZero() {
		t.Error("open session has an end time")
	}

	ended := time.Now().Truncate(time.Millisecond)
	if err := s.EndSession(ctx, id, ended); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	sessions, err = s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if !sessions[0].EndedAt.Equal(ended) {
		t.Errorf("ended_at = %v, want %v", sessions[0].EndedAt, ended)
	}
}

func TestStore_MessagesRoundTrip(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	sid := uuid.New()
	if err := s.BeginSession(ctx, sid, "A2", time.Now()); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	base := time.Now().Truncate(time.Millisecond)
	msgs := []tutor.ChatMessage{
		{ID: uuid.New(), Sender: tutor.SenderUser, Text: "hola", Timestamp: base},
		{ID: uuid.New(), Sender: tutor.SenderModel, Text: "¡hola! se dice \"buenos días\"", Timestamp: base.Add(time.Second), Correction: true},
		{ID: uuid.New(), Sender: tutor.SenderSystem, Text: "session started", Timestamp: base.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(ctx, sid, m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	got, err := s.Messages(ctx, sid)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != len(msgs) {
		t.Fatalf("got %d messages, want %d", len(got), len(msgs))
	}
	for i, want := range msgs {
		if got[i].ID != want.ID || got[i].Sender != want.Sender || got[i].Text != want.Text {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want)
		}
		if got[i].Correction != want.Correction {
			t.Errorf("message %d correction = %v, want %v", i, got[i].Correction, want.Correction)
		}
		if !got[i].Timestamp.Equal(want.Timestamp) {
			t.Errorf("message %d timestamp = %v, want %v", i, got[i].Timestamp, want.Timestamp)
		}
	}
}

func TestStore_MessagesEmptySession(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	got, err := s.Messages(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages for unknown session, want 0", len(got))
	}
}

func TestStore_PruneRemovesOldEndedSessions(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	now := time.Now()

	oldID := uuid.New()
	if err := s.BeginSession(ctx, oldID, "B1", now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if err := s.AppendMessage(ctx, oldID, tutor.ChatMessage{
		ID: uuid.New(), Sender: tutor.SenderUser, Text: "old", Timestamp: now.Add(-48 * time.Hour),
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := s.EndSession(ctx, oldID, now.Add(-47*time.Hour)); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	freshID := uuid.New()
	if err := s.BeginSession(ctx, freshID, "B1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if err := s.EndSession(ctx, freshID, now); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	openID := uuid.New()
	if err := s.BeginSession(ctx, openID, "B1", now.Add(-72*time.Hour)); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d sessions, want 1", n)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions after prune, want 2", len(sessions))
	}
	for _, rec := range sessions {
		if rec.ID == oldID {
			t.Error("old ended session survived prune")
		}
	}

	// Cascade removed the old session's messages too.
	msgs, err := s.Messages(ctx, oldID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("pruned session still has %d messages", len(msgs))
	}
}
