package tutor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a chat record.
type Sender string

const (
	// SenderUser marks a transcript of the learner's speech.
	SenderUser Sender = "user"

	// SenderModel marks a transcript of the tutor's spoken response.
	SenderModel Sender = "model"

	// SenderSystem marks a client-generated notice, never spoken audio.
	SenderSystem Sender = "system"
)

// ChatMessage is one committed record of the tutoring conversation.
// Records are committed whole at turn boundaries, never as fragments.
type ChatMessage struct {
	// ID uniquely identifies the record.
	ID uuid.UUID

	// Sender is who produced the record.
	Sender Sender

	// Text is the record's content.
	Text string

	// Timestamp is when the record was committed.
	Timestamp time.Time

	// Correction marks a model record that corrects the learner's
	// phrasing. Set by downstream consumers that analyse transcripts;
	// the pipeline itself never sets it.
	Correction bool
}

// ChatLog is an append-only sequence of chat records with a single observer
// notified of each append. Safe for concurrent use.
type ChatLog struct {
	mu       sync.Mutex
	messages []ChatMessage
	onAppend func(ChatMessage)
}

// Append adds msg to the log and notifies the observer, if any. The observer
// runs on the caller's goroutine without the log's lock held.
func (l *ChatLog) Append(msg ChatMessage) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	notify := l.onAppend
	l.mu.Unlock()

	if notify != nil {
		notify(msg)
	}
}

// Messages returns a snapshot of all records in append order.
func (l *ChatLog) Messages() []ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// LastTurns returns the last n non-system records in append order. System
// notices are client chrome, not conversation, so they never travel as
// context to the model.
func (l *ChatLog) LastTurns(n int) []ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		return nil
	}
	out := make([]ChatMessage, 0, n)
	for i := len(l.messages) - 1; i >= 0 && len(out) < n; i-- {
		if l.messages[i].Sender == SenderSystem {
			continue
		}
		out = append(out, l.messages[i])
	}
	// Collected newest-first; restore append order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// OnAppend registers the observer called for every subsequent append.
// Replaces any previous observer; pass nil to unregister.
func (l *ChatLog) OnAppend(fn func(ChatMessage)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAppend = fn
}
