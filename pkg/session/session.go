package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"sitechat/internal/models"
)

// HistoryWindow is how many trailing messages feed the generation prompt. The
// full history is kept for display only.
const HistoryWindow = 5

// Session is the per-conversation state: which URL (if any) backs the active
// collection, the collection's name, and the message history. One session is
// never shared between conversations.
type Session struct {
	ID             string
	CollectionName string

	mu         sync.Mutex
	indexedURL string
	messages   []models.Message
}

func New(collectionName string) *Session {
	return &Session{
		ID:             uuid.NewString(),
		CollectionName: collectionName,
	}
}

// NeedsIndex reports whether indexing url would change the active collection.
func (s *Session) NeedsIndex(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexedURL != url
}

func (s *Session) SetIndexed(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexedURL = url
}

func (s *Session) IndexedURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexedURL
}

func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, models.Message{Role: role, Content: content})
}

func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// History renders the trailing window as "Human:"/"AI:" lines for the prompt.
func (s *Session) History() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if len(s.messages) > HistoryWindow {
		start = len(s.messages) - HistoryWindow
	}

	var builder strings.Builder
	for _, msg := range s.messages[start:] {
		label := "AI"
		if msg.Role == "user" {
			label = "Human"
		}
		builder.WriteString(label)
		builder.WriteString(": ")
		builder.WriteString(msg.Content)
		builder.WriteString("\n")
	}
	return builder.String()
}

// ClearMessages drops the conversation history but keeps the indexed state.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Reset clears the whole session back to its initial state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexedURL = ""
	s.messages = nil
}
