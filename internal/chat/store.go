package chat

import (
	"strings"
	"sync"
	"time"
)

// Sender tells who wrote a message.
type Sender int

const (
	User Sender = iota // this client
	Peer               // the other member of the room
)

func (s Sender) String() string {
	if s == Peer {
		return "peer"
	}
	return "you"
}

// Message is one chat line.
type Message struct {
	Text   string
	Sender Sender
	At     time.Time
}

// Store is the in-call chat history. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []Message
}

func NewStore() *Store {
	return &Store{}
}

// Add appends a message. Text that is empty after trimming is not stored and
// ok is false.
func (s *Store) Add(text string, sender Sender) (msg Message, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, false
	}

	msg = Message{Text: text, Sender: sender, At: time.Now()}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg, true
}

// Messages returns a copy of the history, oldest first.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Count returns how many messages each side sent.
func (s *Store) Count() (sent, received int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.Sender == User {
			sent++
		} else {
			received++
		}
	}
	return sent, received
}
