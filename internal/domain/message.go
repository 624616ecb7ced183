package domain

import "time"

// Message is a single entry in a conversation transcript.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Tag       MessageTag `json:"tag,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role Role, content string, tag MessageTag) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Tag:       tag,
	}
}

// Transcript is an append-only ordered message sequence.
type Transcript []Message

// Last returns the last message and whether one exists.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}

// Clone returns a copy safe to hand to another goroutine.
func (t Transcript) Clone() Transcript {
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
