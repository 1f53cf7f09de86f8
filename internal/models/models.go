package models

import "time"

// MemoryType describes what kind of content a MemoryItem carries.
type MemoryType string

const (
	MemoryText  MemoryType = "text"
	MemoryPhoto MemoryType = "photo"
	MemoryAudio MemoryType = "audio"
)

// UserProfile describes the person the portal speaks as. One profile per
// user id, created lazily on first access.
type UserProfile struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	AvatarImageURL    string    `json:"avatar_image_url,omitempty"`
	PersonalityTraits string    `json:"personality_traits,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// MemoryItem is a single uploaded or typed memory. Items are never
// mutated after creation.
type MemoryItem struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Type        MemoryType `json:"type"`
	Content     string     `json:"content"` // text, or base64 file payload
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ConversationTurn is one message in the ordered conversation history,
// either from the user or from the persona.
type ConversationTurn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IsUser    bool      `json:"is_user"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
