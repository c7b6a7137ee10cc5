// Package chat provides persona-based coaching conversations. A persona
// pairs a display identity with a system prompt; a thread holds the
// running message history between a user and one persona.
package chat

import "time"

// Persona is a configurable coach identity.
type Persona struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	AvatarEmoji  string    `json:"avatarEmoji,omitempty"`
	SystemPrompt string    `json:"systemPrompt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is a single turn in a thread.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Thread is the conversation history between one user and one persona.
type Thread struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	PersonaID string    `json:"personaId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
