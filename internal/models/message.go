package models

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleRock  Role = "rock"
)

// MediaKind classifies a generated artifact attached to a reply.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// GeneratedMedia describes one artifact produced by a media operation.
// URL is either a data URL carrying the inline payload or a remote
// download URI for large video results.
type GeneratedMedia struct {
	Kind MediaKind `json:"kind"`
	URL  string    `json:"url"`
	MIME string    `json:"mime"`
}

// Citation is one grounding source attached to a grounded reply.
type Citation struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// Message is one entry of the append-only chat transcript. Messages are
// immutable once appended; transcript order is insertion order.
type Message struct {
	ID          string           `json:"id"`
	Role        Role             `json:"role"`
	Text        string           `json:"text"`
	CreatedAt   time.Time        `json:"created_at"`
	Attachments []FileAttachment `json:"attachments,omitempty"`
	Media       *GeneratedMedia  `json:"media,omitempty"`
	Citations   []Citation       `json:"citations,omitempty"`
}

// FileAttachment is an uploaded file carried inline with a message.
// Data holds the payload base64 encoded, optionally prefixed as a data URL.
// Attachments live in memory only and are never persisted.
type FileAttachment struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Data string `json:"data"`
}
