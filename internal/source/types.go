package source

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Source material types.
const (
	TypePDF     = "pdf"
	TypeYouTube = "youtube"
	TypeArticle = "article"
	TypeAudio   = "audio"
	TypeText    = "text"
	TypeImage   = "image"
)

// Ingestion lifecycle states. A source moves uploading -> processing ->
// ready, or lands in failed with an error message for the author.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

var validTypes = map[string]bool{
	TypePDF:     true,
	TypeYouTube: true,
	TypeArticle: true,
	TypeAudio:   true,
	TypeText:    true,
	TypeImage:   true,
}

var (
	// ErrNotFound indicates the source does not exist.
	ErrNotFound = errors.New("source not found")

	// ErrMissingProject indicates a zero project ID was passed.
	ErrMissingProject = errors.New("project id is required")

	// ErrInvalidType indicates an unknown source type.
	ErrInvalidType = errors.New("invalid source type")

	// ErrMissingTitle indicates the title was empty.
	ErrMissingTitle = errors.New("title is required")
)

// Source is one unit of uploaded research material.
type Source struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Title     string
	Type      string
	Origin    string // file path or URL, depending on Type
	RawText   string // empty until extraction completes
	Status    string
	Error     string // set when Status is failed
	CreatedAt time.Time
	UpdatedAt time.Time
}
