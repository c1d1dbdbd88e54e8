package voice

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// The five aspects tracked for voice-model readiness.
const (
	AspectSignaturePhrases = "signature_phrases"
	AspectSpeechRhythms    = "speech_rhythms"
	AspectTeachingPatterns = "teaching_patterns"
	AspectStoryStructures  = "story_structures"
	AspectMemorableQuotes  = "memorable_quotes"
)

// Aspects lists every tracked aspect. Readiness requires a score row for
// each one.
var Aspects = []string{
	AspectSignaturePhrases,
	AspectSpeechRhythms,
	AspectTeachingPatterns,
	AspectStoryStructures,
	AspectMemorableQuotes,
}

const (
	// TargetScore is the per-aspect goal stored with every rollup row.
	TargetScore = 95

	// ReadyThreshold is the minimum per-aspect score for readiness.
	ReadyThreshold = 80
)

// categoryAspect maps analyzer pattern categories onto aspects. Both the
// singular category names emitted by the analyzer and the aspect names
// themselves are accepted; anything else is ignored during aggregation.
var categoryAspect = map[string]string{
	"signature_phrase": AspectSignaturePhrases,
	"speech_rhythm":    AspectSpeechRhythms,
	"teaching_pattern": AspectTeachingPatterns,
	"story_structure":  AspectStoryStructures,
	"memorable_quote":  AspectMemorableQuotes,

	AspectSignaturePhrases: AspectSignaturePhrases,
	AspectSpeechRhythms:    AspectSpeechRhythms,
	AspectTeachingPatterns: AspectTeachingPatterns,
	AspectStoryStructures:  AspectStoryStructures,
	AspectMemorableQuotes:  AspectMemorableQuotes,
}

var (
	// ErrMissingProject indicates a zero project ID was passed.
	ErrMissingProject = errors.New("project id is required")

	// ErrInvalidPattern indicates a pattern record failed validation.
	ErrInvalidPattern = errors.New("invalid voice pattern")
)

// Pattern is one stylistic observation extracted from a transcript.
// Patterns are produced by an external analyzer and are read-only here
// apart from the validated ingestion path.
type Pattern struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	Category     string
	Pattern      string
	Context      string
	Frequency    int     // 1..10
	Confidence   float64 // 0..1
	TranscriptID uuid.UUID
	CreatedAt    time.Time
}

// AspectScore is the persisted rollup for one (project, aspect) pair.
type AspectScore struct {
	Aspect          string
	CurrentScore    int
	TargetScore     int
	TranscriptCount int
	UpdatedAt       time.Time
}

// Readiness reports whether the voice model has enough evidence to be
// used, plus the per-aspect scores behind the verdict.
type Readiness struct {
	Ready  bool
	Scores []AspectScore
}
