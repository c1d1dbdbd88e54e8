// Package voice aggregates extracted stylistic patterns into per-aspect
// readiness scores.
//
// Scoring must stay stable under noisy input: per-pattern contributions
// are bounded, and the total is capped by an evidence ceiling derived
// from how many distinct transcripts contributed patterns, so one
// pattern-heavy transcript cannot claim full readiness on its own.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertPatternSQL = `INSERT INTO voice_patterns
	(project_id, category, pattern, context, frequency, confidence, transcript_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const selectPatternsSQL = `SELECT id, project_id, category, pattern,
	COALESCE(context, ''), frequency, confidence, transcript_id, created_at
	FROM voice_patterns WHERE project_id = $1`

const upsertConfidenceSQL = `INSERT INTO voice_confidence
	(project_id, aspect, current_score, target_score, transcript_count)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (project_id, aspect) DO UPDATE SET
		current_score = EXCLUDED.current_score,
		transcript_count = EXCLUDED.transcript_count,
		updated_at = now()`

const selectConfidenceSQL = `SELECT aspect, current_score, target_score,
	transcript_count, updated_at
	FROM voice_confidence WHERE project_id = $1 ORDER BY aspect`

// Aggregator ingests patterns and maintains the per-aspect rollups.
//
// Aggregator is safe for concurrent use by multiple goroutines.
type Aggregator struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(pool *pgxpool.Pool, logger *slog.Logger) (*Aggregator, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{pool: pool, logger: logger}, nil
}

// validatePattern rejects malformed analyzer output at the ingestion
// boundary instead of letting it skew later aggregation.
func validatePattern(p Pattern) error {
	if p.ProjectID == uuid.Nil {
		return fmt.Errorf("%w: missing project id", ErrInvalidPattern)
	}
	if p.TranscriptID == uuid.Nil {
		return fmt.Errorf("%w: missing transcript id", ErrInvalidPattern)
	}
	if strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidPattern)
	}
	if strings.TrimSpace(p.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern text", ErrInvalidPattern)
	}
	if p.Frequency < 1 || p.Frequency > 10 {
		return fmt.Errorf("%w: frequency %d out of range [1,10]", ErrInvalidPattern, p.Frequency)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range [0,1]", ErrInvalidPattern, p.Confidence)
	}
	return nil
}

// AddPatterns stores a batch of analyzer output and recomputes the
// project's rollups. The batch is all-or-nothing: one malformed record
// rejects the whole call before anything is written.
func (a *Aggregator) AddPatterns(ctx context.Context, projectID uuid.UUID, patterns []Pattern) error {
	if projectID == uuid.Nil {
		return ErrMissingProject
	}
	for i, p := range patterns {
		p.ProjectID = projectID
		if err := validatePattern(p); err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range patterns {
		var patternContext any
		if p.Context != "" {
			patternContext = p.Context
		}
		if _, err := tx.Exec(ctx, insertPatternSQL,
			projectID, p.Category, p.Pattern, patternContext,
			p.Frequency, p.Confidence, p.TranscriptID); err != nil {
			return fmt.Errorf("inserting pattern: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing patterns: %w", err)
	}

	if _, err := a.Recompute(ctx, projectID); err != nil {
		return fmt.Errorf("recomputing after ingest: %w", err)
	}
	return nil
}

// Recompute rebuilds the five aspect rows for a project from all of its
// stored patterns. Safe to call at any time; with no new patterns the
// result is identical to the previous run.
func (a *Aggregator) Recompute(ctx context.Context, projectID uuid.UUID) ([]AspectScore, error) {
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}

	patterns, err := a.loadPatterns(ctx, projectID)
	if err != nil {
		return nil, err
	}

	scores, transcripts := ComputeScores(patterns)

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result := make([]AspectScore, 0, len(Aspects))
	for _, aspect := range Aspects {
		if _, err := tx.Exec(ctx, upsertConfidenceSQL,
			projectID, aspect, scores[aspect], TargetScore, transcripts); err != nil {
			return nil, fmt.Errorf("upserting aspect %s: %w", aspect, err)
		}
		result = append(result, AspectScore{
			Aspect:          aspect,
			CurrentScore:    scores[aspect],
			TargetScore:     TargetScore,
			TranscriptCount: transcripts,
		})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing rollups: %w", err)
	}

	a.logger.Debug("voice confidence recomputed",
		"project_id", projectID, "patterns", len(patterns), "transcripts", transcripts)
	return result, nil
}

// Readiness reports whether the project's voice model is ready: a row
// must exist for every aspect and every score must reach the threshold.
// Missing rows mean not ready regardless of the scores that do exist.
func (a *Aggregator) Readiness(ctx context.Context, projectID uuid.UUID) (*Readiness, error) {
	if projectID == uuid.Nil {
		return nil, ErrMissingProject
	}

	rows, err := a.pool.Query(ctx, selectConfidenceSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading confidence rows: %w", err)
	}
	defer rows.Close()

	var scores []AspectScore
	for rows.Next() {
		var s AspectScore
		if err := rows.Scan(&s.Aspect, &s.CurrentScore, &s.TargetScore,
			&s.TranscriptCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning confidence row: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading confidence rows: %w", err)
	}

	return &Readiness{Ready: isReady(scores), Scores: scores}, nil
}

// isReady applies the readiness predicate to a set of aspect rows.
func isReady(scores []AspectScore) bool {
	if len(scores) < len(Aspects) {
		return false
	}
	seen := make(map[string]bool, len(scores))
	for _, s := range scores {
		seen[s.Aspect] = true
		if s.CurrentScore < ReadyThreshold {
			return false
		}
	}
	for _, aspect := range Aspects {
		if !seen[aspect] {
			return false
		}
	}
	return true
}

// ComputeScores aggregates patterns into one score per aspect and returns
// the distinct-transcript count that capped them.
//
// Each pattern contributes (frequency/10)*20 + confidence*30 points to
// its aspect, at most 50. The per-aspect sum is clamped to an evidence
// ceiling of min(100, transcripts*25 + 25), so scores only approach 100
// as more transcripts contribute. Patterns with unrecognized categories
// are skipped.
func ComputeScores(patterns []Pattern) (map[string]int, int) {
	sums := make(map[string]float64, len(Aspects))
	transcripts := make(map[uuid.UUID]bool)

	for _, p := range patterns {
		aspect, ok := categoryAspect[p.Category]
		if !ok {
			continue
		}
		freq := clampInt(p.Frequency, 1, 10)
		conf := clampFloat(p.Confidence, 0, 1)
		sums[aspect] += (float64(freq)/10)*20 + conf*30
		transcripts[p.TranscriptID] = true
	}

	ceiling := float64(min(100, len(transcripts)*25+25))

	scores := make(map[string]int, len(Aspects))
	for _, aspect := range Aspects {
		s := sums[aspect]
		if s > ceiling {
			s = ceiling
		}
		if s < 0 {
			s = 0
		}
		scores[aspect] = int(math.Round(s))
	}
	return scores, len(transcripts)
}

func (a *Aggregator) loadPatterns(ctx context.Context, projectID uuid.UUID) ([]Pattern, error) {
	rows, err := a.pool.Query(ctx, selectPatternsSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Category, &p.Pattern,
			&p.Context, &p.Frequency, &p.Confidence, &p.TranscriptID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading patterns: %w", err)
	}
	return patterns, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
