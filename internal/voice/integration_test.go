package voice

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/log"
	"github.com/inkwell-ai/inkwell/internal/testutil"
)

func TestAggregatorRecompute_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	agg, err := NewAggregator(db.Pool, log.NewNop())
	require.NoError(t, err)

	projectID := uuid.New()
	t1, t2 := uuid.New(), uuid.New()

	var patterns []Pattern
	for i, aspect := range Aspects {
		tid := t1
		if i%2 == 1 {
			tid = t2
		}
		patterns = append(patterns, Pattern{
			Category:     aspect,
			Pattern:      "speaks in rhetorical questions",
			Context:      "episode 12",
			Frequency:    5,
			Confidence:   0.9,
			TranscriptID: tid,
		})
	}

	require.NoError(t, agg.AddPatterns(ctx, projectID, patterns))

	readiness, err := agg.Readiness(ctx, projectID)
	require.NoError(t, err)
	assert.False(t, readiness.Ready)
	require.Len(t, readiness.Scores, len(Aspects))
	for _, s := range readiness.Scores {
		assert.Equal(t, 37, s.CurrentScore, s.Aspect)
		assert.Equal(t, TargetScore, s.TargetScore)
		assert.Equal(t, 2, s.TranscriptCount)
	}
}

func TestAggregatorRecomputeIsIdempotent_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	agg, err := NewAggregator(db.Pool, log.NewNop())
	require.NoError(t, err)

	projectID := uuid.New()
	require.NoError(t, agg.AddPatterns(ctx, projectID, []Pattern{{
		Category:     AspectSignaturePhrases,
		Pattern:      "let me put it this way",
		Frequency:    8,
		Confidence:   0.7,
		TranscriptID: uuid.New(),
	}}))

	first, err := agg.Recompute(ctx, projectID)
	require.NoError(t, err)
	second, err := agg.Recompute(ctx, projectID)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Still exactly one row per aspect after repeated recomputes.
	var count int
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM voice_confidence WHERE project_id = $1`, projectID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(Aspects), count)
}

func TestAggregatorRejectsMalformedBatch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	agg, err := NewAggregator(db.Pool, log.NewNop())
	require.NoError(t, err)

	projectID := uuid.New()
	batch := []Pattern{
		{
			Category:     AspectSpeechRhythms,
			Pattern:      "short declaratives",
			Frequency:    5,
			Confidence:   0.5,
			TranscriptID: uuid.New(),
		},
		{
			Category:     AspectSpeechRhythms,
			Pattern:      "bad record",
			Frequency:    99, // out of range
			Confidence:   0.5,
			TranscriptID: uuid.New(),
		},
	}

	err = agg.AddPatterns(ctx, projectID, batch)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	// Nothing from the batch may have landed.
	var count int
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM voice_patterns WHERE project_id = $1`, projectID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
