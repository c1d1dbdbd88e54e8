// Package app provides application initialization and dependency wiring.
//
// Setup builds the full component graph: database pool with migrations
// applied, Genkit with the configured AI provider, and the stores and
// services layered on top. App owns the resources and releases them in
// Close.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell-ai/inkwell/internal/chat"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/index"
	"github.com/inkwell-ai/inkwell/internal/source"
	"github.com/inkwell-ai/inkwell/internal/voice"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Sources      *source.Store
	Ingestor     *source.Ingestor
	Index        *index.Index
	Sessions     *chat.Store
	Orchestrator *chat.Orchestrator
	Voice        *voice.Aggregator
}

// Close releases all resources held by the App.
func (a *App) Close() error {
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}
	return nil
}
