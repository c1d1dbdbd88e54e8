// Package extract converts uploaded research material into plain text
// ready for chunking.
//
// PDFs are read directly, web articles are fetched and reduced to their
// readable content, and transcript-backed types (text, youtube, audio,
// image) pass through the text supplied by the uploader or external
// transcriber.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	readability "github.com/go-shiori/go-readability"
)

var (
	// ErrUnsupportedType indicates the source type has no extraction path.
	ErrUnsupportedType = errors.New("unsupported source type")

	// ErrEmptyContent indicates extraction produced no usable text.
	ErrEmptyContent = errors.New("no text content extracted")
)

// DefaultFetchTimeout bounds article downloads.
const DefaultFetchTimeout = 30 * time.Second

// Result is extracted plain text plus a title when the format carries one.
type Result struct {
	Text  string
	Title string
}

// Extractor turns source material into plain text.
type Extractor struct {
	logger       *slog.Logger
	fetchTimeout time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithFetchTimeout bounds article downloads.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// New creates an Extractor.
func New(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		logger:       logger,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract dispatches on source type. origin is a file path for PDFs and
// a URL for articles; raw carries the text for transcript-backed types.
func (e *Extractor) Extract(ctx context.Context, sourceType, origin, raw string) (*Result, error) {
	switch sourceType {
	case "pdf":
		return e.FromPDF(origin)
	case "article":
		return e.FromArticle(ctx, origin)
	case "text", "youtube", "audio", "image":
		return e.FromText(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, sourceType)
	}
}

// FromPDF extracts the plain text of a PDF file.
func (e *Extractor) FromPDF(path string) (*Result, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("reading pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("draining pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, ErrEmptyContent
	}

	e.logger.Debug("pdf extracted", "path", path, "chars", len(text))
	return &Result{Text: text}, nil
}

// FromArticle fetches a web page and reduces it to its readable article
// content. The fetch honors ctx cancellation in addition to the
// configured timeout.
func (e *Extractor) FromArticle(ctx context.Context, rawURL string) (*Result, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing article url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building article request: %w", err)
	}

	client := &http.Client{Timeout: e.fetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching article: unexpected status %s", resp.Status)
	}

	article, err := readability.FromReader(resp.Body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing article: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, ErrEmptyContent
	}

	e.logger.Debug("article extracted",
		"url", rawURL, "title", article.Title, "chars", len(text))
	return &Result{Text: text, Title: article.Title}, nil
}

// FromText passes through caller-supplied text (raw uploads and
// transcripts produced by external services).
func (e *Extractor) FromText(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyContent
	}
	return &Result{Text: text}, nil
}
