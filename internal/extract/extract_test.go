package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/log"
)

func TestFromTextTrimsAndRejectsEmpty(t *testing.T) {
	e := New(log.NewNop())

	res, err := e.FromText("  a transcript line \n")
	require.NoError(t, err)
	assert.Equal(t, "a transcript line", res.Text)
	assert.Empty(t, res.Title)

	_, err = e.FromText("   \n\t")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestExtractDispatch(t *testing.T) {
	e := New(log.NewNop())
	ctx := context.Background()

	t.Run("transcript types pass raw text through", func(t *testing.T) {
		for _, sourceType := range []string{"text", "youtube", "audio", "image"} {
			res, err := e.Extract(ctx, sourceType, "", "spoken words")
			require.NoError(t, err, sourceType)
			assert.Equal(t, "spoken words", res.Text)
		}
	})

	t.Run("image transcript passes through without an origin", func(t *testing.T) {
		res, err := e.Extract(ctx, "image", "", "OCR text from the image.")
		require.NoError(t, err)
		assert.Equal(t, "OCR text from the image.", res.Text)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := e.Extract(ctx, "spreadsheet", "", "")
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})
}

func TestFromArticle(t *testing.T) {
	e := New(log.NewNop())

	const page = `<!DOCTYPE html>
<html>
<head><title>On Writing Clearly</title></head>
<body>
<article>
<h1>On Writing Clearly</h1>
<p>Clear writing starts with clear thinking. Every paragraph should earn
its place on the page, and every sentence should carry its own weight in
the argument being made.</p>
<p>Revision is where clarity is won. The first draft discovers what you
mean; the second draft says it plainly enough for a stranger to follow.</p>
</article>
</body>
</html>`

	t.Run("extracts readable content and title", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, page)
		}))
		defer srv.Close()

		res, err := e.FromArticle(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "On Writing Clearly", res.Title)
		assert.Contains(t, res.Text, "clear thinking")
		assert.Contains(t, res.Text, "Revision is where clarity is won")
	})

	t.Run("cancelled context aborts the fetch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, page)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.FromArticle(ctx, srv.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("non-success status is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := e.FromArticle(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status")
	})
}

func TestFromPDFMissingFile(t *testing.T) {
	e := New(log.NewNop())

	_, err := e.FromPDF("testdata/does-not-exist.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening pdf")
}
