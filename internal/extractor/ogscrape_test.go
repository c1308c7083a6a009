package extractor_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grabberapp/grabber/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestScrapeOpenGraph_ReadsOgTags(t *testing.T) {
	server := servePage(t, `<html><head>
		<meta property="og:title" content="A Great Clip"/>
		<meta property="og:image" content="https://cdn.example/og.jpg"/>
		<title>ignored</title>
	</head><body></body></html>`)

	metadata, err := extractor.ScrapeOpenGraph(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "A Great Clip", metadata.Title)
	assert.Equal(t, "https://cdn.example/og.jpg", metadata.ThumbnailURL)
}

func TestScrapeOpenGraph_FallsBackToTitleTag(t *testing.T) {
	server := servePage(t, `<html><head><title> Page Title </title></head><body></body></html>`)

	metadata, err := extractor.ScrapeOpenGraph(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Page Title", metadata.Title)
	assert.Empty(t, metadata.ThumbnailURL)
}

func TestScrapeOpenGraph_NoMetadataIsAnError(t *testing.T) {
	server := servePage(t, `<html><head></head><body>nothing here</body></html>`)

	_, err := extractor.ScrapeOpenGraph(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestScrapeOpenGraph_NonOkStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	_, err := extractor.ScrapeOpenGraph(context.Background(), server.URL)
	assert.Error(t, err)
}
