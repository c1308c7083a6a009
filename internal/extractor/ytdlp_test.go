package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeResult_DecodesMetadataDump(t *testing.T) {
	dump := `{
		"id": "abc123",
		"title": "A Video",
		"thumbnail": "https://cdn.example/t.jpg",
		"duration": 123,
		"formats": []
	}`

	var result probeResult
	require.NoError(t, json.Unmarshal([]byte(dump), &result))
	assert.Equal(t, "A Video", result.Title)
	assert.Equal(t, "https://cdn.example/t.jpg", result.Thumbnail)
}

func TestFirstErrorLine_PicksErrorOverNoise(t *testing.T) {
	stderr := "[youtube] Extracting URL\nWARNING: something minor\nERROR: Video unavailable\n"
	assert.Equal(t, "ERROR: Video unavailable", firstErrorLine(stderr))
}

func TestFirstErrorLine_FallsBackToWholeOutput(t *testing.T) {
	assert.Equal(t, "something broke", firstErrorLine("  something broke \n"))
	assert.Equal(t, "", firstErrorLine("\n\n"))
}

func TestExtractorError_NonExitErrorsPassThrough(t *testing.T) {
	err := errors.New("executable file not found")
	assert.Equal(t, err, extractorError(err, &bytes.Buffer{}))
}
