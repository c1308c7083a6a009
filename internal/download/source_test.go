package download_test

import (
	"testing"

	"github.com/grabberapp/grabber/internal/download"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaSource_RouteNames(t *testing.T) {
	expected := []string{"youtube", "tiktok", "instagram", "facebook", "twitter", "soundcloud"}

	sources := download.AllSources()
	require.Len(t, sources, len(expected))
	for i, source := range sources {
		assert.Equal(t, expected[i], source.String())
	}
}

func TestMediaSource_DownloadKnobs(t *testing.T) {
	assert.Equal(t, "bestvideo[ext=mp4]+bestaudio[ext=m4a]/mp4", download.YouTube.FormatSpec())
	assert.Equal(t, "best", download.Instagram.FormatSpec())
	assert.Equal(t, "bestaudio/best", download.SoundCloud.FormatSpec())

	assert.Equal(t, "mp3", download.SoundCloud.Extension())
	assert.Equal(t, "mp4", download.TikTok.Extension())

	assert.True(t, download.Instagram.PersistsThumbnail())
	assert.True(t, download.SoundCloud.PersistsThumbnail())
	assert.False(t, download.YouTube.PersistsThumbnail())
}
