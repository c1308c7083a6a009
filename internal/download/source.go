package download

import "fmt"

// MediaSource identifies the platform a download request targets. Each
// source differs only in the format it requests from the extractor, the
// container extension of the result, and whether its thumbnail is persisted
// to disk alongside the media rather than echoed back as a remote URL.
type MediaSource int

const (
	YouTube MediaSource = iota
	TikTok
	Instagram
	Facebook
	Twitter
	SoundCloud
)

// PlaceholderThumbnail is returned in place of a thumbnail reference when
// the extractor reports no thumbnail for a piece of media.
const PlaceholderThumbnail = "https://via.placeholder.com/640x360?text=No+Thumbnail"

const (
	mp4FormatSpec   = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/mp4"
	bestFormatSpec  = "best"
	audioFormatSpec = "bestaudio/best"
)

func AllSources() []MediaSource {
	return []MediaSource{YouTube, TikTok, Instagram, Facebook, Twitter, SoundCloud}
}

func (source MediaSource) String() string {
	switch source {
	case YouTube:
		return "youtube"
	case TikTok:
		return "tiktok"
	case Instagram:
		return "instagram"
	case Facebook:
		return "facebook"
	case Twitter:
		return "twitter"
	case SoundCloud:
		return "soundcloud"
	}

	panic(fmt.Sprintf("media source %d is not recognized", int(source)))
}

// FormatSpec is the selection expression handed to the extractor when
// downloading media for this source.
func (source MediaSource) FormatSpec() string {
	switch source {
	case Instagram:
		return bestFormatSpec
	case SoundCloud:
		return audioFormatSpec
	default:
		return mp4FormatSpec
	}
}

// Extension is the container extension of the stored file, without the dot.
func (source MediaSource) Extension() string {
	if source == SoundCloud {
		return "mp3"
	}

	return "mp4"
}

// PersistsThumbnail reports whether this source stores the thumbnail image
// in the download folder next to the media, rather than returning the
// remote thumbnail URL to the client.
func (source MediaSource) PersistsThumbnail() bool {
	return source == Instagram || source == SoundCloud
}
