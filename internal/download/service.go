package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grabberapp/grabber/internal/extractor"
	"github.com/grabberapp/grabber/pkg/logger"
)

var log = logger.Get("DownloadServ")

type (
	extractorService interface {
		Probe(ctx context.Context, mediaURL string) (*extractor.Metadata, error)
		Download(ctx context.Context, request extractor.Request) error
	}

	// metadataFallback is consulted when the extractor probe fails; it may
	// recover enough metadata (title, thumbnail) to continue the download.
	metadataFallback func(ctx context.Context, mediaURL string) (*extractor.Metadata, error)

	// Result describes a completed download. FilePath and Thumbnail (when
	// it names a persisted image) are basenames relative to the download
	// folder; Thumbnail may alternatively carry a remote URL, or be nil.
	Result struct {
		FilePath  string
		Thumbnail *string
		Title     string
	}

	Config struct {
		DownloadFolder string `yaml:"folder" env:"DOWNLOAD_FOLDER"`
	}

	// Service orchestrates a download: metadata probe, filename
	// sanitisation, unique-path resolution, the extractor download itself,
	// and optional thumbnail persistence. One instance serves every media
	// source; sources differ only by the knobs MediaSource exposes.
	Service struct {
		extractor extractorService
		fallback  metadataFallback
		folder    string
		client    *http.Client
	}
)

// audioBitrates maps the accepted audio quality labels to the bitrate
// requested from the transcoder.
var audioBitrates = map[string]string{
	"320kbps": "320",
	"256kbps": "256",
	"128kbps": "128",
}

// defaultAudioBitrate is used for audio-only sources where the request
// carries no quality selection.
const defaultAudioBitrate = "192"

// New constructs the download service, ensuring the configured download
// folder is an existing directory (creating it when missing).
func New(config Config, extractorServ extractorService) (*Service, error) {
	if info, err := os.Stat(config.DownloadFolder); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("download folder '%s' is not a directory", config.DownloadFolder)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(config.DownloadFolder, os.ModeDir|os.ModePerm); err != nil {
			return nil, fmt.Errorf("download folder '%s' could not be created: %w", config.DownloadFolder, err)
		}
	} else {
		return nil, fmt.Errorf("download folder '%s' could not be accessed: %w", config.DownloadFolder, err)
	}

	return &Service{
		extractor: extractorServ,
		fallback:  extractor.ScrapeOpenGraph,
		folder:    config.DownloadFolder,
		client:    &http.Client{Timeout: time.Second * 30},
	}, nil
}

// Fetch downloads the media behind mediaURL for the given source and
// returns the stored file's details.
func (service *Service) Fetch(ctx context.Context, source MediaSource, mediaURL string) (*Result, error) {
	return service.fetch(ctx, source, mediaURL, "")
}

// FetchAudio downloads the best audio stream behind mediaURL as an MP3 at
// the requested quality ("320kbps", "256kbps" or "128kbps").
func (service *Service) FetchAudio(ctx context.Context, mediaURL string, quality string) (*Result, error) {
	if _, ok := audioBitrates[quality]; !ok {
		return nil, &ValidationError{Reason: "invalid quality - choose from 320kbps, 256kbps, or 128kbps"}
	}

	return service.fetch(ctx, YouTube, mediaURL, quality)
}

func (service *Service) fetch(ctx context.Context, source MediaSource, mediaURL string, audioQuality string) (*Result, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return nil, &ValidationError{Reason: fmt.Sprintf("%s URL is required", source)}
	}

	metadata, err := service.probe(ctx, mediaURL)
	if err != nil {
		return nil, &ExtractionError{URL: mediaURL, Err: err}
	}

	outputPath, err := service.resolveOutputPath(metadata.Title, source, audioQuality)
	if err != nil {
		return nil, &DownloadError{URL: mediaURL, Err: err}
	}

	request := extractor.Request{
		URL:        mediaURL,
		OutputPath: outputPath,
		FormatSpec: source.FormatSpec(),
	}
	if audioQuality != "" {
		request.AudioBitrate = audioBitrates[audioQuality]
	} else if source.Extension() == "mp3" {
		// Audio-only sources are always stored as MP3; transcode at a
		// fixed bitrate when the client had no say in the quality.
		request.AudioBitrate = defaultAudioBitrate
	}

	log.Emit(logger.NEW, "Downloading %s media from %s to %s\n", source, mediaURL, outputPath)
	if err := service.extractor.Download(ctx, request); err != nil {
		os.Remove(outputPath)
		return nil, &DownloadError{URL: mediaURL, Err: err}
	}

	// The resolver reserves the output path with an empty placeholder, so
	// a bare existence check proves nothing; the file must have content.
	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return nil, &DownloadError{URL: mediaURL, Err: errors.New("extractor completed but the output file is missing")}
	}

	log.Emit(logger.SUCCESS, "Stored %s media at %s\n", source, outputPath)
	return &Result{
		FilePath:  filepath.Base(outputPath),
		Thumbnail: service.thumbnailReference(ctx, source, metadata, outputPath),
		Title:     metadata.Title,
	}, nil
}

// probe queries the extractor for metadata, falling back to an Open Graph
// scrape of the page when the probe fails outright.
func (service *Service) probe(ctx context.Context, mediaURL string) (*extractor.Metadata, error) {
	metadata, err := service.extractor.Probe(ctx, mediaURL)
	if err == nil {
		return metadata, nil
	}

	if service.fallback != nil {
		log.Emit(logger.WARNING, "Metadata probe for %s failed (%v), attempting page scrape\n", mediaURL, err)
		if scraped, scrapeErr := service.fallback(ctx, mediaURL); scrapeErr == nil {
			return scraped, nil
		}
	}

	return nil, err
}

func (service *Service) resolveOutputPath(title string, source MediaSource, audioQuality string) (string, error) {
	sanitized := SanitizeFilename(title)
	if sanitized == "" {
		sanitized = "download"
	}

	var candidate string
	if audioQuality != "" {
		candidate = filepath.Join(service.folder, fmt.Sprintf("%s_%s.mp3", sanitized, audioQuality))
	} else {
		candidate = filepath.Join(service.folder, fmt.Sprintf("%s.%s", sanitized, source.Extension()))
	}

	return UniquePath(candidate)
}

// thumbnailReference decides what the result's thumbnail field carries:
// the basename of a locally persisted image for sources that require one,
// otherwise the remote URL (or the placeholder when the source reported
// no thumbnail at all). Persistence failure degrades to a nil reference.
func (service *Service) thumbnailReference(ctx context.Context, source MediaSource, metadata *extractor.Metadata, outputPath string) *string {
	if !source.PersistsThumbnail() {
		url := metadata.ThumbnailURL
		if url == "" {
			url = PlaceholderThumbnail
		}

		return &url
	}

	if metadata.ThumbnailURL == "" {
		return nil
	}

	thumbnailPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_thumbnail.jpg"
	if err := service.downloadImage(ctx, metadata.ThumbnailURL, thumbnailPath); err != nil {
		log.Emit(logger.WARNING, "Failed to persist thumbnail for %s: %v\n", outputPath, err)
		return nil
	}

	name := filepath.Base(thumbnailPath)
	return &name
}

// downloadImage performs a plain HTTP GET of the image at url and writes
// it to savePath.
func (service *Service) downloadImage(ctx context.Context, url string, savePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := service.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	file, err := os.Create(savePath)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(savePath)
		return err
	}

	return nil
}
