package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/grabberapp/grabber/pkg/logger"
)

var log = logger.Get("Extractor")

type (
	// Metadata is the information reported by the extractor about a piece
	// of media, prior to (and independent of) downloading any bytes.
	Metadata struct {
		Title        string
		ThumbnailURL string
	}

	// Request instructs the extractor to download the media behind URL
	// into exactly OutputPath, using the given selection expression. A
	// non-empty AudioBitrate (e.g. "320") requests an MP3 transcode of the
	// best available audio at that bitrate instead of a container download.
	Request struct {
		URL          string
		OutputPath   string
		FormatSpec   string
		AudioBitrate string
	}

	Config struct {
		YtdlpBinPath   string `yaml:"ytdlp_bin" env:"YTDLP_BIN" env-default:"yt-dlp"`
		FfmpegBinPath  string `yaml:"ffmpeg_bin" env:"FFMPEG_BIN" env-default:"ffmpeg"`
		FfprobeBinPath string `yaml:"ffprobe_bin" env:"FFPROBE_BIN" env-default:"ffprobe"`
	}

	// YtdlpExtractor shells out to a yt-dlp binary for metadata probing
	// and media downloads. It performs no retries and honours only the
	// cancellation of the context it is given.
	YtdlpExtractor struct {
		config Config
	}
)

func NewYtdlp(config Config) *YtdlpExtractor {
	return &YtdlpExtractor{config: config}
}

// probeResult is the subset of yt-dlp's JSON dump we care about.
type probeResult struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
}

// Probe fetches the title and thumbnail URL for the media behind the given
// URL without downloading any bytes.
func (ex *YtdlpExtractor) Probe(ctx context.Context, mediaURL string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, ex.config.YtdlpBinPath,
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		mediaURL,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, extractorError(err, &stderr)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to decode metadata dump: %w", err)
	}

	if result.Title == "" {
		result.Title = "Unknown Title"
	}

	return &Metadata{Title: result.Title, ThumbnailURL: result.Thumbnail}, nil
}

// Download fetches the media behind the request URL into the exact output
// path it specifies. Audio requests are staged as the best available audio
// stream and then transcoded to MP3 at the requested bitrate.
func (ex *YtdlpExtractor) Download(ctx context.Context, request Request) error {
	if request.AudioBitrate != "" {
		return ex.downloadAudio(ctx, request)
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"-f", request.FormatSpec,
		"--merge-output-format", "mp4",
		"--force-overwrites",
		"-o", request.OutputPath,
		request.URL,
	}

	return ex.run(ctx, args)
}

func (ex *YtdlpExtractor) downloadAudio(ctx context.Context, request Request) error {
	staging := request.OutputPath + ".source.m4a"
	defer os.Remove(staging)

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"-f", "bestaudio/best",
		"--force-overwrites",
		"-o", staging,
		request.URL,
	}
	if err := ex.run(ctx, args); err != nil {
		return err
	}

	log.Emit(logger.DEBUG, "Transcoding %s to MP3 at %skbps\n", staging, request.AudioBitrate)
	return ex.transcodeToMP3(ctx, staging, request.OutputPath, request.AudioBitrate)
}

func (ex *YtdlpExtractor) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, ex.config.YtdlpBinPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Emit(logger.VERBOSE, "Running %s %s\n", ex.config.YtdlpBinPath, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return extractorError(err, &stderr)
	}

	return nil
}

// extractorError folds the stderr output of a failed yt-dlp invocation in
// to the returned error, as the exec error alone ("exit status 1") carries
// no useful information for the client.
func extractorError(err error, stderr *bytes.Buffer) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if detail := firstErrorLine(stderr.String()); detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
	}

	return err
}

func firstErrorLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR") {
			return line
		}
	}

	return strings.TrimSpace(output)
}
