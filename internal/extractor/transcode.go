package extractor

import (
	"context"
	"fmt"

	"github.com/floostack/transcoder/ffmpeg"
)

// transcodeToMP3 re-encodes the staged audio stream to an MP3 at the given
// bitrate ("320", "256", "128"). The progress channel from the transcoder
// is drained but otherwise ignored; download requests are synchronous.
func (ex *YtdlpExtractor) transcodeToMP3(ctx context.Context, inputPath string, outputPath string, bitrate string) error {
	format := "mp3"
	codec := "libmp3lame"
	audioBitrate := fmt.Sprintf("%sk", bitrate)
	overwrite := true

	opts := ffmpeg.Options{
		OutputFormat: &format,
		AudioCodec:   &codec,
		AudioBitrate: &audioBitrate,
		Overwrite:    &overwrite,
	}

	trans := ffmpeg.
		New(&ffmpeg.Config{
			FfmpegBinPath:  ex.config.FfmpegBinPath,
			FfprobeBinPath: ex.config.FfprobeBinPath,
		}).
		Input(inputPath).
		Output(outputPath).
		WithContext(&ctx)

	progress, err := trans.Start(opts)
	if err != nil {
		return fmt.Errorf("mp3 transcode failed to start: %w", err)
	}

	for range progress {
	}

	return nil
}
