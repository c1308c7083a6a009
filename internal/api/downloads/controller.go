package downloads

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/grabberapp/grabber/internal/api/middleware"
	"github.com/grabberapp/grabber/internal/download"
	"github.com/grabberapp/grabber/internal/files"
	"github.com/labstack/echo/v4"
)

type (
	DownloadRequest struct {
		URL string `json:"url" validate:"required"`
	}

	AudioDownloadRequest struct {
		URL     string `json:"url" validate:"required"`
		Quality string `json:"quality" validate:"required,oneof=320kbps 256kbps 128kbps"`
	}

	// DownloadDto is the response for every successful download request.
	// Thumbnail is either a remote URL, a reference to a locally persisted
	// image, or null when neither is available.
	DownloadDto struct {
		Message   string  `json:"message"`
		FilePath  string  `json:"file_path"`
		Thumbnail *string `json:"thumbnail"`
		Title     string  `json:"title"`
	}

	DownloadService interface {
		Fetch(ctx context.Context, source download.MediaSource, mediaURL string) (*download.Result, error)
		FetchAudio(ctx context.Context, mediaURL string, quality string) (*download.Result, error)
	}

	FileService interface {
		Resolve(requestedName string) (*files.ServedFile, error)
	}

	// Controller exposes the per-source download endpoints along with the
	// file serving (and deferred cleanup) endpoint each source shares.
	Controller struct {
		validate  *validator.Validate
		downloads DownloadService
		files     FileService
	}
)

func New(validate *validator.Validate, downloadServ DownloadService, fileServ FileService) *Controller {
	return &Controller{validate: validate, downloads: downloadServ, files: fileServ}
}

// SetRoutes registers this source's endpoints on the provided group. Every
// source exposes a download and a file-serving endpoint; YouTube adds the
// explicit audio/video variants and Instagram its persisted thumbnails.
func (controller *Controller) SetRoutes(source download.MediaSource, eg *echo.Group) {
	eg.POST("/download", controller.performDownload(source))
	eg.GET("/download/file", controller.serveFile)

	if source == download.YouTube {
		eg.POST("/download/audio", controller.performAudioDownload)
		eg.POST("/download/video", controller.performDownload(source))
	}

	if source == download.Instagram {
		eg.GET("/thumbnail/:filename", controller.serveThumbnail)
	}
}

func (controller *Controller) performDownload(source download.MediaSource) echo.HandlerFunc {
	return func(ec echo.Context) error {
		var request DownloadRequest
		if err := ec.Bind(&request); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
		}
		if err := controller.validate.Struct(request); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s URL is required", source))
		}

		result, err := controller.downloads.Fetch(ec.Request().Context(), source, request.URL)
		if err != nil {
			middleware.DownloadsTotal.WithLabelValues(source.String(), "failure").Inc()
			return err
		}

		middleware.DownloadsTotal.WithLabelValues(source.String(), "success").Inc()
		return ec.JSON(http.StatusOK, newDownloadDto(source, result, "Video downloaded successfully"))
	}
}

func (controller *Controller) performAudioDownload(ec echo.Context) error {
	var request AudioDownloadRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "quality must be one of 320kbps, 256kbps, 128kbps and a URL is required")
	}

	result, err := controller.downloads.FetchAudio(ec.Request().Context(), request.URL, request.Quality)
	if err != nil {
		middleware.DownloadsTotal.WithLabelValues(download.YouTube.String(), "failure").Inc()
		return err
	}

	middleware.DownloadsTotal.WithLabelValues(download.YouTube.String(), "success").Inc()
	return ec.JSON(http.StatusOK, newDownloadDto(download.YouTube, result, "Audio downloaded successfully"))
}

// serveFile streams a stored download back to the client as an attachment
// and schedules removal of the file (and its sibling thumbnail) once the
// response has been transmitted.
func (controller *Controller) serveFile(ec echo.Context) error {
	requestedName := ec.QueryParam("file_path")
	if requestedName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_path query parameter is required")
	}

	served, err := controller.files.Resolve(requestedName)
	if err != nil {
		return err
	}

	middleware.FilesServed.Inc()
	ec.Response().Header().Set(echo.HeaderContentType, served.MediaType)
	serveErr := ec.Attachment(served.Path, served.Name)

	// The attachment write has completed (or failed) by this point; the
	// client-visible response is settled, so deletion can proceed without
	// holding the request up.
	go served.Cleanup()

	return serveErr
}

// serveThumbnail streams a persisted thumbnail image. Thumbnails are not
// cleaned up here; they are removed alongside their media file.
func (controller *Controller) serveThumbnail(ec echo.Context) error {
	served, err := controller.files.Resolve(ec.Param("filename"))
	if err != nil {
		return err
	}

	return ec.File(served.Path)
}

func newDownloadDto(source download.MediaSource, result *download.Result, message string) *DownloadDto {
	dto := &DownloadDto{
		Message:   message,
		FilePath:  result.FilePath,
		Thumbnail: result.Thumbnail,
		Title:     result.Title,
	}

	// Instagram thumbnails are persisted locally and fetched back through
	// the dedicated thumbnail route rather than the raw basename.
	if source == download.Instagram && result.Thumbnail != nil {
		ref := fmt.Sprintf("instagram/thumbnail/%s", *result.Thumbnail)
		dto.Thumbnail = &ref
	}

	return dto
}
