package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grabberapp/grabber/pkg/logger"
)

var log = logger.Get("FileServ")

// ErrNotFound indicates the requested file does not exist in the
// download folder.
var ErrNotFound = errors.New("file not found")

type (
	// ServedFile points at a stored download that is about to be streamed
	// to a client. Cleanup is the second phase of serving: the caller
	// invokes it once the response has been transmitted, and it removes
	// the file along with its sibling thumbnail (when one exists).
	// Deletion is best effort; failures are logged and never surfaced.
	ServedFile struct {
		Path      string
		Name      string
		MediaType string

		Cleanup func()
	}

	// Service resolves client-requested names against the shared download
	// folder and hands out cleanup tokens for post-response deletion.
	Service struct {
		folder string
	}
)

func NewService(downloadFolder string) *Service {
	return &Service{folder: downloadFolder}
}

// Resolve locates the stored file for requestedName. The name is reduced
// to its basename before being joined with the download folder, so a
// traversal-laden request can never escape it.
func (service *Service) Resolve(requestedName string) (*ServedFile, error) {
	name := filepath.Base(requestedName)
	path := filepath.Join(service.folder, name)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}

	return &ServedFile{
		Path:      path,
		Name:      name,
		MediaType: MediaTypeFor(name),
		Cleanup:   func() { service.cleanup(path) },
	}, nil
}

// cleanup removes the served file and, when present, the thumbnail image
// persisted next to it under the "{base}_thumbnail.jpg" convention.
func (service *Service) cleanup(path string) {
	service.remove(path)

	thumbnail := strings.TrimSuffix(path, filepath.Ext(path)) + "_thumbnail.jpg"
	if _, err := os.Stat(thumbnail); err == nil {
		service.remove(thumbnail)
	}
}

func (service *Service) remove(path string) {
	if err := os.Remove(path); err != nil {
		log.Emit(logger.WARNING, "Failed to delete served file %s: %v\n", path, err)
		return
	}

	log.Emit(logger.REMOVE, "Deleted served file %s\n", path)
}

// MediaTypeFor maps a stored file's extension to the content type it is
// served with. Unknown extensions fall back to a generic byte stream.
func MediaTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
