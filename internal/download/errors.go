package download

import "fmt"

type (
	// ValidationError indicates the request itself was malformed, such as
	// an unsupported audio quality. Mapped to a 400 at the HTTP boundary.
	ValidationError struct {
		Reason string
	}

	// ExtractionError indicates the extractor failed to retrieve metadata
	// for the requested URL.
	ExtractionError struct {
		URL string
		Err error
	}

	// DownloadError indicates the byte-download step failed, or that the
	// expected output file was absent once the step completed.
	DownloadError struct {
		URL string
		Err error
	}
)

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("error retrieving media info for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *DownloadError) Error() string {
	return fmt.Sprintf("error downloading media for %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
