package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// forbiddenChars is the set of characters stripped from titles before they
// are used as a path component. Matches the Windows reserved set, which is
// a superset of what POSIX filesystems reject.
const forbiddenChars = `<>:"/\|?*`

// SanitizeFilename reduces an arbitrary title to a string safe for use as
// a single path component by stripping forbidden characters and trimming
// surrounding whitespace. It is total and idempotent.
func SanitizeFilename(title string) string {
	var sb strings.Builder
	sb.Grow(len(title))
	for _, c := range title {
		if strings.ContainsRune(forbiddenChars, c) {
			continue
		}
		sb.WriteRune(c)
	}

	return strings.TrimSpace(sb.String())
}

// pathMu serializes unique-path resolution within this process. The
// resolver still races against writers outside the process (the check
// and the reservation below are only atomic with respect to ourselves).
var pathMu sync.Mutex

// UniquePath returns a path which did not exist on disk at the time of the
// call. If the candidate path is free it is returned unchanged, otherwise
// " (n)" is inserted before the extension for the first free n starting at 1.
//
// The returned path is reserved by creating an empty placeholder file, so
// two concurrent resolutions inside this process can never pick the same
// name; the extractor subsequently overwrites the placeholder.
func UniquePath(candidate string) (string, error) {
	pathMu.Lock()
	defer pathMu.Unlock()

	if reserved, err := reserve(candidate); err != nil {
		return "", err
	} else if reserved {
		return candidate, nil
	}

	ext := filepath.Ext(candidate)
	base := strings.TrimSuffix(candidate, ext)
	for counter := 1; ; counter++ {
		probe := fmt.Sprintf("%s (%d)%s", base, counter, ext)
		if reserved, err := reserve(probe); err != nil {
			return "", err
		} else if reserved {
			return probe, nil
		}
	}
}

// reserve attempts an exclusive create of path, reporting whether the
// reservation was won. An existing file is not an error, merely a miss.
func reserve(path string) (bool, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to reserve output path %s: %w", path, err)
	}

	file.Close()
	return true, nil
}
