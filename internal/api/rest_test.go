package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/grabberapp/grabber/internal/consent"
	"github.com/grabberapp/grabber/internal/download"
	"github.com/grabberapp/grabber/internal/files"
	"github.com/grabberapp/grabber/internal/ratings"
	"github.com/grabberapp/grabber/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetMinLoggingLevel(logger.FATAL.Level())
}

type stubDownloadService struct {
	result *download.Result
	err    error
}

func (s *stubDownloadService) Fetch(_ context.Context, _ download.MediaSource, _ string) (*download.Result, error) {
	return s.result, s.err
}

func (s *stubDownloadService) FetchAudio(_ context.Context, _ string, quality string) (*download.Result, error) {
	return s.result, s.err
}

// stubQueryable scripts store behaviour for the rating and consent
// endpoints without a live database.
type stubQueryable struct {
	getErr    error
	getValues map[string]any
	execCount int
}

func (s *stubQueryable) Exec(query string, args ...any) (sql.Result, error) {
	s.execCount++
	return nil, nil
}

func (s *stubQueryable) Select(dest any, query string, args ...any) error { return nil }

func (s *stubQueryable) Get(dest any, query string, args ...any) error {
	if s.getErr != nil {
		return s.getErr
	}

	value := reflect.ValueOf(dest).Elem()
	for field, fieldValue := range s.getValues {
		value.FieldByName(field).Set(reflect.ValueOf(fieldValue))
	}

	return nil
}

func (s *stubQueryable) Rebind(query string) string { return query }

type gatewayOverrides struct {
	downloads *stubDownloadService
	db        *stubQueryable
	folder    string
}

func newTestGateway(t *testing.T, overrides gatewayOverrides) *RestGateway {
	t.Helper()

	if overrides.downloads == nil {
		overrides.downloads = &stubDownloadService{}
	}
	if overrides.db == nil {
		overrides.db = &stubQueryable{}
	}
	if overrides.folder == "" {
		overrides.folder = t.TempDir()
	}

	return NewRestGateway(
		&RestConfig{HostAddr: "127.0.0.1:0", AllowedOrigins: []string{"http://localhost:3000"}},
		overrides.downloads,
		files.NewService(overrides.folder),
		overrides.db,
		ratings.NewStore(),
		consent.NewStore(),
		overrides.folder,
	)
}

func perform(gateway *RestGateway, method string, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	gateway.ec.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLiveness(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{})

	assert.Equal(t, http.StatusOK, perform(gateway, http.MethodGet, "/", "").Code)

	rec := perform(gateway, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestDownload_Success(t *testing.T) {
	thumbnail := "https://cdn.example/t.jpg"
	gateway := newTestGateway(t, gatewayOverrides{downloads: &stubDownloadService{
		result: &download.Result{FilePath: "Clip.mp4", Thumbnail: &thumbnail, Title: "Clip"},
	}})

	rec := perform(gateway, http.MethodPost, "/tiktok/download", `{"url": "https://tiktok.example/v/1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Video downloaded successfully", body["message"])
	assert.Equal(t, "Clip.mp4", body["file_path"])
	assert.Equal(t, thumbnail, body["thumbnail"])
	assert.Equal(t, "Clip", body["title"])
}

func TestDownload_InstagramThumbnailReferenceIsRouted(t *testing.T) {
	thumbnail := "Reel_thumbnail.jpg"
	gateway := newTestGateway(t, gatewayOverrides{downloads: &stubDownloadService{
		result: &download.Result{FilePath: "Reel.mp4", Thumbnail: &thumbnail, Title: "Reel"},
	}})

	rec := perform(gateway, http.MethodPost, "/instagram/download", `{"url": "https://instagram.example/reel/1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "instagram/thumbnail/Reel_thumbnail.jpg", decodeBody(t, rec)["thumbnail"])
}

func TestDownload_MissingURLIsBadRequest(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{})

	rec := perform(gateway, http.MethodPost, "/youtube/download", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["detail"], "URL is required")
}

func TestDownload_ExtractionFailureIsInternalError(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{downloads: &stubDownloadService{
		err: &download.ExtractionError{URL: "u", Err: assert.AnError},
	}})

	rec := perform(gateway, http.MethodPost, "/facebook/download", `{"url": "https://facebook.example/v/1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["detail"])
}

func TestAudioDownload_InvalidQualityIsBadRequest(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{})

	rec := perform(gateway, http.MethodPost, "/youtube/download/audio", `{"url": "https://youtube.example/w", "quality": "192kbps"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeFile_StreamsAndCleansUp(t *testing.T) {
	folder := t.TempDir()
	path := filepath.Join(folder, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("media bytes"), 0o644))

	gateway := newTestGateway(t, gatewayOverrides{folder: folder})

	rec := perform(gateway, http.MethodGet, "/tiktok/download/file?file_path=clip.mp4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "media bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "clip.mp4")

	// Cleanup is scheduled post-response; give it a moment.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, time.Millisecond*10)

	rec = perform(gateway, http.MethodGet, "/tiktok/download/file?file_path=clip.mp4", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeFile_MissingParamIsBadRequest(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{})

	rec := perform(gateway, http.MethodGet, "/soundcloud/download/file", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeFile_AbsentFileIsNotFound(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{})

	rec := perform(gateway, http.MethodGet, "/twitter/download/file?file_path=nope.mp4", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["detail"])
}

func TestServeThumbnail(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "Reel_thumbnail.jpg"), []byte("jpeg"), 0o644))

	gateway := newTestGateway(t, gatewayOverrides{folder: folder})

	rec := perform(gateway, http.MethodGet, "/instagram/thumbnail/Reel_thumbnail.jpg", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = perform(gateway, http.MethodGet, "/instagram/thumbnail/missing.jpg", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatings_UpsertValidRating(t *testing.T) {
	db := &stubQueryable{}
	gateway := newTestGateway(t, gatewayOverrides{db: db})

	rec := perform(gateway, http.MethodPost, "/api/ratings", `{"user_session": "s1", "download_type": "youtube", "rating": 4.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Rating saved successfully.", decodeBody(t, rec)["message"])
	assert.Equal(t, 1, db.execCount)
}

func TestRatings_OutOfRangeIsBadRequest(t *testing.T) {
	db := &stubQueryable{}
	gateway := newTestGateway(t, gatewayOverrides{db: db})

	for _, body := range []string{
		`{"user_session": "s1", "download_type": "youtube", "rating": 0.5}`,
		`{"user_session": "s1", "download_type": "youtube", "rating": 5.5}`,
	} {
		rec := perform(gateway, http.MethodPost, "/api/ratings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	assert.Zero(t, db.execCount)
}

func TestRatings_UserRatingNotFound(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{db: &stubQueryable{getErr: sql.ErrNoRows}})

	rec := perform(gateway, http.MethodGet, "/api/ratings/user?user_session=s1&download_type=youtube", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatings_UserRatingFound(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{db: &stubQueryable{
		getValues: map[string]any{"Rating": 4.5},
	}})

	rec := perform(gateway, http.MethodGet, "/api/ratings/user?user_session=s1&download_type=youtube", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.5, decodeBody(t, rec)["rating"])
}

func TestRatings_Average(t *testing.T) {
	gateway := newTestGateway(t, gatewayOverrides{db: &stubQueryable{
		getValues: map[string]any{"AverageRating": 3.67, "TotalRatings": 3},
	}})

	rec := perform(gateway, http.MethodGet, "/api/ratings/average?download_type=overall", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, 3.67, body["average_rating"])
	assert.Equal(t, float64(3), body["total_ratings"])
}

func TestLogCookies(t *testing.T) {
	db := &stubQueryable{}
	gateway := newTestGateway(t, gatewayOverrides{db: db})

	rec := perform(gateway, http.MethodPost, "/api/log-cookies", `{"session_id": "abc", "terms_accepted": true, "timestamp": "2026-08-29T10:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, db.execCount)

	rec = perform(gateway, http.MethodPost, "/api/log-cookies", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
