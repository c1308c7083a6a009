package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	consentapi "github.com/grabberapp/grabber/internal/api/consent"
	downloadsapi "github.com/grabberapp/grabber/internal/api/downloads"
	"github.com/grabberapp/grabber/internal/api/middleware"
	ratingsapi "github.com/grabberapp/grabber/internal/api/ratings"
	"github.com/grabberapp/grabber/internal/database"
	"github.com/grabberapp/grabber/internal/download"
	"github.com/grabberapp/grabber/internal/files"
	"github.com/grabberapp/grabber/internal/ratings"
	"github.com/grabberapp/grabber/pkg/logger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-playground/validator/v10"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr       string   `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
	}

	ErrorDto struct {
		Detail string `json:"detail"`
	}

	// The RestGateway is a thin wrapper around the Echo HTTP router. Its
	// sole responsibility is creating the routes Grabber exposes and
	// translating the error taxonomy of the services beneath it into
	// status codes with JSON detail bodies.
	RestGateway struct {
		config              *RestConfig
		ec                  *echo.Echo
		downloadsController *downloadsapi.Controller
		ratingsController   *ratingsapi.Controller
		consentController   *consentapi.Controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. The download folder is also
// mounted directly under /downloads, bypassing the serving endpoints.
func NewRestGateway(
	config *RestConfig,
	downloadServ downloadsapi.DownloadService,
	fileServ downloadsapi.FileService,
	db database.Queryable,
	ratingStore ratingsapi.Store,
	consentStore consentapi.Store,
	downloadFolder string,
) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	gateway := &RestGateway{
		config:              config,
		ec:                  ec,
		downloadsController: downloadsapi.New(validate, downloadServ, fileServ),
		ratingsController:   ratingsapi.New(validate, db, ratingStore),
		consentController:   consentapi.New(validate, db, consentStore),
	}

	ec.HTTPErrorHandler = gateway.handleError
	ec.Use(echomw.Logger())
	ec.Use(echomw.Recover())
	ec.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     config.AllowedOrigins,
		AllowCredentials: true,
	}))
	ec.Use(middleware.Metrics(statusForError))

	ec.GET("/", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{"message": "Grabber download API is running"})
	})
	ec.GET("/health", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{"status": "ok", "message": "Service is up and running"})
	})
	ec.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	ec.Static("/downloads", downloadFolder)

	for _, source := range download.AllSources() {
		gateway.downloadsController.SetRoutes(source, ec.Group("/"+source.String()))
	}

	apiGroup := ec.Group("/api")
	gateway.ratingsController.SetRoutes(apiGroup)
	gateway.consentController.SetRoutes(apiGroup)

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ctxCancel(err)
		}
	}()

	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

// statusForError maps the error taxonomy of the services to the HTTP
// status of the response: validation failures become 400s, missing files
// and records 404s, and everything else a 500. The metrics middleware
// applies the same mapping so that the status label matches what the
// client ultimately receives.
func statusForError(err error) int {
	var httpErr *echo.HTTPError
	var validationErr *download.ValidationError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.As(err, &validationErr), errors.Is(err, ratings.ErrRatingOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, files.ErrNotFound), errors.Is(err, ratings.ErrRatingNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// handleError is the central translation point between a handler error
// and the HTTP response, writing the mapped status with the error's
// message as the detail string.
func (gateway *RestGateway) handleError(err error, ec echo.Context) {
	if ec.Response().Committed {
		return
	}

	status := statusForError(err)
	detail := err.Error()

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		detail = fmt.Sprintf("%v", httpErr.Message)
	}

	if status >= http.StatusInternalServerError {
		log.Emit(logger.ERROR, "Request %s %s failed: %s\n", ec.Request().Method, ec.Request().URL.Path, detail)
	}

	var writeErr error
	if ec.Request().Method == http.MethodHead {
		writeErr = ec.NoContent(status)
	} else {
		writeErr = ec.JSON(status, ErrorDto{Detail: detail})
	}
	if writeErr != nil {
		log.Emit(logger.WARNING, "Failed to write error response: %v\n", writeErr)
	}
}
