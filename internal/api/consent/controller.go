package consent

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/grabberapp/grabber/internal/consent"
	"github.com/grabberapp/grabber/internal/database"
	"github.com/labstack/echo/v4"
)

type (
	LogCookiesRequest struct {
		SessionID     string `json:"session_id" validate:"required"`
		TermsAccepted bool   `json:"terms_accepted"`
		Timestamp     string `json:"timestamp"`
	}

	MessageDto struct {
		Message string `json:"message"`
	}

	Store interface {
		Upsert(db database.Queryable, entry consent.Entry) error
	}

	Controller struct {
		validate *validator.Validate
		db       database.Queryable
		store    Store
	}
)

func New(validate *validator.Validate, db database.Queryable, store Store) *Controller {
	return &Controller{validate: validate, db: db, store: store}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/log-cookies", controller.logCookies)
}

// logCookies upserts the caller's cookie banner interaction keyed by
// their session identifier.
func (controller *Controller) logCookies(ec echo.Context) error {
	var request LogCookiesRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	entry := consent.Entry{
		SessionID:     request.SessionID,
		TermsAccepted: request.TermsAccepted,
		Timestamp:     request.Timestamp,
	}
	if err := controller.store.Upsert(controller.db, entry); err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, MessageDto{Message: "User cookie and terms data logged successfully"})
}
