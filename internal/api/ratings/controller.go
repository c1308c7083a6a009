package ratings

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/grabberapp/grabber/internal/database"
	"github.com/grabberapp/grabber/internal/ratings"
	"github.com/labstack/echo/v4"
)

type (
	RatingRequest struct {
		UserSession  string  `json:"user_session" validate:"required"`
		DownloadType string  `json:"download_type" validate:"required"`
		Rating       float64 `json:"rating" validate:"required"`
	}

	UserRatingDto struct {
		Rating float64 `json:"rating"`
	}

	AverageDto struct {
		AverageRating float64 `json:"average_rating"`
		TotalRatings  int     `json:"total_ratings"`
	}

	MessageDto struct {
		Message string `json:"message"`
	}

	Store interface {
		Upsert(db database.Queryable, userSession string, downloadType string, rating float64) error
		GetUserRating(db database.Queryable, userSession string, downloadType string) (float64, error)
		GetAverage(db database.Queryable, downloadType string) (*ratings.Average, error)
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
	eg.POST("/ratings", controller.rateDownload)
	eg.GET("/ratings/user", controller.getUserRating)
	eg.GET("/ratings/average", controller.getAverageRating)
}

// rateDownload adds or overwrites the caller's rating for a download
// type. The range check lives in the store; out-of-range values surface
// as a 400 through the central error handler.
func (controller *Controller) rateDownload(ec echo.Context) error {
	var request RatingRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "user_session, download_type and rating are required")
	}

	if err := controller.store.Upsert(controller.db, request.UserSession, request.DownloadType, request.Rating); err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, MessageDto{Message: "Rating saved successfully."})
}

func (controller *Controller) getUserRating(ec echo.Context) error {
	userSession, downloadType := ec.QueryParam("user_session"), ec.QueryParam("download_type")
	if userSession == "" || downloadType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_session and download_type query parameters are required")
	}

	rating, err := controller.store.GetUserRating(controller.db, userSession, downloadType)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, UserRatingDto{Rating: rating})
}

func (controller *Controller) getAverageRating(ec echo.Context) error {
	average, err := controller.store.GetAverage(controller.db, ec.QueryParam("download_type"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, AverageDto{
		AverageRating: average.AverageRating,
		TotalRatings:  average.TotalRatings,
	})
}
