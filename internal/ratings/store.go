package ratings

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/grabberapp/grabber/internal/database"
)

var (
	// ErrRatingNotFound indicates no rating exists for the requested
	// (user session, download type) pair.
	ErrRatingNotFound = errors.New("no rating found for this user and download type")

	// ErrRatingOutOfRange indicates a rating value outside the inclusive
	// [1, 5] range; such values are rejected before persistence.
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")
)

// OverallType is the sentinel download type which aggregates over every
// rating regardless of its type.
const OverallType = "overall"

type (
	ratingModel struct {
		ID           uuid.UUID `db:"id"`
		UserSession  string    `db:"user_session"`
		DownloadType string    `db:"download_type"`
		Rating       float64   `db:"rating"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	averageModel struct {
		AverageRating float64 `db:"average_rating"`
		TotalRatings  int     `db:"total_ratings"`
	}

	// Average is the aggregation result over a set of ratings. A set with
	// no matching records yields the zero value, which is not an error.
	Average struct {
		AverageRating float64
		TotalRatings  int
	}

	Store struct{}
)

func NewStore() *Store {
	return &Store{}
}

// Upsert persists a rating for the (userSession, downloadType) pair,
// overwriting any earlier rating for the same pair. Ratings outside the
// inclusive [1, 5] range are rejected with ErrRatingOutOfRange.
func (store *Store) Upsert(db database.Queryable, userSession string, downloadType string, rating float64) error {
	if rating < 1 || rating > 5 {
		return ErrRatingOutOfRange
	}

	_, err := db.Exec(`
		INSERT INTO ratings(id, user_session, download_type, rating, updated_at)
		VALUES ($1, $2, $3, $4, current_timestamp)
		ON CONFLICT (user_session, download_type)
		DO UPDATE SET rating = EXCLUDED.rating, updated_at = current_timestamp
	`, uuid.New(), userSession, downloadType, rating)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}

	return nil
}

// GetUserRating returns the rating the given user session stored for the
// given download type, or ErrRatingNotFound.
func (store *Store) GetUserRating(db database.Queryable, userSession string, downloadType string) (float64, error) {
	query, args, err := squirrel.
		Select("id", "user_session", "download_type", "rating", "updated_at").
		From("ratings").
		Where("user_session=?", userSession).
		Where("download_type=?", downloadType).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to construct select rating query: %w", err)
	}

	var rating ratingModel
	if err := db.Get(&rating, db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRatingNotFound
		}

		return 0, fmt.Errorf("failed to find rating: %w", err)
	}

	return rating.Rating, nil
}

// GetAverage aggregates the stored ratings for the given download type,
// matched case-insensitively. An empty type (or the "overall" sentinel)
// aggregates over every rating. The average is rounded to two decimals.
func (store *Store) GetAverage(db database.Queryable, downloadType string) (*Average, error) {
	builder := averageBuilder(downloadType)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct average rating query: %w", err)
	}

	var result averageModel
	if err := db.Get(&result, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	return &Average{
		AverageRating: round2(result.AverageRating),
		TotalRatings:  result.TotalRatings,
	}, nil
}

func averageBuilder(downloadType string) squirrel.SelectBuilder {
	builder := squirrel.
		Select("COALESCE(AVG(rating), 0) AS average_rating", "COUNT(*) AS total_ratings").
		From("ratings")

	if downloadType != "" && !strings.EqualFold(downloadType, OverallType) {
		builder = builder.Where("LOWER(download_type)=LOWER(?)", downloadType)
	}

	return builder
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
