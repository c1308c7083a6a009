package consent

import (
	"fmt"

	"github.com/grabberapp/grabber/internal/database"
)

// Entry records a user's cookie banner interaction: whether the terms
// were accepted, and the client-reported timestamp of the interaction.
type Entry struct {
	SessionID     string
	TermsAccepted bool
	Timestamp     string
}

type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Upsert stores the consent entry, overwriting any earlier record for the
// same session.
func (store *Store) Upsert(db database.Queryable, entry Entry) error {
	_, err := db.Exec(`
		INSERT INTO consent_logs(session_id, terms_accepted, logged_at, updated_at)
		VALUES ($1, $2, $3, current_timestamp)
		ON CONFLICT (session_id)
		DO UPDATE SET terms_accepted = EXCLUDED.terms_accepted, logged_at = EXCLUDED.logged_at, updated_at = current_timestamp
	`, entry.SessionID, entry.TermsAccepted, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert consent entry: %w", err)
	}

	return nil
}
