package store

import (
	"database/sql"
	"fmt"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanSubmissions reads every row of a submissions query.
func scanSubmissions(rows *sql.Rows) ([]models.Submission, error) {
	var subs []models.Submission
	for rows.Next() {
		var sub models.Submission
		var handle sql.NullString
		err := rows.Scan(
			&sub.ID, &sub.Kind, &sub.UserID, &handle, &sub.Size, &sub.Name,
			&sub.FromCity, &sub.ToCity, &sub.Date, &sub.DateDisplay, &sub.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan submission failed: %w", err)
		}
		sub.Handle = handle.String
		sub.CreatedAt = sub.CreatedAt.UTC()
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	return subs, nil
}
