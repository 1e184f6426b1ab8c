package sink

import (
	"context"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/store"
)

// ArchiveSink inserts submissions into the SQL archive. The store is owned by the caller.
type ArchiveSink struct {
	store store.SubmissionStore
}

func NewArchiveSink(st store.SubmissionStore) *ArchiveSink {
	return &ArchiveSink{store: st}
}

func (a *ArchiveSink) Name() string { return "archive" }

func (a *ArchiveSink) Append(ctx context.Context, sub models.Submission) error {
	return a.store.AddSubmission(ctx, sub)
}
