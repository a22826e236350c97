package library

import (
	"context"
	"log"
)

// Migrate reconciles a pre-existing local snapshot into the remote store,
// once. It is a no-op when there is no remote store, when the snapshot is
// empty, or when the remote collection already holds any document for the
// user: migration never overwrites existing remote data (first-writer-wins at
// the collection level). Individual record failures are logged and skipped;
// writes are keyed by id and overwrite, so a retry after a partial failure is
// idempotent. Returns the number of records written.
func (s *Service) Migrate(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, nil
	}
	books, err := s.local.LoadSnapshot(s.userID)
	if err != nil {
		return 0, err
	}
	if len(books) == 0 {
		return 0, nil
	}
	count, err := s.remote.CountBooks(ctx, s.userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	migrated := 0
	for i := range books {
		book := books[i]
		book.UserID = s.userID
		if err := s.remote.SetBook(ctx, &book); err != nil {
			log.Printf("library: migrate %s for %s: %v", book.ID, s.userID, err)
			continue
		}
		migrated++
	}
	return migrated, nil
}
