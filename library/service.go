// Package library owns the in-memory book list for each user and mediates
// between the remote document store (Mongo) and the local snapshot store
// (Badger). Local state is the source of truth for the caller: every mutation
// commits to the cache and snapshot first, then syncs to the remote store
// best-effort through the outbox.
package library

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/orbitalshelf/server/models"
)

// RemoteStore is the per-user remote document collection. Implemented by store.DB.
type RemoteStore interface {
	AllBooks(ctx context.Context, userID string) ([]models.Book, error)
	CountBooks(ctx context.Context, userID string) (int64, error)
	SetBook(ctx context.Context, book *models.Book) error
	PatchBook(ctx context.Context, userID, bookID string, fields map[string]any) error
	DeleteBook(ctx context.Context, userID, bookID string) error
}

// SnapshotStore is the single-slot local mirror of the full list. Implemented by store.Local.
type SnapshotStore interface {
	LoadSnapshot(userID string) ([]models.Book, error)
	SaveSnapshot(userID string, books []models.Book) error
}

// Service is the library data service for one user.
type Service struct {
	userID string
	remote RemoteStore // nil when the server runs without Mongo
	local  SnapshotStore
	outbox *Outbox

	initOnce sync.Once

	mu     sync.Mutex
	cache  []models.Book // newest-first on insert
	online bool          // last load reached the remote store
}

// Manager hands out one Service per user id, constructing it on first use.
type Manager struct {
	remote RemoteStore
	local  SnapshotStore
	outbox *Outbox

	mu       sync.Mutex
	services map[string]*Service
}

func NewManager(remote RemoteStore, local SnapshotStore) *Manager {
	m := &Manager{
		remote:   remote,
		local:    local,
		services: make(map[string]*Service),
	}
	if remote != nil {
		m.outbox = NewOutbox(remote)
	}
	return m
}

// ForUser returns the user's service. On first use it runs the one-time
// local-to-remote migration and then loads the cache.
func (m *Manager) ForUser(ctx context.Context, userID string) *Service {
	m.mu.Lock()
	svc, ok := m.services[userID]
	if !ok {
		svc = &Service{userID: userID, remote: m.remote, local: m.local, outbox: m.outbox}
		m.services[userID] = svc
	}
	m.mu.Unlock()

	svc.initOnce.Do(func() {
		if n, err := svc.Migrate(ctx); err != nil {
			log.Printf("library: migration for %s: %v", userID, err)
		} else if n > 0 {
			log.Printf("library: migrated %d local books to remote for %s", n, userID)
		}
		svc.Load(ctx)
	})
	return svc
}

// Close drains the outbox.
func (m *Manager) Close() {
	if m.outbox != nil {
		m.outbox.Close()
	}
}

// newBookID builds a time-prefixed id with a random suffix, e.g.
// book_1756450000123_k3j9x02mf. The millisecond prefix keeps ids roughly
// insertion-ordered; the suffix makes collisions negligible.
func newBookID() string {
	suffix := gonanoid.MustGenerate("0123456789abcdefghijklmnopqrstuvwxyz", 9)
	return fmt.Sprintf("book_%d_%s", time.Now().UnixMilli(), suffix)
}

// Load fetches the full list from the remote store, falling back to the local
// snapshot when the remote is unreachable or not configured. A missing snapshot
// yields an empty list, never an error.
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remote != nil {
		books, err := s.remote.AllBooks(ctx, s.userID)
		if err == nil {
			if books == nil {
				books = []models.Book{}
			}
			s.cache = books
			s.online = true
			s.persistLocked()
			return
		}
		log.Printf("library: remote load for %s failed, using local snapshot: %v", s.userID, err)
	}

	books, err := s.local.LoadSnapshot(s.userID)
	if err != nil {
		log.Printf("library: snapshot load for %s: %v", s.userID, err)
		books = nil
	}
	if books == nil {
		books = []models.Book{}
	}
	s.cache = books
	s.online = false
}

// Online reports whether the last load reached the remote store.
func (s *Service) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// AddBook creates a record with a generated id and defaults, inserts it at the
// front of the cache, persists locally, and enqueues a best-effort remote write.
// The created record is returned regardless of the remote outcome.
func (s *Service) AddBook(ctx context.Context, input *models.BookInput) *models.Book {
	now := models.Timestamp(time.Now())
	status := input.Status
	if status == "" {
		status = models.StatusWish
	}
	tags := []string(input.Tags)
	if tags == nil {
		tags = []string{}
	}
	book := models.Book{
		ID:          newBookID(),
		UserID:      s.userID,
		Title:       input.Title,
		Author:      input.Author,
		Publisher:   input.Publisher,
		ISBN:        input.ISBN,
		TotalPages:  input.TotalPages,
		CurrentPage: input.CurrentPage,
		Status:      status,
		Ownership:   input.Ownership,
		Tags:        tags,
		CoverURL:    input.CoverURL,
		Notes:       input.Notes,
		Rating:      input.Rating,
		ReadingLogs: []models.ReadingLog{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.cache = append([]models.Book{book}, s.cache...)
	s.persistLocked()
	s.mu.Unlock()

	if s.remote != nil {
		remote := book
		s.outbox.enqueue(remoteOp{kind: opSet, userID: s.userID, bookID: book.ID, book: &remote})
	}
	return &book
}

// UpdateBook merges the supplied fields over the record, stamps updatedAt,
// persists locally, and enqueues a partial remote patch of only the changed
// fields. Returns nil when the id is unknown.
func (s *Service) UpdateBook(ctx context.Context, id string, update *models.BookUpdate) *models.Book {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	update.Apply(&s.cache[idx])
	now := models.Timestamp(time.Now())
	s.cache[idx].UpdatedAt = now
	book := s.cache[idx]
	s.persistLocked()
	s.mu.Unlock()

	if s.remote != nil {
		fields := update.Fields()
		fields["updatedAt"] = now
		s.outbox.enqueue(remoteOp{kind: opPatch, userID: s.userID, bookID: id, fields: fields})
	}
	return &book
}

// DeleteBook removes the record. Returns false when the id is unknown, leaving
// the cache untouched.
func (s *Service) DeleteBook(ctx context.Context, id string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.cache = append(s.cache[:idx], s.cache[idx+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	if s.remote != nil {
		s.outbox.enqueue(remoteOp{kind: opDelete, userID: s.userID, bookID: id})
	}
	return true
}

// AddReadingLog prepends a dated log entry, advances currentPage to the log's
// page, applies the status transition rules, and delegates to UpdateBook with
// exactly those three fields. Negative pages are clamped to 0. Returns nil when
// the book is unknown.
func (s *Service) AddReadingLog(ctx context.Context, id string, page int, memo string) *models.Book {
	if page < 0 {
		page = 0
	}
	entry := models.ReadingLog{
		Date: time.Now().UTC().Format("2006-01-02"),
		Page: page,
		Memo: memo,
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	book := s.cache[idx]
	s.mu.Unlock()

	logs := append([]models.ReadingLog{entry}, book.ReadingLogs...)
	status := book.Status
	if book.TotalPages > 0 && page >= book.TotalPages {
		status = models.StatusFinished
	} else if page > 0 && status == models.StatusWish {
		status = models.StatusReading
	}
	return s.UpdateBook(ctx, id, &models.BookUpdate{
		ReadingLogs: &logs,
		CurrentPage: &page,
		Status:      &status,
	})
}

// GetBook returns a copy of the record, or nil when absent.
func (s *Service) GetBook(id string) *models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil
	}
	book := s.cache[idx]
	return &book
}

// Status describes the service for the status endpoint.
type Status struct {
	Online bool        `json:"online"`
	Books  int         `json:"books"`
	Outbox OutboxStats `json:"outbox"`
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Online: s.online,
		Books:  len(s.cache),
		Outbox: s.outbox.Stats(),
	}
}

func (s *Service) indexLocked(id string) int {
	for i := range s.cache {
		if s.cache[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked mirrors the cache into the snapshot slot. Failure is logged,
// never surfaced; the in-memory result already committed.
func (s *Service) persistLocked() {
	books := make([]models.Book, len(s.cache))
	copy(books, s.cache)
	if err := s.local.SaveSnapshot(s.userID, books); err != nil {
		log.Printf("library: save snapshot for %s: %v", s.userID, err)
	}
}
