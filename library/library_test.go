package library

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/orbitalshelf/server/models"
)

// fakeRemote is an in-memory RemoteStore recording every call.
type fakeRemote struct {
	mu      sync.Mutex
	books   map[string]map[string]models.Book // userID -> bookID -> book
	patches []map[string]any
	sets    int
	deletes int

	failAll bool
	failIDs map[string]bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		books:   make(map[string]map[string]models.Book),
		failIDs: make(map[string]bool),
	}
}

var errRemoteDown = errors.New("remote unavailable")

func (f *fakeRemote) AllBooks(_ context.Context, userID string) ([]models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errRemoteDown
	}
	var books []models.Book
	for _, b := range f.books[userID] {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].CreatedAt > books[j].CreatedAt })
	return books, nil
}

func (f *fakeRemote) CountBooks(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return 0, errRemoteDown
	}
	return int64(len(f.books[userID])), nil
}

func (f *fakeRemote) SetBook(_ context.Context, book *models.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failIDs[book.ID] {
		return errRemoteDown
	}
	if f.books[book.UserID] == nil {
		f.books[book.UserID] = make(map[string]models.Book)
	}
	f.books[book.UserID][book.ID] = *book
	f.sets++
	return nil
}

func (f *fakeRemote) PatchBook(_ context.Context, userID, bookID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errRemoteDown
	}
	f.patches = append(f.patches, fields)
	return nil
}

func (f *fakeRemote) DeleteBook(_ context.Context, userID, bookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errRemoteDown
	}
	delete(f.books[userID], bookID)
	f.deletes++
	return nil
}

func (f *fakeRemote) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func (f *fakeRemote) stored(userID string) map[string]models.Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.Book, len(f.books[userID]))
	for id, b := range f.books[userID] {
		out[id] = b
	}
	return out
}

func (f *fakeRemote) lastPatch() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.patches) == 0 {
		return nil
	}
	return f.patches[len(f.patches)-1]
}

// fakeSnapshot is an in-memory SnapshotStore.
type fakeSnapshot struct {
	mu       sync.Mutex
	data     map[string][]models.Book
	failLoad bool
}

func newFakeSnapshot() *fakeSnapshot {
	return &fakeSnapshot{data: make(map[string][]models.Book)}
}

func (f *fakeSnapshot) LoadSnapshot(userID string) ([]models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errors.New("snapshot unreadable")
	}
	books, ok := f.data[userID]
	if !ok {
		return nil, nil
	}
	out := make([]models.Book, len(books))
	copy(out, books)
	return out, nil
}

func (f *fakeSnapshot) SaveSnapshot(userID string, books []models.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Book, len(books))
	copy(out, books)
	f.data[userID] = out
	return nil
}

func (f *fakeSnapshot) stored(userID string) []models.Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[userID]
}

func newTestService(remote RemoteStore, local SnapshotStore) *Service {
	svc := &Service{userID: "user-1", remote: remote, local: local}
	if remote != nil {
		svc.outbox = NewOutbox(remote)
	}
	return svc
}
