package library

import (
	"math"
	"sort"
	"strings"

	"github.com/orbitalshelf/server/models"
)

// Sort keys accepted by Filter.Sort. Timestamps are RFC 3339 strings, so
// plain string comparison orders them chronologically.
const (
	SortCreatedAsc  = "created_asc"
	SortCreatedDesc = "created_desc"
	SortUpdatedAsc  = "updated_asc"
	SortUpdatedDesc = "updated_desc" // default
)

// Filter selects and orders books. Criteria compose conjunctively. An empty
// Status list, or one containing "all", bypasses the status filter.
type Filter struct {
	Status []string
	Genre  string
	Query  string
	Sort   string
}

// Books returns a filtered, sorted copy of the cache.
func (s *Service) Books(f Filter) []models.Book {
	s.mu.Lock()
	out := make([]models.Book, 0, len(s.cache))
	for i := range s.cache {
		if matches(&s.cache[i], &f) {
			out = append(out, s.cache[i])
		}
	}
	s.mu.Unlock()

	sortBooks(out, f.Sort)
	return out
}

func matches(b *models.Book, f *Filter) bool {
	if !statusAllowed(b.Status, f.Status) {
		return false
	}
	if f.Genre != "" && b.Genre() != f.Genre {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(b.Title), q) &&
			!strings.Contains(strings.ToLower(b.Author), q) &&
			!anyTagContains(b.Tags, q) {
			return false
		}
	}
	return true
}

func statusAllowed(status string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == "all" {
			return true
		}
		if w == status {
			return true
		}
	}
	return false
}

func anyTagContains(tags []string, q string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// sortTimestamp falls back through updatedAt, createdAt, and the raw id, in
// that order, matching the list ordering the app has always shown.
func sortTimestamp(b *models.Book) string {
	if b.UpdatedAt != "" {
		return b.UpdatedAt
	}
	if b.CreatedAt != "" {
		return b.CreatedAt
	}
	return b.ID
}

func createdTimestamp(b *models.Book) string {
	if b.CreatedAt != "" {
		return b.CreatedAt
	}
	return b.ID
}

func sortBooks(books []models.Book, key string) {
	sort.SliceStable(books, func(i, j int) bool {
		switch key {
		case SortCreatedAsc:
			return createdTimestamp(&books[i]) < createdTimestamp(&books[j])
		case SortCreatedDesc:
			return createdTimestamp(&books[i]) > createdTimestamp(&books[j])
		case SortUpdatedAsc:
			return sortTimestamp(&books[i]) < sortTimestamp(&books[j])
		default: // SortUpdatedDesc
			return sortTimestamp(&books[i]) > sortTimestamp(&books[j])
		}
	})
}

// AllTags returns the union of tags across all books, in first-seen order.
func (s *Service) AllTags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	tags := []string{}
	for i := range s.cache {
		for _, t := range s.cache[i].Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// AllGenres returns the distinct tags[0] values across books that have at
// least one tag, in first-seen order.
func (s *Service) AllGenres() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	genres := []string{}
	for i := range s.cache {
		g := s.cache[i].Genre()
		if g != "" && !seen[g] {
			seen[g] = true
			genres = append(genres, g)
		}
	}
	return genres
}

// Progress is the read percentage, 0 when totalPages is unset and capped at
// 100 when currentPage overshoots.
func Progress(b *models.Book) int {
	if b.TotalPages <= 0 {
		return 0
	}
	pct := int(math.Round(float64(b.CurrentPage) / float64(b.TotalPages) * 100))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
