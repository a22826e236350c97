package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Reading status of a book.
const (
	StatusWish     = "wish"
	StatusReading  = "reading"
	StatusFinished = "finished"
)

var ValidStatuses = []string{StatusWish, StatusReading, StatusFinished}

// Ownership of a book. Empty means unset.
const (
	OwnershipOwned    = "owned"
	OwnershipBorrowed = "borrowed"
	OwnershipDigital  = "digital"
)

// ReadingLog is a dated snapshot of page progress plus an optional note.
// Logs are owned by their parent book and stored newest-first.
type ReadingLog struct {
	Date string `bson:"date" json:"date"` // YYYY-MM-DD
	Page int    `bson:"page" json:"page"`
	Memo string `bson:"memo,omitempty" json:"memo,omitempty"`
}

// Book is the sole persistent entity. IDs are generated server-side and
// stable; timestamps are fixed-width ISO strings (see Timestamp).
type Book struct {
	ID          string       `bson:"_id" json:"id"`
	UserID      string       `bson:"userId" json:"-"`
	Title       string       `bson:"title" json:"title"`
	Author      string       `bson:"author" json:"author"`
	Publisher   string       `bson:"publisher,omitempty" json:"publisher"`
	ISBN        string       `bson:"isbn,omitempty" json:"isbn"`
	TotalPages  int          `bson:"totalPages" json:"totalPages"`
	CurrentPage int          `bson:"currentPage" json:"currentPage"`
	Status      string       `bson:"status" json:"status"`
	Ownership   string       `bson:"ownership,omitempty" json:"ownership"`
	Tags        []string     `bson:"tags" json:"tags"`
	CoverURL    string       `bson:"coverUrl,omitempty" json:"coverUrl"`
	Notes       string       `bson:"notes,omitempty" json:"notes"`
	Rating      int          `bson:"rating" json:"rating"`
	ReadingLogs []ReadingLog `bson:"readingLogs" json:"readingLogs"`
	CreatedAt   string       `bson:"createdAt" json:"createdAt"`
	UpdatedAt   string       `bson:"updatedAt" json:"updatedAt"`
}

// Genre returns tags[0], the conventional genre slot, or "" when the book is untagged.
func (b *Book) Genre() string {
	if len(b.Tags) == 0 {
		return ""
	}
	return b.Tags[0]
}

// Timestamp formats t the way book timestamps are stored: UTC with a
// fixed-width millisecond fraction, so lexical order is chronological order.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// TagList decodes from either a JSON array of strings or a single comma-separated
// string, normalizing both forms to an ordered list of trimmed, non-empty tags.
// The string-or-list duck typing stops at the input boundary; everything past the
// handlers sees []string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = NormalizeTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("tags must be a list of strings or a comma-separated string")
	}
	*t = SplitTags(s)
	return nil
}

// SplitTags turns free text like "SF, 海外文学 , " into ["SF", "海外文学"].
func SplitTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags trims every tag and drops empty ones, preserving order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// BookInput is the create payload. Zero values fall back to the defaults from
// the data model (status wish, pages 0, empty tags).
type BookInput struct {
	Title       string  `json:"title" validate:"required"`
	Author      string  `json:"author"`
	Publisher   string  `json:"publisher"`
	ISBN        string  `json:"isbn"`
	TotalPages  int     `json:"totalPages" validate:"min=0"`
	CurrentPage int     `json:"currentPage" validate:"min=0"`
	Status      string  `json:"status" validate:"omitempty,oneof=wish reading finished"`
	Ownership   string  `json:"ownership" validate:"omitempty,oneof=owned borrowed digital"`
	Tags        TagList `json:"tags"`
	CoverURL    string  `json:"coverUrl"`
	Notes       string  `json:"notes"`
	Rating      int     `json:"rating" validate:"min=0,max=5"`
}

// BookUpdate is a partial update: nil pointers mean "leave unchanged".
type BookUpdate struct {
	Title       *string       `json:"title" validate:"omitempty,min=1"`
	Author      *string       `json:"author"`
	Publisher   *string       `json:"publisher"`
	ISBN        *string       `json:"isbn"`
	TotalPages  *int          `json:"totalPages" validate:"omitempty,min=0"`
	CurrentPage *int          `json:"currentPage" validate:"omitempty,min=0"`
	Status      *string       `json:"status" validate:"omitempty,oneof=wish reading finished"`
	Ownership   *string       `json:"ownership" validate:"omitempty,oneof=owned borrowed digital"`
	Tags        *TagList      `json:"tags"`
	CoverURL    *string       `json:"coverUrl"`
	Notes       *string       `json:"notes"`
	Rating      *int          `json:"rating" validate:"omitempty,min=0,max=5"`
	ReadingLogs *[]ReadingLog `json:"readingLogs"`
}

// Apply merges the supplied fields over b. It does not touch UpdatedAt; the
// library service stamps that on every mutation.
func (u *BookUpdate) Apply(b *Book) {
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	if u.Publisher != nil {
		b.Publisher = *u.Publisher
	}
	if u.ISBN != nil {
		b.ISBN = *u.ISBN
	}
	if u.TotalPages != nil {
		b.TotalPages = *u.TotalPages
	}
	if u.CurrentPage != nil {
		b.CurrentPage = *u.CurrentPage
	}
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.Ownership != nil {
		b.Ownership = *u.Ownership
	}
	if u.Tags != nil {
		b.Tags = []string(*u.Tags)
	}
	if u.CoverURL != nil {
		b.CoverURL = *u.CoverURL
	}
	if u.Notes != nil {
		b.Notes = *u.Notes
	}
	if u.Rating != nil {
		b.Rating = *u.Rating
	}
	if u.ReadingLogs != nil {
		b.ReadingLogs = *u.ReadingLogs
	}
}

// Fields returns the supplied fields as a $set-ready map keyed by the bson
// field names, so a remote patch only touches what changed.
func (u *BookUpdate) Fields() map[string]any {
	fields := map[string]any{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Author != nil {
		fields["author"] = *u.Author
	}
	if u.Publisher != nil {
		fields["publisher"] = *u.Publisher
	}
	if u.ISBN != nil {
		fields["isbn"] = *u.ISBN
	}
	if u.TotalPages != nil {
		fields["totalPages"] = *u.TotalPages
	}
	if u.CurrentPage != nil {
		fields["currentPage"] = *u.CurrentPage
	}
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	if u.Ownership != nil {
		fields["ownership"] = *u.Ownership
	}
	if u.Tags != nil {
		fields["tags"] = []string(*u.Tags)
	}
	if u.CoverURL != nil {
		fields["coverUrl"] = *u.CoverURL
	}
	if u.Notes != nil {
		fields["notes"] = *u.Notes
	}
	if u.Rating != nil {
		fields["rating"] = *u.Rating
	}
	if u.ReadingLogs != nil {
		fields["readingLogs"] = *u.ReadingLogs
	}
	return fields
}
