package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const googleBooksBase = "https://www.googleapis.com/books/v1/volumes"

// searchLimitCap is the maximum the volumes API accepts for maxResults.
const searchLimitCap = 40

// MetadataClient looks up bibliographic metadata from the Google Books API.
// BaseURL and HTTPClient are injectable for tests.
type MetadataClient struct {
	BaseURL    string
	Lang       string // optional langRestrict for free-text search
	HTTPClient *http.Client
}

func NewMetadataClient(lang string) *MetadataClient {
	return &MetadataClient{
		BaseURL: googleBooksBase,
		Lang:    lang,
		// Short timeout so a hung API call never stalls the caller for long.
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// BookResult is the normalized metadata shape consumed by the client app.
type BookResult struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Publisher   string   `json:"publisher"`
	ISBN        string   `json:"isbn"`
	TotalPages  int      `json:"totalPages"`
	CoverURL    string   `json:"coverUrl"`
	PublishDate string   `json:"publishDate"`
	PublishYear string   `json:"publishYear"`
	Subjects    []string `json:"subjects"`
	Description string   `json:"description"`
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Categories          []string `json:"categories"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			Thumbnail string `json:"thumbnail"`
			Small     string `json:"small"`
			Medium    string `json:"medium"`
			Large     string `json:"large"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// FetchByISBN returns at most one normalized result for an ISBN-10 or ISBN-13,
// or (nil, nil) when the ISBN is malformed or nothing matches.
func (c *MetadataClient) FetchByISBN(ctx context.Context, isbn string) (*BookResult, error) {
	clean := normalizeISBN(isbn)
	if clean == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("q", "isbn:"+clean)
	data, err := c.volumes(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(data.Items) == 0 {
		return nil, nil
	}
	result := parseVolume(&data.Items[0], clean)
	return &result, nil
}

// Search returns up to limit normalized results for a free-text query. Queries
// under 2 characters yield an empty result set.
func (c *MetadataClient) Search(ctx context.Context, query string, limit int) ([]BookResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return []BookResult{}, nil
	}
	if limit <= 0 || limit > searchLimitCap {
		limit = searchLimitCap
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("printType", "books")
	if c.Lang != "" {
		q.Set("langRestrict", c.Lang)
	}
	data, err := c.volumes(ctx, q)
	if err != nil {
		return nil, err
	}
	results := make([]BookResult, 0, len(data.Items))
	for i := range data.Items {
		results = append(results, parseVolume(&data.Items[i], ""))
	}
	return results, nil
}

func (c *MetadataClient) volumes(ctx context.Context, q url.Values) (*volumesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books returned %d", resp.StatusCode)
	}
	var data volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

func parseVolume(v *volume, providedISBN string) BookResult {
	vi := &v.VolumeInfo

	isbn := providedISBN
	if isbn == "" {
		// Prefer ISBN-13 over ISBN-10.
		for _, id := range vi.IndustryIdentifiers {
			if id.Type == "ISBN_13" {
				isbn = id.Identifier
				break
			}
			if id.Type == "ISBN_10" && isbn == "" {
				isbn = id.Identifier
			}
		}
	}

	year := ""
	if len(vi.PublishedDate) >= 4 {
		year = vi.PublishedDate[:4]
	}

	return BookResult{
		Key:         v.ID,
		Title:       vi.Title,
		Author:      strings.Join(vi.Authors, ", "),
		Publisher:   vi.Publisher,
		ISBN:        isbn,
		TotalPages:  vi.PageCount,
		CoverURL:    bestCoverURL(vi.ImageLinks.Large, vi.ImageLinks.Medium, vi.ImageLinks.Small, vi.ImageLinks.Thumbnail),
		PublishDate: vi.PublishedDate,
		PublishYear: year,
		Subjects:    vi.Categories,
		Description: vi.Description,
	}
}

// bestCoverURL picks the highest-resolution variant, upgrades the scheme, and
// strips the curl-page-edge decoration so covers render flat.
func bestCoverURL(candidates ...string) string {
	for _, u := range candidates {
		if u == "" {
			continue
		}
		u = strings.Replace(u, "http://", "https://", 1)
		u = strings.ReplaceAll(u, "&edge=curl", "")
		return u
	}
	return ""
}

// normalizeISBN strips punctuation and whitespace; anything other than 10 or
// 13 digits comes back empty.
func normalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range isbn {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if len(clean) != 10 && len(clean) != 13 {
		return ""
	}
	return clean
}
