package kitsu

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"kitsusync/internal/library"
)

// ============================================
// API RESPONSE STRUCTURES
// ============================================

// ResourceID identifies a JSON:API resource
type ResourceID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Relationship links a resource to another one
type Relationship struct {
	Data *ResourceID `json:"data,omitempty"`
}

// Resource is a single JSON:API resource object
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Links contains pagination links
type Links struct {
	First string `json:"first,omitempty"`
	Next  string `json:"next,omitempty"`
	Last  string `json:"last,omitempty"`
}

// Meta contains collection metadata
type Meta struct {
	Count int `json:"count"`
}

// LibraryEntriesResponse is a page of library entries with the anime included
type LibraryEntriesResponse struct {
	Data     []Resource `json:"data"`
	Included []Resource `json:"included,omitempty"`
	Links    Links      `json:"links"`
	Meta     Meta       `json:"meta"`
}

// AnimeResponse wraps a single anime resource
type AnimeResponse struct {
	Data Resource `json:"data"`
}

// AnimeAttributes are the anime fields the library cares about
type AnimeAttributes struct {
	Slug           string      `json:"slug"`
	CanonicalTitle string      `json:"canonicalTitle"`
	Synopsis       string      `json:"synopsis"`
	AverageRating  float64     `json:"averageRating"` // 0-5
	StartDate      string      `json:"startDate"`
	EndDate        string      `json:"endDate"`
	AgeRating      string      `json:"ageRating"`
	ShowType       string      `json:"showType"`
	EpisodeCount   int         `json:"episodeCount"`
	PosterImage    *ImageLinks `json:"posterImage"`
}

// ImageLinks contains image URLs by size
type ImageLinks struct {
	Original string `json:"original"`
	Large    string `json:"large"`
	Medium   string `json:"medium"`
}

// LibraryEntryAttributes are the user's list fields for one anime
type LibraryEntryAttributes struct {
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	Reconsuming    bool   `json:"reconsuming"`
	ReconsumeCount int    `json:"reconsumeCount"`
	Rating         string `json:"rating"` // 0-5, half points
	StartedAt      string `json:"startedAt"`
	FinishedAt     string `json:"finishedAt"`
	UpdatedAt      string `json:"updatedAt"`
}

// LibraryEntryUpdate is the attribute set submitted when editing an entry
type LibraryEntryUpdate struct {
	Status         string `json:"status,omitempty"`
	Progress       int    `json:"progress"`
	Reconsuming    bool   `json:"reconsuming"`
	ReconsumeCount int    `json:"reconsumeCount"`
	Rating         string `json:"rating"`
}

// ============================================
// RECORD EXTRACTION
// ============================================

// ExtractAnime converts an anime resource into a library record
func (t *Translator) ExtractAnime(res Resource) (*library.Anime, error) {
	id, err := resourceID(res)
	if err != nil {
		return nil, err
	}

	var attrs AnimeAttributes
	if err := decodeAttributes(res, &attrs); err != nil {
		return nil, err
	}

	anime := &library.Anime{
		KitsuID:      id,
		Slug:         attrs.Slug,
		Title:        attrs.CanonicalTitle,
		Synopsis:     strings.TrimSpace(attrs.Synopsis),
		SeriesType:   t.SeriesTypeFrom(attrs.ShowType),
		AgeRating:    t.AgeRatingFrom(attrs.AgeRating),
		EpisodeCount: attrs.EpisodeCount,
		Score:        SeriesRatingFrom(attrs.AverageRating),
		DateStart:    DateFrom(attrs.StartDate),
		DateEnd:      DateFrom(attrs.EndDate),
	}

	// Prefer the original poster, fall back to smaller ones
	if img := attrs.PosterImage; img != nil {
		switch {
		case img.Original != "":
			anime.ImageURL = img.Original
		case img.Large != "":
			anime.ImageURL = img.Large
		default:
			anime.ImageURL = img.Medium
		}
	}

	return anime, nil
}

// ExtractLibraryEntry converts a library entry resource into a library record
func (t *Translator) ExtractLibraryEntry(userID string, res Resource) (*library.Entry, error) {
	id, err := resourceID(res)
	if err != nil {
		return nil, err
	}

	var attrs LibraryEntryAttributes
	if err := decodeAttributes(res, &attrs); err != nil {
		return nil, err
	}

	entry := &library.Entry{
		KitsuEntryID:    id,
		UserID:          userID,
		Status:          t.MyStatusFrom(attrs.Status),
		Rating:          MyRatingFrom(attrs.Rating),
		WatchedEpisodes: attrs.Progress,
		Rewatching:      attrs.Reconsuming,
		RewatchedTimes:  attrs.ReconsumeCount,
		DateStart:       DateFrom(attrs.StartedAt),
		DateEnd:         DateFrom(attrs.FinishedAt),
		LastUpdated:     MyLastUpdatedFrom(attrs.UpdatedAt),
	}

	if rel, ok := res.Relationships["anime"]; ok && rel.Data != nil {
		animeID, err := strconv.Atoi(rel.Data.ID)
		if err != nil {
			return nil, fmt.Errorf("library entry %s has invalid anime id %q: %w", res.ID, rel.Data.ID, err)
		}
		entry.AnimeID = animeID
	}

	return entry, nil
}

// BuildLibraryEntryUpdate converts a library record into the attributes sent to Kitsu
func (t *Translator) BuildLibraryEntryUpdate(entry *library.Entry) LibraryEntryUpdate {
	return LibraryEntryUpdate{
		Status:         t.MyStatusTo(entry.Status),
		Progress:       entry.WatchedEpisodes,
		Reconsuming:    entry.Rewatching,
		ReconsumeCount: entry.RewatchedTimes,
		Rating:         MyRatingTo(entry.Rating),
	}
}

// ============================================
// HELPER FUNCTIONS
// ============================================

func resourceID(res Resource) (int, error) {
	id, err := strconv.Atoi(res.ID)
	if err != nil {
		return 0, fmt.Errorf("%s resource has invalid id %q: %w", res.Type, res.ID, err)
	}
	return id, nil
}

func decodeAttributes(res Resource, target interface{}) error {
	if len(res.Attributes) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Attributes, target); err != nil {
		return fmt.Errorf("failed to decode %s %s attributes: %w", res.Type, res.ID, err)
	}
	return nil
}

// includedAnime indexes the anime resources of a response by ID
func includedAnime(included []Resource) map[string]Resource {
	index := make(map[string]Resource, len(included))
	for _, res := range included {
		if res.Type == "anime" {
			index[res.ID] = res
		}
	}
	return index
}
