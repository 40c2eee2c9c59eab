package kitsu

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"kitsusync/internal/library"
)

const librarySyncType = "kitsu_library_sync"

// LibraryClient is the part of the Kitsu API the sync service uses
type LibraryClient interface {
	GetAnime(ctx context.Context, id int) (*AnimeResponse, error)
	GetLibraryEntries(ctx context.Context, userID string, offset, limit int) (*LibraryEntriesResponse, error)
	UpdateLibraryEntry(ctx context.Context, entryID int, update LibraryEntryUpdate) error
}

// SlugCache remembers anime slugs for building page links
type SlugCache interface {
	GetSlug(ctx context.Context, animeID int) (string, bool, error)
	SetSlug(ctx context.Context, animeID int, slug string) error
}

// SyncConfig holds configuration for the sync service
type SyncConfig struct {
	UserID      string
	Username    string
	BaseURL     string
	PageLimit   int
	WorkerCount int
}

// SyncService manages Kitsu library synchronization
type SyncService struct {
	client     LibraryClient
	store      Store
	cache      SlugCache
	translator *Translator
	pages      Pages
	log        zerolog.Logger

	userID      string
	username    string
	pageLimit   int
	workerCount int
}

// NewSyncService creates a new sync service instance. cache may be nil.
func NewSyncService(config SyncConfig, client LibraryClient, store Store, cache SlugCache, logger zerolog.Logger) *SyncService {
	pageLimit := config.PageLimit
	if pageLimit <= 0 {
		pageLimit = 20 // Default
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 4 // Default
	}

	return &SyncService{
		client:      client,
		store:       store,
		cache:       cache,
		translator:  NewTranslator(logger.With().Str("component", "translator").Logger()),
		pages:       NewPages(config.BaseURL),
		log:         logger,
		userID:      config.UserID,
		username:    config.Username,
		pageLimit:   pageLimit,
		workerCount: workerCount,
	}
}

// Translator returns the translator used for library records
func (s *SyncService) Translator() *Translator {
	return s.translator
}

// AnimePage returns the Kitsu page of a stored anime
func (s *SyncService) AnimePage(ctx context.Context, animeID int) (string, error) {
	if s.cache != nil {
		slug, ok, err := s.cache.GetSlug(ctx, animeID)
		if err != nil {
			s.log.Warn().Err(err).Int("anime_id", animeID).Msg("Slug cache lookup failed")
		} else if ok {
			return s.pages.AnimePageURL(slug), nil
		}
	}

	anime, err := s.store.FindAnime(ctx, animeID)
	if err != nil {
		return "", fmt.Errorf("anime %d: %w", animeID, err)
	}
	if anime.Slug == "" {
		return "", fmt.Errorf("anime %d has no slug: %w", animeID, ErrNotFound)
	}

	s.rememberSlug(ctx, anime)
	return s.pages.AnimePageURL(anime.Slug), nil
}

// ProfilePage returns the configured user's profile page
func (s *SyncService) ProfilePage() (string, error) {
	if s.username == "" {
		return "", errors.New("kitsu username is not configured")
	}
	return s.pages.ProfileURL(s.username), nil
}

// SiteLinks returns the Kitsu pages shown when the service starts, keyed by name.
// The profile link is present only when a username is configured.
func (s *SyncService) SiteLinks() map[string]string {
	links := map[string]string{
		"dashboard":       s.pages.DashboardURL(),
		"recommendations": s.pages.RecommendationsURL(),
		"upcoming":        s.pages.UpcomingAnimeURL(),
	}
	if profile, err := s.ProfilePage(); err == nil {
		links["profile"] = profile
	}
	return links
}

// rememberSlug caches an anime slug, ignoring cache failures
func (s *SyncService) rememberSlug(ctx context.Context, anime *library.Anime) {
	if s.cache == nil || anime.Slug == "" {
		return
	}
	if err := s.cache.SetSlug(ctx, anime.KitsuID, anime.Slug); err != nil {
		s.log.Warn().Err(err).Int("anime_id", anime.KitsuID).Msg("Failed to cache slug")
	}
}

// processEntry translates and stores one library entry and its anime
func (s *SyncService) processEntry(ctx context.Context, res Resource, anime map[string]Resource) error {
	entry, err := s.translator.ExtractLibraryEntry(s.userID, res)
	if err != nil {
		return fmt.Errorf("failed to extract library entry: %w", err)
	}

	animeRes, err := s.entryAnime(ctx, res, entry.AnimeID, anime)
	if err != nil {
		return fmt.Errorf("failed to load anime %d: %w", entry.AnimeID, err)
	}
	if animeRes != nil {
		record, err := s.translator.ExtractAnime(*animeRes)
		if err != nil {
			return fmt.Errorf("failed to extract anime: %w", err)
		}
		if err := s.store.SaveAnime(ctx, record); err != nil {
			return err
		}
		s.rememberSlug(ctx, record)
	}

	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return err
	}

	s.log.Debug().Int("entry_id", entry.KitsuEntryID).Int("anime_id", entry.AnimeID).
		Str("status", entry.Status.String()).Msg("Synced library entry")
	return nil
}

// entryAnime returns the anime resource of a library entry. Anime left out of
// the page's included resources are fetched from Kitsu unless already stored.
// nil means there is nothing to save.
func (s *SyncService) entryAnime(ctx context.Context, res Resource, animeID int, included map[string]Resource) (*Resource, error) {
	rel, ok := res.Relationships["anime"]
	if !ok || rel.Data == nil {
		return nil, nil
	}
	if animeRes, ok := included[rel.Data.ID]; ok {
		return &animeRes, nil
	}

	_, err := s.store.FindAnime(ctx, animeID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	s.log.Debug().Int("anime_id", animeID).Msg("Anime missing from page, fetching")
	resp, err := s.client.GetAnime(ctx, animeID)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
