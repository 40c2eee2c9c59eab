package kitsu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kitsusync/internal/library"
)

// Sync state statuses
const (
	SyncStatusRunning   = "running"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// SyncState represents a sync operation state in the database
type SyncState struct {
	ID            int    `gorm:"primaryKey"`
	SyncType      string `gorm:"unique;not null"`
	LastRunAt     *time.Time
	LastSuccessAt *time.Time
	LastCursor    string
	Status        string
	ErrorMessage  string
	UpdatedAt     time.Time
}

// TableName specifies the table name for SyncState
func (SyncState) TableName() string {
	return "sync_state"
}

// Store persists translated records
type Store interface {
	SaveAnime(ctx context.Context, anime *library.Anime) error
	SaveEntry(ctx context.Context, entry *library.Entry) error
	FindAnime(ctx context.Context, kitsuID int) (*library.Anime, error)
	GetSyncState(ctx context.Context, syncType string) (*SyncState, error)
	UpdateSyncState(ctx context.Context, syncType, status, cursor string, err error) error
}

// GormStore is the Postgres-backed Store
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store on an open gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables used by the store
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&library.Anime{}, &library.Entry{}, &SyncState{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// SaveAnime inserts or updates an anime by Kitsu ID
func (s *GormStore) SaveAnime(ctx context.Context, anime *library.Anime) error {
	now := time.Now()
	anime.KitsuLastSyncedAt = &now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kitsu_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"slug", "title", "synopsis", "series_type", "age_rating", "episode_count",
			"score", "date_start", "date_end", "image_url", "kitsu_last_synced_at", "updated_at",
		}),
	}).Create(anime).Error
	if err != nil {
		return fmt.Errorf("failed to save anime %d: %w", anime.KitsuID, err)
	}
	return nil
}

// SaveEntry inserts or updates a library entry by Kitsu entry ID
func (s *GormStore) SaveEntry(ctx context.Context, entry *library.Entry) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kitsu_entry_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "anime_id", "status", "rating", "watched_episodes", "rewatching",
			"rewatched_times", "date_start", "date_end", "last_updated", "updated_at",
		}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to save library entry %d: %w", entry.KitsuEntryID, err)
	}
	return nil
}

// FindAnime looks up an anime by Kitsu ID
func (s *GormStore) FindAnime(ctx context.Context, kitsuID int) (*library.Anime, error) {
	var anime library.Anime
	err := s.db.WithContext(ctx).Where("kitsu_id = ?", kitsuID).First(&anime).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &anime, nil
}

// GetSyncState retrieves sync state from database
func (s *GormStore) GetSyncState(ctx context.Context, syncType string) (*SyncState, error) {
	var state SyncState
	err := s.db.WithContext(ctx).Where("sync_type = ?", syncType).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &state, nil
}

// UpdateSyncState updates the sync state in database, creating it on first use
func (s *GormStore) UpdateSyncState(ctx context.Context, syncType, status, cursor string, syncErr error) error {
	now := time.Now()
	update := map[string]interface{}{
		"last_run_at": &now,
		"status":      status,
		"last_cursor": cursor,
	}

	if status == SyncStatusCompleted {
		update["last_success_at"] = &now
		update["error_message"] = ""
	}

	if syncErr != nil {
		update["error_message"] = syncErr.Error()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var state SyncState
		if err := tx.Where(SyncState{SyncType: syncType}).FirstOrCreate(&state).Error; err != nil {
			return fmt.Errorf("failed to load sync state: %w", err)
		}
		if err := tx.Model(&state).Updates(update).Error; err != nil {
			return fmt.Errorf("failed to update sync state: %w", err)
		}
		return nil
	})
}
