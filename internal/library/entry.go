package library

import "time"

// ListStatus is the state of an anime in a user's list.
type ListStatus int

const (
	NotInList ListStatus = iota
	Watching
	Completed
	OnHold
	Dropped
	PlanToWatch
)

func (s ListStatus) String() string {
	switch s {
	case Watching:
		return "Watching"
	case Completed:
		return "Completed"
	case OnHold:
		return "On hold"
	case Dropped:
		return "Dropped"
	case PlanToWatch:
		return "Plan to watch"
	default:
		return "Not in list"
	}
}

// IsKnown reports whether s is one of the five list statuses.
func (s ListStatus) IsKnown() bool {
	return s >= Watching && s <= PlanToWatch
}

// Entry is a user's library entry for one anime.
type Entry struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	KitsuEntryID    int        `gorm:"column:kitsu_entry_id;uniqueIndex;not null" json:"kitsu_entry_id"`
	UserID          string     `gorm:"not null;index:idx_user_anime" json:"user_id"`
	AnimeID         int        `gorm:"not null;index:idx_user_anime" json:"anime_id"` // Kitsu anime ID
	Status          ListStatus `gorm:"default:0" json:"status"`
	Rating          int        `gorm:"default:0" json:"rating"` // 0-10
	WatchedEpisodes int        `gorm:"column:watched_episodes;default:0" json:"watched_episodes"`
	Rewatching      bool       `json:"rewatching"`
	RewatchedTimes  int        `gorm:"column:rewatched_times;default:0" json:"rewatched_times"`
	DateStart       string     `gorm:"column:date_start" json:"date_start"`
	DateEnd         string     `gorm:"column:date_end" json:"date_end"`
	LastUpdated     string     `gorm:"column:last_updated" json:"last_updated"` // Unix time
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Entry to `library_entries`
func (Entry) TableName() string {
	return "library_entries"
}
