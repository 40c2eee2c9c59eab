package library

import "time"

// EmptyDate is the calendar date used when a service did not send a usable one.
const EmptyDate = "0000-00-00"

// AgeRating is the audience rating of a series.
type AgeRating int

const (
	AgeRatingUnknown AgeRating = iota
	AgeRatingG
	AgeRatingPG
	AgeRatingR17
	AgeRatingR18
)

func (r AgeRating) String() string {
	switch r {
	case AgeRatingG:
		return "G"
	case AgeRatingPG:
		return "PG"
	case AgeRatingR17:
		return "R17+"
	case AgeRatingR18:
		return "R18+"
	default:
		return "Unknown"
	}
}

// SeriesType is the release format of a series.
type SeriesType int

const (
	SeriesTypeUnknown SeriesType = iota
	SeriesTypeTV
	SeriesTypeSpecial
	SeriesTypeOVA
	SeriesTypeONA
	SeriesTypeMovie
	SeriesTypeMusic
)

func (t SeriesType) String() string {
	switch t {
	case SeriesTypeTV:
		return "TV"
	case SeriesTypeSpecial:
		return "Special"
	case SeriesTypeOVA:
		return "OVA"
	case SeriesTypeONA:
		return "ONA"
	case SeriesTypeMovie:
		return "Movie"
	case SeriesTypeMusic:
		return "Music"
	default:
		return "Unknown"
	}
}

// Anime represents an anime entry in database
type Anime struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	KitsuID           int    `gorm:"column:kitsu_id;uniqueIndex;not null"`
	Slug              string `gorm:"index"`
	Title             string `gorm:"not null"`
	Synopsis          string
	SeriesType        SeriesType `gorm:"column:series_type;default:0"`
	AgeRating         AgeRating  `gorm:"column:age_rating;default:0"`
	EpisodeCount      int        `gorm:"column:episode_count"`
	Score             float64    // 0-10
	DateStart         string     `gorm:"column:date_start"`
	DateEnd           string     `gorm:"column:date_end"`
	ImageURL          string     `gorm:"column:image_url"`
	KitsuLastSyncedAt *time.Time `gorm:"column:kitsu_last_synced_at"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName specifies the table name for Anime
func (Anime) TableName() string {
	return "anime"
}
