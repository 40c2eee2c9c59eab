package kitsu

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"kitsusync/internal/library"
)

// ============================================
// LOOKUP TABLES
// ============================================

var ageRatingTable = map[string]library.AgeRating{
	"G":   library.AgeRatingG,
	"PG":  library.AgeRatingPG,
	"R":   library.AgeRatingR17,
	"R18": library.AgeRatingR18,
}

var seriesTypeTable = map[string]library.SeriesType{
	"TV":      library.SeriesTypeTV,
	"special": library.SeriesTypeSpecial,
	"OVA":     library.SeriesTypeOVA,
	"ONA":     library.SeriesTypeONA,
	"movie":   library.SeriesTypeMovie,
	"music":   library.SeriesTypeMusic,
}

var myStatusTable = map[string]library.ListStatus{
	"current":   library.Watching,
	"planned":   library.PlanToWatch,
	"completed": library.Completed,
	"on_hold":   library.OnHold,
	"dropped":   library.Dropped,
}

// Translator converts single Kitsu field values to and from the library model.
// Unrecognized enum values are reported on the logger and never returned as
// errors. The zero value is usable and discards those reports.
type Translator struct {
	log *zerolog.Logger
}

// NewTranslator creates a translator reporting unrecognized values to logger
func NewTranslator(logger zerolog.Logger) *Translator {
	return &Translator{log: &logger}
}

func (t *Translator) logger() *zerolog.Logger {
	if t.log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return t.log
}

// AgeRatingFrom maps a Kitsu age rating. Empty input means the field was absent.
func (t *Translator) AgeRatingFrom(value string) library.AgeRating {
	if rating, ok := ageRatingTable[value]; ok {
		return rating
	}

	if value != "" {
		t.logger().Debug().Str("value", value).Msg("Invalid value")
	}

	return library.AgeRatingUnknown
}

// SeriesTypeFrom maps a Kitsu show type.
func (t *Translator) SeriesTypeFrom(value string) library.SeriesType {
	if seriesType, ok := seriesTypeTable[value]; ok {
		return seriesType
	}

	t.logger().Warn().Str("value", value).Msg("Invalid value")
	return library.SeriesTypeUnknown
}

// SeriesRatingFrom converts a 0-5 average rating to the 0-10 scale.
func SeriesRatingFrom(value float64) float64 {
	return value * 2.0
}

// SeriesRatingTo converts a 0-10 score to the 0-5 scale.
func SeriesRatingTo(value float64) float64 {
	return value / 2.0
}

// DateFrom returns the YYYY-MM-DD part of an ISO 8601 timestamp.
func DateFrom(value string) string {
	if len(value) < 10 {
		return library.EmptyDate
	}
	return value[:10]
}

// MyLastUpdatedFrom converts an ISO 8601 timestamp to Unix time.
func MyLastUpdatedFrom(value string) string {
	result, ok := ParseISO8601(value)
	if !ok {
		return ""
	}
	return strconv.FormatInt(result, 10)
}

// MyRatingFrom converts a 0-5 user rating to the 0-10 scale, truncating
// toward zero.
func MyRatingFrom(value string) int {
	return int(parseDouble(value) * 2.0)
}

// MyRatingTo converts a 0-10 user rating to Kitsu's 0-5 scale.
func MyRatingTo(value int) string {
	return strconv.FormatFloat(float64(value)/2.0, 'f', 1, 64)
}

// MyStatusFrom maps a Kitsu library entry status.
func (t *Translator) MyStatusFrom(value string) library.ListStatus {
	if status, ok := myStatusTable[value]; ok {
		return status
	}

	t.logger().Warn().Str("value", value).Msg("Invalid value")
	return library.NotInList
}

// MyStatusTo maps a list status to the value Kitsu expects on submission.
func (t *Translator) MyStatusTo(value library.ListStatus) string {
	switch value {
	case library.Watching:
		return "current"
	case library.Completed:
		return "completed"
	case library.OnHold:
		return "on_hold"
	case library.Dropped:
		return "dropped"
	case library.PlanToWatch:
		return "planned"
	}

	t.logger().Warn().Int("value", int(value)).Msg("Invalid value")
	return ""
}

// ============================================
// HELPER FUNCTIONS
// ============================================

// ParseISO8601 returns the Unix time of an RFC 3339 timestamp. ok is false
// when value cannot be read.
func ParseISO8601(value string) (unix int64, ok bool) {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return parsed.Unix(), true
}

// parseDouble never fails. It reads the leading decimal number of value and
// ignores whatever follows, so "4.5abc" is 4.5. Anything without a finite
// leading number reads as 0.
func parseDouble(value string) float64 {
	prefix := numericPrefix(value)
	if prefix == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// numericPrefix returns the longest decimal number at the start of value,
// after leading whitespace, or "" when value does not start with one.
func numericPrefix(value string) string {
	value = strings.TrimLeftFunc(value, unicode.IsSpace)

	i := 0
	if i < len(value) && (value[i] == '+' || value[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(value) && isDigit(value[i]); i++ {
		digits++
	}
	if i < len(value) && value[i] == '.' {
		i++
		for ; i < len(value) && isDigit(value[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return ""
	}

	end := i
	// An exponent only counts when digits follow it
	if i < len(value) && (value[i] == 'e' || value[i] == 'E') {
		j := i + 1
		if j < len(value) && (value[j] == '+' || value[j] == '-') {
			j++
		}
		k := j
		for k < len(value) && isDigit(value[k]) {
			k++
		}
		if k > j {
			end = k
		}
	}
	return value[:end]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
