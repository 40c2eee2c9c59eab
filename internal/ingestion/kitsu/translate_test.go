package kitsu

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitsusync/internal/library"
)

// newTestTranslator returns a translator logging at debug level into a buffer
func newTestTranslator() (*Translator, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	return NewTranslator(logger), &buf
}

// logLines decodes every JSON line written by zerolog
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestAgeRatingFrom(t *testing.T) {
	tests := []struct {
		value string
		want  library.AgeRating
	}{
		{"G", library.AgeRatingG},
		{"PG", library.AgeRatingPG},
		{"R", library.AgeRatingR17},
		{"R18", library.AgeRatingR18},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			tr, buf := newTestTranslator()
			assert.Equal(t, tt.want, tr.AgeRatingFrom(tt.value))
			assert.Empty(t, buf.String())
		})
	}

	t.Run("UnrecognizedLogsDebug", func(t *testing.T) {
		tr, buf := newTestTranslator()
		assert.Equal(t, library.AgeRatingUnknown, tr.AgeRatingFrom("PG-13"))

		lines := logLines(t, buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "debug", lines[0]["level"])
		assert.Equal(t, "PG-13", lines[0]["value"])
	})

	t.Run("CaseSensitive", func(t *testing.T) {
		tr, _ := newTestTranslator()
		assert.Equal(t, library.AgeRatingUnknown, tr.AgeRatingFrom("pg"))
		assert.Equal(t, library.AgeRatingUnknown, tr.AgeRatingFrom("r18"))
	})

	t.Run("EmptyIsSilent", func(t *testing.T) {
		tr, buf := newTestTranslator()
		assert.Equal(t, library.AgeRatingUnknown, tr.AgeRatingFrom(""))
		assert.Empty(t, buf.String())
	})
}

func TestSeriesTypeFrom(t *testing.T) {
	tests := []struct {
		value string
		want  library.SeriesType
	}{
		{"TV", library.SeriesTypeTV},
		{"special", library.SeriesTypeSpecial},
		{"OVA", library.SeriesTypeOVA},
		{"ONA", library.SeriesTypeONA},
		{"movie", library.SeriesTypeMovie},
		{"music", library.SeriesTypeMusic},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			tr, buf := newTestTranslator()
			assert.Equal(t, tt.want, tr.SeriesTypeFrom(tt.value))
			assert.Empty(t, buf.String())
		})
	}

	for _, value := range []string{"", "Movie", "tv", "manga"} {
		t.Run("Invalid_"+value, func(t *testing.T) {
			tr, buf := newTestTranslator()
			assert.Equal(t, library.SeriesTypeUnknown, tr.SeriesTypeFrom(value))

			lines := logLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, "warn", lines[0]["level"])
			assert.Equal(t, value, lines[0]["value"])
		})
	}
}

func TestSeriesRating(t *testing.T) {
	assert.Equal(t, 8.0, SeriesRatingFrom(4.0))
	assert.Equal(t, 4.0, SeriesRatingTo(8.0))
	assert.Equal(t, 0.0, SeriesRatingFrom(0))

	// No range validation in either direction
	assert.Equal(t, 14.0, SeriesRatingFrom(7.0))
	assert.Equal(t, -1.0, SeriesRatingTo(-2.0))

	for _, x := range []float64{0, 0.1, 1.25, 2.5, 3.33, 4.75, 5, 123.456, -3.5} {
		assert.Equal(t, x, SeriesRatingTo(SeriesRatingFrom(x)), "round trip of %v", x)
	}
}

func TestDateFrom(t *testing.T) {
	assert.Equal(t, "2016-07-01", DateFrom("2016-07-01T00:00:00.000Z"))
	assert.Equal(t, "2016-07-01", DateFrom("2016-07-01"))
	assert.Equal(t, "2016-07-01", DateFrom("2016-07-01T23:59:59+09:00"))

	assert.Equal(t, library.EmptyDate, DateFrom("2016"))
	assert.Equal(t, library.EmptyDate, DateFrom("2016-07-0"))
	assert.Equal(t, library.EmptyDate, DateFrom(""))

	// The prefix is taken verbatim
	assert.Equal(t, "not-a-date", DateFrom("not-a-date-at-all"))
}

func TestMyLastUpdatedFrom(t *testing.T) {
	want := strconv.FormatInt(time.Date(2016, time.July, 1, 0, 0, 0, 0, time.UTC).Unix(), 10)

	assert.Equal(t, want, MyLastUpdatedFrom("2016-07-01T00:00:00.000Z"))
	assert.Equal(t, "1467331200", MyLastUpdatedFrom("2016-07-01T00:00:00Z"))
	assert.Equal(t, "1467298800", MyLastUpdatedFrom("2016-07-01T00:00:00+09:00"))

	assert.Equal(t, "", MyLastUpdatedFrom("not-a-date"))
	assert.Equal(t, "", MyLastUpdatedFrom(""))
	assert.Equal(t, "", MyLastUpdatedFrom("2016-07-01"))

	// Instants before the epoch are valid
	assert.Equal(t, "-1", MyLastUpdatedFrom("1969-12-31T23:59:59Z"))
}

func TestMyRatingFrom(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"4.5", 9},
		{"4.7", 9},
		{"4.99", 9},
		{"5", 10},
		{"5.0", 10},
		{"0.5", 1},
		{"0.2", 0},
		{"0", 0},
		{"", 0},
		{"abc", 0},
		{"NaN", 0},
		{"Inf", 0},
		{" 3.5 ", 7},
		{"-0.7", -1},
		{"4.5abc", 9},
		{"3.5 stars", 7},
		{"2.", 4},
		{".5", 1},
		{"+1.5", 3},
		{"1e0", 2},
		{"2e", 4},
		{"1e999", 0},
		{"-", 0},
		{".", 0},
		{"abc4.5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, MyRatingFrom(tt.value))
		})
	}
}

func TestMyRatingTo(t *testing.T) {
	assert.Equal(t, "4.5", MyRatingTo(9))
	assert.Equal(t, "5.0", MyRatingTo(10))
	assert.Equal(t, "0.0", MyRatingTo(0))
	assert.Equal(t, "0.5", MyRatingTo(1))

	// Integer domain values survive the round trip
	for v := 0; v <= 10; v++ {
		assert.Equal(t, v, MyRatingFrom(MyRatingTo(v)))
	}
}

func TestMyStatus(t *testing.T) {
	tests := []struct {
		wire   string
		status library.ListStatus
	}{
		{"current", library.Watching},
		{"planned", library.PlanToWatch},
		{"completed", library.Completed},
		{"on_hold", library.OnHold},
		{"dropped", library.Dropped},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			tr, buf := newTestTranslator()
			assert.Equal(t, tt.status, tr.MyStatusFrom(tt.wire))
			assert.Equal(t, tt.wire, tr.MyStatusTo(tt.status))
			assert.Equal(t, tt.status, tr.MyStatusFrom(tr.MyStatusTo(tt.status)))
			assert.Empty(t, buf.String())
		})
	}

	t.Run("FromUnrecognized", func(t *testing.T) {
		for _, value := range []string{"", "watching", "Current", "on-hold"} {
			tr, buf := newTestTranslator()
			assert.Equal(t, library.NotInList, tr.MyStatusFrom(value))

			lines := logLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, "warn", lines[0]["level"])
		}
	})

	t.Run("ToUnmapped", func(t *testing.T) {
		for _, status := range []library.ListStatus{library.NotInList, -1, 6, 100} {
			tr, buf := newTestTranslator()
			assert.Equal(t, "", tr.MyStatusTo(status))

			lines := logLines(t, buf)
			require.Len(t, lines, 1)
			assert.Equal(t, "warn", lines[0]["level"])
			assert.EqualValues(t, status, lines[0]["value"])
		}
	})
}

func TestZeroTranslator(t *testing.T) {
	var tr Translator
	assert.Equal(t, library.AgeRatingUnknown, tr.AgeRatingFrom("X"))
	assert.Equal(t, library.SeriesTypeUnknown, tr.SeriesTypeFrom(""))
	assert.Equal(t, library.NotInList, tr.MyStatusFrom("nope"))
	assert.Equal(t, "", tr.MyStatusTo(library.NotInList))
}

func TestTranslatorConcurrentUse(t *testing.T) {
	tr := NewTranslator(zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, library.Completed, tr.MyStatusFrom("completed"))
			assert.Equal(t, "dropped", tr.MyStatusTo(library.Dropped))
			assert.Equal(t, library.SeriesTypeMovie, tr.SeriesTypeFrom("movie"))
			assert.Equal(t, library.AgeRatingR18, tr.AgeRatingFrom("R18"))
		}()
	}
	wg.Wait()
}
