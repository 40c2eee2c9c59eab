package kitsu

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kitsusync/internal/library"
)

// SyncResult summarizes one library sync run
type SyncResult struct {
	RunID   string
	Fetched int
	Synced  int
	Failed  int
}

// RunLibrarySync downloads the user's library and stores it locally. A run
// that follows a failed one resumes from the failed run's cursor.
func (s *SyncService) RunLibrarySync(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{RunID: uuid.NewString()}
	log := s.log.With().Str("run_id", result.RunID).Str("user_id", s.userID).Logger()

	if s.userID == "" {
		return result, errors.New("kitsu user id is not configured")
	}

	startOffset := s.resumeOffset(ctx, log)
	log.Info().Int("offset", startOffset).Msg("Starting library sync")

	if err := s.store.UpdateSyncState(ctx, librarySyncType, SyncStatusRunning, strconv.Itoa(startOffset), nil); err != nil {
		return result, fmt.Errorf("failed to update sync state: %w", err)
	}

	pool := NewWorkerPool(ctx, s.workerCount, log)
	pool.Start()

	var synced, failed int64
	offset := startOffset
	var runErr error

fetch:
	for {
		if err := ctx.Err(); err != nil {
			log.Info().Msg("Context cancelled, stopping sync")
			runErr = err
			break
		}

		page, err := s.client.GetLibraryEntries(ctx, s.userID, offset, s.pageLimit)
		if err != nil {
			log.Error().Err(err).Int("offset", offset).Msg("Failed to fetch library page")
			runErr = err
			break
		}

		result.Fetched += len(page.Data)
		offset += len(page.Data)

		anime := includedAnime(page.Included)
		for _, res := range page.Data {
			res := res
			accepted := pool.Submit(func(ctx context.Context) error {
				if err := s.processEntry(ctx, res, anime); err != nil {
					atomic.AddInt64(&failed, 1)
					return fmt.Errorf("library entry %s: %w", res.ID, err)
				}
				atomic.AddInt64(&synced, 1)
				return nil
			})
			if !accepted {
				// The pool only rejects work once ctx is done
				runErr = ctx.Err()
				break fetch
			}
		}

		if len(page.Data) == 0 || page.Links.Next == "" {
			break
		}
	}

	// Drain what was queued; workers stop early if ctx is cancelled
	pool.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	result.Synced = int(atomic.LoadInt64(&synced))
	// Entries that were fetched but never stored, including ones dropped on cancellation
	result.Failed = result.Fetched - result.Synced
	skipped := result.Failed - int(atomic.LoadInt64(&failed))

	if runErr != nil {
		// After cancellation some fetched entries may have been dropped, so the
		// next run starts again from where this one began
		cursor := offset
		if ctx.Err() != nil {
			cursor = startOffset
		}
		log.Warn().Err(runErr).Int("fetched", result.Fetched).Int("synced", result.Synced).
			Int("failed", result.Failed).Int("skipped", skipped).Msg("Library sync failed")
		s.finishSync(ctx, log, SyncStatusFailed, cursor, runErr)
		return result, runErr
	}

	log.Info().Int("fetched", result.Fetched).Int("synced", result.Synced).Int("failed", result.Failed).
		Msg("Library sync completed")

	s.finishSync(ctx, log, SyncStatusCompleted, offset, nil)
	return result, nil
}

// resumeOffset returns the cursor of a failed previous run, or 0
func (s *SyncService) resumeOffset(ctx context.Context, log zerolog.Logger) int {
	state, err := s.store.GetSyncState(ctx, librarySyncType)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Msg("Could not read sync state, starting from the beginning")
		}
		return 0
	}
	if state.Status != SyncStatusFailed || state.LastCursor == "" {
		return 0
	}

	offset, err := strconv.Atoi(state.LastCursor)
	if err != nil || offset < 0 {
		log.Warn().Str("cursor", state.LastCursor).Msg("Invalid sync cursor, starting from the beginning")
		return 0
	}

	log.Info().Int("offset", offset).Msg("Resuming failed library sync")
	return offset
}

// PushEntry submits a locally edited library entry to Kitsu
func (s *SyncService) PushEntry(ctx context.Context, entry *library.Entry) error {
	if entry.KitsuEntryID == 0 {
		return fmt.Errorf("library entry for anime %d has no kitsu id", entry.AnimeID)
	}

	update := s.translator.BuildLibraryEntryUpdate(entry)
	if err := s.client.UpdateLibraryEntry(ctx, entry.KitsuEntryID, update); err != nil {
		return err
	}

	s.log.Info().Int("entry_id", entry.KitsuEntryID).Str("status", update.Status).
		Str("rating", update.Rating).Msg("Pushed library entry")
	return nil
}

// finishSync records the final state of a run; failures are only logged
func (s *SyncService) finishSync(ctx context.Context, log zerolog.Logger, status string, offset int, syncErr error) {
	// The run context may already be cancelled
	ctx = context.WithoutCancel(ctx)
	if err := s.store.UpdateSyncState(ctx, librarySyncType, status, strconv.Itoa(offset), syncErr); err != nil {
		log.Error().Err(err).Msg("Failed to update sync state")
	}
}
