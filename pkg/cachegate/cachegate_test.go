package cachegate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/storage"
)

func record(day int, defendant string) *models.StructuredCase {
	return &models.StructuredCase{
		Code:        "CR-16-0002-A",
		SourceID:    "12947592",
		CaptureDate: models.NewCaptureDate(time.Date(2024, 7, day, 0, 0, 0, 0, time.UTC)),
		Name:        "The State of Texas vs. " + defendant,
		Party:       models.PartyInformation{Defendant: defendant},
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name      string
		existing  *models.StructuredCase
		candidate *models.StructuredCase
		want      Decision
	}{
		{"nothing stored", nil, record(1, "Smith, John"), Persist},
		{"same record same day", record(2, "Smith, John"), record(2, "Smith, John"), Unchanged},
		{"changed record same day", record(2, "Smith, John"), record(2, "Smith, Jon"), Persist},
		{"newer candidate", record(2, "Smith, John"), record(3, "Smith, John"), Persist},
		{"older candidate", record(3, "Smith, John"), record(2, "Smith, Jon"), Stale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.existing, tt.candidate))
			assert.Equal(t, tt.want == Persist, ShouldPersist(tt.existing, tt.candidate))
		})
	}
}

func TestShouldPersistIdempotent(t *testing.T) {
	for day := 1; day <= 28; day++ {
		r := record(day, "Smith, John")
		assert.False(t, ShouldPersist(r, r))
		assert.True(t, ShouldPersist(nil, r))
	}
}

func newGate(t *testing.T) (*Gate, storage.Store) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return New(store, logger.NewNopLogger()), store
}

func TestOfferStaleCandidateLeavesRecord(t *testing.T) {
	gate, store := newGate(t)
	ctx := context.Background()

	stored := record(5, "Smith, John")
	decision, err := gate.Offer(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, Persist, decision)

	decision, err = gate.Offer(ctx, record(4, "Smith, Jonathan"))
	assert.Equal(t, Stale, decision)
	var stale *errs.StaleCandidateError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, "07-05-2024", stale.Existing)
	assert.Equal(t, "07-04-2024", stale.Candidate)
	assert.Equal(t, errs.KindStaleCandidate, errs.KindOf(err))

	got, ok, err := store.Load(ctx, "CR-16-0002-A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Smith, John", got.Party.Defendant)
	assert.Equal(t, "07-05-2024", got.CaptureDate.String())
}

func TestOfferSequence(t *testing.T) {
	gate, store := newGate(t)
	ctx := context.Background()

	decision, err := gate.Offer(ctx, record(5, "Smith, John"))
	require.NoError(t, err)
	assert.Equal(t, Persist, decision)

	decision, err = gate.Offer(ctx, record(5, "Smith, John"))
	require.NoError(t, err)
	assert.Equal(t, Unchanged, decision)

	decision, err = gate.Offer(ctx, record(6, "Smith, John A."))
	require.NoError(t, err)
	assert.Equal(t, Persist, decision)

	got, _, err := store.Load(ctx, "CR-16-0002-A")
	require.NoError(t, err)
	assert.Equal(t, "Smith, John A.", got.Party.Defendant)
}

func TestOfferConcurrentKeepsNewest(t *testing.T) {
	gate, store := newGate(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for day := 1; day <= 20; day++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			_, err := gate.Offer(ctx, record(day, "Smith, John"))
			var stale *errs.StaleCandidateError
			if err != nil && !errors.As(err, &stale) {
				t.Errorf("day %d: %v", day, err)
			}
		}(day)
	}
	wg.Wait()

	got, _, err := store.Load(ctx, "CR-16-0002-A")
	require.NoError(t, err)
	assert.Equal(t, "07-20-2024", got.CaptureDate.String())
}

type failingStore struct{ storage.Store }

func (failingStore) Load(ctx context.Context, code string) (*models.StructuredCase, bool, error) {
	return nil, false, &errs.StorageError{Code: code, Op: "load", Err: errors.New("disk gone")}
}

func TestOfferStorageError(t *testing.T) {
	gate := New(failingStore{}, logger.NewNopLogger())
	_, err := gate.Offer(context.Background(), record(1, "Smith, John"))
	assert.Equal(t, errs.KindStorage, errs.KindOf(err))
}
