// Package cachegate decides whether a freshly extracted case replaces the
// stored one. A record is never replaced by one captured on an earlier day.
package cachegate

import (
	"context"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/storage"
)

// Decision is the outcome of offering a candidate record
type Decision int

const (
	// Persist means the candidate is written
	Persist Decision = iota
	// Unchanged means the stored record is identical and captured the same day
	Unchanged
	// Stale means the stored record was captured later than the candidate
	Stale
)

func (d Decision) String() string {
	switch d {
	case Persist:
		return "persist"
	case Unchanged:
		return "unchanged"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Decide compares candidate with the stored record, if any
func Decide(existing, candidate *models.StructuredCase) Decision {
	if existing == nil {
		return Persist
	}
	if candidate.CaptureDate.Before(existing.CaptureDate) {
		return Stale
	}
	if candidate.CaptureDate.Equal(existing.CaptureDate) && cmp.Equal(existing, candidate, cmpopts.EquateEmpty()) {
		return Unchanged
	}
	return Persist
}

// ShouldPersist reports whether candidate should be written over existing
func ShouldPersist(existing, candidate *models.StructuredCase) bool {
	return Decide(existing, candidate) == Persist
}

// Gate applies Decide against a Store. Offers for the same code are
// serialized so the load and the save see the same record.
type Gate struct {
	store storage.Store
	log   logger.Logger

	locks sync.Map // code -> *sync.Mutex
}

// New creates a Gate over store
func New(store storage.Store, log logger.Logger) *Gate {
	return &Gate{
		store: store,
		log:   logger.OrDefault(log).WithField("component", "cachegate"),
	}
}

func (g *Gate) lock(code string) func() {
	v, _ := g.locks.LoadOrStore(code, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Offer stores candidate when it is not older than the stored record. A
// Stale decision comes with a *errors.StaleCandidateError describing it;
// any other error is a storage failure.
func (g *Gate) Offer(ctx context.Context, candidate *models.StructuredCase) (Decision, error) {
	unlock := g.lock(candidate.Code)
	defer unlock()

	existing, ok, err := g.store.Load(ctx, candidate.Code)
	if err != nil {
		return Persist, err
	}
	if !ok {
		existing = nil
	}

	decision := Decide(existing, candidate)
	log := g.log.WithFields(map[string]interface{}{
		"code":     candidate.Code,
		"captured": candidate.CaptureDate.String(),
		"decision": decision.String(),
	})

	switch decision {
	case Stale:
		log.WithField("stored", existing.CaptureDate.String()).Info("stored record is newer, skipping candidate")
		return Stale, &errs.StaleCandidateError{
			Code:      candidate.Code,
			Existing:  existing.CaptureDate.String(),
			Candidate: candidate.CaptureDate.String(),
		}
	case Unchanged:
		log.Debug("stored record is current")
		return Unchanged, nil
	}

	if err := g.store.Save(ctx, candidate); err != nil {
		return Persist, err
	}
	log.Debug("case stored")
	return Persist, nil
}
