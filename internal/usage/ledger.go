// Package usage records the tokens, images and cost of every generation call
// and serves aggregate statistics over them.
//
// A Ledger is created once per process and shared by reference. Persistence
// goes through an injected Store (file, SQLite, DynamoDB, S3, Redis or
// memory). Writes are serialized by the Ledger, and a failed write is logged
// without failing the call: the in-memory ledger stays authoritative for the
// rest of the process lifetime.
//
// Other processes may share the store (the usage CLI resets it, a second
// server appends to it). Before each append the Ledger rereads the store and
// adopts it when its counter no longer matches the last one this process
// loaded or saved.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// recentLimit is the number of records returned in Stats.RecentGenerations.
const recentLimit = 20

// Attempt is the usage reported for one generation call. Failed calls with
// no usage metadata are recorded with zero counts.
type Attempt struct {
	InputTokens  int
	OutputTokens int
	InputImages  int
	OutputImages int
	Model        string
	Success      bool
}

// Record is an immutable ledger entry. Timestamp is Unix milliseconds.
type Record struct {
	ID           string  `json:"id" dynamodbav:"id"`
	Timestamp    int64   `json:"timestamp" dynamodbav:"timestamp"`
	InputTokens  int     `json:"inputTokens" dynamodbav:"inputTokens"`
	OutputTokens int     `json:"outputTokens" dynamodbav:"outputTokens"`
	InputImages  int     `json:"inputImages" dynamodbav:"inputImages"`
	OutputImages int     `json:"outputImages" dynamodbav:"outputImages"`
	InputCost    float64 `json:"inputCost" dynamodbav:"inputCost"`
	OutputCost   float64 `json:"outputCost" dynamodbav:"outputCost"`
	TotalCost    float64 `json:"totalCost" dynamodbav:"totalCost"`
	Model        string  `json:"model" dynamodbav:"model"`
	Success      bool    `json:"success" dynamodbav:"success"`
}

// Stats aggregates every record in the ledger.
type Stats struct {
	TotalGenerations           int      `json:"totalGenerations"`
	SuccessfulGenerations      int      `json:"successfulGenerations"`
	FailedGenerations          int      `json:"failedGenerations"`
	TotalInputTokens           int      `json:"totalInputTokens"`
	TotalOutputTokens          int      `json:"totalOutputTokens"`
	TotalTokens                int      `json:"totalTokens"`
	TotalInputImages           int      `json:"totalInputImages"`
	TotalOutputImages          int      `json:"totalOutputImages"`
	TotalCost                  float64  `json:"totalCost"`
	AverageCostPerImage        float64  `json:"averageCostPerImage"`
	AverageTokensPerGeneration float64  `json:"averageTokensPerGeneration"`
	RecentGenerations          []Record `json:"recentGenerations"`
	// SessionStartedAt is the first record's time, or now when the ledger
	// is empty. Unix milliseconds.
	SessionStartedAt int64 `json:"sessionStartedAt"`
}

// Ledger is the process-wide usage ledger.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	pricing Pricing
	snap    Snapshot
	now     func() time.Time
	// synced is the store's IDCounter as of the last successful load, save
	// or clear.
	synced int64
}

// Open loads the ledger from store. An unreadable or corrupt store is logged
// and treated as empty so startup never fails on it.
func Open(ctx context.Context, store Store, pricing Pricing) *Ledger {
	l := &Ledger{store: store, pricing: pricing, now: time.Now}

	snap, err := store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Str("store", store.Describe()).Msg("Usage ledger unreadable, starting empty")
		snap = Snapshot{}
	}
	l.snap = snap
	l.synced = snap.IDCounter

	log.Info().
		Str("store", store.Describe()).
		Int("records", len(snap.Records)).
		Int64("idCounter", snap.IDCounter).
		Msg("Usage ledger loaded")
	return l
}

// Pricing returns the rates used for new records.
func (l *Ledger) Pricing() Pricing {
	return l.pricing
}

// Describe names the backing store.
func (l *Ledger) Describe() string {
	return l.store.Describe()
}

// RecordGeneration appends a record for a and persists the ledger before
// returning. A persistence failure is logged; the record is still returned
// and kept in memory.
func (l *Ledger) RecordGeneration(ctx context.Context, a Attempt) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refresh(ctx)

	now := l.now().UnixMilli()
	in, out, total := l.pricing.Cost(a)

	l.snap.IDCounter++
	rec := Record{
		ID:           fmt.Sprintf("gen_%d_%d", now, l.snap.IDCounter),
		Timestamp:    now,
		InputTokens:  a.InputTokens,
		OutputTokens: a.OutputTokens,
		InputImages:  a.InputImages,
		OutputImages: a.OutputImages,
		InputCost:    in,
		OutputCost:   out,
		TotalCost:    total,
		Model:        a.Model,
		Success:      a.Success,
	}
	if l.snap.FirstGenerationAt == nil {
		first := now
		l.snap.FirstGenerationAt = &first
	}
	l.snap.Records = append(l.snap.Records, rec)

	if err := l.store.Save(ctx, l.snap); err != nil {
		log.Error().
			Err(err).
			Str("store", l.store.Describe()).
			Str("recordId", rec.ID).
			Msg("Failed to persist usage ledger, continuing in memory")
	} else {
		l.synced = l.snap.IDCounter
	}

	log.Debug().
		Str("recordId", rec.ID).
		Str("model", rec.Model).
		Bool("success", rec.Success).
		Float64("costUsd", rec.TotalCost).
		Msg("Generation usage recorded")
	return rec
}

// refresh adopts the stored snapshot when another writer changed it since
// this process last synced. Records this process failed to persist are kept
// unless the store moved on without them. Callers hold l.mu.
func (l *Ledger) refresh(ctx context.Context) {
	stored, err := l.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Str("store", l.store.Describe()).Msg("Usage ledger reread failed, appending to in-memory ledger")
		return
	}
	if stored.IDCounter == l.synced {
		return
	}
	log.Info().
		Str("store", l.store.Describe()).
		Int64("idCounter", stored.IDCounter).
		Int64("expected", l.synced).
		Int("records", len(stored.Records)).
		Msg("Usage ledger changed by another writer, reloading")
	l.snap = stored
	l.synced = stored.IDCounter
}

// Stats returns aggregates over every record.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var st Stats
	for _, r := range l.snap.Records {
		st.TotalGenerations++
		if r.Success {
			st.SuccessfulGenerations++
		} else {
			st.FailedGenerations++
		}
		st.TotalInputTokens += r.InputTokens
		st.TotalOutputTokens += r.OutputTokens
		st.TotalInputImages += r.InputImages
		st.TotalOutputImages += r.OutputImages
		st.TotalCost += r.TotalCost
	}
	st.TotalTokens = st.TotalInputTokens + st.TotalOutputTokens
	if st.TotalOutputImages > 0 {
		st.AverageCostPerImage = st.TotalCost / float64(st.TotalOutputImages)
	}
	if st.TotalGenerations > 0 {
		st.AverageTokensPerGeneration = float64(st.TotalTokens) / float64(st.TotalGenerations)
	}

	n := len(l.snap.Records)
	start := n - recentLimit
	if start < 0 {
		start = 0
	}
	st.RecentGenerations = make([]Record, 0, n-start)
	for i := n - 1; i >= start; i-- {
		st.RecentGenerations = append(st.RecentGenerations, l.snap.Records[i])
	}

	if l.snap.FirstGenerationAt != nil {
		st.SessionStartedAt = *l.snap.FirstGenerationAt
	} else {
		st.SessionStartedAt = l.now().UnixMilli()
	}
	return st
}

// Reset empties the ledger in memory and in the store, discarding the
// session start time. The in-memory ledger is cleared even if the store
// fails.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snap = Snapshot{}
	l.synced = 0
	if err := l.store.Clear(ctx); err != nil {
		log.Error().Err(err).Str("store", l.store.Describe()).Msg("Failed to clear persisted usage ledger")
		return fmt.Errorf("clear usage store: %w", err)
	}
	log.Info().Str("store", l.store.Describe()).Msg("Usage ledger reset")
	return nil
}
