package usage

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestPricingCost(t *testing.T) {
	p := DefaultPricing()
	in, out, total := p.Cost(Attempt{InputTokens: 1000, OutputTokens: 200, InputImages: 3, OutputImages: 1})

	wantIn := 1000*1.25/1e6 + 3*0.0032
	wantOut := 200*5.0/1e6 + 0.032
	if !approxEqual(in, wantIn) {
		t.Errorf("input cost = %v, want %v", in, wantIn)
	}
	if !approxEqual(out, wantOut) {
		t.Errorf("output cost = %v, want %v", out, wantOut)
	}
	if !approxEqual(total, wantIn+wantOut) {
		t.Errorf("total cost = %v, want %v", total, wantIn+wantOut)
	}
}

func TestPricingValidate(t *testing.T) {
	p := DefaultPricing()
	if err := p.Validate(); err != nil {
		t.Fatalf("default pricing invalid: %v", err)
	}
	p.OutputImagePerImage = -1
	if err := p.Validate(); err == nil {
		t.Error("expected error for negative rate")
	}
}

func TestLoadPricingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte("outputImagePerImage: 0.04\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPricingFile(path)
	if err != nil {
		t.Fatalf("LoadPricingFile: %v", err)
	}
	if p.OutputImagePerImage != 0.04 {
		t.Errorf("OutputImagePerImage = %v, want 0.04", p.OutputImagePerImage)
	}
	if p.InputImagePerImage != DefaultPricing().InputImagePerImage {
		t.Errorf("InputImagePerImage = %v, want default", p.InputImagePerImage)
	}

	if _, err := LoadPricingFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRecordGeneration(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := Open(ctx, store, DefaultPricing())
	l.now = fixedClock(1700000000000)

	rec := l.RecordGeneration(ctx, Attempt{
		InputTokens: 1000, OutputTokens: 200, InputImages: 3, OutputImages: 1,
		Model: "gemini-3-pro-image-preview", Success: true,
	})

	if rec.ID != "gen_1700000000000_1" {
		t.Errorf("ID = %q, want gen_1700000000000_1", rec.ID)
	}
	if rec.Timestamp != 1700000000000 {
		t.Errorf("Timestamp = %d", rec.Timestamp)
	}
	if !approxEqual(rec.InputCost+rec.OutputCost, rec.TotalCost) {
		t.Errorf("TotalCost %v != InputCost %v + OutputCost %v", rec.TotalCost, rec.InputCost, rec.OutputCost)
	}

	saved, _ := store.Load(ctx)
	if len(saved.Records) != 1 || saved.Records[0].ID != rec.ID {
		t.Errorf("store records = %+v, want the new record", saved.Records)
	}
	if saved.IDCounter != 1 {
		t.Errorf("store IDCounter = %d, want 1", saved.IDCounter)
	}
	if saved.FirstGenerationAt == nil || *saved.FirstGenerationAt != 1700000000000 {
		t.Errorf("FirstGenerationAt = %v, want 1700000000000", saved.FirstGenerationAt)
	}
}

func TestRecordGenerationUniqueIDs(t *testing.T) {
	ctx := context.Background()
	l := Open(ctx, NewMemoryStore(), DefaultPricing())
	l.now = fixedClock(42)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		rec := l.RecordGeneration(ctx, Attempt{Success: true})
		if seen[rec.ID] {
			t.Fatalf("duplicate id %s", rec.ID)
		}
		seen[rec.ID] = true
	}
}

func TestFirstGenerationAtStampedOnce(t *testing.T) {
	ctx := context.Background()
	l := Open(ctx, NewMemoryStore(), DefaultPricing())

	l.now = fixedClock(1000)
	l.RecordGeneration(ctx, Attempt{Success: true})
	l.now = fixedClock(5000)
	l.RecordGeneration(ctx, Attempt{Success: true})

	if got := l.Stats().SessionStartedAt; got != 1000 {
		t.Errorf("SessionStartedAt = %d, want 1000", got)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	l := Open(ctx, NewMemoryStore(), DefaultPricing())

	l.RecordGeneration(ctx, Attempt{InputTokens: 100, OutputTokens: 50, InputImages: 2, OutputImages: 1, Success: true})
	l.RecordGeneration(ctx, Attempt{InputTokens: 300, OutputTokens: 150, InputImages: 4, OutputImages: 1, Success: true})
	l.RecordGeneration(ctx, Attempt{Success: false})

	st := l.Stats()
	if st.TotalGenerations != 3 || st.SuccessfulGenerations != 2 || st.FailedGenerations != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", st.TotalGenerations, st.SuccessfulGenerations, st.FailedGenerations)
	}
	if st.TotalInputTokens != 400 || st.TotalOutputTokens != 200 || st.TotalTokens != 600 {
		t.Errorf("tokens = %d/%d/%d", st.TotalInputTokens, st.TotalOutputTokens, st.TotalTokens)
	}
	if st.TotalInputImages != 6 || st.TotalOutputImages != 2 {
		t.Errorf("images = %d/%d", st.TotalInputImages, st.TotalOutputImages)
	}

	var sum float64
	for _, r := range st.RecentGenerations {
		sum += r.TotalCost
	}
	if !approxEqual(st.TotalCost, sum) {
		t.Errorf("TotalCost = %v, want sum of records %v", st.TotalCost, sum)
	}
	if !approxEqual(st.AverageCostPerImage, st.TotalCost/2) {
		t.Errorf("AverageCostPerImage = %v, want %v", st.AverageCostPerImage, st.TotalCost/2)
	}
	if !approxEqual(st.AverageTokensPerGeneration, 200) {
		t.Errorf("AverageTokensPerGeneration = %v, want 200", st.AverageTokensPerGeneration)
	}
}

func TestStatsEmpty(t *testing.T) {
	ctx := context.Background()
	l := Open(ctx, NewMemoryStore(), DefaultPricing())
	l.now = fixedClock(777)

	st := l.Stats()
	if st.TotalGenerations != 0 || st.AverageCostPerImage != 0 || st.AverageTokensPerGeneration != 0 {
		t.Errorf("empty stats = %+v", st)
	}
	if st.RecentGenerations == nil || len(st.RecentGenerations) != 0 {
		t.Errorf("RecentGenerations = %v, want empty non-nil slice", st.RecentGenerations)
	}
	if st.SessionStartedAt != 777 {
		t.Errorf("SessionStartedAt = %d, want now", st.SessionStartedAt)
	}
}

func TestStatsRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := Open(ctx, NewMemoryStore(), DefaultPricing())

	var ids []string
	for i := 0; i < 25; i++ {
		ids = append(ids, l.RecordGeneration(ctx, Attempt{Success: true}).ID)
	}

	recent := l.Stats().RecentGenerations
	if len(recent) != recentLimit {
		t.Fatalf("len(recent) = %d, want %d", len(recent), recentLimit)
	}
	if recent[0].ID != ids[24] {
		t.Errorf("recent[0] = %s, want newest %s", recent[0].ID, ids[24])
	}
	if recent[recentLimit-1].ID != ids[5] {
		t.Errorf("recent[last] = %s, want %s", recent[recentLimit-1].ID, ids[5])
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := Open(ctx, store, DefaultPricing())
	l.now = fixedClock(1000)
	l.RecordGeneration(ctx, Attempt{InputTokens: 100, OutputTokens: 20, InputImages: 3, OutputImages: 1, Success: true})
	l.RecordGeneration(ctx, Attempt{Success: false})

	if err := l.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	l.now = fixedClock(9000)
	want := Stats{RecentGenerations: []Record{}, SessionStartedAt: 9000}
	if got := l.Stats(); !reflect.DeepEqual(got, want) {
		t.Errorf("Stats after reset = %+v, want %+v", got, want)
	}
	saved, _ := store.Load(ctx)
	if len(saved.Records) != 0 || saved.IDCounter != 0 || saved.FirstGenerationAt != nil {
		t.Errorf("store after reset = %+v, want empty", saved)
	}

	rec := l.RecordGeneration(ctx, Attempt{Success: true})
	if rec.ID != "gen_9000_1" {
		t.Errorf("first ID after reset = %s, want gen_9000_1", rec.ID)
	}
}

func TestResetByAnotherWriter(t *testing.T) {
	stores := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"file", func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "usage-data.json"))
		}},
		{"sqlite", func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "usage.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
		{"dynamodb", func(t *testing.T) Store {
			return NewDynamoStore(newFakeDynamo(), "usage", "shared")
		}},
	}
	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := tt.open(t)

			server := Open(ctx, store, DefaultPricing())
			server.now = fixedClock(5000)
			server.RecordGeneration(ctx, Attempt{Success: true})
			server.RecordGeneration(ctx, Attempt{Success: true})

			cli := Open(ctx, store, DefaultPricing())
			if err := cli.Reset(ctx); err != nil {
				t.Fatalf("Reset: %v", err)
			}

			rec := server.RecordGeneration(ctx, Attempt{Success: true})
			if rec.ID != "gen_5000_1" {
				t.Errorf("ID after external reset = %s, want gen_5000_1", rec.ID)
			}
			saved, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(saved.Records) != 1 || saved.IDCounter != 1 {
				t.Errorf("stored %d records with counter %d, want 1/1", len(saved.Records), saved.IDCounter)
			}
			if got := server.Stats().TotalGenerations; got != 1 {
				t.Errorf("server TotalGenerations = %d, want 1", got)
			}
		})
	}
}

func TestAppendsFromAnotherWriterAreKept(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "usage-data.json"))

	a := Open(ctx, store, DefaultPricing())
	b := Open(ctx, store, DefaultPricing())
	a.now = fixedClock(10)
	b.now = fixedClock(20)

	a.RecordGeneration(ctx, Attempt{Success: true})
	b.RecordGeneration(ctx, Attempt{Success: true})
	a.RecordGeneration(ctx, Attempt{Success: true})

	saved, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ids []string
	for _, r := range saved.Records {
		ids = append(ids, r.ID)
	}
	want := []string{"gen_10_1", "gen_20_2", "gen_10_3"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("stored ids = %v, want %v", ids, want)
	}
}

func TestUnsavedRecordsKeptWhenStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := Open(ctx, store, DefaultPricing())

	store.SaveErr = errors.New("disk full")
	l.RecordGeneration(ctx, Attempt{Success: true})
	store.SaveErr = nil
	l.RecordGeneration(ctx, Attempt{Success: true})

	saved, _ := store.Load(ctx)
	if len(saved.Records) != 2 || saved.IDCounter != 2 {
		t.Errorf("store = %d records counter %d, want 2/2", len(saved.Records), saved.IDCounter)
	}
}

func TestPersistenceFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SaveErr = errors.New("disk full")
	l := Open(ctx, store, DefaultPricing())

	rec := l.RecordGeneration(ctx, Attempt{InputTokens: 10, Success: true})
	if rec.ID == "" {
		t.Fatal("expected a record despite save failure")
	}
	if got := l.Stats().TotalGenerations; got != 1 {
		t.Errorf("TotalGenerations = %d, want 1", got)
	}
}

type failingLoadStore struct{ MemoryStore }

func (f *failingLoadStore) Load(ctx context.Context) (Snapshot, error) {
	return Snapshot{}, errors.New("corrupt")
}

func TestOpenUnreadableStoreStartsEmpty(t *testing.T) {
	l := Open(context.Background(), &failingLoadStore{}, DefaultPricing())
	if got := l.Stats().TotalGenerations; got != 0 {
		t.Errorf("TotalGenerations = %d, want 0", got)
	}
}

func TestOpenResumesCounter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	first := Open(ctx, store, DefaultPricing())
	first.now = fixedClock(10)
	first.RecordGeneration(ctx, Attempt{Success: true})
	first.RecordGeneration(ctx, Attempt{Success: true})

	second := Open(ctx, store, DefaultPricing())
	second.now = fixedClock(10)
	rec := second.RecordGeneration(ctx, Attempt{Success: true})
	if !strings.HasSuffix(rec.ID, "_3") {
		t.Errorf("ID = %s, want counter 3 after reload", rec.ID)
	}
	if got := second.Stats().TotalGenerations; got != 3 {
		t.Errorf("TotalGenerations = %d, want 3", got)
	}
}
