package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/virtual-tryon/internal/chat"
	"github.com/fpang/virtual-tryon/internal/designnumber"
	"github.com/fpang/virtual-tryon/internal/garment"
	"github.com/fpang/virtual-tryon/internal/metrics"
	"github.com/fpang/virtual-tryon/internal/usage"
	"github.com/fpang/virtual-tryon/internal/workflow"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

type fakeGenerator struct {
	mu       sync.Mutex
	result   *chat.TryOnResult
	err      error
	requests []chat.TryOnRequest
	// during runs inside Generate, while the session lock is released.
	during func()
}

func (f *fakeGenerator) Generate(ctx context.Context, req chat.TryOnRequest) (*chat.TryOnResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func (f *fakeGenerator) Model() string { return chat.ModelGemini3ProImage }

func imageResult() *chat.TryOnResult {
	return &chat.TryOnResult{
		Image:          garment.Payload{Data: pngBytes(400, 500), MIMEType: "image/png"},
		ImageGenerated: true,
		Text:           "done",
		InputTokens:    1500,
		OutputTokens:   250,
		Model:          chat.ModelGemini3ProImage,
	}
}

type fixture struct {
	reg    *workflow.Registry
	gen    *fakeGenerator
	ledger *usage.Ledger
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:    workflow.NewRegistry(time.Hour),
		gen:    &fakeGenerator{result: imageResult()},
		ledger: usage.Open(context.Background(), usage.NewMemoryStore(), usage.DefaultPricing()),
	}
	f.svc = NewService(f.reg, f.gen, f.ledger, time.Second)
	return f
}

// readySession creates a session at review with top and chunni bound.
func (f *fixture) readySession(t *testing.T, dn *workflow.DesignNumberPatch) string {
	t.Helper()
	id := f.reg.Create()
	err := f.reg.Update(id, func(s *workflow.Session) error {
		s.SetModelImage(workflow.ModelImage{Name: "model.jpg", Image: garment.Payload{Data: []byte("model"), MIMEType: "image/jpeg"}})
		s.ToggleGarment(garment.Chunni)
		s.ToggleGarment(garment.Top)
		s.SetFabric(garment.Chunni, &garment.PageSource{
			DocumentName: "catalog.pdf",
			Page:         3,
			PageCount:    5,
			Preview:      garment.Payload{Data: []byte("page3"), MIMEType: "image/png"},
			Crop:         &garment.Crop{Image: garment.Payload{Data: []byte("crop"), MIMEType: "image/png"}},
		})
		s.SetFabric(garment.Top, &garment.ImageSource{Name: "silk.png", Image: garment.Payload{Data: []byte("silk"), MIMEType: "image/png"}})
		if dn != nil {
			s.SetAdvancedOptions(workflow.OptionsPatch{DesignNumber: dn})
		}
		return s.Advance(workflow.StepReview)
	})
	if err != nil {
		t.Fatalf("prepare session: %v", err)
	}
	return id
}

func (f *fixture) session(t *testing.T, id string) workflow.Session {
	t.Helper()
	var snap workflow.Session
	if err := f.reg.View(id, func(s *workflow.Session) { snap = *s }); err != nil {
		t.Fatalf("View: %v", err)
	}
	return snap
}

func TestGenerateSuccess(t *testing.T) {
	f := newFixture(t)
	enabled := true
	id := f.readySession(t, &workflow.DesignNumberPatch{Enabled: &enabled})

	res, err := f.svc.Generate(context.Background(), id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	req := f.gen.requests[0]
	if len(req.Fabrics) != 2 || string(req.Fabrics[0].Data) != "silk" || string(req.Fabrics[1].Data) != "crop" {
		t.Errorf("fabrics = %v, want top then cropped chunni", req.Fabrics)
	}
	if !strings.Contains(req.Instruction, "CHUNNI fabric source: PDF: catalog.pdf (Page 3) [cropped]") {
		t.Errorf("instruction missing chunni source line:\n%s", req.Instruction)
	}
	if string(req.ModelImage.Data) != "model" {
		t.Errorf("model image = %q", req.ModelImage.Data)
	}

	if res.DesignNumber != "DES-0001" {
		t.Errorf("DesignNumber = %q, want DES-0001", res.DesignNumber)
	}
	if res.Numbered == nil || res.Numbered.MIMEType != "image/png" {
		t.Error("expected numbered PNG variant")
	}
	if res.Usage.RecordID == "" || res.Usage.TotalTokens != 1750 {
		t.Errorf("usage = %+v", res.Usage)
	}

	sess := f.session(t, id)
	if sess.CurrentStep != workflow.StepResult || sess.Generating {
		t.Errorf("step = %s generating = %v, want result/false", sess.CurrentStep, sess.Generating)
	}
	if sess.AutoDesignCounter != 2 {
		t.Errorf("AutoDesignCounter = %d, want 2", sess.AutoDesignCounter)
	}

	st := f.ledger.Stats()
	if st.TotalGenerations != 1 || st.SuccessfulGenerations != 1 {
		t.Fatalf("ledger = %d total / %d ok", st.TotalGenerations, st.SuccessfulGenerations)
	}
	rec := st.RecentGenerations[0]
	if rec.InputImages != 3 || rec.OutputImages != 1 || rec.InputTokens != 1500 || rec.OutputTokens != 250 {
		t.Errorf("record = %+v", rec)
	}
}

func TestDisplayedDesignNumberMatchesBakedNumber(t *testing.T) {
	f := newFixture(t)
	enabled := true
	format := designnumber.FormatD
	id := f.readySession(t, &workflow.DesignNumberPatch{Enabled: &enabled, Format: &format})

	for i, want := range []string{"D-0001", "D-0002", "D-0003"} {
		res, err := f.svc.Generate(context.Background(), id)
		if err != nil {
			t.Fatalf("Generate #%d: %v", i+1, err)
		}
		sess := f.session(t, id)
		if sess.Result == nil || sess.Result.DesignNumber != res.DesignNumber {
			t.Fatalf("stored number %v != returned %q", sess.Result, res.DesignNumber)
		}
		if res.DesignNumber != want {
			t.Errorf("generation #%d number = %q, want %q", i+1, res.DesignNumber, want)
		}
		if err := f.reg.Update(id, func(s *workflow.Session) error { return s.ResetToStep(workflow.StepReview) }); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGenerateDisabledDesignNumber(t *testing.T) {
	f := newFixture(t)
	id := f.readySession(t, nil)

	res, err := f.svc.Generate(context.Background(), id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.DesignNumber != "" || res.Numbered != nil {
		t.Errorf("number = %q numbered = %v, want none", res.DesignNumber, res.Numbered)
	}
}

func TestGenerateError(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("blocked: SAFETY")
	id := f.readySession(t, nil)

	_, err := f.svc.Generate(context.Background(), id)
	var genErr *chat.GenerationError
	if !errors.As(err, &genErr) || genErr.Type != chat.ErrTypeSafety {
		t.Fatalf("err = %v, want safety GenerationError", err)
	}

	sess := f.session(t, id)
	if sess.CurrentStep != workflow.StepReview {
		t.Errorf("step = %s, want review", sess.CurrentStep)
	}
	if sess.Generating {
		t.Error("still generating")
	}
	if sess.LastError != genErr.Message {
		t.Errorf("LastError = %q, want %q", sess.LastError, genErr.Message)
	}
	if sess.AutoDesignCounter != 1 {
		t.Errorf("AutoDesignCounter = %d, want unchanged 1", sess.AutoDesignCounter)
	}

	st := f.ledger.Stats()
	if st.TotalGenerations != 1 || st.FailedGenerations != 1 {
		t.Fatalf("ledger = %d total / %d failed", st.TotalGenerations, st.FailedGenerations)
	}
	if rec := st.RecentGenerations[0]; rec.InputImages != 0 || rec.TotalCost != 0 {
		t.Errorf("failed record = %+v, want zero counts", rec)
	}
}

func TestGenerateNoImage(t *testing.T) {
	f := newFixture(t)
	f.gen.result = &chat.TryOnResult{
		Image: garment.Payload{Data: []byte("model"), MIMEType: "image/jpeg"},
		QualityFlags: []workflow.QualityFlag{{
			Type: workflow.FlagNoImageGenerated, Severity: workflow.FlagError, Message: "No response from model",
		}},
		InputTokens: 900,
		Model:       chat.ModelGemini3ProImage,
	}
	enabled := true
	id := f.readySession(t, &workflow.DesignNumberPatch{Enabled: &enabled})

	res, err := f.svc.Generate(context.Background(), id)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.HasError() {
		t.Error("expected error-severity flag")
	}
	if res.Numbered != nil {
		t.Error("no overlay expected on the fallback image")
	}
	rec := f.ledger.Stats().RecentGenerations[0]
	if rec.Success || rec.OutputImages != 0 || rec.InputImages != 3 {
		t.Errorf("record = %+v, want failed with 0 output images", rec)
	}
}

func TestGenerateGating(t *testing.T) {
	f := newFixture(t)

	t.Run("not at review", func(t *testing.T) {
		id := f.reg.Create()
		if _, err := f.svc.Generate(context.Background(), id); !errors.Is(err, workflow.ErrNotReady) {
			t.Errorf("err = %v, want ErrNotReady", err)
		}
	})

	t.Run("fabric removed at review", func(t *testing.T) {
		id := f.readySession(t, nil)
		f.reg.Update(id, func(s *workflow.Session) error {
			s.ClearFabric(garment.Top)
			return nil
		})
		if _, err := f.svc.Generate(context.Background(), id); !errors.Is(err, workflow.ErrNotReady) {
			t.Errorf("err = %v, want ErrNotReady", err)
		}
	})

	t.Run("already generating", func(t *testing.T) {
		id := f.readySession(t, nil)
		f.reg.Update(id, func(s *workflow.Session) error {
			s.StartGeneration()
			return nil
		})
		if _, err := f.svc.Generate(context.Background(), id); !errors.Is(err, workflow.ErrAlreadyGenerating) {
			t.Errorf("err = %v, want ErrAlreadyGenerating", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if _, err := f.svc.Generate(context.Background(), "nope"); !errors.Is(err, workflow.ErrSessionNotFound) {
			t.Errorf("err = %v, want ErrSessionNotFound", err)
		}
	})

	if n := len(f.gen.requests); n != 0 {
		t.Errorf("generator called %d times for rejected requests", n)
	}
}

func TestSessionReadableDuringGeneration(t *testing.T) {
	f := newFixture(t)
	id := f.readySession(t, nil)

	var during workflow.Step
	f.gen.during = func() {
		f.reg.View(id, func(s *workflow.Session) { during = s.CurrentStep })
	}
	if _, err := f.svc.Generate(context.Background(), id); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if during != workflow.StepGenerating {
		t.Errorf("step during call = %s, want generating", during)
	}
}

func TestResultDiscardedAfterReset(t *testing.T) {
	f := newFixture(t)
	id := f.readySession(t, nil)

	f.gen.during = func() {
		f.reg.Update(id, func(s *workflow.Session) error {
			s.Reset()
			return nil
		})
	}
	if _, err := f.svc.Generate(context.Background(), id); !errors.Is(err, ErrResultDiscarded) {
		t.Fatalf("err = %v, want ErrResultDiscarded", err)
	}
	if sess := f.session(t, id); sess.Result != nil || sess.CurrentStep != workflow.StepUploadModel {
		t.Errorf("session = step %s result %v, want untouched reset state", sess.CurrentStep, sess.Result)
	}
	// The call still happened, so it is still billed.
	if got := f.ledger.Stats().TotalGenerations; got != 1 {
		t.Errorf("TotalGenerations = %d, want 1", got)
	}
}

// gatedGenerator blocks each call until its gate is released. Call i
// answers with outcomes[i].
type gatedGenerator struct {
	mu       sync.Mutex
	calls    int
	started  chan int
	gates    []chan struct{}
	outcomes []error
}

func newGatedGenerator(outcomes ...error) *gatedGenerator {
	g := &gatedGenerator{started: make(chan int, len(outcomes)), outcomes: outcomes}
	for range outcomes {
		g.gates = append(g.gates, make(chan struct{}))
	}
	return g
}

func (g *gatedGenerator) Generate(ctx context.Context, req chat.TryOnRequest) (*chat.TryOnResult, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.mu.Unlock()

	g.started <- i
	<-g.gates[i]
	if g.outcomes[i] != nil {
		return nil, g.outcomes[i]
	}
	r := imageResult()
	r.Text = fmt.Sprintf("call %d", i)
	return r, nil
}

func (g *gatedGenerator) Model() string { return chat.ModelGemini3ProImage }

func TestStaleGenerationAfterResetIsDiscarded(t *testing.T) {
	tests := []struct {
		name  string
		first error
	}{
		{"stale success", nil},
		{"stale failure", errors.New("RATE_LIMIT exceeded")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			gen := newGatedGenerator(tt.first, nil)
			f.svc = NewService(f.reg, gen, f.ledger, time.Minute)
			id := f.readySession(t, nil)

			type outcome struct {
				res *workflow.GenerationResult
				err error
			}
			run := func() chan outcome {
				done := make(chan outcome, 1)
				go func() {
					res, err := f.svc.Generate(context.Background(), id)
					done <- outcome{res, err}
				}()
				<-gen.started
				return done
			}

			first := run()
			if err := f.reg.Update(id, func(s *workflow.Session) error { return s.ResetToStep(workflow.StepReview) }); err != nil {
				t.Fatal(err)
			}
			second := run()

			close(gen.gates[0])
			a := <-first
			if tt.first == nil && !errors.Is(a.err, ErrResultDiscarded) {
				t.Errorf("first err = %v, want ErrResultDiscarded", a.err)
			}
			sess := f.session(t, id)
			if !sess.Generating || sess.CurrentStep != workflow.StepGenerating || sess.Result != nil || sess.LastError != "" {
				t.Fatalf("stale call touched the session: step=%s generating=%v result=%v lastError=%q",
					sess.CurrentStep, sess.Generating, sess.Result, sess.LastError)
			}

			close(gen.gates[1])
			b := <-second
			if b.err != nil {
				t.Fatalf("second err = %v", b.err)
			}
			sess = f.session(t, id)
			if sess.Result == nil || sess.Result.ModelResponse != "call 1" {
				t.Errorf("stored result = %v, want the second call", sess.Result)
			}
			if sess.CurrentStep != workflow.StepResult || sess.AutoDesignCounter != 2 {
				t.Errorf("step = %s counter = %d, want result/2", sess.CurrentStep, sess.AutoDesignCounter)
			}
			if got := f.ledger.Stats().TotalGenerations; got != 2 {
				t.Errorf("TotalGenerations = %d, want both calls billed", got)
			}
		})
	}
}

func TestRecordSurvivesCanceledRequest(t *testing.T) {
	f := newFixture(t)
	store := &ctxCheckingStore{Store: usage.NewMemoryStore()}
	f.ledger = usage.Open(context.Background(), store, usage.DefaultPricing())
	f.svc = NewService(f.reg, f.gen, f.ledger, time.Second)
	id := f.readySession(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	f.gen.during = cancel
	f.svc.Generate(ctx, id)

	if store.canceledSaves != 0 {
		t.Errorf("%d ledger saves ran with a canceled context", store.canceledSaves)
	}
	if got := f.ledger.Stats().TotalGenerations; got != 1 {
		t.Errorf("TotalGenerations = %d, want 1", got)
	}
}

type ctxCheckingStore struct {
	usage.Store
	canceledSaves int
}

func (s *ctxCheckingStore) Save(ctx context.Context, snap usage.Snapshot) error {
	if ctx.Err() != nil {
		s.canceledSaves++
		return ctx.Err()
	}
	return s.Store.Save(ctx, snap)
}

func TestCheckPrompt(t *testing.T) {
	f := newFixture(t)
	id := f.readySession(t, nil)
	text := "reshape the border and add shimmer <b>please</b>"
	f.reg.Update(id, func(s *workflow.Session) error {
		s.SetAdvancedOptions(workflow.OptionsPatch{CustomPrompt: &text})
		return nil
	})

	pc, err := f.svc.CheckPrompt(id)
	if err != nil {
		t.Fatalf("CheckPrompt: %v", err)
	}
	if !pc.Blocked {
		t.Error("expected blocked")
	}
	if strings.Contains(pc.SanitizedText, "<") {
		t.Errorf("SanitizedText = %q, want tags stripped", pc.SanitizedText)
	}
	if !strings.Contains(pc.Instruction, "Additional instructions:") {
		t.Error("instruction preview missing custom text section")
	}
	if pc.EstimatedDuration != "45-60 seconds" {
		t.Errorf("EstimatedDuration = %q", pc.EstimatedDuration)
	}
}
