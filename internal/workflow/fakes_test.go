package workflow_test

import (
	"context"
	"github.com/myrjola/casebot/internal/blobstore"
	"github.com/myrjola/casebot/internal/casestore"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/models"
	"github.com/myrjola/casebot/internal/testhelpers"
	"github.com/myrjola/casebot/internal/workflow"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
	"time"
)

// memStates is a StateStore whose next saves can be made to fail.
type memStates struct {
	mu       sync.Mutex
	state    models.AppState
	saves    int
	failures int
}

func (s *memStates) Load(context.Context) models.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Validate() != nil {
		return models.DefaultAppState()
	}
	return s.state
}

func (s *memStates) Save(_ context.Context, state models.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.Wrap(errors.ErrPersistence, "disk full")
	}
	s.state = state
	s.saves++
	return nil
}

func (s *memStates) persisted() models.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// faultyCases wraps a real case store and fails selected operations.
type faultyCases struct {
	workflow.CaseStore
	failCreate bool
	failAppend bool
	failDelete bool
}

func (c *faultyCases) CreateCase(ctx context.Context, nc models.NewCase) (string, error) {
	if c.failCreate {
		return "", errors.Wrap(errors.ErrPersistence, "disk full")
	}
	return c.CaseStore.CreateCase(ctx, nc)
}

func (c *faultyCases) AppendEvidence(ctx context.Context, caseID string, item models.EvidenceItem, payload []byte) error {
	if c.failAppend {
		return errors.Wrap(errors.ErrPersistence, "disk full")
	}
	return c.CaseStore.AppendEvidence(ctx, caseID, item, payload)
}

func (c *faultyCases) Delete(ctx context.Context, caseID string) error {
	if c.failDelete {
		return errors.Wrap(errors.ErrPersistence, "device busy")
	}
	return c.CaseStore.Delete(ctx, caseID)
}

// unfinished returns the ids of the cases whose collection has not finished.
func (c *faultyCases) unfinished(t *testing.T) []string {
	t.Helper()
	overviews, err := c.List(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, o := range overviews {
		if !o.Finished() {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

type fakeExtractor struct {
	fields models.ExtractedFields
	err    error
}

func (f *fakeExtractor) Extract(context.Context, []byte) (models.ExtractedFields, error) {
	return f.fields, f.err
}

type fakeSummarizer struct {
	briefing workflow.Briefing
	err      error
	panics   bool
}

func (f *fakeSummarizer) Summarize(context.Context, models.ExtractedFields) (workflow.Briefing, error) {
	if f.panics {
		panic("summarizer bug")
	}
	return f.briefing, f.err
}

type fakeTranscriber struct {
	text string
	err  error
	// hang ignores the context and blocks until released.
	hang chan struct{}
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte) (string, error) {
	if f.hang != nil {
		<-f.hang
	}
	return f.text, f.err
}

// clock advances one second per reading so that timestamps are ordered.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	engine      *workflow.Engine
	states      *memStates
	cases       *faultyCases
	blobs       *blobstore.Store
	extractor   *fakeExtractor
	summarizer  *fakeSummarizer
	transcriber *fakeTranscriber
	clock       *clock
}

var intakeFields = models.ExtractedFields{
	CaseNumber:   "12",
	ReportNumber: "345",
	CaseYear:     2024,
	Address:      "Rua da Aurora 100",
	City:         "Recife",
	Coordinates:  &models.Location{Latitude: -8.06, Longitude: -34.88},
}

const caseID = "SEPPATRI_12_345_2024"

func newHarness(t *testing.T) *harness {
	t.Helper()
	blobs := blobstore.New(t.TempDir())
	h := &harness{
		states:      &memStates{state: models.DefaultAppState()},
		cases:       &faultyCases{CaseStore: casestore.NewFileStore(testhelpers.NewLogger(io.Discard), blobs, "SEPPATRI")},
		blobs:       blobs,
		extractor:   &fakeExtractor{fields: intakeFields},
		summarizer:  &fakeSummarizer{briefing: workflow.Briefing{Summary: "Burglary.", Checklist: "- entry point"}},
		transcriber: &fakeTranscriber{text: "two suspects left by car"},
		clock:       &clock{now: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)},
	}
	h.engine = h.restart()
	return h
}

// restart builds a fresh engine over the same stores, as a restarted process would.
func (h *harness) restart() *workflow.Engine {
	return workflow.NewEngine(workflow.Options{
		States:      h.states,
		Cases:       h.cases,
		Extractor:   h.extractor,
		Summarizer:  h.summarizer,
		Transcriber: h.transcriber,
		Timeout:     200 * time.Millisecond,
		Now:         h.clock.Now,
		Logger:      testhelpers.NewLogger(io.Discard),
	})
}

func (h *harness) handle(t *testing.T, ev workflow.Event) []workflow.Directive {
	t.Helper()
	directives, err := h.engine.Handle(context.Background(), ev)
	require.NoError(t, err)
	h.requireConsistent(t)
	return directives
}

// requireConsistent checks the active case invariant and that memory matches the persisted snapshot.
func (h *harness) requireConsistent(t *testing.T) {
	t.Helper()
	state := h.engine.State()
	require.NoError(t, state.Validate())
	require.True(t, state.Equal(h.states.persisted()), "engine %+v, persisted %+v", state, h.states.persisted())
}

// startCollecting drives the engine from Idle into EvidenceCollection.
func (h *harness) startCollecting(t *testing.T) {
	t.Helper()
	h.handle(t, workflow.StartCase{})
	h.handle(t, workflow.DocumentReceived{Data: []byte("%PDF-1.4 occurrence"), Filename: "boletim.pdf"})
	require.Equal(t, models.Collecting(caseID), h.engine.State())
}

func (h *harness) loadCase(t *testing.T) models.Case {
	t.Helper()
	c, err := h.cases.Load(context.Background(), caseID)
	require.NoError(t, err)
	return c
}

func find[T workflow.Directive](directives []workflow.Directive) (T, bool) {
	for _, d := range directives {
		if typed, ok := d.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

func findAll[T workflow.Directive](directives []workflow.Directive) []T {
	var all []T
	for _, d := range directives {
		if typed, ok := d.(T); ok {
			all = append(all, typed)
		}
	}
	return all
}
