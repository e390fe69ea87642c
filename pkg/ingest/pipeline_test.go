package ingest_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexline/paddock/internal/models"
	"github.com/apexline/paddock/pkg/ingest"
	"github.com/apexline/paddock/pkg/splitter"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (models.Document, error) {
	content, ok := f.pages[url]
	if !ok {
		return models.Document{}, fmt.Errorf("fetch failed for %s", url)
	}
	return models.Document{URL: url, Content: content}, nil
}

type fakeEmbedder struct {
	failOn string
	calls  int
	mu     sync.Mutex
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failOn != "" && text == e.failOn {
		return nil, fmt.Errorf("embedding unavailable")
	}
	return []float32{float32(len(text)), 1, 2}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.VectorRecord
	nextID  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]models.VectorRecord{}}
}

func (s *fakeStore) FindExact(ctx context.Context, text string) (*models.VectorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[text]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *fakeStore) Insert(ctx context.Context, rec models.VectorRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = fmt.Sprintf("rec-%d", s.nextID)
	s.records[rec.Text] = rec
	return rec.ID, nil
}

func (s *fakeStore) NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error) {
	return nil, nil
}

func (s *fakeStore) Close() {}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newPipeline(fetcher *fakeFetcher, embedder *fakeEmbedder, st *fakeStore) *ingest.Pipeline {
	sp := splitter.NewWithConfig(splitter.SplitterConfig{ChunkSize: 64, ChunkOverlap: 16})
	return ingest.New(fetcher, sp, embedder, st, ingest.PipelineConfig{Concurrency: 2})
}

func TestPipeline_RunTwiceIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": "First sentence about racing. Second sentence about lap times. Third sentence about podiums.",
	}}
	st := newFakeStore()
	emb := &fakeEmbedder{}
	p := newPipeline(fetcher, emb, st)

	urls := []string{"https://example.com/a"}

	first := p.Run(context.Background(), urls)
	require.Greater(t, first.Inserted, int64(0))
	assert.Zero(t, first.Failed)
	countAfterFirst := st.count()

	second := p.Run(context.Background(), urls)
	assert.Zero(t, second.Inserted, "second run inserts nothing")
	assert.Equal(t, first.Inserted, second.Skipped, "every chunk is a duplicate now")
	assert.Equal(t, countAfterFirst, st.count())
}

func TestPipeline_FetchFailureSkipsURL(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/good": "Some page content worth keeping around for retrieval.",
	}}
	st := newFakeStore()
	p := newPipeline(fetcher, &fakeEmbedder{}, st)

	sum := p.Run(context.Background(), []string{
		"https://example.com/missing",
		"https://example.com/good",
	})

	assert.Equal(t, int64(1), sum.URLsFailed)
	assert.Equal(t, int64(1), sum.URLsFetched)
	assert.Greater(t, sum.Inserted, int64(0), "the good URL is still ingested")
}

func TestPipeline_ChunkFailureDoesNotBlockSiblings(t *testing.T) {
	para1 := "Alpha paragraph with enough text to stand on its own as one chunk."
	para2 := "Beta paragraph, also long enough to be split into its own chunk."
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": para1 + "\n\n" + para2,
	}}
	st := newFakeStore()
	emb := &fakeEmbedder{failOn: para1 + "\n\n"}
	sp := splitter.NewWithConfig(splitter.SplitterConfig{ChunkSize: 128, ChunkOverlap: 16})
	p := ingest.New(fetcher, sp, emb, st, ingest.PipelineConfig{Concurrency: 2})

	sum := p.Run(context.Background(), []string{"https://example.com/a"})

	assert.Equal(t, int64(1), sum.Failed)
	assert.Equal(t, int64(1), sum.Inserted)
	assert.Equal(t, 1, st.count())
}

func TestPipeline_ProgressCallback(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": "Short page.",
	}}
	st := newFakeStore()

	var mu sync.Mutex
	var seen int
	sp := splitter.NewWithConfig(splitter.SplitterConfig{ChunkSize: 64, ChunkOverlap: 16})
	p := ingest.New(fetcher, sp, &fakeEmbedder{}, st, ingest.PipelineConfig{
		Concurrency: 2,
		OnChunk: func(url string) {
			mu.Lock()
			seen++
			mu.Unlock()
		},
	})

	sum := p.Run(context.Background(), []string{"https://example.com/a"})
	assert.Equal(t, sum.Chunks, int64(seen))
}

func TestPipeline_InvalidUTF8ChunkIsIngestedOnce(t *testing.T) {
	// Scraped bytes pass through untouched, so a page can hand the
	// pipeline invalid UTF-8. The chunk must still be ingested, stored as
	// valid UTF-8, and deduplicated on the next run.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": "Monza lap record \xff\xfe holder.",
	}}
	st := newFakeStore()
	p := newPipeline(fetcher, &fakeEmbedder{}, st)

	urls := []string{"https://example.com/a"}

	first := p.Run(context.Background(), urls)
	assert.Equal(t, int64(1), first.Inserted)
	assert.Zero(t, first.Failed)
	for text := range st.records {
		assert.True(t, utf8.ValidString(text), "stored text must be valid UTF-8")
	}

	second := p.Run(context.Background(), urls)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, int64(1), second.Skipped)
	assert.Equal(t, 1, st.count())
}

func TestPipeline_CancelledContextStops(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/a": "content",
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := newFakeStore()
	p := newPipeline(fetcher, &fakeEmbedder{}, st)
	sum := p.Run(ctx, []string{"https://example.com/a"})

	assert.Zero(t, sum.URLsFetched)
	assert.Zero(t, st.count())
}
