package ingest

import (
	"context"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/apexline/paddock/internal/models"
	"github.com/apexline/paddock/internal/types"
	"github.com/apexline/paddock/pkg/store"
)

type PipelineConfig struct {
	Concurrency int              // max in-flight chunks per document
	OnChunk     func(url string) // progress hook, called once per finished chunk
}

// Pipeline populates the vector store from a list of source URLs: fetch,
// split, dedup against the store, embed, insert. Every failure is local to
// one URL or one chunk; the batch always runs to completion.
//
// The dedup check and the insert are separate statements, so two pipelines
// ingesting the same source concurrently can both insert the same text.
// That is accepted: a later run sees the committed rows and converges.
type Pipeline struct {
	fetcher  types.Fetcher
	splitter types.Splitter
	embedder types.Embedder
	store    types.VectorStore
	config   PipelineConfig
}

// Summary counts per-run outcomes across all URLs.
type Summary struct {
	URLsFetched int64
	URLsFailed  int64
	Chunks      int64
	Inserted    int64
	Skipped     int64
	Failed      int64
}

func New(fetcher types.Fetcher, splitter types.Splitter, embedder types.Embedder, store types.VectorStore, config PipelineConfig) *Pipeline {
	if config.Concurrency == 0 {
		config.Concurrency = 4
	}
	return &Pipeline{
		fetcher:  fetcher,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		config:   config,
	}
}

// Run processes every URL in order and returns the outcome counts. It only
// stops early when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, urls []string) Summary {
	var sum Summary

	for _, url := range urls {
		if ctx.Err() != nil {
			break
		}

		doc, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			log.Printf("ingest: failed to fetch %s: %v", url, err)
			sum.URLsFailed++
			continue
		}
		sum.URLsFetched++

		chunks := p.splitter.Split(doc.Content)
		sum.Chunks += int64(len(chunks))

		inserted, skipped, failed := p.ingestChunks(ctx, url, chunks)
		sum.Inserted += inserted
		sum.Skipped += skipped
		sum.Failed += failed
	}

	log.Printf("ingest: done: %d urls fetched, %d failed; %d chunks (%d inserted, %d duplicates, %d failed)",
		sum.URLsFetched, sum.URLsFailed, sum.Chunks, sum.Inserted, sum.Skipped, sum.Failed)
	return sum
}

// ingestChunks dedups, embeds and inserts one document's chunks with
// bounded concurrency. Chunk failures are independent: a bad chunk never
// blocks its siblings.
func (p *Pipeline) ingestChunks(ctx context.Context, url string, chunks []string) (inserted, skipped, failed int64) {
	var ins, skip, fail atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for _, chunk := range chunks {
		// Scraped pages are not guaranteed to be valid UTF-8. Normalize
		// before the dedup lookup so the key looked up, the text embedded
		// and the text stored are all the same bytes.
		chunk := store.SanitizeUTF8(chunk)
		g.Go(func() error {
			defer func() {
				if p.config.OnChunk != nil {
					p.config.OnChunk(url)
				}
			}()

			existing, err := p.store.FindExact(ctx, chunk)
			if err != nil {
				log.Printf("ingest: dedup lookup failed for %s: %v", url, err)
				fail.Add(1)
				return nil
			}
			if existing != nil {
				skip.Add(1)
				return nil
			}

			vector, err := p.embedder.EmbedQuery(ctx, chunk)
			if err != nil {
				log.Printf("ingest: embedding failed for %s: %v", url, err)
				fail.Add(1)
				return nil
			}

			if _, err := p.store.Insert(ctx, models.VectorRecord{Vector: vector, Text: chunk}); err != nil {
				log.Printf("ingest: insert failed for %s: %v", url, err)
				fail.Add(1)
				return nil
			}
			ins.Add(1)
			return nil
		})
	}

	g.Wait()
	return ins.Load(), skip.Load(), fail.Load()
}
