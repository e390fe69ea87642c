package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/apexline/paddock/internal/models"
	"github.com/apexline/paddock/pkg/config"
	"github.com/apexline/paddock/pkg/ingest"
	"github.com/apexline/paddock/pkg/llm"
	"github.com/apexline/paddock/pkg/retrieval"
	"github.com/apexline/paddock/pkg/sanitize"
	"github.com/apexline/paddock/pkg/scraper"
	"github.com/apexline/paddock/pkg/splitter"
	"github.com/apexline/paddock/pkg/store"
)

func main() {
	godotenv.Load()

	var (
		configPath string
		runIngest  bool
		streaming  bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.BoolVar(&runIngest, "ingest", false, "Ingest the configured source URLs and exit")
	flag.BoolVar(&streaming, "stream", true, "Stream responses token by token")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		log.Fatal("invalid configuration")
	}

	if runIngest {
		if err := ingestCorpus(cfg); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := chatLoop(cfg, streaming); err != nil {
		log.Fatal(err)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (*store.VectorStore, error) {
	return store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		Collection: cfg.Database.Collection,
		VectorDim:  cfg.Database.VectorDim,
		Metric:     store.Metric(cfg.Database.Metric),
	})
}

func buildEmbedder(cfg *config.Config) (*llm.Embedder, error) {
	return llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbedModel,
		BaseURL:   cfg.LLM.BaseURL,
		VectorDim: cfg.Database.VectorDim,
	})
}

func ingestCorpus(cfg *config.Config) error {
	ctx := context.Background()

	vectorStore, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	fetcher := scraper.NewWithConfig(scraper.ScraperConfig{
		RateLimit: cfg.Ingest.RateLimit,
		Timeout:   time.Duration(cfg.Ingest.TimeoutSecs) * time.Second,
		OnProgress: func(url string) {
			color.Blue("Fetching %s", url)
		},
	})

	split := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	})

	var chunkCount int32
	bar := getProgressBar(-1, " Ingesting chunks")
	pipeline := ingest.New(fetcher, split, embedder, vectorStore, ingest.PipelineConfig{
		Concurrency: cfg.Ingest.Concurrency,
		OnChunk: func(url string) {
			bar.Set(int(atomic.AddInt32(&chunkCount, 1)))
		},
	})

	sum := pipeline.Run(ctx, cfg.Ingest.URLs)
	bar.Finish()
	fmt.Print("\n")

	color.Green("✓ %d pages fetched, %d chunks seen", sum.URLsFetched, sum.Chunks)
	color.Green("✓ %d inserted, %d duplicates skipped", sum.Inserted, sum.Skipped)
	if sum.URLsFailed > 0 || sum.Failed > 0 {
		color.Red("✗ %d pages and %d chunks failed", sum.URLsFailed, sum.Failed)
	}
	return nil
}

func chatLoop(cfg *config.Config, streaming bool) error {
	ctx := context.Background()

	vectorStore, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	retriever := retrieval.NewService(embedder, vectorStore, retrieval.ServiceConfig{
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
	})

	color.Cyan("\nChat with the paddock (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "exit") {
			break
		}

		querySpinner := getSpinner("🔍 Searching the corpus...")
		docContext := retriever.Retrieve(ctx, query)
		querySpinner.Finish()
		fmt.Print("\r")

		messages := []models.Message{{Role: models.RoleUser, Content: query}}

		fmt.Print("\n")
		assistantPrompt("Assistant: ")

		if streaming {
			san := sanitize.New()
			err = chatEngine.StreamChat(ctx, messages, docContext, func(delta string) error {
				fmt.Print(san.Push(delta))
				return nil
			})
			if err == nil {
				fmt.Print(san.Flush())
			}
		} else {
			san := sanitize.New()
			var answer string
			answer, err = chatEngine.Chat(ctx, messages, docContext)
			if err == nil {
				fmt.Print(san.Push(answer) + san.Flush())
			}
		}
		if err != nil {
			color.Red("Error: %v", err)
			continue
		}
		fmt.Print("\n")
	}

	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
