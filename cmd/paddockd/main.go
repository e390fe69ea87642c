package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/apexline/paddock/pkg/config"
	"github.com/apexline/paddock/pkg/llm"
	"github.com/apexline/paddock/pkg/retrieval"
	"github.com/apexline/paddock/pkg/store"
	"github.com/apexline/paddock/server"
)

func main() {
	godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
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
	if cfg.Server.AuthToken == "" {
		log.Fatal("server.auth_token (or CHATBOT_SECRET_KEY) must be set")
	}

	ctx := context.Background()

	// Clients are built once here and handed down; nothing below creates
	// its own connections.
	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		Collection: cfg.Database.Collection,
		VectorDim:  cfg.Database.VectorDim,
		Metric:     store.Metric(cfg.Database.Metric),
	})
	if err != nil {
		log.Fatalf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbedModel,
		BaseURL:   cfg.LLM.BaseURL,
		VectorDim: cfg.Database.VectorDim,
	})
	if err != nil {
		log.Fatalf("failed to initialize embedder: %v", err)
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		log.Fatalf("failed to initialize chat engine: %v", err)
	}

	retriever := retrieval.NewService(embedder, vectorStore, retrieval.ServiceConfig{
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
	})

	srv := server.New(server.Config{
		Addr:       cfg.Server.Addr,
		AuthToken:  cfg.Server.AuthToken,
		MaxPending: cfg.Server.MaxPending,
	}, retriever, chatEngine)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("starting chat server on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
