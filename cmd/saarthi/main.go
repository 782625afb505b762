package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/saarthi/internal/agent"
	"github.com/rahul/saarthi/internal/gateway"
	"github.com/rahul/saarthi/internal/governance"
	"github.com/rahul/saarthi/internal/observability"
	"github.com/rahul/saarthi/internal/retrieval"
	"github.com/rahul/saarthi/internal/store"
	"github.com/rahul/saarthi/internal/tools"
	"github.com/rahul/saarthi/pkg/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

const version = "0.3.0"

func main() {
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal(err)
	}

	observability.PrintBanner(cfg.App.Name, version)
	logger := observability.NewLogger()

	// Billing store backing the refund-status tool
	orders, err := store.NewOrderStore(cfg.Billing.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer orders.Close()
	if err := orders.Seed(); err != nil {
		log.Fatal(err)
	}

	// Tool registry
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewBillingTool(orders)); err != nil {
		log.Fatal(err)
	}
	if err := registry.Register(tools.NewWebpageTool()); err != nil {
		log.Fatal(err)
	}

	// LLM provider (openai-compatible endpoints)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var model llms.Model
	switch pName {
	case "openai", "openrouter", "groq":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		if pCfg.EmbeddingModel != "" {
			opts = append(opts, openai.WithEmbeddingModel(pCfg.EmbeddingModel))
		}
		model, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	// Vector store + retriever
	embedder, err := embeddings.NewEmbedder(model.(*openai.LLM))
	if err != nil {
		log.Fatal(err)
	}
	vectorStore, err := chroma.New(
		chroma.WithChromaURL(cfg.Retrieval.URL),
		chroma.WithEmbedder(embedder),
		chroma.WithNameSpace(cfg.Retrieval.Namespace),
	)
	if err != nil {
		log.Fatal(err)
	}
	retriever := retrieval.New(vectorStore, cfg.Retrieval.ScoreThreshold, logger)

	if cfg.Retrieval.KnowledgeBase != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		chunks, err := retriever.Ingest(ctx, cfg.Retrieval.KnowledgeBase, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
		cancel()
		if err != nil {
			log.Printf("Warning: knowledge base ingestion failed: %v", err)
		} else {
			log.Printf("Indexed %d knowledge base chunks", chunks)
		}
	}

	// Governance: keep tools away from local files and link-local
	// metadata endpoints.
	gov := governance.NewDefaultPolicyEngine()
	_ = gov.DenyParams(`file://`)
	_ = gov.DenyParams(`169\.254\.169\.254`)

	prompts := agent.NewPromptManager(cfg.Prompts.Directory)

	planner := agent.NewPlanner(model, prompts, logger, registry.List())
	grounder := agent.NewGrounder(retriever, cfg.Retrieval.K, logger)
	actor := agent.NewActor(model, registry, gov, prompts, logger)
	router := agent.NewRouter(model, prompts, logger)

	var critic *agent.Critic
	if cfg.Critic.Enabled {
		critic = agent.NewCritic(model, prompts, logger)
	}

	orchestrator := agent.NewOrchestrator(planner, grounder, actor, critic, router, logger)

	gw := gateway.NewHTTPGateway(cfg.Server.Addr, orchestrator, logger, cfg.Server.RequestTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("%s listening on %s", cfg.App.Name, cfg.Server.Addr)
		if err := gw.Start(); err != nil {
			log.Printf("gateway error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Stop(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("goodbye")
}
