package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"manualrag/app/server"
	"manualrag/index"
	"manualrag/loader/internal"
	"manualrag/loader/service"
	"manualrag/model"
	"manualrag/store"
	"manualrag/types"

	"github.com/joho/godotenv"
)

func init() {
	mustLoadEnvVariables()
}

func main() {
	ctx := context.Background()
	pg, err := store.NewPostgresStore(ctx, server.ConnStrFromEnv())
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
		return
	}
	defer pg.Close()

	if err := pg.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
		return
	}

	cfg := types.LoadConfig()
	if err := os.MkdirAll(cfg.SourceDir, 0755); err != nil {
		log.Fatal("error creating source directory: ", err)
		return
	}

	indexer := index.New(store.NewVectorStore(pg.Pool()), store.NewTextStore(pg.Pool()), pg)
	svc := service.New(cfg, internal.NewDoclingExtractor(), model.NewOllamaEmbedder(), indexer)

	report, err := svc.IngestDir(ctx, cfg.SourceDir)
	if err != nil {
		log.Fatal("ingestion failed: ", err)
		return
	}

	fmt.Printf("Ingested %d manuals, %d failures\n", len(report.Manuals), len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("  failed: %s: %v\n", f.File, f.Err)
	}
	if len(report.Manuals) == 0 && len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func mustLoadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Fatal("Error loading .env file")
	}
}
