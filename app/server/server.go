package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"manualrag/answer"
	"manualrag/app/api"
	"manualrag/model"
	"manualrag/retriever"
	"manualrag/store"
	"manualrag/types"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
}

func NewServer(addr string) *Server {
	return &Server{
		listenAddr: addr,
		logger:     slog.Default(),
	}
}

func (s *Server) Stop() {
	s.logger.Info("server stopped")
}

func (s *Server) Run() {
	ctx := context.Background()
	pg, err := store.NewPostgresStore(ctx, ConnStrFromEnv())
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
		return
	}

	if err := pg.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
		return
	}

	cfg := types.LoadConfig()

	var (
		vectorStore = store.NewVectorStore(pg.Pool())
		textStore   = store.NewTextStore(pg.Pool())
		embedder    = model.NewOllamaEmbedder()
		generator   = model.NewOllamaGenerator()
		retr        = retriever.New(vectorStore, textStore, embedder, cfg)
		synth       = answer.NewSynthesizer(generator, answer.NewContextBuilder(cfg.ContextTokenBudget), cfg)
	)

	var (
		app            = fiber.New(config)
		checkHandler   = api.NewCheckHandler()
		requestHandler = api.NewRequestHandler(pg, retr, synth)
		manualsHandler = api.NewManualsHandler(pg)
		fileHandler    = api.NewFileHandler(cfg.SourceDir)
		check          = app.Group("/check")
		apiv1          = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/ask", requestHandler.HandleAsk)
	apiv1.Post("/manuals", fileHandler.HandleUpload)
	app.Get("/manuals", manualsHandler.HandleManuals)
	// The viewer fetches cited documents straight from here.
	app.Static("/manuals", cfg.SourceDir)

	if err := app.Listen(s.listenAddr); err != nil {
		s.logger.Error("error starting server", "error", err.Error())
	}
}

func ConnStrFromEnv() string {
	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))
}
