package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"productlens-backend/internal/llm"
	openai "productlens-backend/internal/llm/openai"
	"productlens-backend/internal/products"
	"productlens-backend/internal/queue"
	"productlens-backend/internal/runs"
	"productlens-backend/internal/scrape"
	"productlens-backend/internal/shared/config"
	"productlens-backend/internal/shared/server"
	"productlens-backend/internal/shared/storage/db"
	"productlens-backend/internal/shared/storage/object"
	localstore "productlens-backend/internal/shared/storage/object/local"
	s3store "productlens-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	ProductsRepo products.Repo
	RunsRepo     runs.Repo
	Engine       *runs.Engine
	RunsService  *runs.Service
	RunsHandler  *runs.Handler
	ProgressSink *runs.MemorySink

	RunProcessor RunProcessor
}

// RunProcessor allows callers to override run processing for tests.
type RunProcessor interface {
	ProcessRun(ctx context.Context, runID string) error
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:      app.Config,
		RunsHandler: app.RunsHandler,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("PL_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var productsRepo products.Repo
	var runsRepo runs.Repo
	if app.DB != nil {
		productsRepo = &products.PGRepo{DB: app.DB}
		runsRepo = &runs.PGRepo{DB: app.DB}
	} else {
		productsRepo = products.NewMemoryRepo()
		runsRepo = runs.NewMemoryRepo()
	}

	llmClient := llm.Client(llm.PlaceholderClient{})
	if app.Config.LLMProvider == "openai" {
		openaiClient, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
		if err != nil {
			if !isDevLike(app.Config.Env) {
				return err
			}
			log.Printf("bootstrap: openai client unavailable, using placeholder: %v", err)
		} else {
			llmClient = openaiClient
		}
	}

	gate := scrape.NewGate(app.Config.ScrapeRequestsPerMinute, app.Config.ScrapeBurst)
	fetcher := scrape.NewHTTPFetcher(gate)

	sink := runs.NewMemorySink()
	engine := runs.NewEngine(fetcher, llmClient, productsRepo, nil, runs.RunConfig{
		MaxIterations:         app.Config.MaxIterations,
		CompetitorRetryBudget: app.Config.CompetitorRetryBudget,
		WorkerCallTimeout:     app.Config.WorkerCallTimeout,
	}, app.Config.MaxConcurrentWorkers)

	svc := &runs.Service{
		Repo:     runsRepo,
		Products: productsRepo,
		Engine:   engine,
		Queue:    app.Queue,
		Store:    app.Store,
		Sink:     sink,
	}

	app.ProductsRepo = productsRepo
	app.RunsRepo = runsRepo
	app.Engine = engine
	app.RunsService = svc
	app.RunProcessor = svc
	app.ProgressSink = sink
	app.RunsHandler = runs.NewHandler(svc, sink)
	return nil
}
