package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notekit/notekit/internal/cache"
	"github.com/notekit/notekit/internal/config"
	"github.com/notekit/notekit/internal/database"
	"github.com/notekit/notekit/internal/logger"
	"github.com/notekit/notekit/internal/models"
	"github.com/notekit/notekit/internal/ratelimit"
	"github.com/notekit/notekit/internal/search"
	"github.com/notekit/notekit/internal/stats"
)

var (
	db          *database.DB
	noteRepo    *models.NoteRepository
	searchCache *cache.Cache[[]search.Result]
	engine      *search.Engine
	aggregator  *stats.Aggregator
	limiter     *ratelimit.Limiter
	appConfig   *config.Config
	debugFlag   bool
	Version     = "dev" // Version is set from main.go
)

var rootCmd = &cobra.Command{
	Use:     "notekit",
	Short:   "A self-hosted notes service with ranked search",
	Version: Version,
	Long: `notekit is a small notes service exposing an HTTP API and an MCP server.

Notes are soft-deleted, creation is idempotent and rate limited, and search
ranks title matches above content matches.

First time users should run 'notekit init' to set up the configuration.`,
}

func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initAppConfig)
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}

func initAppConfig() {
	// Skip initialization for init and config commands
	if len(os.Args) > 1 && (os.Args[1] == "init" || os.Args[1] == "config") {
		return
	}

	var err error
	appConfig, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		fmt.Fprintf(os.Stderr, "Please run 'notekit init' to set up the configuration.\n")
		os.Exit(1)
	}

	if debugFlag || appConfig.Debug {
		logger.SetDebugMode(true)
		logger.Debug("Data directory: %s", appConfig.DataDirectory)
		logger.Debug("Rate limit: %d per %s", appConfig.RateLimit, appConfig.RateLimitWindow())
		logger.Debug("Cache bound: %d entries", appConfig.CacheMaxEntries)
	}

	db, err = database.New(appConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing database: %v\n", err)
		os.Exit(1)
	}

	// The cache, repository and engine share one invalidation domain: any
	// repository mutation clears every cached query.
	searchCache = cache.New[[]search.Result](appConfig.CacheMaxEntries)
	noteRepo = models.NewNoteRepository(db.Conn(), searchCache)
	engine = search.NewEngine(noteRepo, searchCache)
	aggregator = stats.NewAggregator(noteRepo)
	limiter = ratelimit.New(appConfig.RateLimit, appConfig.RateLimitWindow())
}
