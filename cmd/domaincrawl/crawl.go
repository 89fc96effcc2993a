package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/domaincrawl/internal/browser"
	"github.com/nao1215/domaincrawl/internal/config"
	"github.com/nao1215/domaincrawl/internal/crawler"
	"github.com/nao1215/domaincrawl/internal/database"
	"github.com/nao1215/domaincrawl/internal/document"
	"github.com/nao1215/domaincrawl/internal/fetch"
	"github.com/nao1215/domaincrawl/internal/log"
	"github.com/nao1215/domaincrawl/internal/media"
	"github.com/nao1215/domaincrawl/internal/model"
	"github.com/nao1215/domaincrawl/internal/pipeline"
	"github.com/nao1215/domaincrawl/internal/report"
	"github.com/nao1215/domaincrawl/internal/seed"
	"github.com/nao1215/domaincrawl/internal/sink"
	"github.com/nao1215/domaincrawl/internal/textnorm"
)

// errNoSeeds is returned when the seed file holds no usable row.
var errNoSeeds = errors.New("no valid seeds")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-file>",
		Short: "Crawl the sites listed in a seed file",
		Long: `Crawl reads entity ids and seed URLs from a CSV or TSV file and crawls
every seed inside its registrable domain.

Each page becomes one JSON record with the entity id, depth, normalized
text, image URLs and the text of linked documents. Records go to every
enabled sink: a JSON lines file, a Redis list and the SQLite database.
A diagnostics report with per-entity link statistics is written when the
batch finishes.

Examples:
  # Crawl seeds.csv (id in column 0, URL in column 1) and print records
  domaincrawl crawl -o - seeds.csv

  # Click JavaScript navigation with headless Chrome
  domaincrawl crawl --mode browser seeds.csv

  # Push records to Redis and skip the local database
  domaincrawl crawl --redis-addr redis://localhost:6379/0 --no-db seeds.csv

  # Write text and Markdown diagnostics reports
  domaincrawl crawl --diagnostics-format text,markdown seeds.csv

  # Keep page images, original documents and one text file per page
  domaincrawl crawl --images-dir images --keep-files --results-dir results seeds.csv

Seed file example:
  id,url
  370014000000,https://www.example-school.org/
  370014000001,https://district.example.net/`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()

	// Crawl behavior
	f.StringP("mode", "m", config.DefaultMode, "Crawl mode: http or browser")
	f.IntP("depth", "d", config.DefaultCrawlDepth, "Maximum link hops from the seed page")
	f.IntP("max-pages", "p", 0, "Maximum pages per seed (0 = unlimited)")
	f.IntP("concurrency", "n", config.DefaultConcurrency, "Concurrent requests per registrable domain")
	f.IntP("batch", "b", config.DefaultBatchSize, "Number of seeds crawled at the same time")
	f.Duration("delay", config.DefaultCrawlDelay, "Politeness delay between requests to one domain")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	f.IntP("retries", "r", config.DefaultRetries, "Retries for transient request failures")
	f.String("proxy", "", "SOCKS5 proxy address (host:port)")
	f.Bool("headless", true, "Run the browser without a window in browser mode")
	f.Bool("fold-unicode", false, "Apply Unicode compatibility folding to page text")
	f.String("antiword", config.DefaultAntiwordPath, "Command used to extract .doc files")

	// Seed file layout
	f.Int("id-column", 0, "Zero-based column of the entity id")
	f.Int("url-column", 1, "Zero-based column of the seed URL")
	f.Bool("no-header", false, "The seed file has no header row")
	f.String("delimiter", "", "Seed field delimiter: one character or \"tab\" (default: detect comma or tab)")

	// Outputs
	f.StringP("output", "o", "", "Write JSON lines records to this file (- for stdout)")
	f.String("redis-addr", "", "Push records to this Redis server (redis:// URL or host:port)")
	f.String("redis-key", sink.DefaultRedisKey, "Redis list that receives the records")
	f.Bool("no-db", false, "Do not store pages in the local database")
	f.String("db-dir", config.XDGDataDir(), "Directory of the local database")
	f.String("files-dir", config.DefaultFilesDir, "Directory for extracted document texts")
	f.Bool("keep-files", false, "Also keep the downloaded documents in the files directory")
	f.String("images-dir", "", "Download page images into this directory (empty disables it)")
	f.Int("min-image-size", config.DefaultMinImageSize, "Smallest image width and height kept, in pixels")
	f.String("results-dir", "", "Write the text of every page to a file in this directory (empty disables it)")
	f.String("diagnostics-dir", config.DefaultDiagnosticsDir, "Directory for the diagnostics report (empty disables it)")
	f.String("diagnostics-format", config.DefaultDiagnosticsFormat, "Diagnostics formats, comma separated: text, markdown, json")

	// Configuration and logging
	f.StringP("config", "c", "",
		"Site configuration file (default: .domaincrawl in current or home directory)")
	f.Bool("json-logs", false, "Write logs as JSON")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(cmd.ErrOrStderr(), log.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.JSONLogs,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.ErrOrStderr(), logger)
}

// getVerboseFlag reads --verbose from the command or the root.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the crawl flags and the site
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	f := cmd.Flags()

	var err error
	if cfg.Mode, err = f.GetString("mode"); err != nil {
		return nil, err
	}
	if cfg.CrawlDepth, err = f.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = f.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = f.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = f.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = f.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Retries, err = f.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = f.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.Headless, err = f.GetBool("headless"); err != nil {
		return nil, err
	}
	if cfg.FoldUnicode, err = f.GetBool("fold-unicode"); err != nil {
		return nil, err
	}
	if cfg.AntiwordPath, err = f.GetString("antiword"); err != nil {
		return nil, err
	}
	if cfg.IDColumn, err = f.GetInt("id-column"); err != nil {
		return nil, err
	}
	if cfg.URLColumn, err = f.GetInt("url-column"); err != nil {
		return nil, err
	}
	if cfg.NoHeader, err = f.GetBool("no-header"); err != nil {
		return nil, err
	}
	if cfg.Delimiter, err = f.GetString("delimiter"); err != nil {
		return nil, err
	}
	if cfg.Output, err = f.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.RedisAddr, err = f.GetString("redis-addr"); err != nil {
		return nil, err
	}
	if cfg.RedisKey, err = f.GetString("redis-key"); err != nil {
		return nil, err
	}
	noDB, err := f.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.FilesDir, err = f.GetString("files-dir"); err != nil {
		return nil, err
	}
	if cfg.KeepFiles, err = f.GetBool("keep-files"); err != nil {
		return nil, err
	}
	if cfg.ImagesDir, err = f.GetString("images-dir"); err != nil {
		return nil, err
	}
	if cfg.MinImageSize, err = f.GetInt("min-image-size"); err != nil {
		return nil, err
	}
	if cfg.ResultsDir, err = f.GetString("results-dir"); err != nil {
		return nil, err
	}
	if cfg.DiagnosticsDir, err = f.GetString("diagnostics-dir"); err != nil {
		return nil, err
	}
	if cfg.DiagnosticsFormat, err = f.GetString("diagnostics-format"); err != nil {
		return nil, err
	}
	if cfg.JSONLogs, err = f.GetBool("json-logs"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = f.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicit --config must exist; the default lookup may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	if len(args) > 0 {
		cfg.SeedFile = args[0]
	}
	return cfg, nil
}

// runCrawl crawls every seed of cfg.SeedFile and writes the diagnostics
// report. Progress lines go to status.
func runCrawl(ctx context.Context, cfg *config.Config, status io.Writer, logger *slog.Logger) error {
	readerOpts := []seed.Option{
		seed.WithHeader(!cfg.NoHeader),
		seed.WithColumns(cfg.IDColumn, cfg.URLColumn),
	}
	delimiter, err := cfg.SeedDelimiter()
	if err != nil {
		return err
	}
	if delimiter != 0 {
		readerOpts = append(readerOpts, seed.WithDelimiter(delimiter))
	}
	seeds, err := seed.NewReader(readerOpts...).ReadFile(cfg.SeedFile)
	if err != nil {
		return err
	}
	for _, skipped := range seeds.Skipped {
		logger.Warn("skipping seed row", "error", skipped)
	}
	if len(seeds.Seeds) == 0 {
		return fmt.Errorf("%w in %s", errNoSeeds, cfg.SeedFile)
	}

	if cfg.ProxyAddress != "" {
		if err := fetch.CheckProxy(ctx, cfg.ProxyAddress); err != nil {
			return fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)", err, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	sinks, db, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("failed to close sinks", "error", err)
		}
	}()

	throttle := fetch.NewThrottle(cfg.Concurrency, cfg.CrawlDelay)
	sites, err := newSiteClients(cfg, seeds.Seeds, throttle, logger)
	if err != nil {
		return err
	}

	var images *media.ImageStore
	if cfg.ImagesDir != "" {
		if images, err = newImageStore(cfg, throttle, logger); err != nil {
			return err
		}
		sinks = append(sinks, images)
	}

	opts := []pipeline.BatchOption{
		pipeline.WithBatchLogger(logger),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithSink(sinks),
		pipeline.WithModeSelector(func(s model.Seed) string {
			return cfg.ModeFor(s.Domain)
		}),
	}
	if db != nil {
		opts = append(opts, pipeline.WithRunRecorder(db))
	}
	bp := pipeline.NewBatchProcessor(func(s model.Seed) *pipeline.Pipeline {
		return newSeedPipeline(cfg, sites[s.Domain], s, logger)
	}, opts...)

	logger.Info("starting crawl",
		"seeds", len(seeds.Seeds),
		"skipped", len(seeds.Skipped),
		"mode", cfg.Mode,
		"batch", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)
	fmt.Fprintf(status, "Crawling %d seeds (batch: %d)...\n", len(seeds.Seeds), cfg.BatchSize)

	startedAt := time.Now()
	runs := make([]*model.CrawlRun, len(seeds.Seeds))
	var mu sync.Mutex
	crawlErr := bp.ProcessBatchWithCallback(ctx, seeds.Seeds, func(run *model.CrawlRun, index int) {
		mu.Lock()
		defer mu.Unlock()
		runs[index] = run
		printRunSummary(status, run)
	})

	batch := report.NewBatch(startedAt, runs)
	fmt.Fprintf(status, "\nCrawled %d entities in %s: %d pages, %d failed entities\n",
		batch.Totals.Entities, batch.Elapsed.Round(time.Millisecond),
		batch.Totals.PagesEmitted, batch.Totals.FailedEntities)
	if images != nil {
		c := images.Counts()
		fmt.Fprintf(status, "Images: %d saved, %d too small, %d failed\n", c.Saved, c.TooSmall, c.Failed)
	}

	if cfg.DiagnosticsDir != "" {
		paths, err := report.WriteFiles(cfg.DiagnosticsDir, cfg.DiagnosticsFormats(), batch)
		if err != nil {
			logger.Error("failed to write diagnostics", "error", err)
		}
		for _, path := range paths {
			fmt.Fprintf(status, "Diagnostics written to %s\n", path)
		}
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl interrupted: %w", crawlErr)
	}
	return nil
}

// printRunSummary prints one line per finished seed.
func printRunSummary(w io.Writer, run *model.CrawlRun) {
	d := run.Diagnostics()
	if d.Error != "" {
		fmt.Fprintf(w, "  %s %s: failed after %d pages: %s\n", d.EntityID, d.SeedURL, d.PagesEmitted, d.Error)
		return
	}
	fmt.Fprintf(w, "  %s %s: %d pages in %s\n", d.EntityID, d.SeedURL, d.PagesEmitted, d.Elapsed.Round(time.Millisecond))
}

// openSinks opens every enabled record sink. The returned database is nil
// when --no-db is set. Closing the Multi closes the database too.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink.Multi, *database.CrawlDB, error) {
	var sinks sink.Multi
	fail := func(err error) (sink.Multi, *database.CrawlDB, error) {
		_ = sinks.Close() //nolint:errcheck // already failing
		return nil, nil, err
	}

	if cfg.Output != "" {
		jl, err := sink.OpenJSONLines(cfg.Output)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, jl)
	}

	if cfg.RedisAddr != "" {
		rs, err := sink.OpenRedis(ctx, redisURL(cfg.RedisAddr), cfg.RedisKey)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, rs)
		logger.Info("redis sink connected", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
	}

	if cfg.ResultsDir != "" {
		sinks = append(sinks, sink.NewTextDir(cfg.ResultsDir))
	}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fail(fmt.Errorf("failed to open database: %w", err))
		}
		sinks = append(sinks, db)
		logger.Info("database opened", "path", db.Path())
	}

	if len(sinks) == 0 {
		logger.Warn("no record sink enabled; only diagnostics are written")
	}
	return sinks, db, nil
}

// redisURL accepts host:port as shorthand for redis://host:port.
func redisURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "redis://" + addr
}

// siteClients are the HTTP clients of one registrable domain.
type siteClients struct {
	site      config.SiteConfig
	pages     *fetch.Client
	documents *document.Extractor
}

// newSiteClients builds the clients for every seed domain. All clients share
// throttle so the per-domain limits hold across seeds.
func newSiteClients(cfg *config.Config, seeds []model.Seed, throttle *fetch.Throttle, logger *slog.Logger) (map[string]*siteClients, error) {
	store := document.NewArtifactStore(cfg.FilesDir)
	antiword := document.NewAntiwordBackend(cfg.AntiwordPath)

	clients := make(map[string]*siteClients)
	for _, s := range seeds {
		if _, ok := clients[s.Domain]; ok {
			continue
		}
		site := cfg.SiteConfig(s.Domain)
		common := []fetch.Option{
			fetch.WithTimeout(cfg.Timeout),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithRetries(cfg.Retries, fetch.DefaultBackoff),
			fetch.WithThrottle(throttle),
			fetch.WithProxy(cfg.ProxyAddress),
			fetch.WithCookie(site.Cookie),
			fetch.WithHeaders(site.Headers),
			fetch.WithLogger(logger),
		}

		pages, err := fetch.NewClient(append(common, fetch.WithMaxBodySize(cfg.MaxBodySize))...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client for %s: %w", s.Domain, err)
		}
		docs, err := fetch.NewClient(append(common,
			fetch.WithMaxBodySize(cfg.MaxDocumentSize),
			fetch.WithRejectOversize(),
		)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create document client for %s: %w", s.Domain, err)
		}

		docOpts := []document.Option{
			document.WithBackend(".doc", antiword),
			document.WithArtifactStore(store),
			document.WithLogger(logger),
		}
		if cfg.KeepFiles {
			docOpts = append(docOpts, document.WithOriginals())
		}

		clients[s.Domain] = &siteClients{
			site:      site,
			pages:     pages,
			documents: document.NewExtractor(docs, docOpts...),
		}
	}
	return clients, nil
}

// newImageStore builds the image downloader. Images may live on other
// hosts, so the client carries no site cookies or headers.
func newImageStore(cfg *config.Config, throttle *fetch.Throttle, logger *slog.Logger) (*media.ImageStore, error) {
	client, err := fetch.NewClient(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithRetries(cfg.Retries, fetch.DefaultBackoff),
		fetch.WithThrottle(throttle),
		fetch.WithProxy(cfg.ProxyAddress),
		fetch.WithMaxBodySize(media.DefaultMaxImageSize),
		fetch.WithRejectOversize(),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create image client: %w", err)
	}
	return media.NewImageStore(client, cfg.ImagesDir,
		media.WithMinSize(cfg.MinImageSize, cfg.MinImageSize),
		media.WithLogger(logger),
	), nil
}

// newSeedPipeline builds the pipeline for one seed. The mode step picks the
// HTTP spider or the browser session from run.Mode.
func newSeedPipeline(cfg *config.Config, sc *siteClients, s model.Seed, logger *slog.Logger) *pipeline.Pipeline {
	seedLogger := logger.With("entity", s.EntityID, "domain", s.Domain)
	depth := cfg.DepthFor(s.Domain)

	normalizer := textnorm.New()
	if cfg.FoldUnicode {
		normalizer = textnorm.New(textnorm.WithCompatibilityFolding())
	}

	spider := crawler.NewSpider(sc.pages,
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithMaxDepth(depth),
		crawler.WithSpiderMaxPages(cfg.MaxPages),
		crawler.WithSitePatterns(sc.site.IgnorePatterns, sc.site.FollowPatterns),
		crawler.WithDocumentExtractor(sc.documents),
		crawler.WithMaxDocumentsInFlight(cfg.DocumentsInFlight),
		crawler.WithNormalizer(normalizer),
		crawler.WithLogger(seedLogger),
	)

	launcher := browser.NewChromeLauncher(browser.ChromeOptions{
		Headless:      cfg.Headless,
		UserAgent:     cfg.UserAgent,
		ActionTimeout: cfg.Timeout,
	})
	session := browser.NewSession(launcher,
		browser.WithMaxDepth(depth),
		browser.WithMaxPages(cfg.MaxPages),
		browser.WithSitePatterns(sc.site.IgnorePatterns, sc.site.FollowPatterns),
		browser.WithDocumentExtractor(sc.documents),
		browser.WithMaxDocumentsInFlight(cfg.DocumentsInFlight),
		browser.WithNormalizer(normalizer),
		browser.WithLogger(seedLogger),
	)

	p := pipeline.New(pipeline.WithLogger(seedLogger))
	p.AddStep(pipeline.NewModeStep(
		pipeline.NewCrawlStep("http-crawl", spider),
		pipeline.NewCrawlStep("browser-crawl", session),
	))
	seedLogger.Debug("seed pipeline ready", "steps", p.StepNames(), "depth", depth)
	return p
}
