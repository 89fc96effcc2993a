package config

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adrg/xdg"
	"github.com/nao1215/domaincrawl/internal/model"
	"github.com/nao1215/domaincrawl/internal/report"
)

// Default configuration values. The crawl limits follow the settings the
// crawler has always shipped with (depth 10, five retries, Chrome 61 UA).
const (
	// AppName is used for XDG directory paths.
	AppName = "domaincrawl"

	DefaultMode        = model.ModeHTTP
	DefaultTimeout     = 30 * time.Second
	DefaultCrawlDepth  = 10
	DefaultRetries     = 5
	DefaultCrawlDelay  = 5 * time.Second
	DefaultConcurrency = 8
	DefaultBatchSize   = 4

	// DefaultMaxBodySize caps an HTML page body.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultMaxDocumentSize caps a linked document body. PDFs are
	// routinely larger than pages.
	DefaultMaxDocumentSize = 50 * 1024 * 1024

	// DefaultDocumentsInFlight bounds concurrent extractions per page.
	DefaultDocumentsInFlight = 4

	DefaultFilesDir          = "files"
	DefaultDiagnosticsDir    = "diagnostics"
	DefaultDiagnosticsFormat = FormatText
	DefaultAntiwordPath      = "antiword"

	// DefaultMinImageSize is the smallest image width and height kept.
	DefaultMinImageSize = 110

	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12_6) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/61.0.3163.100 Safari/537.36"
)

// Diagnostics report formats.
const (
	FormatText     = report.FormatText
	FormatMarkdown = report.FormatMarkdown
	FormatJSON     = report.FormatJSON
)

// Config holds every option of a crawl invocation.
// It is filled from CLI flags and passed down explicitly; there is no
// global configuration state.
type Config struct {
	// SeedFile is the CSV/TSV file listing entity ids and seed URLs.
	SeedFile string

	// IDColumn and URLColumn select the seed columns (zero-based).
	IDColumn  int
	URLColumn int

	// NoHeader disables skipping of the first seed row.
	NoHeader bool

	// Delimiter forces the seed field delimiter: one character or "tab".
	// Empty detects comma or tab from the first line.
	Delimiter string

	// Mode is model.ModeHTTP or model.ModeBrowser.
	Mode string

	// Headless runs the browser without a window in browser mode.
	Headless bool

	// Timeout applies to each HTTP request.
	Timeout time.Duration

	// CrawlDepth is the link-hop limit from the seed page. 0 fetches the seed only.
	CrawlDepth int

	// MaxPages stops a seed after that many accepted pages. 0 means unlimited.
	MaxPages int

	// Concurrency is the number of requests in flight per registrable domain.
	Concurrency int

	// BatchSize is the number of seeds crawled at the same time.
	BatchSize int

	// CrawlDelay is the politeness delay between requests to one domain.
	CrawlDelay time.Duration

	// Retries is the number of retries for transient failures.
	Retries int

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize truncates page bodies. 0 uses the default.
	MaxBodySize int64

	// MaxDocumentSize truncates document bodies. 0 uses the default.
	MaxDocumentSize int64

	// DocumentsInFlight bounds concurrent document extractions per page.
	DocumentsInFlight int

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string

	// FoldUnicode applies compatibility folding to page text.
	FoldUnicode bool

	// AntiwordPath is the command used for legacy .doc files.
	AntiwordPath string

	// Output is the JSON lines destination. "-" is stdout, "" disables it.
	Output string

	// RedisAddr enables the Redis list sink (redis:// URL or host:port).
	RedisAddr string

	// RedisKey is the Redis list records are pushed to.
	RedisKey string

	// SaveToDB stores pages and diagnostics in the SQLite database.
	SaveToDB bool

	// DBDir is the directory of the SQLite database.
	// Defaults to XDGDataDir().
	DBDir string

	// FilesDir is the root of the extracted-document artifacts.
	FilesDir string

	// KeepFiles stores the downloaded documents next to their texts.
	KeepFiles bool

	// ImagesDir receives page images of at least MinImageSize pixels in
	// both dimensions. "" disables image downloads.
	ImagesDir    string
	MinImageSize int

	// ResultsDir receives one text file per page. "" disables it.
	ResultsDir string

	// DiagnosticsDir receives the diagnostics report. "" disables it.
	DiagnosticsDir string

	// DiagnosticsFormat is a comma separated list of FormatText,
	// FormatMarkdown and FormatJSON. One report file is written per format.
	DiagnosticsFormat string

	// ConfigFilePath is an explicit site config file. When empty the
	// .domaincrawl file in the cwd or home directory is used.
	ConfigFilePath string

	// SiteConfigs is the loaded site configuration, if any.
	SiteConfigs *File

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON.
	JSONLogs bool
}

// NewConfig returns a Config populated with the defaults.
func NewConfig() *Config {
	return &Config{
		URLColumn:         1,
		Mode:              DefaultMode,
		Headless:          true,
		Timeout:           DefaultTimeout,
		CrawlDepth:        DefaultCrawlDepth,
		Concurrency:       DefaultConcurrency,
		BatchSize:         DefaultBatchSize,
		CrawlDelay:        DefaultCrawlDelay,
		Retries:           DefaultRetries,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		MaxDocumentSize:   DefaultMaxDocumentSize,
		DocumentsInFlight: DefaultDocumentsInFlight,
		AntiwordPath:      DefaultAntiwordPath,
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		FilesDir:          DefaultFilesDir,
		MinImageSize:      DefaultMinImageSize,
		DiagnosticsDir:    DefaultDiagnosticsDir,
		DiagnosticsFormat: DefaultDiagnosticsFormat,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/domaincrawl on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/domaincrawl on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.SeedFile == "" {
		return ErrNoSeedFile
	}
	if c.Mode != model.ModeHTTP && c.Mode != model.ModeBrowser {
		return ErrInvalidMode
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.MaxBodySize < 0 || c.MaxDocumentSize < 0 {
		return ErrInvalidMaxBodySize
	}
	formats := c.DiagnosticsFormats()
	if len(formats) == 0 {
		return ErrInvalidReportFormat
	}
	for _, f := range formats {
		switch f {
		case FormatText, FormatMarkdown, FormatJSON:
		default:
			return ErrInvalidReportFormat
		}
	}
	if c.IDColumn == c.URLColumn {
		return ErrSameSeedColumn
	}
	if _, err := c.SeedDelimiter(); err != nil {
		return err
	}
	if c.MinImageSize < 0 {
		return ErrInvalidImageSize
	}
	return nil
}

// DiagnosticsFormats splits DiagnosticsFormat into its formats, in order
// and without duplicates.
func (c *Config) DiagnosticsFormats() []string {
	var formats []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(c.DiagnosticsFormat, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats
}

// SeedDelimiter returns the forced seed delimiter, or 0 to detect it.
func (c *Config) SeedDelimiter() (rune, error) {
	switch c.Delimiter {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(c.Delimiter)
	if size != len(c.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, ErrInvalidDelimiter
	}
	return r, nil
}

// SiteConfig returns the merged site configuration for domain.
// Without a loaded file it returns an empty SiteConfig.
func (c *Config) SiteConfig(domain string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(domain)
}

// DepthFor returns the depth limit for domain, honouring a site override.
func (c *Config) DepthFor(domain string) int {
	if d := c.SiteConfig(domain).Depth; d > 0 {
		return d
	}
	return c.CrawlDepth
}

// ModeFor returns the crawl mode for domain, honouring a site override.
func (c *Config) ModeFor(domain string) string {
	switch m := c.SiteConfig(domain).Mode; m {
	case model.ModeHTTP, model.ModeBrowser:
		return m
	default:
		return c.Mode
	}
}
