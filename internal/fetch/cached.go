package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long fetched pages are reused.
const DefaultCacheTTL = 24 * time.Hour

// DefaultFetchConcurrency bounds FetchMultiple.
const DefaultFetchConcurrency = 4

// CachedFetcher fetches pages, extracts their text and keeps results in memory for CacheTTL.
// Concurrent fetches of the same URL share one request.
type CachedFetcher struct {
	options   *Options
	cacheTTL  time.Duration
	skipCache bool
	render    RenderFunc
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	result    *Result
	fetchedAt time.Time
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL  time.Duration
	SkipCache bool
	Options   *Options
	// Render is used when plain HTTP yields too little text; nil disables the fallback
	Render RenderFunc
	Logger *zap.Logger
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{
		CacheTTL: DefaultCacheTTL,
		Options:  DefaultOptions(),
	}
}

// NewCachedFetcher creates a new cached fetcher.
func NewCachedFetcher(config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedFetcher{
		options:   config.Options,
		cacheTTL:  config.CacheTTL,
		skipCache: config.SkipCache,
		render:    config.Render,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]cacheEntry),
	}
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool
	FetchedAt time.Time
}

// Fetch retrieves a URL, using the cache if the entry is fresh.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	if !f.skipCache {
		if entry, ok := f.lookup(urlStr); ok {
			return &CachedResult{Result: entry.result, FromCache: true, FetchedAt: entry.fetchedAt}, nil
		}
	}

	v, err, _ := f.group.Do(urlStr, func() (any, error) {
		result, err := f.fetchFresh(ctx, urlStr)
		if err != nil {
			return nil, err
		}
		entry := cacheEntry{result: result, fetchedAt: f.now()}
		f.mu.Lock()
		f.entries[urlStr] = entry
		f.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	entry := v.(cacheEntry)
	return &CachedResult{Result: entry.result, FetchedAt: entry.fetchedAt}, nil
}

// fetchFresh downloads and extracts one page, rendering it in a browser when needed.
func (f *CachedFetcher) fetchFresh(ctx context.Context, urlStr string) (*Result, error) {
	platform := DetectPlatform(urlStr)

	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		return nil, err
	}

	text, err := f.extract(result, platform)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to extract text", Cause: err}
	}
	result.Text = text

	if f.render != nil && !IsPlainText(result.ContentType) && (ShouldUseBrowser(text) || RequiresBrowser(platform)) {
		f.logger.Debug("falling back to browser rendering",
			zap.String("url", urlStr),
			zap.String("platform", string(platform)),
			zap.Int("text_length", len(text)))

		html, renderErr := f.render(ctx, urlStr)
		if renderErr != nil {
			f.logger.Warn("browser rendering failed", zap.String("url", urlStr), zap.Error(renderErr))
		} else if rendered, extractErr := ExtractMainText(html, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...); extractErr == nil && len(rendered) > len(text) {
			result.HTML = html
			result.Text = rendered
			result.Rendered = true
		}
	}

	if result.Text == "" {
		return nil, &Error{URL: urlStr, Message: "page contains no readable text"}
	}
	return result, nil
}

// extract turns a fetched body into text
func (f *CachedFetcher) extract(result *Result, platform Platform) (string, error) {
	if IsPlainText(result.ContentType) {
		return cleanWhitespace(result.HTML), nil
	}
	return ExtractMainText(result.HTML, PlatformContentSelectors(platform), PlatformNoiseSelectors(platform)...)
}

// lookup returns a cache entry that has not expired
func (f *CachedFetcher) lookup(urlStr string) (cacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[urlStr]
	if !ok {
		return cacheEntry{}, false
	}
	if f.now().Sub(entry.fetchedAt) >= f.cacheTTL {
		delete(f.entries, urlStr)
		return cacheEntry{}, false
	}
	return entry, true
}

// FetchMultiple fetches multiple URLs concurrently with caching.
// Returns results in the same order as input URLs. Failed fetches are nil in the result slice.
func (f *CachedFetcher) FetchMultiple(ctx context.Context, urls []string) ([]*CachedResult, []error) {
	results := make([]*CachedResult, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(DefaultFetchConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			result, err := f.Fetch(ctx, u)
			if err != nil {
				errs[i] = fmt.Errorf("fetch %s: %w", u, err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// InvalidateCache drops a cached page, forcing a re-fetch on next request.
func (f *CachedFetcher) InvalidateCache(urlStr string) {
	f.mu.Lock()
	delete(f.entries, urlStr)
	f.mu.Unlock()
}
