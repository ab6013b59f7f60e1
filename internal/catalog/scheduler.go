package catalog

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tvmark/tv-mark/internal/cache"
	"github.com/tvmark/tv-mark/internal/config"
	"github.com/tvmark/tv-mark/internal/fetch"
	"github.com/tvmark/tv-mark/internal/guide"
	"github.com/tvmark/tv-mark/internal/metrics"
)

// Request priorities, lower is more urgent. The queue is drained
// strictly in priority order, FIFO within a priority.
const (
	PriorityIndex     = 0  // the channel index document
	PriorityDay       = 1  // the currently displayed day
	PriorityLookahead = 2  // background look-ahead days
	PriorityIcon      = 10 // channel icons
)

// inProcessFresh is how long an in-process fetch of a URL suppresses a
// refetch regardless of validators.
const inProcessFresh = time.Hour

// Request is one queued fetch. URLs lists mirror alternates for the
// same document; they are tried in order until one succeeds.
type Request struct {
	URLs      []string
	Priority  int
	ChannelID string
	Day       guide.Date // zero for the index and icons
	Icon      bool
}

func (r *Request) url() string { return r.URLs[0] }

// Scheduler drains a priority queue of guide fetches, one request in
// flight at a time, with a minimum gap between dispatches per the
// service's serial-access policy. Icon fetches skip the gap.
//
// Before touching the network it consults the disk cache: a document
// whose recorded last-modified equals the value the channel index
// declares, or that was fetched within the refresh-age window, or that
// this process fetched within the last hour, is re-parsed locally.
type Scheduler struct {
	catalog    *Catalog
	store      *cache.Store
	client     *http.Client
	limiter    *rate.Limiter
	refreshAge time.Duration
	userAgent  string
	metrics    *metrics.Collector

	mu       sync.Mutex
	queue    []*Request
	inflight *Request
	abort    context.CancelFunc
	fetched  map[string]time.Time
	wake     chan struct{}

	// OnBusyChanged reports Idle/Busy transitions; OnRequestDone fires
	// after each request with its terminal error, nil included.
	OnBusyChanged func(busy bool)
	OnRequestDone func(req *Request, err error)
}

func NewScheduler(cat *Catalog, store *cache.Store, cfg *config.Config, m *metrics.Collector) *Scheduler {
	gap := cfg.FetchGap
	if gap <= 0 {
		gap = time.Second
	}
	return &Scheduler{
		catalog:    cat,
		store:      store,
		limiter:    rate.NewLimiter(rate.Every(gap), 1),
		refreshAge: cfg.RefreshAge,
		userAgent:  cfg.UserAgent,
		metrics:    m,
		fetched:    make(map[string]time.Time),
		wake:       make(chan struct{}, 1),
	}
}

// SetClient substitutes the HTTP client, for tests.
func (s *Scheduler) SetClient(c *http.Client) { s.client = c }

// RequestIndex queues a fetch of the service's channel index document.
func (s *Scheduler) RequestIndex(url string) {
	s.enqueue(&Request{URLs: []string{url}, Priority: PriorityIndex})
}

// RequestDay queues a fetch of one channel's day document at the given
// priority. Days the channel declares no data for are skipped.
func (s *Scheduler) RequestDay(ch *guide.Channel, day guide.Date, priority int) {
	if !ch.HasDataFor(day) {
		return
	}
	urls := ch.DayURLs(day)
	if len(urls) == 0 {
		return
	}
	s.enqueue(&Request{URLs: urls, Priority: priority, ChannelID: ch.ID(), Day: day})
}

// RequestIcon queues an icon fetch. Icons are background noise: lowest
// priority, but exempt from the inter-request gap.
func (s *Scheduler) RequestIcon(url string) {
	if url == "" {
		return
	}
	s.enqueue(&Request{URLs: []string{url}, Priority: PriorityIcon, Icon: true})
}

func (s *Scheduler) enqueue(req *Request) {
	s.mu.Lock()
	for _, queued := range s.queue {
		if queued.url() == req.url() {
			// Already waiting; keep the more urgent priority.
			if req.Priority < queued.Priority {
				queued.Priority = req.Priority
			}
			s.mu.Unlock()
			return
		}
	}
	wasBusy := s.busyLocked()
	s.queue = append(s.queue, req)
	s.metrics.SetQueueDepth(len(s.queue))
	s.mu.Unlock()

	if !wasBusy {
		s.notifyBusy(true)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// TrimQueue drops queued requests whose priority falls in [min,max],
// e.g. stale day and look-ahead fetches after the displayed day moved.
func (s *Scheduler) TrimQueue(min, max int) {
	s.mu.Lock()
	kept := s.queue[:0]
	for _, req := range s.queue {
		if req.Priority < min || req.Priority > max {
			kept = append(kept, req)
		}
	}
	s.queue = kept
	s.metrics.SetQueueDepth(len(s.queue))
	s.mu.Unlock()
}

// Abort clears the queue and cancels any in-flight request. Safe to
// call at any time, including when idle.
func (s *Scheduler) Abort() {
	s.mu.Lock()
	s.queue = nil
	s.metrics.SetQueueDepth(0)
	cancel := s.abort
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Busy reports whether requests are queued or in flight.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyLocked()
}

func (s *Scheduler) busyLocked() bool {
	return len(s.queue) > 0 || s.inflight != nil
}

func (s *Scheduler) notifyBusy(busy bool) {
	if s.OnBusyChanged != nil {
		s.OnBusyChanged(busy)
	}
}

// Run drains the queue until ctx is cancelled. One request is in
// flight at a time; the limiter paces dispatches of non-icon requests.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		req := s.pop()
		if req == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		if !req.Icon {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}
		s.execute(ctx, req)
		if ctx.Err() != nil {
			return
		}
	}
}

// RunOnce drains the queue synchronously and returns when it is empty.
// Used by the one-shot CLI commands.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for {
		req := s.pop()
		if req == nil {
			return
		}
		if !req.Icon {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}
		s.execute(ctx, req)
		if ctx.Err() != nil {
			return
		}
	}
}

// pop removes the most urgent queued request, or nil.
func (s *Scheduler) pop() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := -1
	for i, req := range s.queue {
		if best < 0 || req.Priority < s.queue[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	req := s.queue[best]
	s.queue = append(s.queue[:best], s.queue[best+1:]...)
	s.inflight = req
	s.metrics.SetQueueDepth(len(s.queue))
	return req
}

func (s *Scheduler) execute(ctx context.Context, req *Request) {
	reqCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.abort = cancel
	s.mu.Unlock()

	err := s.fetchOne(reqCtx, req)
	cancel()

	s.mu.Lock()
	s.abort = nil
	s.inflight = nil
	// A completed day document also satisfies identical queued entries.
	if err == nil {
		kept := s.queue[:0]
		for _, queued := range s.queue {
			if queued.url() != req.url() {
				kept = append(kept, queued)
			}
		}
		s.queue = kept
		s.metrics.SetQueueDepth(len(s.queue))
	}
	idle := !s.busyLocked()
	s.mu.Unlock()

	if s.OnRequestDone != nil {
		s.OnRequestDone(req, err)
	}
	if idle {
		s.notifyBusy(false)
	}
}

// fetchOne resolves a single request: disk cache first, then the
// network, trying mirror URLs in order. A failure just leaves the slot
// unfetched; the next scheduling pass is the retry.
func (s *Scheduler) fetchOne(ctx context.Context, req *Request) error {
	entry, err := s.cachedEntry(req)
	if err != nil {
		log.Printf("scheduler: cache lookup %s: %v", req.url(), err)
	}
	if entry != nil && s.cacheFresh(req, entry) {
		s.metrics.RecordCacheHit()
		if !req.Icon {
			return s.parse(req, entry.Body)
		}
		return nil
	}

	var etag, lastModified string
	if entry != nil {
		etag, lastModified = entry.ETag, entry.LastModified
	}

	var lastErr error
	for _, url := range req.URLs {
		start := time.Now()
		result, err := fetch.ConditionalGet(ctx, s.client, url, etag, lastModified, s.userAgent)
		if errors.Is(err, fetch.ErrNotModified) {
			s.metrics.RecordNotModified()
			s.rememberFetch(req.url())
			if entry != nil {
				s.touch(entry)
				if !req.Icon {
					return s.parse(req, entry.Body)
				}
			}
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("scheduler: fetch %s: %v", url, err)
			lastErr = err
			continue
		}
		s.metrics.RecordFetchSuccess(len(result.Body), time.Since(start))
		s.rememberFetch(req.url())
		s.storeResult(req, result)
		if req.Icon {
			return nil
		}
		return s.parse(req, result.Body)
	}
	s.metrics.RecordFetchFailure()
	return lastErr
}

func (s *Scheduler) cachedEntry(req *Request) (*cache.Entry, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Get(req.url())
}

// cacheFresh implements the cache-first policy.
func (s *Scheduler) cacheFresh(req *Request, entry *cache.Entry) bool {
	// Last-modified agreement with the channel index declaration.
	if !req.Day.IsZero() {
		if ch := s.catalog.Channel(req.ChannelID); ch != nil {
			declared := ch.DayLastModified(req.Day)
			if !declared.IsZero() && entry.LastModified != "" {
				if cached, err := http.ParseTime(entry.LastModified); err == nil && cached.Equal(declared) {
					return true
				}
			}
		}
	}
	// Fetched recently enough.
	if s.refreshAge > 0 && time.Since(entry.FetchedAt) < s.refreshAge {
		return true
	}
	// Fetched by this process within the last hour.
	s.mu.Lock()
	at, ok := s.fetched[req.url()]
	s.mu.Unlock()
	return ok && time.Since(at) < inProcessFresh
}

func (s *Scheduler) rememberFetch(url string) {
	s.mu.Lock()
	s.fetched[url] = time.Now()
	s.mu.Unlock()
}

func (s *Scheduler) storeResult(req *Request, result *fetch.Result) {
	if s.store == nil {
		return
	}
	day := ""
	if !req.Day.IsZero() {
		day = req.Day.String()
	}
	err := s.store.Put(&cache.Entry{
		URL:          req.url(),
		ChannelID:    req.ChannelID,
		Day:          day,
		Body:         result.Body,
		ETag:         result.ETag,
		LastModified: result.LastModified,
		FetchedAt:    time.Now(),
	})
	if err != nil {
		log.Printf("scheduler: %v", err)
	}
}

// touch refreshes a cache entry's fetch time after a 304.
func (s *Scheduler) touch(entry *cache.Entry) {
	if s.store == nil {
		return
	}
	entry.FetchedAt = time.Now()
	if err := s.store.Put(entry); err != nil {
		log.Printf("scheduler: %v", err)
	}
}

func (s *Scheduler) parse(req *Request, body []byte) error {
	if err := s.catalog.Load(bytes.NewReader(body)); err != nil {
		log.Printf("scheduler: parse %s: %v", req.url(), err)
		return err
	}
	return nil
}

// ExpireCache deletes cached day documents older than today and
// reports how many were removed.
func (s *Scheduler) ExpireCache() int {
	if s.store == nil {
		return 0
	}
	n, err := s.store.ExpireBefore(guide.Today().String())
	if err != nil {
		log.Printf("scheduler: %v", err)
	}
	return n
}
