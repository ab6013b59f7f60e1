// Command tv-mark: fetch TV guide data and match it against bookmarks.
//
//	refresh  Fetch the channel index and guide days, report bookmark matches
//	matches  Like refresh but cache-first; print upcoming bookmarked shows
//	import   Merge a bookmark file into the configured bookmark set
//	export   Write the configured bookmark set as XML
//	serve    Keep the guide fresh and expose /metrics and /healthz
//	version  Print the build version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tvmark/tv-mark/internal/cache"
	"github.com/tvmark/tv-mark/internal/catalog"
	"github.com/tvmark/tv-mark/internal/config"
	"github.com/tvmark/tv-mark/internal/guide"
	"github.com/tvmark/tv-mark/internal/health"
	"github.com/tvmark/tv-mark/internal/metrics"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// guideSet wires together everything a subcommand needs.
type guideSet struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	scheduler *catalog.Scheduler
	store     *cache.Store
	metrics   *metrics.Collector
	registry  *prometheus.Registry
}

func newGuideSet(cfg *config.Config) (*guideSet, error) {
	registry := prometheus.NewRegistry()
	m := metrics.NewCollector(registry)
	cat := catalog.New(cfg, m)
	store, err := cache.Open(cfg.CacheDB)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	sched := catalog.NewScheduler(cat, store, cfg, m)
	cat.LoadBookmarks(cfg.BookmarksFile)
	cat.PruneTicks()
	return &guideSet{
		cfg:       cfg,
		catalog:   cat,
		scheduler: sched,
		store:     store,
		metrics:   m,
		registry:  registry,
	}, nil
}

func (g *guideSet) Close() {
	if g.store != nil {
		g.store.Close()
	}
}

// refresh fetches the channel index, then the guide days from today
// through the look-ahead horizon. Cached documents within the refresh
// window are parsed without touching the network.
func (g *guideSet) refresh(ctx context.Context) {
	if n := g.scheduler.ExpireCache(); n > 0 {
		log.Printf("Expired %d stale cached day(s)", n)
	}
	g.scheduler.RequestIndex(g.cfg.ServiceURL)
	g.scheduler.RunOnce(ctx)

	today := guide.Today()
	for _, ch := range g.catalog.ActiveChannels() {
		for i := 0; i <= g.cfg.LookaheadDays; i++ {
			priority := catalog.PriorityLookahead
			if i == 0 {
				priority = catalog.PriorityDay
			}
			g.scheduler.RequestDay(ch, today.AddDays(i), priority)
		}
	}
	g.scheduler.RunOnce(ctx)
}

// printMatches lists bookmarked programmes from today through the
// look-ahead horizon, one line each.
func (g *guideSet) printMatches() int {
	today := guide.Today()
	programmes := g.catalog.BookmarkedProgrammes(today, today.AddDays(g.cfg.LookaheadDays))
	for _, p := range programmes {
		match, bookmark := p.BookmarkMatch()
		name := p.Channel().Name()
		if name == "" {
			name = p.Channel().ID()
		}
		title := p.Title()
		if bookmark != nil && title != bookmark.Title() {
			title = title + " (" + bookmark.Title() + ")"
		}
		fmt.Printf("%s %s  %-12s  %-10s  %s\n",
			p.Start.Date, p.Start.Clock, name, match, title)
	}
	return len(programmes)
}

func main() {
	_ = config.LoadEnvFile(".env")
	log.SetFlags(log.LstdFlags)
	log.SetPrefix("[tv-mark] ")

	refreshCmd := flag.NewFlagSet("refresh", flag.ExitOnError)
	refreshDays := refreshCmd.Int("days", 0, "Look-ahead days (default: TVMARK_LOOKAHEAD_DAYS)")

	matchesCmd := flag.NewFlagSet("matches", flag.ExitOnError)
	matchesDays := matchesCmd.Int("days", 0, "Look-ahead days (default: TVMARK_LOOKAHEAD_DAYS)")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "Bookmark XML file to merge (required)")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportOut := exportCmd.String("out", "", "Destination file (default: stdout)")

	serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
	serveAddr := serveCmd.String("addr", "", "Listen address (default: TVMARK_LISTEN)")
	serveSkipHealth := serveCmd.Bool("skip-health", false, "Skip the service reachability check at startup")

	if len(os.Args) >= 2 && os.Args[1] == "version" {
		fmt.Printf("tv-mark %s\n", version)
		return
	}

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <refresh|matches|import|export|serve|version> [flags]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  refresh  Fetch channel index and guide days, report bookmark matches\n")
		fmt.Fprintf(os.Stderr, "  matches  Print upcoming bookmarked shows (cache-first)\n")
		fmt.Fprintf(os.Stderr, "  import   Merge a bookmark file into the configured set\n")
		fmt.Fprintf(os.Stderr, "  export   Write the configured bookmark set as XML\n")
		fmt.Fprintf(os.Stderr, "  serve    Keep the guide fresh, expose /metrics and /healthz\n")
		fmt.Fprintf(os.Stderr, "  version  Print the build version\n")
		os.Exit(1)
	}

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Printf("Config: %v", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "refresh", "matches":
		cmd, days := refreshCmd, refreshDays
		if os.Args[1] == "matches" {
			cmd, days = matchesCmd, matchesDays
		}
		_ = cmd.Parse(os.Args[2:])
		if *days > 0 {
			cfg.LookaheadDays = *days
		}
		g, err := newGuideSet(cfg)
		if err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
		defer g.Close()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g.refresh(ctx)
		if ctx.Err() != nil {
			os.Exit(1)
		}
		n := g.printMatches()
		bookmarks, _ := g.catalog.Counts()
		log.Printf("%d channel(s), %d bookmarked programme(s), %d bookmark(s)",
			len(g.catalog.ActiveChannels()), n, bookmarks)
		if err := g.catalog.SaveBookmarks(cfg.BookmarksFile); err != nil {
			log.Printf("Save bookmarks: %v", err)
		}

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			log.Print("Set -file=/path/to/bookmarks.xml")
			os.Exit(1)
		}
		cat := catalog.New(cfg, nil)
		cat.LoadBookmarks(cfg.BookmarksFile)
		before, _ := cat.Counts()
		result := cat.ImportBookmarks(*importFile)
		switch result {
		case guide.ImportOK:
			after, _ := cat.Counts()
			added := after - before
			if err := cat.SaveBookmarks(cfg.BookmarksFile); err != nil {
				log.Printf("Save bookmarks: %v", err)
				os.Exit(1)
			}
			log.Printf("Imported %d new bookmark(s) from %s", added, *importFile)
		case guide.ImportNothingNew:
			log.Printf("Nothing new in %s", *importFile)
		default:
			log.Printf("Import %s: %s", *importFile, result)
			os.Exit(1)
		}

	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		cat := catalog.New(cfg, nil)
		cat.LoadBookmarks(cfg.BookmarksFile)
		if *exportOut != "" {
			if err := cat.SaveBookmarks(*exportOut); err != nil {
				log.Printf("Export: %v", err)
				os.Exit(1)
			}
			bookmarks, _ := cat.Counts()
			log.Printf("Exported %d bookmark(s) to %s", bookmarks, *exportOut)
		} else if err := cat.ExportBookmarks(os.Stdout); err != nil {
			log.Printf("Export: %v", err)
			os.Exit(1)
		}

	case "serve":
		_ = serveCmd.Parse(os.Args[2:])
		addr := cfg.Listen
		if *serveAddr != "" {
			addr = *serveAddr
		}
		g, err := newGuideSet(cfg)
		if err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
		defer g.Close()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !*serveSkipHealth {
			log.Print("Checking guide service ...")
			checkCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
			err := health.CheckService(checkCtx, cfg.ServiceURL)
			cancel()
			if err != nil {
				log.Printf("Service check failed: %v", err)
				os.Exit(1)
			}
			log.Print("Service OK")
		}

		save := func() {
			if err := g.catalog.SaveBookmarks(cfg.BookmarksFile); err != nil {
				log.Printf("Save bookmarks: %v", err)
			}
		}

		g.refresh(ctx)
		log.Printf("Guide loaded: %d channel(s)", len(g.catalog.ActiveChannels()))

		// SIGHUP re-reads the bookmark file; the ticker keeps the
		// guide inside the refresh window.
		sigHUP := make(chan os.Signal, 1)
		signal.Notify(sigHUP, syscall.SIGHUP)
		defer signal.Stop(sigHUP)
		ticker := time.NewTicker(cfg.RefreshAge)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					log.Print("Refreshing guide (scheduled) ...")
					g.scheduler.TrimQueue(catalog.PriorityDay, catalog.PriorityLookahead)
					g.catalog.PruneTicks()
					save()
					g.refresh(ctx)
				case <-sigHUP:
					log.Print("SIGHUP received, reloading bookmarks")
					g.catalog.LoadBookmarks(cfg.BookmarksFile)
					g.catalog.RefreshMatches()
				}
			}
		}()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(g.registry))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		mux.HandleFunc("/bookmarks.xml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/xml; charset=utf-8")
			if err := g.catalog.ExportBookmarks(w); err != nil {
				log.Printf("Export bookmarks: %v", err)
			}
		})
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Serve failed: %v", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(1)
	}
}
