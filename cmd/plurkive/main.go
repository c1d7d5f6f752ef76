// CLAUDE:SUMMARY Entry point for the plurkive CLI: init/import/links/search/reindex/serve subcommands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/plurkive/archive"
	"github.com/hazyhaar/plurkive/internal/enrich"
	"github.com/hazyhaar/plurkive/ogfetch"
	"github.com/hazyhaar/plurkive/searchapi"
	_ "modernc.org/sqlite"
)

const usage = `usage: plurkive <command> [flags]

commands:
  init      create the config file and an empty archive database
  import    merge export months into the archive
  links     extract | fetch | status | reset
  search    full-text search over the archive
  reindex   rebuild the search indexes from the base tables
  serve     run the JSON search API

run 'plurkive <command> -h' for command flags.`

func main() {
	var lvl slog.Level
	switch env("LOG_LEVEL", "info") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(ctx, os.Args[2:])
	case "import":
		err = cmdImport(ctx, os.Args[2:])
	case "links":
		err = cmdLinks(ctx, os.Args[2:])
	case "search":
		err = cmdSearch(ctx, os.Args[2:])
	case "reindex":
		err = cmdReindex(ctx, os.Args[2:])
	case "serve":
		err = cmdServe(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// configFlag registers the shared -config flag on a flag set.
func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", archive.DefaultConfigFile, "config file path")
}

// openService opens the archive from config, wiring the OG fetcher when
// withFetcher is set. The returned cleanup closes the browser (if any) and
// the database.
func openService(cfg *archive.Config, withFetcher bool) (*archive.Service, func(), error) {
	var opts []archive.Option
	cleanup := func() {}

	if withFetcher {
		var fetcher archive.Fetcher
		if cfg.OG.Browser {
			bf, err := ogfetch.NewBrowser(ogfetch.BrowserConfig{})
			if err != nil {
				return nil, nil, err
			}
			fetcher = bf
			cleanup = func() { bf.Close() }
		} else {
			fetcher = ogfetch.NewHTTP(ogfetch.Config{})
		}
		opts = append(opts, archive.WithFetcher(fetcher, enrich.Config{
			Timeout:  cfg.EnrichTimeout(),
			Attempts: cfg.OG.Attempts,
			Backoff:  cfg.EnrichBackoff(),
			Limit:    cfg.OG.Limit,
		}))
	}

	svc, err := archive.Open(cfg.Database, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closeAll := func() {
		svc.Close()
		cleanup()
	}
	return svc, closeAll, nil
}

func cmdInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := configFlag(fs)
	backup := fs.String("backup", "", "export directory (stored in the config)")
	database := fs.String("db", "", "database path (stored in the config)")
	fs.Parse(args)

	cfg := archive.DefaultConfig()
	if *backup != "" {
		cfg.BackupPath = *backup
	}
	if *database != "" {
		cfg.Database = *database
	}
	if err := cfg.Save(*configPath); err != nil {
		return err
	}

	svc, closeAll, err := openService(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	slog.Info("archive initialized",
		"config", *configPath, "database", cfg.Database,
		"plurks", stats.Plurks, "responses", stats.Responses)
	return nil
}

func cmdImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := configFlag(fs)
	backup := fs.String("backup", "", "export directory (default: from config)")
	start := fs.String("start", "", "first month to import, YYYY-MM (default: automatic)")
	end := fs.String("end", "", "last month to import, YYYY-MM")
	fs.Parse(args)

	cfg, err := archive.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	root := cfg.BackupPath
	if *backup != "" {
		root = *backup
	}

	svc, closeAll, err := openService(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := svc.Import(ctx, root, *start, *end)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d months: %d new plurks, %d new responses\n",
		report.Months, report.AddedPlurks, report.AddedResponses)
	return nil
}

func cmdLinks(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: plurkive links <extract|fetch|status|reset> [flags]")
	}
	sub, rest := args[0], args[1:]

	fs := flag.NewFlagSet("links "+sub, flag.ExitOnError)
	configPath := configFlag(fs)

	switch sub {
	case "extract":
		month := fs.String("month", "", "restrict to one month, YYYYMM (default: whole archive)")
		eager := fs.Bool("eager", false, "fetch newly discovered links immediately")
		fs.Parse(rest)

		cfg, err := archive.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		svc, closeAll, err := openService(cfg, *eager)
		if err != nil {
			return err
		}
		defer closeAll()

		report, err := svc.ExtractLinks(ctx, *month, *eager)
		if err != nil {
			return err
		}
		fmt.Printf("%d urls: %d new, %d merged\n", report.URLs, report.Created, report.Merged)
		if report.Enrich != nil {
			printEnrichReport(*report.Enrich)
		}
		return nil

	case "fetch":
		limit := fs.Int("limit", 0, "max pending links to process, 0 = all")
		fs.Parse(rest)

		cfg, err := archive.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		svc, closeAll, err := openService(cfg, true)
		if err != nil {
			return err
		}
		defer closeAll()

		report, err := svc.FetchPending(ctx, *limit)
		printEnrichReport(report)
		return err

	case "status":
		fs.Parse(rest)

		cfg, err := archive.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		svc, closeAll, err := openService(cfg, false)
		if err != nil {
			return err
		}
		defer closeAll()

		counts, err := svc.LinkStatusCounts(ctx)
		if err != nil {
			return err
		}
		for _, st := range []archive.LinkStatus{
			archive.StatusPending, archive.StatusImage, archive.StatusSuccess,
			archive.StatusNoOG, archive.StatusFailed, archive.StatusTimeout,
		} {
			fmt.Printf("%-8s %d\n", st, counts[st])
		}
		return nil

	case "reset":
		statusArg := fs.String("status", "", "terminal status to return to pending (required)")
		fs.Parse(rest)

		status, err := archive.ParseLinkStatus(*statusArg)
		if err != nil {
			return err
		}
		cfg, err := archive.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		svc, closeAll, err := openService(cfg, false)
		if err != nil {
			return err
		}
		defer closeAll()

		n, err := svc.ResetLinks(ctx, status)
		if err != nil {
			return err
		}
		fmt.Printf("%d links reset to pending\n", n)
		return nil
	}
	return fmt.Errorf("unknown links subcommand %q", sub)
}

func printEnrichReport(report archive.EnrichReport) {
	fmt.Printf("processed %d links\n", report.Processed)
	for status, n := range report.ByStatus {
		fmt.Printf("  %-8s %d\n", status, n)
	}
}

func cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := configFlag(fs)
	target := fs.String("type", "plurks", "corpus: plurks, responses, links or all")
	modeArg := fs.String("mode", "", "auto, fts or like (default: auto)")
	page := fs.Int("page", 1, "result page")
	perPage := fs.Int("per-page", 0, "results per page")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: plurkive search [flags] <query>")
	}
	query := fs.Arg(0)

	mode, err := archive.ParseSearchMode(*modeArg)
	if err != nil {
		return err
	}
	opts := archive.SearchOptions{Mode: mode, Page: *page, PerPage: *perPage}

	cfg, err := archive.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	svc, closeAll, err := openService(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	switch *target {
	case "plurks":
		return searchPlurks(ctx, svc, query, opts)
	case "responses":
		return searchResponses(ctx, svc, query, opts)
	case "links":
		return searchLinks(ctx, svc, query, opts)
	case "all":
		if err := searchPlurks(ctx, svc, query, opts); err != nil {
			return err
		}
		if err := searchResponses(ctx, svc, query, opts); err != nil {
			return err
		}
		return searchLinks(ctx, svc, query, opts)
	}
	return fmt.Errorf("unknown search type %q", *target)
}

func searchPlurks(ctx context.Context, svc *archive.Service, query string, opts archive.SearchOptions) error {
	results, total, usedMode, err := svc.SearchPlurks(ctx, query, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%d of %d plurks (%s mode)\n", len(results), total, usedMode)
	for _, p := range results {
		fmt.Printf("  [%s] %s\n", p.BaseID, deref(p.Content))
	}
	return nil
}

func searchResponses(ctx context.Context, svc *archive.Service, query string, opts archive.SearchOptions) error {
	results, total, usedMode, err := svc.SearchResponses(ctx, query, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%d of %d responses (%s mode)\n", len(results), total, usedMode)
	for _, r := range results {
		fmt.Printf("  [%s] %s: %s\n", r.BaseID, deref(r.UserNick), deref(r.Content))
	}
	return nil
}

func searchLinks(ctx context.Context, svc *archive.Service, query string, opts archive.SearchOptions) error {
	results, total, usedMode, err := svc.SearchLinks(ctx, query, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%d of %d links (%s mode)\n", len(results), total, usedMode)
	for _, l := range results {
		fmt.Printf("  [%s] %s %s\n", l.Status, l.URL, deref(l.OGTitle))
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cmdReindex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := configFlag(fs)
	fs.Parse(args)

	cfg, err := archive.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	svc, closeAll, err := openService(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	counts, err := svc.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reindexed %d plurks, %d responses, %d links\n",
		counts.Plurks, counts.Responses, counts.Links)
	return nil
}

func cmdServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := configFlag(fs)
	listen := fs.String("listen", "", "listen address (default: from config)")
	fs.Parse(args)

	cfg, err := archive.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	addr := cfg.Listen
	if *listen != "" {
		addr = *listen
	}

	svc, closeAll, err := openService(cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	srv := &http.Server{
		Addr:              addr,
		Handler:           searchapi.New(svc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("search api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
