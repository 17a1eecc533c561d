package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/trendfit/internal/config"
	"github.com/elonfeng/trendfit/internal/logging"
	"github.com/elonfeng/trendfit/internal/pipeline"
	"github.com/elonfeng/trendfit/internal/scheduler"
	"github.com/elonfeng/trendfit/internal/store"
	"github.com/elonfeng/trendfit/pkg/alert"
	"github.com/elonfeng/trendfit/pkg/classify"
	"github.com/elonfeng/trendfit/pkg/server"
	"github.com/elonfeng/trendfit/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app holds the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.SQLiteStore
	collector *pipeline.Collector
	pipeline  *pipeline.Pipeline
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	classifier := buildClassifier(cfg, logger)
	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     s,
		collector: pipeline.NewCollector(s, buildSources(cfg, logger), classifier, logger),
		pipeline:  buildPipeline(cfg, s, logger),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

func buildSources(cfg *config.Config, logger *slog.Logger) []source.Source {
	var sources []source.Source
	if cfg.Sources.RSS.Enabled && len(cfg.Sources.RSS.Feeds) > 0 {
		feeds := make([]source.RSSFeed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.RSSFeed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, source.NewRSS(feeds, cfg.Sources.RSS.ParseWindow(), logger))
	}
	return sources
}

func buildClassifier(cfg *config.Config, logger *slog.Logger) *classify.Classifier {
	entities := make([]classify.Entity, len(cfg.Classify.Entities))
	for i, e := range cfg.Classify.Entities {
		entities[i] = classify.Entity{Name: e.Name, Type: e.Type}
	}
	keyword := classify.NewKeyword(cfg.Classify.Domains, entities)

	var llm *classify.LLM
	if lc := cfg.Classify.LLM; lc.Enabled && lc.APIKey != "" {
		llm = classify.NewLLM(lc.Provider, lc.Model, lc.APIKey, lc.BaseURL)
	}
	return classify.New(keyword, llm, logger)
}

func buildPipeline(cfg *config.Config, s store.Store, logger *slog.Logger) *pipeline.Pipeline {
	return pipeline.New(s, pipeline.Options{
		MaxCount:     cfg.Selection.MaxCount,
		DecisionTopN: cfg.Pipeline.DecisionTopN,
		Workers:      cfg.Pipeline.Workers,
		SignalWindow: cfg.Pipeline.ParseSignalWindow(),
		SignalLimit:  cfg.Pipeline.SignalLimit,
		Selection:    cfg.Selection.DiversityConfig(),
		Decision:     cfg.Decision.Options(),
	}, logger)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier
	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}
	return alert.NewManager(notifiers)
}

func runCollect(ctx context.Context, file string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if file != "" {
		sigs, err := source.LoadSignals(file)
		if err != nil {
			return err
		}
		sigs, err = a.collector.Import(ctx, sigs)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d signals from %s\n", len(sigs), file)
		return nil
	}

	sigs, err := a.collector.Collect(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Collected %d signals\n", len(sigs))
	return nil
}

func runScore(ctx context.Context, orgID string, jsonOutput bool, limit int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	scored, err := a.pipeline.Score(ctx, orgID)
	if err != nil {
		return err
	}
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	if jsonOutput {
		return printJSON(scored)
	}

	if len(scored) == 0 {
		fmt.Println("No relevant trends. Run 'trendfit collect' first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSCORE\tPRIORITY\tTIER\tCOMPOSITE\tDOMAINS\tTITLE")
	for i, s := range scored {
		tier, composite := "-", "-"
		if s.Decision != nil {
			tier = string(s.Decision.Tier)
			composite = fmt.Sprintf("%d", s.Decision.Composite)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			s.Score(),
			s.Relevance.Priority,
			tier,
			composite,
			strings.Join(s.Trend.Domains, ","),
			truncateStr(s.Trend.Title, 60),
		)
	}
	return w.Flush()
}

func runRecommend(ctx context.Context, orgIDs []string, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reports, err := a.pipeline.Run(ctx, orgIDs)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(reports)
	}

	if len(reports) == 0 {
		fmt.Println("No organizations. Run 'trendfit org import FILE' first.")
		return nil
	}

	var failed []error
	for _, r := range reports {
		if r.Error != "" {
			fmt.Printf("%s: error: %s\n\n", r.OrgID, r.Error)
			failed = append(failed, fmt.Errorf("%s: %s", r.OrgID, r.Error))
			continue
		}
		fmt.Printf("%s (%s): %d selected of %d scored, diversity %d/100\n",
			r.OrgName, r.OrgID, len(r.Recommendations), r.Scored, r.Metrics.DiversityScore)
		if len(r.Metrics.DomainsMissing) > 0 {
			fmt.Printf("  missing domains: %s\n", strings.Join(r.Metrics.DomainsMissing, ", "))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  #\tSCORE\tTIER\tBY\tFLAGS\tTITLE")
		for i, rec := range r.Recommendations {
			tier, flags := orDash(rec.Tier), orDash(rec.Flags)
			fmt.Fprintf(w, "  %d\t%d\t%s\t%s\t%s\t%s\n",
				i+1,
				rec.Score,
				tier,
				rec.SelectedBy,
				flags,
				truncateStr(rec.Title, 60),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println()
	}
	return errors.Join(failed...)
}

func runOrgImport(ctx context.Context, path string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	bundles, err := source.LoadOrgBundles(path)
	if err != nil {
		return err
	}
	for _, b := range bundles {
		if err := a.store.UpsertOrganization(ctx, &b.Profile); err != nil {
			return err
		}
		if err := a.store.ReplaceWatchlist(ctx, b.Profile.ID, b.Watchlist); err != nil {
			return err
		}
		if err := a.store.ReplaceAffinities(ctx, b.Profile.ID, b.Affinities); err != nil {
			return err
		}
		a.logger.Info("organization imported",
			"org", b.Profile.ID,
			"watchlist", len(b.Watchlist),
			"affinities", len(b.Affinities))
	}
	fmt.Printf("Imported %d organizations from %s\n", len(bundles), path)
	return nil
}

func runOrgList(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orgs, err := a.store.ListOrganizations(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tDOMAINS\tGEOGRAPHIES")
	for _, o := range orgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.ID,
			o.Name,
			o.OrgType,
			strings.Join(o.Domains, ","),
			strings.Join(o.Geographies, ","),
		)
	}
	return w.Flush()
}

func runServe(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.store, a.pipeline, a.collector, port, a.logger)
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(
		a.store,
		a.collector,
		a.pipeline,
		buildAlertManager(a.cfg),
		a.cfg.Schedule.ParseCollectInterval(),
		a.cfg.Schedule.ParseRecommendInterval(),
		a.cfg.Decision.AlertActNow,
		a.logger,
	)
	srv := server.New(a.store, a.pipeline, a.collector, port, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return sched.Run(gctx) })

	a.logger.Info("trendfit running", "port", port)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
