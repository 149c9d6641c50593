package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"termcal/internal/catalog"
	"termcal/internal/config"
	applog "termcal/internal/log"
	"termcal/internal/notify"
	"termcal/internal/overrides"
	"termcal/internal/planner"
	"termcal/internal/store"
	"termcal/internal/termbounds"
	"termcal/internal/termdata"
	"termcal/internal/timeutil"
	"termcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	date       string
	logLevel   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		applog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	applog.SetLevel(applog.ParseLevel(conf.LogLevel))

	loc := timeutil.LoadZone(conf.Timezone)

	applog.Info("termcal starting",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"data_dir", conf.DataDir,
		"catalog_path", conf.CatalogPath,
		"calendar_sources", len(conf.Calendars),
	)

	kv, err := store.NewFileStore(filepath.Join(conf.DataDir, "state"))
	if err != nil {
		applog.Error("failed to open state store", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}

	ov := overrides.NewStore(kv, loc)
	if err := ov.Load(); err != nil {
		applog.Error("failed to load overrides", err)
		os.Exit(1)
	}

	fetcher := termdata.NewFetcher(filepath.Join(conf.DataDir, "calendar-cache"))
	client := termdata.NewClient(fetcher, conf.Calendars, loc)
	bounds := termbounds.NewRegistry(client)

	plan := planner.New(kv, ov, bounds, loc)
	if err := plan.Load(); err != nil {
		applog.Error("failed to load planner state", err)
		os.Exit(1)
	}

	var cat *catalog.Catalog
	if conf.CatalogPath != "" {
		cat, err = catalog.Load(conf.CatalogPath)
		if err != nil {
			// A missing catalog only disables new enrollment; existing
			// state still serves.
			applog.Error("failed to load course catalog", err, "path", conf.CatalogPath)
			cat = nil
		} else {
			applog.Info("course catalog loaded", "term", cat.Term, "courses", len(cat.Courses))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		applog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Initial calendar pull: campus events plus bounds for every
	// enrolled term. Both are best effort.
	refreshCampus := func() {
		plan.SetCampusEvents(client.CampusEvents(ctx))
		for _, enr := range plan.Enrollments() {
			bounds.EnsureLoaded(ctx, enr.TermID)
		}
	}
	refreshCampus()

	// One-shot mode: print the agenda for a date and exit.
	if flags.date != "" {
		day, err := timeutil.ParseDate(flags.date, loc)
		if err != nil {
			applog.Error("bad -date; want YYYY-MM-DD", err, "date", flags.date)
			os.Exit(1)
		}
		// Give async bounds loads a moment to land.
		time.Sleep(2 * time.Second)
		for _, occ := range plan.EventsOn(day) {
			if occ.AllDay {
				fmt.Printf("all-day  %-12s %s\n", occ.Category, occ.Title)
				continue
			}
			fmt.Printf("%s-%s  %s", occ.Start.Format("15:04"), occ.End.Format("15:04"), occ.Title)
			if occ.Location != "" {
				fmt.Printf("  (%s)", occ.Location)
			}
			fmt.Println()
		}
		return
	}

	srv := web.NewServer(conf, plan, cat, bounds)

	// Periodic calendar refresh; late data invalidates cached agendas.
	cr := cron.New(cron.WithLocation(loc))
	if _, err := cr.AddFunc(conf.RefreshCron, func() {
		applog.Info("refreshing academic calendar", "cron", conf.RefreshCron)
		refreshCampus()
		srv.InvalidateAgenda()
	}); err != nil {
		applog.Error("bad refresh cron expression", err, "cron", conf.RefreshCron)
		os.Exit(1)
	}
	cr.Start()
	defer cr.Stop()

	reminders := notify.NewScheduler(plan, notify.LogNotifier{}, loc)
	if err := reminders.Start(conf.ReminderCron); err != nil {
		applog.Error("bad reminder cron expression", err, "cron", conf.ReminderCron)
		os.Exit(1)
	}
	defer reminders.Stop()

	if err := srv.Serve(ctx); err != nil {
		applog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	applog.Info("termcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/termcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.date, "date", "", "Print the agenda for a date (YYYY-MM-DD) and exit")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	flag.Parse()

	return cfg
}
