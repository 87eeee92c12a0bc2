package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/xzer/workbackup/internal/config"
	"github.com/xzer/workbackup/internal/logging"
	"github.com/xzer/workbackup/internal/mailbox"
	"github.com/xzer/workbackup/internal/notify"
	"github.com/xzer/workbackup/internal/run"
	"github.com/xzer/workbackup/internal/watcher"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <backup-repo>\n\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(os.Stderr, "Sync configured files into the backup repo, commit, and bundle.\n\n")
	flag.PrintDefaults()
}

func main() {
	var (
		dryRun     = flag.Bool("dry-run", false, "show what would happen without making changes")
		commitOnly = flag.Bool("commit-only", false, "only sync and commit, skip bundle creation (for hourly runs)")
		notifyTest = flag.Bool("notify-test", false, "send a test notification and exit")
		daemon     = flag.Bool("daemon", false, "keep running: execute runs on the configured schedules")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	repoRoot, err := filepath.Abs(config.ExpandUser(flag.Arg(0)))
	if err != nil {
		log.Fatalf("resolving backup repo path: %v", err)
	}
	if st, err := os.Stat(repoRoot); err != nil || !st.IsDir() {
		fmt.Fprintf(os.Stderr, "ERROR: backup repo not found: %s\n", repoRoot)
		os.Exit(1)
	}

	cfg, warnings, err := config.Load(repoRoot)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, logPath, err := logging.Setup(repoRoot, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logg.Close()
	logg.Info("log file: %s", logPath)
	for _, w := range warnings {
		logg.Warn("%s", w)
	}

	if *dryRun {
		logg.Info("=== DRY RUN MODE ===")
	}
	logg.Info("backup repo: %s", repoRoot)
	logg.Info("entries: %d", len(cfg.Entries))
	if cfg.BundleDir != "" {
		logg.Info("bundle dir: %s", cfg.BundleDir)
	}
	for _, e := range cfg.Entries {
		logg.Info("  - %s", e.Path)
	}

	notifier := notify.NewTelegram(cfg.Telegram, logg)

	if *notifyTest {
		logg.Info("sending test notification...")
		notifier.Notify("Backup notification test\nRepo: " + repoRoot)
		logg.Info("done")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logg.Info("shutting down...")
		cancel()
	}()

	if !*daemon {
		runner := run.New(repoRoot, cfg, logg, notifier, *dryRun)
		sum, err := runner.Run(ctx, run.Request{CommitOnly: *commitOnly})
		if err != nil {
			logg.Error("backup failed: %v", err)
			notifier.Notify(fmt.Sprintf("Backup failed: %v\nRepo: %s", err, repoRoot))
			os.Exit(1)
		}
		report(logg, sum)
		return
	}

	runDaemon(ctx, repoRoot, cfg, logg, notifier, *dryRun)
}

// runDaemon executes runs on the configured cron schedules and, when
// enabled, on source changes. Requests coalesce through the mailbox so
// at most one run is ever pending.
func runDaemon(ctx context.Context, repoRoot string, cfg *config.Config, logg logging.Logger, notifier notify.Notifier, dryRun bool) {
	var mu sync.Mutex // guards cfg and the watcher handle across SIGHUP reloads
	var watchCancel context.CancelFunc
	mb := mailbox.New[run.Request]()

	c := cron.New()
	if expr := cfg.Daemon.CommitSchedule; expr != "" {
		if _, err := c.AddFunc(expr, func() {
			mb.Put(run.Request{CommitOnly: true, Reason: "schedule"})
		}); err != nil {
			logg.Error("invalid commit schedule %q: %v", expr, err)
			os.Exit(1)
		}
	}
	if expr := cfg.Daemon.BundleSchedule; expr != "" {
		if _, err := c.AddFunc(expr, func() {
			mb.Put(run.Request{Reason: "schedule"})
		}); err != nil {
			logg.Error("invalid bundle schedule %q: %v", expr, err)
			os.Exit(1)
		}
	}
	if len(c.Entries()) == 0 && !cfg.Daemon.Watch.Enabled {
		logg.Warn("daemon mode with no schedules and no watcher: nothing will trigger runs")
	}
	c.Start()
	defer c.Stop()

	// startWatcher (re)builds the watcher over c's entry set, stopping any
	// previous one, so a config reload changes what is being observed.
	startWatcher := func(c *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		if watchCancel != nil {
			watchCancel()
			watchCancel = nil
		}
		if !c.Daemon.Watch.Enabled {
			return
		}
		wctx, cancel := context.WithCancel(ctx)
		watchCancel = cancel
		w := watcher.New(c.Daemon.Watch, c.Entries, logg, mb)
		go func() {
			if err := w.Start(wctx); err != nil {
				logg.Error("watcher failed: %v", err)
			}
		}()
	}
	startWatcher(cfg)

	// Hot reload on SIGHUP
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGHUP)
		for range sigCh {
			newCfg, warnings, err := config.Load(repoRoot)
			if err != nil {
				logg.Error("config reload failed: %v", err)
				continue
			}
			for _, w := range warnings {
				logg.Warn("%s", w)
			}
			mu.Lock()
			cfg = newCfg
			mu.Unlock()
			startWatcher(newCfg)
			logg.Info("config reloaded")
		}
	}()

	// Run loop
	go func() {
		for {
			req := mb.Take()
			select {
			case <-ctx.Done():
				return
			default:
			}

			mu.Lock()
			current := cfg
			mu.Unlock()

			logg.Info("run requested (%s, commit-only=%v)", req.Reason, req.CommitOnly)
			runner := run.New(repoRoot, current, logg, notifier, dryRun)
			sum, err := runner.Run(ctx, req)
			if err != nil {
				logg.Error("backup failed: %v", err)
				notifier.Notify(fmt.Sprintf("Backup failed: %v\nRepo: %s", err, repoRoot))
				continue
			}
			report(logg, sum)
		}
	}()

	<-ctx.Done()
	if req := mb.TryTake(); req != nil {
		logg.Info("discarding pending run request (%s)", req.Reason)
	}
	logg.Info("exit complete")
}

func report(logg logging.Logger, sum run.Summary) {
	for _, res := range sum.Results {
		if res.Err != nil {
			logg.Info("  %s: %s (%v)", res.Entry.Path, res.Outcome, res.Err)
		} else {
			logg.Info("  %s: %s", res.Entry.Path, res.Outcome)
		}
	}
	if sum.Overall != run.CommitOnlyRun {
		logg.Info("overall: %s", sum.Overall)
	}
}
