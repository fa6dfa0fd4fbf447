package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gotaku-app/gotaku/internal/app"
	"github.com/gotaku-app/gotaku/internal/cache"
	"github.com/gotaku-app/gotaku/internal/config"
	"github.com/gotaku-app/gotaku/internal/discord"
	"github.com/gotaku-app/gotaku/internal/gateway"
	"github.com/gotaku-app/gotaku/internal/repository"
	"github.com/gotaku-app/gotaku/internal/resolver"
	"github.com/gotaku-app/gotaku/internal/tracking"
	"github.com/gotaku-app/gotaku/internal/updater"
	"github.com/gotaku-app/gotaku/internal/util"
	"github.com/gotaku-app/gotaku/internal/version"
)

func main() {
	startAll := time.Now()

	// Define all flags in one place
	versionFlag := flag.Bool("version", false, "show version information")
	debugFlag := flag.Bool("debug", false, "enable debug mode")
	downloadFlag := flag.Bool("download", false, "download episodes instead of streaming")
	updateFlag := flag.Bool("update", false, "update gotaku to the latest release")
	helpFlag := flag.Bool("help", false, "show help message")
	altHelpFlag := flag.Bool("h", false, "show help message")

	flag.Parse()

	if *versionFlag || version.HasVersionArg() {
		version.ShowVersion()
		return
	}

	if *helpFlag || *altHelpFlag {
		util.Helper()
		return
	}

	util.SetDebugMode(*debugFlag)
	util.InitLogger()

	if *updateFlag {
		if err := updater.CheckAndPromptUpdate(); err != nil {
			util.Fatal(util.ErrorHandler(err))
		}
		return
	}
	updater.CheckForUpdatesQuietly()

	// A positional query runs a one-shot search; with no args the app opens
	// its menu instead, so only read the query when one was actually given.
	var query string
	if len(flag.Args()) > 0 {
		q, err := util.GetSearchQuery()
		if err != nil {
			util.Fatal(util.ErrorHandler(err))
		}
		query = q
	}

	if notice := tracking.DisabledNotice(); notice != "" {
		util.Warn(notice)
	}
	if util.IsDebug {
		util.Debugf("starting Gotaku v%s", version.Version)
		defer util.GetPerfTracker().PrintReport()
	}

	cfg := config.FromEnv()

	store, err := tracking.Open(tracking.DefaultPath())
	if err != nil {
		util.Debug("progress tracking unavailable", "error", err)
	} else {
		defer func() { _ = store.Close() }()
	}

	discordOn := false
	if err := discord.Login(); err != nil {
		util.Debug("discord rich presence unavailable", "error", err)
	} else {
		discordOn = true
		defer func() { _ = discord.Logout() }()
	}

	repo := repository.New(cfg, cache.New(),
		gateway.NewClient(cfg.Primary, cfg),
		gateway.NewClient(cfg.Alternate, cfg),
	)

	application := app.New(app.Options{
		Config:   cfg,
		Repo:     repo,
		Resolver: resolver.New(cfg),
		Store:    store,
		Discord:  discordOn,
		Download: *downloadFlag,
	})

	if util.IsDebug {
		util.Debugf("boot completed in %v", time.Since(startAll))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx, query); err != nil {
		util.Error(util.ErrorHandler(err))
		os.Exit(1)
	}
}
