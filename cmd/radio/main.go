package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aurora-radio/internal/archive"
	"aurora-radio/internal/audio"
	"aurora-radio/internal/broadcast"
	"aurora-radio/internal/catalog"
	"aurora-radio/internal/config"
	database "aurora-radio/internal/db"
	"aurora-radio/internal/gen"
	"aurora-radio/internal/loop"
	"aurora-radio/internal/orchestrator"
	"aurora-radio/internal/presenter"
	"aurora-radio/internal/queue"
	"aurora-radio/internal/schedule"
)

func main() {
	// 1. Parse Flags
	simulate := flag.Bool("simulate", false, "Dry run: resolve shows and accounting without generating content")
	catalogPath := flag.String("catalog", "", "Override show catalog path")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 2. Load + Validate Config (invalid values are fatal before the loop)
	cfg := config.Load()
	if *catalogPath != "" {
		cfg.Station.CatalogPath = *catalogPath
	}
	if *simulate {
		cfg.Scheduler.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	if cfg.Scheduler.DryRun {
		log.Println("🧪 MODE: DRY RUN / SIMULATION")
	} else {
		log.Printf("📻 Starting %s scheduler...", cfg.Station.Name)
	}

	// 3. Init Infrastructure
	db := database.New(cfg)
	db.AutoMigrate()

	clock := schedule.RealClock{}
	cat := catalog.New(cfg.Station.CatalogPath, catalog.DefaultTTL)
	if err := cat.ForceReload(clock.Now()); err != nil {
		log.Fatalf("❌ Show catalog invalid: %v", err)
	}

	// 4. Construct collaborators at startup; nothing is lazily initialized.
	sched := schedule.New(cat, clock)
	accountant := queue.NewAccountant(db.DB, clock)
	requests := queue.NewRequestStore(db.DB)
	rotator := presenter.NewRotator(rand.New(rand.NewSource(time.Now().UnixNano())))
	audioTool := audio.NewConcatenator(cfg.Audio.BitrateKbps)
	archiver := archive.New(db.DB, cfg.Audio.ArchiveRoot, cfg.Station.ID, cfg.Audio.Format, cfg.Audio.BitrateKbps, clock)
	broadcaster := broadcast.New()

	orch := orchestrator.New(orchestrator.Deps{
		Config:      cfg,
		Accountant:  accountant,
		Requests:    requests,
		Rotator:     rotator,
		Scripts:     gen.NewScriptClient(cfg.Providers.ScriptURL, cfg.Providers.APIKey, nil),
		Speech:      gen.NewSpeechClient(cfg.Providers.SpeechURL, cfg.Providers.APIKey, cfg.Audio.Root, cfg.Audio.Format, nil),
		Music:       gen.NewMusicClient(cfg.Providers.MusicURL, cfg.Providers.APIKey, cfg.Audio.Root, cfg.Audio.Format, nil),
		AudioTool:   audioTool,
		Scheduler:   sched,
		Broadcaster: broadcaster,
		Clock:       clock,
	})

	// 5. Metrics
	loop.RegisterMetrics()
	go func() {
		http.Handle("/_metrics", promhttp.Handler())
		log.Printf("📊 Metrics exposed at http://localhost%s/_metrics", cfg.Scheduler.MetricsPort)
		if err := http.ListenAndServe(cfg.Scheduler.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 6. Run the control loop until SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := loop.New(cfg, sched, accountant, orch, archiver, broadcaster, clock)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("🛑 Shutdown requested, finishing in-flight tick...")
		cancel()
	}()

	l.Start(ctx)
}
