package loop

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aurora-radio/internal/archive"
	"aurora-radio/internal/broadcast"
	"aurora-radio/internal/catalog"
	"aurora-radio/internal/config"
	"aurora-radio/internal/orchestrator"
	"aurora-radio/internal/queue"
	"aurora-radio/internal/ratio"
	"aurora-radio/internal/schedule"
)

// Metrics
var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "radio_scheduler_ticks_total", Help: "Control loop ticks"},
	)
	tickErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "radio_scheduler_tick_errors_total", Help: "Errors caught inside a tick"},
		[]string{"stage"},
	)
	replenishments = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "radio_replenishments_total", Help: "Replenishment cycles run"},
	)
	queuedMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "radio_queued_minutes", Help: "Minutes buffered inside the lookahead window"},
	)
	windowMusicFraction = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "radio_window_music_fraction", Help: "Music share of the buffered window"},
	)
	windowTalkFraction = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "radio_window_talk_fraction", Help: "Talk share of the buffered window"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(ticksTotal, tickErrors, replenishments, queuedMinutes,
		windowMusicFraction, windowTalkFraction)
}

// Loop is the station's single-worker control loop. One tick runs to
// completion (including all provider and datastore I/O) before the next is
// scheduled, so the process-local caches never see concurrent access.
type Loop struct {
	cfg          *config.Config
	scheduler    *schedule.Scheduler
	accountant   *queue.Accountant
	orchestrator *orchestrator.Orchestrator
	archiver     *archive.Archiver
	broadcaster  *broadcast.Broadcaster
	clock        schedule.Clock

	lastCleanup time.Time

	stop chan struct{}
	done chan struct{}
}

func New(cfg *config.Config, sched *schedule.Scheduler, acct *queue.Accountant, orch *orchestrator.Orchestrator, arch *archive.Archiver, bc *broadcast.Broadcaster, clock schedule.Clock) *Loop {
	if clock == nil {
		clock = schedule.RealClock{}
	}
	return &Loop{
		cfg:          cfg,
		scheduler:    sched,
		accountant:   acct,
		orchestrator: orch,
		archiver:     arch,
		broadcaster:  bc,
		clock:        clock,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs the loop until Stop is called or the context is cancelled.
// Blocking; callers wanting a background loop run it in a goroutine.
func (l *Loop) Start(ctx context.Context) {
	defer close(l.done)

	interval := time.Duration(l.cfg.Scheduler.TickSeconds) * time.Second
	log.Printf("🔄 Scheduler loop started (tick every %s)", interval)

	for {
		l.Tick(ctx)

		select {
		case <-ctx.Done():
			log.Println("🛑 Scheduler loop stopped (context cancelled)")
			return
		case <-l.stop:
			log.Println("🛑 Scheduler loop stopped")
			return
		case <-time.After(interval):
		}
	}
}

// Stop requests a graceful shutdown. The in-flight tick completes; Stop
// returns once the loop has exited.
func (l *Loop) Stop() {
	close(l.stop)
	<-l.done
}

// Tick runs one full control cycle. Every error inside a tick is caught
// and logged: only startup configuration validation may kill the process.
func (l *Loop) Tick(ctx context.Context) {
	ticksTotal.Inc()
	now := l.clock.Now()

	show, err := l.scheduler.ResolveActiveShow(now)
	if err != nil {
		tickErrors.WithLabelValues("resolve_show").Inc()
		log.Printf("❌ Show resolution failed: %v", err)
		return
	}
	if show == nil {
		log.Printf("⚠️ No show scheduled for %s, skipping tick", now.Format("Mon 15:04"))
		return
	}

	if !l.cfg.Scheduler.DryRun {
		if err := l.orchestrator.CheckShowTransition(ctx, show); err != nil {
			tickErrors.WithLabelValues("transition").Inc()
			log.Printf("❌ Transition check failed: %v", err)
		}
	}

	decision, err := l.accountant.NeedsReplenishment(l.cfg.Scheduler.BufferMinutes, l.cfg.Scheduler.MinQueueDepthMinutes)
	if err != nil {
		// Datastore unreachable: surface at the tick boundary and let the
		// next tick retry after the normal interval.
		tickErrors.WithLabelValues("accounting").Inc()
		log.Printf("❌ Queue accounting failed: %v", err)
		return
	}
	queuedMinutes.Set(decision.CurrentMinutes)

	if decision.Needed {
		if l.cfg.Scheduler.DryRun {
			plan := l.replenishmentPlan(show, decision.TargetMinutes)
			log.Printf("🧪 DRY RUN: would replenish %.1f minutes for %s (~%d music / %d talk segments, queued %.1f, target %.1f)",
				decision.MinutesNeeded, show.Name, plan.MusicCount, plan.TalkCount, decision.CurrentMinutes, decision.TargetMinutes)
		} else {
			replenishments.Inc()
			if err := l.orchestrator.Replenish(ctx, show, decision.MinutesNeeded); err != nil {
				tickErrors.WithLabelValues("replenish").Inc()
				log.Printf("❌ Replenishment failed: %v", err)
			}
		}
	}

	l.publish(show, decision)
	l.housekeeping(now)
}

// replenishmentPlan sizes the work a replenishment would do, for the
// dry-run report.
func (l *Loop) replenishmentPlan(show *catalog.ShowConfig, targetMinutes float64) ratio.Need {
	segments, err := l.accountant.SegmentsInWindow(l.cfg.Scheduler.BufferMinutes)
	if err != nil {
		return ratio.Need{}
	}
	return ratio.SegmentsNeeded(segments, show, targetMinutes,
		float64(l.cfg.Scheduler.AvgMusicSeconds), float64(l.cfg.Scheduler.AvgTalkSeconds))
}

func (l *Loop) publish(show *catalog.ShowConfig, decision queue.ReplenishmentDecision) {
	segments, err := l.accountant.SegmentsInWindow(l.cfg.Scheduler.BufferMinutes)
	if err == nil {
		stats := ratio.QueueStats(segments)
		windowMusicFraction.Set(stats.MusicFraction)
		windowTalkFraction.Set(stats.TalkFraction)
		if stats.TotalMinutes > 0 {
			if ok, reason := ratio.ValidateRatios(stats, show, ratio.DefaultTolerance); !ok {
				log.Printf("⚠️ Ratio drift in buffered window for %q: %s", show.ID, reason)
			}
		}
		l.broadcaster.PublishQueueUpdate(broadcast.QueueUpdate{
			ShowID:        show.ID,
			QueuedMinutes: decision.CurrentMinutes,
			SegmentCount:  len(segments),
			MusicFraction: stats.MusicFraction,
			TalkFraction:  stats.TalkFraction,
		})
	}

	current, err := l.accountant.CurrentSegment()
	if err != nil || current == nil {
		return
	}
	l.broadcaster.PublishNowPlaying(broadcast.NowPlaying{
		ShowID:    show.ID,
		ShowName:  show.Name,
		SegmentID: current.SegmentID,
		Title:     current.Title,
		Type:      current.Type,
		StartTime: current.StartTime,
		EndTime:   current.EndTime,
	})
}

// housekeeping archives freshly finished segments every tick and runs
// retention cleanup at most once a day.
func (l *Loop) housekeeping(now time.Time) {
	if err := l.archiver.ArchiveFinished(50); err != nil {
		tickErrors.WithLabelValues("archive").Inc()
		log.Printf("⚠️ Archive housekeeping failed: %v", err)
	}

	if now.Sub(l.lastCleanup) < 24*time.Hour {
		return
	}
	l.lastCleanup = now

	cutoff := now.AddDate(0, 0, -l.cfg.Scheduler.RetentionDays)
	if n, err := l.accountant.DeleteOlderThan(cutoff); err != nil {
		log.Printf("⚠️ Segment retention failed: %v", err)
	} else if n > 0 {
		log.Printf("🧹 Segment retention: removed %d rows older than %s", n, cutoff.Format("2006-01-02"))
	}

	if _, err := l.archiver.CleanupOldArchives(l.cfg.Scheduler.RetentionDays); err != nil {
		log.Printf("⚠️ Archive retention failed: %v", err)
	}
}
