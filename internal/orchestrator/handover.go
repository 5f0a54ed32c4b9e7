package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"aurora-radio/internal/broadcast"
	"aurora-radio/internal/catalog"
	"aurora-radio/internal/gen"
	"aurora-radio/internal/models"
	"aurora-radio/internal/schedule"
)

// CheckShowTransition generates a handover segment when the current show is
// about to end. At most one handover per transition: the check is gated by
// a cooldown timestamp and by an existing-handover query, so two checks
// within the cooldown window produce exactly one generation.
func (o *Orchestrator) CheckShowTransition(ctx context.Context, current *catalog.ShowConfig) error {
	now := o.clock.Now()
	threshold := time.Duration(o.cfg.Scheduler.TransitionThresholdMins) * time.Minute
	if !schedule.IsNearTransition(current, now, threshold) {
		return nil
	}

	cooldown := time.Duration(o.cfg.Scheduler.HandoverCooldownMinutes) * time.Minute
	if !o.lastHandoverCheck.IsZero() && now.Sub(o.lastHandoverCheck) < cooldown {
		return nil
	}

	// The cooldown is consumed only once a durable decision exists for the
	// boundary; a persistence error here leaves it untouched so the next
	// tick retries before the transition airs.
	boundary := schedule.ShowEndTime(current, now)
	exists, err := o.accountant.HandoverExists(boundary)
	if err != nil {
		return err
	}
	if exists {
		o.lastHandoverCheck = now
		return nil
	}

	next, err := o.scheduler.ResolveNextShow(now, current)
	if err != nil {
		return err
	}
	if next == nil {
		log.Printf("⚠️ Scheduling gap after %q at %s, no handover generated", current.ID, boundary.Format("15:04"))
		o.lastHandoverCheck = now
		return nil
	}

	handoverSeconds := float64(current.HandoverSeconds)
	start := boundary.Add(-time.Duration(handoverSeconds * float64(time.Second)))

	clip := o.generateHandover(ctx, current, next, handoverSeconds)

	// The segment ends exactly at the show boundary whether the clip is
	// real or a fallback stub; a boundary is never silently skipped.
	seg := &models.Segment{
		SegmentID: uuid.NewString(),
		ShowID:    current.ID,
		Type:      models.SegmentHandover,
		Title:     fmt.Sprintf("%s → %s", current.Name, next.Name),
		FilePath:  clip.Path,
		StartTime: start,
		EndTime:   boundary,
	}
	if err := o.accountant.ScheduleSegment(seg); err != nil {
		return err
	}
	o.lastHandoverCheck = now

	o.broadcaster.PublishShowChange(broadcast.ShowChange{
		FromShowID: current.ID,
		ToShowID:   next.ID,
		At:         boundary,
	})

	log.Printf("🎙️ Handover scheduled: %q → %q ending %s", current.ID, next.ID, boundary.Format("15:04"))
	return nil
}

// generateHandover builds the four-presenter goodbye/hello clip. On any
// failure a silent stub of the handover length is substituted.
func (o *Orchestrator) generateHandover(ctx context.Context, current, next *catalog.ShowConfig, seconds float64) scheduledClip {
	baseName := fmt.Sprintf("handover_%s", uuid.NewString()[:8])

	// The script alternates between all four presenters of the two duos,
	// round-robin by sentence.
	presenters := append(append([]catalog.Presenter(nil), current.Presenters...), next.Presenters...)

	fallback := func(reason string, err error) scheduledClip {
		log.Printf("❌ Handover %s failed, scheduling fallback stub: %v", reason, err)
		stubPath := filepath.Join(o.cfg.Audio.Root, "fallback", baseName+"."+o.cfg.Audio.Format)
		stub, stubErr := o.audioTool.Silence(ctx, seconds, stubPath)
		if stubErr != nil {
			log.Printf("❌ Handover stub creation failed too: %v", stubErr)
			stub.Path = stubPath
		}
		return scheduledClip{Path: stub.Path, Title: "Handover", Duration: seconds}
	}

	script, err := o.scripts.GenerateScript(ctx, gen.ScriptRequest{
		SegmentType:   models.SegmentHandover,
		ShowName:      fmt.Sprintf("%s into %s", current.Name, next.Name),
		Tone:          current.Tone,
		Presenters:    presenters,
		Topic:         fmt.Sprintf("handing over from %s to %s", current.Name, next.Name),
		TargetSeconds: int(seconds),
	})
	if err != nil {
		return fallback("script", err)
	}

	clip, err := o.voiceScript(ctx, script.Text, presenters, "handovers", baseName)
	if err != nil {
		return fallback("synthesis", err)
	}

	return scheduledClip{Path: clip.Path, Title: "Handover", Duration: clip.Duration}
}

// LastHandoverCheck exposes the cooldown timestamp for tests.
func (o *Orchestrator) LastHandoverCheck() time.Time {
	return o.lastHandoverCheck
}
