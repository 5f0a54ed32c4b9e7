package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"aurora-radio/internal/audio"
	"aurora-radio/internal/broadcast"
	"aurora-radio/internal/catalog"
	"aurora-radio/internal/config"
	"aurora-radio/internal/gen"
	"aurora-radio/internal/models"
	"aurora-radio/internal/presenter"
	"aurora-radio/internal/queue"
	"aurora-radio/internal/ratio"
	"aurora-radio/internal/schedule"
)

// Fallback stub lengths. A failed music generation is covered by a minute
// of station-bed silence; a failed ident is simply skipped.
const (
	fallbackTrackSeconds = 60.0
	identTargetSeconds   = 20
)

// Deps wires the orchestrator's collaborators. All provider clients are
// constructed at startup and passed in; nothing is lazily initialized.
type Deps struct {
	Config      *config.Config
	Accountant  *queue.Accountant
	Requests    *queue.RequestStore
	Rotator     *presenter.Rotator
	Scripts     gen.ScriptProvider
	Speech      gen.SpeechProvider
	Music       gen.MusicProvider
	AudioTool   audio.Concatenator
	Scheduler   *schedule.Scheduler
	Broadcaster *broadcast.Broadcaster
	Clock       schedule.Clock
}

// Orchestrator turns "need N minutes of content" into generated, scheduled
// segments. Provider failures degrade (stub or skip) and never abort the
// batch; retry/backoff belongs to the provider layer, not here.
type Orchestrator struct {
	cfg         *config.Config
	accountant  *queue.Accountant
	requests    *queue.RequestStore
	rotator     *presenter.Rotator
	scripts     gen.ScriptProvider
	speech      gen.SpeechProvider
	music       gen.MusicProvider
	audioTool   audio.Concatenator
	scheduler   *schedule.Scheduler
	broadcaster *broadcast.Broadcaster
	clock       schedule.Clock

	lastHandoverCheck time.Time
}

func New(d Deps) *Orchestrator {
	clock := d.Clock
	if clock == nil {
		clock = schedule.RealClock{}
	}
	return &Orchestrator{
		cfg:         d.Config,
		accountant:  d.Accountant,
		requests:    d.Requests,
		rotator:     d.Rotator,
		scripts:     d.Scripts,
		speech:      d.Speech,
		music:       d.Music,
		audioTool:   d.AudioTool,
		scheduler:   d.Scheduler,
		broadcaster: d.Broadcaster,
		clock:       clock,
	}
}

// Replenish generates enough segments to cover minutesNeeded for the show,
// honoring its music/talk split. Listener requests are served first, by
// vote count; leftover talk budget is filled with station idents.
func (o *Orchestrator) Replenish(ctx context.Context, show *catalog.ShowConfig, minutesNeeded float64) error {
	now := o.clock.Now()
	seasonal := schedule.NewSeasonalContext(now)
	merged := catalog.ApplyOverrides(show,
		show.SeasonOverride(seasonal.Season),
		show.HolidayOverride(seasonal.Holiday))

	musicBudget := minutesNeeded * show.MusicFraction * 60
	talkBudget := minutesNeeded * show.TalkFraction * 60
	var musicDone, talkDone float64

	cursor, err := o.accountant.NextAvailableSlot()
	if err != nil {
		return err
	}

	recent, err := o.accountant.RecentSegments(20)
	if err != nil {
		log.Printf("⚠️ Could not load recent segments for gap check: %v", err)
		recent = nil
	}

	requests, err := o.requests.TopPending(o.cfg.Scheduler.RequestBatchSize)
	if err != nil {
		return err
	}

	talkGap := time.Duration(o.cfg.Scheduler.TalkGapSeconds) * time.Second

	log.Printf("🎵 Replenishing %q: %.1f min needed (music %.0fs / talk %.0fs), %d pending requests",
		show.ID, minutesNeeded, musicBudget, talkBudget, len(requests))

	for i := range requests {
		if musicDone >= musicBudget {
			break
		}
		req := &requests[i]

		track := o.generateTrack(ctx, &merged, &seasonal, req.Prompt)

		var commentary *scheduledClip
		if talkDone < talkBudget && ratio.CanScheduleTalk(recent, cursor, talkGap) {
			commentary = o.generateCommentary(ctx, &merged, &seasonal, track.Title)
		}

		// Commentary introduces the track, so it airs first.
		if commentary != nil {
			seg := o.buildSegment(show.ID, models.SegmentTalk, commentary.Path, commentary.Title, cursor, commentary.Duration)
			if err := o.accountant.ScheduleSegment(seg); err != nil {
				return err
			}
			cursor = seg.EndTime
			talkDone += commentary.Duration
			recent = append(recent, *seg)
		}

		musicSeg := o.buildSegment(show.ID, models.SegmentMusic, track.Path, track.Title, cursor, track.Duration)
		musicSeg.TrackID = &track.Record.ID
		musicSeg.RequestID = &req.ID
		if err := o.accountant.ScheduleSegment(musicSeg); err != nil {
			return err
		}
		cursor = musicSeg.EndTime
		musicDone += track.Duration

		if err := o.requests.MarkUsed(req, musicSeg.SegmentID); err != nil {
			log.Printf("⚠️ Could not mark request %d used: %v", req.ID, err)
		}
		o.broadcaster.PublishRequestPlayed(broadcast.RequestPlayed{
			RequestID: req.ID,
			SegmentID: musicSeg.SegmentID,
			Prompt:    req.Prompt,
		})
	}

	// Top up music without requests when listeners were quiet.
	fillMusic := func() error {
		for musicDone < musicBudget {
			track := o.generateTrack(ctx, &merged, &seasonal, "")
			if track.Duration <= 0 {
				log.Printf("⚠️ Zero-length track result, stopping music fill")
				break
			}
			seg := o.buildSegment(show.ID, models.SegmentMusic, track.Path, track.Title, cursor, track.Duration)
			seg.TrackID = &track.Record.ID
			if err := o.accountant.ScheduleSegment(seg); err != nil {
				return err
			}
			cursor = seg.EndTime
			musicDone += track.Duration
		}
		return nil
	}

	// Fill the remaining talk budget with idents. A generation failure
	// exits the loop rather than spinning.
	fillTalk := func() error {
		for talkDone < talkBudget {
			if !ratio.CanScheduleTalk(recent, cursor, talkGap) {
				break
			}
			clip := o.generateIdent(ctx, &merged)
			if clip == nil {
				log.Printf("⚠️ Ident generation failed, leaving talk budget short by %.0fs", talkBudget-talkDone)
				break
			}
			seg := o.buildSegment(show.ID, models.SegmentIdent, clip.Path, clip.Title, cursor, clip.Duration)
			if err := o.accountant.ScheduleSegment(seg); err != nil {
				return err
			}
			cursor = seg.EndTime
			talkDone += clip.Duration
			recent = append(recent, *seg)
		}
		return nil
	}

	// A window already lagging on talk tops up idents before music so the
	// catch-up airs sooner; the default order is music first.
	fills := []func() error{fillMusic, fillTalk}
	if ratio.NextSegmentType(ratio.QueueStats(recent), &merged) == ratio.NextTalk {
		fills = []func() error{fillTalk, fillMusic}
	}
	for _, fill := range fills {
		if err := fill(); err != nil {
			return err
		}
	}

	log.Printf("✅ Replenished %q: music %.0fs/%.0fs, talk %.0fs/%.0fs",
		show.ID, musicDone, musicBudget, talkDone, talkBudget)
	return nil
}

// generatedTrack carries a music clip plus its persisted Track row.
type generatedTrack struct {
	Path     string
	Title    string
	Duration float64
	Record   models.Track
}

// generateTrack calls the music provider, substituting a silent stub on
// failure. The degradation is logged; it is never fatal to the batch.
func (o *Orchestrator) generateTrack(ctx context.Context, show *catalog.ShowConfig, seasonal *schedule.SeasonalContext, requestPrompt string) generatedTrack {
	prompt := buildMusicPrompt(show, seasonal, requestPrompt)
	baseName := fmt.Sprintf("track_%s", uuid.NewString()[:8])

	result, err := o.music.GenerateTrack(ctx, gen.MusicRequest{
		Prompt:          prompt,
		DurationSeconds: o.cfg.Scheduler.AvgMusicSeconds,
		Tags:            show.Tone,
		BaseName:        baseName,
	})
	fallback := false
	if err != nil {
		log.Printf("❌ Music generation failed, substituting fallback stub: %v", err)
		stubPath := filepath.Join(o.cfg.Audio.Root, "fallback", baseName+"."+o.cfg.Audio.Format)
		stub, stubErr := o.audioTool.Silence(ctx, fallbackTrackSeconds, stubPath)
		if stubErr != nil {
			log.Printf("❌ Fallback stub creation failed too: %v", stubErr)
			// Last resort: schedule the stub path anyway so the queue
			// keeps moving; the playout layer skips unreadable files.
			stub = audio.Result{Path: stubPath, Duration: fallbackTrackSeconds}
		}
		result = gen.MusicResult{Path: stub.Path, Title: "Station Bed", Duration: stub.Duration}
		fallback = true
	} else {
		if tagErr := audio.StampMP3(result.Path, map[string]string{
			"TITLE":  result.Title,
			"ARTIST": show.Name,
			"ALBUM":  show.Name,
			"GENRE":  strings.Join(show.Tone, ", "),
			"DATE":   fmt.Sprintf("%d", o.clock.Now().Year()),
		}); tagErr != nil {
			log.Printf("⚠️ Could not tag track %s: %v", result.Path, tagErr)
		}
	}

	record := models.Track{
		Title:    result.Title,
		ShowID:   show.ID,
		FilePath: result.Path,
		Prompt:   prompt,
		Duration: result.Duration,
		Fallback: fallback,
	}
	if err := o.requests.CreateTrack(&record); err != nil {
		log.Printf("⚠️ Could not persist track row: %v", err)
	}

	return generatedTrack{Path: result.Path, Title: result.Title, Duration: result.Duration, Record: record}
}

type scheduledClip struct {
	Path     string
	Title    string
	Duration float64
}

// generateCommentary produces a spoken intro for a track. On any provider
// failure it returns nil: commentary is optional and is skipped, never
// faked with stub speech.
func (o *Orchestrator) generateCommentary(ctx context.Context, show *catalog.ShowConfig, seasonal *schedule.SeasonalContext, trackTitle string) *scheduledClip {
	sel, err := o.rotator.SelectPresenters(show.Presenters, show.DuoProbability, show.ID)
	if err != nil {
		log.Printf("⚠️ Presenter selection failed, skipping commentary: %v", err)
		return nil
	}

	script, err := o.scripts.GenerateScript(ctx, gen.ScriptRequest{
		SegmentType:  models.SegmentTalk,
		ShowName:     show.Name,
		Tone:         show.Tone,
		Topics:       show.TopicsPrimary,
		BannedTopics: show.TopicsBanned,
		Presenters:   sel.Presenters,
		TrackTitle:   trackTitle,
		Seasonal:     seasonal,
		MinWords:     show.Commentary.MinWords,
		MaxWords:     show.Commentary.MaxWords,
	})
	if err != nil {
		log.Printf("⚠️ Commentary script failed, skipping: %v", err)
		return nil
	}

	baseName := fmt.Sprintf("commentary_%s", uuid.NewString()[:8])
	clip, err := o.voiceScript(ctx, script.Text, sel.Presenters, "commentary", baseName)
	if err != nil {
		log.Printf("⚠️ Commentary synthesis failed, skipping: %v", err)
		return nil
	}

	return &scheduledClip{Path: clip.Path, Title: "About: " + trackTitle, Duration: clip.Duration}
}

// generateIdent produces a short station-identification filler with no
// request association. Returns nil on failure so the caller can stop.
func (o *Orchestrator) generateIdent(ctx context.Context, show *catalog.ShowConfig) *scheduledClip {
	sel, err := o.rotator.SelectPresenters(show.Presenters, show.DuoProbability, show.ID)
	if err != nil {
		return nil
	}

	script, err := o.scripts.GenerateScript(ctx, gen.ScriptRequest{
		SegmentType:   models.SegmentIdent,
		ShowName:      show.Name,
		Tone:          show.Tone,
		Presenters:    sel.Presenters,
		TargetSeconds: identTargetSeconds,
	})
	if err != nil {
		return nil
	}

	baseName := fmt.Sprintf("ident_%s", uuid.NewString()[:8])
	clip, err := o.voiceScript(ctx, script.Text, sel.Presenters, "idents", baseName)
	if err != nil {
		return nil
	}
	return &scheduledClip{Path: clip.Path, Title: o.cfg.Station.Name + " ident", Duration: clip.Duration}
}

// voiceScript splits a transcript across the given presenters (round-robin
// by sentence when more than one), synthesizes each part, and joins the
// clips with a small inter-speaker gap.
func (o *Orchestrator) voiceScript(ctx context.Context, text string, presenters []catalog.Presenter, category, baseName string) (audio.Result, error) {
	parts := assignSentences(text, presenters)
	if len(parts) == 0 {
		return audio.Result{}, fmt.Errorf("script has no speakable lines")
	}

	var files []string
	for i, part := range parts {
		res, err := o.speech.Synthesize(ctx, gen.SpeechRequest{
			Text:     part.Text,
			Voice:    part.Presenter.Voice,
			Category: category,
			BaseName: fmt.Sprintf("%s_p%02d", baseName, i),
		})
		if err != nil {
			return audio.Result{}, fmt.Errorf("synthesize part %d (%s): %w", i, part.Presenter.ID, err)
		}
		files = append(files, res.Path)
	}

	outPath := filepath.Join(o.cfg.Audio.Root, category, baseName+"."+o.cfg.Audio.Format)
	return o.audioTool.Concatenate(ctx, files, o.cfg.Audio.SpeakerGapSec, outPath)
}

func (o *Orchestrator) buildSegment(showID string, segType models.SegmentType, path, title string, start time.Time, durationSeconds float64) *models.Segment {
	return &models.Segment{
		SegmentID: uuid.NewString(),
		ShowID:    showID,
		Type:      segType,
		Title:     title,
		FilePath:  path,
		StartTime: start,
		EndTime:   start.Add(time.Duration(durationSeconds * float64(time.Second))),
	}
}

func buildMusicPrompt(show *catalog.ShowConfig, seasonal *schedule.SeasonalContext, requestPrompt string) string {
	var parts []string
	if requestPrompt != "" {
		parts = append(parts, requestPrompt)
	}
	if len(show.Tone) > 0 {
		parts = append(parts, strings.Join(show.Tone, ", "))
	}
	if seasonal.IsHoliday {
		parts = append(parts, seasonal.Holiday+" mood")
	} else {
		parts = append(parts, seasonal.Season+" mood")
	}
	return strings.Join(parts, "; ")
}

// speakerPart is one presenter's contiguous chunk of the script.
type speakerPart struct {
	Presenter catalog.Presenter
	Text      string
}

// assignSentences distributes a script's sentences round-robin across the
// presenters. A solo presenter keeps the whole script as one part.
func assignSentences(text string, presenters []catalog.Presenter) []speakerPart {
	if len(presenters) == 0 {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(presenters) == 1 {
		return []speakerPart{{Presenter: presenters[0], Text: text}}
	}

	sentences := splitSentences(text)
	parts := make([]speakerPart, 0, len(sentences))
	for i, s := range sentences {
		parts = append(parts, speakerPart{
			Presenter: presenters[i%len(presenters)],
			Text:      s,
		})
	}
	return parts
}

// splitSentences breaks text on terminal punctuation, keeping the
// punctuation with the sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
