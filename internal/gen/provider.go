package gen

import (
	"context"
	"net/http"
	"time"

	"aurora-radio/internal/catalog"
	"aurora-radio/internal/models"
	"aurora-radio/internal/schedule"
)

// HTTPClient defines the interface for HTTP client operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const defaultHTTPTimeout = 120 * time.Second

// ScriptRequest describes the transcript the orchestrator needs. Identical
// inputs must be safe to send repeatedly: the script service treats them as
// idempotent, cacheable content.
type ScriptRequest struct {
	SegmentType  models.SegmentType
	ShowName     string
	Tone         []string
	Topics       []string
	BannedTopics []string
	Presenters   []catalog.Presenter

	// Optional steering
	Topic         string
	TrackTitle    string
	Seasonal      *schedule.SeasonalContext
	TargetSeconds int
	MinWords      int
	MaxWords      int
}

// Script is a generated transcript plus the service's duration estimate.
type Script struct {
	Text             string
	EstimatedSeconds float64
}

type ScriptProvider interface {
	GenerateScript(ctx context.Context, req ScriptRequest) (Script, error)
}

// SpeechRequest asks for one presenter's lines as audio. Category picks the
// output subdirectory (commentary, handovers, idents, fallback).
type SpeechRequest struct {
	Text     string
	Voice    string
	Speed    float64 // 0 means service default
	Category string
	BaseName string
}

// SpeechResult is the synthesized clip on disk.
type SpeechResult struct {
	Path     string
	Duration float64 // seconds
}

type SpeechProvider interface {
	Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error)
}

// MusicRequest asks for a full music track.
type MusicRequest struct {
	Prompt          string
	DurationSeconds int
	Tags            []string
	BaseName        string
}

// MusicResult is the generated track on disk with its metadata.
type MusicResult struct {
	Path     string
	Title    string
	Duration float64 // seconds
}

type MusicProvider interface {
	GenerateTrack(ctx context.Context, req MusicRequest) (MusicResult, error)
}
