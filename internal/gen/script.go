package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ScriptClient talks to the script-generation service. Retry/backoff is the
// service wrapper's own concern; this client makes exactly one attempt.
type ScriptClient struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

func NewScriptClient(baseURL, apiKey string, httpClient HTTPClient) *ScriptClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &ScriptClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type scriptAPIRequest struct {
	SegmentType   string   `json:"segment_type"`
	Show          string   `json:"show"`
	Tone          []string `json:"tone,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	BannedTopics  []string `json:"banned_topics,omitempty"`
	Presenters    []string `json:"presenters"`
	Topic         string   `json:"topic,omitempty"`
	TrackTitle    string   `json:"track_title,omitempty"`
	Season        string   `json:"season,omitempty"`
	Holiday       string   `json:"holiday,omitempty"`
	TargetSeconds int      `json:"target_seconds,omitempty"`
	MinWords      int      `json:"min_words,omitempty"`
	MaxWords      int      `json:"max_words,omitempty"`
}

type scriptAPIResponse struct {
	Script           string  `json:"script"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
}

// GenerateScript requests a transcript for the given segment.
func (c *ScriptClient) GenerateScript(ctx context.Context, req ScriptRequest) (Script, error) {
	apiReq := scriptAPIRequest{
		SegmentType:   string(req.SegmentType),
		Show:          req.ShowName,
		Tone:          req.Tone,
		Topics:        req.Topics,
		BannedTopics:  req.BannedTopics,
		Topic:         req.Topic,
		TrackTitle:    req.TrackTitle,
		TargetSeconds: req.TargetSeconds,
		MinWords:      req.MinWords,
		MaxWords:      req.MaxWords,
	}
	for _, p := range req.Presenters {
		apiReq.Presenters = append(apiReq.Presenters, fmt.Sprintf("%s (%s)", p.Name, p.Style))
	}
	if req.Seasonal != nil {
		apiReq.Season = req.Seasonal.Season
		apiReq.Holiday = req.Seasonal.Holiday
		apiReq.Topics = append(apiReq.Topics, req.Seasonal.Topics...)
		if req.Seasonal.ToneAdjustment != "" {
			apiReq.Tone = append(apiReq.Tone, req.Seasonal.ToneAdjustment)
		}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return Script{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scripts", bytes.NewBuffer(body))
	if err != nil {
		return Script{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Script{}, fmt.Errorf("script request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Script{}, fmt.Errorf("script request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result scriptAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Script{}, fmt.Errorf("failed to decode script response: %w", err)
	}
	if strings.TrimSpace(result.Script) == "" {
		return Script{}, fmt.Errorf("script service returned an empty transcript")
	}

	estimated := result.EstimatedSeconds
	if estimated <= 0 {
		estimated = EstimateSpokenSeconds(result.Script)
	}

	return Script{Text: result.Script, EstimatedSeconds: estimated}, nil
}

// EstimateSpokenSeconds approximates delivery time at a conversational
// 150 words per minute. Used when the service omits its own estimate.
func EstimateSpokenSeconds(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / 150.0 * 60.0
}
