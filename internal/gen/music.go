package gen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MusicClient talks to the music-synthesis service and writes generated
// tracks under <audioRoot>/music/.
type MusicClient struct {
	baseURL    string
	apiKey     string
	audioRoot  string
	format     string
	httpClient HTTPClient
}

func NewMusicClient(baseURL, apiKey, audioRoot, format string, httpClient HTTPClient) *MusicClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &MusicClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		audioRoot:  audioRoot,
		format:     format,
		httpClient: httpClient,
	}
}

type musicAPIRequest struct {
	Prompt          string   `json:"prompt"`
	DurationSeconds int      `json:"duration_seconds"`
	Tags            []string `json:"tags,omitempty"`
	Format          string   `json:"format"`
}

type musicAPIResponse struct {
	AudioB64        string  `json:"audio_b64"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// GenerateTrack produces a music track from a text prompt.
func (c *MusicClient) GenerateTrack(ctx context.Context, req MusicRequest) (MusicResult, error) {
	body, err := json.Marshal(musicAPIRequest{
		Prompt:          req.Prompt,
		DurationSeconds: req.DurationSeconds,
		Tags:            req.Tags,
		Format:          c.format,
	})
	if err != nil {
		return MusicResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tracks", bytes.NewBuffer(body))
	if err != nil {
		return MusicResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return MusicResult{}, fmt.Errorf("music request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return MusicResult{}, fmt.Errorf("music request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result musicAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return MusicResult{}, fmt.Errorf("failed to decode music response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioB64)
	if err != nil {
		return MusicResult{}, fmt.Errorf("failed to decode audio data: %w", err)
	}

	dir := filepath.Join(c.audioRoot, "music")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return MusicResult{}, fmt.Errorf("failed to create music dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", req.BaseName, c.format))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return MusicResult{}, fmt.Errorf("failed to write track: %w", err)
	}

	title := result.Title
	if title == "" {
		title = req.BaseName
	}
	duration := result.DurationSeconds
	if duration <= 0 {
		duration = float64(req.DurationSeconds)
	}

	return MusicResult{Path: path, Title: title, Duration: duration}, nil
}
