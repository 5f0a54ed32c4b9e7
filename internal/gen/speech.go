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

// SpeechClient talks to the speech-synthesis service and writes the
// resulting clip under <audioRoot>/<category>/.
type SpeechClient struct {
	baseURL    string
	apiKey     string
	audioRoot  string
	format     string
	httpClient HTTPClient
}

func NewSpeechClient(baseURL, apiKey, audioRoot, format string, httpClient HTTPClient) *SpeechClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &SpeechClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		audioRoot:  audioRoot,
		format:     format,
		httpClient: httpClient,
	}
}

type speechAPIRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed,omitempty"`
	Format string  `json:"format"`
}

type speechAPIResponse struct {
	AudioB64        string  `json:"audio_b64"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Synthesize generates speech for one presenter's lines.
func (c *SpeechClient) Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	body, err := json.Marshal(speechAPIRequest{
		Text:   req.Text,
		Voice:  req.Voice,
		Speed:  req.Speed,
		Format: c.format,
	})
	if err != nil {
		return SpeechResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech", bytes.NewBuffer(body))
	if err != nil {
		return SpeechResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return SpeechResult{}, fmt.Errorf("speech request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result speechAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SpeechResult{}, fmt.Errorf("failed to decode speech response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioB64)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("failed to decode audio data: %w", err)
	}

	dir := filepath.Join(c.audioRoot, req.Category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SpeechResult{}, fmt.Errorf("failed to create %s dir: %w", req.Category, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", req.BaseName, c.format))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return SpeechResult{}, fmt.Errorf("failed to write speech clip: %w", err)
	}

	duration := result.DurationSeconds
	if duration <= 0 {
		duration = EstimateSpokenSeconds(req.Text)
	}

	return SpeechResult{Path: path, Duration: duration}, nil
}
