package gen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurora-radio/internal/catalog"
	"aurora-radio/internal/models"
	"aurora-radio/internal/schedule"
)

// mockHTTPClient lets each test script the provider's responses.
type mockHTTPClient struct {
	DoFunc   func(req *http.Request) (*http.Response, error)
	requests []*http.Request
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.requests = append(m.requests, req)
	return m.DoFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestScriptClient_GenerateScript(t *testing.T) {
	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK,
				`{"script": "Good morning, you're with Ada and Felix.", "estimated_seconds": 12.5}`), nil
		},
	}
	client := NewScriptClient("https://scripts.example.com/", "test-key", mock)

	script, err := client.GenerateScript(context.Background(), ScriptRequest{
		SegmentType: models.SegmentTalk,
		ShowName:    "Morning Drive",
		Tone:        []string{"warm"},
		Presenters: []catalog.Presenter{
			{ID: "ada", Name: "Ada", Style: "curious"},
			{ID: "felix", Name: "Felix", Style: "dry humor"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Good morning, you're with Ada and Felix.", script.Text)
	assert.Equal(t, 12.5, script.EstimatedSeconds)

	require.Len(t, mock.requests, 1)
	req := mock.requests[0]
	assert.Equal(t, "https://scripts.example.com/v1/scripts", req.URL.String())
	assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))

	var sent map[string]interface{}
	body, _ := io.ReadAll(req.Body)
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "talk", sent["segment_type"])
	assert.Contains(t, sent["presenters"], "Ada (curious)")
}

func TestScriptClient_MergesSeasonalContext(t *testing.T) {
	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"script": "Ho ho ho."}`), nil
		},
	}
	client := NewScriptClient("https://scripts.example.com", "key", mock)

	_, err := client.GenerateScript(context.Background(), ScriptRequest{
		SegmentType: models.SegmentTalk,
		ShowName:    "Morning Drive",
		Topics:      []string{"local news"},
		Presenters:  []catalog.Presenter{{Name: "Ada"}},
		Seasonal: &schedule.SeasonalContext{
			Season:         "winter",
			Holiday:        "Christmas",
			Topics:         []string{"festive music"},
			ToneAdjustment: "warm and festive",
		},
	})
	require.NoError(t, err)

	var sent map[string]interface{}
	body, _ := io.ReadAll(mock.requests[0].Body)
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "winter", sent["season"])
	assert.Equal(t, "Christmas", sent["holiday"])
	assert.Contains(t, sent["topics"], "festive music")
	assert.Contains(t, sent["topics"], "local news")
	assert.Contains(t, sent["tone"], "warm and festive")
}

func TestScriptClient_Failures(t *testing.T) {
	t.Run("http error", func(t *testing.T) {
		mock := &mockHTTPClient{
			DoFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, fmt.Errorf("connection refused")
			},
		}
		client := NewScriptClient("https://scripts.example.com", "key", mock)
		_, err := client.GenerateScript(context.Background(), ScriptRequest{
			Presenters: []catalog.Presenter{{Name: "Ada"}},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "script request failed")
	})

	t.Run("non-200 status", func(t *testing.T) {
		mock := &mockHTTPClient{
			DoFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, `{"error": "rate limited"}`), nil
			},
		}
		client := NewScriptClient("https://scripts.example.com", "key", mock)
		_, err := client.GenerateScript(context.Background(), ScriptRequest{
			Presenters: []catalog.Presenter{{Name: "Ada"}},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "status 429")
	})

	t.Run("empty transcript", func(t *testing.T) {
		mock := &mockHTTPClient{
			DoFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"script": "   "}`), nil
			},
		}
		client := NewScriptClient("https://scripts.example.com", "key", mock)
		_, err := client.GenerateScript(context.Background(), ScriptRequest{
			Presenters: []catalog.Presenter{{Name: "Ada"}},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "empty transcript")
	})
}

func TestScriptClient_EstimateFallback(t *testing.T) {
	// 300 words at 150 wpm is exactly 120 seconds.
	text := strings.Repeat("word ", 300)
	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, fmt.Sprintf(`{"script": %q}`, text)), nil
		},
	}
	client := NewScriptClient("https://scripts.example.com", "key", mock)
	script, err := client.GenerateScript(context.Background(), ScriptRequest{
		Presenters: []catalog.Presenter{{Name: "Ada"}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 120.0, script.EstimatedSeconds, 0.01)
}

func TestEstimateSpokenSeconds(t *testing.T) {
	assert.InDelta(t, 60.0, EstimateSpokenSeconds(strings.Repeat("hello ", 150)), 0.01)
	assert.Equal(t, 0.0, EstimateSpokenSeconds(""))
}

func TestSpeechClient_Synthesize(t *testing.T) {
	audioRoot := t.TempDir()
	audioData := []byte("fake-mp3-bytes")

	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			body := fmt.Sprintf(`{"audio_b64": %q, "duration_seconds": 8.2}`,
				base64.StdEncoding.EncodeToString(audioData))
			return jsonResponse(http.StatusOK, body), nil
		},
	}
	client := NewSpeechClient("https://speech.example.com", "key", audioRoot, "mp3", mock)

	result, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:     "Hello listeners.",
		Voice:    "warm_female",
		Category: "commentary",
		BaseName: "seg_001_p01",
	})
	require.NoError(t, err)
	assert.Equal(t, 8.2, result.Duration)
	assert.Equal(t, filepath.Join(audioRoot, "commentary", "seg_001_p01.mp3"), result.Path)

	written, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, audioData, written)
}

func TestSpeechClient_DurationFallback(t *testing.T) {
	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			body := fmt.Sprintf(`{"audio_b64": %q}`,
				base64.StdEncoding.EncodeToString([]byte("x")))
			return jsonResponse(http.StatusOK, body), nil
		},
	}
	client := NewSpeechClient("https://speech.example.com", "key", t.TempDir(), "mp3", mock)

	// 150 words -> 60 seconds estimated when the service omits duration.
	result, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:     strings.Repeat("hello ", 150),
		Voice:    "warm_female",
		Category: "idents",
		BaseName: "ident_001",
	})
	require.NoError(t, err)
	assert.InDelta(t, 60.0, result.Duration, 0.01)
}

func TestSpeechClient_RejectsBadBase64(t *testing.T) {
	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"audio_b64": "!!!not-base64!!!"}`), nil
		},
	}
	client := NewSpeechClient("https://speech.example.com", "key", t.TempDir(), "mp3", mock)
	_, err := client.Synthesize(context.Background(), SpeechRequest{
		Text: "hi", Voice: "v", Category: "commentary", BaseName: "x",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decode audio data")
}

func TestMusicClient_GenerateTrack(t *testing.T) {
	audioRoot := t.TempDir()
	audioData := []byte("fake-track-bytes")

	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			body := fmt.Sprintf(`{"audio_b64": %q, "title": "Neon Rain", "duration_seconds": 182}`,
				base64.StdEncoding.EncodeToString(audioData))
			return jsonResponse(http.StatusOK, body), nil
		},
	}
	client := NewMusicClient("https://music.example.com", "key", audioRoot, "mp3", mock)

	result, err := client.GenerateTrack(context.Background(), MusicRequest{
		Prompt:          "late night synthwave",
		DurationSeconds: 180,
		BaseName:        "track_001",
	})
	require.NoError(t, err)
	assert.Equal(t, "Neon Rain", result.Title)
	assert.Equal(t, 182.0, result.Duration)
	assert.Equal(t, filepath.Join(audioRoot, "music", "track_001.mp3"), result.Path)

	written, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, audioData, written)

	require.Len(t, mock.requests, 1)
	assert.Equal(t, "https://music.example.com/v1/tracks", mock.requests[0].URL.String())
}

func TestMusicClient_MetadataFallbacks(t *testing.T) {
	mock := &mockHTTPClient{
		DoFunc: func(_ *http.Request) (*http.Response, error) {
			body := fmt.Sprintf(`{"audio_b64": %q}`,
				base64.StdEncoding.EncodeToString([]byte("x")))
			return jsonResponse(http.StatusOK, body), nil
		},
	}
	client := NewMusicClient("https://music.example.com", "key", t.TempDir(), "mp3", mock)

	result, err := client.GenerateTrack(context.Background(), MusicRequest{
		Prompt:          "ambient",
		DurationSeconds: 240,
		BaseName:        "track_042",
	})
	require.NoError(t, err)
	assert.Equal(t, "track_042", result.Title, "title falls back to base name")
	assert.Equal(t, 240.0, result.Duration, "duration falls back to requested length")
}
