// Package voice talks to the ElevenLabs speech API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"veron/internal/apperr"
	"veron/internal/config"
)

const (
	serviceName     = "voice"
	DefaultTimeout  = 60 * time.Second
	maxAudioBytes   = 25 << 20
	maxJSONBytes    = 4 << 20
	defaultLanguage = "auto"
)

var errNotConfigured = errors.New("ElevenLabs API key not configured")

// Voice is one entry of the provider's voice catalogue. Unknown fields are kept.
type Voice = map[string]any

type Service struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
}

func NewService(cfg config.VoiceConfig, client *http.Client) *Service {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Service{
		apiKey:  cfg.APIKey,
		voiceID: cfg.VoiceID,
		modelID: cfg.ModelID,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
	}
}

// Configured reports whether an API key is set.
func (s *Service) Configured() bool {
	return s.apiKey != ""
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// TextToSpeech returns MPEG audio for text.
func (s *Service) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	if !s.Configured() {
		return nil, apperr.Upstream(serviceName, apperr.CategoryUnavailable, errNotConfigured)
	}
	body, err := json.Marshal(ttsRequest{
		Text:          text,
		ModelID:       s.modelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}
	endpoint := s.baseURL + "/v1/text-to-speech/" + url.PathEscape(s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	return s.do(req, maxAudioBytes)
}

type sttResponse struct {
	Text string `json:"text"`
}

// SpeechToText transcribes audio. An empty or "auto" language lets the provider detect it.
func (s *Service) SpeechToText(ctx context.Context, filename, contentType string, audio io.Reader, language string) (string, error) {
	if !s.Configured() {
		return "", apperr.Upstream(serviceName, apperr.CategoryUnavailable, errNotConfigured)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(audioPartHeader(filename, contentType))
	if err != nil {
		return "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if language != "" && language != defaultLanguage {
		if err := mw.WriteField("language", language); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/speech-to-text", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	raw, err := s.do(req, maxJSONBytes)
	if err != nil {
		return "", err
	}
	var out sttResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperr.Upstream(serviceName, apperr.CategoryUnavailable, fmt.Errorf("decode stt response: %w", err))
	}
	return out.Text, nil
}

// Voices lists the voices available to the account.
func (s *Service) Voices(ctx context.Context) ([]Voice, error) {
	if !s.Configured() {
		return nil, apperr.Upstream(serviceName, apperr.CategoryUnavailable, errNotConfigured)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	raw, err := s.do(req, maxJSONBytes)
	if err != nil {
		return nil, err
	}
	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Upstream(serviceName, apperr.CategoryUnavailable, fmt.Errorf("decode voices: %w", err))
	}
	if out.Voices == nil {
		out.Voices = []Voice{}
	}
	return out.Voices, nil
}

func (s *Service) do(req *http.Request, limit int64) ([]byte, error) {
	req.Header.Set("xi-api-key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(serviceName, apperr.CategoryUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, apperr.Upstream(serviceName, apperr.CategoryUnavailable, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(serviceName, statusCategory(resp.StatusCode),
			fmt.Errorf("ElevenLabs API error: %s", resp.Status))
	}
	return body, nil
}

func statusCategory(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperr.CategoryAccessDenied
	case code == http.StatusNotFound:
		return apperr.CategoryNotFound
	case code == http.StatusTooManyRequests:
		return apperr.CategoryThrottled
	case code >= 400 && code < 500:
		return apperr.CategoryInvalidRequest
	default:
		return apperr.CategoryUnavailable
	}
}
