package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veron/internal/apperr"
	"veron/internal/config"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(config.VoiceConfig{
		APIKey:  "xi-test",
		VoiceID: "voice-1",
		ModelID: "eleven_multilingual_v2",
		BaseURL: srv.URL + "/",
	}, srv.Client())
}

func TestTextToSpeech(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "xi-test", r.Header.Get("xi-api-key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Good morning", body["text"])
		assert.Equal(t, "eleven_multilingual_v2", body["model_id"])
		settings := body["voice_settings"].(map[string]any)
		assert.Equal(t, 0.75, settings["similarity_boost"])
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3audio"))
	})

	audio, err := svc.TextToSpeech(context.Background(), "Good morning")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio)
}

func TestSpeechToTextSendsLanguage(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speech-to-text", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, fh, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "clip.webm", fh.Filename)
		assert.Equal(t, "RIFFdata", string(data))
		assert.Equal(t, "en", r.FormValue("language"))
		_, _ = w.Write([]byte(`{"text":"hello world"}`))
	})

	text, err := svc.SpeechToText(context.Background(), "clip.webm", "audio/webm", strings.NewReader("RIFFdata"), "en")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestSpeechToTextAutoLanguageOmitted(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["language"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	})
	_, err := svc.SpeechToText(context.Background(), "a.wav", "", strings.NewReader("x"), "auto")
	require.NoError(t, err)
}

func TestVoicesAndErrors(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/voices" {
			_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Rachel"}]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	voices, err := svc.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "Rachel", voices[0]["name"])

	_, err = svc.TextToSpeech(context.Background(), "hi")
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, apperr.CategoryAccessDenied, up.Category)
}

func TestMissingAPIKey(t *testing.T) {
	svc := NewService(config.VoiceConfig{BaseURL: "http://127.0.0.1:0"}, nil)
	assert.False(t, svc.Configured())
	_, err := svc.TextToSpeech(context.Background(), "hi")
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, apperr.CategoryUnavailable, up.Category)
	_, err = svc.Voices(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}
