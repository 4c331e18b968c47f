package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-connect/internal/config"
)

func TestBaseLanguage(t *testing.T) {
	assert.Equal(t, "en", BaseLanguage("EN"))
	assert.Equal(t, "fr", BaseLanguage("fr-CA"))
	assert.Equal(t, "pt", BaseLanguage(" pt_BR "))
	assert.Equal(t, "", BaseLanguage(""))

	assert.True(t, SameLanguage("en-US", "en-GB"))
	assert.False(t, SameLanguage("en-US", "es-MX"))
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := &config.Config{}

	tr, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "noop", tr.Name())

	cfg.Translation.Provider = "mock"
	tr, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mock", tr.Name())

	cfg.Translation.Provider = "libretranslate"
	cfg.Translation.Endpoint = "http://localhost:5000/"
	tr, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "libretranslate", tr.Name())

	cfg.Translation.Provider = "babelfish"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var tr Translator = Noop{}
	assert.False(t, tr.SupportsLocales("en", "fr"))

	res, err := tr.Translate(context.Background(), "hello", "en", "fr")
	assert.ErrorIs(t, err, ErrUnsupportedPair)
	assert.Empty(t, res.Text)

	lang, err := tr.DetectLanguage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "und", lang)
}

func TestMock(t *testing.T) {
	var tr Translator = Mock{}
	res, err := tr.Translate(context.Background(), "hello", "en-US", "fr-FR")
	require.NoError(t, err)
	assert.Equal(t, "[fr] hello", res.Text)
	assert.Equal(t, 1.0, res.Confidence)

	_, err = tr.Translate(context.Background(), "hello", "en-US", "en-GB")
	assert.ErrorIs(t, err, ErrUnsupportedPair)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Translate(ctx, "hello", "en", "fr")
	assert.ErrorIs(t, err, context.Canceled)
}

func newLibreServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/translate", func(w http.ResponseWriter, r *http.Request) {
		var req libreTranslateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.APIKey != "secret" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(libreTranslateResponse{TranslatedText: req.Target + ":" + req.Q})
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"confidence":40,"language":"es"},{"confidence":90,"language":"fr"}]`))
	})
	mux.HandleFunc("/languages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"code":"en","name":"English","targets":["fr","es"]},{"code":"fr","name":"French","targets":["en"]}]`))
	})
	mux.HandleFunc("/slow/translate", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"translatedText":"late"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLibreTranslate_Translate(t *testing.T) {
	srv := newLibreServer(t)
	lt := NewLibreTranslate(srv.URL, "secret", time.Second)

	res, err := lt.Translate(context.Background(), "hello", "en-US", "fr-FR")
	require.NoError(t, err)
	assert.Equal(t, "fr:hello", res.Text)
	assert.Equal(t, 1.0, res.Confidence)

	_, err = NewLibreTranslate(srv.URL, "wrong", time.Second).Translate(context.Background(), "hello", "en", "fr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestLibreTranslate_Timeout(t *testing.T) {
	srv := newLibreServer(t)
	lt := NewLibreTranslate(srv.URL+"/slow", "", 50*time.Millisecond)

	_, err := lt.Translate(context.Background(), "hello", "en", "fr")
	assert.Error(t, err)
}

func TestLibreTranslate_DetectAndLanguages(t *testing.T) {
	srv := newLibreServer(t)
	lt := NewLibreTranslate(srv.URL, "", time.Second)

	lang, err := lt.DetectLanguage(context.Background(), "bonjour")
	require.NoError(t, err)
	assert.Equal(t, "fr", lang)

	// before Refresh: any distinct pair
	assert.True(t, lt.SupportsLocales("en", "ja"))
	assert.False(t, lt.SupportsLocales("en-US", "en-GB"))

	require.NoError(t, lt.Refresh(context.Background()))
	assert.True(t, lt.SupportsLocales("en-US", "fr-FR"))
	assert.False(t, lt.SupportsLocales("en", "ja"))
	assert.False(t, lt.SupportsLocales("fr", "es"))

	_, err = lt.Translate(context.Background(), "hello", "fr", "es")
	assert.ErrorIs(t, err, ErrUnsupportedPair)
}

func TestWarmLoadsLanguageTable(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Warm(ctx, Noop{}))
	require.NoError(t, Warm(ctx, Mock{}))

	srv := newLibreServer(t)
	lt := NewLibreTranslate(srv.URL, "", time.Second)
	require.True(t, lt.SupportsLocales("en", "ja"))

	require.NoError(t, Warm(ctx, lt))
	assert.False(t, lt.SupportsLocales("en", "ja"))
	assert.True(t, lt.SupportsLocales("en", "fr"))

	srv.Close()
	assert.Error(t, Warm(ctx, NewLibreTranslate(srv.URL, "", time.Second)))
}
