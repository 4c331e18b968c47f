package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// LibreTranslate talks to a LibreTranslate-compatible HTTP API.
//
// Endpoints used:
//   - POST /translate {q, source, target, format, api_key}
//   - POST /detect    {q, api_key}
//   - GET  /languages
type LibreTranslate struct {
	endpoint string
	apiKey   string
	client   *http.Client

	mu        sync.RWMutex
	languages map[string]map[string]bool // source -> targets; nil until Refresh succeeds
}

// NewLibreTranslate creates a client. timeout bounds each HTTP round trip.
func NewLibreTranslate(endpoint, apiKey string, timeout time.Duration) *LibreTranslate {
	return &LibreTranslate{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type libreTranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreTranslateResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage *struct {
		Confidence float64 `json:"confidence"`
		Language   string  `json:"language"`
	} `json:"detectedLanguage,omitempty"`
	Error string `json:"error,omitempty"`
}

type libreDetectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type libreDetection struct {
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

type libreLanguage struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Targets []string `json:"targets"`
}

func (l *LibreTranslate) Name() string { return "libretranslate" }

func (l *LibreTranslate) Translate(ctx context.Context, text, src, dst string) (Result, error) {
	if !l.SupportsLocales(src, dst) {
		return Result{}, ErrUnsupportedPair
	}

	var out libreTranslateResponse
	err := l.post(ctx, "/translate", libreTranslateRequest{
		Q:      text,
		Source: BaseLanguage(src),
		Target: BaseLanguage(dst),
		Format: "text",
		APIKey: l.apiKey,
	}, &out)
	if err != nil {
		return Result{}, err
	}
	if out.TranslatedText == "" && text != "" {
		return Result{}, fmt.Errorf("libretranslate: empty translation")
	}

	// confidence is only reported for auto-detected sources
	confidence := 1.0
	if out.DetectedLanguage != nil {
		confidence = out.DetectedLanguage.Confidence / 100
	}
	return Result{Text: out.TranslatedText, Confidence: confidence}, nil
}

func (l *LibreTranslate) DetectLanguage(ctx context.Context, text string) (string, error) {
	var out []libreDetection
	if err := l.post(ctx, "/detect", libreDetectRequest{Q: text, APIKey: l.apiKey}, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "und", nil
	}
	best := out[0]
	for _, d := range out[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return BaseLanguage(best.Language), nil
}

// SupportsLocales checks the pair against the language table loaded by Refresh.
// Before a successful Refresh every pair of distinct base languages is assumed supported.
func (l *LibreTranslate) SupportsLocales(src, dst string) bool {
	s, d := BaseLanguage(src), BaseLanguage(dst)
	if s == "" || d == "" || s == d {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.languages == nil {
		return true
	}
	return l.languages[s][d]
}

// Refresh loads the provider's supported language pairs.
func (l *LibreTranslate) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/languages", nil)
	if err != nil {
		return err
	}
	var langs []libreLanguage
	if err := l.do(req, &langs); err != nil {
		return err
	}

	table := make(map[string]map[string]bool, len(langs))
	for _, lang := range langs {
		targets := make(map[string]bool, len(lang.Targets))
		for _, t := range lang.Targets {
			targets[BaseLanguage(t)] = true
		}
		table[BaseLanguage(lang.Code)] = targets
	}

	l.mu.Lock()
	l.languages = table
	l.mu.Unlock()
	return nil
}

func (l *LibreTranslate) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return l.do(req, out)
}

func (l *LibreTranslate) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("libretranslate: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("libretranslate: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("libretranslate: %s %s: %d %s", req.Method, req.URL.Path, resp.StatusCode, e.Error)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("libretranslate: decode: %w", err)
	}
	return nil
}
