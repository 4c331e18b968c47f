// Package translation provides the pluggable message translation capability.
// Every provider shares the Translator contract, so callers never branch on
// which one is active.
package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oggyb/muzz-connect/internal/config"
)

// ErrUnsupportedPair is returned when a provider cannot translate between two locales.
var ErrUnsupportedPair = errors.New("translation: unsupported locale pair")

// Result is a translated text and the provider's confidence in [0,1].
type Result struct {
	Text       string
	Confidence float64
}

// Translator is implemented by every translation backend.
type Translator interface {
	// Translate converts text from src to dst. Locales are BCP 47 tags ("fr-CA") or base codes ("fr").
	Translate(ctx context.Context, text, src, dst string) (Result, error)

	// DetectLanguage guesses the base language of text. "und" when unknown.
	DetectLanguage(ctx context.Context, text string) (string, error)

	// SupportsLocales reports whether Translate can handle the pair.
	SupportsLocales(src, dst string) bool

	// Name identifies the backend in logs.
	Name() string
}

// New picks the translator once, from configuration.
func New(cfg *config.Config) (Translator, error) {
	switch cfg.Translation.Provider {
	case "", "none", "noop":
		return Noop{}, nil
	case "mock":
		return Mock{}, nil
	case "libretranslate":
		return NewLibreTranslate(cfg.Translation.Endpoint, cfg.Translation.APIKey, cfg.Translation.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.Translation.Provider)
	}
}

// refresher is implemented by providers that load their language table remotely.
type refresher interface {
	Refresh(ctx context.Context) error
}

// Warm loads the provider's supported pairs once at startup, so unsupported
// pairs are rejected locally instead of costing a provider round trip.
// Providers without a remote table are left untouched.
func Warm(ctx context.Context, tr Translator) error {
	r, ok := tr.(refresher)
	if !ok {
		return nil
	}
	return r.Refresh(ctx)
}

// BaseLanguage reduces a locale to its lowercase base language.
// Examples:
//   - "EN" -> "en"
//   - "fr-CA" -> "fr"
//   - "pt_BR" -> "pt"
func BaseLanguage(locale string) string {
	lang := strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return lang
}

// SameLanguage reports whether two locales share a base language ("en-US" and "en-GB" do).
func SameLanguage(a, b string) bool {
	return BaseLanguage(a) == BaseLanguage(b)
}

// Noop is the default translator: it supports no pair.
type Noop struct{}

func (Noop) Translate(context.Context, string, string, string) (Result, error) {
	return Result{}, ErrUnsupportedPair
}

func (Noop) DetectLanguage(context.Context, string) (string, error) { return "und", nil }

func (Noop) SupportsLocales(string, string) bool { return false }

func (Noop) Name() string { return "noop" }

// Mock returns deterministic tagged output, e.g. "[fr] hello". For dev and tests.
type Mock struct{}

func (m Mock) Translate(ctx context.Context, text, src, dst string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !m.SupportsLocales(src, dst) {
		return Result{}, ErrUnsupportedPair
	}
	return Result{Text: fmt.Sprintf("[%s] %s", BaseLanguage(dst), text), Confidence: 1}, nil
}

func (Mock) DetectLanguage(context.Context, string) (string, error) { return "en", nil }

func (Mock) SupportsLocales(src, dst string) bool {
	s, d := BaseLanguage(src), BaseLanguage(dst)
	return s != "" && d != "" && s != d
}

func (Mock) Name() string { return "mock" }
