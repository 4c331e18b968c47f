package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/translation"
)

const defaultTranslationTimeout = 3 * time.Second

// shouldTranslate decides, per message, whether the recipient gets a translation.
// All must hold: translation on for the deployment and for the recipient's
// region, different base languages, and the recipient opted in.
func (s *Service) shouldTranslate(sender, recipient *db.Profile) bool {
	if !s.appCtx.Config.Translation.Enabled {
		return false
	}
	if !s.appCtx.Regions.Resolve(recipient.Region).TranslationEnabled {
		return false
	}
	if translation.SameLanguage(s.localeOf(sender), s.localeOf(recipient)) {
		return false
	}
	return recipient.Preferences.AutoTranslate
}

// localeOf falls back to the region default for profiles without a locale.
func (s *Service) localeOf(p *db.Profile) string {
	if p.Locale != "" {
		return p.Locale
	}
	return s.appCtx.Regions.Resolve(p.Region).DefaultLocale
}

// translate runs the adapter under the configured timeout. Every failure is
// logged and swallowed: the message goes out untranslated.
//
// The adapter runs in its own goroutine so the deadline holds even for
// providers that ignore ctx; a result arriving after it is dropped.
func (s *Service) translate(ctx context.Context, log *slog.Logger, text, src, dst string) (*translation.Result, error) {
	tr := s.appCtx.Translator
	if !tr.SupportsLocales(src, dst) {
		return nil, svcErr.TranslationFailed(translation.ErrUnsupportedPair)
	}

	timeout := s.appCtx.Config.Translation.Timeout
	if timeout <= 0 {
		timeout = defaultTranslationTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res translation.Result
		err error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		res, err := tr.Translate(tctx, text, src, dst)
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-tctx.Done():
		return nil, svcErr.TranslationFailed(tctx.Err())
	}
	if out.err != nil {
		return nil, svcErr.TranslationFailed(out.err)
	}
	log.Debug("message translated",
		"provider", tr.Name(),
		"src", src,
		"dst", dst,
		"confidence", out.res.Confidence,
		"duration", time.Since(start),
	)
	return &out.res, nil
}
