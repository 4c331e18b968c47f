package discovery

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/geo"
	"github.com/oggyb/muzz-connect/internal/region"
	"github.com/oggyb/muzz-connect/internal/repository"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// upper age bound when the seeker has none
	openMaxAge = 120
)

var tracer = otel.Tracer("github.com/oggyb/muzz-connect/internal/service/discovery")

// DiscoverRequest asks for the next batch of candidates for UserID.
type DiscoverRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// Candidate is what the seeker sees of another profile. Distance is rounded
// to whole kilometers for display.
type Candidate struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	DistanceKm  int    `json:"distance_km"`
	Verified    bool   `json:"verified"`
	Online      bool   `json:"online"`
	Locale      string `json:"locale,omitempty"`
}

type DiscoverResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Service implements the Discovery API on top of the profile and decision stores.
type Service struct {
	appCtx *app.AppContext
}

func NewDiscoveryService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx}
}

// Discover returns candidates for the seeker, nearest first.
//
// Behavior:
//   - Radius is the seeker's preference capped by the region maximum.
//   - Age preference becomes a birthdate window; gender preference a set filter.
//   - The seeker and everyone the seeker already liked or passed are excluded.
//   - Regions that require verification only surface verified profiles.
//   - A seeker younger than the region minimum age gets PolicyViolation.
//   - Any store failure is UpstreamUnavailable, never an empty result.
//   - The seeker is marked online as a side effect.
//
// Example:
//
//	svc.Discover(ctx, &DiscoverRequest{UserID: "u1", Limit: 10})
func (s *Service) Discover(ctx context.Context, req *DiscoverRequest) (resp *DiscoverResponse, err error) {
	ctx, span := tracer.Start(ctx, "discovery.Discover")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := s.appCtx.Logger.With("op", "Discover", "user", req.UserID)
	log.Debug("Discover called", "limit", req.Limit)

	if req.UserID == "" {
		return nil, svcErr.InvalidArgument("user_id is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	seeker, err := s.appCtx.Repos.Profiles.GetByID(ctx, req.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, svcErr.NotFound("profile")
	} else if err != nil {
		log.Error("profile lookup failed", "err", err)
		return nil, svcErr.Unavailable("profile lookup", err)
	}

	now := s.appCtx.Now()
	rules := s.appCtx.Regions.Resolve(seeker.Region)
	if geo.Age(seeker.BirthDate, now) < rules.MinAge {
		return nil, svcErr.PolicyViolation("seeker is below the region minimum age")
	}

	decided, err := s.appCtx.Repos.Decisions.DecidedIDs(ctx, seeker.ID)
	if err != nil {
		log.Error("decided ids lookup failed", "err", err)
		return nil, svcErr.Unavailable("decision lookup", err)
	}

	q := buildQuery(seeker, rules, s.appCtx.Regions, now, limit)
	q.ExcludeIDs = append(decided, seeker.ID)
	span.SetAttributes(
		attribute.String("region", q.Region),
		attribute.Float64("radius_km", q.RadiusKm),
		attribute.Int("excluded", len(q.ExcludeIDs)),
	)

	hits, err := s.appCtx.Repos.Profiles.FindNearby(ctx, q)
	if err != nil {
		log.Error("nearby search failed", "err", err)
		return nil, svcErr.Unavailable("profile search", err)
	}

	if err := s.appCtx.Repos.Profiles.Touch(ctx, seeker.ID, now); err != nil {
		log.Warn("failed to touch seeker", "err", err)
	}

	resp = &DiscoverResponse{Candidates: make([]Candidate, 0, len(hits))}
	for _, h := range hits {
		resp.Candidates = append(resp.Candidates, Candidate{
			UserID:      h.Profile.ID,
			DisplayName: h.Profile.DisplayName,
			Age:         geo.Age(h.Profile.BirthDate, now),
			Gender:      h.Profile.Gender,
			DistanceKm:  geo.DisplayKm(h.DistanceKm),
			Verified:    h.Profile.Verified,
			Online:      h.Profile.Online,
			Locale:      h.Profile.Locale,
		})
	}

	log.Debug("Discover result", "candidates", len(resp.Candidates), "radius_km", q.RadiusKm)
	return resp, nil
}

// buildQuery turns the seeker's preferences and region rules into a store query.
// Unset preferences fall back to the region: no distance preference means the
// region cap, no minimum age means the region minimum.
func buildQuery(seeker *db.Profile, rules region.RuleSet, regions region.Provider, now time.Time, limit int) repository.NearbyQuery {
	pref := seeker.Preferences

	preferredKm := pref.MaxDistanceKm
	if preferredKm <= 0 {
		preferredKm = rules.MaxDistanceKm
	}

	minAge := pref.MinAge
	if minAge <= 0 {
		minAge = rules.MinAge
	}
	maxAge := pref.MaxAge
	if maxAge <= 0 {
		maxAge = openMaxAge
	}
	minBirth, maxBirth := geo.BirthdateWindow(now, minAge, maxAge)

	return repository.NearbyQuery{
		Center:       geo.Point{Lat: seeker.Latitude, Lon: seeker.Longitude},
		RadiusKm:     region.EffectiveRadius(regions, seeker.Region, preferredKm),
		Region:       seeker.Region,
		Genders:      pref.Genders,
		MinBirth:     minBirth,
		MaxBirth:     maxBirth,
		VerifiedOnly: rules.VerificationRequired,
		Limit:        limit,
	}
}
