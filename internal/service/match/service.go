package match

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/oggyb/muzz-connect/internal/app"
	"github.com/oggyb/muzz-connect/internal/conversation"
	"github.com/oggyb/muzz-connect/internal/db"
	svcErr "github.com/oggyb/muzz-connect/internal/errors"
	"github.com/oggyb/muzz-connect/internal/events"
	"github.com/oggyb/muzz-connect/internal/geo"
	"github.com/oggyb/muzz-connect/internal/repository"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var tracer = otel.Tracer("github.com/oggyb/muzz-connect/internal/service/match")

// Service implements the Match API: likes, passes and the liked-you inbox.
// It contains the business logic on top of the repository and cache layers.
type Service struct {
	appCtx        *app.AppContext
	conversations *conversation.Gateway
}

// NewMatchService creates a new Match service with dependencies from AppContext.
func NewMatchService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:        appCtx,
		conversations: conversation.NewGateway(appCtx.Repos.Conversations),
	}
}

// Like records that UserID likes TargetID and reconciles a mutual like into a match.
//
// Behavior:
//   - Liking yourself is InvalidAction; an unknown profile is NotFound.
//   - The like flag is set with a single conditional update, so repeats are no-ops.
//   - When both sides have liked, the conversation is created first and then
//     the record is flipped to matched. Only the caller that wins the flip
//     publishes match.created.
//   - Liking again after a match returns the existing conversation.
//
// Example:
//
//	svc.Like(ctx, &LikeRequest{UserID: "1", TargetID: "2"})
func (s *Service) Like(ctx context.Context, req *LikeRequest) (resp *LikeResponse, err error) {
	ctx, span := tracer.Start(ctx, "match.Like", trace.WithAttributes(
		attribute.String("user", req.UserID),
		attribute.String("target", req.TargetID),
	))
	defer endSpan(span, &err)

	log := s.appCtx.Logger.With("op", "Like", "actor", req.UserID, "target", req.TargetID)
	log.Debug("Like called")

	actor, _, err := s.loadPair(ctx, req.UserID, req.TargetID)
	if err != nil {
		return nil, err
	}

	now := s.appCtx.Now()
	rules := s.appCtx.Regions.Resolve(actor.Region)
	if geo.Age(actor.BirthDate, now) < rules.MinAge {
		return nil, svcErr.PolicyViolation("user is below the region minimum age")
	}

	decisions := s.appCtx.Repos.Decisions
	pair := db.NewPair(req.UserID, req.TargetID)
	if _, err := decisions.Ensure(ctx, pair); err != nil {
		return nil, svcErr.Unavailable("ensure decision", err)
	}

	newLike, err := decisions.MarkLiked(ctx, pair, req.UserID, now)
	if err != nil {
		return nil, svcErr.Unavailable("record like", err)
	}
	if newLike {
		s.invalidateCounts(ctx, log, req.TargetID)
	}

	record, err := decisions.Get(ctx, pair.Key)
	if err != nil {
		return nil, svcErr.Unavailable("read decision", err)
	}

	if record.IsMatch {
		conv, err := s.conversations.GetOrCreate(ctx, pair.Key, pair)
		if err != nil {
			return nil, svcErr.Unavailable("conversation lookup", err)
		}
		log.Debug("already matched", "conversation", conv.ID)
		return &LikeResponse{IsMatch: true, MatchID: pair.Key, ConversationID: conv.ID}, nil
	}
	if !record.BothLiked() {
		return &LikeResponse{}, nil
	}

	// conversation first: once is_match is visible, its conversation must exist
	conv, err := s.conversations.GetOrCreate(ctx, pair.Key, pair)
	if err != nil {
		return nil, svcErr.Unavailable("create conversation", err)
	}

	// A failure here leaves both likes and the conversation in place with
	// is_match still false. Retrying either like lands back on this path,
	// reuses the conversation and finishes the promotion.
	won, err := decisions.PromoteToMatch(ctx, pair.Key, now)
	if err != nil {
		return nil, svcErr.Unavailable("promote match", err)
	}
	if won {
		log.Info("match created", "match", pair.Key, "conversation", conv.ID)
		span.SetAttributes(attribute.Bool("match.created", true))
		s.invalidateCounts(ctx, log, pair.Lo, pair.Hi)
		s.publishMatch(ctx, log, pair, conv.ID, now)
	}

	return &LikeResponse{IsMatch: true, MatchID: pair.Key, ConversationID: conv.ID}, nil
}

// Pass records that UserID is not interested in TargetID.
//
// Behavior:
//   - Passing yourself is InvalidAction; an unknown profile is NotFound.
//   - Never creates a match and never clears an earlier like, on either side.
//   - Idempotent; removes TargetID from UserID's liked-you inbox.
func (s *Service) Pass(ctx context.Context, req *PassRequest) (resp *PassResponse, err error) {
	ctx, span := tracer.Start(ctx, "match.Pass", trace.WithAttributes(
		attribute.String("user", req.UserID),
		attribute.String("target", req.TargetID),
	))
	defer endSpan(span, &err)

	log := s.appCtx.Logger.With("op", "Pass", "actor", req.UserID, "target", req.TargetID)
	log.Debug("Pass called")

	if _, _, err := s.loadPair(ctx, req.UserID, req.TargetID); err != nil {
		return nil, err
	}

	decisions := s.appCtx.Repos.Decisions
	pair := db.NewPair(req.UserID, req.TargetID)
	if _, err := decisions.Ensure(ctx, pair); err != nil {
		return nil, svcErr.Unavailable("ensure decision", err)
	}
	if err := decisions.MarkPassed(ctx, pair, req.UserID, s.appCtx.Now()); err != nil {
		return nil, svcErr.Unavailable("record pass", err)
	}
	s.invalidateCounts(ctx, log, req.UserID)

	return &PassResponse{OK: true}, nil
}

// ListLikedYou returns the users whose like UserID has not answered yet.
//
// Behavior:
//   - Excludes matched pairs and users UserID passed.
//   - Newest like first; paginationToken continues where the previous page stopped.
//   - NextPaginationToken is empty on the last page.
//
// Example:
//
//	svc.ListLikedYou(ctx, &ListLikedYouRequest{UserID: "42"})
func (s *Service) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (resp *ListLikedYouResponse, err error) {
	ctx, span := tracer.Start(ctx, "match.ListLikedYou")
	defer endSpan(span, &err)

	s.appCtx.Logger.Debug("ListLikedYou called", "recipient", req.UserID, "token", req.PaginationToken)

	if req.UserID == "" {
		return nil, svcErr.InvalidArgument("user_id is required")
	}
	cursor, err := pagination.Decode(req.PaginationToken)
	if err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	// one extra row tells us whether another page exists
	likers, err := s.appCtx.Repos.Decisions.GetLikers(ctx, req.UserID, cursor, limit+1)
	if err != nil {
		s.appCtx.Logger.Error("GetLikers failed", "err", err)
		return nil, svcErr.Unavailable("list likers", err)
	}

	resp = &ListLikedYouResponse{Likers: make([]Liker, 0, len(likers))}
	if len(likers) > limit {
		likers = likers[:limit]
		last := likers[len(likers)-1]
		token, err := pagination.Encode(pagination.At(last.UserID, last.LikedAt))
		if err != nil {
			return nil, err
		}
		resp.NextPaginationToken = token
	}
	for _, l := range likers {
		resp.Likers = append(resp.Likers, Liker{
			UserID:        l.UserID,
			UnixTimestamp: l.LikedAt.UnixMilli(),
		})
	}

	s.appCtx.Logger.Debug("ListLikedYou result", "liker_count", len(resp.Likers), "next_token", resp.NextPaginationToken)
	return resp, nil
}

// CountLikedYou returns how many likes UserID has not answered yet.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID), refreshing its TTL.
//  2. On miss or Redis failure, falls back to the store via CountLikers.
//  3. On a store read, caches the count with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, req *CountLikedYouRequest) (resp *CountLikedYouResponse, err error) {
	ctx, span := tracer.Start(ctx, "match.CountLikedYou")
	defer endSpan(span, &err)

	if req.UserID == "" {
		return nil, svcErr.InvalidArgument("user_id is required")
	}

	rc := s.appCtx.RedisCache
	n, hit, err := rc.GetLikeCount(ctx, req.UserID)
	if err != nil {
		s.appCtx.Logger.Warn("like count cache read failed", "user", req.UserID, "err", err)
	}
	if hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &CountLikedYouResponse{Count: n}, nil
	}

	count, err := s.appCtx.Repos.Decisions.CountLikers(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Unavailable("count likers", err)
	}
	if err := rc.SetLikeCount(ctx, req.UserID, count); err != nil {
		s.appCtx.Logger.Warn("like count cache write failed", "user", req.UserID, "err", err)
	}
	return &CountLikedYouResponse{Count: count}, nil
}

// loadPair validates the two ids and loads both profiles concurrently.
func (s *Service) loadPair(ctx context.Context, actorID, targetID string) (*db.Profile, *db.Profile, error) {
	if actorID == "" || targetID == "" {
		return nil, nil, svcErr.InvalidArgument("user_id and target_id are required")
	}
	if actorID == targetID {
		return nil, nil, svcErr.InvalidAction("cannot decide on yourself")
	}

	var actor, target *db.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		actor, err = s.appCtx.Repos.Profiles.GetByID(gctx, actorID)
		return err
	})
	g.Go(func() (err error) {
		target, err = s.appCtx.Repos.Profiles.GetByID(gctx, targetID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, svcErr.NotFound("profile")
		}
		return nil, nil, svcErr.Unavailable("profile lookup", err)
	}
	return actor, target, nil
}

// invalidateCounts drops cached liked-you counts. Failures only cost a stale
// count until the TTL runs out, so they are logged, not returned.
func (s *Service) invalidateCounts(ctx context.Context, log *slog.Logger, userIDs ...string) {
	for _, id := range userIDs {
		if err := s.appCtx.RedisCache.InvalidateLikeCount(ctx, id); err != nil {
			log.Warn("like count invalidation failed", "user", id, "err", err)
		}
	}
}

func (s *Service) publishMatch(ctx context.Context, log *slog.Logger, pair db.Pair, conversationID string, at time.Time) {
	for _, userID := range []string{pair.Lo, pair.Hi} {
		other := pair.Hi
		if userID == pair.Hi {
			other = pair.Lo
		}
		err := s.appCtx.Publisher.Publish(ctx, events.Event{
			Type:   events.TypeMatchCreated,
			UserID: userID,
			At:     at,
			Payload: events.MatchCreated{
				MatchID:        pair.Key,
				ConversationID: conversationID,
				WithUserID:     other,
				MatchedAt:      at,
			},
		})
		if err != nil {
			log.Warn("publish match event failed", "user", userID, "err", err)
		}
	}
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
