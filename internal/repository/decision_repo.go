package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/utils/pagination"
)

// DecisionRepo provides data access methods for the Decision model.
// It encapsulates all queries related to likes/passes between users.
type DecisionRepo struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new repository bound to the given DB connection.
func NewDecisionRepository(database *gorm.DB) *DecisionRepo {
	return &DecisionRepo{db: database}
}

// Ensure inserts an empty decision for the pair if none exists.
//
// Behavior:
//   - INSERT ... ON CONFLICT (pair_key) DO NOTHING, then read back.
//   - Concurrent callers converge on the same row; nobody overwrites flags.
//
// Example:
//
//	d, err := repo.Ensure(ctx, db.NewPair("u1", "u2"))
func (r *DecisionRepo) Ensure(ctx context.Context, pair db.Pair) (*db.Decision, error) {
	decision := db.Decision{
		PairKey: pair.Key,
		UserLo:  pair.Lo,
		UserHi:  pair.Hi,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).
		Create(&decision).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, pair.Key)
}

func (r *DecisionRepo) Get(ctx context.Context, pairKey string) (*db.Decision, error) {
	var d db.Decision
	if err := r.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&d).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// MarkLiked sets the acting side's like flag.
//
// Behavior:
//   - UPDATE decisions SET lo_liked = true, lo_liked_at = ? WHERE pair_key = ? AND lo_liked = false
//     (hi_* columns when userID is the higher id).
//   - Only that side's columns are written, so a concurrent like from the other
//     side is never lost.
//   - Returns false when the like was already recorded (idempotent).
func (r *DecisionRepo) MarkLiked(ctx context.Context, pair db.Pair, userID string, at time.Time) (bool, error) {
	side, err := sideOf(pair, userID)
	if err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("pair_key = ? AND "+side+"_liked = ?", pair.Key, false).
		Updates(map[string]any{side + "_liked": true, side + "_liked_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkPassed sets the acting side's pass flag. A prior like stays recorded.
func (r *DecisionRepo) MarkPassed(ctx context.Context, pair db.Pair, userID string, _ time.Time) error {
	side, err := sideOf(pair, userID)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("pair_key = ? AND "+side+"_passed = ?", pair.Key, false).
		Update(side+"_passed", true).Error
}

// PromoteToMatch performs the one-way NoMatch → Match transition.
//
// Behavior:
//   - UPDATE ... SET is_match = true, matched_at = ? WHERE pair_key = ? AND lo_liked AND hi_liked AND is_match = false
//   - The row-level write makes the transition linearizable: of any number of
//     concurrent callers exactly one sees RowsAffected == 1.
func (r *DecisionRepo) PromoteToMatch(ctx context.Context, pairKey string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("pair_key = ? AND lo_liked = ? AND hi_liked = ? AND is_match = ?", pairKey, true, true, false).
		Updates(map[string]any{"is_match": true, "matched_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecidedIDs returns every user the given user liked or passed.
func (r *DecisionRepo) DecidedIDs(ctx context.Context, userID string) ([]string, error) {
	var asLo, asHi []string
	if err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("user_lo = ? AND (lo_liked = ? OR lo_passed = ?)", userID, true, true).
		Pluck("user_hi", &asLo).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("user_hi = ? AND (hi_liked = ? OR hi_passed = ?)", userID, true, true).
		Pluck("user_lo", &asHi).Error; err != nil {
		return nil, err
	}
	return append(asLo, asHi...), nil
}

// GetLikers returns pending likes addressed to userID.
//
// Behavior:
//   - The other side liked, userID has neither liked back nor passed, and the pair is not matched.
//   - Ordered by liked_at DESC, liker id DESC.
//   - Supports keyset pagination: only rows strictly after cursor are returned.
//   - userID may sit on either side of a pair, so each side is queried with its own
//     ordered, limited statement and the two pages are merged.
//
// Example:
//
//	repo.GetLikers(ctx, "u42", pagination.Cursor{}, 20) // first 20 people who liked u42
func (r *DecisionRepo) GetLikers(ctx context.Context, userID string, cursor pagination.Cursor, limit int) ([]Liker, error) {
	if limit <= 0 {
		return nil, nil
	}

	// userID is hi: liker is lo
	asHi, err := r.likersOnSide(ctx, userID, "hi", "lo", cursor, limit)
	if err != nil {
		return nil, err
	}
	// userID is lo: liker is hi
	asLo, err := r.likersOnSide(ctx, userID, "lo", "hi", cursor, limit)
	if err != nil {
		return nil, err
	}

	likers := append(asHi, asLo...)
	sort.Slice(likers, func(i, j int) bool {
		if !likers[i].LikedAt.Equal(likers[j].LikedAt) {
			return likers[i].LikedAt.After(likers[j].LikedAt)
		}
		return likers[i].UserID > likers[j].UserID
	})
	if len(likers) > limit {
		likers = likers[:limit]
	}
	return likers, nil
}

func (r *DecisionRepo) likersOnSide(
	ctx context.Context,
	userID, me, them string,
	cursor pagination.Cursor,
	limit int,
) ([]Liker, error) {
	likedAt := them + "_liked_at"
	likerCol := "user_" + them

	query := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("user_"+me+" = ?", userID).
		Where(them+"_liked = ? AND "+me+"_liked = ? AND "+me+"_passed = ? AND is_match = ?", true, false, false, false).
		Order(likedAt + " DESC").
		Order(likerCol + " DESC").
		Limit(limit)

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.Time()
		query = query.Where(
			fmt.Sprintf("(%s < ? OR (%s = ? AND %s < ?))", likedAt, likedAt, likerCol),
			ts, ts, cursor.ID,
		)
	}

	var decisions []db.Decision
	if err := query.Find(&decisions).Error; err != nil {
		return nil, err
	}

	out := make([]Liker, 0, len(decisions))
	for _, d := range decisions {
		liker := d.Other(userID)
		l := Liker{UserID: liker}
		if at := d.LikedAt(liker); at != nil {
			l.LikedAt = *at
		}
		out = append(out, l)
	}
	return out, nil
}

// CountLikers returns how many pending likes are addressed to userID.
// Used in conjunction with Redis cache (DB is fallback).
func (r *DecisionRepo) CountLikers(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("is_match = ?", false).
		Where(r.db.
			Where("user_hi = ? AND lo_liked = ? AND hi_liked = ? AND hi_passed = ?", userID, true, false, false).
			Or("user_lo = ? AND hi_liked = ? AND lo_liked = ? AND lo_passed = ?", userID, true, false, false)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func sideOf(pair db.Pair, userID string) (string, error) {
	switch userID {
	case pair.Lo:
		return "lo", nil
	case pair.Hi:
		return "hi", nil
	}
	return "", fmt.Errorf("user %q is not part of pair %s", userID, pair.Key)
}
