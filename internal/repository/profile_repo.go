package repository

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/geo"
)

// ProfileRepo is the gorm-backed ProfileRepository.
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: database}
}

func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindNearby runs the discovery search.
//
// Behavior:
//   - SQL narrows to active, same-region profiles inside the radius bounding box,
//     matching gender set, birthdate window, verification and exclusions.
//   - Rows are pre-ordered by an equirectangular distance approximation and the
//     scan is capped, so huge regions do not load every profile.
//   - The exact haversine distance then drops corner hits outside the radius,
//     re-sorts nearest first and caps at q.Limit.
func (r *ProfileRepo) FindNearby(ctx context.Context, q NearbyQuery) ([]NearbyProfile, error) {
	if q.Limit <= 0 || q.RadiusKm <= 0 {
		return nil, nil
	}

	minLat, maxLat, minLon, maxLon := geo.BoundingBox(q.Center, q.RadiusKm)
	query := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("active = ? AND region = ?", true, q.Region).
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLon, maxLon)

	if len(q.Genders) > 0 {
		query = query.Where("gender IN ?", q.Genders)
	}
	// the window is in whole days; stored birthdates may carry a time of day
	if !q.MaxBirth.IsZero() {
		query = query.Where("birth_date < ?", q.MaxBirth.AddDate(0, 0, 1))
	}
	if !q.MinBirth.IsZero() {
		query = query.Where("birth_date >= ?", q.MinBirth.AddDate(0, 0, 1))
	}
	if q.VerifiedOnly {
		query = query.Where("verified = ?", true)
	}
	if len(q.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", q.ExcludeIDs)
	}

	cosLat := math.Cos(q.Center.Lat * math.Pi / 180)
	query = query.Clauses(clause.OrderBy{
		Expression: clause.Expr{
			SQL:                "((latitude - ?) * (latitude - ?)) + ((longitude - ?) * ?) * ((longitude - ?) * ?)",
			Vars:               []any{q.Center.Lat, q.Center.Lat, q.Center.Lon, cosLat, q.Center.Lon, cosLat},
			WithoutParentheses: true,
		},
	})

	scan := q.Limit * 5
	if scan < 100 {
		scan = 100
	}

	var rows []db.Profile
	if err := query.Limit(scan).Find(&rows).Error; err != nil {
		return nil, err
	}
	return RankByDistance(rows, q.Center, q.RadiusKm, q.Limit), nil
}

// Touch marks the profile online and bumps its last-active time.
// Unknown ids are ignored.
func (r *ProfileRepo) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{"online": true, "last_active_at": at}).Error
}

func (r *ProfileRepo) Save(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// RankByDistance keeps profiles within radiusKm of center, nearest first, at most limit.
// Ties are broken by id so results are stable.
func RankByDistance(rows []db.Profile, center geo.Point, radiusKm float64, limit int) []NearbyProfile {
	out := make([]NearbyProfile, 0, len(rows))
	for _, p := range rows {
		d := geo.DistanceKm(center, geo.Point{Lat: p.Latitude, Lon: p.Longitude})
		if d > radiusKm {
			continue
		}
		out = append(out, NearbyProfile{Profile: p, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Profile.ID < out[j].Profile.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
