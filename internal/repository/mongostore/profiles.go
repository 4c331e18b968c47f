// Package mongostore serves the profile store from MongoDB, using a 2dsphere
// index for the discovery radius query.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/geo"
	"github.com/oggyb/muzz-connect/internal/repository"
)

const collectionName = "profiles"

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type preferencesDoc struct {
	Genders       []string `bson:"genders"`
	MinAge        int      `bson:"minAge"`
	MaxAge        int      `bson:"maxAge"`
	MaxDistanceKm float64  `bson:"maxDistanceKm"`
	AutoTranslate bool     `bson:"autoTranslate"`
}

type profileDoc struct {
	ID           string         `bson:"_id"`
	Email        string         `bson:"email"`
	DisplayName  string         `bson:"displayName"`
	BirthDate    time.Time      `bson:"birthDate"`
	Gender       string         `bson:"gender"`
	Location     GeoPoint       `bson:"location"`
	Region       string         `bson:"region"`
	Locale       string         `bson:"locale"`
	Preferences  preferencesDoc `bson:"preferences"`
	Active       bool           `bson:"active"`
	Verified     bool           `bson:"verified"`
	Online       bool           `bson:"online"`
	LastActiveAt time.Time      `bson:"lastActiveAt"`
	CreatedAt    time.Time      `bson:"createdAt"`
	UpdatedAt    time.Time      `bson:"updatedAt"`
}

func toDoc(p *db.Profile) profileDoc {
	return profileDoc{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		BirthDate:   p.BirthDate.UTC(),
		Gender:      p.Gender,
		Location:    GeoPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}},
		Region:      p.Region,
		Locale:      p.Locale,
		Preferences: preferencesDoc{
			Genders:       p.Preferences.Genders,
			MinAge:        p.Preferences.MinAge,
			MaxAge:        p.Preferences.MaxAge,
			MaxDistanceKm: p.Preferences.MaxDistanceKm,
			AutoTranslate: p.Preferences.AutoTranslate,
		},
		Active:       p.Active,
		Verified:     p.Verified,
		Online:       p.Online,
		LastActiveAt: p.LastActiveAt.UTC(),
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func (d profileDoc) toProfile() db.Profile {
	p := db.Profile{
		ID:          d.ID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		BirthDate:   d.BirthDate.UTC(),
		Gender:      d.Gender,
		Region:      d.Region,
		Locale:      d.Locale,
		Preferences: db.Preferences{
			Genders:       d.Preferences.Genders,
			MinAge:        d.Preferences.MinAge,
			MaxAge:        d.Preferences.MaxAge,
			MaxDistanceKm: d.Preferences.MaxDistanceKm,
			AutoTranslate: d.Preferences.AutoTranslate,
		},
		Active:       d.Active,
		Verified:     d.Verified,
		Online:       d.Online,
		LastActiveAt: d.LastActiveAt.UTC(),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if len(d.Location.Coordinates) == 2 {
		p.Longitude = d.Location.Coordinates[0]
		p.Latitude = d.Location.Coordinates[1]
	}
	return p
}

// ProfileRepository implements repository.ProfileRepository over a MongoDB collection.
type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(database *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: database.Collection(collectionName)}
}

// Connect dials MongoDB and pings it.
func Connect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the 2dsphere discovery index and the unique email index.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}, {Key: "region", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("discovery_geo"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
	})
	return err
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*db.Profile, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*db.Profile, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *ProfileRepository) findOne(ctx context.Context, filter bson.M) (*db.Profile, error) {
	var doc profileDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	p := doc.toProfile()
	return &p, nil
}

// FindNearby uses $nearSphere, which already returns documents nearest first.
// The distance is recomputed with haversine for display.
func (r *ProfileRepository) FindNearby(ctx context.Context, q repository.NearbyQuery) ([]repository.NearbyProfile, error) {
	if q.Limit <= 0 || q.RadiusKm <= 0 {
		return nil, nil
	}

	filter := bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry": GeoPoint{
					Type:        "Point",
					Coordinates: []float64{q.Center.Lon, q.Center.Lat},
				},
				"$maxDistance": q.RadiusKm * 1000, // meters
			},
		},
		"active": true,
		"region": q.Region,
	}
	if len(q.Genders) > 0 {
		filter["gender"] = bson.M{"$in": q.Genders}
	}
	birth := bson.M{}
	if !q.MaxBirth.IsZero() {
		birth["$lt"] = q.MaxBirth.AddDate(0, 0, 1)
	}
	if !q.MinBirth.IsZero() {
		birth["$gte"] = q.MinBirth.AddDate(0, 0, 1)
	}
	if len(birth) > 0 {
		filter["birthDate"] = birth
	}
	if q.VerifiedOnly {
		filter["verified"] = true
	}
	if len(q.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": q.ExcludeIDs}
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetLimit(int64(q.Limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []profileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]repository.NearbyProfile, 0, len(docs))
	for _, d := range docs {
		p := d.toProfile()
		out = append(out, repository.NearbyProfile{
			Profile:    p,
			DistanceKm: geo.DistanceKm(q.Center, geo.Point{Lat: p.Latitude, Lon: p.Longitude}),
		})
	}
	return out, nil
}

func (r *ProfileRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"online": true, "lastActiveAt": at.UTC(), "updatedAt": time.Now().UTC()}},
	)
	return err
}

func (r *ProfileRepository) Save(ctx context.Context, p *db.Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, toDoc(p), options.Replace().SetUpsert(true))
	return err
}
