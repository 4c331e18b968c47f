package db

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type seedCity struct {
	Region string
	Locale string
	Lat    float64
	Lon    float64
}

var seedCities = []seedCity{
	{Region: "us-east", Locale: "en-US", Lat: 40.7128, Lon: -74.0060},
	{Region: "uk", Locale: "en-GB", Lat: 51.5074, Lon: -0.1278},
	{Region: "eu-fr", Locale: "fr-FR", Lat: 48.8566, Lon: 2.3522},
	{Region: "latam-mx", Locale: "es-MX", Lat: 19.4326, Lon: -99.1332},
}

// SeedProfiles resets the database and populates it with demo profiles.
//
// Behavior:
//  1. Clears existing messages, conversations, decisions and profiles.
//  2. Inserts DemoProfiles(perCity).
//
// Likes are not written here; cmd/seed drives them through the match service so
// matches get their conversations.
func SeedProfiles(db *gorm.DB, perCity int) ([]Profile, error) {
	// --- Fresh start ---
	for _, table := range []string{"messages", "conversations", "decisions", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	profiles := DemoProfiles(perCity)
	if err := db.CreateInBatches(&profiles, 100).Error; err != nil {
		return nil, fmt.Errorf("failed to seed profiles: %w", err)
	}
	return profiles, nil
}

// DemoProfiles builds perCity profiles around each seed city (half male, half
// female), scattered within ~20km, ages 18-45, all interested in the other
// gender. Every third profile prefers auto-translation. Emails are stable
// (user<n>@example.com) so stores can recognize a profile seeded earlier.
func DemoProfiles(perCity int) []Profile {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now().UTC()
	var profiles []Profile
	n := 0
	for _, city := range seedCities {
		for i := 0; i < perCity; i++ {
			n++
			gender, wants := "male", "female"
			if i%2 == 1 {
				gender, wants = "female", "male"
			}

			p := Profile{
				ID:          uuid.NewString(),
				Email:       fmt.Sprintf("user%d@example.com", n),
				DisplayName: fmt.Sprintf("User %d", n),
				BirthDate:   now.AddDate(-(18 + r.Intn(28)), -r.Intn(12), -r.Intn(28)),
				Gender:      gender,
				Latitude:    city.Lat + (r.Float64()-0.5)*0.36,
				Longitude:   city.Lon + (r.Float64()-0.5)*0.36,
				Region:      city.Region,
				Locale:      city.Locale,
				Preferences: Preferences{
					Genders:       []string{wants},
					MinAge:        18,
					MaxAge:        50,
					MaxDistanceKm: 100,
					AutoTranslate: n%3 == 0,
				},
				Active:       true,
				Verified:     r.Intn(100) < 80,
				LastActiveAt: now.Add(-time.Duration(r.Intn(500)) * time.Hour),
			}
			profiles = append(profiles, p)
		}
	}

	return profiles
}
