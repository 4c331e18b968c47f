package db

import (
	"time"
)

// Message types accepted by the chat pipeline.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeAudio  = "audio"
	MessageTypeSystem = "system"
)

// Preferences are the discovery settings a user chose for themselves.
type Preferences struct {
	Genders       []string `gorm:"serializer:json"`
	MinAge        int      `gorm:"not null"`
	MaxAge        int      `gorm:"not null"`
	MaxDistanceKm float64  `gorm:"not null"`
	AutoTranslate bool
}

// Profile table.
//
// Indexes:
//   - idx_profiles_discovery(region, active, latitude, longitude)
//     Region partition first, then the bounding-box prefilter columns.
//
// Age is never stored; it is derived from BirthDate at query time.
type Profile struct {
	ID           string      `gorm:"primaryKey;size:36"`
	Email        string      `gorm:"uniqueIndex;size:128;not null"`
	DisplayName  string      `gorm:"size:64;not null"`
	BirthDate    time.Time   `gorm:"not null"`
	Gender       string      `gorm:"size:16;not null"`
	Latitude     float64     `gorm:"index:idx_profiles_discovery,priority:3"`
	Longitude    float64     `gorm:"index:idx_profiles_discovery,priority:4"`
	Region       string      `gorm:"size:32;not null;index:idx_profiles_discovery,priority:1"`
	Locale       string      `gorm:"size:16;not null"`
	Preferences  Preferences `gorm:"embedded;embeddedPrefix:pref_"`
	Active       bool        `gorm:"index:idx_profiles_discovery,priority:2"`
	Verified     bool
	Online       bool
	LastActiveAt time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Decision is the like/pass record for one unordered pair of users.
//
// PK: PairKey (see NewPair)
//   - Guarantees at most one record per pair; concurrent writers converge on insert-or-ignore.
//
// The two users are stored in canonical order (UserLo < UserHi) and every flag is
// per side, so a like is a single-column update and never a read-modify-write.
//
// Indexes:
//   - idx_decisions_lo / idx_decisions_hi: "who did X decide on" and "who liked X" lookups.
type Decision struct {
	PairKey   string `gorm:"primaryKey;size:64"`
	UserLo    string `gorm:"size:36;not null;index:idx_decisions_lo"`
	UserHi    string `gorm:"size:36;not null;index:idx_decisions_hi"`
	LoLiked   bool   `gorm:"not null;default:false"`
	HiLiked   bool   `gorm:"not null;default:false"`
	LoPassed  bool   `gorm:"not null;default:false"`
	HiPassed  bool   `gorm:"not null;default:false"`
	IsMatch   bool   `gorm:"not null;default:false"`
	MatchedAt *time.Time
	LoLikedAt *time.Time
	HiLikedAt *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// HasLiked reports whether userID has a like recorded on this pair.
func (d *Decision) HasLiked(userID string) bool {
	switch userID {
	case d.UserLo:
		return d.LoLiked
	case d.UserHi:
		return d.HiLiked
	}
	return false
}

// HasPassed reports whether userID has passed on this pair.
func (d *Decision) HasPassed(userID string) bool {
	switch userID {
	case d.UserLo:
		return d.LoPassed
	case d.UserHi:
		return d.HiPassed
	}
	return false
}

// LikedAt returns when userID liked the other side, nil if they have not.
func (d *Decision) LikedAt(userID string) *time.Time {
	switch userID {
	case d.UserLo:
		return d.LoLikedAt
	case d.UserHi:
		return d.HiLikedAt
	}
	return nil
}

// BothLiked reports whether the like set contains both users.
func (d *Decision) BothLiked() bool {
	return d.LoLiked && d.HiLiked
}

// Other returns the participant that is not userID.
func (d *Decision) Other(userID string) string {
	if userID == d.UserLo {
		return d.UserHi
	}
	return d.UserLo
}

// Conversation is the 1:1 chat owned by exactly one match.
type Conversation struct {
	ID                 string `gorm:"primaryKey;size:36"`
	MatchID            string `gorm:"uniqueIndex;size:64;not null"`
	UserLo             string `gorm:"size:36;not null;index"`
	UserHi             string `gorm:"size:36;not null;index"`
	LastMessagePreview string `gorm:"size:400"`
	LastMessageSender  string `gorm:"size:36"`
	LastMessageAt      *time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.UserLo == userID || c.UserHi == userID)
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if userID == c.UserLo {
		return c.UserHi
	}
	return c.UserLo
}

// Attachment is a media reference carried by a message. Upload happens elsewhere.
type Attachment struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message table.
//
// TranslatedText/TargetLocale are set together, and only when a translation succeeded.
type Message struct {
	ID             string       `gorm:"primaryKey;size:36"`
	ConversationID string       `gorm:"size:36;not null;index:idx_messages_conversation_created,priority:1"`
	SenderID       string       `gorm:"size:36;not null"`
	RecipientID    string       `gorm:"size:36;not null;index:idx_messages_recipient_read,priority:1"`
	Text           string       `gorm:"type:text"`
	SourceLocale   string       `gorm:"size:16"`
	TranslatedText *string      `gorm:"type:text"`
	TargetLocale   *string      `gorm:"size:16"`
	Type           string       `gorm:"size:16;not null;default:text"`
	Attachments    []Attachment `gorm:"serializer:json"`
	Delivered      bool         `gorm:"not null;default:false"`
	DeliveredAt    *time.Time
	IsRead         bool `gorm:"not null;default:false;index:idx_messages_recipient_read,priority:2"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2,sort:desc"`
}
