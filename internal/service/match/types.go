package match

type LikeRequest struct {
	UserID   string `json:"user_id"`
	TargetID string `json:"target_id"`
}

// LikeResponse reports whether the pair is matched. MatchID and
// ConversationID are set only when IsMatch is true.
type LikeResponse struct {
	IsMatch        bool   `json:"is_match"`
	MatchID        string `json:"match_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type PassRequest struct {
	UserID   string `json:"user_id"`
	TargetID string `json:"target_id"`
}

type PassResponse struct {
	OK bool `json:"ok"`
}

type ListLikedYouRequest struct {
	UserID          string `json:"user_id"`
	PaginationToken string `json:"pagination_token,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

// Liker is one pending like; UnixTimestamp is in milliseconds.
type Liker struct {
	UserID        string `json:"user_id"`
	UnixTimestamp int64  `json:"unix_timestamp"`
}

type ListLikedYouResponse struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken string  `json:"next_pagination_token,omitempty"`
}

type CountLikedYouRequest struct {
	UserID string `json:"user_id"`
}

type CountLikedYouResponse struct {
	Count int64 `json:"count"`
}
