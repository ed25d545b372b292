package models

// UserRole gates which marketplace affordances are offered. It is a
// presentation-layer switch, not a permission boundary.
type UserRole string

const (
	RoleConsumer UserRole = "USER"
	RoleExpert   UserRole = "EXPERT"
)

// UserPreferences holds per-user defaults for the AI workspace.
type UserPreferences struct {
	ThinkingMode       bool   `json:"thinking_mode"`
	DefaultAspectRatio string `json:"default_aspect_ratio"`
}

// UserProfile is the single local identity record.
type UserProfile struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Bio         string          `json:"bio"`
	Role        UserRole        `json:"role"`
	AvatarURL   string          `json:"avatar_url,omitempty"`
	Ratings     []int           `json:"ratings"`
	Preferences UserPreferences `json:"preferences"`
}

// DefaultProfile returns the profile used before any update is stored and
// whenever the persisted record is missing or unreadable.
func DefaultProfile() UserProfile {
	return UserProfile{
		ID:      "u1",
		Name:    "Alex Designer",
		Email:   "alex@example.com",
		Bio:     "Creative professional looking for AI-enhanced workflows.",
		Role:    RoleConsumer,
		Ratings: []int{},
		Preferences: UserPreferences{
			DefaultAspectRatio: "1:1",
		},
	}
}
