package impression

import "strings"

const (
	UnknownBirthday = "unknown"
	NoTitle         = "none"

	GenderMale    = "male"
	GenderFemale  = "female"
	GenderUnknown = "unknown"

	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Defaults seeded into a new record. Only the relationship differs between
// direct and group contacts.
const (
	DefaultAddress           = ""
	DefaultImpression        = "no particular impression yet"
	DefaultAttitude          = "friendly and polite"
	DefaultInterest          = ""
	DefaultRelationship      = "friend"
	DefaultGroupRelationship = "group acquaintance"
)

// UserRecord is the agent's memory about one platform user.
type UserRecord struct {
	UserID       string `json:"user_id"`
	Nickname     string `json:"nickname,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Birthday     string `json:"birthday,omitempty"`
	Address      string `json:"address,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Impression   string `json:"impression,omitempty"`
	Attitude     string `json:"attitude,omitempty"`
	Interest     string `json:"interest,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// GroupMemberRecord is what the platform reports about a user inside one group.
type GroupMemberRecord struct {
	GroupID     string `json:"group_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
	Title       string `json:"title,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// ApplyDefaultImpression seeds the impression fields. inGroup selects the
// relationship label.
func (r *UserRecord) ApplyDefaultImpression(inGroup bool) {
	r.Address = DefaultAddress
	r.Relationship = DefaultRelationship
	if inGroup {
		r.Relationship = DefaultGroupRelationship
	}
	r.Impression = DefaultImpression
	r.Attitude = DefaultAttitude
	r.Interest = DefaultInterest
}

// CopyImpression takes the five impression fields from src.
func (r *UserRecord) CopyImpression(src UserRecord) {
	r.Address = src.Address
	r.Relationship = src.Relationship
	r.Impression = src.Impression
	r.Attitude = src.Attitude
	r.Interest = src.Interest
}

// GenderText maps platform sex codes to stored gender values.
func GenderText(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "male", "m", "男":
		return GenderMale
	case "female", "f", "女":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// RoleText normalises platform role names.
func RoleText(role string) string {
	switch strings.ToLower(role) {
	case "owner", "creator":
		return RoleOwner
	case "admin", "administrator":
		return RoleAdmin
	case "":
		return ""
	default:
		return RoleMember
	}
}
