package feed

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// IncidentStatus is the verification lifecycle of an incident.
type IncidentStatus string

const (
	StatusPendingVerification IncidentStatus = "pending_verification"
	StatusConfirmed           IncidentStatus = "confirmed"
	StatusFalseReport         IncidentStatus = "false_report"
)

// Role is a user's role on the platform.
type Role string

const (
	RoleUser    Role = "user"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

// AccountStatus is the moderation state of an account.
type AccountStatus string

const (
	AccountApproved AccountStatus = "APPROVED"
	AccountPending  AccountStatus = "PENDING"
	AccountBanned   AccountStatus = "BANNED"
	AccountRejected AccountStatus = "REJECTED"
)

// BanDuration is the fixed set of ban lengths the API accepts.
type BanDuration string

const (
	BanOneDay    BanDuration = "1day"
	BanOneWeek   BanDuration = "1week"
	BanPermanent BanDuration = "permanent"
	BanLift      BanDuration = "unban"
)

// Valid reports whether d is one of the accepted durations.
func (d BanDuration) Valid() bool {
	switch d {
	case BanOneDay, BanOneWeek, BanPermanent, BanLift:
		return true
	}
	return false
}

// Decision answers an officer or admin application.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid reports whether d is approve or reject.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// ID is an opaque identifier. The API sends some ids as numbers and some as
// strings; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON always writes a JSON string, whatever form the id arrived in.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Timestamp decodes the API's created_at values. Naive datetimes are read as
// UTC. Values that cannot be parsed decode to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses s with the accepted layouts.
func ParseTimestamp(s string) (Timestamp, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{t}, true
		}
	}
	return Timestamp{}, false
}

// UnmarshalJSON never fails on a malformed string.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = Timestamp{}
		return nil
	}
	*t, _ = ParseTimestamp(s)
	return nil
}

// MarshalJSON writes RFC 3339 or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// Incident is a reported traffic event.
type Incident struct {
	ID                ID             `json:"id"`
	Latitude          float64        `json:"latitude"`
	Longitude         float64        `json:"longitude"`
	Description       string         `json:"description"`
	Severity          int            `json:"severity"`
	CasualtiesInjured int            `json:"casualties_injured"`
	CasualtiesDead    int            `json:"casualties_dead"`
	Status            IncidentStatus `json:"status"`
	PhotoURL          string         `json:"photo_url,omitempty"`
	CreatedAt         Timestamp      `json:"created_at"`
	ReporterID        ID             `json:"reporter_id"`
	ReporterUsername  string         `json:"reporter_username,omitempty"`
}

// Comment belongs to an incident thread.
type Comment struct {
	ID             ID        `json:"id"`
	Content        string    `json:"content"`
	AuthorID       ID        `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	CreatedAt      Timestamp `json:"created_at"`
	Score          int       `json:"score"`
}

// User is an account as seen by profile and admin endpoints.
type User struct {
	ID          ID            `json:"id"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	Role        Role          `json:"role"`
	Status      AccountStatus `json:"status"`
	Points      int           `json:"points"`
	Badges      []string      `json:"badges,omitempty"`
	BadgeNumber string        `json:"badge_number,omitempty"`
	Institution string        `json:"institution,omitempty"`
	CreatedAt   Timestamp     `json:"created_at"`
	BannedUntil Timestamp     `json:"banned_until"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	UserID   ID     `json:"user_id"`
}

// Checkin is a location the user marked as visited.
type Checkin struct {
	ID           ID        `json:"id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationName string    `json:"location_name"`
	CreatedAt    Timestamp `json:"created_at"`
	UserID       ID        `json:"user_id"`
}

// MessageResponse is the API's acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginResponse carries the issued token pair.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Role         Role   `json:"role"`
	Username     string `json:"username"`
}

// RefreshResponse carries a fresh access token.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// Registration creates a plain user account.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OfficerApplication requests an officer account.
type OfficerApplication struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	BadgeNumber string `json:"badge_number"`
	Institution string `json:"institution"`
}

// AdminRegistration requests an admin account using an invite code.
type AdminRegistration struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	FullName         string `json:"full_name"`
	Department       string `json:"department"`
	SecretInviteCode string `json:"secret_invite_code"`
}

// IncidentReport is the multipart payload for a new incident.
type IncidentReport struct {
	Latitude          float64
	Longitude         float64
	Description       string
	Severity          int
	CasualtiesInjured int
	CasualtiesDead    int
	Photo             *Photo
}

// Photo is an optional image attached to a report.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CheckinRequest records a visited location.
type CheckinRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName string  `json:"location_name"`
}
