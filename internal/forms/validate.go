package forms

import (
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
	"github.com/gabriel-vasile/mimetype"
)

// PasswordRequirements lists which password rules are met.
type PasswordRequirements struct {
	MinLength    bool
	HasUppercase bool
	HasNumber    bool
	HasSpecial   bool
}

// Met reports whether every rule holds.
func (r PasswordRequirements) Met() bool {
	return r.MinLength && r.HasUppercase && r.HasNumber && r.HasSpecial
}

const specialChars = `!@#$%^&*(),.?":{}|<>`

// CheckPassword evaluates password against the account rules.
func CheckPassword(password string) PasswordRequirements {
	return PasswordRequirements{
		MinLength:    utf8.RuneCountInString(password) >= 8,
		HasUppercase: strings.IndexFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0,
		HasNumber:    strings.IndexFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0,
		HasSpecial:   strings.ContainsAny(password, specialChars),
	}
}

// ValidateRegistration checks the password and its confirmation.
func ValidateRegistration(password, confirm string) error {
	if password != confirm {
		return Invalid("confirm_password", "Passwords do not match.")
	}
	if !CheckPassword(password).Met() {
		return Invalid("password", "Password does not meet all requirements.")
	}
	return nil
}

// MaxCommentLength is the longest comment accepted, in characters.
const MaxCommentLength = 500

// ValidateComment trims content and checks its length.
func ValidateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", Invalid("content", "Comment cannot be empty.")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", Invalid("content", "Comment must be 500 characters or fewer.")
	}
	return content, nil
}

// Location is a resolved report position. Set is false until the device or
// the user provides one.
type Location struct {
	Latitude  float64
	Longitude float64
	Set       bool
}

// ValidateReport runs the checks done before a report is submitted.
func ValidateReport(loc Location, r feed.IncidentReport) error {
	if !loc.Set {
		return Invalid("location", "Please provide a location.")
	}
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return Invalid("location", "Please provide a valid location.")
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Description)) < 10 {
		return Invalid("description", "Please provide a description (at least 10 characters).")
	}
	if r.Severity < 1 || r.Severity > 5 {
		return Invalid("severity", "Severity must be between 1 and 5.")
	}
	if r.CasualtiesInjured < 0 || r.CasualtiesDead < 0 {
		return Invalid("casualties", "Casualty counts cannot be negative.")
	}
	if r.CasualtiesDead > 0 && r.Severity < 4 {
		return Invalid("severity", "If there are fatalities, severity must be 4 or 5.")
	}
	if r.Photo != nil {
		if err := ValidatePhoto(r.Photo); err != nil {
			return err
		}
	}
	return nil
}

var photoTypes = []string{"image/jpeg", "image/png", "image/gif"}

// ValidatePhoto sniffs the photo content and accepts JPEG, PNG and GIF. The
// detected type replaces whatever content type the caller claimed.
func ValidatePhoto(p *feed.Photo) error {
	if p == nil || len(p.Data) == 0 {
		return Invalid("photo", "Please upload a JPG, PNG, or GIF image.")
	}
	detected := mimetype.Detect(p.Data)
	for _, t := range photoTypes {
		if detected.Is(t) {
			p.ContentType = t
			return nil
		}
	}
	return Invalid("photo", "Please upload a JPG, PNG, or GIF image.")
}

// ValidateSecretID checks the admin approval id typed by an admin.
func ValidateSecretID(id string) error {
	if strings.TrimSpace(id) == "" {
		return Invalid("user_id", "Please enter the Secret User ID from the email")
	}
	return nil
}
