package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Baaaki/agora/internal/apperr"
)

const (
	minTitle, maxTitle             = 10, 300
	minBody, maxBody               = 20, 10000
	minComment, maxComment         = 1, 1000
	maxTags, maxTagLength          = 10, 30
	minSpaceName, maxSpaceName     = 2, 50
	maxSpaceDescription            = 500
	maxSpaceRules                  = 2000
	minDisplayName, maxDisplayName = 2, 50
	minUsername, maxUsername       = 3, 30
	minPassword                    = 8
	maxBio                         = 500
	maxModerationNotes             = 1000
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9]+`)
)

func lengthBetween(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return apperr.Validationf("%s must be between %d and %d characters", field, min, max)
	}
	return nil
}

func maxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperr.Validationf("%s cannot exceed %d characters", field, max)
	}
	return nil
}

func validateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return apperr.Validation("Please provide a valid email")
	}
	return nil
}

func validateUsername(username string) error {
	if err := lengthBetween("Username", username, minUsername, maxUsername); err != nil {
		return err
	}
	if !usernameRegex.MatchString(username) {
		return apperr.Validation("Username can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPassword {
		return apperr.Validationf("Password must be at least %d characters", minPassword)
	}
	return nil
}

// normalizeTags trims, lowercases and de-duplicates tags.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLength {
			return nil, apperr.Validationf("Tags cannot exceed %d characters", maxTagLength)
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, apperr.Validationf("Cannot have more than %d tags", maxTags)
	}
	return out, nil
}

// Slugify lowercases name, collapses every run of other characters to a
// single dash and trims dashes from both ends.
func Slugify(name string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
