package connection

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	MaxNoteLength = 300 // LinkedIn's character limit for connection notes
)

// Mode is the action requested for a profile
type Mode string

const (
	ModeConnect         Mode = "connect"
	ModeFollow          Mode = "follow"
	ModeConnectOrFollow Mode = "connect_or_follow"
)

// ParseMode accepts the caller's mode string; empty means connect
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeConnect, nil
	case ModeConnect, ModeFollow, ModeConnectOrFollow:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode: %s (must be connect, follow, or connect_or_follow)", s)
	}
}

// Task is one profile to act on
type Task struct {
	ProfileURL string
	Note       string
	Mode       Mode
}

// Validate checks the profile URL and mode
func (t Task) Validate() error {
	if strings.TrimSpace(t.ProfileURL) == "" {
		return fmt.Errorf("profile url is required")
	}
	u, err := url.Parse(t.ProfileURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid profile url: %s", t.ProfileURL)
	}
	if _, err := ParseMode(string(t.Mode)); err != nil {
		return err
	}
	return nil
}

// CleanProfileURL removes query parameters and trailing slashes.
// LinkedIn appends tracking params like miniProfileUrn that must be stripped.
func CleanProfileURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if i := strings.IndexAny(rawURL, "?#"); i != -1 {
		rawURL = rawURL[:i]
	}
	return strings.TrimRight(rawURL, "/")
}

// RenderNote replaces {{key}} placeholders in template with vars
func RenderNote(template string, vars map[string]string) string {
	result := template
	for key, value := range vars {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}

// TruncateNote cuts a note to MaxNoteLength characters
func TruncateNote(note string) string {
	r := []rune(strings.TrimSpace(note))
	if len(r) <= MaxNoteLength {
		return string(r)
	}
	return strings.TrimSpace(string(r[:MaxNoteLength]))
}
