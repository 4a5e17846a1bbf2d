package storage

import (
	"net/url"
	"strings"
)

const maxPathSegment = 96

// TransformURLToPathSegment turns the path of a page URL into one directory
// name, e.g. "https://host/conversations/chat/" -> "conversations_chat".
// Characters outside [A-Za-z0-9._-] become "_" and the result is capped so a
// deep SPA route cannot produce an unusable directory.
func TransformURLToPathSegment(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" {
		return "root", nil
	}

	seg := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, trimmed)
	seg = strings.Trim(seg, "._")
	if seg == "" {
		return "root", nil
	}
	if len(seg) > maxPathSegment {
		seg = seg[:maxPathSegment]
	}
	return seg, nil
}

// BrowserIDFromTargetID shortens a CDP target ID to the 8 characters used
// for archive file names.
func BrowserIDFromTargetID(targetID string) string {
	if len(targetID) > 8 {
		return targetID[:8]
	}
	return targetID
}
