package cmd

import (
	"fmt"
	"net/url"
	"strings"
)

// meetPathSegment precedes the meeting id in a meeting link.
const meetPathSegment = "meet"

// parseMeetingInput accepts a bare meeting id or a meeting link and returns
// the id.
func parseMeetingInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("meeting ID cannot be empty")
	}

	if strings.Contains(input, "://") || strings.Contains(input, "/") {
		return extractMeetingIDFromURL(input)
	}

	return input, nil
}

func extractMeetingIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse meeting link: %w", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == meetPathSegment && i+1 < len(parts) && parts[i+1] != "" {
			id, err := url.PathUnescape(parts[i+1])
			if err != nil {
				return "", fmt.Errorf("parse meeting link: %w", err)
			}
			return id, nil
		}
	}

	return "", fmt.Errorf("could not extract meeting ID from link: %s", urlStr)
}
