package convo

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrInvalidURL is returned for site URLs without an http(s) scheme or host.
	ErrInvalidURL = errors.New("invalid site url")
	// ErrInvalidProductID is returned for non-positive or non-numeric ids.
	ErrInvalidProductID = errors.New("invalid product id")
)

// ValidateSiteURL accepts absolute http(s) URLs and returns them without a
// trailing slash.
func ValidateSiteURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return "", ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Hostname() == "" {
		return "", ErrInvalidURL
	}
	u.Scheme = scheme
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

func parseProductID(text string) (int64, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "#")
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidProductID
	}
	return id, nil
}
