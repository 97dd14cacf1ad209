package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeHandleRe  = regexp.MustCompile(`^@?[a-zA-Z0-9._-]{3,30}$`)
	youtubeChannelRe = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)
	instagramUserRe  = regexp.MustCompile(`^[a-zA-Z0-9._]{1,30}$`)
)

// NormalizeTarget validates a raw channel reference and reduces it to its
// canonical form: a lowercase "@handle" or a "UC..." channel ID for YouTube,
// a lowercase username for Instagram. Full profile URLs are accepted and
// unwrapped. Returns ErrInvalidTarget when the input cannot be normalized.
func NormalizeTarget(platform Platform, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty target: %w", ErrInvalidTarget)
	}

	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "www.") {
		extracted, err := targetFromURL(platform, raw)
		if err != nil {
			return "", err
		}
		raw = extracted
	}

	switch platform {
	case PlatformYouTube:
		return normalizeYouTube(raw)
	case PlatformInstagram:
		return normalizeInstagram(raw)
	default:
		return "", ErrUnknownPlatform
	}
}

func normalizeYouTube(raw string) (string, error) {
	if youtubeChannelRe.MatchString(raw) {
		return raw, nil
	}
	if youtubeHandleRe.MatchString(raw) {
		handle := strings.ToLower(strings.TrimPrefix(raw, "@"))
		return "@" + handle, nil
	}
	return "", fmt.Errorf("target %q is not a channel ID, handle, or channel URL: %w", raw, ErrInvalidTarget)
}

func normalizeInstagram(raw string) (string, error) {
	raw = strings.TrimPrefix(raw, "@")
	if !instagramUserRe.MatchString(raw) {
		return "", fmt.Errorf("target %q is not a valid username: %w", raw, ErrInvalidTarget)
	}
	return strings.ToLower(raw), nil
}

// targetFromURL pulls the channel reference out of a profile URL.
func targetFromURL(platform Platform, raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unparseable target URL: %w", ErrInvalidTarget)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segs := splitPath(u.Path)
	if len(segs) == 0 {
		return "", fmt.Errorf("target URL %q has no path: %w", raw, ErrInvalidTarget)
	}

	switch platform {
	case PlatformYouTube:
		if host != "youtube.com" && host != "m.youtube.com" && host != "youtu.be" {
			return "", fmt.Errorf("host %q is not a YouTube domain: %w", host, ErrInvalidTarget)
		}
		switch segs[0] {
		case "channel", "c", "user":
			if len(segs) < 2 {
				return "", fmt.Errorf("truncated channel URL %q: %w", raw, ErrInvalidTarget)
			}
			return segs[1], nil
		default:
			return segs[0], nil
		}
	case PlatformInstagram:
		if host != "instagram.com" && host != "m.instagram.com" {
			return "", fmt.Errorf("host %q is not an Instagram domain: %w", host, ErrInvalidTarget)
		}
		return segs[0], nil
	default:
		return "", ErrUnknownPlatform
	}
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
