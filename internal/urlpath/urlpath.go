package urlpath

import (
	"fmt"
	"net/url"
	"strings"
)

// Join appends path segments to base without doubling separators. The scheme and
// host of base are preserved, so s3://bucket/root joined with "a", "b" gives
// s3://bucket/root/a/b.
func Join(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		if out == "" {
			out = part
			continue
		}
		out = out + "/" + part
	}
	return out
}

// SplitS3 returns the bucket and object key of an s3 style URL.
func SplitS3(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "s3", "s3n", "s3a":
	default:
		return "", "", fmt.Errorf("url %q is not an s3 url", rawURL)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("url %q has no bucket", rawURL)
	}
	return u.Host, strings.TrimLeft(u.Path, "/"), nil
}

func IsS3(rawURL string) bool {
	_, _, err := SplitS3(rawURL)
	return err == nil
}
