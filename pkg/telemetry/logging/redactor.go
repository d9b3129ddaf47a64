package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// Redacted replaces the value of credential attributes.
const Redacted = "***"

// secretKeys are attribute key fragments whose values are always masked.
var secretKeys = []string{"password", "secret", "token", "api_key", "apikey"}

// urlKeys are attribute key fragments whose values may embed credentials.
var urlKeys = []string{"dsn", "url", "addr"}

// RedactAttr is a slog ReplaceAttr hook that masks credentials.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	key := strings.ToLower(a.Key)

	for _, fragment := range secretKeys {
		if strings.Contains(key, fragment) {
			if a.Value.String() == "" {
				return a
			}
			return slog.String(a.Key, Redacted)
		}
	}
	for _, fragment := range urlKeys {
		if strings.Contains(key, fragment) {
			return slog.String(a.Key, RedactURL(a.Value.String()))
		}
	}
	return a
}

// RedactURL masks the password of a URL-shaped value such as a database DSN.
// Values that are not URLs, or carry no password, are returned unchanged.
func RedactURL(raw string) string {
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	// Redacted is percent-encoded inside userinfo.
	u.User = url.UserPassword(u.User.Username(), Redacted)
	return strings.Replace(u.String(), "%2A%2A%2A", Redacted, 1)
}
