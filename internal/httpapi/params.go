package httpapi

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/statuspulse/internal/window"
)

const (
	dateLayout      = "2006-01-02"
	defaultLookback = 90 // days
)

// parseBound accepts RFC3339 or a bare date. A bare date means local
// midnight; as an end bound it means the last instant of that day so the
// whole day is included and the next one is not.
func parseBound(raw string, loc *time.Location, isEnd bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse %q", window.ErrInvalidWindow, raw)
	}
	if isEnd {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d, nil
}

// parseRange reads ?start&end, filling whichever is missing from defStart
// and now.
func parseRange(q url.Values, loc *time.Location, now, defStart time.Time) (time.Time, time.Time, error) {
	start, end := defStart, now
	if v := q.Get("start"); v != "" {
		t, err := parseBound(v, loc, false)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if v := q.Get("end"); v != "" {
		t, err := parseBound(v, loc, true)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	return start, end, nil
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Hostname() != ""
}

// normalizeHTTPURL lowercases scheme and host, drops default ports and a
// bare trailing slash so the same endpoint is not added twice.
func normalizeHTTPURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}
