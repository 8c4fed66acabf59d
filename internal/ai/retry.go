package ai

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	retryPhrase = regexp.MustCompile(`(?i)retry\s*(?:in|after)\s*(\d+(?:\.\d+)?)\s*(ms|milliseconds?|s|secs?|seconds?|m|mins?|minutes?)?\b`)
	retryDelay  = regexp.MustCompile(`(?i)"?retry_?delay"?\s*[:=]\s*"?(\d+(?:\.\d+)?)\s*(ms|s|m)?"?`)
)

// ParseRetryAfter extracts a suggested wait from an upstream hint: a Retry-After header value
// (seconds or HTTP date), phrases such as "retry in 12.5s" or "retry after 60 seconds", and
// Google RPC "retryDelay": "30s" details. ok is false when nothing usable was found; callers
// then fall back to their default backoff.
func ParseRetryAfter(hint string) (d time.Duration, ok bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(hint, 64); err == nil {
		return positive(time.Duration(secs * float64(time.Second)))
	}

	if at, err := http.ParseTime(hint); err == nil {
		return positive(time.Until(at))
	}

	for _, re := range []*regexp.Regexp{retryDelay, retryPhrase} {
		m := re.FindStringSubmatch(hint)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return positive(time.Duration(value * float64(unit(m[2]))))
	}

	return 0, false
}

func unit(s string) time.Duration {
	s = strings.ToLower(s)
	switch {
	case s == "ms" || strings.HasPrefix(s, "milli"):
		return time.Millisecond
	case s == "m" || strings.HasPrefix(s, "min"):
		return time.Minute
	default:
		return time.Second
	}
}

func positive(d time.Duration) (time.Duration, bool) {
	if d <= 0 {
		return 0, false
	}
	return d, true
}
