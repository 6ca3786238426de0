package http

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"studyhub/internal/apperr"
)

const (
	maxNameLen     = 100
	maxTitleLen    = 200
	maxContentLen  = 100_000
	maxQuestionLen = 300
	maxTextLen     = 5_000
	maxTags        = 20
	maxTagLen      = 40
	maxEntries     = 200
	maxPasswordLen = 72
)

var weekdays = map[string]string{
	"monday":    "Monday",
	"tuesday":   "Tuesday",
	"wednesday": "Wednesday",
	"thursday":  "Thursday",
	"friday":    "Friday",
	"saturday":  "Saturday",
	"sunday":    "Sunday",
}

// checks collects field errors so a response lists every problem at once.
type checks []apperr.FieldError

func (c *checks) add(field, format string, args ...interface{}) {
	*c = append(*c, apperr.FieldError{Field: field, Msg: fmt.Sprintf(format, args...)})
}

func (c *checks) required(field, value string, max int) {
	switch {
	case strings.TrimSpace(value) == "":
		c.add(field, "%s is required", field)
	case len(value) > max:
		c.add(field, "%s must be at most %d characters", field, max)
	}
}

func (c *checks) optional(field, value string, max int) {
	if len(value) > max {
		c.add(field, "%s must be at most %d characters", field, max)
	}
}

func (c *checks) email(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.add(field, "%s is required", field)
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil || addr.Address != strings.TrimSpace(value) {
		c.add(field, "%s must be a valid email address", field)
	}
}

func (c *checks) password(field, value string, min int) {
	switch {
	case len(value) < min:
		c.add(field, "%s must be at least %d characters", field, min)
	case len(value) > maxPasswordLen:
		c.add(field, "%s must be at most %d bytes", field, maxPasswordLen)
	}
}

func (c checks) err() error {
	if len(c) == 0 {
		return nil
	}
	return apperr.Invalid(c...)
}

// tags trims, lower-cases and de-duplicates tags, keeping order.
func (c *checks) tags(field string, tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		if len(tag) > maxTagLen {
			c.add(field, "each tag must be at most %d characters", maxTagLen)
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	if len(out) > maxTags {
		c.add(field, "at most %d tags are allowed", maxTags)
	}
	return out
}

func (c *checks) day(field, value string) string {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		c.add(field, "%s must be a day of the week", field)
	}
	return day
}

func parseClock(value string) (time.Time, bool) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	return parsed, err == nil
}
