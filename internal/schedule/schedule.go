package schedule

import (
	"math/rand"
	"strings"
	"time"

	"sheetpress-cli/internal/model"
)

// dateFormats is the ordered list of accepted raw date formats. The first
// format that parses wins.
var dateFormats = []string{
	"2006-01-02", // ISO
	"02/01/2006", // day/month/year
	"01/02/2006", // month/day/year
}

const (
	publishHourMin = 8
	publishHourMax = 17
)

// Decision is the outcome of the scheduling step for one article.
type Decision struct {
	// PublishAt is nil when the article should go out immediately.
	PublishAt *time.Time
	Status    model.PublishStatus
}

// Decider produces publish-vs-schedule decisions. The clock and random
// source are injectable so tests can pin both.
type Decider struct {
	now  func() time.Time
	rand *rand.Rand
}

func NewDecider() *Decider {
	return &Decider{
		now:  time.Now,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewDeciderAt builds a Decider with a fixed clock and seed, for tests.
func NewDeciderAt(now func() time.Time, seed int64) *Decider {
	return &Decider{
		now:  now,
		rand: rand.New(rand.NewSource(seed)),
	}
}

// ParseDate attempts the accepted formats in order and returns the first
// match. A raw string that matches none of them yields ok=false; that is
// expected input variability, not an error.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, raw, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Decide parses the raw date string and resolves the publish state. When a
// date is present, the time of day is replaced with a random hour inside the
// business window and a random minute, so batch publishes do not land on a
// fixed minute. A strictly-future timestamp schedules the article; anything
// else publishes immediately.
func (d *Decider) Decide(rawDate string) Decision {
	parsed, ok := ParseDate(rawDate)
	if !ok {
		return Decision{Status: model.StatusPublished}
	}

	hour := publishHourMin + d.rand.Intn(publishHourMax-publishHourMin+1)
	minute := d.rand.Intn(60)

	at := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, time.Local)

	if at.After(d.now()) {
		return Decision{PublishAt: &at, Status: model.StatusScheduled}
	}
	return Decision{PublishAt: &at, Status: model.StatusPublished}
}
