// Package engine filters, sorts and paginates the log collection. It
// is a full scan over the records it is handed; there is no index.
package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/logbook-io/logbook/internal/model"
)

// Pagination defaults, applied when a value is absent or non-positive.
const (
	DefaultPage  = 1
	DefaultLimit = 50
)

// Criteria is the set of optional filters attached to one query. Zero
// values mean "not present"; an empty Criteria matches everything.
type Criteria struct {
	Level      string     // exact level match
	Message    string     // case-insensitive substring of the message
	ResourceID string     // exact match
	TraceID    string     // exact match
	SpanID     string     // exact match
	Commit     string     // exact match
	Since      *time.Time // timestamp >= Since
	From       *time.Time // timestamp >= From (range lower bound, inclusive)
	To         *time.Time // timestamp <= To (range upper bound, inclusive)
	Page       int
	Limit      int
}

// ResultPage is one page of the filtered, sorted collection.
type ResultPage struct {
	Records    []model.LogRecord
	Total      int // count after filtering, before slicing
	Page       int
	Limit      int
	TotalPages int
}

// Predicate is a boolean test over a single record.
type Predicate func(*model.LogRecord) bool

// BuildPredicate composes the logical AND of one sub-predicate per
// present criterion. No criterion present means accept everything.
func BuildPredicate(c Criteria) Predicate {
	var preds []Predicate

	if c.Level != "" {
		level := model.Level(c.Level)
		preds = append(preds, func(r *model.LogRecord) bool { return r.Level == level })
	}
	if c.Message != "" {
		needle := strings.ToLower(c.Message)
		preds = append(preds, func(r *model.LogRecord) bool {
			return strings.Contains(strings.ToLower(r.Message), needle)
		})
	}
	if c.ResourceID != "" {
		preds = append(preds, func(r *model.LogRecord) bool { return r.ResourceID == c.ResourceID })
	}
	if c.TraceID != "" {
		preds = append(preds, func(r *model.LogRecord) bool { return r.TraceID == c.TraceID })
	}
	if c.SpanID != "" {
		preds = append(preds, func(r *model.LogRecord) bool { return r.SpanID == c.SpanID })
	}
	if c.Commit != "" {
		preds = append(preds, func(r *model.LogRecord) bool { return r.Commit == c.Commit })
	}
	if c.Since != nil {
		since := *c.Since
		preds = append(preds, func(r *model.LogRecord) bool { return !r.Timestamp.Before(since) })
	}
	if c.From != nil {
		from := *c.From
		preds = append(preds, func(r *model.LogRecord) bool { return !r.Timestamp.Before(from) })
	}
	if c.To != nil {
		to := *c.To
		preds = append(preds, func(r *model.LogRecord) bool { return !r.Timestamp.After(to) })
	}

	return func(r *model.LogRecord) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Query filters records with the criteria's predicate, sorts the
// matches by timestamp descending (stable, so equal timestamps keep
// their original relative order) and returns the requested page. An
// out-of-range page yields an empty page with the real total.
func Query(records []model.LogRecord, c Criteria) ResultPage {
	page := c.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := c.Limit
	if limit < 1 {
		limit = DefaultLimit
	}

	pred := BuildPredicate(c)
	matched := make([]model.LogRecord, 0, len(records))
	for i := range records {
		if pred(&records[i]) {
			matched = append(matched, records[i])
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return ResultPage{
		Records:    matched[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}
