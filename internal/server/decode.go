package server

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fastjson"

	"github.com/logbook-io/logbook/internal/engine"
	"github.com/logbook-io/logbook/internal/model"
)

// timeLayouts are the accepted formats for timestamp filter values.
// Date-only bounds are common in range filters.
var timeLayouts = []string{time.RFC3339, "2006-01-02"}

func parseTimeParam(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// decodeRecord validates an ingest body and builds the record to
// store. It returns a non-empty message on the first violation:
// required fields are checked in their declared order, then level,
// timestamp and metadata structurally. A client-supplied id is
// ignored.
func decodeRecord(v *fastjson.Value) (model.LogRecord, string) {
	var rec model.LogRecord

	if v.Type() != fastjson.TypeObject {
		return rec, "Request body must be a JSON object"
	}

	for _, field := range model.RequiredFields {
		if !v.Exists(field) {
			return rec, field + " is required."
		}
	}

	level, ok := model.ParseLevel(string(v.GetStringBytes("level")))
	if !ok {
		return rec, "level must be one of: error, warn, info, debug."
	}

	ts, err := time.Parse(time.RFC3339, string(v.GetStringBytes("timestamp")))
	if err != nil {
		return rec, "timestamp must be a valid RFC 3339 instant."
	}

	metaVal := v.Get("metadata")
	if metaVal.Type() != fastjson.TypeObject {
		return rec, "metadata must be a JSON object."
	}
	metadata := make(map[string]any)
	if err := json.Unmarshal(metaVal.MarshalTo(nil), &metadata); err != nil {
		return rec, "metadata must be a JSON object."
	}

	rec = model.LogRecord{
		Level:      level,
		Message:    string(v.GetStringBytes("message")),
		ResourceID: string(v.GetStringBytes("resourceId")),
		Timestamp:  ts,
		TraceID:    string(v.GetStringBytes("traceId")),
		SpanID:     string(v.GetStringBytes("spanId")),
		Commit:     string(v.GetStringBytes("commit")),
		Metadata:   metadata,
	}
	return rec, ""
}

// parseCriteria builds query criteria from the request's query
// parameters. Malformed date values are rejected outright rather than
// coerced into a never-matching filter. Non-numeric page and limit
// values fall back to the defaults.
func parseCriteria(q url.Values) (engine.Criteria, string) {
	c := engine.Criteria{
		Level:      q.Get("level"),
		Message:    q.Get("message"),
		ResourceID: q.Get("resourceId"),
		TraceID:    q.Get("traceId"),
		SpanID:     q.Get("spanId"),
		Commit:     q.Get("commit"),
		Page:       engine.DefaultPage,
		Limit:      engine.DefaultLimit,
	}

	if s := q.Get("timestamp"); s != "" {
		t, ok := parseTimeParam(s)
		if !ok {
			return c, "timestamp is not a valid date."
		}
		c.Since = &t
	}
	if s := q.Get("dateRange[from]"); s != "" {
		t, ok := parseTimeParam(s)
		if !ok {
			return c, "dateRange[from] is not a valid date."
		}
		c.From = &t
	}
	if s := q.Get("dateRange[to]"); s != "" {
		t, ok := parseTimeParam(s)
		if !ok {
			return c, "dateRange[to] is not a valid date."
		}
		c.To = &t
	}

	if s := q.Get("page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			c.Page = n
		}
	}
	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			c.Limit = n
		}
	}

	return c, ""
}
