package normalize

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// Shape is the classification of a raw ratings payload. Every payload maps to
// exactly one shape before any field is read.
type Shape int

const (
	// ShapeEmpty covers blank bodies, null, invalid JSON and bare scalars.
	ShapeEmpty Shape = iota
	// ShapeList is a bare array of review objects.
	ShapeList
	// ShapeEnvelope is an object whose data member is a review array or a
	// summary object.
	ShapeEnvelope
	// ShapeSummary is an object carrying named summary members.
	ShapeSummary
	// ShapeUnknown is any other object.
	ShapeUnknown
)

func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeList:
		return "list"
	case ShapeEnvelope:
		return "envelope"
	case ShapeSummary:
		return "summary"
	case ShapeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// summaryKeys mark an object as a rating summary.
var summaryKeys = []string{"ratings", "reviews", "count", "averageScore", "distribution", "categoryScores"}

// Classify decides the shape of a raw payload.
func Classify(raw []byte) Shape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return ShapeEmpty
	}

	root := gjson.ParseBytes(raw)
	switch {
	case root.IsArray():
		return ShapeList
	case !root.IsObject():
		return ShapeEmpty
	}

	data := root.Get("data")
	if data.IsArray() || (data.IsObject() && hasSummaryKey(data)) {
		return ShapeEnvelope
	}
	if hasSummaryKey(root) {
		return ShapeSummary
	}
	return ShapeUnknown
}

func hasSummaryKey(obj gjson.Result) bool {
	for _, k := range summaryKeys {
		if obj.Get(k).Exists() {
			return true
		}
	}
	return false
}
