// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// Tag is a single (key, value) pair declared by a metric at construction
// time. The core never reflects over a metric's fields to discover tags (the
// teacher's config structs are driven by explicit fields, not runtime
// reflection); instead a metric factory returns its TagSet directly, per
// SPEC_FULL.md's "explicit constructor-time tag descriptor" redesign note.
type Tag struct {
	Key   string
	Value string
}

// TagSet is an ordered list of declared tags. Order does not matter for
// identity (canonicalization sorts by key) but is preserved for callers that
// want to inspect what was declared.
type TagSet []Tag

// NewTagSet is a small convenience constructor: NewTagSet("route", "/a", "method", "GET").
// Panics if called with an odd number of arguments; this is a programmer error.
func NewTagSet(kv ...string) TagSet {
	if len(kv)%2 != 0 {
		panic("[METRICS]> NewTagSet requires an even number of key/value arguments")
	}
	ts := make(TagSet, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		ts = append(ts, Tag{Key: kv[i], Value: kv[i+1]})
	}
	return ts
}

// NameTransformer derives a canonical tag key from a declared identifier.
// It must be deterministic and idempotent: Transform(Transform(x)) == Transform(x).
type NameTransformer func(string) string

// DefaultNameTransformer converts CamelCase / PascalCase identifiers to
// lower_snake_case, e.g. "RouteName" -> "route_name". Already-snake_case or
// already-lowercase input passes through unchanged (idempotence).
func DefaultNameTransformer(name string) string {
	if name == "" {
		return name
	}
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		isUpper := r >= 'A' && r <= 'Z'
		if isUpper {
			if i > 0 {
				prev := rune(name[i-1])
				prevIsLowerOrDigit := (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')
				nextIsLower := i+1 < len(name) && name[i+1] >= 'a' && name[i+1] <= 'z'
				if prevIsLowerOrDigit || (prev >= 'A' && prev <= 'Z' && nextIsLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// allowedTagValueChar reports whether r is permitted in a canonicalized tag
// value: letters, digits, '-', '_', '.', '/'.
func allowedTagValueChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == '/':
		return true
	default:
		return false
	}
}

// canonicalTags merges declared tags with the collector's default tags,
// rejects conflicts/invalid values per spec §4.1, and returns the
// lexicographically-sorted, JSON-encoded tag object string used as the
// second half of a MetricKey plus each reading's tags-serialized field.
//
// transformer is applied to each declared tag's key (not the defaults',
// which are assumed already canonical since they are collector-wide).
func canonicalTags(declared TagSet, defaults TagSet, transformer NameTransformer) (string, map[string]string, error) {
	if transformer == nil {
		transformer = DefaultNameTransformer
	}

	merged := make(map[string]string, len(declared)+len(defaults))

	for _, t := range defaults {
		merged[t.Key] = t.Value
	}

	for _, t := range declared {
		key := transformer(t.Key)
		if key == "" || t.Value == "" {
			return "", nil, fmt.Errorf("%w: tag %q", ErrInvalidTag, t.Key)
		}
		if _, isDefault := find(defaults, key); isDefault {
			return "", nil, fmt.Errorf("%w: %q", ErrTagConflict, key)
		}
		for _, r := range t.Value {
			if !allowedTagValueChar(r) {
				return "", nil, fmt.Errorf("%w: tag %q value %q", ErrInvalidTagValue, key, t.Value)
			}
		}
		merged[key] = t.Value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(&b, k)
		b.WriteByte(':')
		writeJSONString(&b, merged[k])
	}
	b.WriteByte('}')

	return b.String(), merged, nil
}

func find(ts TagSet, key string) (Tag, bool) {
	for _, t := range ts {
		if t.Key == key {
			return t, true
		}
	}
	return Tag{}, false
}

// writeJSONString writes s as a minimal double-quoted JSON string, escaping
// only the characters the JSON grammar requires. Tag keys/values are already
// restricted to a safe charset by canonicalTags, so this never needs to
// escape more than the quote and backslash for defensive completeness.
func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
