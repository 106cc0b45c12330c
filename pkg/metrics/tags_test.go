// Copyright (C) ClusterCockpit.
// All rights reserved. This file is part of cc-metrics-client.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import "testing"

func TestNewTagSetOddLengthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewTagSet with an odd number of arguments should panic")
		}
	}()
	NewTagSet("host")
}

func TestCanonicalTagsMergesDefaults(t *testing.T) {
	defaults := NewTagSet("cluster", "alex")
	declared := NewTagSet("host", "n001")

	canonical, merged, err := canonicalTags(declared, defaults, DefaultNameTransformer)
	if err != nil {
		t.Fatalf("canonicalTags: %v", err)
	}
	if merged["cluster"] != "alex" || merged["host"] != "n001" {
		t.Fatalf("merged = %v, want both cluster and host", merged)
	}
	if canonical == "" {
		t.Fatal("canonical tag string should not be empty")
	}
}

func TestCanonicalTagsConflictingKeyIsError(t *testing.T) {
	defaults := NewTagSet("host", "n001")
	declared := NewTagSet("host", "n002")

	if _, _, err := canonicalTags(declared, defaults, DefaultNameTransformer); err == nil {
		t.Fatal("expected an error when declared tags conflict with default tags")
	}
}

func TestCanonicalTagsRejectsInvalidValue(t *testing.T) {
	declared := NewTagSet("host", "n001 has spaces")
	if _, _, err := canonicalTags(declared, nil, DefaultNameTransformer); err == nil {
		t.Fatal("expected an error for a tag value with disallowed characters")
	}
}

func TestCanonicalTagsIsOrderIndependent(t *testing.T) {
	a := NewTagSet("b", "2", "a", "1")
	c := NewTagSet("a", "1", "b", "2")

	canonicalA, _, err := canonicalTags(a, nil, DefaultNameTransformer)
	if err != nil {
		t.Fatalf("canonicalTags: %v", err)
	}
	canonicalC, _, err := canonicalTags(c, nil, DefaultNameTransformer)
	if err != nil {
		t.Fatalf("canonicalTags: %v", err)
	}

	if canonicalA != canonicalC {
		t.Fatalf("canonical tag string depends on declaration order: %q != %q", canonicalA, canonicalC)
	}
}

func TestDefaultNameTransformerCamelToSnake(t *testing.T) {
	cases := map[string]string{
		"Host":        "host",
		"HostName":    "host_name",
		"CPUUsage":    "cpu_usage",
		"alreadySnek": "already_snek",
	}
	for in, want := range cases {
		if got := DefaultNameTransformer(in); got != want {
			t.Errorf("DefaultNameTransformer(%q) = %q, want %q", in, got, want)
		}
	}
}
