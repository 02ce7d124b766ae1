// Copyright (C) 2017 ScyllaDB

// Package inexlist implements include/exclude lists of glob patterns.
package inexlist

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

type signedPattern struct {
	Sign    bool
	Pattern string
	g       glob.Glob
}

func (sp signedPattern) String() string {
	if sp.Sign {
		return sp.Pattern
	}
	return "!" + sp.Pattern
}

// InExList is a list of patterns, a pattern prefixed with "!" excludes
// matching items. The last matching pattern decides, items not matched by
// any pattern are excluded. An empty list matches everything.
type InExList struct {
	patterns []string
	list     []signedPattern
}

// ParseInExList compiles patterns, empty patterns are ignored.
func ParseInExList(patterns []string) (InExList, error) {
	out := InExList{
		patterns: patterns,
	}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		sign := true
		if strings.HasPrefix(p, "!") {
			sign = false
			p = strings.TrimPrefix(p, "!")
		}

		g, err := glob.Compile(p)
		if err != nil {
			return InExList{}, errors.Wrapf(err, "invalid pattern %q", p)
		}
		out.list = append(out.list, signedPattern{
			Sign:    sign,
			Pattern: p,
			g:       g,
		})
	}

	return out, nil
}

// Patterns returns the original patterns.
func (l InExList) Patterns() []string {
	return l.patterns
}

// Match returns true if item passes the list.
func (l InExList) Match(item string) bool {
	if len(l.list) == 0 {
		return true
	}
	ok := false
	for _, p := range l.list {
		if p.g.Match(item) {
			ok = p.Sign
		}
	}
	return ok
}

// Filter returns items that pass the list, order is preserved.
func (l InExList) Filter(items []string) []string {
	out := make([]string, 0, len(items))
	for _, v := range items {
		if l.Match(v) {
			out = append(out, v)
		}
	}
	return out
}
