// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package stream

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/256dpi/gcode"

	"github.com/grblhost/grblhost/pkg/grbl"
)

// Preprocessor is the external-collaborator contract named in spec.md §1:
// the flow controller consumes it but does not implement G-Code semantic
// transformation itself. It may expand one StreamQueue line into zero or
// more transmittable lines.
type Preprocessor interface {
	Process(line grbl.Line) []grbl.Line
}

// PassthroughPreprocessor is the identity transform, for debugging where
// the wire should mirror the input exactly. The driver does not use it; it
// always builds DefaultPipeline.
type PassthroughPreprocessor struct{}

func (PassthroughPreprocessor) Process(line grbl.Line) []grbl.Line {
	return []grbl.Line{line}
}

var (
	parenCommentRe = regexp.MustCompile(`\([^)]*\)`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// CommentStripPreprocessor strips ";" line comments and "(...)"
// delimited comments and collapses whitespace, using regular expressions
// on the raw text (no G-code tokenization). A line that is comment-only (or already blank)
// collapses to a single empty transmittable line rather than being
// dropped, matching scenario 2's `""` expansion.
type CommentStripPreprocessor struct{}

func (CommentStripPreprocessor) Process(line grbl.Line) []grbl.Line {
	s := string(line)
	if idx := strings.IndexByte(s, ';'); idx >= 0 {
		s = s[:idx]
	}
	s = parenCommentRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	return []grbl.Line{grbl.Line(s)}
}

var feedWordRe = regexp.MustCompile(`F[0-9]*\.?[0-9]+`)

// FeedOverridePreprocessor rewrites a line's F word to a fixed value when
// enabled, grounded on github.com/256dpi/gcode for detecting whether an F
// word is present (the library's Block/Code model is used for detection;
// the line is rewritten textually rather than re-serialized from the
// parsed Block, since the rewrite must touch only the F word and leave
// every other token, including comments already stripped upstream, byte
// for byte unchanged).
type FeedOverridePreprocessor struct {
	mu      sync.Mutex
	enabled bool
	feed    float64
}

// SetEnabled toggles the override, the Go-native equivalent of
// set_feed_override(bool).
func (p *FeedOverridePreprocessor) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// SetFeed sets the feed value substituted into every F word while the
// override is enabled, the equivalent of request_feed(value).
func (p *FeedOverridePreprocessor) SetFeed(feed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feed = feed
}

func (p *FeedOverridePreprocessor) Process(line grbl.Line) []grbl.Line {
	p.mu.Lock()
	enabled, feed := p.enabled, p.feed
	p.mu.Unlock()

	if !enabled {
		return []grbl.Line{line}
	}

	s := string(line)
	if s == "" {
		return []grbl.Line{line}
	}

	block, err := gcode.ParseLine(s)
	if err != nil {
		return []grbl.Line{line}
	}

	hasFeed := false
	for _, code := range block.Codes {
		if code.Letter == "F" {
			hasFeed = true
			break
		}
	}

	replacement := fmt.Sprintf("F%.3f", feed)
	if hasFeed {
		s = feedWordRe.ReplaceAllString(s, replacement)
	} else {
		s = strings.TrimRight(s, " ") + " " + replacement
	}
	return []grbl.Line{grbl.Line(s)}
}

// CompositePreprocessor chains stages left to right, threading every
// output line of one stage into the next. Used to build the default
// streaming pipeline (comment strip, then feed override).
type CompositePreprocessor struct {
	Stages []Preprocessor
}

func (c CompositePreprocessor) Process(line grbl.Line) []grbl.Line {
	current := []grbl.Line{line}
	for _, stage := range c.Stages {
		var next []grbl.Line
		for _, l := range current {
			next = append(next, stage.Process(l)...)
		}
		current = next
	}
	return current
}

// DefaultPipeline is the streaming-mode default: strip comments first,
// then apply any feed override, matching SPEC_FULL's "composed before
// FeedOverridePreprocessor" ordering.
func DefaultPipeline(feedOverride *FeedOverridePreprocessor) Preprocessor {
	return CompositePreprocessor{Stages: []Preprocessor{
		CommentStripPreprocessor{},
		feedOverride,
	}}
}
