// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	settingLineRe     = regexp.MustCompile(`^\$(\d+)=(\S+)\s*(?:\((.*)\))?$`)
	hashLineRe        = regexp.MustCompile(`^\[(G5[4-9]|G28|G30|G92|TLO|PRB):([^\]]*)\]$`)
	parserStateTokenRe = regexp.MustCompile(`^[GMTFSP][0-9]`)
)

// Parser classifies inbound lines per the grammar rules below, applied in
// order. It holds the small amount of state needed to accumulate the
// multi-line $$ and $# responses into a single downstream event; everything
// else about a line is stateless.
//
// Rule order:
//  1. "ok"                           -> ParsedOk (or ParsedSettingsDownloaded if a $$ dump is in progress)
//  2. "error:CODE"                   -> ParsedError
//  3. "ALARM:CODE"                   -> ParsedAlarm
//  4. "Grbl ..."                     -> ParsedBoot
//  5. "<...>"                        -> ParsedStatus
//  6. "$N=V (comment)"               -> ParsedSettingLine
//  7. "[PREFIX:payload]" (PREFIX in HashPrefixes) -> ParsedHashLine, or
//     ParsedHashStateUpdate/ParsedProbe on the PRB terminator
//  8. "[G0 G54 ...]" / "[GC:...]"    -> ParsedParserState
//  9. anything else                  -> ParsedUnknown
type Parser struct {
	mu sync.Mutex

	collectingSettings bool
	pendingSettings     map[int]SettingEntry

	collectingHash bool
	pendingHash    map[string][]float64
}

// NewParser returns a Parser ready to classify lines. No settings or hash
// collection is in progress until NotifySettingsRequested/NotifyHashRequested
// is called by the orchestrator when the corresponding query is written.
func NewParser() *Parser {
	return &Parser{
		pendingSettings: map[int]SettingEntry{},
		pendingHash:     map[string][]float64{},
	}
}

// NotifySettingsRequested tells the parser that "$$" has just been written
// to the wire, so the next run of "$N=V" lines should be accumulated rather
// than treated as unrelated unknown lines, and the "ok" that terminates the
// dump should be reinterpreted as ParsedSettingsDownloaded.
func (p *Parser) NotifySettingsRequested() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectingSettings = true
	p.pendingSettings = map[int]SettingEntry{}
}

// NotifyHashRequested is the $# analogue of NotifySettingsRequested. Unlike
// settings, the hash dump's own terminal line ([PRB:...]) carries the
// completion signal, not the "ok" that follows it.
func (p *Parser) NotifyHashRequested() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectingHash = true
	p.pendingHash = map[string][]float64{}
}

// Boot clears any in-progress accumulation; grbl resets on reboot and any
// partially collected dump is stale.
func (p *Parser) Boot() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectingSettings = false
	p.collectingHash = false
	p.pendingSettings = map[int]SettingEntry{}
	p.pendingHash = map[string][]float64{}
}

// Parse classifies a single inbound line (with any trailing CR/LF already
// stripped by the caller, though Parse strips defensively too).
func (p *Parser) Parse(raw string) Parsed {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := strings.TrimRight(raw, "\r\n")

	switch {
	case line == "ok":
		if p.collectingSettings {
			out := p.pendingSettings
			p.collectingSettings = false
			p.pendingSettings = map[int]SettingEntry{}
			return Parsed{Kind: ParsedSettingsDownloaded, Raw: line, Settings: out}
		}
		return Parsed{Kind: ParsedOk, Raw: line}

	case strings.HasPrefix(line, "error:"):
		return Parsed{Kind: ParsedError, Raw: line, Code: strings.TrimPrefix(line, "error:")}

	case strings.HasPrefix(line, "ALARM:"):
		return Parsed{Kind: ParsedAlarm, Raw: line, Code: strings.TrimPrefix(line, "ALARM:")}

	case strings.HasPrefix(line, "Grbl "):
		return Parsed{Kind: ParsedBoot, Raw: line, Version: strings.TrimPrefix(line, "Grbl ")}

	case strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">"):
		return p.parseStatus(line)

	case settingLineRe.MatchString(line):
		return p.parseSettingLine(line)

	case hashLineRe.MatchString(line):
		return p.parseHashLine(line)

	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return p.parseParserState(line)

	default:
		return Parsed{Kind: ParsedUnknown, Raw: line}
	}
}

func (p *Parser) parseStatus(line string) Parsed {
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "<"), ">")
	tokens := strings.Split(inner, ",")
	if len(tokens) == 0 {
		return Parsed{Kind: ParsedUnknown, Raw: line}
	}

	out := Parsed{Kind: ParsedStatus, Raw: line, Mode: ParseMode(tokens[0])}

	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		key, val, hasColon := strings.Cut(tok, ":")
		if !hasColon {
			continue
		}
		switch key {
		case "MPos":
			if i+2 < len(tokens) {
				out.MPos = Position{
					X: parseFloatOr(val, 0),
					Y: parseFloatOr(tokens[i+1], 0),
					Z: parseFloatOr(tokens[i+2], 0),
				}
				i += 2
			}
		case "WPos":
			if i+2 < len(tokens) {
				out.WPos = Position{
					X: parseFloatOr(val, 0),
					Y: parseFloatOr(tokens[i+1], 0),
					Z: parseFloatOr(tokens[i+2], 0),
				}
				out.HasWPos = true
				i += 2
			}
		case "F":
			out.Feed = parseFloatOr(val, 0)
			out.HasFeed = true
		case "Bf":
			if i+1 < len(tokens) {
				out.BufferFree = int(parseFloatOr(tokens[i+1], 0))
				out.HasBuffer = true
				i++
			}
		case "Ln":
			out.LineNumber = int(parseFloatOr(val, 0))
			out.HasLine = true
		}
	}

	return out
}

func (p *Parser) parseSettingLine(line string) Parsed {
	m := settingLineRe.FindStringSubmatch(line)
	id, _ := strconv.Atoi(m[1])
	entry := SettingEntry{Value: m[2], Comment: m[3]}

	if p.collectingSettings {
		p.pendingSettings[id] = entry
	}

	return Parsed{
		Kind:           ParsedSettingLine,
		Raw:            line,
		SettingID:      id,
		SettingValue:   entry.Value,
		SettingComment: entry.Comment,
	}
}

func (p *Parser) parseHashLine(line string) Parsed {
	m := hashLineRe.FindStringSubmatch(line)
	prefix := m[1]
	payload := m[2]

	var values []float64
	if prefix == "PRB" {
		// [PRB:x,y,z:s] — trailing :success flag.
		coords, _, _ := strings.Cut(payload, ":")
		for _, f := range strings.Split(coords, ",") {
			values = append(values, parseFloatOr(f, 0))
		}
	} else {
		for _, f := range strings.Split(payload, ",") {
			values = append(values, parseFloatOr(f, 0))
		}
	}

	out := Parsed{Kind: ParsedHashLine, Raw: line, HashPrefix: prefix, HashValues: values}

	if !p.collectingHash {
		// Spontaneous [PRB:...] outside a $# dump is a probe cycle result,
		// not a hash-table entry.
		if prefix == "PRB" {
			success := true
			if _, s, ok := strings.Cut(payload, ":"); ok {
				success = s == "1"
			}
			pos := Position{}
			if len(values) >= 3 {
				pos = Position{X: values[0], Y: values[1], Z: values[2]}
			}
			return Parsed{Kind: ParsedProbe, Raw: line, Probe: ProbeResult{Position: pos, Success: success}}
		}
		return out
	}

	p.pendingHash[prefix] = values
	if prefix != "PRB" {
		return out
	}

	result := p.pendingHash
	p.collectingHash = false
	p.pendingHash = map[string][]float64{}
	return Parsed{Kind: ParsedHashStateUpdate, Raw: line, HashState: result}
}

func (p *Parser) parseParserState(line string) Parsed {
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
	inner = strings.TrimPrefix(inner, "GC:")

	fields := strings.Fields(inner)
	if len(fields) == 0 || !parserStateTokenRe.MatchString(fields[0]) {
		// Not a parser-state line (e.g. a grbl [MSG:...] / [VER:...]
		// informational bracket) — leave it unclassified.
		return Parsed{Kind: ParsedUnknown, Raw: line}
	}

	modes := make([]string, 0, len(fields))
	for _, f := range fields {
		modes = append(modes, stripGMTFSPPrefix(f))
	}

	return Parsed{Kind: ParsedParserState, Raw: line, ParserModes: modes}
}

func stripGMTFSPPrefix(token string) string {
	i := 0
	for i < len(token) && strings.ContainsRune("GMTFSP", rune(token[i])) {
		i++
		break // only the single classifying letter is a prefix, not a run
	}
	return token[i:]
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}
