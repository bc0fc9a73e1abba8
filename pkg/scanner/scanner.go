// Package scanner implements the Excluded-Zone Scanner: a character-stream
// state machine that finds regexp matches only at logical line beginnings,
// skipping configured comment/string zones with escape and line-continuation
// handling. It is the shared primitive behind both the C include resolver
// (pkg/cproject) and the build-script invalidator (pkg/invalidator), mirroring
// how pysbs/misc/include_finder.py backs both pysbs/c/deps.py and
// pysbs/misc/invalidator.py in the original implementation.
package scanner

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ErrEmptyZoneBoundary is a ProgrammerError (spec §7): an ExcludedZoneSpec
// with an empty Begin or End is invalid and rejected eagerly.
var ErrEmptyZoneBoundary = errors.New("excluded zone spec has empty begin or end")

// Zone describes one excluded span: comments, string literals, and the like.
// Matching `begin`/`end` are literal substrings, not regexps.
type Zone struct {
	Begin             string
	End               string
	HasEscapes        bool
	IsIgnoredByParser bool
}

// Validate rejects zero-length boundaries, per spec §4.3 edge cases.
func (z Zone) Validate() error {
	if z.Begin == "" || z.End == "" {
		return ErrEmptyZoneBoundary
	}
	return nil
}

// Match is one located regexp match, source order, capture groups preserved.
type Match struct {
	// Start/End are byte offsets into the scanned source.
	Start, End int
	// Groups holds regexp.FindStringSubmatch's result for this match.
	Groups []string
}

// Options configures a Find call.
type Options struct {
	Zones []Zone
	// HasNLEscapes enables backslash-newline line-continuation handling
	// outside of zones. The zero value leaves it off; the callers in this
	// module (pkg/cproject, pkg/invalidator) set it to true.
	HasNLEscapes bool
}

// Find runs the excluded-zone state machine over source, attempting matcher
// only when the cursor is at a logical line beginning outside any zone.
// The algorithm below is a literal transcription of spec.md §4.3 (itself a
// transcription of pysbs/misc/include_finder.py:find_includes).
func Find(source string, opts Options, matcher *regexp.Regexp) ([]Match, error) {
	for _, z := range opts.Zones {
		if err := z.Validate(); err != nil {
			return nil, err
		}
	}

	var (
		result            []Match
		pos               = 0
		n                 = len(source)
		onLineBegin       = true
		possibleEscapeNL  = false
		escape            = false
		insideZone        = false
		zone              Zone
	)

	hasSubstringAt := func(s string, at int, sub string) bool {
		if sub == "" {
			return false
		}
		return strings.HasPrefix(s[at:], sub)
	}

	for pos < n {
		if insideZone {
			switch {
			case escape:
				escape = false
				pos++
			case zone.HasEscapes && source[pos] == '\\':
				escape = true
				pos++
			case hasSubstringAt(source, pos, zone.End):
				pos += len(zone.End)
				if strings.HasSuffix(zone.End, "\n") {
					onLineBegin = true
				}
				insideZone = false
			default:
				pos++
			}
			continue
		}

		// OUTSIDE state.
		enteredZone := false
		for _, z := range opts.Zones {
			if hasSubstringAt(source, pos, z.Begin) {
				insideZone = true
				zone = z
				pos += len(z.Begin)
				onLineBegin = onLineBegin && z.IsIgnoredByParser
				possibleEscapeNL = false
				enteredZone = true
				break
			}
		}
		if enteredZone {
			continue
		}

		ch := source[pos]
		switch {
		case opts.HasNLEscapes && ch == '\\':
			possibleEscapeNL = true
			pos++
		case ch == '\n':
			if !possibleEscapeNL {
				onLineBegin = true
			}
			possibleEscapeNL = true
			pos++
		case !isSpace(ch):
			matched := false
			if onLineBegin {
				loc := matcher.FindStringSubmatchIndex(source[pos:])
				if loc != nil && loc[0] == 0 {
					groups := matcher.FindStringSubmatch(source[pos:])
					result = append(result, Match{
						Start:  pos,
						End:    pos + loc[1],
						Groups: groups,
					})
					pos += loc[1]
					onLineBegin = false
					possibleEscapeNL = false
					matched = true
				}
			}
			if !matched {
				onLineBegin = false
				if ch != '\\' {
					possibleEscapeNL = false
				}
				pos++
			}
		default:
			// whitespace other than newline: no state change besides cursor.
			pos++
		}
	}

	return result, nil
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
