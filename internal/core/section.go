package core

import (
	"fmt"
	"regexp"
	"time"

	"lava-submitter/internal/console"
)

// SectionType is the execution phase a log section belongs to.
type SectionType int

const (
	SectionUnknown SectionType = iota
	SectionBoot
	SectionTestSuite
	SectionTestCase
	SectionPostProcessing
)

func (t SectionType) String() string {
	switch t {
	case SectionBoot:
		return "lava_boot"
	case SectionTestSuite:
		return "test_suite"
	case SectionTestCase:
		return "test_case"
	case SectionPostProcessing:
		return "lava_post_processing"
	default:
		return "unknown"
	}
}

// Timeouts is the time budget of each section type. It is built once per run
// and handed to the follower, so per-run overrides never leak between runs.
type Timeouts struct {
	ByType   map[SectionType]time.Duration
	Fallback time.Duration
}

// DefaultTimeouts mirrors what a healthy device needs: boot is attempted three
// times by the dispatcher (3 x 3 min), test cases get most of the CI job budget.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ByType: map[SectionType]time.Duration{
			SectionBoot:           9 * time.Minute,
			SectionTestSuite:      5 * time.Minute,
			SectionTestCase:       60 * time.Minute,
			SectionPostProcessing: 5 * time.Minute,
		},
		Fallback: 10 * time.Minute,
	}
}

// For returns the budget of t, or the fallback when t has none.
func (t Timeouts) For(st SectionType) time.Duration {
	if d, ok := t.ByType[st]; ok {
		return d
	}
	return t.Fallback
}

// With returns a copy of t with st set to d.
func (t Timeouts) With(st SectionType, d time.Duration) Timeouts {
	by := make(map[SectionType]time.Duration, len(t.ByType)+1)
	for k, v := range t.ByType {
		by[k] = v
	}
	by[st] = d
	return Timeouts{ByType: by, Fallback: t.Fallback}
}

var unsafeSectionID = regexp.MustCompile(`[^\w-]+`)

// Section is a named span of job output shown as a collapsible region by the
// CI host.
type Section struct {
	ID        string
	Header    string
	Type      SectionType
	Collapsed bool
	Colour    string
	Start     time.Time
	End       time.Time
}

func NewSection(id, header string, typ SectionType, collapsed bool) *Section {
	return &Section{
		ID:        unsafeSectionID.ReplaceAllString(id, "-"),
		Header:    header,
		Type:      typ,
		Collapsed: collapsed,
		Colour:    console.DefaultHeaderColour,
	}
}

func (s *Section) IsOpen() bool { return !s.Start.IsZero() && s.End.IsZero() }

// Open starts the section at now and returns its start marker.
func (s *Section) Open(now time.Time) string {
	s.Start = now
	return console.SectionStart(now.Unix(), s.ID, s.Header, s.Colour, s.Collapsed)
}

// Close ends the section and returns its end marker. End never precedes Start.
func (s *Section) Close(now time.Time) string {
	if now.Before(s.Start) {
		now = s.Start
	}
	s.End = now
	return console.SectionEnd(now.Unix(), s.ID)
}

// Elapsed is the time spent in the section so far, or in total once closed.
func (s *Section) Elapsed(now time.Time) time.Duration {
	if s.Start.IsZero() {
		return 0
	}
	if !s.End.IsZero() {
		return s.End.Sub(s.Start)
	}
	return now.Sub(s.Start)
}

func (s *Section) HasTimedOut(now time.Time, budget time.Duration) bool {
	return s.Elapsed(now) > budget
}

func (s *Section) String() string {
	return fmt.Sprintf("%s (%s)", s.ID, s.Type)
}

// sectionRule recognises a phase transition in the log stream. id and header
// are fmt templates fed with the regex captures.
type sectionRule struct {
	pattern   *regexp.Regexp
	levels    []Level
	id        string
	header    string
	typ       SectionType
	collapsed bool
}

func (r sectionRule) match(line LogLine) *Section {
	if line.IsDump() || !r.appliesTo(line.Level) {
		return nil
	}
	m := r.pattern.FindStringSubmatch(line.Text)
	if m == nil {
		return nil
	}
	groups := make([]interface{}, 0, len(m)-1)
	for _, g := range m[1:] {
		groups = append(groups, g)
	}
	return NewSection(fmt.Sprintf(r.id, groups...), fmt.Sprintf(r.header, groups...), r.typ, r.collapsed)
}

func (r sectionRule) appliesTo(l Level) bool {
	for _, lvl := range r.levels {
		if lvl == l {
			return true
		}
	}
	return false
}

// sectionRules are evaluated in order, the first match wins.
var sectionRules = []sectionRule{
	{
		pattern: regexp.MustCompile(`<?STARTTC>? ([^>]*)`),
		levels:  []Level{LevelTarget, LevelDebug},
		id:      "%s",
		header:  "test_case %s",
		typ:     SectionTestCase,
	},
	{
		pattern: regexp.MustCompile(`<?STARTRUN>? ([^>]*)`),
		levels:  []Level{LevelTarget, LevelDebug},
		id:      "%s",
		header:  "test_suite %s",
		typ:     SectionTestSuite,
	},
	{
		pattern:   regexp.MustCompile(`ENDTC>? ([^>]+)`),
		levels:    []Level{LevelTarget, LevelDebug},
		id:        "post-%s",
		header:    "Post test_case %s",
		typ:       SectionPostProcessing,
		collapsed: true,
	},
}

// MatchSection returns the section started by line, if any.
func MatchSection(line LogLine) *Section {
	for _, rule := range sectionRules {
		if s := rule.match(line); s != nil {
			return s
		}
	}
	return nil
}
