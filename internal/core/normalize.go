package core

import (
	"regexp"
	"strings"

	"lava-submitter/internal/console"
)

// Lines coming from the device pass through several hops that strip control
// bytes. These patterns find what is left of them.
var (
	mangledColor   = regexp.MustCompile(`\[(\d+;?)*m`)
	mangledSection = regexp.MustCompile(`^\[0K(section_\w+):(\d+):(\S+)\[0K([\S ]+)?`)
	debugNoise     = regexp.MustCompile(`^Listened to connection for namespace`)
)

const esc = "\x1b"

// FixColorLog puts back the escape byte in front of color codes that lost it.
// Codes already preceded by an escape byte are left alone.
func FixColorLog(msg string) string {
	locs := mangledColor.FindAllStringIndex(msg, -1)
	if locs == nil {
		return msg
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(msg[last:loc[0]])
		if loc[0] == 0 || msg[loc[0]-1] != esc[0] {
			b.WriteString(esc)
		}
		b.WriteString(msg[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(msg[last:])
	return b.String()
}

// FixSectionLog rebuilds CI folding markers printed by the device whose escape
// and carriage-return bytes were dropped. Start and end markers share the
// pattern, an end marker has no header.
func FixSectionLog(msg string) string {
	m := mangledSection.FindStringSubmatch(msg)
	if m == nil {
		return msg
	}
	marker, timestamp, idCollapsible, header := m[1], m[2], m[3], m[4]
	return console.Escape + marker + ":" + timestamp + ":" + idCollapsible + "\r" + console.Escape + header
}

// IsDebugNoise reports lines the dispatcher repeats while waiting that carry no
// information for the developer.
func IsDebugNoise(line LogLine) bool {
	if line.Level != LevelDebug || line.IsDump() {
		return false
	}
	return debugNoise.MatchString(line.Text)
}

// NormalizeLine renders line for the job log. ok is false when the line must be
// dropped.
func NormalizeLine(line LogLine) (out string, ok bool) {
	if line.Level == LevelResults || line.Level == LevelFeedback {
		return "", false
	}
	if line.IsDump() {
		return console.Dim + strings.Join(line.Dump, "\n") + console.Reset, true
	}
	switch line.Level {
	case LevelWarning, LevelError:
		return console.FgRed + line.Text + console.Reset, true
	case LevelInput:
		return "$ " + line.Text, true
	case LevelTarget:
		return FixSectionLog(FixColorLog(line.Text)), true
	case LevelDebug:
		if IsDebugNoise(line) {
			return "", false
		}
	}
	return line.Text, true
}
