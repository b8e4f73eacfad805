package console

import (
	"strconv"
	"strings"
)

// DefaultHeaderColour is used when a section does not pick its own colour.
const DefaultHeaderColour = Bold + FgGreen

// SectionStart renders a collapsible log region opening marker:
// ESC[0Ksection_start:<ts>:<id>[collapsed=true]\rESC[0K<colour><header>ESC[0m
func SectionStart(ts int64, id, header, colour string, collapsed bool) string {
	sectionID := id
	if collapsed {
		sectionID += "[collapsed=true]"
	}
	return marker("start", ts, sectionID, header, colour)
}

// SectionEnd renders the closing marker for id. The header part is always empty.
func SectionEnd(ts int64, id string) string {
	return marker("end", ts, id, "", "")
}

func marker(kind string, ts int64, id, header, colour string) string {
	var b strings.Builder
	b.WriteString(Escape)
	b.WriteString("section_")
	b.WriteString(kind)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte(':')
	b.WriteString(id)
	b.WriteByte('\r')
	b.WriteString(Escape)
	if header != "" {
		if colour == "" {
			colour = DefaultHeaderColour
		}
		b.WriteString(colour)
		b.WriteString(header)
		b.WriteString(Reset)
	}
	return b.String()
}
