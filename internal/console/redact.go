package console

import "strings"

// DefaultHideTag marks lines of a rendered job definition that carry secrets.
const DefaultHideTag = "HIDEME"

// HideSensitiveData drops every line containing tag, keeping the others byte-for-byte.
func HideSensitiveData(data, tag string) string {
	if tag == "" {
		tag = DefaultHideTag
	}
	var b strings.Builder
	for _, line := range strings.SplitAfter(data, "\n") {
		if strings.Contains(line, tag) {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}
