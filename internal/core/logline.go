package core

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Level is the channel a log record was emitted on.
type Level string

const (
	LevelResults  Level = "results"
	LevelFeedback Level = "feedback"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelDebug    Level = "debug"
	LevelInput    Level = "input"
	LevelTarget   Level = "target"
)

// Valid reports whether l is one of the known channels.
func (l Level) Valid() bool {
	switch l {
	case LevelResults, LevelFeedback, LevelWarning, LevelError, LevelDebug, LevelInput, LevelTarget:
		return true
	}
	return false
}

// LogLine is one record of the remote log stream. Exactly one of Text and Dump
// carries the payload: Dump holds multi-line structured payloads such as
// kernel memory dumps.
type LogLine struct {
	DT    string
	Level Level
	Text  string
	Dump  []string
}

// IsDump reports whether the payload is structured rather than plain text.
func (l LogLine) IsDump() bool { return l.Dump != nil }

type rawLogLine struct {
	DT  string    `yaml:"dt"`
	Lvl string    `yaml:"lvl"`
	Msg yaml.Node `yaml:"msg"`
}

// DecodeLogChunk turns one scheduler.jobs.logs payload into records. An empty
// payload means no new data.
func DecodeLogChunk(data []byte) ([]LogLine, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var raw []rawLogLine
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode log chunk: %w", err)
	}

	lines := make([]LogLine, 0, len(raw))
	for _, r := range raw {
		// unknown levels are kept and printed verbatim
		line := LogLine{DT: r.DT, Level: Level(r.Lvl)}
		switch r.Msg.Kind {
		case yaml.SequenceNode:
			line.Dump = make([]string, 0, len(r.Msg.Content))
			for _, item := range r.Msg.Content {
				line.Dump = append(line.Dump, nodeText(item))
			}
		case 0:
			// msg missing
		default:
			line.Text = nodeText(&r.Msg)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func nodeText(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	out, err := yaml.Marshal(n)
	if err != nil {
		return n.Value
	}
	return strings.TrimSpace(string(out))
}
