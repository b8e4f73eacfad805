package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"lava-submitter/internal/console"

	"github.com/rs/zerolog"
)

func newTestFollower(clock *fakeClock) *Follower {
	boot := NewSection("lava_boot", "LAVA boot", SectionBoot, true)
	return NewFollower(boot, DefaultTimeouts(), NewHints(DefaultR8152Threshold), clock, nil)
}

func TestFollowerSectionTransitions(t *testing.T) {
	clock := newFakeClock()
	f := newTestFollower(clock)

	alive, err := f.Feed([]LogLine{
		target("<LAVA_SIGNAL_STARTRUN 0_mesa>"),
		target("<LAVA_SIGNAL_STARTTC mesa>"),
		target("<LAVA_SIGNAL_STARTTC mesa>"),
		{Level: LevelDebug, Text: "<LAVA_SIGNAL_STARTTC mesa>"},
	})
	if err != nil || !alive {
		t.Fatalf("Feed() = %v, %v", alive, err)
	}
	if f.Phase() != SectionTestCase || f.Current().ID != "mesa" {
		t.Fatalf("current section = %v", f.Current())
	}

	out := strings.Join(f.Flush(), "\n")
	if n := strings.Count(out, "section_start:"); n != 3 {
		t.Errorf("got %d start markers, want 3 (boot, suite, case):\n%q", n, out)
	}
	if n := strings.Count(out, "section_end:"); n != 2 {
		t.Errorf("got %d end markers, want 2:\n%q", n, out)
	}

	closing := f.Close()
	if len(closing) != 1 || !strings.Contains(closing[0], "section_end:") {
		t.Errorf("Close() = %q", closing)
	}
	if again := f.Close(); len(again) != 0 {
		t.Errorf("second Close() = %q", again)
	}
}

func TestFollowerDumpIsNotAlive(t *testing.T) {
	f := newTestFollower(newFakeClock())
	alive, err := f.Feed([]LogLine{{Level: LevelTarget, Dump: []string{"Unable to handle kernel paging request", "Mem abort info:"}}})
	if err != nil {
		t.Fatal(err)
	}
	if alive {
		t.Error("kernel dump counted as device activity")
	}
}

func TestFollowerWatchdog(t *testing.T) {
	clock := newFakeClock()
	f := newTestFollower(clock)

	clock.Advance(9 * time.Minute)
	if _, err := f.Feed(nil); err != nil {
		t.Fatalf("timed out at exactly the budget: %v", err)
	}

	clock.Advance(time.Second)
	_, err := f.Feed([]LogLine{target("late")})
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeout.Duration != 9*time.Minute {
		t.Errorf("timeout carries %v, want 9m", timeout.Duration)
	}
}

func TestFollowerKnownIssue(t *testing.T) {
	f := newTestFollower(newFakeClock())
	lines := []LogLine{target("<LAVA_SIGNAL_STARTTC mesa>")}
	lines = append(lines, repeat(target(r8152Line), 10)...)
	lines = append(lines, target(nfsLine))

	_, err := f.Feed(lines)
	d, cause := Classify(err)
	if d != RetryKnownIssue || cause != CauseKnownIssue {
		t.Fatalf("Classify(%v) = %v, %v", err, d, cause)
	}
}

func TestFollowerStopsAtVerdict(t *testing.T) {
	f := newTestFollower(newFakeClock())
	_, err := f.Feed([]LogLine{
		target("<LAVA_SIGNAL_STARTTC mesa>"),
		target("hwci: mesa: fail"),
		target("<LAVA_SIGNAL_ENDTC mesa>"),
		target("trailing noise"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if f.Verdict() != StatusFail {
		t.Fatalf("Verdict() = %q", f.Verdict())
	}
	if f.Current().ID != "mesa" {
		t.Errorf("section moved past the verdict: %v", f.Current())
	}
	out := strings.Join(f.Close(), "\n")
	if strings.Contains(out, "trailing noise") || strings.Contains(out, "post-mesa") {
		t.Errorf("records after the verdict were rendered:\n%q", out)
	}
	if !strings.HasSuffix(out, console.SectionEnd(newFakeClock().Now().Unix(), "mesa")) {
		t.Errorf("open section not closed last:\n%q", out)
	}

	if alive, _ := f.Feed([]LogLine{target("late")}); alive {
		t.Error("batch after the verdict counted as activity")
	}
}

func TestFollowerLogsUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	f := NewFollower(nil, DefaultTimeouts(), nil, newFakeClock(), &log)

	if _, err := f.Feed([]LogLine{{Level: "mystery", Text: "odd"}, target("plain")}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), "unknown log level"); n != 1 {
		t.Errorf("got %d unknown level entries:\n%s", n, buf.String())
	}
	if out := strings.Join(f.Flush(), "\n"); !strings.Contains(out, "odd") {
		t.Errorf("record on unknown level dropped: %q", out)
	}
}
