package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakeClock is frozen until Sleep or Advance moves it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	// onSleep runs after every Sleep, with the clock already advanced.
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2022, 5, 16, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	if c.onSleep != nil {
		c.onSleep(d)
	}
	return ctx.Err()
}

type logReply struct {
	finished bool
	data     string
	err      error
}

// fakeScheduler replays scripted replies. Each Submit starts a new job whose
// states and logs come from newJob.
type fakeScheduler struct {
	mu sync.Mutex

	submitErrs []error
	nextID     int
	newJob     func(id string) *fakeRemoteJob

	jobs      map[string]*fakeRemoteJob
	canceled  []string
	showCalls int
	validate  map[string]interface{}
}

type fakeRemoteJob struct {
	states    []string
	logs      []logReply
	results   string
	resultErr error
	show      map[string]interface{}
	logCalls  int
	// corrupt replies come before the scripted logs
	corrupt int
	// endless jobs never finish once the scripted logs run out
	endless bool
}

const corruptedChunk = "- {dt: x, lvl: target, msg: [unclosed"

func newFakeScheduler(newJob func(id string) *fakeRemoteJob) *fakeScheduler {
	return &fakeScheduler{nextID: 1000, newJob: newJob, jobs: map[string]*fakeRemoteJob{}}
}

func (s *fakeScheduler) Submit(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.submitErrs) > 0 {
		err := s.submitErrs[0]
		s.submitErrs = s.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	s.nextID++
	id := fmt.Sprint(s.nextID)
	s.jobs[id] = s.newJob(id)
	return id, nil
}

func (s *fakeScheduler) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = append(s.canceled, id)
	return nil
}

func (s *fakeScheduler) JobState(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if len(j.states) == 0 {
		return "Running", nil
	}
	st := j.states[0]
	j.states = j.states[1:]
	return st, nil
}

func (s *fakeScheduler) Logs(_ context.Context, id string, _ int) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.logCalls++
	if j.corrupt > 0 {
		j.corrupt--
		return false, []byte(corruptedChunk), nil
	}
	if len(j.logs) == 0 {
		return !j.endless, nil, nil
	}
	r := j.logs[0]
	j.logs = j.logs[1:]
	return r.finished, []byte(r.data), r.err
}

func (s *fakeScheduler) Results(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	return []byte(j.results), j.resultErr
}

func (s *fakeScheduler) Show(_ context.Context, id string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showCalls++
	if j := s.jobs[id]; j != nil && j.show != nil {
		return j.show, nil
	}
	return map[string]interface{}{"id": id, "device": "acer-cb317-1h-c3z6-dedede-cbg-01"}, nil
}

func (s *fakeScheduler) Validate(_ context.Context, _ string) (map[string]interface{}, error) {
	return s.validate, nil
}

// chunk renders records the way scheduler.jobs.logs returns them.
func chunk(records ...string) string {
	return strings.Join(records, "")
}

func rec(lvl, msg string) string {
	return fmt.Sprintf("- {dt: '2022-05-16T10:00:00', lvl: %s, msg: %q}\n", lvl, msg)
}

func verdictJob(result string) func(string) *fakeRemoteJob {
	return func(string) *fakeRemoteJob {
		return &fakeRemoteJob{
			states: []string{"Submitted", "Scheduled"},
			logs: []logReply{
				{data: chunk(rec("target", "booting kernel"))},
				{finished: true, data: chunk(rec("target", "hwci: mesa: "+result))},
			},
		}
	}
}
