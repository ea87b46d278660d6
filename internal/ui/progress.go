package ui

import (
	"sort"
	"sync"
	"time"
)

// etaSmoothing weights the newest ETA sample against the previous one.
const etaSmoothing = 0.3

// JobProgress is a snapshot of one job.
type JobProgress struct {
	Job     string
	Stage   Stage
	Current int
	Total   int
	Message string
	Elapsed time.Duration
	ETA     time.Duration
}

// Fraction returns progress in [0, 1].
func (j JobProgress) Fraction() float64 {
	if j.Total <= 0 {
		if j.Stage == StageComplete {
			return 1
		}
		return 0
	}
	f := float64(j.Current) / float64(j.Total)
	if f > 1 {
		return 1
	}
	return f
}

type jobState struct {
	stage   Stage
	current int
	total   int
	message string
	started time.Time
	// indexStart is when StageIndexing began; ETA ignores preparation.
	indexStart time.Time
	eta        time.Duration
}

// ProgressTracker aggregates progress events of concurrent jobs.
type ProgressTracker struct {
	mu     sync.RWMutex
	start  time.Time
	jobs   map[string]*jobState
	errors []ErrorEvent
	now    func() time.Time
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		start: time.Now(),
		jobs:  make(map[string]*jobState),
		now:   time.Now,
	}
}

// Update records an event.
func (p *ProgressTracker) Update(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	js, ok := p.jobs[event.Job]
	if !ok {
		js = &jobState{started: now}
		p.jobs[event.Job] = js
	}
	if event.Stage == StageIndexing && js.stage != StageIndexing {
		js.indexStart = now
	}
	js.stage = event.Stage
	js.current = event.Current
	js.total = event.Total
	if event.Message != "" {
		js.message = event.Message
	}
	js.eta = smoothETA(js, now)
}

func smoothETA(js *jobState, now time.Time) time.Duration {
	if js.stage != StageIndexing || js.current <= 0 || js.total <= js.current {
		return 0
	}
	elapsed := now.Sub(js.indexStart)
	perItem := elapsed / time.Duration(js.current)
	raw := perItem * time.Duration(js.total-js.current)
	if js.eta == 0 {
		return raw
	}
	return time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(js.eta))
}

// Finish marks a job complete.
func (p *ProgressTracker) Finish(job string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if js, ok := p.jobs[job]; ok {
		js.stage = StageComplete
		js.eta = 0
	}
}

func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, event)
}

// Jobs returns snapshots sorted by job name.
func (p *ProgressTracker) Jobs() []JobProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	out := make([]JobProgress, 0, len(p.jobs))
	for name, js := range p.jobs {
		out = append(out, JobProgress{
			Job:     name,
			Stage:   js.stage,
			Current: js.current,
			Total:   js.total,
			Message: js.message,
			Elapsed: now.Sub(js.started),
			ETA:     js.eta,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

// Overall is the object-weighted progress of all jobs.
func (p *ProgressTracker) Overall() float64 {
	var cur, total int
	for _, j := range p.Jobs() {
		cur += min(j.Current, j.Total)
		total += j.Total
	}
	if total == 0 {
		return 0
	}
	return float64(cur) / float64(total)
}

func (p *ProgressTracker) Elapsed() time.Duration {
	return p.now().Sub(p.start)
}

// Counts returns the number of errors and warnings.
func (p *ProgressTracker) Counts() (errs, warns int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.errors {
		if e.IsWarn {
			warns++
		} else {
			errs++
		}
	}
	return errs, warns
}
