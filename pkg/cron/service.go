// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package cron schedules recurring and one-shot jobs that the agent loop or
// channel layer executes later: reminders, recurring digests, and
// single-fire timers. Schedules come in three kinds: a fixed interval
// ("every"), a POSIX 5-field cron expression ("cron", evaluated by gronx),
// and a one-time absolute timestamp ("at"). "at" jobs disable themselves
// once fired rather than being deleted, so their history stays inspectable.
package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nanobot-ai/nanobot/pkg/logger"
)

// CronSchedule describes when a job fires. Exactly one of EveryMS, AtMS, or
// Expr is meaningful, selected by Kind ("every", "at", "cron").
type CronSchedule struct {
	Kind    string `json:"kind"`
	EveryMS *int64 `json:"every_ms,omitempty"`
	AtMS    *int64 `json:"at_ms,omitempty"`
	Expr    string `json:"expr,omitempty"`
}

// CronPayload is what a job delivers when it fires.
type CronPayload struct {
	Message string `json:"message"`
	Deliver bool   `json:"deliver"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
}

// CronState tracks a job's run history.
type CronState struct {
	NextRunAtMS *int64 `json:"next_run_at_ms,omitempty"`
	LastRunAtMS *int64 `json:"last_run_at_ms,omitempty"`
	LastResult  string `json:"last_result,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// CronJob is one scheduled unit of work.
type CronJob struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Schedule       CronSchedule `json:"schedule"`
	Payload        CronPayload  `json:"payload"`
	Enabled        bool         `json:"enabled"`
	DeleteAfterRun bool         `json:"delete_after_run"`
	State          CronState    `json:"state"`
	CreatedAtMS    int64        `json:"created_at_ms"`
}

type cronStore struct {
	Jobs map[string]*CronJob `json:"jobs"`
	next int
}

// JobExecutor runs one job and reports a short human-readable result.
type JobExecutor func(job *CronJob) (string, error)

// CronService owns the on-disk job store and the background ticker loop
// that fires due jobs.
type CronService struct {
	path     string
	executor JobExecutor

	mu    sync.Mutex
	store *cronStore

	stopCh chan struct{}
	wg     sync.WaitGroup
	running bool
}

// NewCronService loads (or creates) the job store at path. executor may be
// nil; Start() is then a no-op ticker with nothing to deliver jobs to.
func NewCronService(path string, executor JobExecutor) *CronService {
	cs := &CronService{
		path:     path,
		executor: executor,
		store:    &cronStore{Jobs: map[string]*CronJob{}},
	}
	cs.load()
	return cs
}

func (cs *CronService) load() {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return
	}
	var persisted struct {
		Jobs map[string]*CronJob `json:"jobs"`
		Next int                 `json:"next"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		logger.WarnCF("cron", "Failed to parse cron store, starting fresh", map[string]interface{}{"error": err.Error()})
		return
	}
	if persisted.Jobs == nil {
		persisted.Jobs = map[string]*CronJob{}
	}
	cs.store.Jobs = persisted.Jobs
	cs.store.next = persisted.Next
}

func (cs *CronService) saveLocked() {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0755); err != nil {
		logger.WarnCF("cron", "Failed to create cron store dir", map[string]interface{}{"error": err.Error()})
		return
	}

	payload := struct {
		Jobs map[string]*CronJob `json:"jobs"`
		Next int                 `json:"next"`
	}{Jobs: cs.store.Jobs, Next: cs.store.next}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.WarnCF("cron", "Failed to marshal cron store", map[string]interface{}{"error": err.Error()})
		return
	}

	tmp := cs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		logger.WarnCF("cron", "Failed to write cron store", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.Rename(tmp, cs.path); err != nil {
		logger.WarnCF("cron", "Failed to persist cron store", map[string]interface{}{"error": err.Error()})
	}
}

// AddJob creates and persists a new job, computing its initial next-run time.
func (cs *CronService) AddJob(name string, schedule CronSchedule, message string, deliver bool, channel, to string) (*CronJob, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.store.next++
	id := fmt.Sprintf("job-%d", cs.store.next)

	job := &CronJob{
		ID:             id,
		Name:           name,
		Schedule:       schedule,
		Payload:        CronPayload{Message: message, Deliver: deliver, Channel: channel, To: to},
		Enabled:        true,
		DeleteAfterRun: schedule.Kind == "at",
		CreatedAtMS:    time.Now().UnixMilli(),
	}
	job.State.NextRunAtMS = cs.computeNextRun(&schedule, time.Now().UnixMilli())

	cs.store.Jobs[id] = job
	cs.saveLocked()
	return job, nil
}

// RemoveJob deletes a job by ID, returning whether it existed.
func (cs *CronService) RemoveJob(id string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.store.Jobs[id]; !ok {
		return false
	}
	delete(cs.store.Jobs, id)
	cs.saveLocked()
	return true
}

// EnableJob toggles a job's Enabled flag, recomputing NextRunAtMS (or
// clearing it when disabling). Returns nil if the job doesn't exist.
func (cs *CronService) EnableJob(id string, enabled bool) *CronJob {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	job, ok := cs.store.Jobs[id]
	if !ok {
		return nil
	}

	job.Enabled = enabled
	if enabled {
		job.State.NextRunAtMS = cs.computeNextRun(&job.Schedule, time.Now().UnixMilli())
	} else {
		job.State.NextRunAtMS = nil
	}
	cs.saveLocked()
	return job
}

// ListJobs returns all jobs when includeDisabled is true, otherwise only
// enabled jobs.
func (cs *CronService) ListJobs(includeDisabled bool) []*CronJob {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	jobs := make([]*CronJob, 0, len(cs.store.Jobs))
	for _, job := range cs.store.Jobs {
		if !includeDisabled && !job.Enabled {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// Status reports job count and whether the ticker loop is running.
func (cs *CronService) Status() map[string]interface{} {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return map[string]interface{}{
		"jobs":    len(cs.store.Jobs),
		"enabled": cs.running,
	}
}

// computeNextRun returns the next fire time in epoch milliseconds for a
// schedule, or nil when the schedule can never fire again (e.g. a past
// "at" time, or an invalid/empty expression).
func (cs *CronService) computeNextRun(schedule *CronSchedule, fromMS int64) *int64 {
	switch schedule.Kind {
	case "every":
		if schedule.EveryMS == nil || *schedule.EveryMS <= 0 {
			return nil
		}
		next := fromMS + *schedule.EveryMS
		return &next

	case "at":
		if schedule.AtMS == nil || *schedule.AtMS <= fromMS {
			return nil
		}
		at := *schedule.AtMS
		return &at

	case "cron":
		if schedule.Expr == "" {
			return nil
		}
		from := time.UnixMilli(fromMS)
		next, err := gronx.NextTickAfter(schedule.Expr, from, false)
		if err != nil {
			return nil
		}
		ms := next.UnixMilli()
		return &ms

	default:
		return nil
	}
}

// Start begins the background ticker loop. Calling Start on an already
// running service is a no-op.
func (cs *CronService) Start() error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return nil
	}
	cs.running = true
	cs.stopCh = make(chan struct{})
	cs.mu.Unlock()

	cs.wg.Add(1)
	go cs.loop()
	return nil
}

// Stop halts the ticker loop. Calling Stop when not running is a no-op.
func (cs *CronService) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	close(cs.stopCh)
	cs.mu.Unlock()

	cs.wg.Wait()
}

func (cs *CronService) loop() {
	defer cs.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cs.stopCh:
			return
		case <-ticker.C:
			cs.tick()
		}
	}
}

func (cs *CronService) tick() {
	now := time.Now().UnixMilli()

	var due []*CronJob
	cs.mu.Lock()
	for _, job := range cs.store.Jobs {
		if !job.Enabled || job.State.NextRunAtMS == nil {
			continue
		}
		if *job.State.NextRunAtMS <= now {
			due = append(due, job)
		}
	}
	cs.mu.Unlock()

	for _, job := range due {
		cs.runJob(job)
	}
}

func (cs *CronService) runJob(job *CronJob) {
	var result string
	var err error
	if cs.executor != nil {
		result, err = cs.executor(job)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	current, ok := cs.store.Jobs[job.ID]
	if !ok {
		return
	}

	now := time.Now().UnixMilli()
	current.State.LastRunAtMS = &now
	if err != nil {
		current.State.LastError = err.Error()
		logger.WarnCF("cron", "Job execution failed", map[string]interface{}{"job_id": job.ID, "error": err.Error()})
	} else {
		current.State.LastError = ""
		current.State.LastResult = result
	}

	if current.DeleteAfterRun {
		current.Enabled = false
		current.State.NextRunAtMS = nil
	} else {
		current.State.NextRunAtMS = cs.computeNextRun(&current.Schedule, now)
	}

	cs.saveLocked()
}
