package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{Problem: "tsp", HistoryLength: 100, Seed: 42})

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Config.Problem != "tsp" || job.Config.HistoryLength != 100 {
		t.Errorf("Config not set correctly: %+v", job.Config)
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Problem: "quadratic"})

	snapshot, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	snapshot.State = StateFailed

	again, _ := jm.GetJob(job.ID)
	if again.State != StatePending {
		t.Error("modifying a snapshot must not change the managed job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(JobConfig{Problem: "quadratic"})
	time.Sleep(2 * time.Millisecond)
	second := jm.CreateJob(JobConfig{Problem: "tsp"})

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Error("jobs should be listed oldest first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Problem: "quadratic"})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Step = 10
		j.BestEnergy = 123.45
	})
	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning || updated.Step != 10 || updated.BestEnergy != 123.45 {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Update of nonexistent job should fail")
	}

	running := jm.GetRunningJobs()
	if len(running) != 1 || running[0].ID != job.ID {
		t.Errorf("expected one running job, got %d", len(running))
	}
}

func TestJobManager_CancelJob(t *testing.T) {
	jm := NewJobManager()

	if err := jm.CancelJob("nonexistent"); err == nil || errors.Is(err, ErrJobFinished) {
		t.Errorf("expected not-found error, got %v", err)
	}

	job := jm.CreateJob(JobConfig{Problem: "quadratic"})
	ctx, cancel := context.WithCancel(context.Background())
	jm.setCancel(job.ID, cancel)

	if err := jm.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if ctx.Err() == nil {
		t.Error("cancel function should have been called")
	}

	jm.release(job.ID)
	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCancelled })
	if err := jm.CancelJob(job.ID); !errors.Is(err, ErrJobFinished) {
		t.Errorf("expected ErrJobFinished, got %v", err)
	}
}

func TestJobManager_CancelAll(t *testing.T) {
	jm := NewJobManager()

	var ctxs []context.Context
	for i := 0; i < 3; i++ {
		job := jm.CreateJob(JobConfig{Problem: "quadratic"})
		ctx, cancel := context.WithCancel(context.Background())
		jm.setCancel(job.ID, cancel)
		ctxs = append(ctxs, ctx)
	}

	jm.CancelAll()
	for i, ctx := range ctxs {
		if ctx.Err() == nil {
			t.Errorf("job %d was not cancelled", i)
		}
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Problem: "quadratic"})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(step int) {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Step = step
			})
			jm.GetJob(job.ID)
			jm.ListJobs()
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if _, exists := jm.GetJob(job.ID); !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}

func TestJobState_Terminal(t *testing.T) {
	for state, want := range map[JobState]bool{
		StatePending:   false,
		StateRunning:   false,
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	} {
		if state.Terminal() != want {
			t.Errorf("%s: expected terminal=%v", state, want)
		}
	}
}
