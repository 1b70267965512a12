package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"usher/internal/database/models"
)

// Studio jobs run in two phases: first nudge the media server's library
// scan, then keep looking for the collection on a backoff ladder.
const (
	phaseRefresh = "refresh"
	phaseSync    = "sync"
)

type jobPayload struct {
	Phase    string `json:"phase,omitempty"`
	HookMode int    `json:"hook_mode,omitempty"`
}

func (m *Manager) catalogWait() time.Duration {
	if d, err := time.ParseDuration(m.cfg().SyncWorker.CatalogWait); err == nil && d > 0 {
		return d
	}
	return 35 * time.Second
}

func (m *Manager) serverWait() time.Duration {
	if d, err := time.ParseDuration(m.cfg().SyncWorker.ServerWait); err == nil && d > 0 {
		return d
	}
	return 70 * time.Second
}

func (m *Manager) retryBackoffs() []time.Duration {
	var backoffs []time.Duration
	for _, raw := range m.cfg().SyncWorker.RetryBackoffs {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			backoffs = append(backoffs, d)
		}
	}
	if len(backoffs) == 0 {
		backoffs = []time.Duration{30 * time.Second, 60 * time.Second, 90 * time.Second}
	}
	return backoffs
}

// backoffFor maps the attempt number just spent to the wait before the next
// one, clamping to the ladder's last rung.
func (m *Manager) backoffFor(attempt int) time.Duration {
	backoffs := m.retryBackoffs()
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffs) {
		idx = len(backoffs) - 1
	}
	return backoffs[idx]
}

func (m *Manager) enqueuePerformerJob(performerID string, hookMode int) {
	payload, _ := json.Marshal(jobPayload{HookMode: hookMode})
	maxAttempts := len(m.retryBackoffs()) + 1
	runAt := time.Now().Add(m.catalogWait())

	if _, err := m.jobRepo.Create(models.JobPerformerSync, performerID, string(payload), runAt, maxAttempts); err != nil {
		m.logger.Error("Could not enqueue performer job for", performerID, ":", err)
		return
	}
	m.logger.Info("Queued delayed sync for new performer", performerID)
}

func (m *Manager) enqueueStudioJob(studioID string) {
	payload, _ := json.Marshal(jobPayload{Phase: phaseRefresh})
	// The refresh phase consumes one attempt before the search ladder.
	maxAttempts := len(m.retryBackoffs()) + 2
	runAt := time.Now().Add(m.catalogWait())

	if _, err := m.jobRepo.Create(models.JobStudioSync, studioID, string(payload), runAt, maxAttempts); err != nil {
		m.logger.Error("Could not enqueue studio job for", studioID, ":", err)
		return
	}
	m.logger.Info("Queued delayed sync for new studio", studioID)
}

// runDueJobs executes every pending job whose run time has passed. Called
// from the scheduler every 10s.
func (m *Manager) runDueJobs() {
	due, err := m.jobRepo.Due(time.Now())
	if err != nil {
		m.logger.Error("Could not query due jobs:", err)
		return
	}

	for i := range due {
		m.runJob(&due[i])
	}
}

func (m *Manager) runJob(job *models.Job) {
	claimed, err := m.jobRepo.MarkRunning(job.ID)
	if err != nil {
		m.logger.Error("Could not mark job", job.ID, "running:", err)
		return
	}
	if !claimed {
		return
	}
	attempt := job.Attempt + 1

	var payload jobPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		m.failJob(job, fmt.Errorf("bad job payload: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch job.Kind {
	case models.JobPerformerSync:
		m.runPerformerJob(ctx, job, attempt, payload)
	case models.JobStudioSync:
		m.runStudioJob(ctx, job, attempt, payload)
	default:
		m.failJob(job, fmt.Errorf("unknown job kind %q", job.Kind))
	}
}

func (m *Manager) runPerformerJob(ctx context.Context, job *models.Job, attempt int, payload jobPayload) {
	if m.performers == nil {
		m.failJob(job, fmt.Errorf("no media server configured"))
		return
	}

	hookMode := payload.HookMode
	if hookMode == 0 {
		hookMode = m.cfg().PerformerSync.HookMode
	}

	if err := m.syncPerformer(ctx, job.SubjectID, hookMode); err != nil {
		m.retryOrFail(job, attempt, attempt, job.Payload, err)
		return
	}
	m.finishJob(job)
	m.events.Publish("performer_synced", fmt.Sprintf("performer %s synced", job.SubjectID))
}

func (m *Manager) runStudioJob(ctx context.Context, job *models.Job, attempt int, payload jobPayload) {
	if m.studios == nil {
		m.failJob(job, fmt.Errorf("no media server configured"))
		return
	}

	if payload.Phase == phaseRefresh || payload.Phase == "" {
		errMsg := ""
		if err := m.studios.RefreshLibrary(ctx); err != nil {
			m.logger.Warn("Library refresh for studio", job.SubjectID, "failed:", err)
			errMsg = err.Error()
		}
		next, _ := json.Marshal(jobPayload{Phase: phaseSync})
		if err := m.jobRepo.Reschedule(job.ID, string(next), time.Now().Add(m.serverWait()), errMsg); err != nil {
			m.logger.Error("Could not advance studio job", job.ID, ":", err)
		}
		return
	}

	err := m.studios.SyncByID(ctx, job.SubjectID)
	m.recordSyncState("studio", job.SubjectID, err)
	if err != nil {
		// The refresh phase burned the first attempt, so the search
		// ladder starts one rung back.
		m.retryOrFail(job, attempt, attempt-1, job.Payload, err)
		return
	}
	m.finishJob(job)
	m.events.Publish("studio_synced", fmt.Sprintf("studio %s synced", job.SubjectID))
}

func (m *Manager) retryOrFail(job *models.Job, attempt, ladderAttempt int, payload string, cause error) {
	if attempt >= job.MaxAttempts {
		m.failJob(job, cause)
		return
	}
	runAt := time.Now().Add(m.backoffFor(ladderAttempt))
	m.logger.Info("Job", job.ID, "attempt", attempt, "failed, retrying at", runAt.Format(time.RFC3339), ":", cause)
	if err := m.jobRepo.Reschedule(job.ID, payload, runAt, cause.Error()); err != nil {
		m.logger.Error("Could not reschedule job", job.ID, ":", err)
	}
}

func (m *Manager) failJob(job *models.Job, cause error) {
	m.logger.Error("Job", job.ID, "(", string(job.Kind), job.SubjectID, ") failed permanently:", cause)
	if err := m.jobRepo.Fail(job.ID, cause.Error()); err != nil {
		m.logger.Error("Could not mark job", job.ID, "failed:", err)
	}
	m.events.Publish("job_failed", fmt.Sprintf("%s %s: %v", job.Kind, job.SubjectID, cause))
}

func (m *Manager) finishJob(job *models.Job) {
	if err := m.jobRepo.Finish(job.ID); err != nil {
		m.logger.Error("Could not mark job", job.ID, "done:", err)
	}
}
