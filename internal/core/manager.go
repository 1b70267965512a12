package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/disk"

	"usher/internal/clients/catalog"
	"usher/internal/clients/mediaserver"
	"usher/internal/clients/notifications"
	"usher/internal/config"
	"usher/internal/database/models"
	"usher/internal/organizer"
	msync "usher/internal/sync"
	"usher/internal/utils"
)

// HookEvent is a webhook delivery from the catalog server.
type HookEvent struct {
	Kind  string `json:"kind"`  // scene, performer, studio
	ID    string `json:"id"`
	Event string `json:"event"` // create, update
}

// Manager wires the clients, repositories and workers together. Hooks are
// funneled through a single queue worker so catalog work stays serialized.
type Manager struct {
	config     *config.Store
	logger     *utils.Logger
	catalog    *catalog.Client
	server     mediaserver.Client
	organizer  *organizer.Organizer
	performers *msync.PerformerSyncer
	studios    *msync.StudioSyncer

	jobRepo       *models.JobRepository
	moveRepo      *models.MoveRepository
	syncStateRepo *models.SyncStateRepository

	notifiers []notifications.Notifier
	scheduler *cron.Cron
	hookQueue chan HookEvent
	events    *EventHub

	taskMu       sync.Mutex
	runningTasks map[string]bool
}

func NewManager(store *config.Store, db *sql.DB, logger *utils.Logger) *Manager {
	cfg := store.Load()
	m := &Manager{
		config:       store,
		logger:       logger,
		scheduler:    cron.New(),
		hookQueue:    make(chan HookEvent, 100),
		events:       NewEventHub(),
		runningTasks: make(map[string]bool),
	}

	timeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Catalog.Timeout); err == nil && d > 0 {
		timeout = d
	}
	m.catalog = catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.APIKey,
		cfg.Catalog.SessionCookie.Name, cfg.Catalog.SessionCookie.Value, timeout, logger)

	// Setup media server client based on config
	switch cfg.MediaServer.Type {
	case "emby":
		m.server = mediaserver.NewEmbyClient(cfg.MediaServer.URL, cfg.MediaServer.APIKey, logger)
	case "jellyfin":
		m.server = mediaserver.NewJellyfinClient(cfg.MediaServer.URL, cfg.MediaServer.APIKey, logger)
	default:
		logger.Warn("No media server configured, performer and studio sync are disabled")
	}

	if key := cfg.Notifications.Pushbullet.APIKey; key != "" {
		m.notifiers = append(m.notifiers, notifications.NewPushbulletClient(key, logger))
	}

	m.jobRepo = models.NewJobRepository(db)
	m.moveRepo = models.NewMoveRepository(db)
	m.syncStateRepo = models.NewSyncStateRepository(db)

	if n, err := m.jobRepo.ResetRunning(); err != nil {
		logger.Error("Failed to reset interrupted jobs:", err)
	} else if n > 0 {
		logger.Info("Requeued", n, "interrupted jobs")
	}

	m.organizer = organizer.New(store, logger, m.catalog, m.moveRepo, m.notifiers)
	if m.server != nil {
		m.performers = msync.NewPerformerSyncer(store, logger, m.catalog, m.server)
		m.studios = msync.NewStudioSyncer(store, logger, m.catalog, m.server)
	}

	go m.hookWorker()

	return m
}

func (m *Manager) cfg() *config.Config {
	return m.config.Load()
}

// Events exposes the activity stream for websocket subscribers.
func (m *Manager) Events() *EventHub {
	return m.events
}

func (m *Manager) StartScheduler() {
	if spec := m.cfg().Automation.OrganizeInterval; spec != "" {
		m.scheduler.AddFunc(spec, func() { m.RunOrganizeTask() })
	}
	if spec := m.cfg().Automation.PerformerSyncInterval; spec != "" {
		m.scheduler.AddFunc(spec, func() { m.RunPerformerSyncTask() })
	}
	if spec := m.cfg().Automation.StudioSyncInterval; spec != "" {
		m.scheduler.AddFunc(spec, func() { m.RunStudioSyncTask() })
	}
	m.scheduler.AddFunc("@every 10s", m.runDueJobs)
	m.scheduler.Start()
	m.logger.Info("Scheduler started.")
}

func (m *Manager) Stop() {
	if m.scheduler != nil {
		m.scheduler.Stop()
	}
}

// EnqueueHook queues a webhook for the hook worker. It reports false when
// the queue is saturated so the handler can answer 503 instead of blocking
// the catalog's hook dispatcher.
func (m *Manager) EnqueueHook(hook HookEvent) bool {
	select {
	case m.hookQueue <- hook:
		return true
	default:
		m.logger.Warn("Hook queue is full, dropping", hook.Kind, "hook for", hook.ID)
		return false
	}
}

func (m *Manager) hookWorker() {
	m.logger.Info("Hook queue worker started.")
	for hook := range m.hookQueue {
		m.handleHook(hook)
	}
}

func (m *Manager) handleHook(hook HookEvent) {
	ctx := context.Background()
	m.logger.Debug("Handling", hook.Kind, hook.Event, "hook for", hook.ID)

	switch hook.Kind {
	case "scene":
		m.handleSceneHook(ctx, hook)
	case "performer":
		m.handlePerformerHook(ctx, hook)
	case "studio":
		m.handleStudioHook(ctx, hook)
	default:
		m.logger.Warn("Unknown hook kind:", hook.Kind)
	}
}

func (m *Manager) handleSceneHook(ctx context.Context, hook HookEvent) {
	if !m.cfg().Organizer.EnableHook {
		return
	}
	scene, err := m.catalog.FindScene(ctx, hook.ID)
	if err != nil {
		m.logger.Error("Could not load scene", hook.ID, "for hook:", err)
		return
	}
	if scene == nil {
		m.logger.Warn("Scene", hook.ID, "not found, hook ignored")
		return
	}
	if err := m.organizer.ProcessScene(ctx, scene); err != nil {
		m.events.Publish("organize_error", fmt.Sprintf("scene %s: %v", hook.ID, err))
		return
	}
	m.events.Publish("scene_organized", fmt.Sprintf("scene %s processed", hook.ID))
}

func (m *Manager) handlePerformerHook(ctx context.Context, hook HookEvent) {
	mode := m.cfg().PerformerSync.HookMode
	if mode == msync.HookOff || m.performers == nil {
		return
	}

	if hook.Event == "create" {
		// A freshly created performer may still be mid-index on the
		// catalog side; give it a moment via the job queue.
		m.enqueuePerformerJob(hook.ID, mode)
		return
	}

	if err := m.syncPerformer(ctx, hook.ID, mode); err != nil {
		m.events.Publish("performer_sync_error", fmt.Sprintf("performer %s: %v", hook.ID, err))
		return
	}
	m.events.Publish("performer_synced", fmt.Sprintf("performer %s synced", hook.ID))
}

func (m *Manager) handleStudioHook(ctx context.Context, hook HookEvent) {
	if !m.cfg().StudioSync.EnableHook || m.studios == nil {
		return
	}

	if hook.Event == "create" {
		// The collection does not exist until the media server rescans,
		// so new studios go through the delayed job ladder.
		m.enqueueStudioJob(hook.ID)
		return
	}

	err := m.studios.SyncByID(ctx, hook.ID)
	m.recordSyncState("studio", hook.ID, err)
	if err != nil {
		m.events.Publish("studio_sync_error", fmt.Sprintf("studio %s: %v", hook.ID, err))
		return
	}
	m.events.Publish("studio_synced", fmt.Sprintf("studio %s synced", hook.ID))
}

// syncPerformer runs the directions the hook mode selects.
func (m *Manager) syncPerformer(ctx context.Context, id string, hookMode int) error {
	p, err := m.catalog.FindPerformer(ctx, id)
	if err != nil {
		return fmt.Errorf("find performer %s: %w", id, err)
	}

	var firstErr error
	if hookMode == msync.HookLocalOnly || hookMode == msync.HookBoth {
		if err := m.performers.ExportLocal(ctx, p); err != nil {
			firstErr = err
		}
	}
	if hookMode == msync.HookServerOnly || hookMode == msync.HookBoth {
		if err := m.performers.Upload(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.recordSyncState("performer", id, firstErr)
	return firstErr
}

func (m *Manager) recordSyncState(kind, id string, syncErr error) {
	errMsg := ""
	if syncErr != nil {
		errMsg = syncErr.Error()
	}
	if err := m.syncStateRepo.Upsert(kind, id, "", errMsg); err != nil {
		m.logger.Warn("Could not record sync state:", err)
	}
}

// --- manual / scheduled tasks ---

func (m *Manager) beginTask(name string) bool {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()
	if m.runningTasks[name] {
		return false
	}
	m.runningTasks[name] = true
	return true
}

func (m *Manager) endTask(name string) {
	m.taskMu.Lock()
	delete(m.runningTasks, name)
	m.taskMu.Unlock()
}

// RunOrganizeTask starts a full organize sweep in the background. It
// reports false when one is already running.
func (m *Manager) RunOrganizeTask() bool {
	if !m.beginTask("organize") {
		return false
	}
	go func() {
		defer m.endTask("organize")
		m.events.Publish("task_started", "organize sweep")
		n, err := m.organizer.Sweep(context.Background())
		if err != nil {
			m.logger.Error("Organize sweep failed:", err)
			m.events.Publish("task_failed", fmt.Sprintf("organize sweep: %v", err))
			return
		}
		m.events.Publish("task_finished", fmt.Sprintf("organize sweep, %d scenes visited", n))
	}()
	return true
}

func (m *Manager) RunPerformerSyncTask() bool {
	if m.performers == nil {
		return false
	}
	if !m.beginTask("performer_sync") {
		return false
	}
	go func() {
		defer m.endTask("performer_sync")
		m.events.Publish("task_started", "performer sync")
		synced, failed, err := m.performers.Sweep(context.Background())
		if err != nil {
			m.logger.Error("Performer sync failed:", err)
			m.events.Publish("task_failed", fmt.Sprintf("performer sync: %v", err))
			return
		}
		m.events.Publish("task_finished", fmt.Sprintf("performer sync, %d synced, %d failed", synced, failed))
		for _, n := range m.notifiers {
			go n.NotifySyncComplete("performers", synced, failed)
		}
	}()
	return true
}

func (m *Manager) RunStudioSyncTask() bool {
	if m.studios == nil {
		return false
	}
	if !m.beginTask("studio_sync") {
		return false
	}
	go func() {
		defer m.endTask("studio_sync")
		m.events.Publish("task_started", "studio sync")
		synced, skipped, failed, err := m.studios.Sweep(context.Background())
		if err != nil {
			m.logger.Error("Studio sync failed:", err)
			m.events.Publish("task_failed", fmt.Sprintf("studio sync: %v", err))
			return
		}
		m.events.Publish("task_finished",
			fmt.Sprintf("studio sync, %d synced, %d skipped, %d failed", synced, skipped, failed))
		for _, n := range m.notifiers {
			go n.NotifySyncComplete("studios", synced, failed)
		}
	}()
	return true
}

// --- status and connection tests ---

func (m *Manager) GetSystemStatus() map[string]interface{} {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"catalog":      m.TestCatalogConnection(ctx) == nil,
		"media_server": false,
	}
	if m.server != nil {
		status["media_server"] = m.server.Ping(ctx) == nil
	}

	if root := m.cfg().Organizer.TargetRoot; root != "" {
		if usage, err := disk.Usage(root); err == nil {
			status["target_free_bytes"] = usage.Free
			status["target_used_percent"] = usage.UsedPercent
		}
	}

	if counts, err := m.jobRepo.CountByStatus(); err == nil {
		status["jobs"] = counts
	}

	m.taskMu.Lock()
	running := make([]string, 0, len(m.runningTasks))
	for name := range m.runningTasks {
		running = append(running, name)
	}
	m.taskMu.Unlock()
	status["running_tasks"] = running

	return status
}

func (m *Manager) TestCatalogConnection(ctx context.Context) error {
	return m.catalog.Ping(ctx)
}

func (m *Manager) TestMediaServerConnection(ctx context.Context) error {
	if m.server == nil {
		return fmt.Errorf("no media server configured")
	}
	return m.server.Ping(ctx)
}

func (m *Manager) TestNotifications() error {
	if len(m.notifiers) == 0 {
		return fmt.Errorf("no notifiers configured")
	}
	for _, n := range m.notifiers {
		if err := n.Test(); err != nil {
			return err
		}
	}
	return nil
}

// --- history ---

func (m *Manager) RecentMoves(n int) ([]models.Move, error) {
	return m.moveRepo.Recent(n)
}

func (m *Manager) RecentJobs(n int) ([]models.Job, error) {
	return m.jobRepo.Recent(n)
}
