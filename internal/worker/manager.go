package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harshul/vidnote/internal/api"
)

// ErrInvalidRequest is wrapped by Submit validation failures.
var ErrInvalidRequest = errors.New("invalid download request")

type validationError struct{ detail string }

func (e *validationError) Error() string { return e.detail }
func (e *validationError) Unwrap() error { return ErrInvalidRequest }

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Concurrency   int    // at least 1
	DefaultFormat string // used when a request names none
	FFmpegPath    string
}

// Manager runs download tasks in the background, at most Concurrency at a
// time.
type Manager struct {
	store   *Store
	fetcher Fetcher
	opts    ManagerOptions
	slots   chan struct{}
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a manager writing task state into store.
func NewManager(store *Store, fetcher Fetcher, opts ManagerOptions, log *slog.Logger) *Manager {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:   store,
		fetcher: fetcher,
		opts:    opts,
		slots:   make(chan struct{}, opts.Concurrency),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit validates req, records a queued task and starts it.
func (m *Manager) Submit(req api.DownloadRequest) (api.Task, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.SavePath = strings.TrimSpace(req.SavePath)
	if req.URL == "" {
		return api.Task{}, &validationError{"url is required"}
	}
	if req.SavePath == "" {
		return api.Task{}, &validationError{"save_path is required"}
	}
	if err := m.ctx.Err(); err != nil {
		return api.Task{}, errors.New("worker is shutting down")
	}

	task := m.store.Create(req.URL)
	m.log.Info("download queued", "task", task.TaskID, "url", req.URL)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(task.TaskID, req)
	}()
	return task, nil
}

// Close cancels running downloads and waits for them to settle.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) run(id string, req api.DownloadRequest) {
	select {
	case m.slots <- struct{}{}:
	case <-m.ctx.Done():
		m.finish(id, FetchResult{}, m.ctx.Err())
		return
	}
	defer func() { <-m.slots }()

	m.store.Update(id, func(t *api.Task) {
		t.Status = api.TaskDownloading
		t.Message = "Downloading"
	})

	format := req.FormatPreference
	if strings.TrimSpace(format) == "" {
		format = m.opts.DefaultFormat
	}
	fetchReq := FetchRequest{
		URL:        req.URL,
		Dir:        ResolveDir(req.SavePath),
		Format:     format,
		FFmpegPath: m.opts.FFmpegPath,
	}

	result, err := m.fetcher.Fetch(m.ctx, fetchReq, func(p FetchProgress) {
		m.store.Update(id, func(t *api.Task) {
			t.Progress.Percent = p.Percent
			t.Progress.Speed = p.Speed
			t.Progress.ETA = int(p.ETA / time.Second)
			if p.Filename != "" {
				t.Progress.Filename = p.Filename
			}
			if p.Title != "" {
				t.Title = p.Title
			}
		})
	})
	m.finish(id, result, err)
}

func (m *Manager) finish(id string, result FetchResult, err error) {
	if err != nil {
		m.log.Error("download failed", "task", id, "error", err)
		m.store.Update(id, func(t *api.Task) {
			t.Status = api.TaskFailed
			t.Success = false
			t.Message = err.Error()
		})
		return
	}

	m.log.Info("download completed", "task", id, "file", result.FilePath)
	m.store.Update(id, func(t *api.Task) {
		t.Status = api.TaskCompleted
		t.Success = true
		t.Message = "Download completed"
		t.Progress.Percent = 100
		t.Progress.ETA = 0
		t.FilePath = result.FilePath
		if result.Title != "" {
			t.Title = result.Title
		}
		t.Duration = result.Duration
		t.Thumbnail = result.Thumbnail
	})
}
