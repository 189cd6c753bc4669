package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// BestFormat prefers H.264 mp4 video with m4a audio so the merged file plays
// everywhere, falling back to the best single file.
const BestFormat = "bestvideo[ext=mp4][vcodec^=avc]+bestaudio[ext=m4a]/best[ext=mp4]/best"

// FetchRequest is one download for a Fetcher.
type FetchRequest struct {
	URL        string
	Dir        string
	Format     string
	FFmpegPath string // empty if ffmpeg was not found
}

// FetchProgress is a progress sample.
type FetchProgress struct {
	Percent  float64
	Speed    float64 // bytes per second
	ETA      time.Duration
	Filename string
	Title    string
}

// FetchResult describes the downloaded artifact.
type FetchResult struct {
	FilePath  string
	Title     string
	Duration  *float64
	Thumbnail string
}

// Fetcher downloads one URL, reporting progress along the way.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest, progress func(FetchProgress)) (FetchResult, error)
}

// ResolveFormat maps the "best" preference (or none) to BestFormat.
func ResolveFormat(pref string) string {
	pref = strings.TrimSpace(pref)
	if pref == "" || pref == "best" {
		return BestFormat
	}
	return pref
}

// ResolveDir accepts either a directory or a file path; for a file path the
// parent directory is used.
func ResolveDir(savePath string) string {
	savePath = filepath.Clean(savePath)
	if filepath.Ext(savePath) != "" {
		if info, err := os.Stat(savePath); err != nil || !info.IsDir() {
			return filepath.Dir(savePath)
		}
	}
	return savePath
}

// YTDLP fetches with yt-dlp through go-ytdlp.
type YTDLP struct {
	log *slog.Logger

	installOnce sync.Once
	installErr  error
}

// NewYTDLP returns a yt-dlp backed fetcher.
func NewYTDLP(log *slog.Logger) *YTDLP {
	return &YTDLP{log: log}
}

// ensureInstalled resolves a yt-dlp binary, downloading a managed copy when
// none is on PATH.
func (y *YTDLP) ensureInstalled(ctx context.Context) error {
	y.installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			y.installErr = fmt.Errorf("install yt-dlp: %w", err)
		}
	})
	return y.installErr
}

// Fetch implements Fetcher.
func (y *YTDLP) Fetch(ctx context.Context, req FetchRequest, progress func(FetchProgress)) (FetchResult, error) {
	if err := y.ensureInstalled(ctx); err != nil {
		return FetchResult{}, err
	}
	if err := os.MkdirAll(req.Dir, 0755); err != nil {
		return FetchResult{}, fmt.Errorf("create %s: %w", req.Dir, err)
	}

	started := time.Now()
	dl := ytdlp.New().
		NoPlaylist().
		PrintJSON().
		Format(ResolveFormat(req.Format)).
		MergeOutputFormat("mp4").
		Output(filepath.Join(req.Dir, "%(title)s.%(ext)s"))
	if req.FFmpegPath != "" {
		dl.FFmpegLocation(req.FFmpegPath)
	}

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		if progress != nil {
			progress(progressFromUpdate(&update))
		}
	})

	y.log.Info("starting yt-dlp", "url", req.URL, "dir", req.Dir)
	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		return FetchResult{}, fmt.Errorf("yt-dlp failed: %w", err)
	}

	var out FetchResult
	if result != nil {
		if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 {
			first := info[0]
			if first.Filename != nil {
				out.FilePath = *first.Filename
			}
			if first.Title != nil {
				out.Title = *first.Title
			}
			if first.Thumbnail != nil {
				out.Thumbnail = *first.Thumbnail
			}
			out.Duration = first.Duration
		}
	}

	// The reported name can predate the merge (e.g. .webm before .mp4).
	if _, err := os.Stat(out.FilePath); out.FilePath == "" || err != nil {
		if newest, ok := newestFile(req.Dir, started); ok {
			out.FilePath = newest
		}
	}
	return out, nil
}

func progressFromUpdate(update *ytdlp.ProgressUpdate) FetchProgress {
	p := FetchProgress{Filename: update.Filename}

	if update.TotalBytes > 0 {
		p.Percent = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			p.Speed = float64(update.DownloadedBytes) / elapsed
		}
	}
	if eta := update.ETA(); eta > 0 {
		p.ETA = eta
	}
	if update.Info != nil && update.Info.Title != nil {
		p.Title = *update.Info.Title
	}
	return p
}

// newestFile returns the most recently modified regular file in dir that was
// written at or after since, ignoring partial downloads.
func newestFile(dir string, since time.Time) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, name)
			newestMod = info.ModTime()
		}
	}
	return newest, newest != ""
}
