// Package assets synchronizes a local working directory with the remote
// asset store at session start: every remote asset is deleted, then every
// local file is re-uploaded. The sync is best-effort; individual delete or
// upload failures are logged and skipped.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Asset identifies one remote-stored file.
type Asset struct {
	Name string
}

// Store is the remote asset store surface used by the syncer.
type Store interface {
	List(ctx context.Context) ([]Asset, error)
	Delete(ctx context.Context, name string) error
	Upload(ctx context.Context, path, name string) (Asset, error)
}

// GeminiStore backs Store with the Gemini Files API.
type GeminiStore struct {
	client *genai.Client
}

// NewGeminiStore wraps an authenticated genai client.
func NewGeminiStore(client *genai.Client) *GeminiStore {
	return &GeminiStore{client: client}
}

// List implements Store.
func (s *GeminiStore) List(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	for f, err := range s.client.Files.All(ctx) {
		if err != nil {
			return assets, fmt.Errorf("list remote files: %w", err)
		}
		assets = append(assets, Asset{Name: f.Name})
	}
	return assets, nil
}

// Delete implements Store.
func (s *GeminiStore) Delete(ctx context.Context, name string) error {
	if _, err := s.client.Files.Delete(ctx, name, nil); err != nil {
		return fmt.Errorf("delete remote file %s: %w", name, err)
	}
	return nil
}

// Upload implements Store.
func (s *GeminiStore) Upload(ctx context.Context, path, name string) (Asset, error) {
	f, err := s.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		DisplayName: name,
	})
	if err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", path, err)
	}
	return Asset{Name: f.Name}, nil
}

// Syncer performs the startup delete-then-reupload pass.
type Syncer struct {
	store Store
	dir   string
	log   *slog.Logger
}

// NewSyncer creates a syncer over the local directory dir.
func NewSyncer(store Store, dir string, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{store: store, dir: dir, log: log}
}

// Sync deletes all remote assets, then uploads every regular file under the
// local directory, awaiting all uploads. It returns the uploaded assets.
func (s *Syncer) Sync(ctx context.Context) ([]Asset, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir %s: %w", s.dir, err)
	}

	remote, err := s.store.List(ctx)
	if err != nil {
		// Listing failure skips the delete pass but uploads still proceed.
		s.log.Warn("list remote assets failed", "err", err)
	}
	for _, asset := range remote {
		if err := s.store.Delete(ctx, asset.Name); err != nil {
			s.log.Warn("delete remote asset failed", "name", asset.Name, "err", err)
			continue
		}
		s.log.Info("deleted remote asset", "name", asset.Name)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read assets dir %s: %w", s.dir, err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		uploaded []Asset
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		wg.Add(1)
		go func() {
			defer wg.Done()
			asset, err := s.store.Upload(ctx, path, SanitizeName(entry.Name()))
			if err != nil {
				s.log.Warn("upload asset failed", "path", path, "err", err)
				return
			}
			mu.Lock()
			uploaded = append(uploaded, asset)
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.log.Info("asset sync complete", "uploaded", len(uploaded))
	return uploaded, nil
}

var nonAssetNameChars = regexp.MustCompile(`[^a-z0-9-]`)

// SanitizeName normalizes a local filename into a store-safe asset name:
// extension dropped, lowercased, disallowed characters replaced with a dash.
func SanitizeName(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.ToLower(name)
	name = nonAssetNameChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		return "file"
	}
	return name
}
