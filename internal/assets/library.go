package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/acme/dialburst/pkg/errors"
)

// Library manages the directory of playable audio files. The orchestrator
// and document builder only ever see explicit snapshots taken from it, so a
// rename or delete between dial and playback degrades to "file not
// available" instead of racing a shared list.
type Library struct {
	dir        string
	scratchDir string
	baseURL    string
	publicPath string

	mu sync.Mutex
}

var playableExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
}

// ScratchPath is the URL path prefix for non-persisted synthesized audio.
const ScratchPath = "/audio-cache"

// NewLibrary creates a library rooted at dir, ensuring both directories exist.
func NewLibrary(dir, scratchDir, baseURL, publicPath string) (*Library, error) {
	if dir == "" {
		return nil, fmt.Errorf("assets: dir is required")
	}
	if scratchDir == "" {
		scratchDir = filepath.Join(dir, ".cache")
	}
	for _, d := range []string{dir, scratchDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("assets: create dir %s: %w", d, err)
		}
	}
	return &Library{
		dir:        dir,
		scratchDir: scratchDir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}, nil
}

// Dir returns the managed audio directory.
func (l *Library) Dir() string { return l.dir }

// ScratchDir returns the scratch cache directory.
func (l *Library) ScratchDir() string { return l.scratchDir }

// Snapshot lists the playable files currently in the library, sorted.
func (l *Library) Snapshot() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("assets: read dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if playableExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Contains reports whether name is a playable file in the library.
func (l *Library) Contains(name string) bool {
	if err := validName(name); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(l.dir, name))
	return err == nil && !info.IsDir()
}

// URL returns the fetchable URL for a library file. It does not check
// existence; use Resolve when the file must be known.
func (l *Library) URL(name string) string {
	return l.baseURL + l.publicPath + "/" + name
}

// Resolve maps a known filename to its fetchable URL.
func (l *Library) Resolve(name string) (string, error) {
	if !l.Contains(name) {
		return "", fmt.Errorf("%w: audio file %q", apperrors.ErrNotFound, name)
	}
	return l.URL(name), nil
}

// Save writes audio data into the library and returns its URL. Used by
// persisted synthesis results.
func (l *Library) Save(name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("assets: write %s: %w", name, err)
	}
	return l.URL(name), nil
}

// SaveScratch writes audio data into the scratch cache and returns its URL.
func (l *Library) SaveScratch(name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.WriteFile(filepath.Join(l.scratchDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("assets: write scratch %s: %w", name, err)
	}
	return l.baseURL + ScratchPath + "/" + name, nil
}

// Rename renames a library file.
func (l *Library) Rename(oldName, newName string) error {
	if err := validName(oldName); err != nil {
		return err
	}
	if err := validName(newName); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := os.Stat(filepath.Join(l.dir, oldName)); err != nil {
		return fmt.Errorf("%w: audio file %q", apperrors.ErrNotFound, oldName)
	}
	if _, err := os.Stat(filepath.Join(l.dir, newName)); err == nil {
		return fmt.Errorf("%w: audio file %q already exists", apperrors.ErrConflict, newName)
	}
	if err := os.Rename(filepath.Join(l.dir, oldName), filepath.Join(l.dir, newName)); err != nil {
		return fmt.Errorf("assets: rename: %w", err)
	}
	return nil
}

// Delete removes a library file.
func (l *Library) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: audio file %q", apperrors.ErrNotFound, name)
		}
		return fmt.Errorf("assets: delete: %w", err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid file name %q", apperrors.ErrValidation, name)
	}
	if !playableExtensions[strings.ToLower(filepath.Ext(name))] {
		return fmt.Errorf("%w: unsupported audio extension in %q", apperrors.ErrValidation, name)
	}
	return nil
}
