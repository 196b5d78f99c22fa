// Package workspace owns what the agent can see on disk: a rescannable
// snapshot of accessible files and the file capability that mutations are
// eventually applied through. Search and analysis only ever read.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeflow-cli/codeflow/config"
	"github.com/codeflow-cli/codeflow/errors"
	ignore "github.com/sabhiram/go-gitignore"
)

// maxSearchableSize keeps search from chewing through generated blobs.
const maxSearchableSize = 1 << 20

// FileInfo is the per-path snapshot entry.
type FileInfo struct {
	Size        int64
	LastScanned time.Time
}

// Index is the workspace snapshot: path → size and scan time. It is
// process-wide state created at session start, refreshed only by explicit
// rescans, and read by the orchestrator's existence checks and the
// read-only tools.
type Index struct {
	root      string
	hidden    []string
	gitignore *ignore.GitIgnore

	mu    sync.RWMutex
	files map[string]FileInfo
}

// NewIndex builds an index rooted at root and performs the initial scan.
// It honors the configured hidden globs and, when present, the root's
// .gitignore.
func NewIndex(root string, access *config.FilesystemAccess) (*Index, error) {
	idx := &Index{
		root:   root,
		hidden: access.Hidden,
		files:  make(map[string]FileInfo),
	}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		idx.gitignore = gi
	}
	if err := idx.Rescan(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rescan replaces the whole snapshot with the current state of the tree.
func (x *Index) Rescan() error {
	files := make(map[string]FileInfo)
	now := time.Now()

	err := filepath.WalkDir(x.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are simply not accessible
		}
		rel, relErr := filepath.Rel(x.root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if rel != "." && x.excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if x.excluded(rel) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		files[filepath.ToSlash(rel)] = FileInfo{Size: info.Size(), LastScanned: now}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to scan workspace '%s'", x.root)
	}

	x.mu.Lock()
	x.files = files
	x.mu.Unlock()
	return nil
}

func (x *Index) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	if ok, _ := matchesAny(strings.TrimSuffix(rel, "/"), x.hidden); ok {
		return true
	}
	if x.gitignore != nil && x.gitignore.MatchesPath(rel) {
		return true
	}
	return false
}

// Exists reports whether the snapshot knows the path. It does not touch
// the disk; a stale answer is resolved by the Applying state, which reads
// through the file capability.
func (x *Index) Exists(path string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.files[filepath.ToSlash(path)]
	return ok
}

// Stat returns the snapshot entry for the path.
func (x *Index) Stat(path string) (FileInfo, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	info, ok := x.files[filepath.ToSlash(path)]
	return info, ok
}

// Files returns the sorted list of accessible paths.
func (x *Index) Files() []string {
	x.mu.RLock()
	paths := make([]string, 0, len(x.files))
	for path := range x.files {
		paths = append(paths, path)
	}
	x.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// Len returns the number of files in the snapshot.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.files)
}

// Root returns the directory the index was built over.
func (x *Index) Root() string {
	return x.root
}

// SearchHit is one matching line found by Search.
type SearchHit struct {
	Path    string
	LineNum int
	Line    string
}

// Search scans the indexed files for a case-insensitive substring match,
// ranking files with more matches first and capping the result at limit.
// It never mutates the snapshot.
func (x *Index) Search(query string, limit int) []SearchHit {
	if query == "" || limit <= 0 {
		return nil
	}
	needle := strings.ToLower(query)

	type fileHits struct {
		path string
		hits []SearchHit
	}
	var ranked []fileHits

	for _, path := range x.Files() {
		info, _ := x.Stat(path)
		if info.Size > maxSearchableSize {
			continue
		}
		data, err := os.ReadFile(filepath.Join(x.root, filepath.FromSlash(path)))
		if err != nil || !utf8Like(data) {
			continue
		}
		var hits []SearchHit
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				hits = append(hits, SearchHit{Path: path, LineNum: i + 1, Line: strings.TrimRight(line, "\r")})
			}
		}
		if len(hits) > 0 {
			ranked = append(ranked, fileHits{path: path, hits: hits})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].hits) > len(ranked[j].hits)
	})

	var out []SearchHit
	for _, fh := range ranked {
		for _, hit := range fh.hits {
			if len(out) == limit {
				return out
			}
			out = append(out, hit)
		}
	}
	return out
}

// utf8Like is a cheap binary-file filter: reject anything with a NUL byte
// in the first KB.
func utf8Like(data []byte) bool {
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	for _, b := range probe {
		if b == 0 {
			return false
		}
	}
	return true
}
