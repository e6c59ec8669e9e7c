package synth

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify/internal/log"
)

// Library is a list of synth patches found in scan paths.
type Library struct {
	Paths   []string
	Patches Patches

	log logrus.FieldLogger
}

// Patches are patch files grouped by their directory.
type Patches map[string][]PatchFile

// PatchFile is a patch loaded from a file.
type PatchFile struct {
	Path  string
	Patch Patch
}

// DefaultScanPaths returns directories scanned for patches: SONIFY_PATCH_PATH
// entries and the user config directory.
func DefaultScanPaths() []string {
	var paths []string
	if env := os.Getenv("SONIFY_PATCH_PATH"); env != "" {
		paths = append(paths, filepath.SplitList(env)...)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "sonify", "patches"))
	}
	return paths
}

// NewLibrary scans default and provided paths.
func NewLibrary(paths ...string) *Library {
	l := Library{
		Paths: uniquePaths(append(DefaultScanPaths(), paths...)),
		log:   log.GetLogger(),
	}
	l.Load()
	return &l
}

// Load scans all paths. Invalid patches and missing directories are
// logged and skipped.
func (l *Library) Load() {
	l.Patches = make(Patches)
	for _, path := range l.Paths {
		l.Patches[path] = make([]PatchFile, 0)
		if err := filepath.Walk(path, l.loadPatches()); err != nil {
			l.log.WithField("path", path).Debug(err)
		}
	}
}

func (l *Library) loadPatches() filepath.WalkFunc {
	return func(path string, file os.FileInfo, err error) error {
		if err != nil {
			l.log.WithField("path", path).Debug(err)
			return nil
		}
		if file.IsDir() || !strings.HasSuffix(file.Name(), PatchExt) {
			return nil
		}
		p, err := LoadPatch(path)
		if err != nil {
			l.log.WithField("path", path).Warn(err)
			return nil
		}
		dir := filepath.Dir(path)
		l.Patches[dir] = append(l.Patches[dir], PatchFile{Path: path, Patch: *p})
		return nil
	}
}

// Find returns patch file by patch name.
func (l *Library) Find(name string) (*PatchFile, error) {
	if len(l.Patches) == 0 {
		return nil, fmt.Errorf("no patches are found in folders %v", l.Paths)
	}
	for _, dir := range l.dirs() {
		for _, f := range l.Patches[dir] {
			if f.Patch.Name == name {
				f := f
				return &f, nil
			}
		}
	}
	return nil, fmt.Errorf("patch %v not found in %v", name, l.Paths)
}

func (l *Library) dirs() []string {
	dirs := make([]string, 0, len(l.Patches))
	for dir := range l.Patches {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func uniquePaths(paths []string) []string {
	u := make([]string, 0, len(paths))
	m := make(map[string]bool)
	for _, val := range paths {
		if _, ok := m[val]; !ok {
			m[val] = true
			u = append(u, val)
		}
	}
	return u
}

func (l Library) String() string {
	var buf bytes.Buffer
	buf.WriteString("Scan paths:\n")
	for _, path := range l.Paths {
		buf.WriteString(fmt.Sprintf("\t%v\n", path))
	}
	buf.WriteString("Available patches:\n")
	buf.WriteString(l.Patches.String())
	return buf.String()
}

func (patches Patches) String() string {
	var buf bytes.Buffer
	dirs := make([]string, 0, len(patches))
	for dir := range patches {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		files := patches[dir]
		buf.WriteString(fmt.Sprintf("\t%v\n", dir))
		if len(files) == 0 {
			buf.WriteString("\t\t[No patches found]\n")
		}
		for _, f := range files {
			buf.WriteString(fmt.Sprintf("\t\t%v (%v)\n", f.Patch.Name, f.Patch.Oscillator))
		}
	}
	return buf.String()
}
