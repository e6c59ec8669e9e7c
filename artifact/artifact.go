// Package artifact manages files produced by pipeline stages in a working
// directory. Every file is written under a temporary name and renamed into
// place once complete, so a reader never sees a partial artifact.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/internal/log"
)

// Key names an artifact.
type Key string

// Artifact keys.
const (
	Animation Key = "animation"
	Audio     Key = "audio"
	Final     Key = "final"
)

// File names of artifacts.
const (
	AnimationFile = "animation.mp4"
	AudioFile     = "tones.wav"
	FinalExt      = ".mp4"
)

// DefaultDir is the default working directory.
const DefaultDir = "public/animations"

// Store is a working directory with artifacts. Animation and audio have
// fixed names, so concurrent runs in the same directory must use distinct
// namespaces.
type Store struct {
	Dir       string
	Namespace string

	log logrus.FieldLogger
}

// New returns store in dir. Namespace is optional.
func New(dir, namespace string) *Store {
	return &Store{
		Dir:       dir,
		Namespace: namespace,
		log:       log.GetLogger(),
	}
}

// WithLogger sets store logger.
func (s *Store) WithLogger(l logrus.FieldLogger) *Store {
	s.log = l
	return s
}

// EnsureDirectory creates working directory if it doesn't exist.
func (s *Store) EnsureDirectory() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	return nil
}

// Name returns file name of the artifact. Identity is only used by the
// final artifact.
func (s *Store) Name(key Key, identity string) string {
	var name string
	switch key {
	case Animation:
		name = AnimationFile
	case Audio:
		name = AudioFile
	default:
		return Sanitize(identity) + FinalExt
	}
	if s.Namespace != "" {
		name = Sanitize(s.Namespace) + "-" + name
	}
	return name
}

// Path returns path of the artifact.
func (s *Store) Path(key Key, identity string) string {
	return filepath.Join(s.Dir, s.Name(key, identity))
}

// Exists is true if artifact file exists.
func (s *Store) Exists(key Key, identity string) bool {
	_, err := os.Stat(s.Path(key, identity))
	return err == nil
}

// Require returns ArtifactNotFound error if artifact doesn't exist.
func (s *Store) Require(key Key, identity string) error {
	path := s.Path(key, identity)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &sonify.Error{Kind: sonify.KindArtifactNotFound, Op: string(key), Err: err}
		}
		return err
	}
	return nil
}

// Write calls fn with a temporary path in the working directory and
// renames it to the artifact path when fn succeeds. Temporary path keeps
// the artifact extension. Temporary file is removed if fn fails.
func (s *Store) Write(key Key, identity string, fn func(path string) error) (string, error) {
	if err := s.EnsureDirectory(); err != nil {
		return "", err
	}
	path := s.Path(key, identity)
	tmp := filepath.Join(s.Dir, fmt.Sprintf(".tmp-%s-%s", sonify.NewUID(), filepath.Base(path)))
	if err := fn(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if _, err := os.Stat(tmp); err != nil {
		return "", fmt.Errorf("%s was not written: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move %s in place: %w", key, err)
	}
	s.log.WithFields(logrus.Fields{
		"artifact": key,
		"path":     path,
	}).Debug("artifact written")
	return path, nil
}

// Delete removes artifacts. Missing artifacts are logged and skipped.
// Other failures are logged, don't stop remaining deletions and are
// returned joined.
func (s *Store) Delete(identity string, keys ...Key) error {
	var errs []error
	for _, key := range keys {
		path := s.Path(key, identity)
		l := s.log.WithFields(logrus.Fields{
			"artifact": key,
			"path":     path,
		})
		err := os.Remove(path)
		switch {
		case err == nil:
			l.Debug("artifact deleted")
		case errors.Is(err, os.ErrNotExist):
			l.Info(&sonify.Error{Kind: sonify.KindArtifactNotFound, Op: "delete", Err: err})
		default:
			l.WithError(err).Warn("failed to delete artifact")
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Sanitize turns identity into a safe file name. Path separators, spaces
// and other special characters are replaced with underscores.
func Sanitize(identity string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(identity) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune("-_.()+", r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		return "untitled"
	}
	return name
}
