package artifact_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/sonify"
	"github.com/dudk/sonify/artifact"
	"github.com/dudk/sonify/internal/log"
)

func store(t *testing.T, namespace string) *artifact.Store {
	t.Helper()
	return artifact.New(filepath.Join(t.TempDir(), "public", "animations"), namespace).WithLogger(log.Discard())
}

func TestNames(t *testing.T) {
	tests := []struct {
		namespace string
		key       artifact.Key
		identity  string
		expected  string
	}{
		{key: artifact.Animation, identity: "sin(x)", expected: "animation.mp4"},
		{key: artifact.Audio, identity: "sin(x)", expected: "tones.wav"},
		{key: artifact.Final, identity: "sin(x)", expected: "sin(x).mp4"},
		{key: artifact.Final, identity: "AAPL", expected: "AAPL.mp4"},
		{key: artifact.Final, identity: "x/2 * cos(x)", expected: "x_2___cos(x).mp4"},
		{key: artifact.Final, identity: "../etc", expected: "_etc.mp4"},
		{key: artifact.Final, identity: "", expected: "untitled.mp4"},
		{namespace: "req1", key: artifact.Audio, identity: "x", expected: "req1-tones.wav"},
		{namespace: "req1", key: artifact.Final, identity: "x", expected: "x.mp4"},
	}
	for _, test := range tests {
		s := artifact.New("dir", test.namespace)
		assert.Equal(t, test.expected, s.Name(test.key, test.identity))
		assert.Equal(t, filepath.Join("dir", test.expected), s.Path(test.key, test.identity))
	}
}

func TestEnsureDirectory(t *testing.T) {
	s := store(t, "")
	require.NoError(t, s.EnsureDirectory())
	require.NoError(t, s.EnsureDirectory())
	info, err := os.Stat(s.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWrite(t *testing.T) {
	s := store(t, "")
	var tmp string
	path, err := s.Write(artifact.Audio, "x", func(p string) error {
		tmp = p
		assert.Equal(t, ".wav", filepath.Ext(p))
		assert.Equal(t, s.Dir, filepath.Dir(p))
		assert.False(t, s.Exists(artifact.Audio, "x"), "artifact is visible before it's complete")
		return os.WriteFile(p, []byte("RIFF"), 0o644)
	})
	require.NoError(t, err)
	assert.Equal(t, s.Path(artifact.Audio, "x"), path)
	assert.True(t, s.Exists(artifact.Audio, "x"))
	assert.NoFileExists(t, tmp)
	assert.NoError(t, s.Require(artifact.Audio, "x"))
}

func TestWriteFailed(t *testing.T) {
	s := store(t, "")
	failed := errors.New("encoder crashed")
	_, err := s.Write(artifact.Animation, "x", func(p string) error {
		require.NoError(t, os.WriteFile(p, []byte("partial"), 0o644))
		return failed
	})
	assert.ErrorIs(t, err, failed)
	assert.False(t, s.Exists(artifact.Animation, "x"))
	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = s.Write(artifact.Animation, "x", func(p string) error { return nil })
	assert.Error(t, err)
	assert.ErrorIs(t, s.Require(artifact.Animation, "x"), sonify.ErrArtifactNotFound)
}

func TestDelete(t *testing.T) {
	s := store(t, "")
	for _, key := range []artifact.Key{artifact.Animation, artifact.Audio, artifact.Final} {
		_, err := s.Write(key, "sin(x)", func(p string) error {
			return os.WriteFile(p, []byte{0}, 0o644)
		})
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete("sin(x)", artifact.Animation, artifact.Audio, artifact.Final))
	for _, key := range []artifact.Key{artifact.Animation, artifact.Audio, artifact.Final} {
		assert.False(t, s.Exists(key, "sin(x)"))
	}
	// idempotent
	assert.NoError(t, s.Delete("sin(x)", artifact.Animation, artifact.Audio, artifact.Final))
}

func TestDeleteFailures(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}
	s := store(t, "")
	for _, key := range []artifact.Key{artifact.Animation, artifact.Audio} {
		_, err := s.Write(key, "x", func(p string) error {
			return os.WriteFile(p, []byte{0}, 0o644)
		})
		require.NoError(t, err)
	}
	require.NoError(t, os.Chmod(s.Dir, 0o555))
	defer os.Chmod(s.Dir, 0o755)

	err := s.Delete("x", artifact.Animation, artifact.Final, artifact.Audio)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete animation")
	assert.Contains(t, err.Error(), "delete audio")
	assert.NotContains(t, err.Error(), "delete final")
}
