package testutil

import (
	"os"
	"path"
	"sync"

	"github.com/spf13/afero"
)

// InitialState is the content NewGPIOTree writes into every state file.
const InitialState = "unset"

// NewGPIOTree creates <root>/<name>/state for every name, each holding
// InitialState.
func NewGPIOTree(fs afero.Fs, root string, names ...string) error {
	for _, name := range names {
		dir := path.Join(root, name)
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := afero.WriteFile(fs, path.Join(dir, "state"), []byte(InitialState), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ReadState returns the content of <root>/<name>/state.
func ReadState(fs afero.Fs, root, name string) (string, error) {
	data, err := afero.ReadFile(fs, path.Join(root, name, "state"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RecordingFs wraps an afero.Fs and records every file opened for writing.
type RecordingFs struct {
	afero.Fs

	mu     sync.Mutex
	writes []string
}

// NewRecordingFs wraps fs.
func NewRecordingFs(fs afero.Fs) *RecordingFs {
	return &RecordingFs{Fs: fs}
}

// OpenFile records write opens, including failed ones, in call order.
func (r *RecordingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		r.mu.Lock()
		r.writes = append(r.writes, name)
		r.mu.Unlock()
	}
	return r.Fs.OpenFile(name, flag, perm)
}

// Writes returns the paths opened for writing so far.
func (r *RecordingFs) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.writes))
	copy(out, r.writes)
	return out
}

// Reset forgets the recorded writes.
func (r *RecordingFs) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}
