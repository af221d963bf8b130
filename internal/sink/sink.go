// Package sink receives the artifacts a finished session produces.
package sink

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/relabs-tech/motion_recorder/internal/export"
)

// Sink stores or forwards one generated artifact.
type Sink interface {
	Emit(a export.Artifact) error
}

// File writes artifacts into a directory, creating it on first use.
type File struct {
	Dir string
}

// NewFile returns a sink writing into dir.
func NewFile(dir string) *File {
	return &File{Dir: dir}
}

func (f *File) Emit(a export.Artifact) error {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(f.Dir, filepath.Base(a.Name))
	if err := os.WriteFile(path, a.Payload, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	log.Printf("sink: wrote %s (%s)", path, humanize.Bytes(uint64(len(a.Payload))))
	return nil
}

// Memory keeps artifacts in memory, in emission order.
type Memory struct {
	mu        sync.Mutex
	artifacts []export.Artifact
}

func (m *Memory) Emit(a export.Artifact) error {
	m.mu.Lock()
	m.artifacts = append(m.artifacts, a)
	m.mu.Unlock()
	return nil
}

// Artifacts returns a copy of everything emitted so far.
func (m *Memory) Artifacts() []export.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]export.Artifact, len(m.artifacts))
	copy(out, m.artifacts)
	return out
}
