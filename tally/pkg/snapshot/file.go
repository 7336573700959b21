package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LoadFile reads a snapshot saved with SaveFile.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode input file %s: %w", path, err)
	}
	if snap.Proposal == nil {
		return nil, errors.New("input file has no proposal")
	}
	return &snap, nil
}

// SaveFile writes snap as indented JSON.
func SaveFile(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write input file: %w", err)
	}
	return nil
}

// FileSource serves a saved snapshot in place of the hub.
type FileSource struct {
	snap *Snapshot
}

func NewFileSource(path string) (*FileSource, error) {
	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{snap: snap}, nil
}

func (s *FileSource) Proposal(context.Context) (*Proposal, error) {
	return s.snap.Proposal, nil
}

func (s *FileSource) Votes(context.Context) ([]Vote, error) {
	return s.snap.Votes, nil
}
