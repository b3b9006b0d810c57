package sidecar

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps a local-storage style document on disk: a JSON object of
// string keys to string values, with the reasons JSON-encoded under Key.
// Writes are read-modify-write with no lock across processes.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) readStorage() (map[string]string, error) {
	storage := map[string]string{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return storage, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sidecar file")
	}
	if len(data) == 0 {
		return storage, nil
	}
	if err := json.Unmarshal(data, &storage); err != nil {
		return nil, errors.Wrapf(err, "failed to decode sidecar file %s", s.path)
	}
	return storage, nil
}

func (s *FileStore) readReasons() (map[string]string, map[string]string, error) {
	storage, err := s.readStorage()
	if err != nil {
		return nil, nil, err
	}
	reasons := map[string]string{}
	if raw, ok := storage[Key]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &reasons); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to decode %s", Key)
		}
	}
	return storage, reasons, nil
}

// All returns every stored reason. Keys that are not request ids are skipped.
func (s *FileStore) All(ctx context.Context) (map[uint64]string, error) {
	_, reasons, err := s.readReasons()
	if err != nil {
		return nil, err
	}
	return parseReasons(reasons), nil
}

// Put stores reason under id, keeping every other key of the document.
func (s *FileStore) Put(ctx context.Context, id uint64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, reasons, err := s.readReasons()
	if err != nil {
		return err
	}
	reasons[strconv.FormatUint(id, 10)] = reason

	encoded, err := json.Marshal(reasons)
	if err != nil {
		return errors.Wrap(err, "failed to encode rejection reasons")
	}
	storage[Key] = string(encoded)

	data, err := json.MarshalIndent(storage, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode sidecar file")
	}
	return errors.Wrap(os.WriteFile(s.path, data, 0o600), "failed to write sidecar file")
}

// Close is a no-op, the file is opened per call.
func (s *FileStore) Close() error {
	return nil
}

func parseReasons(raw map[string]string) map[uint64]string {
	out := make(map[uint64]string, len(raw))
	for key, reason := range raw {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		out[id] = reason
	}
	return out
}
