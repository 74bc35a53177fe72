package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resil/internal/logging"
	"resil/internal/types"
)

// Entry is one line of the checkpoint log: a processed unit and its
// terminal status.
type Entry struct {
	Key       types.DocumentKey  `json:"key"`
	Status    types.RecordStatus `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
}

// Checkpoint is the append-only JSONL log of completed units. It is read in
// full at startup to reconstruct the skip set and appended (with an fsync)
// after every unit, so a crash loses at most the one in-flight unit.
type Checkpoint struct {
	path   string
	file   *os.File
	index  map[types.DocumentKey]types.RecordStatus
	logger logging.Logger
}

// OpenCheckpoint loads an existing checkpoint log (or starts a fresh one)
// and opens it for appending.
func OpenCheckpoint(path string, logger logging.Logger) (*Checkpoint, error) {
	logger = logging.OrNop(logger)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	index := make(map[types.DocumentKey]types.RecordStatus)
	if existing, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(existing)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Bytes()
			if len(text) == 0 {
				continue
			}
			var entry Entry
			if err := json.Unmarshal(text, &entry); err != nil {
				// A torn final line from a crash mid-write is skippable; the
				// unit it described was never acknowledged.
				logger.Warn("checkpoint line %d unparsable, skipping: %v", line, err)
				continue
			}
			index[entry.Key] = entry.Status
		}
		closeErr := existing.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("close checkpoint %s: %w", path, closeErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s for append: %w", path, err)
	}

	// A torn final line must not swallow the next entry appended after it.
	if err := terminateTornTail(path, file); err != nil {
		_ = file.Close()
		return nil, err
	}

	return &Checkpoint{
		path:   path,
		file:   file,
		index:  index,
		logger: logger,
	}, nil
}

// terminateTornTail appends a newline when the log does not end with one, so
// the first entry written after a crash starts on its own line.
func terminateTornTail(path string, file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat checkpoint %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil
	}

	tail := make([]byte, 1)
	reader, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	_, err = reader.ReadAt(tail, info.Size()-1)
	closeErr := reader.Close()
	if err != nil {
		return fmt.Errorf("read checkpoint tail %s: %w", path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close checkpoint %s: %w", path, closeErr)
	}

	if tail[0] != '\n' {
		if _, err := file.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("terminate torn checkpoint line: %w", err)
		}
	}
	return nil
}

// Append records one finished unit. The entry is durable (fsynced) before
// Append returns, so the coordinator may only start unit N+1 once unit N's
// write cannot be lost.
func (c *Checkpoint) Append(key types.DocumentKey, status types.RecordStatus) error {
	entry := Entry{Key: key, Status: status, Timestamp: time.Now().UTC()}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal checkpoint entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := c.file.Write(line); err != nil {
		return fmt.Errorf("append checkpoint entry: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("sync checkpoint: %w", err)
	}

	c.index[key] = status
	return nil
}

// Status returns the recorded terminal status for a key, if any.
func (c *Checkpoint) Status(key types.DocumentKey) (types.RecordStatus, bool) {
	status, ok := c.index[key]
	return status, ok
}

// Len returns the number of distinct recorded units.
func (c *Checkpoint) Len() int {
	return len(c.index)
}

// Entries returns a copy of the recorded key/status index.
func (c *Checkpoint) Entries() map[types.DocumentKey]types.RecordStatus {
	out := make(map[types.DocumentKey]types.RecordStatus, len(c.index))
	for k, v := range c.index {
		out[k] = v
	}
	return out
}

// Close releases the append handle.
func (c *Checkpoint) Close() error {
	return c.file.Close()
}
