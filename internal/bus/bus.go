// Package bus implements C2: a single-process, append-only event timeline
// with synchronous fan-out to registered subscribers. It is the durable
// source of truth every observer (local CLI output, a future web push
// stream, replay-based reconstruction of task status) derives from.
//
// Grounded on the teacher's cmd/ao/rpi_ledger.go append-only ledger: an
// flock'd lock file, append + fsync + parent-directory fsync for crash
// durability, and a prev-hash/payload-hash/hash chain. Generalized from a
// single ledger writer into a publish-subscribe bus with in-memory fan-out.
package bus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/agentops/ralph/internal/types"
)

// Subscriber receives a clone of every event it is registered for, in
// emission order. Subscribers must not block or panic; Bus recovers a
// panicking subscriber and logs it rather than letting it take down emit.
type Subscriber func(types.Event)

// Bus is the publish-subscribe event timeline for one run.
type Bus struct {
	mu          sync.Mutex
	runID       string
	path        string
	file        *os.File
	lockFile    *os.File
	prevHash    string
	subscribers map[types.EventKind][]Subscriber
	wildcard    []Subscriber
	log         *zap.Logger
}

// Open creates (or appends to) the JSONL timeline at path for the given
// run id. The caller must call Close when the run ends.
func Open(path, runID string, log *zap.Logger) (*Bus, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bus: create timeline dir: %w", err)
	}

	lockFile, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("bus: open lock: %w", err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("bus: lock timeline: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
		return nil, fmt.Errorf("bus: open timeline: %w", err)
	}

	prevHash, err := lastHash(file)
	if err != nil {
		file.Close()
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
		return nil, err
	}

	return &Bus{
		runID:       runID,
		path:        path,
		file:        file,
		lockFile:    lockFile,
		prevHash:    prevHash,
		subscribers: make(map[types.EventKind][]Subscriber),
		log:         log,
	}, nil
}

// Subscribe registers fn for events of kind. Passing the zero EventKind
// registers a wildcard subscriber that receives every event.
func (b *Bus) Subscribe(kind types.EventKind, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if kind == "" {
		b.wildcard = append(b.wildcard, fn)
		return
	}
	b.subscribers[kind] = append(b.subscribers[kind], fn)
}

// Emit appends an event to the durable timeline and then synchronously
// notifies every matching subscriber in registration order. The JSONL
// write is flushed and fsync'd before Emit returns: downstream verifiers
// and a UI both derive correctness from the log, so a caller that has seen
// Emit return has a durability guarantee the event survived a crash.
func (b *Bus) Emit(kind types.EventKind, payload map[string]any) (types.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, err := newRecord(b.runID, kind, payload, b.prevHash)
	if err != nil {
		return types.Event{}, err
	}
	if err := b.append(record); err != nil {
		return types.Event{}, err
	}
	b.prevHash = record.Hash

	event := record.ToEvent()
	b.dispatch(kind, event)
	return event, nil
}

func (b *Bus) append(record Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("bus: marshal record: %w", err)
	}
	if _, err := b.file.Seek(0, os.SEEK_END); err != nil {
		return fmt.Errorf("bus: seek timeline: %w", err)
	}
	if _, err := b.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("bus: append timeline: %w", err)
	}
	if err := b.file.Sync(); err != nil {
		return fmt.Errorf("bus: fsync timeline: %w", err)
	}
	return syncDir(filepath.Dir(b.path))
}

// dispatch calls every subscriber registered for kind, plus every wildcard
// subscriber, recovering and logging instead of propagating a panic.
func (b *Bus) dispatch(kind types.EventKind, event types.Event) {
	for _, fn := range b.subscribers[kind] {
		b.safeCall(fn, event)
	}
	for _, fn := range b.wildcard {
		b.safeCall(fn, event)
	}
}

func (b *Bus) safeCall(fn Subscriber, event types.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("bus subscriber panicked, skipping",
				zap.Any("recovered", r), zap.String("event", string(event.Kind)))
		}
	}()
	fn(event)
}

// Close releases the timeline file and its lock.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	closeErr := b.file.Close()
	_ = syscall.Flock(int(b.lockFile.Fd()), syscall.LOCK_UN)
	_ = b.lockFile.Close()
	return closeErr
}

// lastHash scans an existing timeline file for the hash of its final
// record, so a reopened bus continues the same hash chain.
func lastHash(file *os.File) (string, error) {
	if _, err := file.Seek(0, os.SEEK_SET); err != nil {
		return "", fmt.Errorf("bus: seek timeline start: %w", err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	prevHash := ""
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return "", fmt.Errorf("bus: parse existing timeline: %w", err)
		}
		prevHash = r.Hash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("bus: read existing timeline: %w", err)
	}
	if _, err := file.Seek(0, os.SEEK_END); err != nil {
		return "", fmt.Errorf("bus: seek timeline end: %w", err)
	}
	return prevHash, nil
}

// Load reads every record from an on-disk timeline in append order. This
// is also how a restarting observer tails the timeline from offset 0.
func Load(path string) ([]Record, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bus: open timeline: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("bus: parse timeline: %w", err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bus: read timeline: %w", err)
	}
	return records, nil
}
