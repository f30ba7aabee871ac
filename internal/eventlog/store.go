package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store provides thread-safe, chronological storage for RunEvents.
type Store struct {
	mu   sync.RWMutex
	logs map[string][]RunEvent // Partitioned by workflow session ID
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		logs: make(map[string][]RunEvent),
	}
}

// Append adds new events to the log for a session, ensuring chronological
// order and deduplication.
func (s *Store) Append(sessionID string, events ...RunEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[sessionID]

	// Identity = RunID + Timestamp + EventType + Message
	existing := make(map[string]bool)
	for _, e := range log {
		existing[e.identity()] = true
	}

	newCount := 0
	for _, e := range events {
		if !existing[e.identity()] {
			log = append(log, e)
			newCount++
		}
	}

	if newCount == 0 {
		return
	}

	sort.Slice(log, func(i, j int) bool {
		if log[i].Timestamp != log[j].Timestamp {
			return log[i].Timestamp < log[j].Timestamp
		}
		return log[i].EventType < log[j].EventType
	})

	s.logs[sessionID] = log
}

// Record is a convenience wrapper that appends a single event stamped now.
func (s *Store) Record(sessionID, runID, jobID string, eventType EventType, message string) {
	s.Append(sessionID, RunEvent{
		RunID:     runID,
		JobID:     jobID,
		EventType: eventType,
		Timestamp: time.Now().UnixMicro(),
		Message:   message,
	})
}

// Load reads events from a JSONL cache file for the given session.
func (s *Store) Load(cacheDir string, sessionID string) error {
	path := filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", sessionID))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache yet, not an error
		}
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer file.Close()

	var events []RunEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e RunEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("Skipping invalid JSON line in run log")
			continue
		}
		events = append(events, e)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading run log: %w", err)
	}

	log.Info().Str("session", sessionID).Int("count", len(events)).Msg("Loaded run events from cache")
	s.Append(sessionID, events...)
	return nil
}

// Save persists events for the given session to a JSONL cache file.
func (s *Store) Save(cacheDir string, sessionID string) error {
	s.mu.RLock()
	logData, ok := s.logs[sessionID]
	s.mu.RUnlock()

	if !ok || len(logData) == 0 {
		return nil
	}

	path := filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", sessionID))
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp run log: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, e := range logData {
		if err := encoder.Encode(e); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode run event: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename run log: %w", err)
	}

	log.Info().Str("session", sessionID).Int("count", len(logData)).Msg("Run events saved to cache")
	return nil
}

// Events returns a copy of all events recorded for a session.
func (s *Store) Events(sessionID string) []RunEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logData, ok := s.logs[sessionID]
	if !ok {
		return nil
	}

	result := make([]RunEvent, len(logData))
	copy(result, logData)
	return result
}

// Count returns the number of events in the store for a session.
func (s *Store) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[sessionID])
}

// EventsForRun returns the full event history for a single run.
func (s *Store) EventsForRun(sessionID string, runID string) []RunEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []RunEvent
	for _, e := range s.logs[sessionID] {
		if e.RunID == runID {
			result = append(result, e)
		}
	}
	return result
}

// identity computes a unique string identifier for an event to aid deduplication.
func (e RunEvent) identity() string {
	return fmt.Sprintf("%s|%d|%s|%s",
		e.RunID,
		e.Timestamp,
		e.EventType,
		e.Message,
	)
}
