// ABOUTME: In-memory song queue for the development karaoke server
// ABOUTME: Ordered song ids with add, pop, play-now, and clear operations
package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Queue is an ordered list of song ids
type Queue struct {
	mu    sync.Mutex
	songs []string
}

// NewQueue creates a queue holding the given songs in order
func NewQueue(songs ...string) *Queue {
	return &Queue{songs: append([]string(nil), songs...)}
}

// Add appends a song
func (q *Queue) Add(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.songs = append(q.songs, id)
}

// PlayNow puts id at the head of the queue. The song playing now has
// already been popped, so nothing queued is lost.
func (q *Queue) PlayNow(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.songs = append([]string{id}, q.songs...)
}

// Pop removes and returns the head of the queue
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.songs) == 0 {
		return "", false
	}
	id := q.songs[0]
	q.songs = q.songs[1:]
	return id, true
}

// Skip drops the head of the queue, reporting whether anything was queued
func (q *Queue) Skip() bool {
	_, ok := q.Pop()
	return ok
}

// Clear empties the queue
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.songs = nil
}

// Len returns the number of queued songs
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.songs)
}

// Songs returns a copy of the queued ids
func (q *Queue) Songs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.songs...)
}

// ScanSongs returns the ids of songs in dir that have both an audio and a
// graphics file, sorted by id
func ScanSongs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read songs directory: %w", err)
	}

	audio := make(map[string]bool)
	var graphics []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".mp3":
			audio[strings.TrimSuffix(name, filepath.Ext(name))] = true
		case ".cdg":
			graphics = append(graphics, strings.TrimSuffix(name, filepath.Ext(name)))
		}
	}

	var ids []string
	for _, id := range graphics {
		if audio[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
