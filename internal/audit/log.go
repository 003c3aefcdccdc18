// Package audit persists terminal verification outcomes as append-only
// newline-delimited JSON. It is the only persisted state of the system;
// entries are written once and never mutated.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Terminal outcome statuses.
const (
	StatusVerified = "verified"
	StatusRemoved  = "removed"
)

// Terminal outcome reasons.
const (
	ReasonNFTVerified = "nft_verified"
	ReasonNoNFT       = "no_nft"
	ReasonTimeout     = "timeout"
)

// Entry is one terminal verification outcome.
type Entry struct {
	Timestamp     int64  `json:"timestamp"`
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	NFTCount      int    `json:"nft_count,omitempty"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

// Log appends entries to a newline-delimited JSON file.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates an audit log writing to the given path. The file is
// created on first append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one entry. Exactly one append happens per terminal
// transition; the caller guarantees exclusivity.
func (l *Log) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Totals counts verified and removed outcomes over the whole log.
func (l *Log) Totals() (verified, removed int, err error) {
	entries, err := l.read()
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		switch e.Status {
		case StatusVerified:
			verified++
		case StatusRemoved:
			removed++
		}
	}
	return verified, removed, nil
}

// Recent returns up to n most recent entries, oldest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	entries, err := l.read()
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func (l *Log) read() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// A torn trailing line is skipped, not fatal.
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	return entries, nil
}
