package storage

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"sync"
	"time"

	"github.com/keshon/datastore"
	"github.com/rs/zerolog/log"

	"github.com/keshon/herald/internal/dispatch"
)

const commandHistoryLimit int = 20

type Storage struct {
	ds *datastore.DataStore
	// mu serialises read-modify-write cycles on guild records.
	mu sync.Mutex
}

type CommandHistoryRecord struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	Origin    string    `json:"origin"`
	Datetime  time.Time `json:"datetime"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	// CommandHashes maps a registered application command name to the hash
	// of its last synced definition.
	CommandHashes map[string]string `json:"cmd_hashes"`
}

func New(filePath string) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.AutoSaveInterval = 5 * time.Second
	cfg.Logger = stdlog.New(log.With().Str("component", "datastore").Logger(), "", 0)

	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open datastore %s: %w", filePath, err)
	}
	return &Storage{ds: ds}, nil
}

// Close flushes pending writes to disk.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord returns a copy of the guild's record. Values loaded
// from disk come back as generic maps, so they are round-tripped through JSON.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		return &Record{
			CommandsHistoryList: []CommandHistoryRecord{},
			CommandHashes:       map[string]string{},
		}, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if record.CommandHashes == nil {
		record.CommandHashes = map[string]string{}
	}
	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	return &record, nil
}

func (s *Storage) update(guildID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	fn(record)
	s.ds.Add(guildID, record)
	return nil
}

// AppendCommandToHistory appends a command history record for a guild,
// keeping only the most recent entries.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	return s.update(guildID, func(r *Record) {
		r.CommandsHistoryList = append(r.CommandsHistoryList, command)
		if n := len(r.CommandsHistoryList); n > commandHistoryLimit {
			r.CommandsHistoryList = r.CommandsHistoryList[n-commandHistoryLimit:]
		}
	})
}

// FetchCommandHistory returns the guild's history, oldest first.
func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

func (s *Storage) CommandHashes(guildID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandHashes, nil
}

// SetCommandHashes replaces the stored command hashes for a guild.
func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	return s.update(guildID, func(r *Record) {
		r.CommandHashes = make(map[string]string, len(hashes))
		for k, v := range hashes {
			r.CommandHashes[k] = v
		}
	})
}

// RecordCommand stores a dispatched command in the guild's history. Direct
// message invocations have no guild and are not kept.
func (s *Storage) RecordCommand(_ context.Context, e dispatch.Entry) error {
	if e.GuildID == "" {
		return nil
	}
	return s.AppendCommandToHistory(e.GuildID, CommandHistoryRecord{
		ID:        e.ID,
		ChannelID: e.ChannelID,
		UserID:    e.CallerID,
		Username:  e.Caller,
		Command:   e.Command,
		Origin:    e.Origin,
		Datetime:  e.At,
	})
}
