// Package store implements the durable, transactional persistence layer
// described in SPEC_FULL.md §4.1: every mutating operation runs inside a
// single gorm transaction, grounded on the teacher's
// repo/mysql/orchestrator repositories (read current state, mutate,
// return, all inside db.Transaction).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the durable persistence contract the rest of the system
// depends on. Every method here is one transaction (see SPEC_FULL.md
// §4.1) unless documented otherwise.
type Store interface {
	InsertCommand(id, kind string, payload interface{}) error
	GetCommand(id string) (*Command, error)
	ListCommands() ([]Command, error)
	ListCommandsByStatus(status string) ([]Command, error)
	ListEvents(commandID string) ([]CommandEvent, error)

	AssignNextTo(agentID string, now time.Time) (*Command, error)
	GetRunningFor(agentID string) (*Command, error)
	Complete(commandID, agentID, terminalStatus string, result interface{}, execErr string, now time.Time) (bool, error)
	FailAndReopen(commandID, agentID string, now time.Time) (bool, error)

	TouchHeartbeat(agentID, currentCommand string, now time.Time) error

	ReclaimCrashedRunning(now time.Time) (int, error)
	ReclaimStale(cutoff, now time.Time) (int, error)

	Close() error
}

type gormStore struct {
	db *gorm.DB
}

// Open opens (creating if necessary) a WAL-mode SQLite database at path
// and migrates the schema, grounded on the teacher's
// database.NewMySQLConnection (build DSN, open, configure, verify).
func Open(path string) (Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // SQLite has one writer; avoid pool contention deadlocks.

	if err := db.AutoMigrate(&Command{}, &AgentLiveness{}, &CommandEvent{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &gormStore{db: db}, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *gormStore) InsertCommand(id, kind string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing Command
		err := tx.First(&existing, "id = ?", id).Error
		if err == nil {
			return ErrDuplicateID
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check existing command: %w", err)
		}

		now := time.Now().UTC()
		cmd := Command{
			ID:        id,
			Kind:      kind,
			Payload:   string(payloadJSON),
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&cmd).Error; err != nil {
			return fmt.Errorf("insert command: %w", err)
		}
		return tx.Create(&CommandEvent{
			CommandID: id,
			FromStatus: "",
			ToStatus:   StatusPending,
			At:         now,
		}).Error
	})
}

func (s *gormStore) GetCommand(id string) (*Command, error) {
	var cmd Command
	err := s.db.First(&cmd, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get command: %w", err)
	}
	return &cmd, nil
}

func (s *gormStore) ListCommands() ([]Command, error) {
	var cmds []Command
	if err := s.db.Order("created_at asc, id asc").Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	return cmds, nil
}

func (s *gormStore) ListCommandsByStatus(status string) ([]Command, error) {
	var cmds []Command
	err := s.db.Where("status = ?", status).Order("created_at asc, id asc").Find(&cmds).Error
	if err != nil {
		return nil, fmt.Errorf("list commands by status: %w", err)
	}
	return cmds, nil
}

func (s *gormStore) ListEvents(commandID string) ([]CommandEvent, error) {
	var events []CommandEvent
	err := s.db.Where("command_id = ?", commandID).Order("at asc, id asc").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// AssignNextTo implements the single-flight assignment protocol of
// SPEC_FULL.md §4.2 as one transaction.
func (s *gormStore) AssignNextTo(agentID string, now time.Time) (*Command, error) {
	var result *Command

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Step 1: idempotent re-fetch — an agent already owning a
		// Running command gets it back unchanged.
		var owned Command
		err := tx.Where("owner = ? AND status = ?", agentID, StatusRunning).First(&owned).Error
		if err == nil {
			result = &owned
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check owned running command: %w", err)
		}

		// Step 2: FIFO selection of the oldest Pending command.
		var next Command
		err = tx.Where("status = ?", StatusPending).
			Order("created_at asc, id asc").
			First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("select next pending command: %w", err)
		}

		// Step 3: transition to Running.
		startedAt := now
		updates := map[string]interface{}{
			"status":     StatusRunning,
			"owner":      agentID,
			"started_at": &startedAt,
			"updated_at": now,
		}
		if err := tx.Model(&next).Updates(updates).Error; err != nil {
			return fmt.Errorf("assign command: %w", err)
		}

		// Step 4: upsert liveness so current_command mirrors the
		// assignment immediately (heartbeat correspondence, invariant 6).
		if err := upsertLiveness(tx, agentID, next.ID, now); err != nil {
			return err
		}

		if err := tx.Create(&CommandEvent{
			CommandID:  next.ID,
			FromStatus: StatusPending,
			ToStatus:   StatusRunning,
			AgentID:    agentID,
			At:         now,
		}).Error; err != nil {
			return fmt.Errorf("record assignment event: %w", err)
		}

		next.Status = StatusRunning
		next.Owner = agentID
		next.StartedAt = &startedAt
		next.UpdatedAt = now
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *gormStore) GetRunningFor(agentID string) (*Command, error) {
	var cmd Command
	err := s.db.Where("owner = ? AND status = ?", agentID, StatusRunning).First(&cmd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get running command for agent: %w", err)
	}
	return &cmd, nil
}

// Complete implements SPEC_FULL.md §4.3. It returns false, nil (no
// error) if the record was not Running under this agent's ownership —
// the HTTP layer decides whether that's an idempotent replay or a
// genuine conflict by re-reading the record.
func (s *gormStore) Complete(commandID, agentID, terminalStatus string, result interface{}, execErr string, now time.Time) (bool, error) {
	var ok bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cmd Command
		err := tx.First(&cmd, "id = ?", commandID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ok = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
		if cmd.Status != StatusRunning || cmd.Owner != agentID {
			ok = false
			return nil
		}

		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}

		completedAt := now
		updates := map[string]interface{}{
			"status":       terminalStatus,
			"result":       string(resultJSON),
			"error":        execErr,
			"completed_at": &completedAt,
			"updated_at":   now,
		}
		if err := tx.Model(&cmd).Updates(updates).Error; err != nil {
			return fmt.Errorf("complete command: %w", err)
		}

		if err := clearCurrentCommand(tx, agentID); err != nil {
			return err
		}

		if err := tx.Create(&CommandEvent{
			CommandID:  commandID,
			FromStatus: StatusRunning,
			ToStatus:   terminalStatus,
			AgentID:    agentID,
			At:         now,
		}).Error; err != nil {
			return fmt.Errorf("record completion event: %w", err)
		}

		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// FailAndReopen resolves the crash-recovery Open Question in
// SPEC_FULL.md §4.6 as option (b): a FAILED report carrying the
// "crash — state unknown" reason during agent-side sync resets the
// command directly to Pending instead of leaving it terminal.
func (s *gormStore) FailAndReopen(commandID, agentID string, now time.Time) (bool, error) {
	var ok bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cmd Command
		err := tx.First(&cmd, "id = ?", commandID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ok = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
		if cmd.Status != StatusRunning || cmd.Owner != agentID {
			ok = false
			return nil
		}

		updates := map[string]interface{}{
			"status":     StatusPending,
			"owner":      "",
			"started_at": nil,
			"updated_at": now,
		}
		if err := tx.Model(&cmd).Updates(updates).Error; err != nil {
			return fmt.Errorf("reopen crashed command: %w", err)
		}

		if err := clearCurrentCommand(tx, agentID); err != nil {
			return err
		}

		if err := tx.Create(&CommandEvent{
			CommandID:  commandID,
			FromStatus: StatusRunning,
			ToStatus:   StatusPending,
			AgentID:    agentID,
			At:         now,
		}).Error; err != nil {
			return fmt.Errorf("record reopen event: %w", err)
		}

		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *gormStore) TouchHeartbeat(agentID, currentCommand string, now time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return upsertLiveness(tx, agentID, currentCommand, now)
	})
}

// ReclaimCrashedRunning implements SPEC_FULL.md §4.5: on server
// startup, every Running command is indeterminate and is reset to
// Pending before the server accepts any request.
func (s *gormStore) ReclaimCrashedRunning(now time.Time) (int, error) {
	var count int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var running []Command
		if err := tx.Where("status = ?", StatusRunning).Find(&running).Error; err != nil {
			return fmt.Errorf("list running commands: %w", err)
		}
		for _, cmd := range running {
			updates := map[string]interface{}{
				"status":     StatusPending,
				"owner":      "",
				"started_at": nil,
				"updated_at": now,
			}
			if err := tx.Model(&cmd).Updates(updates).Error; err != nil {
				return fmt.Errorf("reclaim command %s: %w", cmd.ID, err)
			}
			if err := tx.Create(&CommandEvent{
				CommandID:  cmd.ID,
				FromStatus: StatusRunning,
				ToStatus:   StatusPending,
				AgentID:    cmd.Owner,
				At:         now,
			}).Error; err != nil {
				return fmt.Errorf("record reclaim event: %w", err)
			}
		}
		// No agent has a legitimate Running assignment anymore.
		if err := tx.Model(&AgentLiveness{}).Where("1 = 1").Update("current_command", "").Error; err != nil {
			return fmt.Errorf("clear liveness assignments: %w", err)
		}
		count = len(running)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReclaimStale implements SPEC_FULL.md §4.4: any Running command whose
// owner's last heartbeat predates cutoff is returned to Pending.
func (s *gormStore) ReclaimStale(cutoff, now time.Time) (int, error) {
	var count int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var running []Command
		if err := tx.Where("status = ?", StatusRunning).Find(&running).Error; err != nil {
			return fmt.Errorf("list running commands: %w", err)
		}

		for _, cmd := range running {
			var liveness AgentLiveness
			err := tx.First(&liveness, "agent_id = ?", cmd.Owner).Error
			stale := false
			if errors.Is(err, gorm.ErrRecordNotFound) {
				stale = true // no liveness record at all: treat as dead.
			} else if err != nil {
				return fmt.Errorf("read liveness for %s: %w", cmd.Owner, err)
			} else if liveness.LastHeartbeat.Before(cutoff) {
				stale = true
			}
			if !stale {
				continue
			}

			updates := map[string]interface{}{
				"status":     StatusPending,
				"owner":      "",
				"started_at": nil,
				"updated_at": now,
			}
			if err := tx.Model(&cmd).Updates(updates).Error; err != nil {
				return fmt.Errorf("reclaim stale command %s: %w", cmd.ID, err)
			}
			if err := clearCurrentCommand(tx, cmd.Owner); err != nil {
				return err
			}
			if err := tx.Create(&CommandEvent{
				CommandID:  cmd.ID,
				FromStatus: StatusRunning,
				ToStatus:   StatusPending,
				AgentID:    cmd.Owner,
				At:         now,
			}).Error; err != nil {
				return fmt.Errorf("record stale reclaim event: %w", err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func upsertLiveness(tx *gorm.DB, agentID, currentCommand string, now time.Time) error {
	var liveness AgentLiveness
	err := tx.First(&liveness, "agent_id = ?", agentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&AgentLiveness{
			AgentID:        agentID,
			LastHeartbeat:  now,
			CurrentCommand: currentCommand,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("read liveness: %w", err)
	}
	return tx.Model(&liveness).Updates(map[string]interface{}{
		"last_heartbeat":  now,
		"current_command": currentCommand,
	}).Error
}

func clearCurrentCommand(tx *gorm.DB, agentID string) error {
	if agentID == "" {
		return nil
	}
	err := tx.Model(&AgentLiveness{}).Where("agent_id = ?", agentID).
		Update("current_command", "").Error
	if err != nil {
		return fmt.Errorf("clear current command for %s: %w", agentID, err)
	}
	return nil
}
