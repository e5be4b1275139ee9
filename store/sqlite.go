package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vmont3/veramkt-sub001/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer at a time; serialize access through a
	// single connection so concurrent reserve/commit calls queue up
	// instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			plan_id TEXT,
			agent_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'pending',
			data TEXT,
			result TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			allow_retry INTEGER NOT NULL DEFAULT 1,
			parent_task_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_plan ON tasks(plan_id)`,
		`CREATE TABLE IF NOT EXISTS credit_accounts (
			user_id TEXT PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			entry_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			reason TEXT NOT NULL,
			task_id TEXT,
			source_agent_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON ledger_entries(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_task ON ledger_entries(task_id)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			reservation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			amount INTEGER NOT NULL,
			task_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'held',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agent_performance (
			agent_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			health_score INTEGER NOT NULL DEFAULT 100,
			trend TEXT,
			last_reset_at DATETIME,
			last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (agent_id, platform)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_snapshots (
			snapshot_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			brand_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			health_score INTEGER NOT NULL,
			data TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_agent ON agent_snapshots(agent_id, brand_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateTask creates a new task.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *domain.Task) error {
	var data, result sql.NullString
	if task.Data != nil {
		data = sql.NullString{String: string(task.Data), Valid: true}
	}
	if task.Result != nil {
		result = sql.NullString{String: string(task.Result), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, plan_id, agent_id, user_id, type, priority, status, data, result, retry_count, allow_retry, parent_task_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskID, nullStr(task.PlanID), task.AgentID, task.UserID, task.Type, task.Priority, task.Status,
		data, result, task.RetryCount, task.AllowRetry, nullStr(task.ParentTaskID), task.CreatedAt)
	return err
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, plan_id, agent_id, user_id, type, priority, status, data, result, retry_count, allow_retry, parent_task_id, created_at, completed_at
		 FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// TransitionTaskStatus moves a task from one status to another. The write
// only lands when the row still holds the expected status, so a concurrent
// paused_emergency is never overwritten. Returns whether the row moved.
func (s *SQLiteStore) TransitionTaskStatus(ctx context.Context, taskID string, from, to domain.TaskStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE task_id = ? AND status = ?`, to, taskID, from)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdateTaskResult moves a task to a terminal status with its result or
// error description, and stamps completed_at. Only active tasks are
// touched: a row already paused or terminal stays as it is, and the
// returned bool reports whether the write landed.
func (s *SQLiteStore) UpdateTaskResult(ctx context.Context, taskID string, status domain.TaskStatus, result []byte) (bool, error) {
	var res sql.NullString
	if result != nil {
		res = sql.NullString{String: string(result), Valid: true}
	}
	r, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, result = ?, completed_at = ? WHERE task_id = ? AND status IN ('pending', 'in_progress')`,
		status, res, time.Now(), taskID)
	if err != nil {
		return false, err
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CompleteTask settles a successful execution in one transaction: the task
// moves from in_progress to completed and the reservation turns into the
// ledger debit. When the task was paused mid-flight the row stays paused,
// the hold is refunded instead and false is returned. An empty
// reservationID means the task was free. Either everything lands or
// nothing does, so a completed task always has exactly one debit.
func (s *SQLiteStore) CompleteTask(ctx context.Context, taskID string, result []byte, reservationID, reason, sourceAgentID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var res sql.NullString
	if result != nil {
		res = sql.NullString{String: string(result), Valid: true}
	}
	r, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', result = ?, completed_at = ? WHERE task_id = ? AND status = 'in_progress'`,
		res, time.Now(), taskID)
	if err != nil {
		return false, err
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected == 0 {
		if reservationID != "" {
			if err := releaseReservationTx(ctx, tx, reservationID); err != nil {
				return false, err
			}
		}
		return false, tx.Commit()
	}

	if reservationID != "" {
		if err := commitReservationTx(ctx, tx, reservationID, reason, sourceAgentID); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// FindPendingTasks returns up to limit pending tasks ordered by priority
// descending, then creation order ascending as tie-break.
func (s *SQLiteStore) FindPendingTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, plan_id, agent_id, user_id, type, priority, status, data, result, retry_count, allow_retry, parent_task_id, created_at, completed_at
		 FROM tasks WHERE status = 'pending'
		 ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// PauseActiveTasks bulk-moves pending and in-progress tasks to
// paused_emergency. Empty planID pauses everything active.
func (s *SQLiteStore) PauseActiveTasks(ctx context.Context, planID string) (int64, error) {
	query := `UPDATE tasks SET status = 'paused_emergency' WHERE status IN ('pending', 'in_progress')`
	args := []interface{}{}
	if planID != "" {
		query += ` AND plan_id = ?`
		args = append(args, planID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetBalance returns the current credit balance for a user. Users without
// an account row have a zero balance.
func (s *SQLiteStore) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AddCredits tops up a user's balance and appends a credit ledger entry.
func (s *SQLiteStore) AddCredits(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("top-up amount must be positive, got %d", amount)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credit_accounts (user_id, balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET balance = balance + excluded.balance, updated_at = excluded.updated_at`,
		userID, amount, time.Now()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (entry_id, user_id, amount, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		"le_"+uuid.New().String()[:8], userID, amount, reason, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// ReserveCredits places an atomic hold on a user's credits for a task.
// The balance is debited in the same statement that checks it, so two
// concurrent reservations for the same user can never overdraw the account.
// Returns ErrInsufficientFunds when the balance is below amount.
func (s *SQLiteStore) ReserveCredits(ctx context.Context, userID string, amount int, taskID string) (*domain.Reservation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("reserve amount must be positive, got %d", amount)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts SET balance = balance - ?, updated_at = ? WHERE user_id = ? AND balance >= ?`,
		amount, time.Now(), userID, amount)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrInsufficientFunds
	}

	r := &domain.Reservation{
		ReservationID: "rsv_" + uuid.New().String()[:8],
		UserID:        userID,
		Amount:        amount,
		TaskID:        taskID,
		Status:        domain.ReservationHeld,
		CreatedAt:     time.Now(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (reservation_id, user_id, amount, task_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ReservationID, r.UserID, r.Amount, r.TaskID, r.Status, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// CommitReservation finalizes a held reservation as a ledger debit. The
// held balance was already taken at reserve time; commit only records the
// entry. Exactly one debit entry references the task.
func (s *SQLiteStore) CommitReservation(ctx context.Context, reservationID, reason, sourceAgentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := commitReservationTx(ctx, tx, reservationID, reason, sourceAgentID); err != nil {
		return err
	}
	return tx.Commit()
}

// ReleaseReservation refunds a held reservation after a failed or skipped
// execution. Releasing a non-held reservation is an error, never a double
// refund.
func (s *SQLiteStore) ReleaseReservation(ctx context.Context, reservationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := releaseReservationTx(ctx, tx, reservationID); err != nil {
		return err
	}
	return tx.Commit()
}

func commitReservationTx(ctx context.Context, tx *sql.Tx, reservationID, reason, sourceAgentID string) error {
	var userID, taskID string
	var amount int
	err := tx.QueryRowContext(ctx,
		`SELECT user_id, amount, task_id FROM reservations WHERE reservation_id = ? AND status = 'held'`,
		reservationID).Scan(&userID, &amount, &taskID)
	if err == sql.ErrNoRows {
		return ErrReservationNotHeld
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'committed' WHERE reservation_id = ?`, reservationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (entry_id, user_id, amount, reason, task_id, source_agent_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"le_"+uuid.New().String()[:8], userID, -amount, reason, taskID, nullStr(sourceAgentID), time.Now()); err != nil {
		return err
	}
	return nil
}

func releaseReservationTx(ctx context.Context, tx *sql.Tx, reservationID string) error {
	var userID string
	var amount int
	err := tx.QueryRowContext(ctx,
		`SELECT user_id, amount FROM reservations WHERE reservation_id = ? AND status = 'held'`,
		reservationID).Scan(&userID, &amount)
	if err == sql.ErrNoRows {
		return ErrReservationNotHeld
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'released' WHERE reservation_id = ?`, reservationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts SET balance = balance + ?, updated_at = ? WHERE user_id = ?`,
		amount, time.Now(), userID); err != nil {
		return err
	}
	return nil
}

// ListLedgerEntries returns the most recent ledger entries for a user.
func (s *SQLiteStore) ListLedgerEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id, user_id, amount, reason, task_id, source_agent_id, created_at
		 FROM ledger_entries WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var taskID, sourceAgent sql.NullString
		if err := rows.Scan(&e.EntryID, &e.UserID, &e.Amount, &e.Reason, &taskID, &sourceAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TaskID = taskID.String
		e.SourceAgentID = sourceAgent.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetAgentPerformance retrieves the performance record for an agent on a
// platform. Returns nil when no record exists yet.
func (s *SQLiteStore) GetAgentPerformance(ctx context.Context, agentID, platform string) (*domain.AgentPerformance, error) {
	var perf domain.AgentPerformance
	var trend sql.NullString
	var lastReset sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT agent_id, platform, health_score, trend, last_reset_at, last_updated
		 FROM agent_performance WHERE agent_id = ? AND platform = ?`,
		agentID, platform).Scan(&perf.AgentID, &perf.Platform, &perf.HealthScore, &trend, &lastReset, &perf.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if trend.Valid {
		perf.Trend = trend.String
	}
	if lastReset.Valid {
		perf.LastResetAt = &lastReset.Time
	}
	return &perf, nil
}

// UpsertAgentPerformance inserts or updates a performance record.
func (s *SQLiteStore) UpsertAgentPerformance(ctx context.Context, perf *domain.AgentPerformance) error {
	var lastReset sql.NullTime
	if perf.LastResetAt != nil {
		lastReset = sql.NullTime{Time: *perf.LastResetAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_performance (agent_id, platform, health_score, trend, last_reset_at, last_updated) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id, platform) DO UPDATE SET
			health_score = excluded.health_score,
			trend = excluded.trend,
			last_reset_at = excluded.last_reset_at,
			last_updated = excluded.last_updated`,
		perf.AgentID, perf.Platform, perf.HealthScore, nullStr(perf.Trend), lastReset, perf.LastUpdated)
	return err
}

// ResetAgentHealth resets the live score to 100 for every platform record
// of an agent and stamps last_reset_at.
func (s *SQLiteStore) ResetAgentHealth(ctx context.Context, agentID string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_performance SET health_score = 100, last_reset_at = ?, last_updated = ? WHERE agent_id = ?`,
		now, now, agentID)
	return err
}

// CreateSnapshot appends an immutable agent snapshot.
func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap *domain.AgentSnapshot) error {
	var data sql.NullString
	if snap.Data != nil {
		data = sql.NullString{String: string(snap.Data), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_snapshots (snapshot_id, agent_id, brand_id, reason, health_score, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.SnapshotID, snap.AgentID, snap.BrandID, snap.Reason, snap.HealthScore, data, snap.CreatedAt)
	return err
}

// LatestSnapshot returns the most recent snapshot for an (agent, brand)
// pair, or nil when none exists. Snapshots are never deleted.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, agentID, brandID string) (*domain.AgentSnapshot, error) {
	var snap domain.AgentSnapshot
	var data sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id, agent_id, brand_id, reason, health_score, data, created_at
		 FROM agent_snapshots WHERE agent_id = ? AND brand_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		agentID, brandID).Scan(&snap.SnapshotID, &snap.AgentID, &snap.BrandID, &snap.Reason, &snap.HealthScore, &data, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if data.Valid {
		snap.Data = []byte(data.String)
	}
	return &snap, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var planID, data, result, parentTaskID sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&task.TaskID, &planID, &task.AgentID, &task.UserID, &task.Type, &task.Priority, &task.Status,
		&data, &result, &task.RetryCount, &task.AllowRetry, &parentTaskID, &task.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	task.PlanID = planID.String
	task.ParentTaskID = parentTaskID.String
	if data.Valid {
		task.Data = []byte(data.String)
	}
	if result.Valid {
		task.Result = []byte(result.String)
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
