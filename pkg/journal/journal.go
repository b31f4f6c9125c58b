// Package journal: журнал вызовов инструментов в SQLite.
//
// Журнал нужен для разбора инцидентов ("что бот сделал с моим товаром?").
// Это не хранилище сессий: транскрипты по-прежнему живут только в памяти.
// Токены в журнал не попадают, только отпечаток ключа сессии.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver (CGO)
)

// Entry: один выполненный вызов инструмента.
type Entry struct {
	SessionHash string
	Tool        string
	Args        string
	Result      string
	OK          bool
	Duration    time.Duration
	CreatedAt   time.Time
}

// Recorder принимает записи журнала.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Nop: выключенный журнал.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// maxTextLen: ограничение на args/result (base64 картинок сюда не должен попадать).
const maxTextLen = 4096

// Store: журнал поверх SQLite.
type Store struct {
	db *sql.DB
}

var _ Recorder = (*Store)(nil)

// Open открывает (или создаёт) базу и применяет схему.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Один писатель: SQLite не любит параллельные записи
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return s, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_hash TEXT NOT NULL,
		tool TEXT NOT NULL,
		args TEXT NOT NULL,
		result TEXT NOT NULL,
		ok INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tool_executions_session ON tool_executions(session_hash, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record добавляет запись.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	ok := 0
	if e.OK {
		ok = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_executions (session_hash, tool, args, result, ok, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionHash, e.Tool, truncate(e.Args), truncate(e.Result), ok,
		e.Duration.Milliseconds(), e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert tool execution: %w", err)
	}
	return nil
}

// Recent возвращает последние limit записей сессии, новые первыми.
func (s *Store) Recent(ctx context.Context, sessionHash string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_hash, tool, args, result, ok, duration_ms, created_at
		FROM tool_executions
		WHERE session_hash = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, sessionHash, limit)
	if err != nil {
		return nil, fmt.Errorf("query tool executions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			ok         int
			durationMs int64
			createdAt  int64
		)
		if err := rows.Scan(&e.SessionHash, &e.Tool, &e.Args, &e.Result, &ok, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tool execution: %w", err)
		}
		e.OK = ok == 1
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func truncate(s string) string {
	if len(s) <= maxTextLen {
		return s
	}
	return s[:maxTextLen] + "…"
}
