// Package postgres is the durable state.Store provider: every key/value
// pair survives a process restart, backed by a single JSONB table. Adapted
// from knowledge/vectorstore/pgvector's connect-ensureSchema-query shape,
// generalized from vector rows to arbitrary JSON values.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/state"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
)

func init() {
	state.Register("postgres", func(cfg state.Config) (state.Store, error) {
		return New(context.Background(), Config{DSN: cfg.DSN})
	})
}

const defaultTableName = "state_kv"

// Config configures a Store.
type Config struct {
	DSN       string
	TableName string
}

// Store is a postgres-backed state.Store: one row per key, the value
// marshaled to JSONB, change notifications delivered via LISTEN/NOTIFY.
type Store struct {
	db        *sql.DB
	tableName string
	listener  *pq.Listener

	watchMu  sync.Mutex
	watchers map[string][]chan state.StateChange
}

// New connects to PostgreSQL, ensures the backing table exists, and starts
// listening for change notifications.
func New(ctx context.Context, cfg Config) (*Store, error) {
	const op = "state.postgres.New"
	tableName := cfg.TableName
	if tableName == "" {
		tableName = defaultTableName
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(op, errs.UpstreamTransient, err)
	}

	s := &Store{
		db:        db,
		tableName: tableName,
		watchers:  make(map[string][]chan state.StateChange),
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	listener := pq.NewListener(cfg.DSN, minReconnectInterval, maxReconnectInterval, s.reportListenerProblem)
	if err := listener.Listen(notifyChannel(tableName)); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	s.listener = listener
	go s.dispatchNotifications()

	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		key        TEXT PRIMARY KEY,
		value      JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE OR REPLACE FUNCTION %[1]s_notify() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('%[2]s', TG_OP || ':' || COALESCE(NEW.key, OLD.key));
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;
	DROP TRIGGER IF EXISTS %[1]s_notify_trigger ON %[1]s;
	CREATE TRIGGER %[1]s_notify_trigger
		AFTER INSERT OR UPDATE OR DELETE ON %[1]s
		FOR EACH ROW EXECUTE FUNCTION %[1]s_notify();
	`, s.tableName, notifyChannel(s.tableName))

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errs.Wrap("state.postgres.ensureSchema", errs.Internal, err)
	}
	return nil
}

func notifyChannel(tableName string) string {
	return tableName + "_changes"
}

// Get implements state.Store.
func (s *Store) Get(ctx context.Context, key string) (any, error) {
	const op = "state.postgres.Get"
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.tableName)
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	return value, nil
}

// Set implements state.Store.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	const op = "state.postgres.Set"
	raw, err := json.Marshal(value)
	if err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	query := fmt.Sprintf(`
	INSERT INTO %[1]s (key, value, updated_at) VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, key, raw); err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	return nil
}

// Delete implements state.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	const op = "state.postgres.Delete"
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	return nil
}

// Watch subscribes to LISTEN/NOTIFY events for key, fanning them into a
// per-caller channel. Unlike the inmemory provider, a postgres StateChange
// carries only the new value: NOTIFY payloads are just "op:key", so
// Old/New values are re-fetched with a Get rather than carried in the
// payload, keeping the trigger's payload small.
func (s *Store) Watch(ctx context.Context, key string) (<-chan state.StateChange, error) {
	ch := make(chan state.StateChange, 16)
	s.watchMu.Lock()
	s.watchers[key] = append(s.watchers[key], ch)
	s.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		list := s.watchers[key]
		for i, w := range list {
			if w == ch {
				s.watchers[key] = append(list[:i], list[i+1:]...)
				close(ch)
				return
			}
		}
	}()

	return ch, nil
}

func (s *Store) dispatchNotifications() {
	for notification := range s.listener.Notify {
		if notification == nil {
			continue
		}
		op, key := splitPayload(notification.Extra)
		value, err := s.Get(context.Background(), key)
		if err != nil {
			continue
		}
		change := state.StateChange{Key: key, Value: value, Op: state.OpSet}
		if op == "DELETE" {
			change = state.StateChange{Key: key, OldValue: value, Op: state.OpDelete}
		}
		s.watchMu.Lock()
		for _, ch := range s.watchers[key] {
			select {
			case ch <- change:
			default:
			}
		}
		s.watchMu.Unlock()
	}
}

func splitPayload(payload string) (op, key string) {
	for i := 0; i < len(payload); i++ {
		if payload[i] == ':' {
			return payload[:i], payload[i+1:]
		}
	}
	return "", payload
}

func (s *Store) reportListenerProblem(ev pq.ListenerEventType, err error) {
	// Reconnection is handled internally by pq.Listener; nothing to do
	// here beyond letting it retry.
}

// Close stops the listener and closes the connection pool.
func (s *Store) Close() error {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	return s.db.Close()
}
