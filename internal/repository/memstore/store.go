// Package memstore is a map-backed implementation of the repository
// interfaces. It backs the service when no Postgres DSN is configured and
// serves as the store in tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/repair-service/internal/repository"
)

type partKey struct {
	ticketID int64
	partID   int64
}

type state struct {
	users         map[int64]userRow
	tickets       map[int64]ticketRow
	comments      map[int64]commentRow
	parts         map[int64]partRow
	usage         map[partKey]usageRow
	notifications map[int64]notificationRow
	history       map[int64]historyRow
	seq           int64
}

func usersOf(st *state) map[int64]userRow { return st.users }
func ticketsOf(st *state) map[int64]ticketRow { return st.tickets }
func commentsOf(st *state) map[int64]commentRow { return st.comments }
func partsOf(st *state) map[int64]partRow { return st.parts }
func usageOf(st *state) map[partKey]usageRow { return st.usage }
func notificationsOf(st *state) map[int64]notificationRow { return st.notifications }
func historyOf(st *state) map[int64]historyRow { return st.history }

// undoLog holds the prior value of every row a transaction wrote, newest last.
type undoLog struct {
	steps []func(st *state)
}

// remember records the current value of table[key] in the undo log bound to
// ctx. It must be called with the store lock held and before the row changes.
func remember[K comparable, V any](ctx context.Context, st *state, table func(*state) map[K]V, key K) {
	log, ok := ctx.Value(txKey{}).(*undoLog)
	if !ok {
		return
	}
	old, existed := table(st)[key]
	log.steps = append(log.steps, func(st *state) {
		if existed {
			table(st)[key] = old
		} else {
			delete(table(st), key)
		}
	})
}

// Store holds all tables behind one lock.
type Store struct {
	mu  sync.RWMutex
	st  state
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		st: state{
			users:         map[int64]userRow{},
			tickets:       map[int64]ticketRow{},
			comments:      map[int64]commentRow{},
			parts:         map[int64]partRow{},
			usage:         map[partKey]usageRow{},
			notifications: map[int64]notificationRow{},
			history:       map[int64]historyRow{},
		},
		now: time.Now,
	}
}

// WithClock overrides the timestamp source used for created_at columns.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) nextID() int64 {
	s.st.seq++
	return s.st.seq
}

// Users returns the user table.
func (s *Store) Users() repository.UserRepository { return &userTable{s: s} }

// Tickets returns the ticket table.
func (s *Store) Tickets() repository.TicketRepository { return &ticketTable{s: s} }

// Comments returns the comment table.
func (s *Store) Comments() repository.CommentRepository { return &commentTable{s: s} }

// Parts returns the parts catalog and usage table.
func (s *Store) Parts() repository.PartRepository { return &partTable{s: s} }

// Notifications returns the inbox table.
func (s *Store) Notifications() repository.NotificationRepository { return &notificationTable{s: s} }

// History returns the ticket history table.
func (s *Store) History() repository.TicketHistoryRepository { return &historyTable{s: s} }

// Transactor returns a Transactor that reverts the rows written through the
// transaction context when fn fails. Writes made outside that context are kept.
func (s *Store) Transactor() repository.Transactor { return &transactor{s: s} }

type txKey struct{}

type transactor struct {
	s *Store
}

func (t *transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	log := &undoLog{}
	txCtx, hooks := repository.WithCommitHooks(context.WithValue(ctx, txKey{}, log))
	if err := fn(txCtx); err != nil {
		t.s.mu.Lock()
		// ids are never reused, so seq stays where it is
		for i := len(log.steps) - 1; i >= 0; i-- {
			log.steps[i](&t.s.st)
		}
		t.s.mu.Unlock()
		return err
	}
	hooks.Run()
	return nil
}
