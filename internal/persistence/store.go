package persistence

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/repository/memstore"
)

// Storage backends reported by Store.Backend.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Store bundles the ticket store repositories of one backend.
type Store struct {
	Backend       string
	Postgres      *Postgres
	Transactor    repository.Transactor
	Users         repository.UserRepository
	Tickets       repository.TicketRepository
	Comments      repository.CommentRepository
	Parts         repository.PartRepository
	Notifications repository.NotificationRepository
	History       repository.TicketHistoryRepository
}

// OpenStore connects to Postgres and applies migrations when a DSN is
// configured, and falls back to the in-memory store otherwise.
func OpenStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; using in-memory ticket store")
		mem := memstore.New()
		return &Store{
			Backend:       BackendMemory,
			Transactor:    mem.Transactor(),
			Users:         mem.Users(),
			Tickets:       mem.Tickets(),
			Comments:      mem.Comments(),
			Parts:         mem.Parts(),
			Notifications: mem.Notifications(),
			History:       mem.History(),
		}, nil
	}

	pg, err := NewPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := RunMigrations(ctx, pg.PoolHandle(), cfg.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	pool := pg.PoolHandle()
	return &Store{
		Backend:       BackendPostgres,
		Postgres:      pg,
		Transactor:    repository.NewTransactor(pool),
		Users:         repository.NewUserRepository(pool),
		Tickets:       repository.NewTicketRepository(pool),
		Comments:      repository.NewCommentRepository(pool),
		Parts:         repository.NewPartRepository(pool),
		Notifications: repository.NewNotificationRepository(pool),
		History:       repository.NewTicketHistoryRepository(pool),
	}, nil
}

// Close releases the backend connections.
func (s *Store) Close() {
	if s != nil {
		s.Postgres.Close()
	}
}
