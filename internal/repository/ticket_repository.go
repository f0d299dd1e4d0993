package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	ClientID      *int64
	MasterID      *int64
	Statuses      []domain.TicketStatus
	ApplianceType *string
	Priority      *domain.Priority
	SearchTerm    *string
	StartFrom     *time.Time
	StartTo       *time.Time
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence. Update never touches
// notes; AppendNote is the only writer of that column.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	AppendNote(ctx context.Context, id int64, line string) (string, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListOpenStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSelect = `
        SELECT t.id, t.start_date, t.appliance_type, t.appliance_model, t.problem_description,
               t.status, t.completion_date, t.extended_deadline, t.repair_parts, t.priority,
               t.estimated_cost, t.actual_cost, t.notes, t.client_phone, t.client_id, t.master_id,
               t.quality_manager_id, t.created_at, t.updated_at,
               COALESCE(c.full_name, ''), COALESCE(m.full_name, '')
        FROM tickets t
        LEFT JOIN users c ON c.id = t.client_id
        LEFT JOIN users m ON m.id = t.master_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (start_date, appliance_type, appliance_model, problem_description, status,
            completion_date, extended_deadline, repair_parts, priority, estimated_cost, actual_cost,
            notes, client_phone, client_id, master_id, quality_manager_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.StartDate,
		ticket.ApplianceType,
		ticket.ApplianceModel,
		ticket.ProblemDescription,
		ticket.Status,
		ticket.CompletionDate,
		ticket.ExtendedDeadline,
		ticket.RepairParts,
		ticket.Priority,
		ticket.EstimatedCost,
		ticket.ActualCost,
		ticket.Notes,
		ticket.ClientPhone,
		ticket.ClientID,
		ticket.MasterID,
		ticket.QualityManagerID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET appliance_type=$1, appliance_model=$2, problem_description=$3, status=$4,
            completion_date=$5, extended_deadline=$6, repair_parts=$7, priority=$8, estimated_cost=$9,
            actual_cost=$10, master_id=$11, quality_manager_id=$12, updated_at=NOW()
        WHERE id=$13
        RETURNING updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		ticket.ApplianceType,
		ticket.ApplianceModel,
		ticket.ProblemDescription,
		ticket.Status,
		ticket.CompletionDate,
		ticket.ExtendedDeadline,
		ticket.RepairParts,
		ticket.Priority,
		ticket.EstimatedCost,
		ticket.ActualCost,
		ticket.MasterID,
		ticket.QualityManagerID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return notFound(err)
}

func (r *ticketRepository) AppendNote(ctx context.Context, id int64, line string) (string, error) {
	const query = `
        UPDATE tickets
        SET notes = CASE WHEN notes = '' THEN $1 ELSE notes || E'\n' || $1 END,
            updated_at = NOW()
        WHERE id=$2
        RETURNING notes`
	var notes string
	if err := conn(ctx, r.pool).QueryRow(ctx, query, line, id).Scan(&notes); err != nil {
		return "", notFound(err)
	}
	return notes, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := ticketSelect + ` WHERE t.id=$1`
	ticket, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("t.client_id=$%d", len(args)))
	}
	if filter.MasterID != nil {
		args = append(args, *filter.MasterID)
		clauses = append(clauses, fmt.Sprintf("t.master_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ApplianceType != nil && strings.TrimSpace(*filter.ApplianceType) != "" {
		args = append(args, strings.TrimSpace(*filter.ApplianceType))
		clauses = append(clauses, fmt.Sprintf("t.appliance_type=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("t.priority=$%d", len(args)))
	}
	if filter.StartFrom != nil {
		args = append(args, domain.DateOf(*filter.StartFrom))
		clauses = append(clauses, fmt.Sprintf("t.start_date >= $%d", len(args)))
	}
	if filter.StartTo != nil {
		args = append(args, domain.DateOf(*filter.StartTo))
		clauses = append(clauses, fmt.Sprintf("t.start_date <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(t.problem_description) LIKE %[1]s OR LOWER(t.appliance_model) LIKE %[1]s OR LOWER(t.appliance_type) LIKE %[1]s OR LOWER(c.full_name) LIKE %[1]s)", p))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY t.priority ASC, t.start_date DESC, t.id DESC`,
		ticketSelect, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListOpenStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	query := ticketSelect + ` WHERE t.status <> $1 AND t.start_date < $2 ORDER BY t.start_date ASC, t.id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query, domain.StatusReady, domain.DateOf(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.StartDate,
		&ticket.ApplianceType,
		&ticket.ApplianceModel,
		&ticket.ProblemDescription,
		&ticket.Status,
		&ticket.CompletionDate,
		&ticket.ExtendedDeadline,
		&ticket.RepairParts,
		&ticket.Priority,
		&ticket.EstimatedCost,
		&ticket.ActualCost,
		&ticket.Notes,
		&ticket.ClientPhone,
		&ticket.ClientID,
		&ticket.MasterID,
		&ticket.QualityManagerID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClientName,
		&ticket.MasterName,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
