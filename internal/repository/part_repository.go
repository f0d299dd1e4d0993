package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

// PartRepository persists the parts catalog and per-ticket consumption.
type PartRepository interface {
	Create(ctx context.Context, part *domain.Part) error
	GetByID(ctx context.Context, id int64) (*domain.Part, error)
	ListLowStock(ctx context.Context) ([]domain.Part, error)
	AddUsage(ctx context.Context, usage *domain.PartUsage) error
	ListUsage(ctx context.Context, ticketID int64) ([]domain.PartUsage, error)
}

type partRepository struct {
	pool *pgxpool.Pool
}

// NewPartRepository constructs repository.
func NewPartRepository(pool *pgxpool.Pool) PartRepository {
	return &partRepository{pool: pool}
}

const partColumns = `id, name, vendor_code, price, quantity, min_quantity, supplier, last_ordered`

func (r *partRepository) Create(ctx context.Context, part *domain.Part) error {
	const query = `
        INSERT INTO parts (name, vendor_code, price, quantity, min_quantity, supplier, last_ordered)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		part.Name,
		part.VendorCode,
		part.Price,
		part.Quantity,
		part.MinQuantity,
		part.Supplier,
		part.LastOrdered,
	).Scan(&part.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *partRepository) GetByID(ctx context.Context, id int64) (*domain.Part, error) {
	const query = `SELECT ` + partColumns + ` FROM parts WHERE id=$1`
	part, err := scanPart(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return part, nil
}

func (r *partRepository) ListLowStock(ctx context.Context) ([]domain.Part, error) {
	const query = `SELECT ` + partColumns + ` FROM parts WHERE quantity <= min_quantity ORDER BY quantity ASC, id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Part
	for rows.Next() {
		part, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *part)
	}
	return result, rows.Err()
}

// AddUsage inserts the usage row or adds the quantity to an existing one.
// usage.Quantity is replaced with the accumulated total.
func (r *partRepository) AddUsage(ctx context.Context, usage *domain.PartUsage) error {
	const query = `
        INSERT INTO ticket_parts (ticket_id, part_id, quantity, used_date)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (ticket_id, part_id)
        DO UPDATE SET quantity = ticket_parts.quantity + EXCLUDED.quantity
        RETURNING quantity, used_date`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		usage.TicketID,
		usage.PartID,
		usage.Quantity,
		domain.DateOf(usage.UsedDate),
	).Scan(&usage.Quantity, &usage.UsedDate)
}

func (r *partRepository) ListUsage(ctx context.Context, ticketID int64) ([]domain.PartUsage, error) {
	const query = `
        SELECT tp.ticket_id, tp.part_id, tp.quantity, tp.used_date, p.name, p.vendor_code, p.price
        FROM ticket_parts tp
        JOIN parts p ON p.id = tp.part_id
        WHERE tp.ticket_id=$1
        ORDER BY p.name, p.id`
	rows, err := conn(ctx, r.pool).Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PartUsage
	for rows.Next() {
		var usage domain.PartUsage
		if err := rows.Scan(
			&usage.TicketID,
			&usage.PartID,
			&usage.Quantity,
			&usage.UsedDate,
			&usage.PartName,
			&usage.VendorCode,
			&usage.Price,
		); err != nil {
			return nil, err
		}
		result = append(result, usage)
	}
	return result, rows.Err()
}

func scanPart(row pgx.Row) (*domain.Part, error) {
	var part domain.Part
	if err := row.Scan(
		&part.ID,
		&part.Name,
		&part.VendorCode,
		&part.Price,
		&part.Quantity,
		&part.MinQuantity,
		&part.Supplier,
		&part.LastOrdered,
	); err != nil {
		return nil, err
	}
	return &part, nil
}
