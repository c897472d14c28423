package store

import (
	"context"
	"errors"
	"fmt"

	lerrors "github.com/abgdnv/pos/internal/ledger/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// saleLockKey serialises every transaction touching the open sale.
const saleLockKey = 7_420_001

// PgStore implements LedgerStore using PostgreSQL as the data store.
// Numeric columns are read as text and parsed into decimal.Decimal.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of LedgerStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

func (p *PgStore) UpsertProduct(ctx context.Context, product Product) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO products (id, name, price, quantity)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, quantity = EXCLUDED.quantity, updated_at = now()`,
		product.ID, product.Name, product.Price.String(), product.Quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (p *PgStore) AdjustStock(ctx context.Context, id string, delta int) (*Product, error) {
	var product *Product
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		var quantity int
		err := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&quantity)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return lerrors.ErrProductNotFound
			}
			return fmt.Errorf("failed to lock product: %w", err)
		}
		if quantity+delta < 0 {
			return lerrors.ErrInsufficientStock
		}
		row := tx.QueryRow(ctx, `
			UPDATE products SET quantity = quantity + $2, updated_at = now()
			WHERE id = $1
			RETURNING id, name, price::text, quantity`, id, delta)
		product, err = scanProduct(row)
		if err != nil {
			return fmt.Errorf("failed to update product stock: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return product, nil
}

func (p *PgStore) FindAllProducts(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx, `SELECT id, name, price::text, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return products, nil
}

func (p *PgStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lerrors.ErrProductNotFound
	}
	return nil
}

func (p *PgStore) AddToSale(ctx context.Context, id string, quantity int) (*SaleLine, error) {
	var line *SaleLine
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockSale(ctx, tx); err != nil {
			return err
		}
		var name, price string
		err := tx.QueryRow(ctx, `
			UPDATE products SET quantity = quantity - $2, updated_at = now()
			WHERE id = $1 AND quantity >= $2
			RETURNING name, price::text`, id, quantity).Scan(&name, &price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return lerrors.ErrProductUnavailable
			}
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO current_sale_lines (product_id, name, price, quantity)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (product_id) DO UPDATE
			SET quantity = current_sale_lines.quantity + EXCLUDED.quantity
			RETURNING product_id, name, price::text, quantity`, id, name, price, quantity)
		line, err = scanSaleLine(row)
		if err != nil {
			return fmt.Errorf("failed to add sale line: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return line, nil
}

func (p *PgStore) CurrentSale(ctx context.Context) ([]SaleLine, error) {
	return currentLines(ctx, p.db)
}

func (p *PgStore) ClearSale(ctx context.Context) error {
	return p.withTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockSale(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM current_sale_lines`); err != nil {
			return fmt.Errorf("failed to clear sale: %w", err)
		}
		return nil
	})
}

func (p *PgStore) CloseSale(ctx context.Context, build SaleBuilder) (*Sale, error) {
	var sale *Sale
	txErr := p.withTransaction(ctx, func(tx pgx.Tx) error {
		if err := lockSale(ctx, tx); err != nil {
			return err
		}
		lines, err := currentLines(ctx, tx)
		if err != nil {
			return err
		}
		sale, err = build(lines)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO sales (id, total, amount_paid, change, created_at)
			VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5)`,
			sale.ID, sale.Total.String(), sale.AmountPaid.String(), sale.Change.String(), sale.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}
		batch := &pgx.Batch{}
		for i, l := range sale.Lines {
			batch.Queue(`
				INSERT INTO sale_lines (sale_id, line_no, product_id, name, price, quantity)
				VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
				sale.ID, i+1, l.ProductID, l.Name, l.Price.String(), l.Quantity)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert sale lines: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM current_sale_lines`); err != nil {
			return fmt.Errorf("failed to clear sale: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return sale, nil
}

func (p *PgStore) FindSales(ctx context.Context, limit, offset int) ([]Sale, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := p.db.Query(ctx, `
		SELECT id, total::text, amount_paid::text, change::text, created_at
		FROM sales ORDER BY seq LIMIT $1 OFFSET $2`, limitArg, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find sales: %w", err)
	}
	sales := make([]Sale, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var s Sale
		var total, paid, change string
		if err := rows.Scan(&s.ID, &total, &paid, &change, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		if s.Total, err = decimal.NewFromString(total); err == nil {
			if s.AmountPaid, err = decimal.NewFromString(paid); err == nil {
				s.Change, err = decimal.NewFromString(change)
			}
		}
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse sale amounts: %w", err)
		}
		index[s.ID] = len(sales)
		sales = append(sales, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sales: %w", err)
	}
	if len(sales) == 0 {
		return sales, nil
	}

	ids := make([]uuid.UUID, 0, len(sales))
	for _, s := range sales {
		ids = append(ids, s.ID)
	}
	lineRows, err := p.db.Query(ctx, `
		SELECT sale_id, product_id, name, price::text, quantity
		FROM sale_lines WHERE sale_id = ANY($1) ORDER BY sale_id, line_no`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find sale lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var saleID uuid.UUID
		var l SaleLine
		var price string
		if err := lineRows.Scan(&saleID, &l.ProductID, &l.Name, &price, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse sale line price: %w", err)
		}
		i := index[saleID]
		sales[i].Lines = append(sales[i].Lines, l)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sale lines: %w", err)
	}
	return sales, nil
}

func (p *PgStore) DailyTotals(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := p.db.Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(total)::text
		FROM sales GROUP BY day`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var day, sum string
		if err := rows.Scan(&day, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		total, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("failed to parse daily total: %w", err)
		}
		totals[day] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily totals: %w", err)
	}
	return totals, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func currentLines(ctx context.Context, q querier) ([]SaleLine, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, name, price::text, quantity
		FROM current_sale_lines ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to find current sale: %w", err)
	}
	defer rows.Close()

	lines := make([]SaleLine, 0)
	for rows.Next() {
		line, err := scanSaleLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		lines = append(lines, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read current sale: %w", err)
	}
	return lines, nil
}

func lockSale(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, saleLockKey); err != nil {
		return fmt.Errorf("failed to lock current sale: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var product Product
	var price string
	if err := row.Scan(&product.ID, &product.Name, &price, &product.Quantity); err != nil {
		return nil, err
	}
	var err error
	if product.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &product, nil
}

func scanSaleLine(row pgx.Row) (*SaleLine, error) {
	var line SaleLine
	var price string
	if err := row.Scan(&line.ProductID, &line.Name, &price, &line.Quantity); err != nil {
		return nil, err
	}
	var err error
	if line.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &line, nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", lerrors.ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("%w: %w", lerrors.ErrTransactionRollback, rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", lerrors.ErrTransactionCommit, err)
	}

	return nil
}
