package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
)

func (s *SQLiteStore) CreateSale(ctx context.Context, sale *domain.Sale) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, line := range sale.Lines {
			res, err := getReservation(ctx, tx, line.ReservationID)
			if err != nil {
				return err
			}
			if res.Status != domain.ReservationReserved || res.SaleID != sale.SaleID {
				return fmt.Errorf("sale %s line %s is not backed by a live reservation: %w",
					sale.SaleID, line.ProductID, domain.ErrValidation)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO sales (sale_id, customer_id, status, shipping_cost, total, delivery_mode,
			                   payment_method, proof_ref, tracking_code, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sale.SaleID, sale.CustomerID, string(sale.Status), sale.ShippingCost, sale.Total,
			string(sale.DeliveryMode), string(sale.PaymentMethod), sale.ProofRef, sale.TrackingCode,
			sale.CreatedAt, sale.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}

		for i, line := range sale.Lines {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sale_lines (sale_id, line_no, product_id, product_name, quantity,
				                        unit_price, subtotal, reservation_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				sale.SaleID, i, line.ProductID, line.ProductName, line.Quantity,
				line.UnitPrice, line.Subtotal, line.ReservationID)
			if err != nil {
				return fmt.Errorf("failed to insert sale line %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	return getSale(ctx, s.db, saleID)
}

func getSale(ctx context.Context, q querier, saleID string) (*domain.Sale, error) {
	var (
		sale                 domain.Sale
		status, mode, method string
	)
	err := q.QueryRowContext(ctx, `
		SELECT sale_id, customer_id, status, shipping_cost, total, delivery_mode, payment_method,
		       proof_ref, tracking_code, created_at, updated_at
		FROM sales WHERE sale_id = ?`, saleID).Scan(
		&sale.SaleID, &sale.CustomerID, &status, &sale.ShippingCost, &sale.Total, &mode, &method,
		&sale.ProofRef, &sale.TrackingCode, &sale.CreatedAt, &sale.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	sale.Status = domain.Status(status)
	sale.DeliveryMode = domain.DeliveryMode(mode)
	sale.PaymentMethod = domain.PaymentMethod(method)

	if sale.Lines, err = getSaleLines(ctx, q, saleID); err != nil {
		return nil, err
	}
	if sale.History, err = getSaleHistory(ctx, q, saleID); err != nil {
		return nil, err
	}
	return &sale, nil
}

func getSaleLines(ctx context.Context, q querier, saleID string) ([]domain.SaleLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price, subtotal, reservation_id
		FROM sale_lines WHERE sale_id = ? ORDER BY line_no`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.SaleLine{}
	for rows.Next() {
		var l domain.SaleLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.ReservationID); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func getSaleHistory(ctx context.Context, q querier, saleID string) ([]domain.StatusChange, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT from_status, to_status, event, at
		FROM sale_history WHERE sale_id = ? ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale history: %w", err)
	}
	defer rows.Close()

	history := []domain.StatusChange{}
	for rows.Next() {
		var (
			c              domain.StatusChange
			from, to, evnt string
		)
		if err := rows.Scan(&from, &to, &evnt, &c.At); err != nil {
			return nil, err
		}
		c.From, c.To, c.Event = domain.Status(from), domain.Status(to), domain.Event(evnt)
		history = append(history, c)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) ListSales(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}

	query := "SELECT sale_id FROM sales"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, sale_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sales := make([]*domain.Sale, 0, len(ids))
	for _, id := range ids {
		sale, err := getSale(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (s *SQLiteStore) ApplyTransition(ctx context.Context, tr domain.Transition) (*domain.Sale, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// status 조건이 곧 동시 요청 가드
		result, err := tx.ExecContext(ctx, `
			UPDATE sales
			SET status = ?,
			    proof_ref = CASE WHEN ? <> '' THEN ? ELSE proof_ref END,
			    tracking_code = CASE WHEN ? <> '' THEN ? ELSE tracking_code END,
			    updated_at = ?
			WHERE sale_id = ? AND status = ?
			  AND (? = '' OR proof_ref = '')
			  AND (? = '' OR tracking_code = '')`,
			string(tr.To),
			tr.ProofRef, tr.ProofRef,
			tr.TrackingCode, tr.TrackingCode,
			tr.At,
			tr.SaleID, string(tr.From),
			tr.ProofRef,
			tr.TrackingCode)
		if err != nil {
			return fmt.Errorf("failed to update sale: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var current string
			err := tx.QueryRowContext(ctx, "SELECT status FROM sales WHERE sale_id = ?", tr.SaleID).Scan(&current)
			if err == sql.ErrNoRows {
				return domain.ErrSaleNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to read sale status: %w", err)
			}
			return &domain.InvalidTransitionError{SaleID: tr.SaleID, From: domain.Status(current), Event: tr.Event}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO sale_history (sale_id, from_status, to_status, event, at) VALUES (?, ?, ?, ?, ?)",
			tr.SaleID, string(tr.From), string(tr.To), string(tr.Event), tr.At)
		if err != nil {
			return fmt.Errorf("failed to record sale history: %w", err)
		}

		if tr.Stock == domain.StockNone {
			return nil
		}
		lines, err := getSaleLines(ctx, tx, tr.SaleID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			switch tr.Stock {
			case domain.StockCommit:
				err = commitReservation(ctx, tx, line.ReservationID, tr.At)
			case domain.StockRelease:
				err = releaseReservation(ctx, tx, line.ReservationID, tr.At)
			}
			if err != nil {
				return fmt.Errorf("sale %s: %w", tr.SaleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSale(ctx, tr.SaleID)
}
