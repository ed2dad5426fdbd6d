package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/google/uuid"
)

func (s *SQLiteStore) Reserve(ctx context.Context, saleID, productID string, quantity int) (*domain.Reservation, error) {
	var res *domain.Reservation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		product, err := getProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		// 재고가 충분한 경우에만 차감
		result, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - ?, updated_at = ? WHERE product_id = ? AND stock >= ?",
			quantity, now, productID, quantity)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.InsufficientStockError{ProductID: productID, Requested: quantity, Available: product.Stock}
		}

		res = &domain.Reservation{
			ReservationID: uuid.NewString(),
			SaleID:        saleID,
			ProductID:     productID,
			ProductName:   product.Name,
			Quantity:      quantity,
			UnitPrice:     product.Price,
			Status:        domain.ReservationReserved,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (reservation_id, sale_id, product_id, product_name, quantity,
			                          unit_price, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ReservationID, res.SaleID, res.ProductID, res.ProductName, res.Quantity,
			res.UnitPrice, string(res.Status), res.CreatedAt, res.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	return getReservation(ctx, s.db, reservationID)
}

func getReservation(ctx context.Context, q querier, reservationID string) (*domain.Reservation, error) {
	var (
		r      domain.Reservation
		status string
	)
	err := q.QueryRowContext(ctx, `
		SELECT reservation_id, sale_id, product_id, product_name, quantity, unit_price,
		       status, created_at, updated_at
		FROM reservations WHERE reservation_id = ?`, reservationID).Scan(
		&r.ReservationID, &r.SaleID, &r.ProductID, &r.ProductName, &r.Quantity, &r.UnitPrice,
		&status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	r.Status = domain.ReservationStatus(status)
	return &r, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, reservationID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := getReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		switch res.Status {
		case domain.ReservationCommitted:
			return nil
		case domain.ReservationReleased:
			return errReservationReleased
		}
		return commitReservation(ctx, tx, reservationID, time.Now().UTC())
	})
}

func (s *SQLiteStore) Release(ctx context.Context, reservationID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := getReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		switch res.Status {
		case domain.ReservationReleased:
			return nil
		case domain.ReservationCommitted:
			return errReservationCommitted
		}
		return releaseReservation(ctx, tx, reservationID, time.Now().UTC())
	})
}

func commitReservation(ctx context.Context, q querier, reservationID string, now time.Time) error {
	return markReservation(ctx, q, reservationID, domain.ReservationCommitted, now)
}

// releaseReservation marks a RESERVED reservation released and credits its
// quantity back to the product.
func releaseReservation(ctx context.Context, q querier, reservationID string, now time.Time) error {
	if err := markReservation(ctx, q, reservationID, domain.ReservationReleased, now); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + (SELECT quantity FROM reservations WHERE reservation_id = ?), updated_at = ?
		WHERE product_id = (SELECT product_id FROM reservations WHERE reservation_id = ?)`,
		reservationID, now, reservationID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}

func markReservation(ctx context.Context, q querier, reservationID string, status domain.ReservationStatus, now time.Time) error {
	result, err := q.ExecContext(ctx,
		"UPDATE reservations SET status = ?, updated_at = ? WHERE reservation_id = ? AND status = ?",
		string(status), now, reservationID, string(domain.ReservationReserved))
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reservation %s is not reserved: %w", reservationID, domain.ErrInvalidStateTransition)
	}
	return nil
}
