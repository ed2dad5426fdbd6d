package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *DynamoStore) CreateProduct(ctx context.Context, product *domain.Product) error {
	av, err := attributevalue.MarshalMap(toProductItem(product))
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("product_id"))).
		Build()
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tables.Products),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

func (s *DynamoStore) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return s.getProduct(ctx, productID, false)
}

func (s *DynamoStore) getProduct(ctx context.Context, productID string, consistent bool) (*domain.Product, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Products),
		Key:            keyOf("product_id", productID),
		ConsistentRead: aws.Bool(consistent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return nil, domain.ErrProductNotFound
	}

	var item productItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}

	return item.toDomain()
}

func (s *DynamoStore) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error {
	update := expression.Set(expression.Name("price"), expression.Value(price.String())).
		Set(expression.Name("updated_at"), expression.Value(time.Now().UTC()))
	item, err := updateItem(s.tables.Products, keyOf("product_id", productID), update,
		expression.AttributeExists(expression.Name("product_id")))
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 item.Update.TableName,
		Key:                       item.Update.Key,
		UpdateExpression:          item.Update.UpdateExpression,
		ConditionExpression:       item.Update.ConditionExpression,
		ExpressionAttributeNames:  item.Update.ExpressionAttributeNames,
		ExpressionAttributeValues: item.Update.ExpressionAttributeValues,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to update price: %w", err)
	}
	return nil
}

func (s *DynamoStore) Reserve(ctx context.Context, saleID, productID string, quantity int) (*domain.Reservation, error) {
	// 단가 스냅샷과 빠른 실패를 위해 먼저 읽는다
	product, err := s.getProduct(ctx, productID, true)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, &domain.InsufficientStockError{ProductID: productID, Requested: quantity, Available: product.Stock}
	}

	now := time.Now().UTC()
	res := &domain.Reservation{
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

	// 재고가 충분한 경우에만 차감
	decrement, err := updateItem(s.tables.Products, keyOf("product_id", productID),
		expression.Set(
			expression.Name("stock"),
			expression.Minus(expression.Name("stock"), expression.Value(quantity)),
		).Set(expression.Name("updated_at"), expression.Value(now)),
		expression.AttributeExists(expression.Name("product_id")).
			And(expression.GreaterThanEqual(expression.Name("stock"), expression.Value(quantity))),
	)
	if err != nil {
		return nil, err
	}

	put, err := putItem(s.tables.Reservations, toReservationItem(res),
		expression.AttributeNotExists(expression.Name("reservation_id")))
	if err != nil {
		return nil, err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      []types.TransactWriteItem{decrement, put},
		ClientRequestToken: aws.String(res.ReservationID),
	})
	if err != nil {
		codes := cancelReasons(err)
		switch {
		case hasReason(codes, reasonTransactionConflict):
			return nil, fmt.Errorf("reserve %s: %w", productID, domain.ErrConflict)
		case firstFailedCondition(codes) == 0:
			available := 0
			if current, gerr := s.getProduct(ctx, productID, true); gerr == nil {
				available = current.Stock
			} else if errors.Is(gerr, domain.ErrNotFound) {
				return nil, gerr
			}
			return nil, &domain.InsufficientStockError{ProductID: productID, Requested: quantity, Available: available}
		}
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	return res, nil
}

func (s *DynamoStore) GetReservation(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Reservations),
		Key:            keyOf("reservation_id", reservationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if result.Item == nil {
		return nil, domain.ErrReservationNotFound
	}

	var item reservationItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reservation: %w", err)
	}
	return item.toDomain()
}

func (s *DynamoStore) Commit(ctx context.Context, reservationID string) error {
	item, err := s.finalizeReservation(reservationID, domain.ReservationCommitted, time.Now().UTC())
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 item.Update.TableName,
		Key:                       item.Update.Key,
		UpdateExpression:          item.Update.UpdateExpression,
		ConditionExpression:       item.Update.ConditionExpression,
		ExpressionAttributeNames:  item.Update.ExpressionAttributeNames,
		ExpressionAttributeValues: item.Update.ExpressionAttributeValues,
	})
	if err == nil {
		return nil
	}
	if !isConditionalCheckFailed(err) {
		return fmt.Errorf("failed to commit reservation %s: %w", reservationID, err)
	}

	current, gerr := s.GetReservation(ctx, reservationID)
	if gerr != nil {
		return gerr
	}
	switch current.Status {
	case domain.ReservationCommitted:
		return nil
	case domain.ReservationReleased:
		return errReservationReleased
	}
	return fmt.Errorf("commit reservation %s: %w", reservationID, domain.ErrConflict)
}

func (s *DynamoStore) Release(ctx context.Context, reservationID string) error {
	res, err := s.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	switch res.Status {
	case domain.ReservationReleased:
		return nil
	case domain.ReservationCommitted:
		return errReservationCommitted
	}

	items, err := s.releaseItems(res, time.Now().UTC())
	if err != nil {
		return err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err == nil {
		return nil
	}

	codes := cancelReasons(err)
	if hasReason(codes, reasonTransactionConflict) {
		return fmt.Errorf("release %s: %w", reservationID, domain.ErrConflict)
	}
	if firstFailedCondition(codes) == 0 {
		// 다른 요청이 먼저 처리함
		current, gerr := s.GetReservation(ctx, reservationID)
		if gerr != nil {
			return gerr
		}
		if current.Status == domain.ReservationReleased {
			return nil
		}
		return errReservationCommitted
	}
	return fmt.Errorf("failed to release reservation %s: %w", reservationID, err)
}

// finalizeReservation moves a RESERVED reservation to status.
func (s *DynamoStore) finalizeReservation(reservationID string, status domain.ReservationStatus, now time.Time) (types.TransactWriteItem, error) {
	return updateItem(s.tables.Reservations, keyOf("reservation_id", reservationID),
		expression.Set(expression.Name("status"), expression.Value(string(status))).
			Set(expression.Name("updated_at"), expression.Value(now)),
		expression.Equal(expression.Name("status"), expression.Value(string(domain.ReservationReserved))),
	)
}

// releaseItems marks the reservation released and credits the stock back.
func (s *DynamoStore) releaseItems(res *domain.Reservation, now time.Time) ([]types.TransactWriteItem, error) {
	mark, err := s.finalizeReservation(res.ReservationID, domain.ReservationReleased, now)
	if err != nil {
		return nil, err
	}
	credit, err := updateItem(s.tables.Products, keyOf("product_id", res.ProductID),
		expression.Set(
			expression.Name("stock"),
			expression.Plus(expression.Name("stock"), expression.Value(res.Quantity)),
		).Set(expression.Name("updated_at"), expression.Value(now)),
		expression.AttributeExists(expression.Name("product_id")),
	)
	if err != nil {
		return nil, err
	}
	return []types.TransactWriteItem{mark, credit}, nil
}

func updateItem(table string, key map[string]types.AttributeValue, update expression.UpdateBuilder, cond expression.ConditionBuilder) (types.TransactWriteItem, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(cond).
		Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build update expression: %w", err)
	}
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(table),
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}, nil
}

func putItem(table string, item any, cond expression.ConditionBuilder) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal item: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build condition: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 aws.String(table),
			Item:                      av,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}, nil
}

func conditionCheck(table string, key map[string]types.AttributeValue, cond expression.ConditionBuilder) (types.TransactWriteItem, error) {
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build condition: %w", err)
	}
	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(table),
			Key:                       key,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}, nil
}
