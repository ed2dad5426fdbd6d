package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
)

func (s *DynamoStore) CreateSale(ctx context.Context, sale *domain.Sale) error {
	put, err := putItem(s.tables.Sales, toSaleItem(sale),
		expression.AttributeNotExists(expression.Name("sale_id")))
	if err != nil {
		return err
	}

	items := []types.TransactWriteItem{put}
	// 라인이 가리키는 예약이 실제로 존재하고 아직 RESERVED 인지 확인
	for _, line := range sale.Lines {
		check, err := conditionCheck(s.tables.Reservations, keyOf("reservation_id", line.ReservationID),
			expression.Equal(expression.Name("status"), expression.Value(string(domain.ReservationReserved))).
				And(expression.Equal(expression.Name("sale_id"), expression.Value(sale.SaleID))),
		)
		if err != nil {
			return err
		}
		items = append(items, check)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(sale.SaleID),
	})
	if err != nil {
		codes := cancelReasons(err)
		switch idx := firstFailedCondition(codes); {
		case hasReason(codes, reasonTransactionConflict):
			return fmt.Errorf("create sale %s: %w", sale.SaleID, domain.ErrConflict)
		case idx == 0:
			return ErrAlreadyExists
		case idx > 0:
			return fmt.Errorf("sale %s line %s is not backed by a live reservation: %w",
				sale.SaleID, sale.Lines[idx-1].ProductID, domain.ErrValidation)
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Sales),
		Key:            keyOf("sale_id", saleID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if result.Item == nil {
		return nil, domain.ErrSaleNotFound
	}

	var item saleItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sale: %w", err)
	}
	return item.toDomain()
}

// TODO: query a status / customer GSI instead of scanning once the tables carry one.
func (s *DynamoStore) ListSales(ctx context.Context, filter domain.SaleFilter) ([]*domain.Sale, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tables.Sales),
	}

	var conds []expression.ConditionBuilder
	if filter.Status != "" {
		conds = append(conds, expression.Equal(expression.Name("status"), expression.Value(string(filter.Status))))
	}
	if filter.CustomerID != "" {
		conds = append(conds, expression.Equal(expression.Name("customer_id"), expression.Value(filter.CustomerID)))
	}
	if len(conds) > 0 {
		cond := conds[0]
		if len(conds) > 1 {
			cond = cond.And(conds[1])
		}
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, err
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var sales []*domain.Sale
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sales: %w", err)
		}
		var items []saleItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sales: %w", err)
		}
		for _, it := range items {
			sale, err := it.toDomain()
			if err != nil {
				return nil, err
			}
			sales = append(sales, sale)
		}
	}

	sort.Slice(sales, func(i, j int) bool {
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *DynamoStore) ApplyTransition(ctx context.Context, tr domain.Transition) (*domain.Sale, error) {
	// 라인은 생성 후 불변이므로 먼저 읽어도 안전하다
	sale, err := s.GetSale(ctx, tr.SaleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != tr.From {
		return nil, &domain.InvalidTransitionError{SaleID: tr.SaleID, From: sale.Status, Event: tr.Event}
	}

	items, err := s.transitionItems(sale, tr)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		codes := cancelReasons(err)
		if hasReason(codes, reasonTransactionConflict) {
			return nil, fmt.Errorf("transition sale %s: %w", tr.SaleID, domain.ErrConflict)
		}
		if idx := firstFailedCondition(codes); idx >= 0 {
			current, gerr := s.GetSale(ctx, tr.SaleID)
			if gerr != nil {
				return nil, gerr
			}
			if idx == 0 || current.Status != tr.From {
				return nil, &domain.InvalidTransitionError{SaleID: tr.SaleID, From: current.Status, Event: tr.Event}
			}
			return nil, fmt.Errorf("sale %s reservation already finalized: %w", tr.SaleID, domain.ErrInvalidStateTransition)
		}
		return nil, fmt.Errorf("failed to transition sale %s: %w", tr.SaleID, err)
	}

	return s.GetSale(ctx, tr.SaleID)
}

// transitionItems builds the sale update followed by the reservation (and,
// on release, product) updates for every line.
func (s *DynamoStore) transitionItems(sale *domain.Sale, tr domain.Transition) ([]types.TransactWriteItem, error) {
	update := expression.Set(expression.Name("status"), expression.Value(string(tr.To))).
		Set(expression.Name("updated_at"), expression.Value(tr.At)).
		Set(expression.Name("history"), expression.ListAppend(
			expression.IfNotExists(expression.Name("history"), expression.Value([]historyItem{})),
			expression.Value([]historyItem{toHistoryItem(tr.Change())}),
		))
	cond := expression.Equal(expression.Name("status"), expression.Value(string(tr.From)))

	if tr.ProofRef != "" {
		update = update.Set(expression.Name("proof_ref"), expression.Value(tr.ProofRef))
		cond = cond.And(expression.AttributeNotExists(expression.Name("proof_ref")))
	}
	if tr.TrackingCode != "" {
		update = update.Set(expression.Name("tracking_code"), expression.Value(tr.TrackingCode))
		cond = cond.And(expression.AttributeNotExists(expression.Name("tracking_code")))
	}

	saleUpdate, err := updateItem(s.tables.Sales, keyOf("sale_id", tr.SaleID), update, cond)
	if err != nil {
		return nil, err
	}
	items := []types.TransactWriteItem{saleUpdate}

	now := tr.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	for _, line := range sale.Lines {
		switch tr.Stock {
		case domain.StockCommit:
			item, err := s.finalizeReservation(line.ReservationID, domain.ReservationCommitted, now)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		case domain.StockRelease:
			release, err := s.releaseItems(&domain.Reservation{
				ReservationID: line.ReservationID,
				ProductID:     line.ProductID,
				Quantity:      line.Quantity,
			}, now)
			if err != nil {
				return nil, err
			}
			items = append(items, release...)
		}
	}
	return items, nil
}

func (s *DynamoStore) EnsureCustomer(ctx context.Context, customerID string, now time.Time) (*domain.Customer, bool, error) {
	customer := &domain.Customer{CustomerID: customerID, CreatedAt: now}
	av, err := attributevalue.MarshalMap(customerItem{CustomerID: customerID, CreatedAt: now})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal customer: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("customer_id"))).
		Build()
	if err != nil {
		return nil, false, err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tables.Customers),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err == nil {
		return customer, true, nil
	}
	if !isConditionalCheckFailed(err) {
		return nil, false, fmt.Errorf("failed to put customer: %w", err)
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Customers),
		Key:            keyOf("customer_id", customerID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get customer: %w", err)
	}
	if result.Item == nil {
		return nil, false, fmt.Errorf("customer %s vanished after conditional put: %w", customerID, domain.ErrConflict)
	}
	var item customerItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal customer: %w", err)
	}
	return &domain.Customer{CustomerID: item.CustomerID, CreatedAt: item.CreatedAt}, false, nil
}
