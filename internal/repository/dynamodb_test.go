package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo serves GetItem from a fixed item map and fails or records
// transactions as configured. Condition expressions are not evaluated.
type fakeDynamo struct {
	items        map[string]map[string]types.AttributeValue
	putErr       error
	transactErr  error
	transactions []*dynamodb.TransactWriteItemsInput
	gets         []*dynamodb.GetItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func (f *fakeDynamo) put(t *testing.T, table, key string, item any) {
	t.Helper()
	av, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)
	f.items[table+"/"+key] = av
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.gets = append(f.gets, in)
	for _, v := range in.Key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			return &dynamodb.GetItemOutput{Item: f.items[aws.ToString(in.TableName)+"/"+s.Value]}, nil
		}
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transactions = append(f.transactions, in)
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func canceled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		reasons[i] = types.CancellationReason{Code: aws.String(c)}
	}
	return &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: reasons,
	}
}

var testTables = Tables{Products: "products", Sales: "sales", Reservations: "reservations", Customers: "customers"}

func pendingApprovalSale() *domain.Sale {
	now := time.Now().UTC()
	lines := []domain.SaleLine{
		domain.LineFromReservation(&domain.Reservation{ReservationID: "r1", ProductID: "A", Quantity: 2, UnitPrice: decimal.NewFromInt(1000)}),
		domain.LineFromReservation(&domain.Reservation{ReservationID: "r2", ProductID: "B", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}),
	}
	sale := domain.NewSale("S1", "C1", domain.DeliveryShipping, domain.PaymentTransfer, lines, decimal.NewFromInt(50), now)
	sale.Status = domain.StatusPendingApproval
	sale.ProofRef = "proof"
	return sale
}

func TestDynamoTransitionItems_RejectReleasesEveryLine(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), testTables)
	sale := pendingApprovalSale()
	tr, err := domain.NewTransition(sale.SaleID, sale.Status, domain.EventRejected, time.Now().UTC())
	require.NoError(t, err)

	items, err := store.transitionItems(sale, tr)
	require.NoError(t, err)

	// sale + (reservation, product) per line
	require.Len(t, items, 5)
	assert.Equal(t, "sales", aws.ToString(items[0].Update.TableName))
	assert.Equal(t, "reservations", aws.ToString(items[1].Update.TableName))
	assert.Equal(t, "products", aws.ToString(items[2].Update.TableName))
	for _, it := range items {
		require.NotNil(t, it.Update)
		assert.NotEmpty(t, aws.ToString(it.Update.ConditionExpression))
	}
}

func TestDynamoTransitionItems_DispatchGuardsTrackingCode(t *testing.T) {
	store := NewDynamoStore(newFakeDynamo(), testTables)
	sale := pendingApprovalSale()
	sale.Status = domain.StatusApproved
	tr, err := domain.NewTransition(sale.SaleID, sale.Status, domain.EventDispatched, time.Now().UTC())
	require.NoError(t, err)
	tr.TrackingCode = "TRACK123"

	items, err := store.transitionItems(sale, tr)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Contains(t, aws.ToString(items[0].Update.ConditionExpression), "attribute_not_exists")
}

func TestDynamoApplyTransition_LostRace(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, testTables)
	sale := pendingApprovalSale()
	fake.put(t, "sales", "S1", toSaleItem(sale))
	fake.transactErr = canceled(reasonConditionalCheckFailed, "None", "None")

	tr, err := domain.NewTransition("S1", domain.StatusPendingApproval, domain.EventApproved, time.Now().UTC())
	require.NoError(t, err)

	_, err = store.ApplyTransition(context.Background(), tr)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	require.Len(t, fake.transactions, 1)
	assert.Len(t, fake.transactions[0].TransactItems, 3)
}

func TestDynamoApplyTransition_WrongStatusSkipsWrite(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, testTables)
	sale := pendingApprovalSale()
	sale.Status = domain.StatusApproved
	fake.put(t, "sales", "S1", toSaleItem(sale))

	tr, err := domain.NewTransition("S1", domain.StatusPendingApproval, domain.EventApproved, time.Now().UTC())
	require.NoError(t, err)

	_, err = store.ApplyTransition(context.Background(), tr)
	var ite *domain.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, domain.StatusApproved, ite.From)
	assert.Empty(t, fake.transactions)
}

func TestDynamoReserve_ConditionFailureIsInsufficientStock(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, testTables)
	fake.put(t, "products", "A", toProductItem(&domain.Product{ProductID: "A", Name: "A", Price: decimal.NewFromInt(5), Stock: 1}))
	fake.transactErr = canceled(reasonConditionalCheckFailed, "None")

	_, err := store.Reserve(context.Background(), "S1", "A", 1)

	var ise *domain.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, 1, ise.Requested)
}

func TestDynamoReserve_ConflictIsRetryable(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, testTables)
	fake.put(t, "products", "A", toProductItem(&domain.Product{ProductID: "A", Name: "A", Price: decimal.NewFromInt(5), Stock: 3}))
	fake.transactErr = canceled(reasonTransactionConflict, "None")

	_, err := store.Reserve(context.Background(), "S1", "A", 1)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDynamoRelease_AlreadyReleasedIsNoop(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, testTables)
	fake.put(t, "reservations", "r1", toReservationItem(&domain.Reservation{
		ReservationID: "r1", ProductID: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(5),
		Status: domain.ReservationReleased,
	}))

	require.NoError(t, store.Release(context.Background(), "r1"))
	assert.Empty(t, fake.transactions)
}

func TestSaleItemRoundTrip(t *testing.T) {
	sale := pendingApprovalSale()

	got, err := toSaleItem(sale).toDomain()
	require.NoError(t, err)

	assert.True(t, got.Total.Equal(sale.Total))
	assert.Equal(t, sale.ReservationIDs(), got.ReservationIDs())
	assert.Equal(t, sale.ProofRef, got.ProofRef)
}

func TestDynamoEnsureCustomer_ExistingIsReadConsistently(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, testTables)
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake.put(t, "customers", "C1", customerItem{CustomerID: "C1", CreatedAt: createdAt})
	fake.putErr = &types.ConditionalCheckFailedException{Message: aws.String("exists")}

	customer, created, err := store.EnsureCustomer(context.Background(), "C1", time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, customer.CreatedAt.Equal(createdAt))

	require.Len(t, fake.gets, 1)
	assert.True(t, aws.ToBool(fake.gets[0].ConsistentRead))
}

func TestDynamoEnsureCustomer_MissingAfterConditionFailure(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoStore(fake, testTables)
	fake.putErr = &types.ConditionalCheckFailedException{Message: aws.String("exists")}

	_, _, err := store.EnsureCustomer(context.Background(), "ghost", time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrConflict)
}
