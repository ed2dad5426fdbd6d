//go:build dynamodb_local

// Run against dynamodb-local:
//
//	docker run -p 8000:8000 amazon/dynamodb-local
//	DYNAMODB_ENDPOINT=http://localhost:8000 go test -tags dynamodb_local ./internal/repository/
package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/sale-service/internal/domain"
	pkgconfig "github.com/cloud-wave-best-zizon/sale-service/pkg/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDynamoLocal(t *testing.T) *DynamoStore {
	t.Helper()
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("DYNAMODB_ENDPOINT not set")
	}
	ctx := context.Background()

	client, err := NewDynamoDBClient(ctx, &pkgconfig.Config{
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "local",
		AWSSecretAccessKey: "local",
		DynamoDBEndpoint:   endpoint,
	})
	require.NoError(t, err)

	prefix := "t" + uuid.NewString()[:8] + "-"
	tables := Tables{
		Products:     prefix + "products",
		Sales:        prefix + "sales",
		Reservations: prefix + "reservations",
		Customers:    prefix + "customers",
	}
	for table, key := range map[string]string{
		tables.Products:     "product_id",
		tables.Sales:        "sale_id",
		tables.Reservations: "reservation_id",
		tables.Customers:    "customer_id",
	} {
		createTable(t, client, table, key)
	}
	return NewDynamoStore(client, tables)
}

func createTable(t *testing.T, client *dynamodb.Client, table, key string) {
	t.Helper()
	ctx := context.Background()
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(key), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(key), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	require.NoError(t, err)
	require.NoError(t, dynamodb.NewTableExistsWaiter(client).Wait(ctx,
		&dynamodb.DescribeTableInput{TableName: aws.String(table)}, time.Minute))

	t.Cleanup(func() {
		_, _ = client.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{TableName: aws.String(table)})
	})
}

func seedDynamoProduct(t *testing.T, store *DynamoStore, id string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.CreateProduct(context.Background(), &domain.Product{
		ProductID: id, Name: "product " + id, Price: decimal.NewFromInt(100), Stock: stock,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func dynamoStock(t *testing.T, store *DynamoStore, id string) int {
	t.Helper()
	p, err := store.getProduct(context.Background(), id, true)
	require.NoError(t, err)
	return p.Stock
}

func placeDynamoSale(t *testing.T, store *DynamoStore, saleID, productID string, qty int) *domain.Sale {
	t.Helper()
	ctx := context.Background()
	res, err := store.Reserve(ctx, saleID, productID, qty)
	require.NoError(t, err)
	sale := domain.NewSale(saleID, "C1", domain.DeliveryPickup, domain.PaymentTransfer,
		[]domain.SaleLine{domain.LineFromReservation(res)}, decimal.Zero, time.Now().UTC())
	require.NoError(t, store.CreateSale(ctx, sale))
	return sale
}

func applyEvent(t *testing.T, store *DynamoStore, saleID string, from domain.Status, ev domain.Event, mutate func(*domain.Transition)) (*domain.Sale, error) {
	t.Helper()
	tr, err := domain.NewTransition(saleID, from, ev, time.Now().UTC())
	require.NoError(t, err)
	if mutate != nil {
		mutate(&tr)
	}
	return store.ApplyTransition(context.Background(), tr)
}

func TestDynamoLocal_ReserveGuardsStock(t *testing.T) {
	store := setupDynamoLocal(t)
	seedDynamoProduct(t, store, "A", 2)

	_, err := store.Reserve(context.Background(), "S1", "A", 3)
	var short *domain.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 2, dynamoStock(t, store, "A"))

	_, err = store.Reserve(context.Background(), "S1", "A", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, dynamoStock(t, store, "A"))
}

func TestDynamoLocal_ConcurrentLastUnit(t *testing.T) {
	store := setupDynamoLocal(t)
	seedDynamoProduct(t, store, "A", 1)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Reserve(context.Background(), uuid.NewString(), "A", 1)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrConflict), err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, dynamoStock(t, store, "A"))
}

func TestDynamoLocal_StaleTransitionIsRejected(t *testing.T) {
	store := setupDynamoLocal(t)
	seedDynamoProduct(t, store, "A", 5)
	sale := placeDynamoSale(t, store, "S1", "A", 2)

	_, err := applyEvent(t, store, sale.SaleID, domain.StatusPendingPayment, domain.EventProofUploaded,
		func(tr *domain.Transition) { tr.ProofRef = "proof" })
	require.NoError(t, err)

	// the store re-checks the status inside the transaction
	_, err = applyEvent(t, store, sale.SaleID, domain.StatusPendingPayment, domain.EventProofUploaded,
		func(tr *domain.Transition) { tr.ProofRef = "other" })
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	got, err := store.GetSale(context.Background(), sale.SaleID)
	require.NoError(t, err)
	assert.Equal(t, "proof", got.ProofRef)
	assert.Len(t, got.History, 1)
}

func TestDynamoLocal_RejectReleasesOnce(t *testing.T) {
	store := setupDynamoLocal(t)
	seedDynamoProduct(t, store, "A", 5)
	sale := placeDynamoSale(t, store, "S1", "A", 2)
	assert.Equal(t, 3, dynamoStock(t, store, "A"))

	_, err := applyEvent(t, store, sale.SaleID, domain.StatusPendingPayment, domain.EventProofUploaded,
		func(tr *domain.Transition) { tr.ProofRef = "proof" })
	require.NoError(t, err)
	rejected, err := applyEvent(t, store, sale.SaleID, domain.StatusPendingApproval, domain.EventRejected, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, 5, dynamoStock(t, store, "A"))

	_, err = applyEvent(t, store, sale.SaleID, domain.StatusPendingApproval, domain.EventRejected, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)
	require.NoError(t, store.Release(context.Background(), sale.Lines[0].ReservationID))
	assert.Equal(t, 5, dynamoStock(t, store, "A"))

	assert.ErrorIs(t, store.Commit(context.Background(), sale.Lines[0].ReservationID), domain.ErrInvalidStateTransition)
}

func TestDynamoLocal_ConcurrentDispatchKeepsOneCode(t *testing.T) {
	store := setupDynamoLocal(t)
	seedDynamoProduct(t, store, "A", 5)
	sale := placeDynamoSale(t, store, "S1", "A", 1)

	_, err := applyEvent(t, store, sale.SaleID, domain.StatusPendingPayment, domain.EventProofUploaded,
		func(tr *domain.Transition) { tr.ProofRef = "proof" })
	require.NoError(t, err)
	_, err = applyEvent(t, store, sale.SaleID, domain.StatusPendingApproval, domain.EventApproved, nil)
	require.NoError(t, err)

	codes := []string{"T0", "T1", "T2", "T3", "T4", "T5"}
	errs := make([]error, len(codes))
	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			tr, err := domain.NewTransition(sale.SaleID, domain.StatusApproved, domain.EventDispatched, time.Now().UTC())
			if err != nil {
				errs[i] = err
				return
			}
			tr.TrackingCode = code
			_, errs[i] = store.ApplyTransition(context.Background(), tr)
		}(i, code)
	}
	wg.Wait()

	winner := ""
	for i, err := range errs {
		if err == nil {
			require.Empty(t, winner)
			winner = codes[i]
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInvalidStateTransition) || errors.Is(err, domain.ErrConflict), err)
	}
	require.NotEmpty(t, winner)

	got, err := store.GetSale(context.Background(), sale.SaleID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispatched, got.Status)
	assert.Equal(t, winner, got.TrackingCode)
	assert.Len(t, got.History, 3)
}
