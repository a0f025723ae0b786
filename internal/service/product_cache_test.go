package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/drypzz/api-StockSystem/internal/domain"
)

// stubProductService counts pass-through calls so cache hits are observable.
type stubProductService struct {
	products  map[int64]*domain.Product
	findCalls int
}

func (s *stubProductService) Create(_ context.Context, product *domain.Product) (int64, error) {
	s.products[product.ID] = product
	return product.ID, nil
}

func (s *stubProductService) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	s.findCalls++

	product, ok := s.products[id]
	if !ok {
		return nil, domain.NotFound("product not found")
	}

	return product, nil
}

func (s *stubProductService) List(context.Context, int64, int64, string) ([]domain.Product, int64, error) {
	return nil, 0, nil
}

func (s *stubProductService) Update(_ context.Context, id int64, input *domain.UpdateProductInput) error {
	if input.Price != nil {
		s.products[id].Price = *input.Price
	}
	return nil
}

func (s *stubProductService) Delete(_ context.Context, id int64) error {
	delete(s.products, id)
	return nil
}

func setupCachedService(t *testing.T) (ProductService, *stubProductService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	stub := &stubProductService{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Go in Action", Price: decimal.RequireFromString("10.00"), StockQuantity: 5},
	}}

	return NewCachedProductService(stub, client, time.Minute), stub, mr
}

func TestCachedFindByIDFillsAndServes(t *testing.T) {
	cached, stub, mr := setupCachedService(t)
	ctx := context.Background()

	first, err := cached.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Go in Action", first.Name)
	require.Equal(t, 1, stub.findCalls)
	require.True(t, mr.Exists("product:1"))

	second, err := cached.FindByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first.Name, second.Name)
	require.True(t, first.Price.Equal(second.Price))

	// Served from the cache, not the service.
	require.Equal(t, 1, stub.findCalls)
}

func TestCachedUpdateInvalidates(t *testing.T) {
	cached, stub, mr := setupCachedService(t)
	ctx := context.Background()

	_, err := cached.FindByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("product:1"))

	newPrice := decimal.RequireFromString("12.50")
	require.NoError(t, cached.Update(ctx, 1, &domain.UpdateProductInput{Price: &newPrice}))
	require.False(t, mr.Exists("product:1"))

	fresh, err := cached.FindByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, fresh.Price.Equal(newPrice))
	require.Equal(t, 2, stub.findCalls)
}

func TestCachedDeleteInvalidates(t *testing.T) {
	cached, _, mr := setupCachedService(t)
	ctx := context.Background()

	_, err := cached.FindByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, mr.Exists("product:1"))

	require.NoError(t, cached.Delete(ctx, 1))
	require.False(t, mr.Exists("product:1"))

	_, err = cached.FindByID(ctx, 1)
	require.Error(t, err)
}

func TestCachedMissFallsThrough(t *testing.T) {
	cached, _, _ := setupCachedService(t)

	_, err := cached.FindByID(context.Background(), 999)
	require.Error(t, err)

	kind, ok := domain.KindOf(err)
	require.True(t, ok)
	require.Equal(t, domain.KindNotFound, kind)
}
