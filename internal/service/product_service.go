package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/repository"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type ProductService interface {
	Create(ctx context.Context, product *domain.Product) (int64, error)
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error)
	Update(ctx context.Context, id int64, input *domain.UpdateProductInput) error
	Delete(ctx context.Context, id int64) error
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	logger       *zap.Logger
	tracer       trace.Tracer
}

func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		logger:       logger,
		tracer:       otel.Tracer("service/product"),
	}
}

func (s *productService) Create(ctx context.Context, product *domain.Product) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("product.name", product.Name),
	)

	if product.Name == "" {
		return 0, domain.MissingValues("name")
	}
	if product.Price.IsNegative() {
		return 0, domain.Conflict("price cannot be negative")
	}
	if product.StockQuantity < 0 {
		return 0, domain.Conflict("stock quantity cannot be negative")
	}

	if _, err := s.categoryRepo.GetByID(ctx, product.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return 0, domain.NotFound("category %d not found", product.CategoryID)
		}

		return 0, err
	}

	id, err := s.productRepo.Create(ctx, product)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return 0, domain.Conflict("a product named %q already exists", product.Name)
		}

		return 0, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Product created",
		zap.Int64("product_id", id),
		zap.String("name", product.Name),
	)

	return id, nil
}

func (s *productService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", id),
	)

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NotFound("product not found")
		}

		return nil, err
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.List")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.productRepo.List(ctx, limit, offset, search)
}

func (s *productService) Update(ctx context.Context, id int64, input *domain.UpdateProductInput) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", id),
	)

	if input.Price != nil && input.Price.IsNegative() {
		return domain.Conflict("price cannot be negative")
	}

	if input.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				return domain.NotFound("category %d not found", *input.CategoryID)
			}

			return err
		}
	}

	if err := s.productRepo.Update(ctx, id, input); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.NotFound("product not found")
		}

		return err
	}

	return nil
}

func (s *productService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", id),
	)

	if err := s.productRepo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.NotFound("product not found")
		}

		return err
	}

	return nil
}
