package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/repository"
)

type CategoryService interface {
	Create(ctx context.Context, category *domain.Category) (int64, error)
	FindByID(ctx context.Context, id int64) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Update(ctx context.Context, id int64, input *domain.UpdateCategoryInput) error
	Delete(ctx context.Context, id int64) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	logger       *zap.Logger
	tracer       trace.Tracer
}

func NewCategoryService(categoryRepo repository.CategoryRepository, logger *zap.Logger) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		logger:       logger,
		tracer:       otel.Tracer("service/category"),
	}
}

func (s *categoryService) Create(ctx context.Context, category *domain.Category) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "CategoryService.Create")
	defer span.End()

	if category.Name == "" {
		return 0, domain.MissingValues("name")
	}

	id, err := s.categoryRepo.Create(ctx, category)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return 0, domain.Conflict("a category named %q already exists", category.Name)
		}

		return 0, err
	}

	return id, nil
}

func (s *categoryService) FindByID(ctx context.Context, id int64) (*domain.Category, error) {
	ctx, span := s.tracer.Start(ctx, "CategoryService.FindByID")
	defer span.End()

	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, domain.NotFound("category not found")
		}

		return nil, err
	}

	return category, nil
}

func (s *categoryService) List(ctx context.Context) ([]domain.Category, error) {
	ctx, span := s.tracer.Start(ctx, "CategoryService.List")
	defer span.End()

	return s.categoryRepo.List(ctx)
}

func (s *categoryService) Update(ctx context.Context, id int64, input *domain.UpdateCategoryInput) error {
	ctx, span := s.tracer.Start(ctx, "CategoryService.Update")
	defer span.End()

	if input.Name != nil && *input.Name == "" {
		return domain.MissingValues("name")
	}

	if err := s.categoryRepo.Update(ctx, id, input); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return domain.Conflict("a category named %q already exists", *input.Name)
		}

		if errors.Is(err, repository.ErrCategoryNotFound) {
			return domain.NotFound("category not found")
		}

		return err
	}

	return nil
}

func (s *categoryService) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "CategoryService.Delete")
	defer span.End()

	if err := s.categoryRepo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return domain.NotFound("category not found")
		}

		return err
	}

	return nil
}
