package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drypzz/api-StockSystem/internal/auth"
	"github.com/drypzz/api-StockSystem/internal/domain"
	"github.com/drypzz/api-StockSystem/internal/repository"
	"github.com/drypzz/api-StockSystem/pkg/mylogger"
)

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	GetMe(ctx context.Context, userID int64) (*domain.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *auth.TokenManager
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewAuthService(userRepo repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   logger,
		tracer:   otel.Tracer("service/auth"),
	}
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, domain.MissingValues(missing...)
	}

	if err := auth.ValidatePassword(password); err != nil {
		return nil, domain.Conflict("%s", err.Error())
	}

	hashedPass, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error hashing password", zap.Error(err))
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPass),
	}

	id, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, domain.Conflict("an account with this email already exists")
		}

		span.RecordError(err)
		return nil, err
	}

	user.ID = id
	span.SetAttributes(attribute.Int64("user.id", id))

	mylogger.Info(ctx, s.logger, "User registered", zap.Int64("user_id", id))

	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if email == "" || password == "" {
		return "", nil, domain.MissingValues("email", "password")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, domain.Unauthorized("invalid email or password")
		}

		span.RecordError(err)
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error signing token", zap.Error(err))
		return "", nil, err
	}

	return token, user, nil
}

func (s *authService) GetMe(ctx context.Context, userID int64) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.GetMe")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.NotFound("user not found")
		}

		return nil, err
	}

	return user, nil
}
