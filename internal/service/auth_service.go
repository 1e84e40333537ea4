package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/taskboard/internal/config"
	"github.com/yourorg/taskboard/internal/model"
)

// UserRepo is the persistence surface the auth service needs.
type UserRepo interface {
	Create(ctx context.Context, user *model.UserRegister, passwordHash string) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

// AuthService handles authentication and token generation
type AuthService struct {
	userRepo UserRepo
	cfg      *config.Config
	logger   *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(userRepo UserRepo, cfg *config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
		logger:   logger,
	}
}

// Register creates a new user account and returns a signed session token
func (s *AuthService) Register(ctx context.Context, reg *model.UserRegister) (*model.TokenResponse, error) {
	existing, err := s.userRepo.GetByUsernameOrEmail(ctx, reg.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("email already in use")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, err
	}

	userID, err := s.userRepo.Create(ctx, reg, string(hashedPassword))
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.generateToken(userID)
	if err != nil {
		return nil, err
	}

	return &model.TokenResponse{Token: token, User: *user}, nil
}

// Login authenticates a user and returns a signed session token
func (s *AuthService) Login(ctx context.Context, login *model.UserLogin) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByUsernameOrEmail(ctx, login.UsernameOrEmail)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("invalid username or password")
	}

	if !user.IsActive {
		return nil, errors.New("account is disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(login.Password)); err != nil {
		s.logger.Debug("password verification failed", zap.Error(err))
		return nil, errors.New("invalid username or password")
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err), zap.Int64("userID", user.ID))
	}

	return &model.TokenResponse{Token: token, User: *user}, nil
}

// generateToken creates a signed access token for the user
func (s *AuthService) generateToken(userID int64) (string, error) {
	expiry := time.Now().Add(s.cfg.Auth.AccessTokenDuration)

	claims := jwt.MapClaims{
		"sub":  userID,
		"exp":  expiry.Unix(),
		"iat":  time.Now().Unix(),
		"type": "access",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		s.logger.Error("failed to sign access token", zap.Error(err))
		return "", err
	}
	return signed, nil
}

// ValidateToken validates a JWT token and returns the user ID if valid
func (s *AuthService) ValidateToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}

	if tokenType, ok := claims["type"].(string); !ok || tokenType != "access" {
		return 0, errors.New("invalid token type")
	}

	userIDFloat, ok := claims["sub"].(float64)
	if !ok {
		return 0, errors.New("invalid user ID in token")
	}

	return int64(userIDFloat), nil
}
