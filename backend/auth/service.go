package auth

import (
	"context"
	"errors"

	"github.com/avolkov/devchat/backend/model"
	"github.com/rs/zerolog"
)

var (
	ErrRegister           = errors.New("unable to register user")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type (
	UserStore interface {
		CreateUser(ctx context.Context, user model.User) error
		GetUser(ctx context.Context, name string) (model.User, error)
	}

	// Service is the identity provider: it registers accounts and exchanges
	// credentials for signed tokens. The relay core trusts the username
	// carried by a validated token without re-checking it per event.
	Service struct {
		logger zerolog.Logger
		users  UserStore
		tokens *TokenIssuer
	}

	Config struct {
		Logger *zerolog.Logger
		Users  UserStore
		Tokens *TokenIssuer
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		logger: cfg.Logger.With().Str("component", "auth").Logger(),
		users:  cfg.Users,
		tokens: cfg.Tokens,
	}
}

func (svc *Service) Register(ctx context.Context, username, password string) error {
	if err := validateCredentials(username, password); err != nil {
		return errors.Join(ErrRegister, err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return errors.Join(ErrRegister, err)
	}
	if err = svc.users.CreateUser(ctx, model.User{Name: username, PasswordHash: hash}); err != nil {
		return errors.Join(ErrRegister, err)
	}
	svc.logger.Debug().
		Str("username", username).
		Msg("user registered")
	return nil
}

// Login verifies the credentials and issues a token. Unknown users and bad
// passwords are indistinguishable to the caller.
func (svc *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := svc.users.GetUser(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	token, err := svc.tokens.Issue(username)
	if err != nil {
		return "", err
	}
	svc.logger.Debug().
		Str("username", username).
		Msg("user logged in")
	return token, nil
}
