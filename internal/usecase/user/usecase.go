package user

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "user-api/internal/domain/user"
	pkgerrors "user-api/pkg/errors"
	"user-api/pkg/logger"
	"user-api/pkg/security"
)

// MsgUserAlreadyExists is the detail returned when a dni is already registered.
const MsgUserAlreadyExists = "User already exists"

// Repository defines the data access capabilities the usecase needs.
// Implementations must enforce dni uniqueness at the storage level and
// report a violation as domain.ErrDuplicateDNI.
type Repository interface {
	// List returns all users in storage order.
	List(ctx context.Context) ([]domain.User, error)
	// GetByID returns domain.ErrNotFound when no user has the id.
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByDNI(ctx context.Context, dni string) (bool, error)
	// Create persists u and returns the assigned id.
	Create(ctx context.Context, u *domain.User) (int64, error)
}

// Usecase implements the business logic for user management operations.
type Usecase struct {
	repo     Repository
	log      *zap.Logger
	validate *validator.Validate
}

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Usecase {
	return &Usecase{repo: r, log: log, validate: NewValidator()}
}

// NewValidator returns a validator that reports fields by their json names
// and understands the security tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := security.RegisterValidators(v); err != nil {
		panic(fmt.Sprintf("register security validators: %v", err))
	}
	return v
}

// formatValidationError converts validator.ValidationErrors into field-level details.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := &pkgerrors.ValidationError{}
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			out.Add(e.Field(), "This field is required.")
		case "max":
			out.Add(e.Field(), fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param()))
		case security.SafeTextTag:
			out.Add(e.Field(), "This field contains invalid characters.")
		default:
			out.Add(e.Field(), "This field is invalid.")
		}
	}
	return out
}

// CreateUser stores a new user unless the dni is already registered.
// The duplicate check runs before schema validation, so a known dni is
// reported as a conflict even when the rest of the payload is invalid.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	in.Name = strings.TrimSpace(in.Name)
	in.DNI = strings.TrimSpace(in.DNI)

	log.Info("creating user", zap.String("name", in.Name), zap.String("dni", in.DNI))

	if in.DNI != "" {
		exists, err := uc.repo.ExistsByDNI(ctx, in.DNI)
		if err != nil {
			log.Error("failed to check existing dni", zap.String("dni", in.DNI), zap.Error(err))
			return nil, pkgerrors.NewInternalError("failed to validate dni uniqueness", err)
		}
		if exists {
			log.Warn("dni already exists", zap.String("dni", in.DNI))
			return nil, pkgerrors.NewAlreadyExistsError("user", MsgUserAlreadyExists)
		}
	}

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	u := &domain.User{Name: in.Name, DNI: in.DNI}
	id, err := uc.repo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateDNI) {
			// Lost a race with a concurrent create for the same dni.
			log.Warn("dni unique constraint violated", zap.String("dni", in.DNI))
			return nil, pkgerrors.NewAlreadyExistsError("user", MsgUserAlreadyExists)
		}
		log.Error("failed to create user", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to create user", err)
	}

	return &CreateUserResponse{ID: id, Name: u.Name, DNI: u.DNI}, nil
}

// GetUser retrieves a user by ID.
func (uc *Usecase) GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.ID <= 0 {
		log.Warn("get user with non-positive id", zap.Int64("id", in.ID))
		return nil, pkgerrors.ErrNotFound
	}

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to get user", err)
	}

	return &GetUserResponse{
		ID:   u.ID,
		Name: u.Name,
		DNI:  u.DNI,
	}, nil
}

// ListUsers returns every stored user in storage order.
func (uc *Usecase) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		log.Error("failed to list users", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to list users", err)
	}

	users := make([]User, len(domainUsers))
	for i, du := range domainUsers {
		users[i] = User{
			ID:   du.ID,
			Name: du.Name,
			DNI:  du.DNI,
		}
	}

	log.Debug("listed users", zap.Int("count", len(users)))

	return &ListUsersResponse{
		Users: users,
	}, nil
}
