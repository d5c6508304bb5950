package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-api/internal/domain/user"
)

// pgUniqueViolation is the SQLSTATE Postgres reports for unique constraint violations.
const pgUniqueViolation = "23505"

// UserRepoPG implements the user Repository using GORM.
// It runs against Postgres in production and SQLite locally.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`                      // Unique identifier with auto-increment
	Name string `gorm:"not null"`                                      // User's full name (required)
	DNI  string `gorm:"column:dni;not null;uniqueIndex:idx_users_dni"` // National id number (required, unique)
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// Migrate creates or updates the users table and its dni unique index.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// Create inserts a new user into the database.
// A dni collision is reported as user.ErrDuplicateDNI.
func (r *UserRepoPG) Create(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}

	model := UserSchema{
		Name: u.Name,
		DNI:  u.DNI,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("dni unique constraint violated", zap.String("dni", u.DNI))
			return 0, fmt.Errorf("failed to create user: %w", user.ErrDuplicateDNI)
		}
		r.log.Error("failed to create user in db", zap.Error(err), zap.String("dni", u.DNI))
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = model.ID
	r.log.Info("user created in db", zap.Int64("id", model.ID))
	return model.ID, nil
}

// GetByID retrieves a user from the database by their unique ID.
func (r *UserRepoPG) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.Int64("id", id))
			return nil, fmt.Errorf("id=%d: %w", id, user.ErrNotFound)
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toDomain(model), nil
}

// ExistsByDNI reports whether any user is registered with dni.
func (r *UserRepoPG) ExistsByDNI(ctx context.Context, dni string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Where("dni = ?", dni).Count(&count).Error; err != nil {
		r.log.Error("failed to check dni in db", zap.Error(err), zap.String("dni", dni))
		return false, fmt.Errorf("failed to check dni: %w", err)
	}
	return count > 0, nil
}

// List retrieves every user ordered by ID, which is insertion order.
func (r *UserRepoPG) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = *toDomain(model)
	}

	return users, nil
}

func toDomain(model UserSchema) *user.User {
	return &user.User{
		ID:   model.ID,
		Name: model.Name,
		DNI:  model.DNI,
	}
}

// isUniqueViolation recognises duplicate key errors from either driver,
// whether or not GORM error translation is enabled.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
