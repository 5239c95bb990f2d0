package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/sitepulse/internal/models"
)

// ErrInvalidCredentials is returned when an email and password do not match an operator.
var ErrInvalidCredentials = errors.New("invalid email or password")

// OperatorServiceProvider defines the interface for operator services.
type OperatorServiceProvider interface {
	GetOperatorByID(id string) (models.Operator, error)
	CreateOperator(email, password string) (models.Operator, error)
	AuthenticateOperator(email, password string) (models.Operator, error)
}

// OperatorService manages the developers allowed to use the write routes.
type OperatorService struct {
	db *sql.DB
}

// NewOperatorService creates a new OperatorService.
func NewOperatorService(db *sql.DB) *OperatorService {
	return &OperatorService{db: db}
}

// GetOperatorByID retrieves a single operator by their ID.
func (s *OperatorService) GetOperatorByID(id string) (models.Operator, error) {
	var (
		op        models.Operator
		createdAt int64
	)
	row := s.db.QueryRow("SELECT id, email, created_at_ns FROM operators WHERE id = ?", id)
	if err := row.Scan(&op.ID, &op.Email, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Operator{}, fmt.Errorf("operator with ID %s not found", id)
		}
		return models.Operator{}, err
	}
	op.CreatedAt = time.Unix(0, createdAt).UTC()
	return op, nil
}

func (s *OperatorService) getOperatorByEmail(email string) (models.Operator, error) {
	var (
		op        models.Operator
		createdAt int64
	)
	row := s.db.QueryRow("SELECT id, email, password_hash, created_at_ns FROM operators WHERE email = ?", normalizeEmail(email))
	if err := row.Scan(&op.ID, &op.Email, &op.PasswordHash, &createdAt); err != nil {
		return models.Operator{}, err
	}
	op.CreatedAt = time.Unix(0, createdAt).UTC()
	return op, nil
}

// CreateOperator creates a new operator, hashing their password.
func (s *OperatorService) CreateOperator(email, password string) (models.Operator, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.Operator{}, errors.New("email and password are required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Operator{}, fmt.Errorf("failed to hash password: %w", err)
	}

	op := models.Operator{ID: uuid.New().String(), Email: email}
	stmt, err := s.db.Prepare("INSERT INTO operators (id, email, password_hash, created_at_ns) VALUES (?, ?, ?, ?)")
	if err != nil {
		return models.Operator{}, err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(op.ID, op.Email, string(hashed), time.Now().UnixNano()); err != nil {
		return models.Operator{}, fmt.Errorf("failed to create operator: %w", err)
	}
	return s.GetOperatorByID(op.ID)
}

// EnsureOperator creates the operator unless one with that email already exists.
func (s *OperatorService) EnsureOperator(email, password string) error {
	if _, err := s.getOperatorByEmail(email); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	op, err := s.CreateOperator(email, password)
	if err != nil {
		return err
	}
	log.Info().Str("operator_id", op.ID).Str("email", op.Email).Msg("Created initial operator")
	return nil
}

// AuthenticateOperator verifies an operator's credentials.
func (s *OperatorService) AuthenticateOperator(email, password string) (models.Operator, error) {
	op, err := s.getOperatorByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Operator{}, ErrInvalidCredentials
		}
		return models.Operator{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return models.Operator{}, ErrInvalidCredentials
	}
	op.PasswordHash = ""
	return op, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
