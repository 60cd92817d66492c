package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"hrportal/internal/platform/db"
	"hrportal/internal/platform/querier"
)

var ErrAccountNotFound = errors.New("account not found")

type Credentials struct {
	ID            string
	FullName      string
	EmployeeID    int
	Email         string
	Department    string
	Role          string
	PasswordHash  string
	EmailVerified bool
	IsApproved    bool
	OTPSecretEnc  []byte
	OTPIssuedAt   *time.Time
}

type NewAccount struct {
	FullName     string
	EmployeeID   int
	CNIC         string
	Email        string
	Department   string
	Branch       string
	City         string
	JoiningDate  time.Time
	Role         string
	IsApproved   bool
	Verified     bool
	PasswordHash string
	OTPSecretEnc []byte
	OTPIssuedAt  *time.Time
}

type StoreAPI interface {
	AccountExists(ctx context.Context, email string, employeeID int, cnic string) (bool, error)
	CreateAccount(ctx context.Context, account NewAccount) (string, error)
	FindByEmail(ctx context.Context, email string) (Credentials, error)
	SetOTP(ctx context.Context, userID string, secretEnc []byte, issuedAt time.Time) error
	MarkEmailVerified(ctx context.Context, userID string) error
	ClearExpiredOTPs(ctx context.Context, issuedBefore time.Time) (int64, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) AccountExists(ctx context.Context, email string, employeeID int, cnic string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM users
    WHERE email = $1 OR employee_id = $2 OR cnic = $3
  `, email, employeeID, cnic).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) CreateAccount(ctx context.Context, a NewAccount) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (full_name, employee_id, cnic, email, department, branch, city, joining_date, role,
      is_approved, email_verified, password_hash, otp_secret_enc, otp_issued_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
    RETURNING id::text
  `, a.FullName, a.EmployeeID, a.CNIC, a.Email, a.Department, a.Branch, a.City, a.JoiningDate, a.Role,
		a.IsApproved, a.Verified, a.PasswordHash, a.OTPSecretEnc, a.OTPIssuedAt).Scan(&id)
	if db.IsUniqueViolation(err) {
		return "", ErrAccountExists
	}
	return id, err
}

func (s *Store) FindByEmail(ctx context.Context, email string) (Credentials, error) {
	var c Credentials
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, full_name, employee_id, email, department, role, password_hash,
      email_verified, is_approved, otp_secret_enc, otp_issued_at
    FROM users
    WHERE email = $1
  `, email).Scan(&c.ID, &c.FullName, &c.EmployeeID, &c.Email, &c.Department, &c.Role, &c.PasswordHash,
		&c.EmailVerified, &c.IsApproved, &c.OTPSecretEnc, &c.OTPIssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credentials{}, ErrAccountNotFound
	}
	return c, err
}

func (s *Store) SetOTP(ctx context.Context, userID string, secretEnc []byte, issuedAt time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET otp_secret_enc = $1, otp_issued_at = $2, updated_at = now() WHERE id = $3
  `, secretEnc, issuedAt, userID)
	return err
}

func (s *Store) MarkEmailVerified(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET email_verified = true, otp_secret_enc = NULL, otp_issued_at = NULL, updated_at = now()
    WHERE id = $1
  `, userID)
	return err
}

func (s *Store) ClearExpiredOTPs(ctx context.Context, issuedBefore time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE users SET otp_secret_enc = NULL, otp_issued_at = NULL
    WHERE otp_issued_at IS NOT NULL AND otp_issued_at < $1
  `, issuedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
