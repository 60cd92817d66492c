package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/platform/crypto"
	"hrportal/internal/platform/email"
)

var (
	ErrAccountExists      = apperror.Conflict("User already exists")
	ErrInvalidCredentials = apperror.Unauthorized("Invalid credentials").WithCode("invalid_credentials")
	ErrEmailUnverified    = apperror.Forbidden("Please verify your email via OTP first").WithCode("email_unverified")
	ErrAwaitingApproval   = apperror.Forbidden("Account awaiting approval").WithCode("awaiting_approval")
	ErrInvalidEmail       = apperror.Validation("Invalid email")
	ErrNoPendingOTP       = apperror.Validation("No OTP pending for this account")
	ErrOTPExpired         = apperror.Validation("OTP expired. Please request a new one.").WithCode("otp_expired")
	ErrInvalidOTP         = apperror.Validation("Invalid OTP").WithCode("otp_invalid")
)

const MsgAlreadyVerified = "Email already verified"

type RegisterInput struct {
	FullName    string `json:"fullName"`
	EmployeeID  int    `json:"employeeId"`
	CNIC        string `json:"cnic"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	JoiningDate string `json:"joiningDate"`
	Branch      string `json:"branch"`
	City        string `json:"city"`
	Password    string `json:"password"`
}

type RegisterResult struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type Session struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	FullName   string `json:"fullName"`
	EmployeeID int    `json:"employeeId"`
	Department string `json:"department"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Session   `json:"user"`
}

type Service struct {
	store  StoreAPI
	mailer email.Mailer
	box    *crypto.Box
	otp    OTPIssuer
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store StoreAPI, mailer email.Mailer, box *crypto.Box, secret string, ttl time.Duration) *Service {
	return &Service{
		store:  store,
		mailer: mailer,
		box:    box,
		otp:    NewOTPIssuer(),
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Register creates an unapproved employee account and emails a verification code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validateRegistration(in); err != nil {
		return RegisterResult{}, err
	}
	joining, err := time.Parse("2006-01-02", strings.TrimSpace(in.JoiningDate))
	if err != nil {
		return RegisterResult{}, apperror.Validation("joiningDate must be YYYY-MM-DD")
	}

	exists, err := s.store.AccountExists(ctx, in.Email, in.EmployeeID, strings.TrimSpace(in.CNIC))
	if err != nil {
		return RegisterResult{}, err
	}
	if exists {
		return RegisterResult{}, ErrAccountExists
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, err
	}
	secret, sealed, issuedAt, err := s.issueSecret(in.Email)
	if err != nil {
		return RegisterResult{}, err
	}

	id, err := s.store.CreateAccount(ctx, NewAccount{
		FullName:     strings.TrimSpace(in.FullName),
		EmployeeID:   in.EmployeeID,
		CNIC:         strings.TrimSpace(in.CNIC),
		Email:        in.Email,
		Department:   strings.TrimSpace(in.Department),
		Branch:       strings.TrimSpace(in.Branch),
		City:         strings.TrimSpace(in.City),
		JoiningDate:  joining,
		Role:         RoleEmployee,
		PasswordHash: hash,
		OTPSecretEnc: sealed,
		OTPIssuedAt:  &issuedAt,
	})
	if err != nil {
		return RegisterResult{}, err
	}

	if err := s.sendCode(ctx, in.Email, in.FullName, secret, issuedAt); err != nil {
		slog.Warn("otp email send failed", "userId", id, "err", err)
	}
	return RegisterResult{
		Message: "Registered. Check your email for the verification code (expires in 10 minutes).",
		UserID:  id,
	}, nil
}

// VerifyEmail returns a user-facing message on success.
func (s *Service) VerifyEmail(ctx context.Context, emailAddr, code string) (string, error) {
	if strings.TrimSpace(emailAddr) == "" || strings.TrimSpace(code) == "" {
		return "", apperror.Validation("email and code are required")
	}
	creds, err := s.store.FindByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, ErrAccountNotFound) {
		return "", ErrInvalidEmail
	}
	if err != nil {
		return "", err
	}
	if creds.EmailVerified {
		return MsgAlreadyVerified, nil
	}
	if len(creds.OTPSecretEnc) == 0 || creds.OTPIssuedAt == nil {
		return "", ErrNoPendingOTP
	}
	if s.otp.Expired(*creds.OTPIssuedAt, s.now()) {
		return "", ErrOTPExpired
	}
	secret, err := s.box.Open(creds.OTPSecretEnc)
	if err != nil {
		return "", err
	}
	if !s.otp.Verify(code, secret, *creds.OTPIssuedAt) {
		return "", ErrInvalidOTP
	}
	if err := s.store.MarkEmailVerified(ctx, creds.ID); err != nil {
		return "", err
	}
	return "Email verified successfully", nil
}

func (s *Service) ResendOTP(ctx context.Context, emailAddr string) (string, error) {
	if strings.TrimSpace(emailAddr) == "" {
		return "", apperror.Validation("email is required")
	}
	creds, err := s.store.FindByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, ErrAccountNotFound) {
		return "", ErrInvalidEmail
	}
	if err != nil {
		return "", err
	}
	if creds.EmailVerified {
		return MsgAlreadyVerified, nil
	}

	secret, sealed, issuedAt, err := s.issueSecret(creds.Email)
	if err != nil {
		return "", err
	}
	if err := s.store.SetOTP(ctx, creds.ID, sealed, issuedAt); err != nil {
		return "", err
	}
	if err := s.sendCode(ctx, creds.Email, creds.FullName, secret, issuedAt); err != nil {
		return "", err
	}
	return "A new verification code has been sent to your email.", nil
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	if strings.TrimSpace(emailAddr) == "" || password == "" {
		return LoginResult{}, apperror.Validation("email and password are required")
	}
	creds, err := s.store.FindByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, ErrAccountNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := CheckPassword(creds.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !creds.EmailVerified {
		return LoginResult{}, ErrEmailUnverified
	}
	if !creds.IsApproved {
		return LoginResult{}, ErrAwaitingApproval
	}

	token, err := GenerateToken(s.secret, Claims{UserID: creds.ID, RoleName: creds.Role}, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:     token,
		ExpiresAt: s.now().Add(s.ttl),
		User: Session{
			ID:         creds.ID,
			Role:       creds.Role,
			FullName:   creds.FullName,
			EmployeeID: creds.EmployeeID,
			Department: creds.Department,
		},
	}, nil
}

// PurgeExpiredOTPs drops verification secrets whose codes can no longer be used.
func (s *Service) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	return s.store.ClearExpiredOTPs(ctx, s.now().Add(-s.otp.Lifetime))
}

func (s *Service) issueSecret(emailAddr string) (string, []byte, time.Time, error) {
	secret, err := s.otp.NewSecret(emailAddr)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	sealed, err := s.box.Seal(secret)
	if err != nil {
		return "", nil, time.Time{}, err
	}
	return secret, sealed, s.now().UTC(), nil
}

func (s *Service) sendCode(ctx context.Context, to, fullName, secret string, issuedAt time.Time) error {
	code, err := s.otp.Code(secret, issuedAt)
	if err != nil {
		return err
	}
	subject, body := email.OTPMessage(fullName, code, s.otp.Lifetime)
	return s.mailer.Send(ctx, to, subject, body)
}

func validateRegistration(in RegisterInput) error {
	required := map[string]string{
		"fullName":    in.FullName,
		"cnic":        in.CNIC,
		"email":       in.Email,
		"department":  in.Department,
		"joiningDate": in.JoiningDate,
		"branch":      in.Branch,
		"city":        in.City,
		"password":    in.Password,
	}
	var missing []string
	for _, field := range []string{"fullName", "cnic", "email", "department", "joiningDate", "branch", "city", "password"} {
		if strings.TrimSpace(required[field]) == "" {
			missing = append(missing, field)
		}
	}
	if in.EmployeeID <= 0 {
		missing = append(missing, "employeeId")
	}
	if len(missing) > 0 {
		return apperror.Validation("Missing required fields: " + strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperror.Validation("email is invalid")
	}
	if len(in.Password) < 8 {
		return apperror.Validation("password must be at least 8 characters")
	}
	return nil
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
