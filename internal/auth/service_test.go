package auth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-books/aurora-api/internal/logging"
	"github.com/aurora-books/aurora-api/internal/user"
)

// fakeUserStore is an in-memory UserStore. A fake instead of a mock framework
// keeps the tests readable: the behavior is right here.
type fakeUserStore struct {
	mu      sync.Mutex
	byEmail map[string]*user.User

	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*user.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, firstName, lastName, email, passwordHash, verificationToken string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, exists := f.byEmail[email]; exists {
		return nil, user.ErrDuplicateEmail
	}

	token := verificationToken
	u := &user.User{
		ID:                uuid.New(),
		FirstName:         firstName,
		LastName:          lastName,
		Email:             email,
		PasswordHash:      passwordHash,
		VerificationToken: &token,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetByVerificationToken(ctx context.Context, token string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byEmail {
		if !u.IsVerified && u.VerificationToken != nil && *u.VerificationToken == token {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUserStore) MarkVerified(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.findByID(userID)
	if u == nil {
		return user.ErrNotFound
	}
	u.IsVerified = true
	u.VerificationToken = nil
	return nil
}

func (f *fakeUserStore) UpdateVerificationToken(ctx context.Context, userID uuid.UUID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.findByID(userID)
	if u == nil {
		return user.ErrNotFound
	}
	u.VerificationToken = &token
	return nil
}

func (f *fakeUserStore) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.findByID(userID)
	if u == nil {
		return user.ErrNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpires = &expiresAt
	return nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.findByID(userID)
	if u == nil {
		return user.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetToken = nil
	u.ResetTokenExpires = nil
	return nil
}

func (f *fakeUserStore) SetTwoFactorCode(ctx context.Context, userID uuid.UUID, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.findByID(userID)
	if u == nil {
		return user.ErrNotFound
	}
	u.TwoFactorCode = &code
	u.TwoFactorExpires = &expiresAt
	return nil
}

func (f *fakeUserStore) ClearTwoFactorCode(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.findByID(userID)
	if u == nil {
		return user.ErrNotFound
	}
	u.TwoFactorCode = nil
	u.TwoFactorExpires = nil
	return nil
}

func (f *fakeUserStore) findByID(userID uuid.UUID) *user.User {
	for _, u := range f.byEmail {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

// fakeMailer records sends and can be told to fail per message kind.
type fakeMailer struct {
	mu sync.Mutex

	verificationTokens []string
	otpCodes           []string
	resetTokens        []string
	welcomeCount       int

	verificationErr error
	otpErr          error
	resetErr        error
	welcomeErr      error
}

func (f *fakeMailer) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verificationErr != nil {
		return f.verificationErr
	}
	f.verificationTokens = append(f.verificationTokens, token)
	return nil
}

func (f *fakeMailer) SendOTPEmail(ctx context.Context, toEmail, name, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.otpErr != nil {
		return f.otpErr
	}
	f.otpCodes = append(f.otpCodes, code)
	return nil
}

func (f *fakeMailer) SendPasswordResetEmail(ctx context.Context, toEmail, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetTokens = append(f.resetTokens, token)
	return nil
}

func (f *fakeMailer) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.welcomeErr != nil {
		return f.welcomeErr
	}
	f.welcomeCount++
	return nil
}

func (f *fakeMailer) lastVerificationToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.verificationTokens) == 0 {
		t.Fatal("no verification email was sent")
	}
	return f.verificationTokens[len(f.verificationTokens)-1]
}

func (f *fakeMailer) lastOTPCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.otpCodes) == 0 {
		t.Fatal("no one-time code email was sent")
	}
	return f.otpCodes[len(f.otpCodes)-1]
}

func (f *fakeMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.resetTokens) == 0 {
		t.Fatal("no password reset email was sent")
	}
	return f.resetTokens[len(f.resetTokens)-1]
}

// syncQueue runs queued tasks immediately so tests observe their effects
// without timing games.
type syncQueue struct {
	descriptions []string
}

func (q *syncQueue) Enqueue(description string, task func(ctx context.Context) error) {
	q.descriptions = append(q.descriptions, description)
	_ = task(context.Background())
}

func newTestService(t *testing.T, store *fakeUserStore, mailer *fakeMailer, queue *syncQueue) *Service {
	t.Helper()

	tokenService, err := NewPasetoService(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	return NewService(store, tokenService, mailer, queue, logging.NewLogger(true), time.Hour)
}

func registerVerifiedUser(t *testing.T, svc *Service, mailer *fakeMailer, email, password string) *user.User {
	t.Helper()

	u, err := svc.Register(context.Background(), "Mira", "Holt", email, password)
	require.NoError(t, err)

	require.NoError(t, svc.VerifyAccount(context.Background(), mailer.lastVerificationToken(t)))
	return u
}

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	created, err := svc.Register(context.Background(), "Mira", "Holt", "mira@example.com", "Sunrise42")
	require.NoError(t, err)

	stored, err := store.GetByEmail(context.Background(), "mira@example.com")
	require.NoError(t, err)

	assert.Equal(t, created.ID, stored.ID)
	assert.NotEqual(t, "Sunrise42", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
	assert.False(t, stored.IsVerified)
	require.NotNil(t, stored.VerificationToken)
	assert.Equal(t, *stored.VerificationToken, mailer.lastVerificationToken(t))
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(t, newFakeUserStore(), &fakeMailer{}, &syncQueue{})

	tests := []struct {
		name      string
		firstName string
		lastName  string
		email     string
		password  string
		wantErr   error
	}{
		{"missing first name", "", "Holt", "mira@example.com", "Sunrise42", ErrFirstNameRequired},
		{"missing last name", "Mira", "  ", "mira@example.com", "Sunrise42", ErrLastNameRequired},
		{"missing email", "Mira", "Holt", "", "Sunrise42", ErrEmailRequired},
		{"malformed email", "Mira", "Holt", "not-an-email", "Sunrise42", ErrInvalidEmailFormat},
		{"missing password", "Mira", "Holt", "mira@example.com", "", ErrPasswordRequired},
		{"short password", "Mira", "Holt", "mira@example.com", "Sun42", ErrPasswordTooShort},
		{"no uppercase", "Mira", "Holt", "mira@example.com", "sunrise42", ErrPasswordNeedsUppercase},
		{"no digit", "Mira", "Holt", "mira@example.com", "SunriseGlow", ErrPasswordNeedsDigit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.firstName, tt.lastName, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	_, err := svc.Register(context.Background(), "Mira", "Holt", "mira@example.com", "Sunrise42")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Another", "Person", "mira@example.com", "Sunrise42")
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
}

func TestRegister_EmailDeliveryFailureKeepsUser(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{verificationErr: context.DeadlineExceeded}
	svc := newTestService(t, store, mailer, &syncQueue{})

	_, err := svc.Register(context.Background(), "Mira", "Holt", "mira@example.com", "Sunrise42")
	assert.ErrorIs(t, err, ErrEmailDelivery)

	// The row survives so a later resend can recover the account.
	stored, err := store.GetByEmail(context.Background(), "mira@example.com")
	require.NoError(t, err)
	assert.False(t, stored.IsVerified)
}

func TestVerifyAccount_TokenIsSingleUse(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	queue := &syncQueue{}
	svc := newTestService(t, store, mailer, queue)

	_, err := svc.Register(context.Background(), "Mira", "Holt", "mira@example.com", "Sunrise42")
	require.NoError(t, err)

	token := mailer.lastVerificationToken(t)
	require.NoError(t, svc.VerifyAccount(context.Background(), token))

	stored, err := store.GetByEmail(context.Background(), "mira@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Equal(t, 1, mailer.welcomeCount)

	err = svc.VerifyAccount(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestVerifyAccount_UnknownToken(t *testing.T) {
	svc := newTestService(t, newFakeUserStore(), &fakeMailer{}, &syncQueue{})

	err := svc.VerifyAccount(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestLogin_UnverifiedAccount(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	_, err := svc.Register(context.Background(), "Mira", "Holt", "mira@example.com", "Sunrise42")
	require.NoError(t, err)

	err = svc.Login(context.Background(), "mira@example.com", "Sunrise42")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")

	err := svc.Login(context.Background(), "mira@example.com", "WrongPass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc := newTestService(t, newFakeUserStore(), &fakeMailer{}, &syncQueue{})

	err := svc.Login(context.Background(), "nobody@example.com", "Sunrise42")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_StoresCodeAndEmailsIt(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	u := registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")

	require.NoError(t, svc.Login(context.Background(), "mira@example.com", "Sunrise42"))

	code := mailer.lastOTPCode(t)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
	}

	stored := store.findByID(u.ID)
	require.NotNil(t, stored.TwoFactorCode)
	assert.Equal(t, code, *stored.TwoFactorCode)
	require.NotNil(t, stored.TwoFactorExpires)
	assert.WithinDuration(t, time.Now().Add(otpTTL), *stored.TwoFactorExpires, 5*time.Second)
}

func TestVerifyTwoFactor_IssuesSession(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	u := registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.Login(context.Background(), "mira@example.com", "Sunrise42"))

	session, err := svc.VerifyTwoFactor(context.Background(), "mira@example.com", mailer.lastOTPCode(t))
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, "Bearer", session.TokenType)
	assert.Equal(t, int64(time.Hour.Seconds()), session.ExpiresIn)

	claims, err := svc.tokenService.VerifyToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	assert.Equal(t, "mira@example.com", claims.Email)
}

func TestVerifyTwoFactor_WrongCode(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.Login(context.Background(), "mira@example.com", "Sunrise42"))

	wrong := "000000"
	if mailer.lastOTPCode(t) == wrong {
		wrong = "000001"
	}

	_, err := svc.VerifyTwoFactor(context.Background(), "mira@example.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyTwoFactor_ExpiredCode(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	u := registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.Login(context.Background(), "mira@example.com", "Sunrise42"))

	expired := time.Now().Add(-time.Minute)
	stored := store.findByID(u.ID)
	stored.TwoFactorExpires = &expired

	_, err := svc.VerifyTwoFactor(context.Background(), "mira@example.com", mailer.lastOTPCode(t))
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyTwoFactor_CodeIsSingleUse(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.Login(context.Background(), "mira@example.com", "Sunrise42"))

	code := mailer.lastOTPCode(t)
	_, err := svc.VerifyTwoFactor(context.Background(), "mira@example.com", code)
	require.NoError(t, err)

	_, err = svc.VerifyTwoFactor(context.Background(), "mira@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestRequestPasswordReset_UnknownEmailIsMasked(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestService(t, newFakeUserStore(), mailer, &syncQueue{})

	err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Empty(t, mailer.resetTokens)
}

func TestResetPassword_ReplacesCredential(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "mira@example.com"))

	token := mailer.lastResetToken(t)
	require.NoError(t, svc.ResetPassword(context.Background(), "mira@example.com", token, "Moonrise77"))

	// The old password is dead, the new one works.
	err := svc.Login(context.Background(), "mira@example.com", "Sunrise42")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NoError(t, svc.Login(context.Background(), "mira@example.com", "Moonrise77"))

	// The token died with the reset.
	err = svc.ResetPassword(context.Background(), "mira@example.com", token, "Starfall99")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_WrongToken(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "mira@example.com"))

	err := svc.ResetPassword(context.Background(), "mira@example.com", "bogus-token", "Moonrise77")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	u := registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "mira@example.com"))

	expired := time.Now().Add(-time.Minute)
	stored := store.findByID(u.ID)
	stored.ResetTokenExpires = &expired

	err := svc.ResetPassword(context.Background(), "mira@example.com", mailer.lastResetToken(t), "Moonrise77")
	assert.ErrorIs(t, err, ErrResetTokenExpired)
}

func TestResetPassword_WeakReplacementRejected(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(t, store, mailer, &syncQueue{})

	registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	require.NoError(t, svc.RequestPasswordReset(context.Background(), "mira@example.com"))

	err := svc.ResetPassword(context.Background(), "mira@example.com", mailer.lastResetToken(t), "weak")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestResendVerification_RotatesToken(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	queue := &syncQueue{}
	svc := newTestService(t, store, mailer, queue)

	_, err := svc.Register(context.Background(), "Mira", "Holt", "mira@example.com", "Sunrise42")
	require.NoError(t, err)
	firstToken := mailer.lastVerificationToken(t)

	require.NoError(t, svc.ResendVerificationEmail(context.Background(), "mira@example.com"))

	secondToken := mailer.lastVerificationToken(t)
	assert.NotEqual(t, firstToken, secondToken)

	// The old link is dead, the fresh one verifies.
	assert.ErrorIs(t, svc.VerifyAccount(context.Background(), firstToken), ErrInvalidVerificationToken)
	assert.NoError(t, svc.VerifyAccount(context.Background(), secondToken))
}

func TestResendVerification_MaskedForUnknownAndVerified(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	queue := &syncQueue{}
	svc := newTestService(t, store, mailer, queue)

	assert.NoError(t, svc.ResendVerificationEmail(context.Background(), "nobody@example.com"))

	registerVerifiedUser(t, svc, mailer, "mira@example.com", "Sunrise42")
	sendsBefore := len(mailer.verificationTokens)

	assert.NoError(t, svc.ResendVerificationEmail(context.Background(), "mira@example.com"))
	assert.Len(t, mailer.verificationTokens, sendsBefore)
}
