package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&User{}))
	return &Service{
		DB:          gdb,
		JWT:         NewJWT("test-secret"),
		Federated:   NewFederatedVerifier("broker-secret"),
		AdminEmails: []string{"demoadmin@example.com"},
	}
}

func TestRegisterLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Email: " Alice@X.com ", Password: "hunter22", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", sess.User.Email)
	assert.Equal(t, RoleUser, sess.User.Role)

	claims, err := svc.JWT.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
	assert.Equal(t, "alice@x.com", claims.Email)

	_, err = svc.Register(ctx, RegisterInput{Email: "alice@x.com", Password: "another1"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Login(ctx, "alice@x.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	again, err := svc.Login(ctx, "ALICE@x.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, again.User.ID)
}

func TestRegister_StorageFailureIsNotEmailTaken(t *testing.T) {
	svc := newTestService(t)
	boom := errors.New("disk full")
	require.NoError(t, svc.DB.Callback().Create().Before("gorm:create").Register("test:fail", func(tx *gorm.DB) {
		_ = tx.AddError(boom)
	}))

	_, err := svc.Register(context.Background(), RegisterInput{Email: "bob@x.com", Password: "hunter22"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_RejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Register(context.Background(), RegisterInput{Email: "nobody", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "123"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRoleComesFromAdminList(t *testing.T) {
	svc := newTestService(t)
	sess, err := svc.Register(context.Background(), RegisterInput{Email: "demoadmin@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, sess.User.Role)

	svc.AdminEmails = nil
	u, err := svc.Get(context.Background(), sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, u.Role)
}

func TestLoginFederated_CreatesOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":   "Bob@Example.com",
		"name":    "Bob",
		"picture": "https://img.example.com/bob.png",
		"exp":     time.Now().Add(time.Minute).Unix(),
	})
	idToken, err := tok.SignedString([]byte("broker-secret"))
	require.NoError(t, err)

	first, err := svc.LoginFederated(ctx, "google", idToken)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", first.User.Email)
	assert.Equal(t, "Bob", first.User.DisplayName)
	assert.Equal(t, "google", first.User.Provider)

	second, err := svc.LoginFederated(ctx, "google", idToken)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "eve@x.com"}).SignedString([]byte("nope"))
	require.NoError(t, err)
	_, err = svc.LoginFederated(ctx, "google", forged)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// federated accounts have no password
	_, err = svc.Login(ctx, "bob@example.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Register(ctx, RegisterInput{Email: "c@x.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "c", sess.User.Name())

	name := "Carol"
	u, err := svc.UpdateProfile(ctx, sess.User.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "Carol", u.Name())

	_, err = svc.UpdateProfile(ctx, 9999, &name, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRequireAuth(t *testing.T) {
	j := NewJWT("test-secret")
	tok, err := j.Sign(User{ID: 7, Email: "a@x.com"})
	require.NoError(t, err)

	var got Claims
	h := RequireAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Claims{UserID: 7, Email: "a@x.com"}, got)
}
