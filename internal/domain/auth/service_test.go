package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tpv/internal/core/id"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeUserRepo struct {
	users     map[string]*User
	updateErr error
	updates   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *User) error {
	r.users[user.Email] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	for _, u := range r.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, assert.AnError
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *User) error {
	r.updates++
	if r.updateErr != nil {
		return r.updateErr
	}
	r.users[user.Email] = user
	return nil
}

func (r *fakeUserRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, ok := r.users[email]
	return ok, nil
}

type fakeTokenRepo struct {
	saved   []*RefreshToken
	revoked []id.ID
}

func (r *fakeTokenRepo) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	r.saved = append(r.saved, token)
	return nil
}

func (r *fakeTokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	for _, t := range r.saved {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, assert.AnError
}

func (r *fakeTokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	r.revoked = append(r.revoked, tokenID)
	return nil
}

func (r *fakeTokenRepo) RevokeAllUserTokens(ctx context.Context, userID id.ID, reason string) error {
	return nil
}

func (r *fakeTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func newLoginFixture(t *testing.T, password string) (*Service, *fakeUserRepo, *fakeTokenRepo, *User) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := NewUser("cashier@example.com", string(hash))
	users := newFakeUserRepo()
	require.NoError(t, users.Create(context.Background(), user))

	tokens := &fakeTokenRepo{}
	svc := NewService(users, tokens, fakeTxManager{},
		NewJWTService(DefaultJWTConfig("test-secret")), DefaultServiceConfig())
	return svc, users, tokens, user
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials return a token pair", func(t *testing.T) {
		svc, _, tokens, user := newLoginFixture(t, "correct-horse")

		pair, loggedIn, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "correct-horse"})
		require.NoError(t, err)

		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, "Bearer", pair.TokenType)
		assert.Equal(t, user.ID, loggedIn.ID)
		assert.Len(t, tokens.saved, 1)
		assert.Equal(t, 0, loggedIn.FailedLoginAttempts)
		assert.NotNil(t, loggedIn.LastLoginAt)
	})

	t.Run("wrong password bumps the failure counter", func(t *testing.T) {
		svc, users, _, user := newLoginFixture(t, "correct-horse")

		_, _, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "wrong"})
		require.Error(t, err)

		assert.Equal(t, 1, users.users[user.Email].FailedLoginAttempts)
		assert.Equal(t, 1, users.updates)
	})

	t.Run("counter persist failure does not mask the credential outcome", func(t *testing.T) {
		svc, users, tokens, user := newLoginFixture(t, "correct-horse")
		users.updateErr = assert.AnError

		// Failure path: still unauthorized, counter write attempted.
		_, _, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "wrong"})
		require.Error(t, err)
		assert.Equal(t, 1, users.updates)

		// Success path: tokens issued even though the reset could not persist.
		pair, _, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "correct-horse"})
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.Len(t, tokens.saved, 1)
	})

	t.Run("account locks after max attempts", func(t *testing.T) {
		svc, _, _, user := newLoginFixture(t, "correct-horse")

		for i := 0; i < DefaultServiceConfig().MaxLoginAttempts; i++ {
			_, _, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "wrong"})
			require.Error(t, err)
		}

		// Even the right password is rejected while the lock holds.
		_, _, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "correct-horse"})
		require.Error(t, err)
	})
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens, user := newLoginFixture(t, "correct-horse")

	pair, _, err := svc.Login(ctx, Credentials{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	rotated, err := svc.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.Len(t, tokens.revoked, 1)
	assert.Equal(t, tokens.saved[0].ID, tokens.revoked[0])
}
