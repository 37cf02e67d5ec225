// internal/auth/auth_test.go
package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	Init()

	token, err := CreateJWT("alice")
	require.NoError(t, err)

	nickname, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", nickname)

	_, err = AuthenticateJWT("garbage.token.here")
	assert.Error(t, err)
}

func TestValidNickname(t *testing.T) {
	assert.True(t, ValidNickname("alice"))
	assert.True(t, ValidNickname("Player_2-b"))
	assert.False(t, ValidNickname(""))
	assert.False(t, ValidNickname("has spaces"))
	assert.False(t, ValidNickname("waytoolongnicknameforanyreasonablegame"))
	assert.False(t, ValidNickname("émoji"))
}

func TestEnsureNicknameFromQuery(t *testing.T) {
	Init()

	req := httptest.NewRequest("GET", "/game/ws?nickname=alice", nil)
	w := httptest.NewRecorder()
	nickname, err := EnsureNickname(w, req)
	require.NoError(t, err)
	assert.Equal(t, "alice", nickname)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)

	// The minted cookie round-trips to the same identity.
	req2 := httptest.NewRequest("GET", "/game/ws", nil)
	req2.AddCookie(cookies[0])
	w2 := httptest.NewRecorder()
	nickname, err = EnsureNickname(w2, req2)
	require.NoError(t, err)
	assert.Equal(t, "alice", nickname)
}

func TestEnsureNicknameGeneratesGuest(t *testing.T) {
	Init()

	req := httptest.NewRequest("GET", "/game/ws", nil)
	w := httptest.NewRecorder()
	nickname, err := EnsureNickname(w, req)
	require.NoError(t, err)
	assert.Contains(t, nickname, "guest-")
}

func TestEnsureNicknameRejectsInvalid(t *testing.T) {
	Init()

	req := httptest.NewRequest("GET", "/game/ws?nickname=bad%20name", nil)
	w := httptest.NewRecorder()
	_, err := EnsureNickname(w, req)
	assert.Error(t, err)
}

func TestPasscodeHashAndVerify(t *testing.T) {
	hash, err := HashPasscode("hunter2")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPasscode("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPasscode("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPasscode("hunter2", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

// argon2.IDKey panics when the parallelism degree is zero; the default
// parameters must stay valid even on a single-CPU host.
func TestPasscodeParamsValidOnAnyHost(t *testing.T) {
	assert.GreaterOrEqual(t, Params.parallelism, uint8(1))

	single := &params{
		memory:      32 * 1024,
		iterations:  3,
		parallelism: uint8(max(1, 1/2)),
		saltLength:  16,
		keyLength:   32,
	}
	assert.Equal(t, uint8(1), single.parallelism)
}

func TestPasscodeHashesAreSalted(t *testing.T) {
	a, err := HashPasscode("same")
	require.NoError(t, err)
	b, err := HashPasscode("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
