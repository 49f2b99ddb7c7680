package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func randomSecret(t *testing.T) string {
	t.Helper()
	b := make([]byte, 32)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return hex.EncodeToString(b)
}

func testConfig(t *testing.T) Config {
	return Config{
		AccessSecret:  randomSecret(t),
		AccessTTL:     15 * time.Minute,
		RefreshSecret: randomSecret(t),
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "wedding-test",
	}
}

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func sampleClaims() Claims {
	return Claims{
		PrincipalID: "5f8f3c0e-1111-4c3b-9a55-2f7f6d1e0a01",
		Role:        "couple",
		Email:       "alice@example.com",
		Principal:   PrincipalUser,
	}
}

func TestNewCodec_RejectsSharedOrMissingSecrets(t *testing.T) {
	_, err := NewCodec(Config{AccessSecret: "same", RefreshSecret: "same"})
	require.Error(t, err)

	_, err = NewCodec(Config{AccessSecret: "only-access"})
	require.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	for _, kind := range []Kind{Access, Refresh} {
		t.Run(string(kind), func(t *testing.T) {
			codec, err := NewCodec(testConfig(t))
			require.NoError(t, err)

			in := sampleClaims()
			signed, err := codec.Issue(kind, in)
			require.NoError(t, err)
			require.NotEmpty(t, signed.Token)
			require.True(t, signed.ExpiresAt.After(time.Now()))

			out, err := codec.Verify(kind, signed.Token)
			require.NoError(t, err)
			require.Equal(t, in.PrincipalID, out.PrincipalID)
			require.Equal(t, in.Role, out.Role)
			require.Equal(t, in.Email, out.Email)
			require.Equal(t, in.Principal, out.Principal)
			require.Equal(t, in.PrincipalID, out.Subject)

			if kind == Refresh {
				require.NotEmpty(t, out.TokenID())
				require.Equal(t, signed.TokenID, out.TokenID())
			} else {
				require.Empty(t, out.TokenID())
			}
		})
	}
}

func TestIssue_RefreshTokenIDsAreUnique(t *testing.T) {
	codec, err := NewCodec(testConfig(t))
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		signed, err := codec.Issue(Refresh, sampleClaims())
		require.NoError(t, err)
		require.False(t, seen[signed.TokenID], "duplicate jti %s", signed.TokenID)
		seen[signed.TokenID] = true
	}
}

func TestVerify_Expired(t *testing.T) {
	for _, kind := range []Kind{Access, Refresh} {
		t.Run(string(kind), func(t *testing.T) {
			clock := &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
			codec, err := NewCodec(testConfig(t), WithClock(clock.Now))
			require.NoError(t, err)

			signed, err := codec.Issue(kind, sampleClaims())
			require.NoError(t, err)

			clock.Advance(codec.TTL(kind) + 2*time.Second)

			_, err = codec.Verify(kind, signed.Token)
			require.ErrorIs(t, err, ErrExpiredToken)
			require.NotErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestVerify_NegativeTTLIsExpired(t *testing.T) {
	cfg := testConfig(t)
	cfg.AccessTTL = -10 * time.Second
	codec, err := NewCodec(cfg)
	require.NoError(t, err)

	signed, err := codec.Issue(Access, sampleClaims())
	require.NoError(t, err)

	_, err = codec.Verify(Access, signed.Token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_KindsAreNotInterchangeable(t *testing.T) {
	codec, err := NewCodec(testConfig(t))
	require.NoError(t, err)

	access, err := codec.Issue(Access, sampleClaims())
	require.NoError(t, err)
	refresh, err := codec.Issue(Refresh, sampleClaims())
	require.NoError(t, err)

	_, err = codec.Verify(Refresh, access.Token)
	require.ErrorIs(t, err, ErrMalformedToken)

	_, err = codec.Verify(Access, refresh.Token)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestVerify_ForgedAndMalformed(t *testing.T) {
	cfg := testConfig(t)
	codec, err := NewCodec(cfg)
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Verify(Access, "not-a-jwt")
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		signed, err := codec.Issue(Access, sampleClaims())
		require.NoError(t, err)
		parts := strings.Split(signed.Token, ".")
		require.Len(t, parts, 3)

		other := sampleClaims()
		other.PrincipalID = "someone-else"
		forged, err := codec.Issue(Access, other)
		require.NoError(t, err)
		otherParts := strings.Split(forged.Token, ".")

		mixed := parts[0] + "." + otherParts[1] + "." + parts[2]
		_, err = codec.Verify(Access, mixed)
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("foreign secret", func(t *testing.T) {
		foreign, err := NewCodec(testConfig(t))
		require.NoError(t, err)
		signed, err := foreign.Issue(Access, sampleClaims())
		require.NoError(t, err)

		_, err = codec.Verify(Access, signed.Token)
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := sampleClaims()
		claims.Issuer = cfg.Issuer
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
		signed, err := tok.SignedString([]byte(cfg.AccessSecret))
		require.NoError(t, err)

		_, err = codec.Verify(Access, signed)
		require.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("refresh without jti", func(t *testing.T) {
		claims := sampleClaims()
		claims.Issuer = cfg.Issuer
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := tok.SignedString([]byte(cfg.RefreshSecret))
		require.NoError(t, err)

		_, err = codec.Verify(Refresh, signed)
		require.ErrorIs(t, err, ErrMalformedToken)
	})
}
