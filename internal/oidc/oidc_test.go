package oidc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/middleware"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://sso.example.org/realms/lab"
	testClientID = "lis-api"
)

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerifier_AcceptsRealmRoleToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewStaticVerifier(testIssuer, testClientID, &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}})

	raw := signRS256(t, key, jwt.MapClaims{
		"iss":          testIssuer,
		"aud":          testClientID,
		"sub":          "kc-user-1",
		"exp":          time.Now().Add(time.Minute).Unix(),
		"iat":          time.Now().Unix(),
		"realm_access": map[string]interface{}{"roles": []string{"offline_access", "phlebotomist"}},
	})

	tok, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	p, err := middleware.PrincipalFromClaims(claims)
	require.NoError(t, err)
	require.Equal(t, models.Principal{UserID: "kc-user-1", Role: models.RolePhlebotomist}, p)
}

func TestVerifier_RejectsWrongAudienceAndKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewStaticVerifier(testIssuer, testClientID, &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}})

	base := jwt.MapClaims{"iss": testIssuer, "sub": "x", "exp": time.Now().Add(time.Minute).Unix()}

	base["aud"] = "another-client"
	_, err = v.Verify(context.Background(), signRS256(t, key, base))
	require.Error(t, err)

	base["aud"] = testClientID
	_, err = v.Verify(context.Background(), signRS256(t, other, base))
	require.Error(t, err)
}
