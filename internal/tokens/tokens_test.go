package tokens

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openlis/lis-api/internal/config"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/middleware"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	cfg.JWT.Issuer = "lis-api"
	return cfg
}

func testUser() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Username: "tech1", Name: "Test Tech", Role: models.RoleTechnician}
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := testConfig("test-secret-32-bytes-should-be-long-enough")
	u := testUser()

	tokenStr, err := GenerateAccessToken(cfg, u, 2*time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg.JWT.Secret, cfg.JWT.Issuer, tokenStr)
	require.NoError(t, err)
	require.Equal(t, u.ID.Hex(), claims.UserID)
	require.Equal(t, models.RoleTechnician, claims.Role)
	require.NotEmpty(t, claims.ID)
	require.InDelta(t, (2 * time.Minute).Seconds(), claims.Remaining().Seconds(), 5)
}

func TestGenerateAccessToken_Expiry(t *testing.T) {
	cfg := testConfig("another-secret-32-bytes-longgggg")
	tokenStr, err := GenerateAccessToken(cfg, testUser(), 1*time.Second)
	require.NoError(t, err)
	time.Sleep(2 * time.Second)
	_, err = ParseAccessToken(cfg.JWT.Secret, cfg.JWT.Issuer, tokenStr)
	require.Error(t, err)
}

func TestParseToken_WrongSecretOrIssuerFails(t *testing.T) {
	cfg := testConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, testUser(), 2*time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken("different-secret-xxxxxxxxxxxxxxxx", cfg.JWT.Issuer, tokenStr)
	require.Error(t, err)
	_, err = ParseAccessToken(cfg.JWT.Secret, "someone-else", tokenStr)
	require.Error(t, err)
}

func TestParseToken_Malformed(t *testing.T) {
	_, err := ParseAccessToken("x", "", "not.a.jwt")
	require.Error(t, err)
}

func TestParseToken_AlgNoneRejected(t *testing.T) {
	headerEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"alg":"none"}`))
	payloadEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"userId":"u-none","role":"admin","exp":9999999999}`))
	_, err := ParseAccessToken("x", "", headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

func TestParseToken_TamperedPayload(t *testing.T) {
	cfg := testConfig("tamper-test-secret-32-bytes-xxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, testUser(), 5*time.Minute)
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)
	payloadBytes, _ := jwt.NewParser().DecodeSegment(parts[1])
	parts[1] = (&jwt.Token{}).EncodeSegment([]byte(strings.Replace(string(payloadBytes), `"technician"`, `"admin"`, 1)))
	_, err = ParseAccessToken(cfg.JWT.Secret, cfg.JWT.Issuer, strings.Join(parts, "."))
	require.Error(t, err)
}

func TestJWTVerifier_ProducesPrincipal(t *testing.T) {
	cfg := testConfig("verifier-secret-32-bytes-xxxxxxxxxxx")
	u := testUser()
	tokenStr, err := GenerateAccessToken(cfg, u, time.Minute)
	require.NoError(t, err)

	tok, err := NewJWTVerifier(cfg).Verify(context.Background(), tokenStr)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	p, err := middleware.PrincipalFromClaims(claims)
	require.NoError(t, err)
	require.Equal(t, models.Principal{UserID: u.ID.Hex(), Role: models.RoleTechnician}, p)
}
