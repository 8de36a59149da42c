package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/gatehouse-dev/gatehouse/pkg/identity"
)

var testKeyPair *rsa.PrivateKey

const testKID = "test-key-1"

func init() {
	var err error
	testKeyPair, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic("generating test RSA key: " + err.Error())
	}
}

// jwksHandler serves a JWKS document for the test key and counts
// fetches.
func jwksHandler(fetchCount *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fetchCount != nil {
			fetchCount.Add(1)
		}
		pub := testKeyPair.Public().(*rsa.PublicKey)
		doc := jwksDocument{Keys: []jwkKey{{
			Kty: "RSA",
			Kid: testKID,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

// signToken signs claims with the test key under the test kid.
func signToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(testKeyPair)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func baseClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"iss": "https://issuer.test",
		"aud": "gatehouse",
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func newTestMechanism(t *testing.T, jwksURL string) *Mechanism {
	t.Helper()
	return New(Config{
		Issuer:   "https://issuer.test",
		Audience: "gatehouse",
		JWKSURL:  jwksURL,
	})
}

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest("GET", "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestMechanism_ValidToken(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	claims := baseClaims()
	claims["roles"] = []string{"user", "admin"}
	claims["tenant_id"] = "tenant-x"

	m := newTestMechanism(t, srv.URL)
	id, err := m.Resolve(context.Background(), bearerRequest(signToken(t, claims)))
	if err != nil {
		t.Fatal(err)
	}
	if id.Principal() != "alice" {
		t.Errorf("principal = %q, want alice", id.Principal())
	}
	if !id.HasRole("user") || !id.HasRole("admin") {
		t.Errorf("roles = %v, want user and admin", id.Roles())
	}
	if got := id.Attribute("tenant"); got != "tenant-x" {
		t.Errorf("tenant = %q, want tenant-x", got)
	}
}

func TestMechanism_SpaceSeparatedRoles(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	claims := baseClaims()
	claims["roles"] = "user admin"

	m := newTestMechanism(t, srv.URL)
	id, err := m.Resolve(context.Background(), bearerRequest(signToken(t, claims)))
	if err != nil {
		t.Fatal(err)
	}
	if !id.HasRole("user") || !id.HasRole("admin") {
		t.Errorf("roles = %v, want user and admin from a space-separated claim", id.Roles())
	}
}

func TestMechanism_AbstainsWithoutBearer(t *testing.T) {
	m := newTestMechanism(t, "http://unused.test/jwks")

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			_, err := m.Resolve(context.Background(), r)
			if !errors.Is(err, identity.ErrNoCredentials) {
				t.Errorf("err = %v, want ErrNoCredentials", err)
			}
		})
	}
}

func TestMechanism_RejectsExpiredToken(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	m := newTestMechanism(t, srv.URL)
	if _, err := m.Resolve(context.Background(), bearerRequest(signToken(t, claims))); err == nil {
		t.Error("expired token accepted")
	}
}

func TestMechanism_RejectsWrongIssuer(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	claims := baseClaims()
	claims["iss"] = "https://evil.test"

	m := newTestMechanism(t, srv.URL)
	if _, err := m.Resolve(context.Background(), bearerRequest(signToken(t, claims))); err == nil {
		t.Error("token with wrong issuer accepted")
	}
}

func TestMechanism_RejectsWrongAudience(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	claims := baseClaims()
	claims["aud"] = "another-service"

	m := newTestMechanism(t, srv.URL)
	if _, err := m.Resolve(context.Background(), bearerRequest(signToken(t, claims))); err == nil {
		t.Error("token with wrong audience accepted")
	}
}

func TestMechanism_RejectsBadSignature(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, baseClaims())
	token.Header["kid"] = testKID
	signed, err := token.SignedString(otherKey)
	if err != nil {
		t.Fatal(err)
	}

	m := newTestMechanism(t, srv.URL)
	if _, err := m.Resolve(context.Background(), bearerRequest(signed)); err == nil {
		t.Error("token signed by the wrong key accepted")
	}
}

func TestMechanism_RejectsUnsignedToken(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, baseClaims())
	token.Header["kid"] = testKID
	signed, err := token.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	m := newTestMechanism(t, srv.URL)
	if _, err := m.Resolve(context.Background(), bearerRequest(signed)); err == nil {
		t.Error("alg=none token accepted")
	}
}

func TestMechanism_RejectsMissingPrincipal(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	claims := baseClaims()
	delete(claims, "sub")

	m := newTestMechanism(t, srv.URL)
	if _, err := m.Resolve(context.Background(), bearerRequest(signToken(t, claims))); err == nil {
		t.Error("token without subject accepted")
	}
}

func TestMechanism_CustomClaimMapping(t *testing.T) {
	srv := httptest.NewServer(jwksHandler(nil))
	defer srv.Close()

	claims := baseClaims()
	claims["preferred_username"] = "alice@corp"
	claims["groups"] = []string{"engineering"}

	m := New(Config{
		Issuer:         "https://issuer.test",
		Audience:       "gatehouse",
		JWKSURL:        srv.URL,
		PrincipalClaim: "preferred_username",
		RolesClaim:     "groups",
	})
	id, err := m.Resolve(context.Background(), bearerRequest(signToken(t, claims)))
	if err != nil {
		t.Fatal(err)
	}
	if id.Principal() != "alice@corp" {
		t.Errorf("principal = %q, want alice@corp", id.Principal())
	}
	if !id.HasRole("engineering") {
		t.Errorf("roles = %v, want engineering", id.Roles())
	}
}

func TestKeyCache_FetchesOnce(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(jwksHandler(&fetches))
	defer srv.Close()

	m := newTestMechanism(t, srv.URL)
	for range 3 {
		if _, err := m.Resolve(context.Background(), bearerRequest(signToken(t, baseClaims()))); err != nil {
			t.Fatal(err)
		}
	}
	if fetches.Load() != 1 {
		t.Errorf("JWKS fetches = %d, want 1 (cached)", fetches.Load())
	}
}

func TestKeyCache_RefreshesOnUnknownKid(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(jwksHandler(&fetches))
	defer srv.Close()

	cache := newKeyCache(srv.URL, time.Hour, http.DefaultClient)
	if _, err := cache.get(context.Background(), testKID); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.get(context.Background(), "rotated-key"); err == nil {
		t.Error("unknown kid resolved to a key")
	}
	if fetches.Load() != 2 {
		t.Errorf("JWKS fetches = %d, want 2 (refresh on unknown kid)", fetches.Load())
	}
}

func TestKeyCache_EndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := newKeyCache(srv.URL, time.Hour, http.DefaultClient)
	if _, err := cache.get(context.Background(), testKID); err == nil {
		t.Error("no error from a failing JWKS endpoint")
	}
}
