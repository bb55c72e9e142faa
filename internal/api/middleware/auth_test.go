package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key"

const testIssuer = "https://idp.example.com/realms/blobs"

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

// newTestJWTAuth создаёт JWTAuth с RSA ключом для тестов.
func newTestJWTAuth(t *testing.T) (*JWTAuth, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc из JWKS JSON: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJWTAuthWithKeyfunc(kf, testIssuer, 5*time.Second, logger), key
}

// signToken подписывает claims ключом для тестов.
func signToken(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "svc-uploader",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ScopeString: "blobs:read blobs:write",
	}
}

func serveWithToken(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/blobs", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestJWTAuth_ValidToken проверяет валидный JWT и контекст запроса.
func TestJWTAuth_ValidToken(t *testing.T) {
	auth, key := newTestJWTAuth(t)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub := SubjectFromContext(r.Context()); sub != "svc-uploader" {
			t.Errorf("ожидался sub=svc-uploader, получен %s", sub)
		}
		scopes := ScopesFromContext(r.Context())
		if len(scopes) != 2 || scopes[0] != "blobs:read" {
			t.Errorf("неожиданные scopes: %v", scopes)
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := serveWithToken(handler, "Bearer "+signToken(t, key, validClaims()))
	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_Rejected проверяет отказы с 401.
func TestJWTAuth_Rejected(t *testing.T) {
	auth, key := newTestJWTAuth(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.example.com"

	noSubject := validClaims()
	noSubject.Subject = ""

	noExp := validClaims()
	noExp.ExpiresAt = nil

	tests := []struct {
		name   string
		header string
	}{
		{"нет заголовка", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"без префикса bearer", "token123"},
		{"пустой токен", "Bearer "},
		{"мусор", "Bearer not.a.jwt"},
		{"просрочен", "Bearer " + signToken(t, key, expired)},
		{"чужой issuer", "Bearer " + signToken(t, key, wrongIssuer)},
		{"нет sub", "Bearer " + signToken(t, key, noSubject)},
		{"нет exp", "Bearer " + signToken(t, key, noExp)},
		{"чужая подпись", "Bearer " + signToken(t, otherKey, validClaims())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithToken(handler, tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

// TestClaims_Scopes проверяет объединение двух форматов scopes.
func TestClaims_Scopes(t *testing.T) {
	c := Claims{ScopeString: "a b", ScopeArray: []string{"c"}}
	got := c.Scopes()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Scopes() = %v", got)
	}
	if got := (&Claims{}).Scopes(); len(got) != 0 {
		t.Errorf("ожидался пустой список, получено %v", got)
	}
}

// TestRequireScope проверяет авторизацию по scope.
func TestRequireScope(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		scope  string
		scopes []string
		set    bool
		want   int
	}{
		{"scope есть", "blobs:read", []string{"blobs:read"}, true, http.StatusOK},
		{"scope нет", "blobs:write", []string{"blobs:read"}, true, http.StatusForbidden},
		{"scopes не в контексте", "blobs:read", nil, false, http.StatusForbidden},
		{"пустой список scopes", "blobs:read", []string{}, true, http.StatusForbidden},
		{"пустой scope не проверяется", "", nil, false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.set {
				ctx = context.WithValue(ctx, ContextKeyScopes, tt.scopes)
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			RequireScope(tt.scope)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("ожидался статус %d, получен %d", tt.want, rec.Code)
			}
		})
	}
}

// TestRequireMethodScopes проверяет выбор scope по методу.
func TestRequireMethodScopes(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireMethodScopes("blobs:read", "blobs:write")(ok)

	tests := []struct {
		method string
		scopes []string
		want   int
	}{
		{http.MethodGet, []string{"blobs:read"}, http.StatusOK},
		{http.MethodPost, []string{"blobs:read"}, http.StatusForbidden},
		{http.MethodDelete, []string{"blobs:write"}, http.StatusOK},
		{http.MethodGet, []string{"blobs:write"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			ctx := context.WithValue(context.Background(), ContextKeyScopes, tt.scopes)
			req := httptest.NewRequest(tt.method, "/v1/blobs", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("%s %v: ожидался статус %d, получен %d", tt.method, tt.scopes, tt.want, rec.Code)
			}
		})
	}
}

func TestSubjectFromContext_Empty(t *testing.T) {
	if sub := SubjectFromContext(context.Background()); sub != "" {
		t.Errorf("ожидалась пустая строка, получено %q", sub)
	}
}
