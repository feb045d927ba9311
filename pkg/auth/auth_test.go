package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "slotify/pkg/errors"
	httputil "slotify/pkg/http"
	"slotify/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	token, err := SignHS256(Claims{Sub: sub, Role: role, Exp: exp.Unix()}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func TestHS256RoundTrip(t *testing.T) {
	now := time.Now()
	token := sign(t, "user-1", "user", now.Add(time.Hour))

	claims, err := ParseAndVerifyHS256(token, testSecret, now)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if claims.Sub != "user-1" || claims.IsAdmin() {
		t.Fatalf("claims mismatch: got %+v", claims)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret", now); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, testSecret, now.Add(2*time.Hour)); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseAndVerifyHS256_Malformed(t *testing.T) {
	for _, token := range []string{"", "a.b", "a.b.c", "!!!.???.###"} {
		if _, err := ParseAndVerifyHS256(token, testSecret, time.Now()); err == nil {
			t.Errorf("expected error for %q", token)
		}
	}
}

func TestParseAndVerifyHS256_RequiresExpiry(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "user-1", Role: "user"}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, testSecret, time.Now()); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for a token without exp, got %v", err)
	}
}

func TestParseAndVerifyHS256_RejectsOtherAlgorithms(t *testing.T) {
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	claims := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: exp}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign HS512 token: %v", err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	for name, token := range map[string]string{"HS512": hs512, "none": unsigned} {
		if _, err := ParseAndVerifyHS256(token, testSecret, time.Now()); err != ErrInvalidToken {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestParseAndVerifyHS256_RequiresSubject(t *testing.T) {
	token := sign(t, "", "user", time.Now().Add(time.Hour))
	if _, err := ParseAndVerifyHS256(token, testSecret, time.Now()); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken without sub, got %v", err)
	}
}

func serve(t *testing.T, wrap func(httprouter.Handle) httprouter.Handle, authz string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	router := httprouter.New()
	router.GET("/x", wrap(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, seen
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error.Code
}

func TestAuthenticator_User(t *testing.T) {
	a := NewAuthenticator(testSecret, logger.Discard())
	valid := sign(t, "alice", "user", time.Now().Add(time.Hour))

	rec, seen := serve(t, a.User, "Bearer "+valid)
	if rec.Code != http.StatusOK || seen != "alice" {
		t.Fatalf("expected 200 for alice, got %d (%q)", rec.Code, seen)
	}

	tests := []struct {
		name  string
		authz string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + valid},
		{"bad signature", "Bearer " + valid + "x"},
		{"expired", "Bearer " + sign(t, "alice", "user", time.Now().Add(-time.Minute))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serve(t, a.User, tt.authz)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if code := errorCode(t, rec); code != apperrors.CodeUnauthorized {
				t.Errorf("expected %s, got %s", apperrors.CodeUnauthorized, code)
			}
		})
	}
}

func TestAuthenticator_Admin(t *testing.T) {
	a := NewAuthenticator(testSecret, logger.Discard())

	rec, _ := serve(t, a.Admin, "Bearer "+sign(t, "alice", "user", time.Now().Add(time.Hour)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != apperrors.CodeForbidden {
		t.Errorf("expected %s, got %s", apperrors.CodeForbidden, code)
	}

	rec, seen := serve(t, a.Admin, "Bearer "+sign(t, "root", RoleAdmin, time.Now().Add(time.Hour)))
	if rec.Code != http.StatusOK || seen != "root" {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}

	rec, _ = serve(t, a.Admin, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestAuthenticator_Subject(t *testing.T) {
	a := NewAuthenticator(testSecret, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
	if got := a.Subject(req); got != "" {
		t.Fatalf("expected empty subject without token, got %q", got)
	}

	req.Header.Set("Authorization", "Bearer "+sign(t, "user-7", "user", time.Now().Add(time.Hour)))
	if got := a.Subject(req); got != "user:user-7" {
		t.Fatalf("expected user:user-7, got %q", got)
	}

	req.Header.Set("Authorization", "Bearer "+sign(t, "user-7", "user", time.Now().Add(-time.Hour)))
	if got := a.Subject(req); got != "" {
		t.Fatalf("expected empty subject for expired token, got %q", got)
	}
}
