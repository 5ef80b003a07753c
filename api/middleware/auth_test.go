package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/aquaflowhq/aquaflow-backend/pkg/auth"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "aquaflow", ExpirationMinutes: 15}
}

func mintToken(t *testing.T, cfg config.JWTConfig, role enums.Role, franchiseID *uuid.UUID) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:      userID,
		Role:        role,
		FranchiseID: franchiseID,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}
	return token, userID
}

func TestAuthSeedsActorContext(t *testing.T) {
	cfg := testJWTConfig()
	franchiseID := uuid.New()
	token, userID := mintToken(t, cfg, enums.RoleFranchiseOwner, &franchiseID)

	var seen struct {
		userID      string
		role        string
		franchiseID string
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.userID = UserIDFromContext(r.Context())
		seen.role = RoleFromContext(r.Context())
		seen.franchiseID = FranchiseIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	handler := Auth(cfg, logger.New(logger.Options{ServiceName: "test"}))(next)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if seen.userID != userID.String() {
		t.Fatalf("expected user %s, got %s", userID, seen.userID)
	}
	if seen.role != string(enums.RoleFranchiseOwner) {
		t.Fatalf("unexpected role %s", seen.role)
	}
	if seen.franchiseID != franchiseID.String() {
		t.Fatalf("unexpected franchise %s", seen.franchiseID)
	}

	actor, err := ActorFromContext(WithRole(WithUserID(nil, seen.userID), seen.role))
	if err != nil {
		t.Fatalf("ActorFromContext: %v", err)
	}
	if actor.UserID != userID || actor.Role != enums.RoleFranchiseOwner {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestAuthRejectsMissingAndMalformedCredentials(t *testing.T) {
	cfg := testJWTConfig()
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	for name, header := range map[string]string{
		"missing": "",
		"empty":   "Bearer ",
		"garbage": "Bearer not.a.jwt",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, w.Code)
		}
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	token, _ := func() (string, uuid.UUID) {
		userID := uuid.New()
		signed, err := pkgAuth.MintAccessToken(cfg, time.Now().Add(-2*time.Hour), pkgAuth.AccessTokenPayload{
			UserID: userID,
			Role:   enums.RoleCustomer,
		})
		if err != nil {
			t.Fatalf("MintAccessToken: %v", err)
		}
		return signed, userID
	}()

	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole(nil, enums.RoleAdmin)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.RoleCustomer)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.RoleAdmin)))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}
