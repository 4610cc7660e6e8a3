package handlers

import (
	"net/http"
	"testing"

	"github.com/filevault/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

func TestRegisterCreatesUserAndReturnsToken(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", fiber.Map{
		"email":     "New.User@Example.com",
		"password":  "supersecret",
		"firstName": "New",
		"lastName":  "User",
	}, nil)
	assertStatus(t, resp, http.StatusCreated)

	data := dataMap(t, decodeJSONMap(t, resp))
	if token, _ := data["token"].(string); token == "" {
		t.Fatal("expected a session token in the response")
	}

	var user models.User
	if err := env.db.First(&user, "email = ?", "new.user@example.com").Error; err != nil {
		t.Fatalf("expected user persisted with lowercased email: %v", err)
	}
	if user.Role != models.UserRoleUser {
		t.Fatalf("expected default user role, got %q", user.Role)
	}
	if user.PasswordHash == "supersecret" {
		t.Fatal("password must not be stored in the clear")
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		name    string
		payload fiber.Map
	}{
		{"bad email", fiber.Map{"email": "not-an-email", "password": "supersecret", "firstName": "A", "lastName": "B"}},
		{"short password", fiber.Map{"email": "a@b.com", "password": "short", "firstName": "A", "lastName": "B"}},
		{"missing name", fiber.Map{"email": "a@b.com", "password": "supersecret", "firstName": "", "lastName": "B"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", tc.payload, nil)
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "taken@example.com", "supersecret", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", fiber.Map{
		"email":     "taken@example.com",
		"password":  "supersecret",
		"firstName": "Dup",
		"lastName":  "User",
	}, nil)
	assertStatus(t, resp, http.StatusConflict)
}

func TestLogin(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "login@example.com", "supersecret", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "login@example.com",
		"password": "supersecret",
	}, nil)
	assertStatus(t, resp, http.StatusOK)

	data := dataMap(t, decodeJSONMap(t, resp))
	if token, _ := data["token"].(string); token == "" {
		t.Fatal("expected a session token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "login@example.com", "supersecret", models.UserRoleUser)

	wrongPassword := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "login@example.com",
		"password": "wrong-password",
	}, nil)
	assertStatus(t, wrongPassword, http.StatusUnauthorized)
	assertEnvelopeError(t, decodeJSONMap(t, wrongPassword), "invalid credentials")

	unknownUser := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "nobody@example.com",
		"password": "supersecret",
	}, nil)
	assertStatus(t, unknownUser, http.StatusUnauthorized)
	assertEnvelopeError(t, decodeJSONMap(t, unknownUser), "invalid credentials")
}

func TestMe(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "me@example.com", "supersecret", models.UserRoleUser)

	resp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	data := dataMap(t, decodeJSONMap(t, resp))
	if got, _ := data["email"].(string); got != user.Email {
		t.Fatalf("expected email %q, got %q", user.Email, got)
	}

	unauthenticated := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
	assertStatus(t, unauthenticated, http.StatusUnauthorized)
}
