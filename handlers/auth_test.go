package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"easicart-api/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func setupAuthTest(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewAuthHandler(db, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/signup", handler.Signup)
	router.POST("/login", handler.Login)

	return handler, mock, router
}

func TestAuthHandler_Signup_Success(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	// Mock: Check if user exists (should return no rows)
	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnError(sql.ErrNoRows)

	// Mock: Insert user
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Ada Obi", "ada@example.com", "+2348000000000", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "phone", "created_at"}).
			AddRow(1, "Ada Obi", "ada@example.com", "+2348000000000", time.Now()))

	reqBody := models.SignupRequest{
		FullName: "Ada Obi",
		Email:    "ada@example.com",
		Phone:    "+2348000000000",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/signup", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Signup_EmailExists(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	// Mock: User already exists
	mock.ExpectQuery("SELECT id FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	reqBody := models.SignupRequest{
		FullName: "Ada Obi",
		Email:    "ada@example.com",
		Phone:    "+2348000000000",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/signup", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Signup_MissingFields(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	// No database expectations - should return early before any DB calls
	reqBody := models.SignupRequest{
		Email:    "ada@example.com",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/signup", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT id, full_name, email, phone, password_hash, created_at FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "phone", "password_hash", "created_at"}).
			AddRow(1, "Ada Obi", "ada@example.com", "+2348000000000", string(hashedPassword), time.Now()))

	reqBody := models.LoginRequest{
		Email:    "ada@example.com",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected a JWT token in the response")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	// Mock: User not found
	mock.ExpectQuery("SELECT id, full_name, email, phone, password_hash, created_at FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnError(sql.ErrNoRows)

	reqBody := models.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrongpassword",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT id, full_name, email, phone, password_hash, created_at FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "phone", "password_hash", "created_at"}).
			AddRow(1, "Ada Obi", "ada@example.com", "+2348000000000", string(hashedPassword), time.Now()))

	reqBody := models.LoginRequest{
		Email:    "ada@example.com",
		Password: "not-the-password",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
