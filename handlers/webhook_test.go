package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama/mocks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testWebhookSecret = "test-webhook-secret"

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func setupWebhookTest(t *testing.T, producer *mocks.SyncProducer) (*WebhookHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewWebhookHandler(db, producer, testWebhookSecret, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/payments/webhook", handler.HandlePaymentWebhook)

	return handler, mock, router
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_PendingToPaid(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	handler, mock, router := setupWebhookTest(t, producer)
	defer handler.db.Close()

	mock.ExpectQuery("UPDATE orders SET status").
		WithArgs("paid", "ORD_abc123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "total"}).AddRow(10, 1, 45.00))
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs("paid", "ORD_abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := []byte(`{"merchant_tx_ref":"ORD_abc123","status":"paid"}`)
	w := postWebhook(router, body, signBody(body))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"status":"ok"}` {
		t.Errorf("Expected ok acknowledgment, got %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestWebhookHandler_PendingToFailed(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	handler, mock, router := setupWebhookTest(t, producer)
	defer handler.db.Close()

	// Free-form gateway statuses that are not a success map onto failed
	mock.ExpectQuery("UPDATE orders SET status").
		WithArgs("failed", "ORD_abc123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "total"}).AddRow(10, 1, 45.00))
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs("failed", "ORD_abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := []byte(`{"merchant_tx_ref":"ORD_abc123","status":"declined"}`)
	w := postWebhook(router, body, signBody(body))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestWebhookHandler_Replay_IsNoOp(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	handler, mock, router := setupWebhookTest(t, producer)
	defer handler.db.Close()

	// Conditional update misses because the order is already terminal
	mock.ExpectQuery("UPDATE orders SET status").
		WithArgs("paid", "ORD_abc123").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM orders WHERE merchant_ref").
		WithArgs("ORD_abc123").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("paid"))

	body := []byte(`{"merchant_tx_ref":"ORD_abc123","status":"paid"}`)
	w := postWebhook(router, body, signBody(body))

	// Still acknowledged so the gateway stops retrying
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if got := w.Body.String(); got != `{"status":"ok"}` {
		t.Errorf("Expected ok acknowledgment, got %s", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestWebhookHandler_UnknownRef(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	handler, mock, router := setupWebhookTest(t, producer)
	defer handler.db.Close()

	mock.ExpectQuery("UPDATE orders SET status").
		WithArgs("paid", "ORD_missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM orders WHERE merchant_ref").
		WithArgs("ORD_missing").
		WillReturnError(sql.ErrNoRows)

	body := []byte(`{"merchant_tx_ref":"ORD_missing","status":"paid"}`)
	w := postWebhook(router, body, signBody(body))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	handler, mock, router := setupWebhookTest(t, producer)
	defer handler.db.Close()

	body := []byte(`{"merchant_tx_ref":"ORD_abc123","status":"paid"}`)
	w := postWebhook(router, body, "deadbeef")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	// No state may be touched
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	handler, mock, router := setupWebhookTest(t, producer)
	defer handler.db.Close()

	body := []byte(`{"merchant_tx_ref":"ORD_abc123","status":"paid"}`)
	w := postWebhook(router, body, "")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestWebhookHandler_MissingFields(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	handler, mock, router := setupWebhookTest(t, producer)
	defer handler.db.Close()

	body := []byte(`{"merchant_tx_ref":"ORD_abc123"}`)
	w := postWebhook(router, body, signBody(body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}
