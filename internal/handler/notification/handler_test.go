package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository/memory"
	notifsvc "github.com/evlink/warranty-notify/internal/service/notification"
	"github.com/evlink/warranty-notify/internal/service/recipient"
	"github.com/evlink/warranty-notify/pkg/logger"
)

func strPtr(s string) *string { return &s }

func setupRouter(t *testing.T, recipients ...*model.Recipient) (*gin.Engine, notifsvc.Service, *memory.QueueRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.NewNotificationRepository()
	queue := memory.NewQueueRepository()
	rcpts := memory.NewRecipientRepository(recipients...)
	resolver := recipient.NewResolver(rcpts, time.Minute)
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := notifsvc.NewService(repo, queue, resolver, log)

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc, queue
}

// deliverAll drains the queue as if the dispatcher delivered every row.
func deliverAll(t *testing.T, queue *memory.QueueRepository) {
	t.Helper()
	ctx := context.Background()
	for {
		batch, err := queue.ClaimBatch(ctx, 10)
		require.NoError(t, err)
		if len(batch) == 0 {
			return
		}
		for _, item := range batch {
			require.NoError(t, queue.Complete(ctx, item.ID, "msg-"+item.ID.String()))
		}
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateNotificationEndpoint(t *testing.T) {
	rcpt := &model.Recipient{ID: uuid.New(), Name: "Kim", Email: strPtr("kim@example.com")}
	r, _, _ := setupRouter(t, rcpt)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notifications", gin.H{
		"recipient_id": rcpt.ID,
		"title":        "Claim update",
		"message":      "Your claim moved to review.",
		"type":         "warranty_claim",
		"channels":     []string{"email"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := envelope(t, w)
	assert.Equal(t, "success", resp["status"])
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.NotEmpty(t, data["id"])
}

func TestCreateNotificationRejectsBadPayload(t *testing.T) {
	r, _, _ := setupRouter(t)

	// Missing required title fails binding.
	w := doJSON(t, r, http.MethodPost, "/api/v1/notifications", gin.H{
		"recipient_id": uuid.New(),
		"message":      "m",
		"type":         "info",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "error", envelope(t, w)["status"])
}

func TestCreateNotificationInvalidType(t *testing.T) {
	rcpt := &model.Recipient{ID: uuid.New(), Name: "Kim", Email: strPtr("kim@example.com")}
	r, _, _ := setupRouter(t, rcpt)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notifications", gin.H{
		"recipient_id": rcpt.ID,
		"title":        "t",
		"message":      "m",
		"type":         "carrier-pigeon",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetNotificationNotFound(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/notifications/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/notifications/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkReadEndpoint(t *testing.T) {
	rcpt := &model.Recipient{ID: uuid.New(), Name: "Kim", Email: strPtr("kim@example.com")}
	r, svc, queue := setupRouter(t, rcpt)

	n, err := svc.Create(context.Background(), &model.CreateNotificationRequest{
		RecipientID: rcpt.ID,
		Title:       "t",
		Message:     "m",
		Type:        "info",
	})
	require.NoError(t, err)

	// Reading before any channel was delivered is rejected.
	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/read", n.ID), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	deliverAll(t, queue)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/read", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := envelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["already_read"])

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%s/read", n.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = envelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["already_read"])
}

func TestListForRecipientEndpoint(t *testing.T) {
	rcpt := &model.Recipient{ID: uuid.New(), Name: "Kim", Email: strPtr("kim@example.com")}
	r, svc, _ := setupRouter(t, rcpt)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), &model.CreateNotificationRequest{
			RecipientID: rcpt.ID,
			Title:       "t",
			Message:     "m",
			Type:        "info",
		})
		require.NoError(t, err)
	}

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/recipients/%s/notifications?limit=2", rcpt.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := envelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(3), data["unread_count"])
	assert.Len(t, data["notifications"], 2)
}
