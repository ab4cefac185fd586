package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/devclip/clipsync/internal/infrastructure/cipher"
	"github.com/devclip/clipsync/internal/infrastructure/store"
	"github.com/devclip/clipsync/internal/infrastructure/ws"
	"github.com/devclip/clipsync/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	sessions *service.SessionService
	router   *chi.Mux
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := zap.NewNop().Sugar()
	sessions := service.NewSessionService(store.NewMemoryStore(), cipher.NewAESGCM(), domain.SessionTTL, logger)
	groups := ws.NewGroupManager()
	core := ws.NewCore(groups, sessions, logger)
	handler := NewHandler(sessions, groups, core)

	router := chi.NewRouter()
	router.Post("/api/device/connect", handler.ConnectHandler)
	router.Get("/api/device/{code}/clipboard", handler.GetClipboardHandler)

	return &harness{sessions: sessions, router: router}
}

func (h *harness) connect(t *testing.T, body string) (*httptest.ResponseRecorder, connectResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/device/connect", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var resp connectResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestConnectCreatesDevice(t *testing.T) {
	h := newHarness(t)

	rec, resp := h.connect(t, `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.True(t, resp.IsNew)
	assert.True(t, domain.ValidCode(resp.DeviceCode))
	assert.Len(t, resp.SecretKey, 64)
}

func TestConnectWithEmptyBodyCreatesDevice(t *testing.T) {
	h := newHarness(t)

	rec, resp := h.connect(t, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.IsNew)
	assert.True(t, domain.ValidCode(resp.DeviceCode))
}

func TestConnectJoinsExistingDevice(t *testing.T) {
	h := newHarness(t)

	_, created := h.connect(t, `{}`)

	rec, joined := h.connect(t, `{"code":"`+created.DeviceCode+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, joined.IsNew)
	assert.Equal(t, created.DeviceCode, joined.DeviceCode)
	assert.Equal(t, created.SecretKey, joined.SecretKey)
}

func TestConnectUnknownCode(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.connect(t, `{"code":"999999"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Device not found")
}

func TestConnectMalformedCode(t *testing.T) {
	h := newHarness(t)

	for _, body := range []string{`{"code":"123"}`, `{"code":"abcdef"}`, `{"code":"12345678"}`} {
		rec, _ := h.connect(t, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
		assert.Contains(t, rec.Body.String(), "Device code must be 6 digits")
	}
}

func TestConnectRejectsUnknownFields(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.connect(t, `{"code":"123456","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetClipboard(t *testing.T) {
	h := newHarness(t)

	_, created := h.connect(t, `{}`)

	_, _, err := h.sessions.Update(context.Background(), created.DeviceCode, created.SecretKey, "copied text")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/device/"+created.DeviceCode+"/clipboard", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp clipboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "copied text", resp.Text)
	assert.NotEmpty(t, resp.LastUpdate)
}

func TestGetClipboardUnknownCode(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/device/999999/clipboard", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetClipboardMalformedCode(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/device/notacode/clipboard", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
