package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/stone-edge/queue_layer/internal/app"
	"github.com/stone-edge/queue_layer/internal/app/services/observations"
)

func newTestHandler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	core, err := app.New(app.Stores{}, app.Options{}, nil)
	require.NoError(t, err)
	return NewHandler(core, opts, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createProgram(t *testing.T, h http.Handler, user, name string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/programs", user, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]any](t, rec)
	return created["id"].(string)
}

func validSubmission(programID string) map[string]any {
	return map[string]any{
		"program":  programID,
		"target":   "M31",
		"exptime":  "30",
		"expcount": "3",
		"binning":  "2",
		"filters":  map[string]bool{"clear": true, "r": true},
		"lunar":    "15",
	}
}

func TestRequiresIdentity(t *testing.T) {
	h := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodGet, "/observations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthSkipsIdentity(t *testing.T) {
	h := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitObservation(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	rec := doJSON(t, h, http.MethodPost, "/observations", "alice", validSubmission(programID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "alice", created["owner"])
	assert.Equal(t, "M31", created["target"])
	assert.Equal(t, []any{"clear", "r-band"}, created["filters"])
	assert.Equal(t, false, created["completed"])
}

func TestSubmitValidationFailure(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	payload := validSubmission(programID)
	payload["target"] = "M"
	payload["exptime"] = "0.05"
	rec := doJSON(t, h, http.MethodPost, "/observations", "alice", payload)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Equal(t, "That doesn't look like a real target...", body.Fields["target"])
	assert.Equal(t, "That exposure time is too short; minimum exposure-time is 0.1s", body.Fields["exptime"])
}

func TestSubmitForeignProgram(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	rec := doJSON(t, h, http.MethodPost, "/observations", "bob", validSubmission(programID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLifecycleEndpoints(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	rec := doJSON(t, h, http.MethodPost, "/observations", "alice", validSubmission(programID))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[map[string]any](t, rec)
	id := created["id"].(string)

	// Toggle completed.
	rec = doJSON(t, h, http.MethodPatch, "/observations/"+id, "alice", map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, updated["completed"])

	// A non-owner cannot toggle or delete.
	rec = doJSON(t, h, http.MethodPatch, "/observations/"+id, "bob", map[string]any{"completed": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/observations/"+id, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Owner deletes; a second delete is a 404.
	rec = doJSON(t, h, http.MethodDelete, "/observations/"+id, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/observations/"+id, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchRequiresCompletedField(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	rec := doJSON(t, h, http.MethodPost, "/observations", "alice", validSubmission(programID))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodPatch, "/observations/"+id, "alice", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndRows(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	rec := doJSON(t, h, http.MethodPost, "/observations", "alice", validSubmission(programID))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/observations", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]map[string]any](t, rec)
	require.Len(t, list, 1)

	rec = doJSON(t, h, http.MethodGet, "/observations", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]map[string]any](t, rec))

	rec = doJSON(t, h, http.MethodGet, "/observations/rows", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decodeBody[[]observations.Row](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "galaxies", rows[0].Program)
	assert.Equal(t, "clear, r-band", rows[0].Filters)
	assert.Equal(t, "No", rows[0].Completed)
}

func TestPendingEndpoint(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	rec := doJSON(t, h, http.MethodPost, "/observations", "alice", validSubmission(programID))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[map[string]any](t, rec)["id"].(string)

	rec = doJSON(t, h, http.MethodGet, "/observations/pending", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	doJSON(t, h, http.MethodPatch, "/observations/"+id, "alice", map[string]any{"completed": true})

	rec = doJSON(t, h, http.MethodGet, "/observations/pending", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]map[string]any](t, rec))
}

func TestProgramEndpoints(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	rec := doJSON(t, h, http.MethodGet, "/programs/"+programID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/programs/"+programID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/programs/"+programID, "alice", map[string]string{"name": "spring galaxies"})
	require.Equal(t, http.StatusOK, rec.Code)
	renamed := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "spring galaxies", renamed["name"])

	rec = doJSON(t, h, http.MethodGet, "/programs", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]map[string]any](t, rec), 1)
}

func TestRejectsUnknownFields(t *testing.T) {
	h := newTestHandler(t, Options{})
	programID := createProgram(t, h, "alice", "galaxies")

	payload := validSubmission(programID)
	payload["bogus"] = "field"
	rec := doJSON(t, h, http.MethodPost, "/observations", "alice", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWTIdentity(t *testing.T) {
	const secret = "test-secret"
	h := newTestHandler(t, Options{JWTSecret: secret})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/observations", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The X-User-ID fallback is disabled once a secret is configured.
	rec = doJSON(t, h, http.MethodGet, "/observations", "alice", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/observations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, Options{RequestsPerSecond: 1, Burst: 2})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := doJSON(t, h, http.MethodGet, "/observations", "alice", nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}
