package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demesis221/PawRescue/internal/api"
	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/pkg/config"
	"github.com/demesis221/PawRescue/internal/repository"
	"github.com/demesis221/PawRescue/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, api.Deps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	_, err := config.Load("")
	require.NoError(t, err)

	db, err := repository.OpenMemory()
	require.NoError(t, err)

	storage, err := service.NewDiskStorage(t.TempDir(), "http://localhost:5000")
	require.NoError(t, err)

	events := service.NewEvents()
	t.Cleanup(events.Close)

	reportRepo := repository.NewReportRepo(db)
	profileRepo := repository.NewProfileRepo(db)

	deps := api.Deps{
		Auth:      service.NewAuthService(profileRepo),
		Reports:   service.NewReportService(reportRepo, storage, events, config.Get().Upload.MaxSizeBytes),
		Lifecycle: service.NewLifecycleService(reportRepo, events),
		Events:    events,
		Storage:   storage,
	}

	r := gin.New()
	api.SetupRouter(r, deps)
	return r, deps
}

// reportForm builds the multipart body the web client submits. imageName
// may be empty for a report without a photo.
func reportForm(t *testing.T, fields map[string]string, imageName, imageType string, imageSize int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if imageName != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, imageName))
		if imageType != "" {
			h.Set("Content-Type", imageType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(bytes.Repeat([]byte{0x89}, imageSize))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func lahugFields() map[string]string {
	return map[string]string{
		"animalType":  "dog",
		"urgency":     "high",
		"description": "Limping dog near the bakery",
		"location":    "Lahug",
		"coordinates": "[10.3157,123.8854]",
	}
}

func do(r *gin.Engine, method, path string, body *bytes.Buffer, contentType, token string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func createReport(t *testing.T, r *gin.Engine, fields map[string]string) string {
	t.Helper()
	body, ct := reportForm(t, fields, "", "", 0)
	rec := do(r, http.MethodPost, "/api/reports", body, ct, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	return data["id"].(string)
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/health", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "OK", out["status"])
	assert.Equal(t, "PawRescue API is running", out["message"])
}

func TestCreateAndFetchReport(t *testing.T) {
	r, _ := newTestRouter(t)

	body, ct := reportForm(t, lahugFields(), "", "", 0)
	rec := do(r, http.MethodPost, "/api/reports", body, ct, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Report submitted successfully", out["message"])

	data := out["data"].(map[string]any)
	assert.Equal(t, "reported", data["status"])
	assert.Equal(t, "Lahug", data["location_name"])
	assert.Equal(t, []any{}, data["image_urls"])
	id := data["id"].(string)

	rec = do(r, http.MethodGet, "/api/reports/"+id, nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, id, fetched["id"])
	assert.InDelta(t, 10.3157, fetched["latitude"].(float64), 1e-6)
}

func TestCreateWithImage(t *testing.T) {
	r, _ := newTestRouter(t)

	body, ct := reportForm(t, lahugFields(), "stray.png", "image/png", 2048)
	rec := do(r, http.MethodPost, "/api/reports", body, ct, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decode(t, rec)["data"].(map[string]any)
	urls := data["image_urls"].([]any)
	require.Len(t, urls, 1)
	url := urls[0].(string)
	assert.True(t, strings.HasPrefix(url, "http://localhost:5000/uploads/"), url)
	assert.Contains(t, url, data["id"].(string))

	// The stored object must be retrievable through the static route
	rec = do(r, http.MethodGet, strings.TrimPrefix(url, "http://localhost:5000"), nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateRejectsBadUploads(t *testing.T) {
	r, _ := newTestRouter(t)

	body, ct := reportForm(t, lahugFields(), "big.png", "image/png", 6<<20)
	rec := do(r, http.MethodPost, "/api/reports", body, ct, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())

	body, ct = reportForm(t, lahugFields(), "notes.txt", "text/plain", 128)
	rec = do(r, http.MethodPost, "/api/reports", body, ct, "")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, rec.Body.String())

	// Neither rejection may leave a report behind
	rec = do(r, http.MethodGet, "/api/reports", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["count"])
}

func TestCreateValidationError(t *testing.T) {
	r, _ := newTestRouter(t)

	fields := lahugFields()
	fields["coordinates"] = "not-json"
	body, ct := reportForm(t, fields, "", "", 0)
	rec := do(r, http.MethodPost, "/api/reports", body, ct, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["success"])
}

func TestListFilters(t *testing.T) {
	r, _ := newTestRouter(t)

	createReport(t, r, lahugFields())

	cat := lahugFields()
	cat["animalType"] = "cat"
	cat["urgency"] = "low"
	cat["location"] = "Talamban"
	createReport(t, r, cat)

	rec := do(r, http.MethodGet, "/api/reports", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(2), out["count"])

	// Newest first
	list := out["data"].([]any)
	first := list[0].(map[string]any)
	assert.Equal(t, "Talamban", first["location_name"])

	rec = do(r, http.MethodGet, "/api/reports?animal_type=cat&urgency=low", nil, "", "")
	out = decode(t, rec)
	assert.Equal(t, float64(1), out["count"])

	rec = do(r, http.MethodGet, "/api/reports?status=rescued", nil, "", "")
	out = decode(t, rec)
	assert.Equal(t, float64(0), out["count"])
}

func TestStatusLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createReport(t, r, lahugFields())

	patch := func(status string) *httptest.ResponseRecorder {
		body := bytes.NewBufferString(fmt.Sprintf(`{"status":%q,"comment":"field note"}`, status))
		return do(r, http.MethodPatch, "/api/reports/"+id+"/status", body, "application/json", "")
	}

	rec := patch("in_progress")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "in_progress", data["status"])

	// Unknown status value
	rec = patch("lost")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Backwards transition
	rec = patch("reported")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = patch("rescued")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/reports/"+id+"/history", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(2), out["count"])

	// Unknown report id
	body := bytes.NewBufferString(`{"status":"rescued"}`)
	rec = do(r, http.MethodPatch, "/api/reports/00000000-0000-0000-0000-000000000000/status", body, "application/json", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUnknownReport(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/reports/00000000-0000-0000-0000-000000000000", nil, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed ids are a validation problem, not a missing row
	rec = do(r, http.MethodGet, "/api/reports/not-a-uuid", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createReport(t, r, lahugFields())

	rec := do(r, http.MethodDelete, "/api/reports/"+id, nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := registerUser(t, r, "maria.santos@example.com")

	rec = do(r, http.MethodDelete, "/api/reports/"+id, nil, "", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(r, http.MethodGet, "/api/reports/"+id, nil, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodDelete, "/api/reports/"+id, nil, "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateReportOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createReport(t, r, lahugFields())
	token := registerUser(t, r, "rescuer@example.com")

	body := bytes.NewBufferString(`{"breed":"Aspin","urgency":"critical"}`)
	rec := do(r, http.MethodPut, "/api/reports/"+id, body, "application/json", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Aspin", data["breed"])
	assert.Equal(t, "critical", data["urgency"])

	body = bytes.NewBufferString(`{"urgency":"asap"}`)
	rec = do(r, http.MethodPut, "/api/reports/"+id, body, "application/json", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardStats(t *testing.T) {
	r, _ := newTestRouter(t)

	createReport(t, r, lahugFields())
	id := createReport(t, r, lahugFields())

	body := bytes.NewBufferString(`{"status":"in_progress"}`)
	rec := do(r, http.MethodPatch, "/api/reports/"+id+"/status", body, "application/json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = bytes.NewBufferString(`{"status":"rescued"}`)
	rec = do(r, http.MethodPatch, "/api/reports/"+id+"/status", body, "application/json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/api/dashboard/stats", nil, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["total_reports"])
	assert.Equal(t, float64(50), data["success_rate"])

	byStatus := data["by_status"].(map[string]any)
	assert.Equal(t, float64(1), byStatus["reported"])
	assert.Equal(t, float64(1), byStatus["rescued"])
}

func TestAttachImageEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createReport(t, r, lahugFields())

	body, ct := reportForm(t, nil, "stray.png", "image/png", 1024)
	rec := do(r, http.MethodPost, "/api/reports/"+id+"/image", body, ct, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	urls := data["image_urls"].([]any)
	require.Len(t, urls, 1)
	assert.Equal(t, false, data["media_pending"])

	// The attached object must be retrievable
	url := urls[0].(string)
	rec = do(r, http.MethodGet, strings.TrimPrefix(url, "http://localhost:5000"), nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing file part
	rec = do(r, http.MethodPost, "/api/reports/"+id+"/image", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown report
	body, ct = reportForm(t, nil, "stray.png", "image/png", 1024)
	rec = do(r, http.MethodPost, "/api/reports/00000000-0000-0000-0000-000000000000/image", body, ct, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnonymousCreateRateLimited(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 0; i < 10; i++ {
		body, ct := reportForm(t, lahugFields(), "", "", 0)
		rec := do(r, http.MethodPost, "/api/reports", body, ct, "")
		require.Equal(t, http.StatusCreated, rec.Code, "create %d: %s", i+1, rec.Body.String())
	}

	body, ct := reportForm(t, lahugFields(), "", "", 0)
	rec := do(r, http.MethodPost, "/api/reports", body, ct, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code, rec.Body.String())
	assert.Equal(t, false, decode(t, rec)["success"])

	// Authenticated submissions are not capped
	token := registerUser(t, r, "rescuer@example.com")
	body, ct = reportForm(t, lahugFields(), "", "", 0)
	rec = do(r, http.MethodPost, "/api/reports", body, ct, token)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// sseRecorder adds the close notification gin's Stream helper expects from
// the response writer.
type sseRecorder struct {
	*httptest.ResponseRecorder
	clientGone chan bool
}

func (r *sseRecorder) CloseNotify() <-chan bool { return r.clientGone }

func TestStreamEmitsReportChanges(t *testing.T) {
	r, deps := newTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/reports/stream", nil).WithContext(ctx)
	rec := &sseRecorder{ResponseRecorder: httptest.NewRecorder(), clientGone: make(chan bool)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(rec, req)
	}()

	// Let the handler register its subscription before publishing
	time.Sleep(50 * time.Millisecond)
	deps.Events.Publish(context.Background(), service.ReportEvent{
		Action:   "INSERT",
		ReportID: "14a07f7e-0000-0000-0000-00000000beef",
		Status:   model.StatusReported,
	})

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on client disconnect")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "report_change")
	assert.Contains(t, body, "14a07f7e-0000-0000-0000-00000000beef")
	assert.Contains(t, body, `"action":"INSERT"`)
}

func registerUser(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	body := bytes.NewBufferString(fmt.Sprintf(`{"email":%q,"password":"hunter2secret","full_name":"Maria Santos"}`, email))
	rec := do(r, http.MethodPost, "/api/auth/register", body, "application/json", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	return data["access_token"].(string)
}
