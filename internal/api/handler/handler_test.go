package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/internal/jobs"
	"github.com/kiranshivaraju/linkmetrics/internal/store"
	"github.com/kiranshivaraju/linkmetrics/internal/upload"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJobID = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")

// --- fakes ---

type fakeUploader struct {
	parser  *upload.Parser
	created *models.JobCreationSummary
	err     error
	got     upload.Source
}

func (f *fakeUploader) Preview(src upload.Source) (*models.UploadReport, error) {
	f.got = src
	if f.err != nil {
		return nil, f.err
	}
	return f.parser.Parse(src)
}

func (f *fakeUploader) CreateFromUpload(_ context.Context, src upload.Source) (*models.JobCreationSummary, error) {
	f.got = src
	if f.err != nil {
		return nil, f.err
	}
	if _, err := f.parser.Parse(src); err != nil {
		return nil, err
	}
	return f.created, nil
}

type fakeTrigger struct {
	job *models.Job
	err error
}

func (f *fakeTrigger) Trigger(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return f.job, f.err
}

type fakeReader struct {
	gotLimit, gotOffset int
	detail              *jobs.JobDetail
	err                 error
}

func (f *fakeReader) ListJobs(_ context.Context, limit, offset int) (*jobs.JobPage, error) {
	f.gotLimit, f.gotOffset = limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return &jobs.JobPage{Limit: limit, Offset: offset, Items: []*models.Job{}}, nil
}

func (f *fakeReader) GetJob(_ context.Context, _ uuid.UUID) (*jobs.JobDetail, error) {
	return f.detail, f.err
}

func (f *fakeReader) ListResults(_ context.Context, _ uuid.UUID, limit, offset int) (*jobs.ResultPage, error) {
	f.gotLimit, f.gotOffset = limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return &jobs.ResultPage{Job: f.detail.Job, Limit: limit, Offset: offset, Items: []*models.Result{}}, nil
}

type fakeExporter struct {
	body     string
	err      error
	errAfter bool
}

func (f *fakeExporter) ExportResults(_ context.Context, _ uuid.UUID, w io.Writer) error {
	if f.err != nil && !f.errAfter {
		return f.err
	}
	if _, err := io.WriteString(w, f.body); err != nil {
		return err
	}
	return f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(_ context.Context) error { return f.err }

// --- helpers ---

func multipartRequest(t *testing.T, path, field, filename, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(t *testing.T, method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := decode(t, w)["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return errObj["code"].(string)
}

const validCSV = "platform,url\nyoutube,https://youtu.be/a\nvimeo,https://vimeo.com/1\n"

// --- upload ---

func TestUploadHandler_CreatesJob(t *testing.T) {
	svc := &fakeUploader{
		parser: upload.NewParser(0),
		created: &models.JobCreationSummary{
			JobID: testJobID, TotalRows: 2, ValidRows: 1, InvalidRows: 1,
			InvalidPreview: []models.InvalidRow{{RowIndex: 2, ErrorMessages: []string{"Unsupported platform."}}},
		},
	}
	req := multipartRequest(t, "/jobs/upload", "file", "links.csv", "text/csv", validCSV)

	w := serve(t, http.MethodPost, "/jobs/upload", NewUploadHandler(svc, 0), req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, testJobID.String(), body["job_id"])
	assert.EqualValues(t, 2, body["total_rows"])
	assert.EqualValues(t, 1, body["invalid_rows"])
	assert.Len(t, body["invalid_preview"], 1)
	assert.Equal(t, "links.csv", svc.got.Name)
	assert.Equal(t, "text/csv", svc.got.ContentType)
	assert.EqualValues(t, len(validCSV), svc.got.Size)
}

func TestPreviewHandler_ReportsRows(t *testing.T) {
	svc := &fakeUploader{parser: upload.NewParser(0)}
	req := multipartRequest(t, "/jobs/upload/preview", "file", "links.csv", "", validCSV)

	w := serve(t, http.MethodPost, "/jobs/upload/preview", NewPreviewHandler(svc, 0), req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 2, body["total_rows"])
	assert.EqualValues(t, 1, body["valid_rows"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "youtube", rows[0].(map[string]any)["platform"])
}

func TestUploadHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		maxBytes int64
		status   int
		code     string
	}{
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/jobs/upload", "attachment", "links.csv", "text/csv", validCSV)
			},
			status: http.StatusBadRequest,
			code:   "INVALID_UPLOAD",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/jobs/upload", strings.NewReader(validCSV))
				req.Header.Set("Content-Type", "text/csv")
				return req
			},
			status: http.StatusBadRequest,
			code:   "INVALID_UPLOAD",
		},
		{
			name: "missing columns",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/jobs/upload", "file", "links.csv", "text/csv", "network,link\nyoutube,x\n")
			},
			status: http.StatusBadRequest,
			code:   "INVALID_UPLOAD",
		},
		{
			name: "unsupported type",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/jobs/upload", "file", "links.pdf", "application/pdf", "%PDF-1.4")
			},
			status: http.StatusUnsupportedMediaType,
			code:   "UNSUPPORTED_FILE_TYPE",
		},
		{
			name: "file over limit",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/jobs/upload", "file", "links.csv", "text/csv", validCSV)
			},
			maxBytes: 16,
			status:   http.StatusRequestEntityTooLarge,
			code:     "FILE_TOO_LARGE",
		},
		{
			name: "body over limit",
			req: func(t *testing.T) *http.Request {
				big := strings.Repeat("youtube,https://youtu.be/a\n", 80000)
				return multipartRequest(t, "/jobs/upload", "file", "links.csv", "text/csv", "platform,url\n"+big)
			},
			maxBytes: 16,
			status:   http.StatusRequestEntityTooLarge,
			code:     "FILE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUploader{parser: upload.NewParser(tt.maxBytes), created: &models.JobCreationSummary{}}
			w := serve(t, http.MethodPost, "/jobs/upload", NewUploadHandler(svc, tt.maxBytes), tt.req(t))

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errCode(t, w))
		})
	}
}

func TestUploadHandler_StoreFailure(t *testing.T) {
	svc := &fakeUploader{parser: upload.NewParser(0), err: errors.New("connection reset")}
	req := multipartRequest(t, "/jobs/upload", "file", "links.csv", "text/csv", validCSV)

	w := serve(t, http.MethodPost, "/jobs/upload", NewUploadHandler(svc, 0), req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errCode(t, w))
	assert.NotContains(t, w.Body.String(), "connection reset")
}

// --- run ---

func TestRunHandler_Accepted(t *testing.T) {
	trigger := &fakeTrigger{job: &models.Job{
		ID: testJobID, Status: models.JobStatusRunning, TotalRows: 3, ProcessedRows: 1,
	}}
	req := httptest.NewRequest(http.MethodPost, "/jobs/"+testJobID.String()+"/run", nil)

	w := serve(t, http.MethodPost, "/jobs/{job_id}/run", NewRunHandler(trigger), req)

	require.Equal(t, http.StatusAccepted, w.Code)
	body := decode(t, w)
	assert.Equal(t, testJobID.String(), body["job_id"])
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 3, body["total_rows"])
	assert.EqualValues(t, 1, body["processed_rows"])
}

func TestRunHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		err    error
		status int
		code   string
	}{
		{"invalid id", "not-a-uuid", nil, http.StatusBadRequest, "INVALID_JOB_ID"},
		{"not found", testJobID.String(), store.ErrNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
		{"already running", testJobID.String(), jobs.ErrRunInProgress, http.StatusConflict, "RUN_IN_PROGRESS"},
		{"queue full", testJobID.String(), jobs.ErrQueueFull, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"},
		{"shutting down", testJobID.String(), jobs.ErrDispatcherClosed, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"},
		{"unexpected", testJobID.String(), errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/jobs/"+tt.id+"/run", nil)
			w := serve(t, http.MethodPost, "/jobs/{job_id}/run", NewRunHandler(&fakeTrigger{err: tt.err}), req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errCode(t, w))
		})
	}
}

// --- queries ---

func TestListJobsHandler_Paging(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", jobs.DefaultJobLimit, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=abc&offset=xyz", jobs.DefaultJobLimit, 0},
		{"?limit=-3", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := &fakeReader{}
			req := httptest.NewRequest(http.MethodGet, "/jobs"+tt.query, nil)

			w := serve(t, http.MethodGet, "/jobs", NewListJobsHandler(svc), req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.limit, svc.gotLimit)
			assert.Equal(t, tt.offset, svc.gotOffset)
			body := decode(t, w)
			assert.Contains(t, body, "items")
			assert.NotContains(t, body, "data")
		})
	}
}

func TestGetJobHandler(t *testing.T) {
	job := &models.Job{ID: testJobID, Status: models.JobStatusCompleted, TotalRows: 2, ProcessedRows: 2, CreatedAt: time.Now()}
	svc := &fakeReader{detail: &jobs.JobDetail{
		Job:     job,
		LastRun: &models.JobRunSummary{JobID: testJobID, Status: models.JobStatusCompleted, ProcessedRows: 2, SuccessRows: 1, FailedRows: 1},
	}}
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID.String(), nil)

	w := serve(t, http.MethodGet, "/jobs/{job_id}", NewGetJobHandler(svc), req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, testJobID.String(), body["id"])
	assert.Equal(t, "completed", body["status"])
	lastRun := body["last_run"].(map[string]any)
	assert.EqualValues(t, 1, lastRun["failed_rows"])
}

func TestGetJobHandler_NotFound(t *testing.T) {
	svc := &fakeReader{err: store.ErrNotFound}
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID.String(), nil)

	w := serve(t, http.MethodGet, "/jobs/{job_id}", NewGetJobHandler(svc), req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "JOB_NOT_FOUND", errCode(t, w))
}

func TestListResultsHandler(t *testing.T) {
	svc := &fakeReader{detail: &jobs.JobDetail{Job: &models.Job{ID: testJobID, Status: models.JobStatusQueued}}}
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID.String()+"/results?limit=7", nil)

	w := serve(t, http.MethodGet, "/jobs/{job_id}/results", NewListResultsHandler(svc), req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, svc.gotLimit)
	assert.Equal(t, 0, svc.gotOffset)
	body := decode(t, w)
	assert.Equal(t, testJobID.String(), body["job"].(map[string]any)["id"])
}

func TestListResultsHandler_DefaultLimit(t *testing.T) {
	svc := &fakeReader{detail: &jobs.JobDetail{Job: &models.Job{ID: testJobID}}}
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID.String()+"/results?limit=ten", nil)

	w := serve(t, http.MethodGet, "/jobs/{job_id}/results", NewListResultsHandler(svc), req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jobs.DefaultResultLimit, svc.gotLimit)
}

// --- export ---

func TestExportHandler_StreamsCSV(t *testing.T) {
	svc := &fakeExporter{body: "\ufeffplatform,url\nyoutube,https://youtu.be/a\n"}
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID.String()+"/export.csv", nil)

	w := serve(t, http.MethodGet, "/jobs/{job_id}/export.csv", NewExportHandler(svc), req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="job_dddddddd-dddd-dddd-dddd-dddddddddddd_results.csv"`,
		w.Header().Get("Content-Disposition"))
	assert.Equal(t, svc.body, w.Body.String())
}

func TestExportHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound, "JOB_NOT_FOUND"},
		{"not completed", jobs.ErrJobNotCompleted, http.StatusConflict, "JOB_NOT_COMPLETED"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID.String()+"/export.csv", nil)
			w := serve(t, http.MethodGet, "/jobs/{job_id}/export.csv", NewExportHandler(&fakeExporter{err: tt.err}), req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.code, errCode(t, w))
		})
	}
}

func TestExportHandler_FailureAfterStart(t *testing.T) {
	svc := &fakeExporter{body: "platform,url\n", err: errors.New("conn lost"), errAfter: true}
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID.String()+"/export.csv", nil)

	w := serve(t, http.MethodGet, "/jobs/{job_id}/export.csv", NewExportHandler(svc), req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "platform,url\n", w.Body.String())
}

func TestExportHandler_InvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jobs/nope/export.csv", nil)
	w := serve(t, http.MethodGet, "/jobs/{job_id}/export.csv", NewExportHandler(&fakeExporter{}), req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JOB_ID", errCode(t, w))
}

// --- health ---

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		db       error
		cache    error
		status   int
		database string
		cacheSvc string
	}{
		{"all ok", nil, nil, http.StatusOK, "ok", "ok"},
		{"database degraded", errors.New("connection refused"), nil, http.StatusServiceUnavailable, "degraded", "ok"},
		{"cache degraded", nil, errors.New("redis down"), http.StatusServiceUnavailable, "ok", "degraded"},
		{"both degraded", errors.New("db down"), errors.New("redis down"), http.StatusServiceUnavailable, "degraded", "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(fakePinger{tt.db}, fakePinger{tt.cache})
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.status, w.Code)
			body := decode(t, w)

			var services map[string]any
			if tt.status == http.StatusOK {
				assert.Equal(t, "ok", body["status"])
				services = body["services"].(map[string]any)
			} else {
				errObj := body["error"].(map[string]any)
				assert.Equal(t, "DEGRADED", errObj["code"])
				services = errObj["details"].(map[string]any)
			}
			assert.Equal(t, tt.database, services["database"])
			assert.Equal(t, tt.cacheSvc, services["cache"])
		})
	}
}
