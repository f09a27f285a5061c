package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/askpdf/internal/auth"
	"github.com/yourusername/askpdf/internal/user"
)

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// stubFileService はハンドラーテスト用のスタブです。
type stubFileService struct {
	stored   *StoredFile
	files    []*StoredFile
	err      error
	content  []byte
	deleted  []int64
	uploaded []string
}

func (s *stubFileService) Upload(ctx context.Context, file *multipart.FileHeader, ownerID int64) (*StoredFile, error) {
	if file != nil {
		s.uploaded = append(s.uploaded, file.Filename)
	}
	return s.stored, s.err
}

func (s *stubFileService) List(ctx context.Context, ownerID int64) ([]*StoredFile, error) {
	return s.files, s.err
}

func (s *stubFileService) Get(ctx context.Context, id, ownerID int64) (*StoredFile, error) {
	return s.stored, s.err
}

func (s *stubFileService) Delete(ctx context.Context, id, ownerID int64) error {
	if s.err == nil {
		s.deleted = append(s.deleted, id)
	}
	return s.err
}

func (s *stubFileService) OpenView(ctx context.Context, id, ownerID int64) (*StoredFile, io.ReadSeekCloser, int64, error) {
	if s.err != nil {
		return nil, nil, 0, s.err
	}
	return s.stored, readSeekNopCloser{bytes.NewReader(s.content)}, int64(len(s.content)), nil
}

type stubVerifier struct {
	username string
	err      error
}

func (s *stubVerifier) VerifySessionToken(token string) (string, error) {
	return s.username, s.err
}

type stubResolver struct {
	user *user.User
	err  error
}

func (s *stubResolver) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.user, s.err
}

// withTestUser は認証ミドルウェアの代わりにユーザーを注入します。
func withTestUser(u *user.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextUserKey, u)
		c.Next()
	}
}

func testUser() *user.User {
	return &user.User{ID: 7, Email: "alice@example.com", Username: "alice", CreatedAt: time.Now()}
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{
		stored: &StoredFile{ID: 1, Filename: "report.pdf", Filepath: "uuid_report.pdf", OwnerID: 7},
	}

	body, contentType := multipartBody(t, "report.pdf", []byte("%PDF-1.4\n"))
	req := httptest.NewRequest(http.MethodPost, "/pdf/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/pdf/upload", withTestUser(testUser()), UploadHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if len(service.uploaded) != 1 || service.uploaded[0] != "report.pdf" {
		t.Fatalf("unexpected uploads: %#v", service.uploaded)
	}

	var got StoredFile
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != 1 || got.Filename != "report.pdf" {
		t.Fatalf("unexpected response: %#v", got)
	}
}

func TestUploadHandlerRejectsMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{}

	req := httptest.NewRequest(http.MethodPost, "/pdf/upload", bytes.NewBufferString(""))
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/pdf/upload", withTestUser(testUser()), UploadHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestUploadHandlerRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{}

	body, contentType := multipartBody(t, "report.pdf", []byte("%PDF-1.4\n"))
	req := httptest.NewRequest(http.MethodPost, "/pdf/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/pdf/upload", UploadHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(service.uploaded) != 0 {
		t.Fatal("service must not be called without a user")
	}
}

func TestUploadHandlerMapsDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{&Error{Code: "UNSUPPORTED_TYPE", Message: "Only PDF files are allowed"}, http.StatusBadRequest, "UNSUPPORTED_TYPE"},
		{&Error{Code: "FILE_TOO_LARGE", Message: "File size exceeds 10MB limit"}, http.StatusBadRequest, "FILE_TOO_LARGE"},
		{errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		service := &stubFileService{err: tc.err}
		body, contentType := multipartBody(t, "report.pdf", []byte("%PDF-1.4\n"))
		req := httptest.NewRequest(http.MethodPost, "/pdf/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		router := gin.New()
		router.POST("/pdf/upload", withTestUser(testUser()), UploadHandler(service))
		router.ServeHTTP(rec, req)

		if rec.Code != tc.wantStatus {
			t.Fatalf("err=%v: unexpected status %d", tc.err, rec.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["code"] != tc.wantCode {
			t.Fatalf("err=%v: unexpected code %q", tc.err, resp["code"])
		}
	}
}

func TestListHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{
		files: []*StoredFile{
			{ID: 1, Filename: "a.pdf", OwnerID: 7},
			{ID: 2, Filename: "b.pdf", OwnerID: 7},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/pdf/list", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/list", withTestUser(testUser()), ListHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var got []StoredFile
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected listing: %#v", got)
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{err: ErrNotFound}

	req := httptest.NewRequest(http.MethodGet, "/pdf/42", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/:id", withTestUser(testUser()), GetHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["message"] != "PDF not found" {
		t.Fatalf("unexpected message: %q", resp["message"])
	}
}

func TestGetHandlerInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{}

	req := httptest.NewRequest(http.MethodGet, "/pdf/abc", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/:id", withTestUser(testUser()), GetHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestDeleteHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{}

	req := httptest.NewRequest(http.MethodDelete, "/pdf/42", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.DELETE("/pdf/:id", withTestUser(testUser()), DeleteHandler(service))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(service.deleted) != 1 || service.deleted[0] != 42 {
		t.Fatalf("unexpected deletes: %#v", service.deleted)
	}
}

func TestViewHandlerRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{}

	req := httptest.NewRequest(http.MethodGet, "/pdf/1/view", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/:id/view", ViewHandler(service, &stubVerifier{username: "alice"}, &stubResolver{user: testUser()}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestViewHandlerRejectsInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{}

	req := httptest.NewRequest(http.MethodGet, "/pdf/1/view?token=bad", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/:id/view", ViewHandler(service, &stubVerifier{err: errors.New("invalid")}, &stubResolver{user: testUser()}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestViewHandlerRejectsUnknownUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{}

	req := httptest.NewRequest(http.MethodGet, "/pdf/1/view?token=x", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/:id/view", ViewHandler(service, &stubVerifier{username: "ghost"}, &stubResolver{err: user.ErrNotFound}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestViewHandlerStreamsPDF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	content := []byte("%PDF-1.4\n% dummy pdf content\n")
	service := &stubFileService{
		stored:  &StoredFile{ID: 1, Filename: "report.pdf", ContentType: "application/pdf", OwnerID: 7},
		content: content,
	}

	req := httptest.NewRequest(http.MethodGet, "/pdf/1/view?token=x", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/:id/view", ViewHandler(service, &stubVerifier{username: "alice"}, &stubResolver{user: testUser()}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="report.pdf"` {
		t.Fatalf("unexpected content-disposition: %s", cd)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "private, max-age=3600" {
		t.Fatalf("unexpected cache-control: %s", cc)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Fatalf("unexpected body: %q", rec.Body.Bytes())
	}
}

func TestViewHandlerNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubFileService{err: ErrNotFound}

	req := httptest.NewRequest(http.MethodGet, "/pdf/1/view?token=x", nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.GET("/pdf/:id/view", ViewHandler(service, &stubVerifier{username: "alice"}, &stubResolver{user: testUser()}))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
