package echoapi_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/umirovdev/maktab/core/school"
)

func newUploadRequest(t *testing.T, token, field, filename, contentType, content string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart() failed: %v", err)
	}
	if _, err = part.Write([]byte(content)); err != nil {
		t.Fatalf("part.Write() failed: %v", err)
	}
	if err = mw.Close(); err != nil {
		t.Fatalf("mw.Close() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func Test_fileApi_upload(t *testing.T) {
	env := setup(t)
	student := env.createStudent(t, "aziza")
	token := env.getToken(t, student)

	t.Run("auth required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}
		req, rec := newUploadRequest(t, "", "file", "notes.pdf", "application/pdf", "content")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("file field required", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "No file uploaded"})}
		req, rec := newUploadRequest(t, token, "wrong", "notes.pdf", "application/pdf", "content")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("ok", func(t *testing.T) {
		content := strings.Repeat("x", 3000)
		req, rec := newUploadRequest(t, token, "file", "notes.pdf", "application/pdf", content)
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var f school.File
		decodeBody(t, rec, &f)

		if f.Name != "notes.pdf" {
			t.Errorf("Name = %q; want %q", f.Name, "notes.pdf")
		}
		if f.MimeType != "application/pdf" {
			t.Errorf("MimeType = %q", f.MimeType)
		}
		if f.Kind != school.FileKindDocument {
			t.Errorf("Kind = %q; want %q", f.Kind, school.FileKindDocument)
		}
		if f.SizeKB != 3 {
			t.Errorf("SizeKB = %d; want 3", f.SizeKB)
		}
		if !strings.HasPrefix(f.URL, "/uploads/") || !strings.HasSuffix(f.URL, ".pdf") {
			t.Errorf("URL = %q", f.URL)
		}

		// bytes are on disk under a fresh name
		stored := filepath.Join(env.conf.Server.UploadDir, strings.TrimPrefix(f.URL, "/uploads/"))
		data, err := os.ReadFile(stored)
		if err != nil {
			t.Fatalf("ReadFile() failed: %v", err)
		}
		if string(data) != content {
			t.Error("stored bytes differ from the upload")
		}

		// and served back over the static route
		getReq, getRec := newRequest(http.MethodGet, f.URL)
		env.app.ServeHTTP(getRec, getReq)
		if getRec.Code != http.StatusOK {
			t.Errorf("GET %s code = %v; want %v", f.URL, getRec.Code, http.StatusOK)
		}
	})

	t.Run("tiny files report at least 1 KiB", func(t *testing.T) {
		req, rec := newUploadRequest(t, token, "file", "tiny.txt", "text/plain", "hi")
		env.app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var f school.File
		decodeBody(t, rec, &f)
		if f.SizeKB != 1 {
			t.Errorf("SizeKB = %d; want 1", f.SizeKB)
		}
		if f.Kind != school.FileKindOther {
			t.Errorf("Kind = %q; want %q", f.Kind, school.FileKindOther)
		}
	})
}
