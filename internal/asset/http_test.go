package asset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/abduss/assetgate/internal/naming"
	"github.com/abduss/assetgate/internal/transcode"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generatedURL = regexp.MustCompile(`^https://cdn\.test/public/image/generated/[0-9]+-[0-9]+\.webp$`)

func TestGeneratePostMainImageOnly(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, nil, formFile{field: "mainImage", name: "main.png", data: pngBytes(t, 10, 10)})
	rec := serve(router, http.MethodPost, "/api/generate-post", contentType, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success        bool     `json:"success"`
		MainImageURL   string   `json:"mainImageUrl"`
		ThumbImageURLs []string `json:"thumbImageUrls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, generatedURL, resp.MainImageURL)
	assert.NotNil(t, resp.ThumbImageURLs)
	assert.Empty(t, resp.ThumbImageURLs)
	assert.Contains(t, rec.Body.String(), `"thumbImageUrls":[]`)
	assert.NotContains(t, rec.Body.String(), "failedThumbImages")

	puts := store.puts()
	require.Len(t, puts, 1)
	assert.Equal(t, transcode.ContentType, puts[0].ContentType)
}

func TestGeneratePostThumbnailsKeepOrder(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, map[string]string{"title": "Spring"},
		formFile{field: "mainImage", name: "main.png", data: pngBytes(t, 10, 10)},
		formFile{field: "thumbImages", name: "a.png", data: pngBytes(t, 4, 4)},
		formFile{field: "thumbImages", name: "b.txt", data: []byte("plain text, not an image")},
		formFile{field: "thumbImages", name: "c.png", data: pngBytes(t, 6, 6)},
	)
	rec := serve(router, http.MethodPost, "/api/generate-post", contentType, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		ThumbImageURLs    []string       `json:"thumbImageUrls"`
		FailedThumbImages []ThumbFailure `json:"failedThumbImages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ThumbImageURLs, 3)
	assert.Regexp(t, generatedURL, resp.ThumbImageURLs[0])
	assert.Empty(t, resp.ThumbImageURLs[1])
	assert.Regexp(t, generatedURL, resp.ThumbImageURLs[2])
	require.Len(t, resp.FailedThumbImages, 1)
	assert.Equal(t, 1, resp.FailedThumbImages[0].Index)
	assert.Equal(t, "Unsupported image type.", resp.FailedThumbImages[0].Message)
}

func TestGeneratePostEmptyThumbnailKeepsSlot(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, nil,
		formFile{field: "mainImage", name: "main.png", data: pngBytes(t, 10, 10)},
		formFile{field: "thumbImages", name: "a.png", data: pngBytes(t, 4, 4)},
		formFile{field: "thumbImages", name: "b.png"},
		formFile{field: "thumbImages", name: "c.png", data: pngBytes(t, 6, 6)},
	)
	rec := serve(router, http.MethodPost, "/api/generate-post", contentType, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		ThumbImageURLs    []string       `json:"thumbImageUrls"`
		FailedThumbImages []ThumbFailure `json:"failedThumbImages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ThumbImageURLs, 3)
	assert.Regexp(t, generatedURL, resp.ThumbImageURLs[0])
	assert.Empty(t, resp.ThumbImageURLs[1])
	assert.Regexp(t, generatedURL, resp.ThumbImageURLs[2])
	require.Len(t, resp.FailedThumbImages, 1)
	assert.Equal(t, 1, resp.FailedThumbImages[0].Index)
	assert.Equal(t, "Image file is empty.", resp.FailedThumbImages[0].Message)
	assert.Len(t, store.puts(), 3)
}

func TestGeneratePostRemovesMultipartTempFiles(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	gin.SetMode(gin.TestMode)
	store := newFakeStore()
	service := NewService(store, transcode.New(80, 0), naming.Timestamp{}, Options{
		PublicBaseURL: "https://cdn.test",
		MaxFileBytes:  8 << 20,
	})
	router := gin.New()
	RegisterRoutes(router.Group("/api"), service, 32<<20)

	// Three 4 MiB parts exceed the in-memory multipart budget, so at least one spills to disk.
	junk := bytes.Repeat([]byte("x"), 4<<20)
	body, contentType := multipartBody(t, nil,
		formFile{field: "mainImage", name: "main.png", data: pngBytes(t, 10, 10)},
		formFile{field: "thumbImages", name: "a.bin", data: junk},
		formFile{field: "thumbImages", name: "b.bin", data: junk},
		formFile{field: "thumbImages", name: "c.bin", data: junk},
	)
	rec := serve(router, http.MethodPost, "/api/generate-post", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "multipart temp files left behind")
}

func TestGeneratePostMissingMainImage(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, nil,
		formFile{field: "thumbImages", name: "a.png", data: pngBytes(t, 4, 4)},
		formFile{field: "thumbImages", name: "b.png", data: pngBytes(t, 4, 4)},
	)
	rec := serve(router, http.MethodPost, "/api/generate-post", contentType, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Main image is required.", decodeMessage(t, rec))
	assert.Empty(t, store.attempts())
	assert.Zero(t, store.revisionCalls())
}

func TestGeneratePostEmptyMainImageIsMissing(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, nil, formFile{field: "mainImage", name: "main.png"})
	rec := serve(router, http.MethodPost, "/api/generate-post", contentType, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.attempts())
}

func TestUploadImageReturnsURL(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, map[string]string{"title": "Cat"},
		formFile{field: "image", name: "cat.png", data: pngBytes(t, 10, 10)})
	rec := serve(router, http.MethodPost, "/api/upload-image", contentType, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		ImageURL string `json:"imageUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, generatedURL, resp.ImageURL)
}

func TestUploadImageWithFileIDUsesKey(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, map[string]string{"fileId": "hero-banner"},
		formFile{field: "image", name: "cat.png", data: pngBytes(t, 10, 10)})
	rec := serve(router, http.MethodPost, "/api/upload-image", contentType, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "https://cdn.test/public/image/generated/hero-banner.webp")
}

func TestCreateProductReturnsURL(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, nil, formFile{field: "image", name: "shoe.jpg", data: pngBytes(t, 10, 10)})
	rec := serve(router, http.MethodPost, "/api/create-product", contentType, body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, generatedURL, resp.URL)
}

func TestUploadImageMissingCredential(t *testing.T) {
	store := newFakeStore()
	store.readyErr = ErrMissingCredential
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, nil, formFile{field: "image", name: "cat.png", data: pngBytes(t, 10, 10)})
	rec := serve(router, http.MethodPost, "/api/upload-image", contentType, body)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeMessage(t, rec), "misconfiguration")
	assert.Empty(t, store.attempts())
}

func TestUploadImageErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        func(t *testing.T) ([]byte, string)
		wantStatus  int
		wantMessage string
	}{
		{
			name: "not multipart",
			body: func(t *testing.T) ([]byte, string) {
				return []byte(`{"image":"x"}`), "application/json"
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Malformed request body.",
		},
		{
			name: "missing image",
			body: func(t *testing.T) ([]byte, string) {
				return multipartBody(t, map[string]string{"title": "x"})
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Image file is required.",
		},
		{
			name: "unsupported media",
			body: func(t *testing.T) ([]byte, string) {
				return multipartBody(t, nil, formFile{field: "image", name: "a.txt", data: []byte("hello there")})
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Unsupported image type.",
		},
		{
			name: "file too large",
			body: func(t *testing.T) ([]byte, string) {
				return multipartBody(t, nil, formFile{field: "image", name: "a.png", data: bytes.Repeat([]byte("x"), 2048)})
			},
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantMessage: "Payload too large.",
		},
		{
			name: "invalid key",
			body: func(t *testing.T) ([]byte, string) {
				return multipartBody(t, map[string]string{"fileId": "../../etc"},
					formFile{field: "image", name: "a.png", data: pngBytes(t, 2, 2)})
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid file id.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			router := newTestRouter(store, Options{MaxFileBytes: 1024})

			body, contentType := tt.body(t)
			rec := serve(router, http.MethodPost, "/api/upload-image", contentType, body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantMessage, decodeMessage(t, rec))
			assert.Empty(t, store.attempts())
		})
	}
}

func TestUploadImageStoreFailureHidesDetails(t *testing.T) {
	store := newFakeStore()
	store.queueErrors(fmt.Errorf("%w: Bad credentials for ghp_secret", ErrUnauthorized))
	router := newTestRouter(store, Options{})

	body, contentType := multipartBody(t, nil, formFile{field: "image", name: "cat.png", data: pngBytes(t, 10, 10)})
	rec := serve(router, http.MethodPost, "/api/upload-image", contentType, body)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "ghp_secret")
	assert.Equal(t, "Upload failed: content store refused the credential.", decodeMessage(t, rec))
}

func TestBackupPostStoresStringContent(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	payload := `{"fileName":"post-7.json","content":"{\"title\":\"hello\"}"}`
	rec := serve(router, http.MethodPost, "/api/backup-post", "application/json", []byte(payload))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Path    string `json:"path"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Backup successful!", resp.Message)
	assert.Equal(t, "public/product/post-7.json", resp.Path)
	assert.Equal(t, "https://cdn.test/public/product/post-7.json", resp.URL)

	puts := store.puts()
	require.Len(t, puts, 1)
	assert.Equal(t, `{"title":"hello"}`, string(puts[0].Content))
}

func TestBackupPostStoresObjectContentVerbatim(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store, Options{})

	payload := `{"fileName":"post-8.json","content":{"title":"raw"}}`
	rec := serve(router, http.MethodPost, "/api/backup-post", "application/json", []byte(payload))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	puts := store.puts()
	require.Len(t, puts, 1)
	assert.Equal(t, `{"title":"raw"}`, string(puts[0].Content))
}

func TestBackupPostErrors(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus int
	}{
		{"malformed json", `{"fileName":`, http.StatusBadRequest},
		{"missing content", `{"fileName":"a.json"}`, http.StatusBadRequest},
		{"empty content", `{"fileName":"a.json","content":""}`, http.StatusBadRequest},
		{"missing name", `{"content":"x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			router := newTestRouter(store, Options{})

			rec := serve(router, http.MethodPost, "/api/backup-post", "application/json", []byte(tt.payload))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Empty(t, store.attempts())
		})
	}
}

// --- helpers ---

type formFile struct {
	field string
	name  string
	data  []byte
}

func newTestRouter(store *fakeStore, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = "https://cdn.test"
	}
	service := NewService(store, transcode.New(80, 0), naming.Timestamp{}, opts)

	router := gin.New()
	RegisterRoutes(router.Group("/api"), service, 1<<20)
	return router
}

func serve(router http.Handler, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) ([]byte, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, val := range fields {
		require.NoError(t, writer.WriteField(key, val))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body.Bytes(), writer.FormDataContentType()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.False(t, resp.Success)
	return strings.TrimSpace(resp.Message)
}
