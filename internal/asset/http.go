package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/abduss/assetgate/internal/logger"
	"github.com/abduss/assetgate/internal/naming"
	"github.com/abduss/assetgate/internal/transcode"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const multipartMemory = 8 << 20

// RegisterRoutes mounts the ingestion endpoints under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service, maxRequestBytes int64) {
	handler := &httpHandler{service: service, maxRequestBytes: maxRequestBytes}
	group.POST("/upload-image", handler.uploadImage)
	group.POST("/create-product", handler.createProduct)
	group.POST("/generate-post", handler.generatePost)
	group.POST("/backup-post", handler.backupPost)
}

type httpHandler struct {
	service         *Service
	maxRequestBytes int64
}

func (h *httpHandler) uploadImage(c *gin.Context) {
	ref, ok := h.ingestSingle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Image uploaded successfully",
		"imageUrl": ref.URL,
	})
}

func (h *httpHandler) createProduct(c *gin.Context) {
	ref, ok := h.ingestSingle(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Product image uploaded successfully",
		"url":     ref.URL,
	})
}

// ingestSingle handles the one-image form shared by upload-image and create-product.
// It writes the error response itself and reports whether the caller should continue.
func (h *httpHandler) ingestSingle(c *gin.Context) (Reference, bool) {
	if err := h.service.Ready(); err != nil {
		h.fail(c, err)
		return Reference{}, false
	}
	form, err := h.parseForm(c)
	if err != nil {
		h.fail(c, err)
		return Reference{}, false
	}
	defer form.RemoveAll()

	uploads, err := h.readFiles(form, false, "image")
	if err != nil {
		h.fail(c, err)
		return Reference{}, false
	}
	if len(uploads) == 0 {
		h.fail(c, ErrMissingImage)
		return Reference{}, false
	}

	ref, err := h.service.IngestImage(c.Request.Context(), uploads[0], formValue(form, "title"), formValue(form, "fileId"))
	if err != nil {
		h.fail(c, err)
		return Reference{}, false
	}
	return ref, true
}

func (h *httpHandler) generatePost(c *gin.Context) {
	if err := h.service.Ready(); err != nil {
		h.fail(c, err)
		return
	}
	form, err := h.parseForm(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer form.RemoveAll()

	mains, err := h.readFiles(form, false, "mainImage")
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(mains) == 0 {
		h.fail(c, ErrMissingMainImage)
		return
	}
	// Empty thumbnail parts keep their slot so the failure is reported at its index.
	thumbs, err := h.readFiles(form, true, "thumbImages", "thumbImages[]")
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), IngestRequest{
		Main:   &mains[0],
		Thumbs: thumbs,
		Title:  formValue(form, "title"),
		Key:    formValue(form, "fileId"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	body := gin.H{
		"success":        true,
		"mainImageUrl":   result.Main.URL,
		"thumbImageUrls": result.ThumbURLs(),
	}
	if len(result.Failures) > 0 {
		body["failedThumbImages"] = result.Failures
	}
	c.JSON(http.StatusOK, body)
}

type backupRequest struct {
	FileName string          `json:"fileName"`
	Content  json.RawMessage `json:"content"`
}

func (h *httpHandler) backupPost(c *gin.Context) {
	if err := h.service.Ready(); err != nil {
		h.fail(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)
	var req backupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, fmt.Errorf("%w: %v", ErrRequestTooLarge, err))
			return
		}
		h.fail(c, fmt.Errorf("%w: %v", ErrMalformedRequest, err))
		return
	}

	content, err := backupContent(req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	ref, err := h.service.Backup(c.Request.Context(), req.FileName, content)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Backup successful!",
		"path":    ref.Path,
		"url":     ref.URL,
	})
}

// backupContent stores JSON strings as their text and any other JSON value verbatim.
func backupContent(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, ErrMissingContent
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		if text == "" {
			return nil, ErrMissingContent
		}
		return []byte(text), nil
	}
	return []byte(trimmed), nil
}

func (h *httpHandler) parseForm(c *gin.Context) (*multipart.Form, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, fmt.Errorf("%w: %v", ErrRequestTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return c.Request.MultipartForm, nil
}

// readFiles loads the files sent under any of fields, in form order. Zero-byte parts are
// skipped unless keepEmpty is set.
func (h *httpHandler) readFiles(form *multipart.Form, keepEmpty bool, fields ...string) ([]Upload, error) {
	var uploads []Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			if fh.Size == 0 {
				if keepEmpty {
					uploads = append(uploads, Upload{Field: field, Filename: fh.Filename})
				}
				continue
			}
			if fh.Size > h.service.MaxFileBytes() {
				return nil, h.service.tooLarge(fh.Size)
			}
			data, err := readFileHeader(fh)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
			}
			uploads = append(uploads, Upload{
				Field:       field,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return uploads, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

func (h *httpHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	log := logger.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("asset request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("asset request rejected", zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)

	c.JSON(status, gin.H{
		"success": false,
		"message": PublicMessage(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrMissingImage),
		errors.Is(err, ErrMissingMainImage),
		errors.Is(err, ErrMissingContent),
		errors.Is(err, ErrEmptyFile),
		errors.Is(err, ErrTooManyFiles),
		errors.Is(err, ErrMalformedRequest),
		errors.Is(err, naming.ErrInvalidKey),
		errors.Is(err, transcode.ErrUnsupportedMedia):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
