package asset

import (
	"errors"

	"github.com/abduss/assetgate/internal/naming"
	"github.com/abduss/assetgate/internal/transcode"
)

var (
	// ErrMissingImage indicates the single-image request carried no usable image.
	ErrMissingImage = errors.New("image file is required")
	// ErrMissingMainImage indicates the post request carried no usable main image.
	ErrMissingMainImage = errors.New("main image is required")
	// ErrMissingContent indicates a backup without a name or content.
	ErrMissingContent = errors.New("file name or content is missing")
	// ErrEmptyFile marks a zero-byte thumbnail part.
	ErrEmptyFile = errors.New("file is empty")
	// ErrFileTooLarge signals that an upload exceeds the per-file ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrRequestTooLarge signals that the whole request body exceeds its ceiling.
	ErrRequestTooLarge = errors.New("request too large")
	// ErrTooManyFiles signals more thumbnails than allowed.
	ErrTooManyFiles = errors.New("too many files")
	// ErrMalformedRequest signals a body that could not be decoded.
	ErrMalformedRequest = errors.New("malformed request body")
	// ErrTimeout signals that the request ran out of time, usually waiting on the store.
	ErrTimeout = errors.New("upload timed out")
)

// Content store errors. Adapters wrap the underlying client error with one of these.
var (
	// ErrMissingCredential means the store has no credential and must not be called.
	ErrMissingCredential = errors.New("content store credential is not configured")
	// ErrObjectNotFound means nothing is stored at the path.
	ErrObjectNotFound = errors.New("object not found")
	// ErrAlreadyExists means a create hit an existing object.
	ErrAlreadyExists = errors.New("object already exists")
	// ErrConflict means the revision token was stale.
	ErrConflict = errors.New("revision conflict")
	// ErrRateLimited means the store asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable covers network failures and 5xx answers.
	ErrUnavailable = errors.New("content store unavailable")
	// ErrUnauthorized means the credential was refused.
	ErrUnauthorized = errors.New("content store refused the credential")
	// ErrRejected covers any other refusal by the store.
	ErrRejected = errors.New("content store rejected the request")
)

// PublicMessage turns err into a message that is safe to show a caller. Store and
// transcoder details stay in the server log.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingImage):
		return "Image file is required."
	case errors.Is(err, ErrMissingMainImage):
		return "Main image is required."
	case errors.Is(err, ErrMissingContent):
		return "File name or content is missing."
	case errors.Is(err, ErrEmptyFile):
		return "Image file is empty."
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, ErrRequestTooLarge):
		return "Payload too large."
	case errors.Is(err, ErrTooManyFiles):
		return "Too many thumbnail images."
	case errors.Is(err, ErrMalformedRequest):
		return "Malformed request body."
	case errors.Is(err, naming.ErrInvalidKey):
		return "Invalid file id."
	case errors.Is(err, transcode.ErrUnsupportedMedia):
		return "Unsupported image type."
	case errors.Is(err, transcode.ErrTranscode):
		return "Image could not be converted."
	case errors.Is(err, ErrMissingCredential):
		return "Server misconfiguration: content store credential is not set."
	case errors.Is(err, ErrTimeout):
		return "Upload timed out."
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return "Upload failed: the stored file changed concurrently, please retry."
	case errors.Is(err, ErrRateLimited):
		return "Upload failed: content store rate limit reached, please retry later."
	case errors.Is(err, ErrUnavailable):
		return "Upload failed: content store unavailable, please retry."
	case errors.Is(err, ErrUnauthorized):
		return "Upload failed: content store refused the credential."
	case errors.Is(err, ErrRejected):
		return "Upload failed: content store rejected the file."
	default:
		return "Upload failed."
	}
}
