package asset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/abduss/assetgate/internal/config"
	"github.com/abduss/assetgate/internal/logger"
	"github.com/abduss/assetgate/internal/metrics"
	"github.com/abduss/assetgate/internal/naming"
	"github.com/abduss/assetgate/internal/transcode"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxNameAttempts    = 3
	maxTitleAnnotation = 50
	defaultRetryBase   = 250 * time.Millisecond
)

// contentStore is the remote, path-addressed store assets are committed to.
type contentStore interface {
	Backend() string
	// Ready reports a missing credential without touching the network.
	Ready() error
	Ping(ctx context.Context) error
	Revision(ctx context.Context, path string) (string, error)
	Put(ctx context.Context, obj StoredAsset) (WriteResult, error)
}

type imageTranscoder interface {
	Transcode(ctx context.Context, data []byte) (transcode.Result, error)
}

// Options tunes the service. Zero values fall back to the defaults of config.Default.
type Options struct {
	PublicBaseURL string
	ImagePrefix   string
	BackupPrefix  string
	MaxFileBytes  int64
	MaxThumbnails int
	Timeout       time.Duration
	Concurrency   int
	MaxRetries    int
	RetryBackoff  time.Duration
}

// OptionsFromConfig maps the runtime configuration onto service options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		PublicBaseURL: cfg.Store.PublicBaseURL,
		ImagePrefix:   cfg.Store.ImagePrefix,
		BackupPrefix:  cfg.Store.BackupPrefix,
		MaxFileBytes:  cfg.Upload.MaxFileBytes,
		MaxThumbnails: cfg.Upload.MaxThumbnails,
		Timeout:       cfg.Upload.Timeout,
		Concurrency:   cfg.Upload.Concurrency,
		MaxRetries:    cfg.Upload.MaxRetries,
		RetryBackoff:  cfg.Upload.RetryBackoff,
	}
}

func (o Options) withDefaults() Options {
	d := OptionsFromConfig(config.Default())
	if o.PublicBaseURL == "" {
		o.PublicBaseURL = d.PublicBaseURL
	}
	o.PublicBaseURL = strings.TrimRight(o.PublicBaseURL, "/")
	if o.ImagePrefix == "" {
		o.ImagePrefix = d.ImagePrefix
	}
	if o.BackupPrefix == "" {
		o.BackupPrefix = d.BackupPrefix
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = d.MaxFileBytes
	}
	if o.MaxThumbnails <= 0 {
		o.MaxThumbnails = d.MaxThumbnails
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBase
	}
	return o
}

// writeMode decides what happens when the target path may already hold an object.
type writeMode int

const (
	// modeCreate writes a fresh random path without probing; a collision picks a new name.
	modeCreate writeMode = iota
	// modeOverwrite probes for the revision token under a path lock and updates in place.
	modeOverwrite
	// modeReuse probes under a path lock and keeps an existing object as is.
	modeReuse
)

// Service ingests uploads: transcode, name, commit, and build the public reference.
type Service struct {
	store      contentStore
	transcoder imageTranscoder
	names      naming.Generator
	opts       Options
	locks      *pathLocks
}

// NewService constructs an ingestion service.
func NewService(store contentStore, transcoder imageTranscoder, names naming.Generator, opts Options) *Service {
	if names == nil {
		names = naming.Timestamp{}
	}
	return &Service{
		store:      store,
		transcoder: transcoder,
		names:      names,
		opts:       opts.withDefaults(),
		locks:      newPathLocks(),
	}
}

// Ready reports whether uploads can be accepted at all. It never touches the network.
func (s *Service) Ready() error {
	if s.store == nil {
		return ErrMissingCredential
	}
	return s.store.Ready()
}

// Ping checks that the content store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s.store == nil {
		return ErrMissingCredential
	}
	return s.store.Ping(ctx)
}

// Backend names the configured content store.
func (s *Service) Backend() string {
	if s.store == nil {
		return "none"
	}
	return s.store.Backend()
}

// MaxFileBytes is the per-file ceiling enforced by the service.
func (s *Service) MaxFileBytes() int64 {
	return s.opts.MaxFileBytes
}

// IngestImage stores a single image and returns its reference.
func (s *Service) IngestImage(ctx context.Context, up Upload, title, key string) (Reference, error) {
	if err := s.Ready(); err != nil {
		return Reference{}, err
	}
	if len(up.Data) == 0 {
		metrics.ObserveFailure("validate")
		return Reference{}, ErrMissingImage
	}
	if err := s.checkSize(up); err != nil {
		metrics.ObserveFailure("validate")
		return Reference{}, err
	}
	if key != "" {
		if _, err := naming.Sanitize(key); err != nil {
			metrics.ObserveFailure("validate")
			return Reference{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	ref, err := s.storeImage(ctx, up, imageJob{kind: "image", annotation: title, key: key})
	if err != nil {
		return Reference{}, timeoutAware(err)
	}
	return ref, nil
}

// Ingest stores the main image, then every thumbnail independently. Only the main image
// gates success; thumbnail failures are reported per index.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if err := s.Ready(); err != nil {
		return IngestResult{}, err
	}
	if req.Main == nil || len(req.Main.Data) == 0 {
		metrics.ObserveFailure("validate")
		return IngestResult{}, ErrMissingMainImage
	}
	if len(req.Thumbs) > s.opts.MaxThumbnails {
		metrics.ObserveFailure("validate")
		return IngestResult{}, fmt.Errorf("%w: %d thumbnails, at most %d allowed", ErrTooManyFiles, len(req.Thumbs), s.opts.MaxThumbnails)
	}
	if err := s.checkSize(*req.Main); err != nil {
		metrics.ObserveFailure("validate")
		return IngestResult{}, err
	}
	for _, thumb := range req.Thumbs {
		if err := s.checkSize(thumb); err != nil {
			metrics.ObserveFailure("validate")
			return IngestResult{}, err
		}
	}
	if req.Key != "" {
		if _, err := naming.Sanitize(req.Key); err != nil {
			metrics.ObserveFailure("validate")
			return IngestResult{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	main, err := s.storeImage(ctx, *req.Main, imageJob{kind: "main", annotation: req.Title, key: req.Key})
	if err != nil {
		return IngestResult{}, timeoutAware(err)
	}

	result := IngestResult{
		Main:   main,
		Thumbs: make([]Reference, len(req.Thumbs)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)
	for i := range req.Thumbs {
		i := i
		g.Go(func() error {
			job := imageJob{
				kind:       "thumbnail",
				annotation: strings.TrimSpace(fmt.Sprintf("%s Thumbnail %d", req.Title, i+1)),
			}
			if req.Key != "" {
				job.key = fmt.Sprintf("%s-thumb-%d", req.Key, i+1)
			}

			thumb := req.Thumbs[i]
			var (
				ref Reference
				err error
			)
			if len(thumb.Data) == 0 {
				err = fmt.Errorf("thumbnail %d: %w", i+1, ErrEmptyFile)
			} else {
				ref, err = s.storeImage(ctx, thumb, job)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, ThumbFailure{Index: i, Message: PublicMessage(timeoutAware(err))})
				logger.FromContext(ctx).Warn("thumbnail not stored", zap.Int("index", i), zap.Error(err))
				return nil
			}
			result.Thumbs[i] = ref
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Failures, func(a, b int) bool {
		return result.Failures[a].Index < result.Failures[b].Index
	})
	return result, nil
}

// Backup stores content under a caller-chosen name, replacing any previous version.
func (s *Service) Backup(ctx context.Context, name string, content []byte) (Reference, error) {
	if err := s.Ready(); err != nil {
		return Reference{}, err
	}
	if strings.TrimSpace(name) == "" || len(content) == 0 {
		metrics.ObserveFailure("validate")
		return Reference{}, ErrMissingContent
	}
	clean, err := naming.Sanitize(name)
	if err != nil {
		metrics.ObserveFailure("validate")
		return Reference{}, err
	}
	if int64(len(content)) > s.opts.MaxFileBytes {
		metrics.ObserveFailure("validate")
		return Reference{}, s.tooLarge(int64(len(content)))
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	obj := StoredAsset{
		Path:        naming.Join(s.opts.BackupPrefix, clean, ""),
		Content:     content,
		ContentType: mimetype.Detect(content).String(),
		Message:     "feat: Backup post " + clean,
	}
	ref, err := s.commit(ctx, obj, modeOverwrite, "backup")
	if err != nil {
		return Reference{}, timeoutAware(err)
	}
	return ref, nil
}

type imageJob struct {
	kind       string
	annotation string
	key        string
}

func (s *Service) storeImage(ctx context.Context, up Upload, job imageJob) (Reference, error) {
	log := logger.FromContext(ctx)

	res, err := s.transcoder.Transcode(ctx, up.Data)
	if err != nil {
		metrics.ObserveFailure("transcode")
		return Reference{}, err
	}

	generator, mode := s.names, modeCreate
	switch {
	case job.key != "":
		generator, mode = naming.Keyed{}, modeOverwrite
	case s.names.Deterministic():
		mode = modeReuse
	}

	attempts := 1
	if mode == modeCreate {
		attempts = maxNameAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		name, err := generator.Name(naming.Input{OriginalName: up.Filename, Key: job.key, Content: res.Data})
		if err != nil {
			metrics.ObserveFailure("naming")
			return Reference{}, err
		}
		fileName := name + res.Ext

		obj := StoredAsset{
			Path:        naming.Join(s.opts.ImagePrefix, name, res.Ext),
			Content:     res.Data,
			ContentType: res.ContentType,
			Message:     commitMessage(fileName, job.annotation),
		}

		ref, err := s.commit(ctx, obj, mode, job.kind)
		if err == nil {
			log.Info("image stored",
				zap.String("kind", job.kind),
				zap.String("path", ref.Path),
				zap.String("source_type", res.SourceType),
				zap.Int64("source_bytes", up.Size()),
				zap.Int64("stored_bytes", ref.SizeBytes),
				zap.Bool("updated", ref.Updated),
				zap.Bool("reused", ref.Reused),
			)
			return ref, nil
		}
		if !errors.Is(err, ErrAlreadyExists) {
			return Reference{}, err
		}
		lastErr = err
		log.Warn("generated path already taken, renaming", zap.String("path", obj.Path), zap.Int("attempt", attempt))
	}
	return Reference{}, lastErr
}

// commit writes obj according to mode, retrying transient store errors with backoff.
func (s *Service) commit(ctx context.Context, obj StoredAsset, mode writeMode, kind string) (Reference, error) {
	if mode != modeCreate {
		unlock, err := s.locks.Lock(ctx, obj.Path)
		if err != nil {
			return Reference{}, err
		}
		defer unlock()
	}

	var (
		result  WriteResult
		updated bool
		reused  bool
	)
	backoff := retry.WithMaxRetries(uint64(s.opts.MaxRetries), retry.NewExponential(s.opts.RetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		start := time.Now()
		defer func() { metrics.ObserveWrite(s.store.Backend(), time.Since(start)) }()

		updated, reused = false, false
		attempt := obj
		if mode != modeCreate {
			rev, err := s.store.Revision(ctx, obj.Path)
			switch {
			case errors.Is(err, ErrObjectNotFound):
			case err != nil:
				return retryable(err)
			case mode == modeReuse:
				result, reused = WriteResult{Revision: rev}, true
				return nil
			default:
				attempt.Revision, updated = rev, true
			}
		}

		res, err := s.store.Put(ctx, attempt)
		if err != nil {
			return retryable(err)
		}
		result = res
		return nil
	})
	if err != nil {
		metrics.ObserveFailure("store")
		return Reference{}, err
	}

	if !reused {
		metrics.ObserveStored(s.store.Backend(), kind)
	}
	return Reference{
		URL:       s.publicURL(obj.Path),
		Path:      obj.Path,
		Revision:  result.Revision,
		CommitID:  result.CommitID,
		SizeBytes: int64(len(obj.Content)),
		Updated:   updated,
		Reused:    reused,
	}, nil
}

func (s *Service) publicURL(path string) string {
	return s.opts.PublicBaseURL + "/" + strings.TrimLeft(path, "/")
}

func (s *Service) checkSize(up Upload) error {
	if up.Size() > s.opts.MaxFileBytes {
		return s.tooLarge(up.Size())
	}
	return nil
}

func (s *Service) tooLarge(size int64) error {
	return fmt.Errorf("%w: %s exceeds the %s limit", ErrFileTooLarge,
		humanize.IBytes(uint64(size)), humanize.IBytes(uint64(s.opts.MaxFileBytes)))
}

func retryable(err error) error {
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) {
		return retry.RetryableError(err)
	}
	return err
}

func timeoutAware(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func commitMessage(fileName, annotation string) string {
	annotation = strings.TrimSpace(annotation)
	if annotation == "" {
		return "feat: Upload generated image " + fileName
	}
	runes := []rune(annotation)
	if len(runes) > maxTitleAnnotation {
		annotation = strings.TrimSpace(string(runes[:maxTitleAnnotation])) + "..."
	}
	return fmt.Sprintf("feat: Add generated image %s (%s)", fileName, annotation)
}
