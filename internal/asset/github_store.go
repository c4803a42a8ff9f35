package asset

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abduss/assetgate/internal/config"
	"github.com/google/go-github/v68/github"
)

// GitHubStore commits assets to a repository through the contents API. The blob SHA of a
// file is its revision token.
type GitHubStore struct {
	client    *github.Client
	owner     string
	repo      string
	branch    string
	hasToken  bool
	committer *github.CommitAuthor
}

// NewGitHubStore constructs an adapter over an already configured client.
func NewGitHubStore(client *github.Client, cfg config.GitHubConfig, committer config.CommitterConfig) *GitHubStore {
	return &GitHubStore{
		client:   client,
		owner:    cfg.Owner,
		repo:     cfg.Repo,
		branch:   cfg.Branch,
		hasToken: cfg.Token != "",
		committer: &github.CommitAuthor{
			Name:  github.Ptr(committer.Name),
			Email: github.Ptr(committer.Email),
		},
	}
}

func (s *GitHubStore) Backend() string { return config.BackendGitHub }

func (s *GitHubStore) Ready() error {
	if !s.hasToken || s.client == nil {
		return ErrMissingCredential
	}
	return nil
}

func (s *GitHubStore) Ping(ctx context.Context) error {
	if err := s.Ready(); err != nil {
		return err
	}
	if _, _, err := s.client.Repositories.Get(ctx, s.owner, s.repo); err != nil {
		return classifyGitHub(err, false)
	}
	return nil
}

func (s *GitHubStore) Revision(ctx context.Context, path string) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}

	var opts *github.RepositoryContentGetOptions
	if s.branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: s.branch}
	}
	file, dir, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, path, opts)
	if err != nil {
		return "", classifyGitHub(err, false)
	}
	if file == nil {
		if dir != nil {
			return "", fmt.Errorf("%w: %s is a directory", ErrRejected, path)
		}
		return "", ErrObjectNotFound
	}
	return file.GetSHA(), nil
}

func (s *GitHubStore) Put(ctx context.Context, obj StoredAsset) (WriteResult, error) {
	if err := s.Ready(); err != nil {
		return WriteResult{}, err
	}

	opts := &github.RepositoryContentFileOptions{
		Message:   github.Ptr(obj.Message),
		Content:   obj.Content,
		Author:    s.committer,
		Committer: s.committer,
	}
	if s.branch != "" {
		opts.Branch = github.Ptr(s.branch)
	}

	var (
		res *github.RepositoryContentResponse
		err error
	)
	if obj.Revision == "" {
		res, _, err = s.client.Repositories.CreateFile(ctx, s.owner, s.repo, obj.Path, opts)
	} else {
		opts.SHA = github.Ptr(obj.Revision)
		res, _, err = s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, obj.Path, opts)
	}
	if err != nil {
		return WriteResult{}, fmt.Errorf("put %s: %w", obj.Path, classifyGitHub(err, obj.Revision == ""))
	}

	out := WriteResult{CommitID: res.Commit.GetSHA()}
	if res.Content != nil {
		out.Revision = res.Content.GetSHA()
	}
	return out, nil
}

// classifyGitHub maps a go-github error onto the store error set. The returned error keeps
// the API message for logs; the token is never part of it.
func classifyGitHub(err error, creating bool) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var apiErr *github.ErrorResponse
	if !errors.As(err, &apiErr) || apiErr.Response == nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code := apiErr.Response.StatusCode; {
	case code == http.StatusNotFound && !creating:
		return ErrObjectNotFound
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
	case code == http.StatusUnprocessableEntity && creating:
		// The contents API answers 422 when a create omits the sha of an existing file.
		return fmt.Errorf("%w: %s", ErrAlreadyExists, apiErr.Message)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, code, apiErr.Message)
	}
}
