package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 5 * time.Second
)

// Error variables for specific error conditions.
var (
	ErrNetworkFailure = fmt.Errorf("network request failed")
	ErrRateLimited    = fmt.Errorf("rate limited by GitHub API")
	ErrNoRelease      = fmt.Errorf("repository has no published release")
)

// ReleaseInfo is the subset of a GitHub release the checker reads.
type ReleaseInfo struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
}

// UpdateInfo contains the result of a version check.
type UpdateInfo struct {
	CurrentVersion  Version
	LatestVersion   Version
	UpdateAvailable bool
	ReleaseURL      string
	ReleaseNotes    string
	PublishedAt     time.Time
	IsPrerelease    bool
	InstallMethod   InstallMethod
	CheckedAt       time.Time
}

// StalenessDays returns whole days between the release and the check, or -1
// when the publish time is unknown.
func (i *UpdateInfo) StalenessDays() int {
	if i == nil || i.PublishedAt.IsZero() {
		return -1
	}
	d := i.CheckedAt.Sub(i.PublishedAt)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Checker handles version checking against GitHub releases.
type Checker struct {
	owner      string
	repo       string
	baseURL    string
	httpClient *http.Client
	detect     func() InstallMethod
	now        func() time.Time
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithHTTPClient sets a custom HTTP client for the checker.
func WithHTTPClient(client *http.Client) CheckerOption {
	return func(c *Checker) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURL points the checker at a GitHub-compatible API root.
func WithBaseURL(url string) CheckerOption {
	return func(c *Checker) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInstallMethodDetector replaces DetectInstallMethod.
func WithInstallMethodDetector(detect func() InstallMethod) CheckerOption {
	return func(c *Checker) {
		c.detect = detect
	}
}

// NewChecker creates a new version checker for the specified repository.
func NewChecker(owner, repo string, opts ...CheckerOption) *Checker {
	c := &Checker{
		owner:   owner,
		repo:    repo,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		now: time.Now,
	}
	c.detect = func() InstallMethod { return DetectInstallMethod(repo) }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check queries GitHub for the latest release and compares it to the current version.
// Returns nil without error for development builds or if the version cannot be parsed.
func (c *Checker) Check(ctx context.Context, currentVersion string) (*UpdateInfo, error) {
	if currentVersion == "" || currentVersion == "dev" || currentVersion == "development" {
		return nil, nil
	}

	current, err := ParseVersion(currentVersion)
	if err != nil {
		return nil, nil
	}

	release, err := c.fetchLatestRelease(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := ParseVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("parse latest version: %w", err)
	}

	return &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   latest,
		UpdateAvailable: current.LessThan(latest),
		ReleaseURL:      release.HTMLURL,
		ReleaseNotes:    release.Body,
		PublishedAt:     release.PublishedAt,
		IsPrerelease:    release.Prerelease,
		InstallMethod:   c.detect(),
		CheckedAt:       c.now(),
	}, nil
}

func (c *Checker) fetchLatestRelease(ctx context.Context) (*ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "inappupdate-checker")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusNotFound:
		return nil, ErrNoRelease
	default:
		return nil, fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &release, nil
}
