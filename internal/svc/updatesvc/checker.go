package updatesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mkrupp/gymtracker/internal/domain"
	context_ "github.com/mkrupp/gymtracker/internal/infra/context"
	"github.com/mkrupp/gymtracker/internal/infra/logging"
)

const (
	TraceIDHeader = "X-Request-ID"

	// maxResponseSize caps the release document; GitHub's are a few KiB.
	maxResponseSize = 1 << 20
)

var ErrUnexpectedStatus = errors.New("unexpected status")

type releaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// releaseDocument covers both the GitHub release and the package.json shape.
type releaseDocument struct {
	TagName string         `json:"tag_name"`
	HTMLURL string         `json:"html_url"`
	Assets  []releaseAsset `json:"assets"`
	Version string         `json:"version"`
}

// Checker polls a release endpoint and reports whether it offers a newer
// version than the running build.
type Checker struct {
	httpClient *http.Client
	cfg        UpdateConfig
	log        logging.Logger
	now        func() time.Time

	mu   sync.RWMutex
	last *domain.UpdateStatus
}

// NewChecker creates a Checker. If httpClient is nil, http.DefaultClient is used.
func NewChecker(cfg UpdateConfig, httpClient *http.Client) *Checker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Checker{
		httpClient: httpClient,
		cfg:        cfg,
		log:        logging.GetLogger("svc.updatesvc.checker"),
		now:        time.Now,
	}
}

// Last returns the status of the most recent successful check.
func (c *Checker) Last() (domain.UpdateStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.last == nil {
		return domain.UpdateStatus{}, false
	}

	return *c.last, true
}

// Check queries the release endpoint once. Failures are reported as
// domain.ErrUpdateCheckFailed and leave Last untouched.
func (c *Checker) Check(ctx context.Context) (status domain.UpdateStatus, err error) {
	log := c.log.With(logging.Group("update", "url", c.cfg.URL, "current", c.cfg.CurrentVersion))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "update check failed", "error", err)
		} else {
			log.DebugContext(ctx, "update checked", "latest", status.Latest, "available", status.Available)
		}
	}()

	release, err := c.fetch(ctx)
	if err != nil {
		return domain.UpdateStatus{}, fmt.Errorf("%w: %w", domain.ErrUpdateCheckFailed, err)
	}

	status = domain.UpdateStatus{
		Current:   c.cfg.CurrentVersion,
		Latest:    release.Version,
		CheckedAt: c.now().UTC(),
	}

	if CompareVersions(release.Version, c.cfg.CurrentVersion) > 0 {
		status.Available = true
		status.DownloadURL = release.DownloadURL
	}

	c.mu.Lock()
	c.last = &status
	c.mu.Unlock()

	return status, nil
}

func (c *Checker) fetch(ctx context.Context) (domain.Release, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return domain.Release{}, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json, application/json")

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(TraceIDHeader, traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Release{}, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Release{}, fmt.Errorf("get: %w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var doc releaseDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&doc); err != nil {
		return domain.Release{}, fmt.Errorf("decode release (limit %s): %w",
			humanize.IBytes(maxResponseSize), err)
	}

	return c.release(doc), nil
}

// release picks the version and the best download link from doc: the first
// asset with the configured suffix, then the release page.
func (c *Checker) release(doc releaseDocument) domain.Release {
	release := domain.Release{
		Version:     normalizeVersion(doc.TagName),
		DownloadURL: doc.HTMLURL,
	}

	if release.Version == "" {
		release.Version = normalizeVersion(doc.Version)
	}

	if c.cfg.AssetSuffix != "" {
		for _, asset := range doc.Assets {
			if strings.HasSuffix(asset.Name, c.cfg.AssetSuffix) && asset.BrowserDownloadURL != "" {
				release.DownloadURL = asset.BrowserDownloadURL

				break
			}
		}
	}

	if release.DownloadURL == "" {
		release.DownloadURL = c.cfg.ReleasePageURL
	}

	return release
}

// Poll checks immediately and then every interval until ctx is done. fn, if
// not nil, receives every successful status. Failed checks are logged and
// do not stop polling.
func (c *Checker) Poll(ctx context.Context, interval time.Duration, fn func(domain.UpdateStatus)) {
	check := func() {
		status, err := c.Check(ctx)
		if err == nil && fn != nil {
			fn(status)
		}
	}

	check()

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
