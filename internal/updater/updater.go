// Package updater compares the installed yt-dlp with its latest GitHub release.
package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Status is the outcome of a version check.
type Status string

const (
	StatusUpToDate Status = "up-to-date"
	StatusOutdated Status = "outdated"
	StatusUnknown  Status = "unknown"
)

// Result reports both versions alongside the status. Latest is empty when
// the release lookup failed.
type Result struct {
	Status  Status
	Current string
	Latest  string
}

// VersionFunc returns the installed version.
type VersionFunc func(ctx context.Context) (string, error)

const (
	defaultOwner   = "yt-dlp"
	defaultRepo    = "yt-dlp"
	defaultTimeout = 10 * time.Second
)

// Checker looks up the latest release of Owner/Repo.
type Checker struct {
	Current VersionFunc
	Owner   string
	Repo    string
	// Token authenticates against the GitHub API to lift the anonymous rate
	// limit. Optional.
	Token string
	// BaseURL points the client at another API root, e.g. a test server.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c *Checker) client(ctx context.Context) (*github.Client, error) {
	httpClient := c.HTTPClient
	if c.Token != "" {
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(httpClient)
	if c.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(c.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		client.BaseURL = base
	}
	return client, nil
}

// Latest returns the tag of the newest release.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.client(ctx)
	if err != nil {
		return "", err
	}
	owner, repo := c.Owner, c.Repo
	if owner == "" {
		owner = defaultOwner
	}
	if repo == "" {
		repo = defaultRepo
	}
	release, _, err := client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			return "", fmt.Errorf("GitHub rate limit reached, set github_token to raise it: %w", err)
		}
		return "", fmt.Errorf("fetching latest %s/%s release: %w", owner, repo, err)
	}
	tag := strings.TrimSpace(release.GetTagName())
	if tag == "" {
		return "", fmt.Errorf("latest %s/%s release has no tag", owner, repo)
	}
	return tag, nil
}

// Check compares the installed version against the latest release. The
// result is always usable; err explains an unknown status.
func (c *Checker) Check(ctx context.Context) (Result, error) {
	if c.Current == nil {
		return Result{Status: StatusUnknown}, errors.New("no version source configured")
	}
	current, err := c.Current(ctx)
	if err != nil {
		return Result{Status: StatusUnknown}, err
	}
	result := Result{Status: StatusUnknown, Current: current}
	latest, err := c.Latest(ctx)
	if err != nil {
		return result, err
	}
	result.Latest = latest
	if Compare(current, latest) >= 0 {
		result.Status = StatusUpToDate
	} else {
		result.Status = StatusOutdated
	}
	return result, nil
}

// Compare orders two release versions such as "2024.08.06" and
// "2024.08.06.232908". A leading "v" is ignored. Versions that are not
// dotted numbers compare equal only when identical, and lower otherwise.
func Compare(a, b string) int {
	a = strings.TrimPrefix(strings.TrimSpace(a), "v")
	b = strings.TrimPrefix(strings.TrimSpace(b), "v")
	if a == b {
		return 0
	}
	pa, okA := numericParts(a)
	pb, okB := numericParts(b)
	if !okA || !okB {
		return -1
	}
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func numericParts(v string) ([]int, bool) {
	fields := strings.Split(v, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		parts = append(parts, n)
	}
	return parts, true
}
