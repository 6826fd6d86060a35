package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/refract/internal/hunk"
	"github.com/dshills/refract/internal/review"
)

const (
	defaultAPIURL = "https://api.github.com"
	filesPerPage  = 100
)

// PRRef identifies a pull request.
type PRRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// URL returns the browser URL for the pull request.
func (r PRRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", r.Owner, r.Repo, r.Number)
}

var (
	prShorthandRe = regexp.MustCompile(`^([^/\s#]+)/([^/\s#]+)#(\d+)$`)
	prURLRe       = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+)/pull/(\d+)`)
)

// ParsePR accepts either "owner/repo#123" shorthand or a full pull request
// URL, including GitHub Enterprise hosts.
func ParsePR(s string) (PRRef, error) {
	s = strings.TrimSpace(s)
	m := prShorthandRe.FindStringSubmatch(s)
	if m == nil {
		m = prURLRe.FindStringSubmatch(s)
	}
	if m == nil {
		return PRRef{}, fmt.Errorf("cannot parse pull request reference %q (want owner/repo#N or a PR URL)", s)
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return PRRef{}, fmt.Errorf("bad PR number in %q: %w", s, err)
	}
	return PRRef{Owner: m[1], Repo: m[2], Number: n}, nil
}

// Client provides access to the GitHub REST API.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
	logger  *zap.Logger
}

// NewClient creates a GitHub client. Auth comes from GITHUB_TOKEN, or from
// GitHub App credentials (GITHUB_APP_ID, GITHUB_APP_INSTALLATION_ID, and
// GITHUB_APP_KEY or GITHUB_APP_KEY_PATH) when no token is set. apiBase
// overrides the API URL for GitHub Enterprise; empty means api.github.com.
func NewClient(ctx context.Context, apiBase string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	apiURL := apiBase
	if apiURL == "" {
		apiURL = os.Getenv("GITHUB_API_URL")
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	apiURL = strings.TrimRight(apiURL, "/")

	httpCli := &http.Client{Timeout: 60 * time.Second}
	token, err := resolveToken(ctx, apiURL, httpCli, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		token:   token,
		apiURL:  apiURL,
		httpCli: httpCli,
		logger:  logger,
	}, nil
}

// PRInfo is the pull request metadata a review run needs.
type PRInfo struct {
	Number       int
	Title        string
	HTMLURL      string
	HeadSHA      string
	BaseRef      string
	ChangedFiles int
}

type prResponse struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	HTMLURL      string `json:"html_url"`
	ChangedFiles int    `json:"changed_files"`
	Head         struct {
		SHA string `json:"sha"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// GetPR fetches pull request metadata.
func (c *Client) GetPR(ctx context.Context, ref PRRef) (*PRInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, ref.Owner, ref.Repo, ref.Number)
	body, err := c.get(ctx, url, "application/vnd.github.v3+json", ref)
	if err != nil {
		return nil, err
	}

	var pr prResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("parsing PR response: %w", err)
	}
	return &PRInfo{
		Number:       pr.Number,
		Title:        pr.Title,
		HTMLURL:      pr.HTMLURL,
		HeadSHA:      pr.Head.SHA,
		BaseRef:      pr.Base.Ref,
		ChangedFiles: pr.ChangedFiles,
	}, nil
}

type prFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// GetPRFiles fetches every changed file with its unified diff patch,
// following pagination. Binary files come back without a patch and are
// returned with an empty one; the hunk extractor skips them.
func (c *Client) GetPRFiles(ctx context.Context, ref PRRef) ([]hunk.FilePatch, error) {
	var patches []hunk.FilePatch
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d",
			c.apiURL, ref.Owner, ref.Repo, ref.Number, filesPerPage, page)
		body, err := c.get(ctx, url, "application/vnd.github.v3+json", ref)
		if err != nil {
			return nil, err
		}

		var files []prFile
		if err := json.Unmarshal(body, &files); err != nil {
			return nil, fmt.Errorf("parsing PR files response: %w", err)
		}
		for _, f := range files {
			patches = append(patches, hunk.FilePatch{
				Path:      f.Filename,
				Language:  hunk.DetectLanguage(f.Filename),
				Status:    f.Status,
				Additions: f.Additions,
				Deletions: f.Deletions,
				Patch:     f.Patch,
			})
		}
		if len(files) < filesPerPage {
			return patches, nil
		}
	}
}

// FetchBundle fetches PR metadata and patches as a reviewable bundle.
func (c *Client) FetchBundle(ctx context.Context, ref PRRef) (*hunk.Bundle, error) {
	pr, err := c.GetPR(ctx, ref)
	if err != nil {
		return nil, err
	}
	files, err := c.GetPRFiles(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched pull request",
		zap.String("pr", ref.String()),
		zap.Int("files", len(files)))
	return &hunk.Bundle{
		PR:        ref.String(),
		HeadSHA:   pr.HeadSHA,
		BaseRef:   pr.BaseRef,
		FetchedAt: time.Now().UTC(),
		Files:     files,
	}, nil
}

// GetPRDiff fetches the whole unified diff for a pull request.
func (c *Client) GetPRDiff(ctx context.Context, ref PRRef) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, ref.Owner, ref.Repo, ref.Number)
	body, err := c.get(ctx, url, "application/vnd.github.v3.diff", ref)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, url, accept string, ref PRRef) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling GitHub: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("PR %s not found (or token lacks access)", ref)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("GitHub authentication failed: %s", string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// ReviewComment represents an inline comment on a PR review.
type ReviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Body string `json:"body"`
}

// ReviewRequest represents a PR review to post.
type ReviewRequest struct {
	Body     string          `json:"body"`
	Event    string          `json:"event"`
	Comments []ReviewComment `json:"comments"`
}

// PostReview posts a pull request review with inline comments.
func (c *Client) PostReview(ctx context.Context, ref PRRef, reviewReq ReviewRequest) error {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews", c.apiURL, ref.Owner, ref.Repo, ref.Number)

	payload, err := json.Marshal(reviewReq)
	if err != nil {
		return fmt.Errorf("marshaling review: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("posting review: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return fmt.Errorf("GitHub rejected review (422): %s", string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// BuildReviewRequest converts a report into a GitHub PR review. Findings
// that point into the diff become inline comments; everything else, plus
// run diagnostics, lands in the summary body.
func BuildReviewRequest(report *review.Report, diffFiles map[string]bool) ReviewRequest {
	var comments []ReviewComment
	var general []string
	var diagnostics []string

	for _, f := range report.Findings {
		if f.IsDiagnostic() {
			diagnostics = append(diagnostics, "- "+f.File+": "+f.Message)
			continue
		}
		if diffFiles[f.File] && f.LineHint > 0 {
			comments = append(comments, ReviewComment{
				Path: f.File,
				Line: f.LineHint,
				Body: formatInlineComment(f),
			})
			continue
		}
		general = append(general, formatFindingBody(f))
	}

	var sb strings.Builder
	sb.WriteString("## Refract Code Review\n\n")
	fmt.Fprintf(&sb, "Score: **%.0f/100**\n\n", report.Score)
	sb.WriteString("| Severity | Count |\n|----------|-------|\n")
	fmt.Fprintf(&sb, "| Blocking | %d |\n", report.Stats.Blocking)
	fmt.Fprintf(&sb, "| Major | %d |\n", report.Stats.Major)
	fmt.Fprintf(&sb, "| Minor | %d |\n", report.Stats.Minor)
	fmt.Fprintf(&sb, "| Nit | %d |\n\n", report.Stats.Nit)

	if len(general) > 0 {
		sb.WriteString("### General Findings\n\n")
		for _, g := range general {
			sb.WriteString(g)
			sb.WriteString("\n\n")
		}
	}
	if len(diagnostics) > 0 {
		sb.WriteString("### Review Diagnostics\n\n")
		for _, d := range diagnostics {
			sb.WriteString(d)
			sb.WriteString("\n")
		}
	}

	return ReviewRequest{
		Body:     sb.String(),
		Event:    "COMMENT",
		Comments: comments,
	}
}

func formatInlineComment(f review.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** (%s, confidence: %.0f%%)\n\n", f.Severity, f.Category, f.Confidence*100)
	sb.WriteString(f.Message)
	if f.SuggestedPatch != "" {
		fmt.Fprintf(&sb, "\n\n**Suggestion:**\n```\n%s\n```", f.SuggestedPatch)
	}
	return sb.String()
}

func formatFindingBody(f review.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- **%s** (%s, %s): %s", f.File, f.Severity, f.Category, f.Message)
	if f.SuggestedPatch != "" {
		fmt.Fprintf(&sb, " *Suggestion: %s*", f.SuggestedPatch)
	}
	return sb.String()
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo() (owner, repo string, err error) {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	url := strings.TrimSpace(string(out))
	return ParseRemoteURL(url)
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	url = strings.TrimSuffix(url, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(url); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", url)
}
