// Package client provides a client for the sysprintd REST API, plus helpers
// to start and stop the daemon process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/sysprint/pkg/daemon"
	"github.com/jamesainslie/sysprint/pkg/daemon/store"
	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 60 * time.Second

// APIError is a failed response from the daemon. It unwraps to the error
// sentinel named by its type, so errors.Is(err, types.ErrNotFound) works.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Type)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch e.Type {
	case "NOT_FOUND":
		return types.ErrNotFound
	case "VALIDATION":
		return types.ErrValidation
	case "ARCHIVE":
		return types.ErrArchive
	case "CONFIG":
		return types.ErrConfig
	}
	return nil
}

// Client talks to one sysprintd instance.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the daemon at addr, which may be host:port or a
// full http URL.
func New(addr string, opts ...Option) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon address %q: %w", addr, err)
	}

	c := &Client{
		base: base,
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the daemon's base URL.
func (c *Client) URL() string {
	return c.base.String()
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.JoinPath(append([]string{"api"}, escaped...)...).String()
}

// do sends req and returns the response if its status is 200. Any other
// status is decoded into an *APIError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon request failed: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body daemon.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Type = body.Type
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.roundTrip(req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.roundTrip(req, out)
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding daemon response: %w", err)
	}
	return nil
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) (*daemon.Health, error) {
	var h daemon.Health
	if err := c.getJSON(ctx, c.endpoint("health"), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Upload sends the archive at path to the daemon and registers it as id.
func (c *Client) Upload(ctx context.Context, id, path string) (*store.LoadSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), pr)
	if err != nil {
		pr.Close()
		return nil, err
	}

	// The transport closes pr when the request ends, which unblocks the writer.
	mw := multipart.NewWriter(pw)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	go func() {
		err := writeUpload(mw, id, filepath.Base(path), f)
		pw.CloseWithError(err)
	}()

	var lr daemon.LoadResponse
	if err := c.roundTrip(req, &lr); err != nil {
		return nil, err
	}
	return lr.Project, nil
}

func writeUpload(mw *multipart.Writer, id, name string, src io.Reader) error {
	if err := mw.WriteField("project_id", id); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

// Load registers an archive already present on the daemon's filesystem.
func (c *Client) Load(ctx context.Context, id, path string) (*store.LoadSummary, error) {
	var lr daemon.LoadResponse
	err := c.sendJSON(ctx, http.MethodPost, c.endpoint("projects"), daemon.LoadRequest{ProjectID: id, Path: path}, &lr)
	if err != nil {
		return nil, err
	}
	return lr.Project, nil
}

// Projects lists loaded projects.
func (c *Client) Projects(ctx context.Context) ([]store.Summary, error) {
	var list daemon.ProjectList
	if err := c.getJSON(ctx, c.endpoint("projects"), &list); err != nil {
		return nil, err
	}
	return list.Projects, nil
}

// Project describes one loaded project.
func (c *Client) Project(ctx context.Context, id string) (*store.Summary, error) {
	var sum store.Summary
	if err := c.getJSON(ctx, c.endpoint("projects", id), &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Delete unregisters a project.
func (c *Client) Delete(ctx context.Context, id string) error {
	var msg daemon.Message
	return c.sendJSON(ctx, http.MethodDelete, c.endpoint("projects", id), nil, &msg)
}

// Compare diffs two loaded projects.
func (c *Client) Compare(ctx context.Context, before, after string) (*diff.Result, error) {
	var res diff.Result
	if err := c.getJSON(ctx, c.endpoint("compare", before, after), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FileDiff renders the diff of one archived file.
func (c *Client) FileDiff(ctx context.Context, before, after, path string, contextLines int) (*diff.FileResult, error) {
	var res diff.FileResult
	req := daemon.FileDiffRequest{FilePath: path, Context: contextLines}
	if err := c.sendJSON(ctx, http.MethodPost, c.endpoint("diff", before, after), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Export downloads a comparison in format and returns the body together
// with the attachment filename suggested by the daemon.
func (c *Client) Export(ctx context.Context, before, after, format string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("export", before, after, format), nil)
	if err != nil {
		return nil, "", err
	}
	return c.download(req)
}

// Synth fetches the synthesized targeted configuration in yaml or json.
func (c *Client) Synth(ctx context.Context, before, after, format string) ([]byte, error) {
	u := c.endpoint("config", before, after)
	if format != "" {
		u += "?format=" + url.QueryEscape(format)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	data, _, err := c.download(req)
	return data, err
}

func (c *Client) download(req *http.Request) ([]byte, string, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading daemon response: %w", err)
	}

	var filename string
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return data, filename, nil
}
