// Package daemon implements sysprintd, the REST service that holds loaded
// projects and answers comparison, file diff, export and synthesis
// requests against them.
package daemon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/sysprint/pkg/daemon/store"
	"github.com/jamesainslie/sysprint/pkg/sysprint/archive"
	"github.com/jamesainslie/sysprint/pkg/sysprint/diff"
	"github.com/jamesainslie/sysprint/pkg/sysprint/logging"
	"github.com/jamesainslie/sysprint/pkg/sysprint/output"
	"github.com/jamesainslie/sysprint/pkg/sysprint/synth"
	"github.com/jamesainslie/sysprint/pkg/sysprint/types"
)

// DefaultMaxUploadSize bounds multipart upload bodies.
const DefaultMaxUploadSize = 100 * types.MiB

// uploadExtensions are the accepted archive filename extensions.
var uploadExtensions = map[string]bool{
	"tar": true,
	"gz":  true,
	"tgz": true,
	"zst": true,
}

// FileWatcher is notified of every archive the service registers.
type FileWatcher interface {
	WatchFile(path string) error
}

// Service answers the REST API on top of a project store.
type Service struct {
	store         *store.Store
	uploadDir     string
	maxUploadSize int64
	watcher       FileWatcher
	startTime     time.Time
	logger        *logging.Logger
}

// NewService creates a service saving uploads under uploadDir. A
// maxUploadSize of zero selects DefaultMaxUploadSize.
func NewService(s *store.Store, uploadDir string, maxUploadSize int64) *Service {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Service{
		store:         s,
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
		startTime:     time.Now(),
		logger:        logging.Get("api"),
	}
}

// SetWatcher sets the watcher told about newly registered archives.
func (s *Service) SetWatcher(w FileWatcher) {
	s.watcher = w
}

// RegisterHTTP mounts the API routes on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/upload", s.handleUpload)

		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleLoadProject)
		r.Get("/projects/{id}", s.handleGetProject)
		r.Delete("/projects/{id}", s.handleDeleteProject)

		r.Get("/compare/{a}/{b}", s.handleCompare)
		r.Post("/diff/{a}/{b}", s.handleFileDiff)
		r.Get("/export/{a}/{b}/{format}", s.handleExport)
		r.Get("/config/{a}/{b}", s.handleSynth)
	})
}

// Health is the body of GET /api/health.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Projects  int       `json:"projects"`
	Uptime    string    `json:"uptime"`
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Projects:  s.store.Len(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

// LoadResponse is returned by upload and load requests.
type LoadResponse struct {
	Message string             `json:"message"`
	Project *store.LoadSummary `json:"project"`
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if tooLarge(err) {
			writeStatusError(w, http.StatusRequestEntityTooLarge, "File too large", "VALIDATION")
			return
		}
		writeError(w, fmt.Errorf("%w: malformed upload: %v", types.ErrValidation, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: No file provided", types.ErrValidation))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	switch {
	case header.Filename == "" || name == "." || name == "/":
		writeError(w, fmt.Errorf("%w: No file selected", types.ErrValidation))
		return
	case r.FormValue("project_id") == "":
		writeError(w, fmt.Errorf("%w: Project ID required", types.ErrValidation))
		return
	case !allowedUpload(name):
		writeError(w, fmt.Errorf("%w: Invalid file type", types.ErrValidation))
		return
	}

	id := r.FormValue("project_id")
	if err := store.ValidateID(id); err != nil {
		writeError(w, err)
		return
	}

	tmp, err := s.saveUpload(file)
	if err != nil {
		writeError(w, err)
		return
	}

	// An id may already be loaded from the destination name, so the upload
	// must open cleanly before it replaces anything.
	if _, err := archive.Open(tmp); err != nil {
		_ = os.Remove(tmp)
		s.logger.Warn("rejected upload", "id", id, "name", name, "error", err)
		writeError(w, err)
		return
	}

	path := filepath.Join(s.uploadDir, id+"_"+name)
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		writeError(w, fmt.Errorf("saving upload: %w", err))
		return
	}

	summary, err := s.store.Load(id, path)
	if err != nil {
		writeError(w, err)
		return
	}
	s.watch(path)

	writeJSON(w, http.StatusOK, LoadResponse{Message: "Project uploaded successfully", Project: summary})
}

// tooLarge reports whether err came from the upload size limit. Some
// multipart paths flatten the error, so the message is checked as well.
func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// allowedUpload checks the final extension of name.
func allowedUpload(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	return uploadExtensions[strings.ToLower(name[i+1:])]
}

// saveUpload writes src to a uniquely named temporary file in the upload
// directory and returns its path.
func (s *Service) saveUpload(src io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	tmp := filepath.Join(s.uploadDir, ".upload-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("saving upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("saving upload: %w", err)
	}
	return tmp, nil
}

// LoadRequest registers an archive already on the daemon's filesystem.
type LoadRequest struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
}

func (s *Service) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", types.ErrValidation, err))
		return
	}
	if req.Path == "" {
		writeError(w, fmt.Errorf("%w: Archive path required", types.ErrValidation))
		return
	}

	path, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", types.ErrValidation, err))
		return
	}

	summary, err := s.store.Load(req.ProjectID, path)
	if err != nil {
		writeError(w, err)
		return
	}
	s.watch(path)

	writeJSON(w, http.StatusOK, LoadResponse{Message: "Project loaded successfully", Project: summary})
}

func (s *Service) watch(path string) {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.WatchFile(path); err != nil {
		s.logger.Warn("cannot watch archive directory", "path", path, "error", err)
	}
}

// ProjectList is the body of GET /api/projects.
type ProjectList struct {
	Projects []store.Summary `json:"projects"`
}

func (s *Service) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProjectList{Projects: s.store.List()})
}

func (s *Service) handleGetProject(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Summary(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Message is a plain acknowledgement body.
type Message struct {
	Message string `json:"message"`
}

func (s *Service) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Message{Message: "Project deleted successfully"})
}

// compare runs the diff engine on the two projects named in the URL.
func (s *Service) compare(r *http.Request) (*diff.Result, error) {
	a, b := chi.URLParam(r, "a"), chi.URLParam(r, "b")
	p1, p2, err := s.store.Pair(a, b)
	if err != nil {
		return nil, err
	}

	s.logger.Info("comparing projects", "before", a, "after", b)
	res := diff.Compare(a, p1.Manifest(), b, p2.Manifest())
	s.logger.Info("comparison complete",
		"new", res.Statistics.NewFiles,
		"deleted", res.Statistics.DeletedFiles,
		"modified", res.Statistics.ModifiedFiles)
	return res, nil
}

func (s *Service) handleCompare(w http.ResponseWriter, r *http.Request) {
	res, err := s.compare(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// FileDiffRequest is the body of POST /api/diff/{a}/{b}.
type FileDiffRequest struct {
	FilePath string `json:"file_path"`
	Context  int    `json:"context,omitempty"`
}

func (s *Service) handleFileDiff(w http.ResponseWriter, r *http.Request) {
	var req FileDiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, fmt.Errorf("%w: invalid request body: %v", types.ErrValidation, err))
		return
	}
	if req.FilePath == "" {
		writeError(w, fmt.Errorf("%w: File path required", types.ErrValidation))
		return
	}

	p1, p2, err := s.store.Pair(chi.URLParam(r, "a"), chi.URLParam(r, "b"))
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := diff.FileDiff(p1.Archive, p2.Archive, req.FilePath, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(chi.URLParam(r, "format"))
	contentType, ok := output.ContentType(format)
	if !ok {
		writeError(w, fmt.Errorf("%w: Invalid format. Use %s", types.ErrValidation, strings.Join(output.ExportFormats(), ", ")))
		return
	}

	res, err := s.compare(r)
	if err != nil {
		writeError(w, err)
		return
	}

	formatter, err := output.Get(format)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, res); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", output.ExportFilename(res, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Service) handleSynth(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "yaml"
	}
	if format != "yaml" && format != "json" {
		writeError(w, fmt.Errorf("%w: Invalid format. Use yaml or json", types.ErrValidation))
		return
	}

	res, err := s.compare(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := synth.Synthesize(res)

	if format == "json" {
		writeJSON(w, http.StatusOK, cfg)
		return
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
