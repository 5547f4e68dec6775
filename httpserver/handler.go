package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/draftdesk/scriptstore/catalog"
	"github.com/draftdesk/scriptstore/integrity"
	"github.com/draftdesk/scriptstore/interfaces"
	"github.com/draftdesk/scriptstore/keycodec"
	"github.com/draftdesk/scriptstore/storage"
)

const (
	// multipartField is the form field carrying the uploaded file.
	multipartField = "file"

	// fileTypeField is the form field naming the script file type on
	// the replace-file endpoint.
	fileTypeField = "file_type"

	// maxMultipartMemory bounds how much of a multipart body is held in
	// memory before spilling to disk (32MB).
	maxMultipartMemory = 32 * 1024 * 1024
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// Handler processes HTTP requests for the script storage service: file
// uploads and retrievals, script version replacement, and the admin
// integrity endpoints.
type Handler struct {
	store      *storage.Facade
	catalog    catalog.Repository
	scanFanout int
	log        *slog.Logger
}

// NewHandler creates a new HTTP request handler with the specified
// dependencies.
//
// Parameters:
//   - store: Storage facade for object upload, retrieval, and probing
//   - repo: Relational catalog of file references; may be nil, which
//     disables the replace-file and integrity endpoints
//   - scanFanout: Concurrency bound for integrity scans (0 for default)
//   - log: Structured logger for operational insights
//
// Returns a configured Handler instance.
func NewHandler(store *storage.Facade, repo catalog.Repository, scanFanout int, log *slog.Logger) *Handler {
	return &Handler{
		store:      store,
		catalog:    repo,
		scanFanout: scanFanout,
		log:        log,
	}
}

// HandleUpload processes a file upload for one category.
//
// URL format: POST /api/files/{category}
// Body: multipart form with a "file" part
//
// The payload is validated against the category's size and content-type
// policy before any backend is touched. On success the response is a
// JSON document with the issued storage key, the URL to persist, and
// the CDN URL when one applies.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	category := storage.UploadCategory(chi.URLParam(r, "category"))

	data, name, contentType, err := h.readUpload(w, r, category)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.store.Upload(r.Context(), category, data, name, contentType)
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadGateway, Err: err})
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// HandleReplaceScriptFile uploads a new script document and appends it
// to the script's version history as the latest version.
//
// URL format: POST /api/scripts/{script_id}/file
// Body: multipart form with a "file" part and a "file_type" field
//
// Response: JSON containing the upload result plus the assigned version
// number. The previous latest version of the same file type is demoted,
// not removed.
func (h *Handler) HandleReplaceScriptFile(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("catalog is not configured")})
		return
	}

	scriptID, err := strconv.ParseInt(chi.URLParam(r, "script_id"), 10, 64)
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid script id: %w", err)})
		return
	}

	data, name, contentType, err := h.readUpload(w, r, storage.CategoryScript)
	if err != nil {
		h.writeError(w, err)
		return
	}

	fileType, err := parseFileType(r.FormValue(fileTypeField))
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: err})
		return
	}

	result, err := h.store.Upload(r.Context(), storage.CategoryScript, data, name, contentType)
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadGateway, Err: err})
		return
	}

	version, err := h.catalog.ReplaceScriptFile(r.Context(), scriptID, fileType, result.URL)
	if err != nil {
		h.log.Error("Recording new script file version failed",
			slog.Int64("scriptID", scriptID),
			slog.String("key", result.Key.String()),
			"err", err)
		h.writeError(w, &RequestError{StatusCode: http.StatusInternalServerError, Err: err})
		return
	}

	h.writeJSON(w, http.StatusCreated, struct {
		*storage.UploadResult
		Version int `json:"version"`
	}{result, version})
}

// HandleFetch serves a stored object by its storage key.
//
// URL format: GET /files/{namespace}/{filename}
//
// Returns 404 for keys with an unknown namespace and for objects that
// are not present in any configured backend.
func (h *Handler) HandleFetch(w http.ResponseWriter, r *http.Request) {
	key := interfaces.StorageKey(strings.TrimPrefix(chi.URLParam(r, "*"), "/"))
	if key.IsZero() || !keycodec.KnownNamespace(key.Namespace()) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	data, err := h.store.Fetch(r.Context(), key)
	if err != nil {
		if errors.Is(err, interfaces.ErrObjectNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		h.log.Error("Fetching object failed", slog.String("key", key.String()), "err", err)
		http.Error(w, "Storage backend unavailable", http.StatusServiceUnavailable)
		return
	}

	if ct := mime.TypeByExtension(path.Ext(key.String())); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleIntegrityScan runs a read-only integrity scan and returns the
// classified report.
//
// URL format: POST /api/admin/integrity/scan[?strict=true]
//
// With strict=true, references whose URLs match no known format are
// reported as broken instead of being left in place.
func (h *Handler) HandleIntegrityScan(w http.ResponseWriter, r *http.Request) {
	report, err := h.runScan(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleIntegrityReconcile runs a scan and immediately applies
// corrective writes for every broken reference it found.
//
// URL format: POST /api/admin/integrity/reconcile[?strict=true]
//
// Response: JSON containing the scan report and the reconciliation
// result. Individual write failures are recorded in the result and do
// not fail the request.
func (h *Handler) HandleIntegrityReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.runScan(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := integrity.NewReconciler(h.catalog, h.log).Reconcile(r.Context(), report)

	h.writeJSON(w, http.StatusOK, struct {
		Report *interfaces.IntegrityReport      `json:"report"`
		Result *interfaces.ReconciliationResult `json:"result"`
	}{report, result})
}

func (h *Handler) runScan(r *http.Request) (*interfaces.IntegrityReport, error) {
	if h.catalog == nil {
		return nil, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("catalog is not configured")}
	}

	opts := integrity.ScanOptions{
		Strict: r.URL.Query().Get("strict") == "true",
		Fanout: h.scanFanout,
	}
	report, err := integrity.NewScanner(h.catalog, h.store, opts, h.log).Scan(r.Context())
	if err != nil {
		h.log.Error("Integrity scan failed", "err", err)
		return nil, &RequestError{StatusCode: http.StatusInternalServerError, Err: err}
	}
	return report, nil
}

// readUpload extracts and validates the multipart file part. The
// category policy is enforced on the declared size and content type
// before the payload is read into memory.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, category storage.UploadCategory) ([]byte, string, string, error) {
	policy, err := storage.PolicyFor(category)
	if err != nil {
		return nil, "", "", &RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}

	r.Body = http.MaxBytesReader(w, r.Body, policy.MaxSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, "", "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to parse multipart form: %w", err)}
	}

	file, header, err := r.FormFile(multipartField)
	if err != nil {
		return nil, "", "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("missing %q form field: %w", multipartField, err)}
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := storage.ValidateUpload(category, header.Size, contentType); err != nil {
		return nil, "", "", &RequestError{StatusCode: http.StatusBadRequest, Err: err}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to read upload: %w", err)}
	}

	return data, header.Filename, contentType, nil
}

func parseFileType(raw string) (interfaces.ScriptFileType, error) {
	switch ft := interfaces.ScriptFileType(strings.ToUpper(raw)); ft {
	case interfaces.ScreenplayFile, interfaces.PitchDeckFile, interfaces.TreatmentFile, interfaces.SynopsisFile, interfaces.OtherFile:
		return ft, nil
	case "":
		return interfaces.OtherFile, nil
	default:
		return "", fmt.Errorf("unknown file type %q", raw)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Encoding response failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		http.Error(w, reqErr.Error(), reqErr.StatusCode)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
