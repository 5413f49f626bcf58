package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/memberdesk/internal/auth"
	"github.com/rpattn/memberdesk/internal/domain"
	"github.com/rpattn/memberdesk/internal/progress"
	"github.com/rpattn/memberdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultMaxUploadBytes = 32 << 20
)

// Handler exposes imports, templates and import logs over HTTP.
type Handler struct {
	service        *Service
	maxUploadBytes int64
	logger         logrus.FieldLogger
}

// NewHTTPHandler wraps the service. maxUploadBytes <= 0 uses 32 MiB.
func NewHTTPHandler(service *Service, maxUploadBytes int64, logger logrus.FieldLogger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Register mounts the import routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /imports/members", h.importMembers)
	mux.HandleFunc("POST /imports/trips/{tripID}", h.importTripAllocations)
	mux.HandleFunc("GET /imports/templates/{kind}", h.downloadTemplate)
	mux.HandleFunc("GET /imports/logs", h.listLogs)
	mux.HandleFunc("GET /imports/logs/{id}", h.getLog)
	mux.HandleFunc("GET /imports/logs/{id}/progress", h.getProgress)
	mux.HandleFunc("GET /imports/logs/{id}/results", h.getResults)
}

func (h *Handler) importMembers(w http.ResponseWriter, r *http.Request) {
	h.handleImport(w, r, domain.ImportTypeMembers, uuid.Nil)
}

func (h *Handler) importTripAllocations(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuid.Parse(strings.TrimSpace(r.PathValue("tripID")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid trip id: %v", err))
		return
	}
	h.handleImport(w, r, domain.ImportTypeTripAllocations, tripID)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request, importType domain.ImportType, tripID uuid.UUID) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file required: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}

	req := Request{
		Type:        importType,
		FileName:    header.Filename,
		TripID:      tripID,
		InitiatedBy: auth.InitiatedBy(r.Context()),
		Data:        bytes.NewReader(data),
	}

	if isTruthy(r.FormValue("async")) || isTruthy(r.URL.Query().Get("async")) {
		log, err := h.service.Start(r.Context(), req)
		if err != nil {
			h.writeImportError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, log)
		return
	}

	report, err := h.service.Import(r.Context(), req, nil)
	if err != nil {
		h.writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeImportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTripNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrCreateLog), errors.Is(err, ErrCompleteLog):
		h.logger.WithError(err).Error("import aborted")
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrEmptyFile), errors.Is(err, ErrUnknownImportType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Warn("import failed")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (h *Handler) downloadTemplate(w http.ResponseWriter, r *http.Request) {
	importType, ok := parseKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown template %q", r.PathValue("kind")))
		return
	}

	f, err := BuildTemplate(importType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeWorkbook(w, f, TemplateFileName(importType))
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ImportLogFilter{
		Status: domain.ImportStatus(strings.TrimSpace(query.Get("status"))),
	}
	if kind := query.Get("type"); kind != "" {
		importType, ok := parseKind(kind)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown import type %q", kind))
			return
		}
		filter.ImportType = importType
	}

	limit, err := intParam(query.Get("limit"), 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %v", err))
		return
	}
	offset, err := intParam(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid offset: %v", err))
		return
	}

	logs, err := h.service.ListLogs(r.Context(), filter, limit, offset)
	if err != nil {
		h.logger.WithError(err).Error("failed to list import logs")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	log, err := h.service.GetLog(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Progress(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	snapshot.Results = nil
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) getResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Progress(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	if !snapshot.Done {
		writeError(w, http.StatusConflict, "import is still processing")
		return
	}
	if snapshot.Results == nil {
		writeError(w, http.StatusGone, "row results are no longer available")
		return
	}

	log, err := h.service.GetLog(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	report := BuildReport(log.ImportType, snapshot.Results)
	report.Log = &log

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "xlsx":
		f, err := WriteWorkbook(report)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.writeWorkbook(w, f, fmt.Sprintf("import_results_%s.xlsx", id))
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := WriteText(w, report); err != nil {
			h.logger.WithError(err).Warn("failed to write results table")
		}
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, progress.ErrNotFound) {
		writeError(w, http.StatusNotFound, "import log not found")
		return
	}
	h.logger.WithError(err).Error("import log lookup failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) writeWorkbook(w http.ResponseWriter, f *excelize.File, fileName string) {
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render workbook: %v", err))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func parseKind(kind string) (domain.ImportType, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "members", "member":
		return domain.ImportTypeMembers, true
	case "trips", "trip", "trip_allocations", "trip-allocations":
		return domain.ImportTypeTripAllocations, true
	default:
		return "", false
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid import log id: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return value, nil
}

func isTruthy(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
