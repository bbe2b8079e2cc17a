package web

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/guard"
	"github.com/thoreinstein/siteconf/internal/ledger"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/pkg/fileutil"
)

// Request field names.
const (
	TokenHeader = "X-Snapshot-Token"
	tokenField  = "token"
	backupField = "backup"
	uploadField = "snapshot"
)

// maxRequestBody bounds an import request: the snapshot plus multipart framing.
const maxRequestBody = fileutil.MaxFileSize + 1<<20

// HistoryEntry summarizes one ledger entry.
type HistoryEntry struct {
	Index         int      `json:"index"`
	CreatedAt     int64    `json:"createdAt"`
	Reason        string   `json:"reason"`
	SchemaVersion string   `json:"schemaVersion"`
	Domains       []string `json:"domains"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !guard.ClaimsFrom(r.Context()).Can(guard.CapabilityAdmin) {
		writeError(w, http.StatusForbidden, guard.ErrUnauthorized.Error())
		return
	}
	action := chi.URLParam(r, "action")
	if !slices.Contains(backup.Actions, action) {
		writeError(w, http.StatusNotFound, "unknown action "+strconv.Quote(action))
		return
	}
	token, err := s.signer.IssueToken(action)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"action": action, "token": token})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !guard.ClaimsFrom(r.Context()).Can(guard.CapabilityAdmin) {
		writeError(w, http.StatusForbidden, guard.ErrUnauthorized.Error())
		return
	}
	list, err := s.manager.History(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries := make([]HistoryEntry, 0, len(list))
	for i, snap := range list {
		domains := snap.Domains.Present()
		if domains == nil {
			domains = []string{}
		}
		entries = append(entries, HistoryEntry{
			Index:         i,
			CreatedAt:     snap.CreatedAt,
			Reason:        string(snap.Reason),
			SchemaVersion: snap.SchemaVersion,
			Domains:       domains,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	_, err := s.manager.Export(r.Context(), backup.ExportRequest{Token: requestToken(r)}, responseDelivery{w})
	if err != nil {
		s.fail(w, r, err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	upload := readUpload(r)

	res, err := s.manager.Import(r.Context(), backup.ImportRequest{
		Token:      requestToken(r),
		Upload:     upload,
		SkipBackup: skipBackup(r),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	applied := res.Applied
	if applied == nil {
		applied = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"backup":  res.Backup != nil,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.Reset(r.Context(), backup.ResetRequest{
		Token:      requestToken(r),
		SkipBackup: skipBackup(r),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup": res.Backup != nil})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	res, err := s.manager.Restore(r.Context(), backup.RestoreRequest{
		Token: requestToken(r),
		Index: chi.URLParam(r, "index"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	applied := res.Applied
	if applied == nil {
		applied = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"index":     res.Index,
		"reason":    res.Target.Reason,
		"createdAt": res.Target.CreatedAt,
		"applied":   applied,
	})
}

// readUpload builds an Upload from the multipart "snapshot" field. A missing
// field yields nil; receive failures are reported as TransportError.
func readUpload(r *http.Request) *backup.Upload {
	file, header, err := r.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return &backup.Upload{TransportError: err}
	}
	defer file.Close()

	data, err := fileutil.ReadAllLimit(file, fileutil.MaxFileSize)
	return &backup.Upload{
		Data:           data,
		Filename:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		TransportError: err,
	}
}

func requestToken(r *http.Request) string {
	if token := r.Header.Get(TokenHeader); token != "" {
		return token
	}
	return r.FormValue(tokenField)
}

func skipBackup(r *http.Request) bool {
	switch r.FormValue(backupField) {
	case "0", "false", "no", "off":
		return true
	default:
		return false
	}
}

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, guard.ErrUnauthorized), errors.Is(err, guard.ErrReplayToken):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backup.ErrUpload),
		errors.Is(err, backup.ErrFormat),
		errors.Is(err, snapshot.ErrDecode),
		errors.Is(err, snapshot.ErrSchema),
		errors.Is(err, snapshot.ErrShape):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"error", err)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

// responseDelivery streams an export as a download.
type responseDelivery struct {
	w http.ResponseWriter
}

func (d responseDelivery) Deliver(_ context.Context, data []byte, filename, contentType string) error {
	h := d.w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-store")
	d.w.WriteHeader(http.StatusOK)
	_, err := d.w.Write(data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
