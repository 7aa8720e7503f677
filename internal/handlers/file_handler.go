package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okarpov/stash/internal/auth"
	"github.com/okarpov/stash/internal/file"
	"github.com/okarpov/stash/internal/metrics"
)

type FileHandler struct {
	files *file.Service
}

func NewFileHandler(files *file.Service) *FileHandler {
	return &FileHandler{files: files}
}

func fileIDParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "fileID"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)

	src, header, err := r.FormFile("file")
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer src.Close()

	comment := r.FormValue("comment")

	f, err := h.files.Upload(r.Context(), acct, header.Filename, src, comment)
	if err != nil {
		respondError(w, err)
		return
	}

	metrics.FilesUploaded.Inc()
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":            f.ID,
		"original_name": f.OriginalName,
		"size_bytes":    f.SizeBytes,
		"comment":       f.Comment,
		"uploaded":      f.Uploaded,
	})
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)

	var targetOwnerID *uint
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondDetail(w, http.StatusBadRequest, "Invalid user_id: expected integer")
			return
		}
		uid := uint(id)
		targetOwnerID = &uid
	}

	files, err := h.files.List(r.Context(), acct, targetOwnerID)
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(files))
	for i := range files {
		out = append(out, fileJSON(r, &files[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := fileIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found")
		return
	}

	if err := h.files.Delete(r.Context(), acct, id); err != nil {
		respondError(w, err)
		return
	}

	metrics.FilesDeleted.Inc()
	respondDetail(w, http.StatusOK, "File deleted")
}

func (h *FileHandler) Rename(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := fileIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found")
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if payload.Name == "" {
		respondDetail(w, http.StatusBadRequest, "Missing name")
		return
	}

	f, err := h.files.Rename(r.Context(), acct, id, payload.Name)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":            f.ID,
		"original_name": f.OriginalName,
	})
}

func (h *FileHandler) Comment(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := fileIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found")
		return
	}

	// The empty string is a valid explicit clear, so decode into a raw
	// map to tell "absent" apart from "empty".
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	raw, present := payload["comment"]
	if !present {
		respondDetail(w, http.StatusBadRequest, "Missing comment")
		return
	}
	var comment string
	if err := json.Unmarshal(raw, &comment); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	f, err := h.files.SetComment(r.Context(), acct, id, comment)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"id":      f.ID,
		"comment": f.Comment,
	})
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	acct := auth.GetAccount(r)
	id, ok := fileIDParam(r)
	if !ok {
		respondDetail(w, http.StatusNotFound, "Not found")
		return
	}

	f, rc, err := h.files.Download(r.Context(), acct, id)
	if err != nil {
		respondError(w, err)
		return
	}
	defer rc.Close()

	asAttachment := r.URL.Query().Get("mode") != "preview"
	serveFileContent(w, f.OriginalName, f.SizeBytes, asAttachment, rc)
	metrics.FilesDownloaded.WithLabelValues("session").Inc()
}

// serveFileContent streams file bytes with the headers a browser needs
// to either render inline or save under the original name.
func serveFileContent(w http.ResponseWriter, name string, size int64, asAttachment bool, rc io.Reader) {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))

	disposition := "inline"
	if asAttachment {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))

	// Clients that disconnect mid-download surface as a copy error;
	// the response is already streaming, so there is nothing to report.
	io.Copy(w, rc)
}
