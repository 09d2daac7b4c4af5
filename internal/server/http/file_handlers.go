package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/workflow"
)

// listFiles handles GET /submissions/{submissionID}/files.
func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := listValues(r.URL.Query(), "file_stage")
	stages := make([]domain.FileStage, len(raw))
	for i, v := range raw {
		stages[i] = domain.FileStage(v)
		if !stages[i].Valid() {
			writeError(w, http.StatusBadRequest, "file_stage must be a known file stage")
			return
		}
	}

	files, err := s.deps.Files.List(ctx, submissionFromContext(ctx).ID, stages...)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listFilesResponse{Files: files})
}

// uploadFile handles POST /submissions/{submissionID}/files as multipart form
// data: "file" plus file_stage, and optionally genre_id, assoc_kind, assoc_id,
// source_file_id, name and viewable.
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := actor(ctx)
	sub := submissionFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUploadSize))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	// Browsers send octet-stream for unknown types; let the blob store sniff those.
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}

	in := workflow.UploadInput{
		SubmissionID:   sub.ID,
		FileStage:      domain.FileStage(r.FormValue("file_stage")),
		UploaderUserID: userID,
		Viewable:       r.FormValue("viewable") == "true",
		Content: workflow.Content{
			Name:     header.Filename,
			MimeType: mimeType,
			Data:     data,
		},
	}
	if v := r.FormValue("genre_id"); v != "" {
		id, ok := parseID(w, v, "genre_id")
		if !ok {
			return
		}
		in.GenreID = &id
	}
	if v := r.FormValue("source_file_id"); v != "" {
		id, ok := parseID(w, v, "source_file_id")
		if !ok {
			return
		}
		in.SourceFileID = &id
	}
	if kind := r.FormValue("assoc_kind"); kind != "" {
		id, ok := parseID(w, r.FormValue("assoc_id"), "assoc_id")
		if !ok {
			return
		}
		in.Assoc = domain.Assoc{Kind: domain.AssocKind(kind), ID: id}
	}
	if name := r.FormValue("name"); name != "" {
		tag := sub.Locale
		if s.deps.Locales != nil {
			tag = s.deps.Locales.CurrentLocale(ctx)
		}
		in.Name = domain.LocalizedText{locale.Normalize(tag): name}
	}

	created, err := s.deps.Files.Upload(ctx, in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// listRevisions handles GET /submissions/{submissionID}/files/{fileID}/revisions.
func (s *Server) listRevisions(w http.ResponseWriter, r *http.Request) {
	fileID, ok := s.fileParam(w, r)
	if !ok {
		return
	}
	revisions, err := s.deps.Files.Revisions(r.Context(), fileID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRevisionsResponse{Revisions: revisions})
}

// downloadRevision handles GET /submissions/{submissionID}/files/{fileID}/revisions/{revisionID}/content.
func (s *Server) downloadRevision(w http.ResponseWriter, r *http.Request) {
	fileID, ok := s.fileParam(w, r)
	if !ok {
		return
	}
	revisionID, ok := parseID(w, chi.URLParam(r, "revisionID"), "revision_id")
	if !ok {
		return
	}

	data, rev, err := s.deps.Files.Download(r.Context(), fileID, revisionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", rev.Mimetype)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(rev.Path)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// fileParam parses the file id and checks that the file belongs to the submission.
func (s *Server) fileParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	ctx := r.Context()
	fileID, ok := parseID(w, chi.URLParam(r, "fileID"), "file_id")
	if !ok {
		return 0, false
	}
	f, err := s.deps.Files.Get(ctx, fileID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return 0, false
	}
	if f.SubmissionID != submissionFromContext(ctx).ID {
		s.writeDomainError(w, r, domain.NewNotFoundError("submission file", strconv.FormatInt(fileID, 10)))
		return 0, false
	}
	return fileID, true
}

// listGenres handles GET /genres. Disabled genres are listed with ?all=true.
func (s *Server) listGenres(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, contextID := actor(ctx)

	all, _, err := boolValue(r.URL.Query(), "all")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	genres, err := s.deps.Genres.List(ctx, contextID, !all)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listGenresResponse{Genres: genres})
}
