package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/koustreak/sqlforge/internal/filestore"
	"github.com/koustreak/sqlforge/internal/generator"
	"github.com/koustreak/sqlforge/internal/logger"
	"github.com/koustreak/sqlforge/internal/schema"
)

// maxBody bounds generate and export request bodies.
const maxBody = 4 << 20

// generateRequest is the body of the generate and export routes.
type generateRequest struct {
	generator.Selections
	Options *generator.Options `json:"options,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) credentials(r *http.Request) database.Config {
	if dsn := strings.TrimSpace(r.Header.Get(HeaderDatabaseURL)); dsn != "" {
		return s.cfg.WithDSN(dsn)
	}
	return s.cfg.DatabaseConfig()
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	intro, err := s.dial(r.Context(), s.credentials(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer intro.Close()

	out, err := schema.ListSchemaTables(r.Context(), intro)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSchemaDetails(w http.ResponseWriter, r *http.Request) {
	intro, err := s.dial(r.Context(), s.credentials(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer intro.Close()

	out, err := schema.Catalog(r.Context(), intro)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) generate(r *http.Request) (string, error) {
	var req generateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
	}

	opts := s.cfg.Options()
	if req.Options != nil {
		opts = *req.Options
	}

	return s.gen.Generate(r.Context(), generator.Input{
		Credentials: s.credentials(r),
		Selections:  req.Selections,
		Options:     opts,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	script, err := s.generate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="migration.sql"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, script)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	script, err := s.generate(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sc := s.cfg.Store
	art, err := filestore.Publish(r.Context(), s.store, sc.Bucket, sc.Prefix, script, sc.PresignTTL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, art)
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	sc := s.cfg.Store
	objs, err := s.store.ListObjects(r.Context(), sc.Bucket, filestore.ListOptions{
		Prefix:    strings.Trim(sc.Prefix, "/") + "/",
		Recursive: true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if objs == nil {
		objs = []filestore.ObjectInfo{}
	}
	writeJSON(w, http.StatusOK, objs)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" || strings.Contains(key, "..") {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "invalid export key"))
		return
	}

	obj, err := s.store.GetObject(r.Context(), s.cfg.Store.Bucket, key)
	if errs.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "export " + key + " not found", Kind: errs.ErrKindNotFound.String()})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		logger.FromContext(r.Context()).WarnWith("export download interrupted", err, map[string]interface{}{"key": key})
	}
}

// statusFor maps an engine error to a response status. Input problems are
// the caller's fault; everything else is reported as a server failure.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]interface{}{"path": r.URL.Path})
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
