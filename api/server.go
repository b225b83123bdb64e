// Package api exposes a database over HTTP. Every collection operation answers
// with the persistence Response envelope encoded as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/asaidimu/go-mockdb/core/persistence"
	"github.com/asaidimu/go-mockdb/core/query"
	"github.com/asaidimu/go-mockdb/core/update"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	maxBodySize     = 10 << 20
	shutdownTimeout = 5 * time.Second
)

// errBadRequest marks request bodies that could not be decoded.
var errBadRequest = errors.New("bad request")

// Server wraps a database and provides HTTP handlers for its collections.
type Server struct {
	db     *persistence.Database
	logger *zap.Logger
	mux    *chi.Mux
}

// NewServer creates a new API server for db.
func NewServer(db *persistence.Database, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		db:     db,
		logger: logger,
		mux:    chi.NewMux(),
	}
	s.routes(s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes(mux *chi.Mux) {
	mux.Use(
		middleware.Recoverer,
		s.requestLogger,
		corsMiddleware,
		limitBody,
	)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, "", http.StatusNotFound, errors.New("route not found"))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, "", http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	mux.Route("/api", func(r chi.Router) {
		r.Get("/collections", s.handleCollections)

		r.Get("/{collection}/_count", s.handleCount)
		r.Get("/{collection}/{id}", s.handleFindByID)
		r.Delete("/{collection}/{id}", s.handleRemoveByID)

		r.Post("/{collection}/insert", s.handleInsert)
		r.Post("/{collection}/find", s.handleFind)
		r.Post("/{collection}/findOne", s.handleFindOne)
		r.Post("/{collection}/update", s.handleUpdate(false))
		r.Post("/{collection}/updateOne", s.handleUpdate(true))
		r.Post("/{collection}/replace", s.handleReplace(false))
		r.Post("/{collection}/replaceOne", s.handleReplace(true))
		r.Post("/{collection}/remove", s.handleRemove(false))
		r.Post("/{collection}/removeOne", s.handleRemove(true))
	})
}

// Start serves the API on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", zap.String("address", addr), zap.String("database", s.db.Name()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Stopping API server", zap.String("address", addr))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

// statusCode maps an operation error to an HTTP status.
func statusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, persistence.ErrNotFound),
		errors.Is(err, persistence.ErrCollectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, persistence.ErrDuplicateID),
		errors.Is(err, persistence.ErrCollectionExists):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, persistence.ErrEmptyFilter),
		errors.Is(err, persistence.ErrInvalidDocument),
		errors.Is(err, persistence.ErrInvalidName),
		errors.Is(err, query.ErrInvalidFilter),
		errors.Is(err, query.ErrUnknownOperator),
		errors.Is(err, query.ErrTypeMismatch),
		errors.Is(err, update.ErrInvalidExpression),
		errors.Is(err, update.ErrUnknownOperator),
		errors.Is(err, update.ErrTypeMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeResponse writes an operation envelope. successCode is used when the
// operation succeeded.
func (s *Server) writeResponse(w http.ResponseWriter, successCode int, resp *persistence.Response) {
	code := successCode
	if !resp.OK() {
		code = statusCode(resp.Err())
	}
	s.writeJSON(w, code, resp)
}

// writeError writes a failed envelope for errors raised before an operation
// could run.
func (s *Server) writeError(w http.ResponseWriter, collection string, code int, err error) {
	if code == 0 {
		code = statusCode(err)
	}
	s.writeJSON(w, code, persistence.ErrorResponse(s.db.Name(), collection, err))
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}
