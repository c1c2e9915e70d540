package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelhost/internal/manager"
	"modelhost/pkg/types"
)

// Service defines the manager surface consumed by the HTTP layer.
type Service interface {
	ListModels() []types.ModelDescriptor
	Status() types.StatusResponse
	Ready() bool
	LoadedModel() string
	RequestLoadObserved(ctx context.Context, modelID string, subscriber func(types.ProgressEvent)) error
	Generate(ctx context.Context, messages []types.Message, cfg manager.GenerateConfig) (*manager.Stream, error)
	Stop()
	EvictModel(ctx context.Context, id string) error
	Reconcile(ctx context.Context) ([]string, error)
}

// generateChunk is one NDJSON line of a /generate response.
type generateChunk struct {
	Fragment string `json:"fragment,omitempty"`
	Done     bool   `json:"done,omitempty"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.ListModels()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Post("/load", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeModelRequest(w, r)
		if !ok {
			return
		}
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			z := zlog.Info().Str("path", r.URL.Path).Str("model", req.Model)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("load start")
		}

		// NDJSON progress stream; one line per telemetry event.
		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		out := io.Writer(w)
		if lvl >= LevelDebug {
			out = io.MultiWriter(w, &lineWriter{prefix: "load"})
		}
		enc := json.NewEncoder(out)
		streamed := false

		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		start := time.Now()
		err := svc.RequestLoadObserved(joinedCtx, req.Model, func(ev types.ProgressEvent) {
			streamed = true
			if encErr := enc.Encode(ev); encErr != nil {
				return
			}
			if flush != nil {
				flush()
			}
		})
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			// Headers are gone once the stream started; degrade to a
			// trailing NDJSON error line.
			if streamed {
				_ = enc.Encode(types.ErrorResponse{Error: err.Error(), Code: statusForError(err)})
				if flush != nil {
					flush()
				}
			} else {
				writeServiceError(w, err)
			}
			if lvl >= LevelInfo {
				zlog.Info().Int("status", statusForError(err)).Dur("dur", time.Since(start)).Err(err).Msg("load end")
			}
			return
		}
		if lvl >= LevelInfo {
			zlog.Info().Str("status", "200").Dur("dur", time.Since(start)).Str("model", req.Model).Msg("load end")
		}
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Messages) == 0 {
			writeJSONError(w, http.StatusBadRequest, "messages are required")
			return
		}
		// An explicit model pin never triggers an implicit load.
		if req.Model != "" && req.Model != svc.LoadedModel() {
			writeJSONError(w, http.StatusConflict, "model not loaded: "+req.Model)
			return
		}

		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		stream, err := svc.Generate(joinedCtx, req.Messages, manager.GenerateConfig{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		out := io.Writer(w)
		lvl := requestLogLevel(r)
		if lvl >= LevelDebug {
			out = io.MultiWriter(w, &lineWriter{prefix: "generate"})
		}
		enc := json.NewEncoder(out)
		var full strings.Builder
		for {
			frag, recvErr := stream.Recv()
			if recvErr == io.EOF {
				break
			}
			if recvErr != nil {
				_ = enc.Encode(generateChunk{Error: recvErr.Error()})
				if flush != nil {
					flush()
				}
				return
			}
			full.WriteString(frag)
			if encErr := enc.Encode(generateChunk{Fragment: frag}); encErr != nil {
				// Client went away; cancel the stream and drain it.
				cancel()
				for {
					if _, e := stream.Recv(); e != nil {
						return
					}
				}
			}
			if flush != nil {
				flush()
			}
		}
		_ = enc.Encode(generateChunk{Done: true, Content: full.String()})
		if flush != nil {
			flush()
		}
	})

	r.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
		svc.Stop()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"stopped": true})
	})

	r.Post("/evict", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeModelRequest(w, r)
		if !ok {
			return
		}
		if err := svc.EvictModel(r.Context(), req.Model); err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"evicted": req.Model})
	})

	r.Post("/reconcile", func(w http.ResponseWriter, r *http.Request) {
		cached, err := svc.Reconcile(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if cached == nil {
			cached = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.ReconcileResponse{Cached: cached})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// requireJSON enforces an application/json Content-Type on mutating routes.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

// decodeModelRequest parses the common {"model": "..."} body.
func decodeModelRequest(w http.ResponseWriter, r *http.Request) (types.LoadRequest, bool) {
	var req types.LoadRequest
	if !requireJSON(w, r) {
		return req, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return req, false
	}
	return req, true
}
