package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tailorshop/m/domain"
	"tailorshop/m/internal/accounts"
	"tailorshop/m/internal/catalog"
	"tailorshop/m/internal/sales"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	products *catalog.Store
	accounts *accounts.Store
	sales    *sales.Recorder
	secret   string
	tokenTTL time.Duration
	logger   *zap.Logger
	validate *validator.Validate
}

// Options configures token issuing.
type Options struct {
	Secret   string
	TokenTTL time.Duration
}

// New constructs a Handler. It also switches shopspring/decimal to encode
// amounts as bare JSON numbers, a process-wide setting every response
// relies on.
func New(products *catalog.Store, users *accounts.Store, recorder *sales.Recorder, opts Options, logger *zap.Logger) *Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	decimal.MarshalJSONWithoutQuotes = true
	return &Handler{
		products: products,
		accounts: users,
		sales:    recorder,
		secret:   opts.Secret,
		tokenTTL: opts.TokenTTL,
		logger:   logger,
		validate: newValidator(),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/login", h.login)

	r.Route("/sales", func(r chi.Router) {
		r.With(h.optionalAuth).Post("/", h.createSale)
		r.Get("/", h.listSales)
		r.Get("/{id}", h.getSale)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})

	r.Get("/groups", h.listGroups)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.Delete("/{id}", h.deleteUser)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// respondStoreError maps a store error onto a status code. Unexpected errors
// are logged and hidden behind fallback.
func (h *Handler) respondStoreError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		h.logger.Error(fallback,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// Helpers

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// respondJSON writes payload as JSON. Decimal amounts are numbers, see New.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
