package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/boutique/cartservice/internal/cartstore"
	apperrors "github.com/boutique/cartservice/internal/errors"
	"github.com/boutique/cartservice/internal/telemetry"
)

type Server struct {
	store  cartstore.Store
	tel    *telemetry.Telemetry
	tracer trace.Tracer
	log    *slog.Logger
}

func NewServer(store cartstore.Store, tel *telemetry.Telemetry, log *slog.Logger) *Server {
	return &Server{
		store:  store,
		tel:    tel,
		tracer: tel.Tracer("cartservice/api"),
		log:    log,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tel.Middleware(r, "/health"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/cart/{userID}", func(r chi.Router) {
		r.Get("/", s.HandleGetCart)
		r.Delete("/", s.HandleEmptyCart)
		r.Post("/items", s.HandleAddItem)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperrors.NewNotFoundError("Route not found", "ROUTE_NOT_FOUND", "Use /cart/{userID} or /health."))
	})

	return r
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (s *Server) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewValidationError("Invalid request body", "INVALID_BODY", "Send a JSON object with product_id and quantity."))
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "cart.add_item")
	defer span.End()
	span.SetAttributes(
		attribute.String("cart.user_id", userID),
		attribute.String("cart.product_id", req.ProductID),
		attribute.Int("cart.quantity", int(req.Quantity)),
	)

	if err := s.store.AddItem(ctx, userID, req.ProductID, req.Quantity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.writeError(w, r.WithContext(ctx), storeError(err))
		return
	}

	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.writeError(w, r.WithContext(ctx), storeError(err))
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	cart, err := s.store.GetCart(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, storeError(err))
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

func (s *Server) HandleEmptyCart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := s.store.EmptyCart(r.Context(), userID); err != nil {
		s.writeError(w, r, storeError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func storeError(err error) *apperrors.AppError {
	if errors.Is(err, cartstore.ErrInvalidArgument) {
		return apperrors.NewValidationError(err.Error(), "INVALID_CART_REQUEST", "")
	}
	return apperrors.NewInternalError("Cart storage failed", "CART_STORE_FAILED", err)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError) {
	if appErr.StatusCode >= http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "Request failed", "error", appErr, "path", r.URL.Path)
	} else {
		s.log.DebugContext(r.Context(), "Request rejected", "error", appErr, "path", r.URL.Path)
	}
	writeJSON(w, appErr.StatusCode, appErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
