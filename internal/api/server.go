package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"microbank/internal/config"
	"microbank/internal/economy"
	"microbank/internal/pricefeed"
)

type contextKey string

const userContextKey contextKey = "user"

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	econ     *economy.Service
	hub      *pricefeed.Hub
	limiter  *limiter.Limiter
	validate *validator.Validate
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, econ *economy.Service, hub *pricefeed.Hub) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rate, err := limiter.NewRateFromFormatted(cfg.LoginRate)
	if err != nil {
		return nil, fmt.Errorf("parse login rate %q: %w", cfg.LoginRate, err)
	}
	if hub == nil {
		hub = pricefeed.NewHub(logger)
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		econ:     econ,
		hub:      hub,
		limiter:  limiter.New(memory.NewStore(), rate),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		// Long-lived; kept outside the request timeout.
		r.Get("/stocks/stream", s.handleStockStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/stocks", s.handleStocksList)
			r.Get("/stocks/{symbol}", s.handleStockDetail)
			r.Get("/shop/items", s.handleShopItems)
			r.Get("/games", s.handleGames)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Post("/login", s.handleLogin)
				r.Post("/me/code", s.handleChangeCode)
				r.Get("/balances", s.handleBalances)
				r.Get("/transactions", s.handleTransactions)
				r.Get("/portfolio", s.handlePortfolio)
				r.Post("/stocks/{symbol}/buy", s.handleBuy)
				r.Post("/stocks/{symbol}/sell", s.handleSell)
				r.Get("/shop/orders", s.handleMyOrders)
				r.Post("/shop/orders", s.handlePlaceOrder)
				r.Get("/tax/seasons", s.handleSeasons)
				r.Post("/games/{id}/play", s.handlePlay)

				r.Route("/admin", func(r chi.Router) {
					r.Use(s.adminOnly)
					r.Get("/users", s.handleUsers)
					r.Post("/balances/adjust", s.handleAdjust)
					r.Post("/users/{username}/code", s.handleSetCode)
					r.Post("/stocks/{symbol}/price", s.handleSetPrice)
					r.Get("/orders", s.handleAllOrders)
					r.Post("/orders/{id}/decision", s.handleDecide)
					r.Post("/shop/items", s.handleAddItem)
					r.Put("/shop/items/{id}", s.handleEditItem)
					r.Delete("/shop/items/{id}", s.handleDeleteItem)
					r.Post("/tax/seasons", s.handleAddSeason)
					r.Post("/tax/seasons/{id}/end", s.handleEndSeason)
					r.Post("/tax/apply", s.handleApplyTax)
					r.Post("/market/drift", s.handleDrift)
				})
			})
		})
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authMiddleware checks HTTP Basic credentials against the user list.
// Failed attempts count against a per-client limit; once it is reached the
// client is refused before its credentials are checked.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, secret, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="microbank"`)
			writeError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		key := "auth:" + clientIP(r)
		lctx, err := s.limiter.Peek(r.Context(), key)
		if err != nil {
			s.log.Error("rate limit check failed", "err", err)
			writeError(w, http.StatusInternalServerError, "rate limit check failed")
			return
		}
		if lctx.Reached {
			s.log.Warn("credential attempts throttled", "ip", clientIP(r), "username", username)
			writeError(w, http.StatusTooManyRequests, "too many failed attempts, try again later")
			return
		}

		user, err := s.econ.Authenticate(r.Context(), username, secret)
		if err != nil {
			if errors.Is(err, economy.ErrUnauthorized) {
				if _, lerr := s.limiter.Get(r.Context(), key); lerr != nil {
					s.log.Error("rate limit increment failed", "err", lerr)
				}
			}
			writeDomainError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.econ.RequireAdmin(callerFromContext(r.Context())); err != nil {
			writeDomainError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFromContext(ctx context.Context) economy.User {
	user, _ := ctx.Value(userContextKey).(economy.User)
	return user
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, economy.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, economy.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, economy.ErrInsufficientFunds),
		errors.Is(err, economy.ErrInsufficientHoldings),
		errors.Is(err, economy.ErrInsufficientBankFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads the body into out and runs its validate tags.
func (s *Server) decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", economy.ErrValidation, err)
	}
	if err := s.validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", economy.ErrValidation, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %v", economy.ErrValidation, err)
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", economy.ErrValidation, name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
