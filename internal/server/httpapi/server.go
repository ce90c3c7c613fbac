// Package httpapi exposes the trading service over REST. Registration and
// login are open; everything else requires a Bearer token minted by login.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/barklabs/barkbot/internal/logging"
	"github.com/barklabs/barkbot/internal/server/models"
	"github.com/barklabs/barkbot/internal/server/trade"
)

// Accounts is the account-management surface the API needs.
type Accounts interface {
	Register(ctx context.Context, telegramID int64, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Get(ctx context.Context, telegramID int64) (*models.User, error)
}

// Trader runs the trading operations for authenticated callers.
type Trader interface {
	Swap(ctx context.Context, telegramID int64, req trade.SwapRequest) trade.Result
	OpenLimitOrder(ctx context.Context, telegramID int64, req trade.LimitOrderRequest) trade.Result
	CreateDCA(ctx context.Context, telegramID int64, req trade.DCARequest) trade.Result
	CloseDCA(ctx context.Context, telegramID int64, dcaPubKey string) trade.Result
	WithdrawSOL(ctx context.Context, telegramID int64, req trade.WithdrawRequest) trade.Result
	Balance(ctx context.Context, telegramID int64) (uint64, error)
}

// Config carries the API settings.
type Config struct {
	JWTSecret      []byte
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the REST transport.
type Server struct {
	accounts Accounts
	trader   Trader
	cfg      Config
	log      logging.Logger
	router   chi.Router
}

func NewServer(accounts Accounts, trader Trader, cfg Config, log logging.Logger) *Server {
	s := &Server{accounts: accounts, trader: trader, cfg: cfg, log: log}
	s.router = s.routes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticator(s.cfg.JWTSecret))
			r.Use(RateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

			r.Post("/swap", s.handleSwap)
			r.Post("/limit_order", s.handleLimitOrder)
			r.Post("/dca/create", s.handleCreateDCA)
			r.Post("/dca/close", s.handleCloseDCA)
			r.Post("/withdraw", s.handleWithdraw)
			r.Get("/balance", s.handleBalance)
		})
	})

	return r
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := s.accounts.Register(r.Context(), req.TelegramID, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		TelegramID: user.TelegramID,
		Email:      user.Email,
		Verified:   user.Verified,
		PublicKey:  user.PublicKey,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	token, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	telegramID, _ := TelegramIDFromContext(r.Context())

	var req swapRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	writeResult(w, s.trader.Swap(r.Context(), telegramID, trade.SwapRequest{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      req.Amount,
		SlippageBPS: req.SlippageBPS,
	}))
}

func (s *Server) handleLimitOrder(w http.ResponseWriter, r *http.Request) {
	telegramID, _ := TelegramIDFromContext(r.Context())

	var req limitOrderRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	writeResult(w, s.trader.OpenLimitOrder(r.Context(), telegramID, trade.LimitOrderRequest{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   req.InAmount,
		OutAmount:  req.OutAmount,
	}))
}

func (s *Server) handleCreateDCA(w http.ResponseWriter, r *http.Request) {
	telegramID, _ := TelegramIDFromContext(r.Context())

	var req createDCARequest
	if !decode(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	writeResult(w, s.trader.CreateDCA(r.Context(), telegramID, trade.DCARequest{
		InputMint:            req.InputMint,
		OutputMint:           req.OutputMint,
		TotalInAmount:        req.TotalInAmount,
		InAmountPerCycle:     req.InAmountPerCycle,
		CycleFrequency:       req.CycleFrequency,
		MinOutAmountPerCycle: req.MinOutAmountPerCycle,
		MaxOutAmountPerCycle: req.MaxOutAmountPerCycle,
		Start:                req.Start,
	}))
}

func (s *Server) handleCloseDCA(w http.ResponseWriter, r *http.Request) {
	telegramID, _ := TelegramIDFromContext(r.Context())

	var req closeDCARequest
	if !decode(w, r, &req) {
		return
	}
	if req.DCAPubKey == "" {
		writeError(w, http.StatusBadRequest, "dca_pub_key is required")
		return
	}

	writeResult(w, s.trader.CloseDCA(r.Context(), telegramID, req.DCAPubKey))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	telegramID, _ := TelegramIDFromContext(r.Context())

	var req withdrawRequest
	if !decode(w, r, &req) {
		return
	}

	writeResult(w, s.trader.WithdrawSOL(r.Context(), telegramID, trade.WithdrawRequest{
		Recipient: req.Recipient,
		Lamports:  req.Lamports,
	}))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	telegramID, _ := TelegramIDFromContext(r.Context())

	user, err := s.accounts.Get(r.Context(), telegramID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	lamports, err := s.trader.Balance(r.Context(), telegramID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{PublicKey: user.PublicKey, Lamports: lamports})
}

// writeServiceError maps service errors onto HTTP statuses without
// exposing internals.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, trade.ErrPrecondition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error(r.Context(), "request failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeResult renders a trade outcome: 200 for success, 422 otherwise.
// The Result already carries a sanitized error message.
func writeResult(w http.ResponseWriter, res trade.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}
