// Package api exposes the exchange over HTTP: auth, market data, order
// lifecycle, quotes and swaps, the compact binary submission path, and a
// WebSocket feed of depth updates and fills.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"lob/internal/quote"
	"lob/internal/registry"
	"lob/internal/router"
	"lob/internal/store"
	"lob/internal/token"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

// maxRawPayload bounds a compact submission body.
const maxRawPayload = 4096

type Server struct {
	bank        *token.Bank
	registry    *registry.Registry
	router      *router.Router
	helper      *quote.Helper
	hub         *Hub
	store       *store.Store
	sessions    *SessionStore
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	corsOrigins []string // empty = allow all

	// Raw units granted per asset at registration.
	SignupGrant uint64
}

func NewServer(bank *token.Bank, reg *registry.Registry, rt *router.Router, helper *quote.Helper, st *store.Store) *Server {
	s := &Server{
		bank:        bank,
		registry:    reg,
		router:      rt,
		helper:      helper,
		hub:         NewHub(),
		store:       st,
		sessions:    NewSessionStore(st),
		rateLimiter: NewRateLimiter(300, 1*time.Minute),
		SignupGrant: 1_000_000_000,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}

	// Journal and broadcast every fill the router settles.
	rt.OnFill(s.handleFill)
	return s
}

// SetCORSOrigins sets the allowed CORS origins. An empty slice allows all
// origins (development mode).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	if origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimiter.Middleware)
	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/account", s.handleGetAccount)

		r.Get("/markets", s.getMarkets)
		r.Post("/markets", s.createMarket)
		r.Get("/markets/{id}/book", s.getDepth)
		r.Get("/markets/{id}/orders", s.getLimitOrders)
		r.Get("/markets/{id}/hint", s.getHint)
		r.Get("/markets/{id}/fills", s.getFills)

		r.Post("/orders", s.submitOrder)
		r.Put("/orders/{id}", s.updateOrder)
		r.Delete("/orders/{id}", s.cancelOrder)
		r.Post("/orders/cancel", s.cancelBatch)

		r.Post("/quote", s.handleQuote)
		r.Post("/swap", s.handleSwap)

		r.Post("/raw", s.handleRaw)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

type MarketRequest struct {
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	SizeTickExp  uint8  `json:"size_tick_exp"`
	PriceTickExp uint8  `json:"price_tick_exp"`
}

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	if s.getSession(r) == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req MarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.registry.CreateOrderBook(req.Token0, req.Token1, req.SizeTickExp, req.PriceTickExp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]uint8{"market_id": id})
}

func (s *Server) getMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.router.AllOrderBooks())
}

func (s *Server) getDepth(w http.ResponseWriter, r *http.Request) {
	marketID, ok := s.marketParam(w, r)
	if !ok {
		return
	}
	asks, bids, err := s.router.Depth(marketID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"asks": asks, "bids": bids})
}

func (s *Server) getLimitOrders(w http.ResponseWriter, r *http.Request) {
	marketID, ok := s.marketParam(w, r)
	if !ok {
		return
	}
	v, err := s.router.GetLimitOrders(marketID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, v)
}

func (s *Server) getHint(w http.ResponseWriter, r *http.Request) {
	marketID, ok := s.marketParam(w, r)
	if !ok {
		return
	}
	price, err := strconv.ParseUint(r.URL.Query().Get("price"), 10, 64)
	if err != nil || price == 0 {
		http.Error(w, "price must be a positive integer", http.StatusBadRequest)
		return
	}
	isAsk := r.URL.Query().Get("is_ask") == "true"

	hint, err := s.router.SuggestHint(marketID, price, isAsk)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]uint32{"hint_id": hint})
}

func (s *Server) getFills(w http.ResponseWriter, r *http.Request) {
	marketID, ok := s.marketParam(w, r)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	fills, err := s.store.RecentFills(marketID, limit)
	if err != nil {
		http.Error(w, "failed to load fills", http.StatusInternalServerError)
		return
	}
	writeJSON(w, fills)
}

type OrderRequest struct {
	MarketID    uint8  `json:"market_id"`
	Type        string `json:"type"` // "limit" or "market"
	IsAsk       bool   `json:"is_ask"`
	Amount0Base uint64 `json:"amount0_base"`
	PriceBase   uint64 `json:"price_base"`
	HintID      uint32 `json:"hint_id"`
}

type OrderResponse struct {
	OrderID uint32 `json:"order_id,omitempty"`
	Filled0 uint64 `json:"filled0,omitempty"`
	Filled1 uint64 `json:"filled1,omitempty"`
}

func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var resp OrderResponse
	switch req.Type {
	case "limit":
		id, err := s.router.CreateLimitOrder(session.Username, req.MarketID,
			req.Amount0Base, req.PriceBase, req.IsAsk, req.HintID)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		resp.OrderID = id
	case "market":
		filled0, filled1, err := s.router.CreateMarketOrder(session.Username, req.MarketID,
			req.Amount0Base, req.PriceBase, req.IsAsk)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		resp.Filled0 = filled0
		resp.Filled1 = filled1
	default:
		http.Error(w, "type must be 'limit' or 'market'", http.StatusBadRequest)
		return
	}

	s.broadcastDepth(req.MarketID)
	writeJSON(w, resp)
}

type UpdateRequest struct {
	MarketID    uint8  `json:"market_id"`
	Amount0Base uint64 `json:"amount0_base"`
	PriceBase   uint64 `json:"price_base"`
	HintID      uint32 `json:"hint_id"`
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	newID, err := s.router.UpdateLimitOrder(session.Username, req.MarketID, orderID,
		req.Amount0Base, req.PriceBase, req.HintID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	s.broadcastDepth(req.MarketID)
	writeJSON(w, OrderResponse{OrderID: newID})
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	orderID, ok := orderParam(w, r)
	if !ok {
		return
	}
	marketID64, err := strconv.ParseUint(r.URL.Query().Get("market"), 10, 8)
	if err != nil {
		http.Error(w, "market query parameter required", http.StatusBadRequest)
		return
	}

	if err := s.router.CancelLimitOrder(session.Username, uint8(marketID64), orderID); err != nil {
		writeOrderError(w, err)
		return
	}

	s.broadcastDepth(uint8(marketID64))
	writeJSON(w, map[string]string{"status": "cancelled"})
}

type BatchCancelRequest struct {
	MarketIDs []uint8  `json:"market_ids"`
	OrderIDs  []uint32 `json:"order_ids"`
}

func (s *Server) cancelBatch(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req BatchCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.router.CancelLimitOrderBatch(session.Username, req.MarketIDs, req.OrderIDs); err != nil {
		writeOrderError(w, err)
		return
	}

	for _, id := range req.MarketIDs {
		s.broadcastDepth(id)
	}
	writeJSON(w, map[string]string{"status": "cancelled"})
}

type QuoteRequest struct {
	MarketID    uint8  `json:"market_id"`
	IsAsk       bool   `json:"is_ask"`
	ExactInput  uint64 `json:"exact_input,omitempty"`
	ExactOutput uint64 `json:"exact_output,omitempty"`
}

type QuoteResponse struct {
	Input  uint64 `json:"input"`
	Output uint64 `json:"output"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if (req.ExactInput == 0) == (req.ExactOutput == 0) {
		http.Error(w, "exactly one of exact_input, exact_output required", http.StatusBadRequest)
		return
	}

	var in, out uint64
	var err error
	if req.ExactInput > 0 {
		in, out, err = s.helper.QuoteExactInput(req.MarketID, req.IsAsk, req.ExactInput)
	} else {
		in, out, err = s.helper.QuoteExactOutput(req.MarketID, req.IsAsk, req.ExactOutput)
	}
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, QuoteResponse{Input: in, Output: out})
}

type SwapRequest struct {
	MarketID    uint8  `json:"market_id"`
	IsAsk       bool   `json:"is_ask"`
	ExactInput  uint64 `json:"exact_input,omitempty"`
	ExactOutput uint64 `json:"exact_output,omitempty"`
	MinOutput   uint64 `json:"min_output,omitempty"`
	MaxInput    uint64 `json:"max_input,omitempty"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if (req.ExactInput == 0) == (req.ExactOutput == 0) {
		http.Error(w, "exactly one of exact_input, exact_output required", http.StatusBadRequest)
		return
	}

	var in, out uint64
	var err error
	if req.ExactInput > 0 {
		in, out, err = s.helper.SwapExactInput(session.Username, req.MarketID,
			req.IsAsk, req.ExactInput, req.MinOutput)
	} else {
		maxInput := req.MaxInput
		if maxInput == 0 {
			maxInput = ^uint64(0)
		}
		in, out, err = s.helper.SwapExactOutput(session.Username, req.MarketID,
			req.IsAsk, req.ExactOutput, maxInput)
	}
	if err != nil {
		writeOrderError(w, err)
		return
	}

	s.broadcastDepth(req.MarketID)
	writeJSON(w, QuoteResponse{Input: in, Output: out})
}

// handleRaw accepts a compact binary payload as the request body and
// dispatches it for the authenticated user.
func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxRawPayload+1))
	if err != nil || len(payload) == 0 || len(payload) > maxRawPayload {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	res, err := s.router.Dispatch(session.Username, payload)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	if len(payload) > 1 {
		s.broadcastDepth(payload[1])
	}
	writeJSON(w, res)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.Register(client)

	// Initial snapshot of every market.
	data, _ := json.Marshal(map[string]any{
		"type":    "markets",
		"markets": s.router.AllOrderBooks(),
	})
	client.send <- data

	go client.WritePump()
	go client.ReadPump()
}

// handleFill runs inside the router's settlement path.
func (s *Server) handleFill(f router.Fill) {
	if s.store != nil {
		rec := store.FillRecord{
			ID:           f.ID,
			MarketID:     f.MarketID,
			MakerOrderID: f.MakerOrderID,
			TakerOrderID: f.TakerOrderID,
			Maker:        f.Maker,
			Taker:        f.Taker,
			TakerIsAsk:   f.TakerIsAsk,
			Amount0:      f.Amount0,
			Amount1:      f.Amount1,
			Price:        f.PriceBase,
		}
		if err := s.store.SaveFill(rec); err != nil {
			log.Printf("[FILL] journal error: %v", err)
		}
	}
	s.hub.Broadcast(map[string]any{
		"type": "fill",
		"fill": f,
	})
}

func (s *Server) broadcastDepth(marketID uint8) {
	asks, bids, err := s.router.Depth(marketID)
	if err != nil {
		return
	}
	s.hub.Broadcast(map[string]any{
		"type":      "book",
		"market_id": marketID,
		"asks":      asks,
		"bids":      bids,
	})
}

func (s *Server) marketParam(w http.ResponseWriter, r *http.Request) (uint8, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 8)
	if err != nil {
		http.Error(w, "invalid market id", http.StatusBadRequest)
		return 0, false
	}
	return uint8(id), true
}

func orderParam(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, false
	}
	return uint32(id), true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeOrderError maps domain errors onto HTTP statuses.
func writeOrderError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, router.ErrMarketNotFound) || errors.Is(err, quote.ErrMarketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, router.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, token.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	}
	http.Error(w, err.Error(), status)
}

// Shutdown stops internal goroutines.
func (s *Server) Shutdown() {
	s.sessions.Stop()
	s.rateLimiter.Stop()
}
