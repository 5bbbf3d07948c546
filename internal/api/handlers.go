package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/models"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Ledger   *ledger.Ledger
	Pinger   Pinger // optional
	Log      *logrus.Logger
	validate *validator.Validate
}

// NewHandler creates a new handler
func NewHandler(l *ledger.Ledger, pinger Pinger, log *logrus.Logger) *Handler {
	return &Handler{Ledger: l, Pinger: pinger, Log: log, validate: validator.New()}
}

type tradeRequest struct {
	TelegramID int64           `json:"telegram_id" validate:"required"`
	Crypto     string          `json:"crypto" validate:"required"`
	Amount     json.RawMessage `json:"amount"`
	Price      json.RawMessage `json:"price"`
}

type createUserRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`
	Username   string `json:"username" validate:"max=64"`
	FirstName  string `json:"first_name" validate:"max=64"`
	LastName   string `json:"last_name" validate:"max=64"`
}

type userResponse struct {
	ID         int                `json:"id"`
	TelegramID int64              `json:"telegram_id"`
	Username   string             `json:"username"`
	FirstName  string             `json:"first_name"`
	Balances   map[string]float64 `json:"balances"`
	TotalValue float64            `json:"total_value"`
}

type entryResponse struct {
	ID        int     `json:"id"`
	Type      string  `json:"type"`
	Crypto    string  `json:"crypto"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	Total     float64 `json:"total"`
	Timestamp string  `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLedgerError maps ledger errors to HTTP statuses
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, models.ErrInvalidAsset):
		writeError(w, http.StatusBadRequest, "Unsupported crypto")
	case errors.Is(err, models.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Amount must be a positive number")
	case errors.Is(err, models.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "Price must be a positive number")
	case errors.Is(err, models.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, models.ErrInsufficientHoldings):
		writeError(w, http.StatusBadRequest, "Insufficient crypto balance")
	default:
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func telegramIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseDecimal accepts a JSON number or a numeric string
func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Zero, errors.New("missing value")
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
	}
	return decimal.NewFromString(s)
}

func (h *Handler) presentUser(acct *models.Account) (userResponse, error) {
	total, err := h.Ledger.TotalValue(*acct)
	if err != nil {
		return userResponse{}, err
	}
	balances := make(map[string]float64, 7)
	for sym, v := range acct.Balances.Map() {
		balances[sym] = v.InexactFloat64()
	}
	return userResponse{
		ID:         acct.ID,
		TelegramID: acct.TelegramID,
		Username:   acct.Username,
		FirstName:  acct.FirstName,
		Balances:   balances,
		TotalValue: total.InexactFloat64(),
	}, nil
}

// GetUser returns an account with its balances and net worth
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	telegramID, err := telegramIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	acct, err := h.Ledger.Account(r.Context(), telegramID)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	resp, err := h.presentUser(acct)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateUser opens an account on first contact, or returns the existing one
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "telegram_id is required")
		return
	}

	acct, created, err := h.Ledger.OpenAccount(r.Context(), models.Profile{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
	})
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	resp, err := h.presentUser(acct)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// GetPrices returns the static price table
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	prices := make(map[string]interface{}, len(models.Assets))
	for a, info := range h.Ledger.Prices() {
		prices[string(a)] = map[string]interface{}{
			"name":  info.Name,
			"price": info.Price.InexactFloat64(),
		}
	}
	writeJSON(w, http.StatusOK, prices)
}

// Buy handles a buy instruction
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, models.EntryBuy)
}

// Sell handles a sell instruction
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, models.EntrySell)
}

func (h *Handler) trade(w http.ResponseWriter, r *http.Request, side models.EntryType) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "telegram_id and crypto are required")
		return
	}

	amount, err := parseDecimal(req.Amount)
	if err != nil {
		h.writeLedgerError(w, r, models.ErrInvalidAmount)
		return
	}
	price, err := parseDecimal(req.Price)
	if err != nil {
		h.writeLedgerError(w, r, models.ErrInvalidPrice)
		return
	}

	tr := ledger.TradeRequest{TelegramID: req.TelegramID, Asset: req.Crypto, Amount: amount, Price: price}
	var res *ledger.Result
	verb := "bought"
	if side == models.EntryBuy {
		res, err = h.Ledger.Buy(r.Context(), tr)
	} else {
		verb = "sold"
		res, err = h.Ledger.Sell(r.Context(), tr)
	}
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	held, _ := res.Account.Balances.Get(res.Entry.Asset)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Successfully %s %s %s", verb, amount.String(), res.Entry.Asset),
		"new_balances": map[string]float64{
			models.USD:             res.Account.Balances.USD.InexactFloat64(),
			string(res.Entry.Asset): held.InexactFloat64(),
		},
	})
}

// GetTransactions returns the newest ledger entries of an account
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	telegramID, err := telegramIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	entries, err := h.Ledger.History(r.Context(), telegramID, ledger.HistoryLimit)
	if err != nil {
		h.writeLedgerError(w, r, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:        e.ID,
			Type:      string(e.Type),
			Crypto:    string(e.Asset),
			Amount:    e.Amount.InexactFloat64(),
			Price:     e.Price.InexactFloat64(),
			Total:     e.Total.InexactFloat64(),
			Timestamp: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Health reports service liveness and store reachability
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Pinger.Ping(ctx); err != nil {
			h.Log.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "error",
				"message": "Database unavailable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "CryptoPro API is running",
	})
}
