// Package httpapi exposes the launch layer over REST plus a websocket event
// firehose. Callers authenticate with a bearer token; the wallet claim inside
// it is the caller identity for every operation.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/launchlayer/curve_layer/internal/app"
	"github.com/launchlayer/curve_layer/internal/app/domain/bank"
	curvedomain "github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	vestingdomain "github.com/launchlayer/curve_layer/internal/app/domain/vesting"
	"github.com/launchlayer/curve_layer/internal/app/services/tokens"
	"github.com/launchlayer/curve_layer/internal/app/storage"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// Config carries the HTTP-facing knobs.
type Config struct {
	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string

	// RatePerSecond and Burst bound per-caller request rates. Zero disables
	// limiting.
	RatePerSecond int
	Burst         int
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the core REST API plus the websocket
// firehose, wrapped in auth and rate-limit middleware.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	r.HandleFunc("/tokens", h.launchToken).Methods(http.MethodPost)
	r.HandleFunc("/tokens", h.listTokens).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}", h.getToken).Methods(http.MethodGet)

	r.HandleFunc("/tokens/{id}/curve", h.curveState).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}/price", h.price).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}/quote", h.quoteBuy).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}/buy", h.buy).Methods(http.MethodPost)
	r.HandleFunc("/tokens/{id}/sell", h.sell).Methods(http.MethodPost)
	r.HandleFunc("/tokens/{id}/fees/withdraw", h.withdrawFees).Methods(http.MethodPost)
	r.HandleFunc("/tokens/{id}/balance", h.balance).Methods(http.MethodGet)

	r.HandleFunc("/tokens/{id}/vesting", h.vestingState).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{id}/vesting/claim", h.claim).Methods(http.MethodPost)
	r.HandleFunc("/tokens/{id}/vesting/milestones", h.setMilestones).Methods(http.MethodPost)
	r.HandleFunc("/tokens/{id}/vesting/burn", h.burnUnvested).Methods(http.MethodPost)

	r.HandleFunc("/tokens/{id}/events", h.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/events/ws", h.streamEvents).Methods(http.MethodGet)

	r.HandleFunc("/bank", h.bankBalance).Methods(http.MethodGet)
	r.HandleFunc("/bank/deposit", h.bankDeposit).Methods(http.MethodPost)
	r.HandleFunc("/bank/withdraw", h.bankWithdraw).Methods(http.MethodPost)
	r.HandleFunc("/bank/transactions", h.bankTransactions).Methods(http.MethodGet)

	var wrapped http.Handler = r
	if cfg.RatePerSecond > 0 {
		wrapped = NewRateLimiter(cfg.RatePerSecond, cfg.Burst, log).Handler(wrapped)
	}
	if cfg.JWTSecret != "" {
		wrapped = NewAuthMiddleware([]byte(cfg.JWTSecret), log, []string{"/healthz"}).Handler(wrapped)
	}
	return wrapped
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// tokens ------------------------------------------------------------------

func (h *handler) launchToken(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Symbol   string            `json:"symbol"`
		Name     string            `json:"name"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}

	t, err := h.app.Tokens.Launch(r.Context(), tokens.LaunchRequest{
		Symbol:   payload.Symbol,
		Name:     payload.Name,
		Deployer: wallet,
		Metadata: payload.Metadata,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenView(t))
}

func (h *handler) listTokens(w http.ResponseWriter, r *http.Request) {
	ts, err := h.app.Tokens.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]map[string]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, tokenView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getToken(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tokens.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tokenView(t))
}

// curve -------------------------------------------------------------------

func (h *handler) curveState(w http.ResponseWriter, r *http.Request) {
	st, err := h.app.Curve.State(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, curveStateView(st, h.app.Curve.Params()))
}

func (h *handler) price(w http.ResponseWriter, r *http.Request) {
	price, err := h.app.Curve.Price(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"price": price.String()})
}

func (h *handler) quoteBuy(w http.ResponseWriter, r *http.Request) {
	amount, err := parseBig(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := h.app.Curve.QuoteBuy(r.Context(), mux.Vars(r)["id"], amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, buyReceiptView(receipt))
}

func (h *handler) buy(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}

	receipt, err := h.app.Curve.Buy(r.Context(), mux.Vars(r)["id"], wallet, amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, buyReceiptView(receipt))
}

func (h *handler) sell(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}

	receipt, err := h.app.Curve.Sell(r.Context(), mux.Vars(r)["id"], wallet, amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token_id":     receipt.TokenID,
		"caller":       receipt.Caller,
		"token_amount": receipt.TokenAmount.String(),
		"gross_return": receipt.GrossReturn.String(),
		"fee":          receipt.Fee.String(),
		"net_return":   receipt.NetReturn.String(),
		"price":        receipt.Price.String(),
	})
}

func (h *handler) withdrawFees(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}
	amount, err := h.app.Curve.WithdrawProtocolFees(r.Context(), mux.Vars(r)["id"], wallet)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount.String()})
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	holder := strings.TrimSpace(r.URL.Query().Get("holder"))
	if holder == "" {
		wallet, ok := h.caller(w, r)
		if !ok {
			return
		}
		holder = wallet
	}
	bal, err := h.app.Curve.Balance(r.Context(), mux.Vars(r)["id"], holder)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"holder": holder, "balance": bal.String()})
}

// vesting -----------------------------------------------------------------

func (h *handler) vestingState(w http.ResponseWriter, r *http.Request) {
	st, err := h.app.Vesting.State(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, vestingStateView(st))
}

func (h *handler) claim(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}
	receipt, err := h.app.Vesting.Claim(r.Context(), mux.Vars(r)["id"], wallet)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token_id":     receipt.TokenID,
		"deployer":     receipt.Deployer,
		"delta":        receipt.Delta.String(),
		"vested_total": receipt.VestedTotal.String(),
	})
}

func (h *handler) setMilestones(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.app.Vesting.SetMilestonesReached(r.Context(), mux.Vars(r)["id"], wallet); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) burnUnvested(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}
	amount, err := h.app.Vesting.BurnUnvestedTokens(r.Context(), mux.Vars(r)["id"], wallet)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"burned": amount.String()})
}

// events ------------------------------------------------------------------

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("after must be a non-negative integer"))
			return
		}
		after = parsed
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.app.Events.ListEvents(r.Context(), mux.Vars(r)["id"], after, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, evt := range events {
		out = append(out, eventView(evt))
	}
	writeJSON(w, http.StatusOK, out)
}

// bank --------------------------------------------------------------------

func (h *handler) bankBalance(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}
	bal, err := h.app.Bank.Balance(r.Context(), wallet)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"wallet": wallet, "balance": bal.String()})
}

func (h *handler) bankDeposit(w http.ResponseWriter, r *http.Request) {
	h.bankMove(w, r, h.app.Bank.Deposit)
}

func (h *handler) bankWithdraw(w http.ResponseWriter, r *http.Request) {
	h.bankMove(w, r, h.app.Bank.Withdraw)
}

func (h *handler) bankMove(w http.ResponseWriter, r *http.Request, move func(ctx context.Context, wallet string, amount *big.Int) (bank.Account, error)) {
	var payload struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}

	acct, err := move(r.Context(), wallet, amount)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"wallet":  acct.Wallet,
		"balance": acct.Balance.String(),
	})
}

func (h *handler) bankTransactions(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.caller(w, r)
	if !ok {
		return
	}
	txs, err := h.app.Bank.Transactions(r.Context(), wallet)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	out := make([]map[string]any, 0, len(txs))
	for _, tx := range txs {
		out = append(out, map[string]any{
			"id":         tx.ID,
			"wallet":     tx.Wallet,
			"type":       string(tx.Type),
			"amount":     tx.Amount.String(),
			"reference":  tx.Reference,
			"created_at": tx.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// helpers -----------------------------------------------------------------

func (h *handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	wallet := CallerWallet(r.Context())
	if wallet == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("caller wallet missing from token"))
		return "", false
	}
	return wallet, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, curvedomain.ErrUnauthorized), errors.Is(err, vestingdomain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, curvedomain.ErrAlreadyGraduated),
		errors.Is(err, curvedomain.ErrInsufficientReserve),
		errors.Is(err, curvedomain.ErrNoFeesAvailable),
		errors.Is(err, vestingdomain.ErrVestingOngoing),
		errors.Is(err, vestingdomain.ErrMilestonesReached),
		errors.Is(err, vestingdomain.ErrUnvestedBurned):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func parseBig(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("amount is required")
	}
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a decimal integer")
	}
	return out, nil
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func eventView(evt event.Event) map[string]any {
	return map[string]any{
		"id":          evt.ID,
		"token_id":    evt.TokenID,
		"sequence":    evt.Sequence,
		"type":        string(evt.Type),
		"caller":      evt.Caller,
		"attributes":  evt.Attributes,
		"occurred_at": evt.OccurredAt,
	}
}
