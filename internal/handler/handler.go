package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Mattiaborrelli4/swapunina-sub000/internal/infrastructure/auth"
	"github.com/Mattiaborrelli4/swapunina-sub000/internal/models"
	service "github.com/Mattiaborrelli4/swapunina-sub000/internal/services"
	pkgerrors "github.com/Mattiaborrelli4/swapunina-sub000/pkg/errors"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type Handler struct {
	wallet       service.WalletService
	checkout     service.CheckoutService
	confirmation service.ConfirmationService
	users        service.UserService
}

func NewHandler(wallet service.WalletService, checkout service.CheckoutService, confirmation service.ConfirmationService, users service.UserService) *Handler {
	return &Handler{
		wallet:       wallet,
		checkout:     checkout,
		confirmation: confirmation,
		users:        users,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

// writeDomainError maps the error taxonomy onto HTTP statuses so the client
// can tell a funds problem from an infrastructure one.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, pkgerrors.ErrUsernameExists), errors.Is(err, pkgerrors.ErrVerifyLocked):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrListingNotFound),
		errors.Is(err, pkgerrors.ErrCodeNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrCodeExpired):
		h.writeError(w, http.StatusGone, err)
	case errors.Is(err, pkgerrors.ErrCodeLocked):
		h.writeError(w, http.StatusLocked, err)
	case errors.Is(err, pkgerrors.ErrInsufficientFunds),
		errors.Is(err, pkgerrors.ErrInvalidAmount),
		errors.Is(err, pkgerrors.ErrSameAccount),
		errors.Is(err, pkgerrors.ErrInvalidParameters),
		errors.Is(err, pkgerrors.ErrListingUnavailable):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/topup", h.TopUp).Methods("POST")
	r.HandleFunc("/history", h.GetHistory).Methods("GET")
	r.HandleFunc("/checkout", h.Checkout).Methods("POST")
	r.HandleFunc("/codes", h.ListActiveCodes).Methods("GET")
	r.HandleFunc("/codes/verify", h.VerifyCode).Methods("POST")
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, errors.New("user not authenticated"))
	}
	return s, ok
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	userID, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"user_id": userID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	balance, err := h.wallet.GetBalance(r.Context(), session.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.wallet.TopUp(r.Context(), session.UserID, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	limit := queryInt32(r, "limit", 50)
	offset := queryInt32(r, "offset", 0)

	movements, err := h.wallet.GetHistory(r.Context(), session.UserID, limit, offset)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if movements == nil {
		movements = []models.Movement{}
	}
	h.writeJSON(w, http.StatusOK, movements)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Lines []models.CartLine `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := h.checkout.Checkout(r.Context(), session.UserID, req.Lines)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ListActiveCodes(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	active, err := h.confirmation.ListActive(r.Context(), session.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if active == nil {
		active = []models.ActiveCode{}
	}
	h.writeJSON(w, http.StatusOK, active)
}

func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		ListingID int64  `json:"listing_id"`
		Code      string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	confirmed, err := h.confirmation.Verify(r.Context(), session.UserID, req.ListingID, req.Code)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"confirmed": confirmed})
}

func queryInt32(r *http.Request, key string, def int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return def
	}
	return int32(v)
}
