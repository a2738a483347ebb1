package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"pharmaledger/m/domain"
	"pharmaledger/m/internal/config"
	"pharmaledger/m/internal/inventory"
	"pharmaledger/m/internal/purchases"
	"pharmaledger/m/internal/roles"
)

type ctxKey string

const (
	ctxUsername ctxKey = "username"
	ctxRole     ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	inv       *inventory.Service
	purchases *purchases.Service
	roles     *roles.Service
	cfg       config.Config
}

// New constructs a Handler.
func New(inv *inventory.Service, pur *purchases.Service, rol *roles.Service, cfg config.Config) *Handler {
	return &Handler{inv: inv, purchases: pur, roles: rol, cfg: cfg}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/register", h.register)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.inventoryReport)
			r.Post("/", h.updateStock)
			r.Delete("/{batchID}", h.removeBatch)
			r.Post("/allocate", h.allocate)
			r.Post("/reorder", h.autoReorder)
			r.Get("/stock", h.checkStock)
			r.Get("/low-stock", h.lowStock)
			r.Get("/expiry-alert", h.expiryAlerts)
			r.Get("/expired", h.expiredCheck)
		})

		pr.Route("/purchases", func(r chi.Router) {
			r.Post("/", h.completePurchase)
			r.Get("/", h.listPurchases)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(username, role string) (string, error) {
	claims := authClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.cfg.Secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUsername, claims.Username)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// Auth handlers

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.roles.Login(req.Username, req.Password)
	if errors.Is(err, roles.ErrAccountLocked) {
		respondError(w, http.StatusLocked, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.generateToken(user.Username, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager) {
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.roles.CreateAccount(req.Role, req.Username, req.Password)
	if errors.Is(err, roles.ErrUsernameTaken) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, roles.ErrInvalidRole) || errors.Is(err, roles.ErrInvalidCredentials) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create account")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	username := r.Context().Value(ctxUsername).(string)
	if err := h.roles.ResetPassword(username, payload.NewPassword); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Inventory handlers

func (h *Handler) inventoryReport(w http.ResponseWriter, r *http.Request) {
	batches, err := h.inv.Report()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to read inventory table")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

type stockRequest struct {
	ItemName       string `json:"item_name"`
	BatchID        string `json:"batch_id"`
	Quantity       string `json:"quantity"`
	Price          string `json:"price"`
	ExpirationDate string `json:"expiration_date"`
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager, domain.RolePharmacist, domain.RoleTechnician) {
		return
	}
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ItemName) == "" || strings.TrimSpace(req.BatchID) == "" {
		respondError(w, http.StatusBadRequest, "item_name and batch_id are required")
		return
	}
	batch, err := h.inv.CreateOrUpdate(req.ItemName, req.BatchID, req.Quantity, req.Price, req.ExpirationDate)
	if err != nil {
		respondOutcome(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

func (h *Handler) removeBatch(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager, domain.RolePharmacist) {
		return
	}
	batchID := chi.URLParam(r, "batchID")
	if err := h.inv.Remove(batchID); err != nil {
		respondOutcome(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "batch removed"})
}

type allocateRequest struct {
	ItemName string `json:"item_name"`
	Quantity int64  `json:"quantity"`
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager, domain.RolePharmacist) {
		return
	}
	var req allocateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.inv.Allocate(req.ItemName, req.Quantity); err != nil {
		respondOutcome(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "filled"})
}

func (h *Handler) autoReorder(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager) {
		return
	}
	count, err := h.inv.AutoReorder(h.cfg.ReorderThreshold, h.cfg.ReorderAmount)
	if err != nil {
		respondOutcome(w, err)
		return
	}
	if count == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"status": "no reorder needed", "reordered": 0})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "reorder placed", "reordered": count})
}

func (h *Handler) checkStock(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if strings.TrimSpace(item) == "" {
		respondError(w, http.StatusBadRequest, "item is required")
		return
	}
	entries, err := h.inv.CheckStock(item)
	if err != nil {
		respondOutcome(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.cfg.LowStockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = parsed
	}
	batches, err := h.inv.LowStock(threshold)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to read inventory table")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

func (h *Handler) expiryAlerts(w http.ResponseWriter, r *http.Request) {
	days := h.cfg.ExpiryWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = parsed
	}
	batches, err := h.inv.NearExpiration(days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to read inventory table")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

func (h *Handler) expiredCheck(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if strings.TrimSpace(item) == "" {
		respondError(w, http.StatusBadRequest, "item is required")
		return
	}
	expired, err := h.inv.IsExpired(item)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to read inventory table")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item": strings.TrimSpace(item), "expired": expired})
}

// Purchase handlers

type purchaseLineRequest struct {
	ItemName  string  `json:"item_name"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type purchaseRequest struct {
	FirstName     string                `json:"first_name"`
	LastName      string                `json:"last_name"`
	PaymentMethod string                `json:"payment_method"`
	Items         []purchaseLineRequest `json:"items"`
}

func (h *Handler) completePurchase(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager, domain.RolePharmacist, domain.RoleCashier) {
		return
	}
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	lines := make([]purchases.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = purchases.Line{ItemName: item.ItemName, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	cashier := r.Context().Value(ctxUsername).(string)
	purchase, err := h.purchases.Complete(cashier, req.FirstName, req.LastName, req.PaymentMethod, lines)
	if err != nil {
		respondOutcome(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, purchase)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager) {
		return
	}
	receipts, err := h.purchases.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load purchase log")
		return
	}
	respondJSON(w, http.StatusOK, receipts)
}

// Helpers

// respondOutcome maps each structured engine outcome to its own status and
// message, so the client never sees an ambiguous failure.
func respondOutcome(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidPrice),
		errors.Is(err, inventory.ErrInvalidDate),
		errors.Is(err, purchases.ErrMissingCustomer),
		errors.Is(err, purchases.ErrNoItems):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inventory.ErrItemNotFound),
		errors.Is(err, inventory.ErrBatchNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, purchases.ErrExpiredItem):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "inventory table unavailable")
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

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
