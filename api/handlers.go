/*
handlers.go - HTTP API handlers for the check-in program

PURPOSE:
  Exposes the progression engine and the interaction layer via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Progress:
    GET    /api/progress              Level, daily tasks, long-term tasks, badges, log
    GET    /api/events                Server-sent events, one progress view per update
    GET    /api/history               Points ledger (?from=&to=)

  Shops:
    GET    /api/shops                 Search (?q=)
    GET    /api/shops/nearby          Ranked by distance (?lat=&lng=&limit=)
    GET    /api/shops/{id}            Shop details
    POST   /api/shops/{id}/view       Record a view
    POST   /api/shops/{id}/favorite   Toggle favorite
    POST   /api/shops/{id}/checkin    Check in (once per shop per day)
    GET    /api/favorites             Favorited shops

  Scenarios:
    GET    /api/scenarios             List demo scenarios
    POST   /api/scenarios/load        Replace state with a scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (interaction layer, engine, catalog)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Unknown shop or scenario
  - 501: Capability not supported by the configured store
  - 500: Internal errors

  A repeated check-in is not an error: it returns 200 with checked_in=false.

SECURITY NOTE:
  No authentication. The service holds one user's progress.

SEE ALSO:
  - dto.go: Request/response data structures
  - events.go: Server-sent events
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/checkin-engine/catalog"
	"github.com/warp/checkin-engine/checkin"
	"github.com/warp/checkin-engine/events"
	"github.com/warp/checkin-engine/generic"
	"github.com/warp/checkin-engine/interaction"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo    *checkin.Repository
	Engine  *checkin.Engine
	Layer   *interaction.Layer
	Catalog *catalog.Catalog
	Bus     *events.Bus
	Ledger  generic.Ledger // nil when the store has no ledger
	Locator catalog.Locator
	Logger  *zap.Logger
	Clock   generic.Clock
}

// NewHandler creates a handler. ledger may be nil.
func NewHandler(repo *checkin.Repository, engine *checkin.Engine, layer *interaction.Layer,
	cat *catalog.Catalog, bus *events.Bus, ledger generic.Ledger) *Handler {
	return &Handler{
		Repo:    repo,
		Engine:  engine,
		Layer:   layer,
		Catalog: cat,
		Bus:     bus,
		Ledger:  ledger,
		Locator: catalog.NoLocator{},
		Logger:  zap.NewNop(),
		Clock:   generic.RealClock{},
	}
}

// =============================================================================
// PROGRESS
// =============================================================================

// GetProgress handles GET /api/progress
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	view, err := h.Engine.Render(r.Context())
	if err != nil {
		h.internalError(w, "Failed to render progress", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetHistory handles GET /api/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		writeError(w, http.StatusNotImplemented, "Points history is not available with this store", generic.ErrStoreRequired)
		return
	}
	ctx := r.Context()

	var (
		txs []generic.Transaction
		err error
	)
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" || to != "" {
		fromDay, toDay, perr := parseRange(from, to)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid date range", perr)
			return
		}
		txs, err = h.Ledger.TransactionsInRange(ctx, fromDay, toDay)
	} else {
		txs, err = h.Ledger.Transactions(ctx)
	}
	if err != nil {
		h.internalError(w, "Failed to load history", err)
		return
	}

	resp := HistoryResponse{Transactions: make([]TransactionDTO, 0, len(txs))}
	// newest first
	for i := len(txs) - 1; i >= 0; i-- {
		resp.Transactions = append(resp.Transactions, toTransactionDTO(txs[i]))
		resp.Total += txs[i].Delta.IntPart()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseRange(from, to string) (generic.Day, generic.Day, error) {
	fromDay := generic.Day("0001-01-01")
	toDay := generic.Day("9999-12-31")
	if from != "" {
		d, err := generic.ParseDay(from)
		if err != nil {
			return "", "", err
		}
		fromDay = d
	}
	if to != "" {
		d, err := generic.ParseDay(to)
		if err != nil {
			return "", "", err
		}
		toDay = d
	}
	return fromDay, toDay, nil
}

// =============================================================================
// SHOPS
// =============================================================================

// SearchShops handles GET /api/shops?q=
func (h *Handler) SearchShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", 12)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	shops := h.Catalog.Search(q, limit)
	if shops == nil {
		shops = []catalog.Shop{}
	}
	writeJSON(w, http.StatusOK, ShopListResponse{Query: q, Shops: shops})
}

// NearbyShops handles GET /api/shops/nearby?lat=&lng=&limit=
//
// Without lat/lng the configured Locator is asked. If it cannot locate,
// shops come back in catalog order with a notice.
func (h *Handler) NearbyShops(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 6)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}

	resp := NearbyResponse{}
	from, err := h.location(r)
	switch {
	case errors.Is(err, catalog.ErrLocationUnsupported):
		resp.Notice = "Location is not supported; showing shops in catalog order"
	case err != nil:
		writeError(w, http.StatusBadRequest, "Invalid location", err)
		return
	default:
		resp.From = &from
	}

	resp.Shops = h.Catalog.Nearby(resp.From, limit)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) location(r *http.Request) (catalog.Coord, error) {
	q := r.URL.Query()
	lat, lng := q.Get("lat"), q.Get("lng")
	if lat == "" && lng == "" {
		if h.Locator == nil {
			return catalog.Coord{}, catalog.ErrLocationUnsupported
		}
		return h.Locator.Locate(r.Context())
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return catalog.Coord{}, err
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return catalog.Coord{}, err
	}
	return catalog.Coord{Lat: la, Lng: ln}, nil
}

// GetShop handles GET /api/shops/{id}
func (h *Handler) GetShop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	shop, err := h.Catalog.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Shop not found", err)
		return
	}

	ctx := r.Context()
	fav, err := h.Layer.IsFavorite(ctx, id)
	if err != nil {
		h.internalError(w, "Failed to load state", err)
		return
	}
	done, err := h.Layer.HasCheckedInToday(ctx, id)
	if err != nil {
		h.internalError(w, "Failed to load state", err)
		return
	}
	writeJSON(w, http.StatusOK, ShopDTO{Shop: shop, Favorite: fav, CheckedInToday: done})
}

// ViewShop handles POST /api/shops/{id}/view
func (h *Handler) ViewShop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Layer.ViewShop(r.Context(), id); err != nil {
		h.actionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{ShopID: id, Action: "view"})
}

// ToggleFavorite handles POST /api/shops/{id}/favorite
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	on, err := h.Layer.ToggleFavorite(r.Context(), id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{ShopID: id, Action: "favorite", Favorited: &on})
}

// CheckIn handles POST /api/shops/{id}/checkin
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.Layer.CheckIn(r.Context(), id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	resp := ActionResponse{ShopID: id, Action: "checkin", CheckedIn: &ok}
	if !ok {
		resp.Message = "Already checked in at this shop today"
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListFavorites handles GET /api/favorites
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Layer.Favorites(r.Context())
	if err != nil {
		h.internalError(w, "Failed to load favorites", err)
		return
	}
	shops := make([]catalog.Shop, 0, len(ids))
	for _, id := range ids {
		shop, err := h.Catalog.Get(id)
		if err != nil {
			// favorites may outlive a catalog entry
			continue
		}
		shops = append(shops, shop)
	}
	writeJSON(w, http.StatusOK, FavoritesResponse{Shops: shops})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) actionError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrShopNotFound) {
		writeError(w, http.StatusNotFound, "Shop not found", err)
		return
	}
	h.internalError(w, "Action failed", err)
}

func (h *Handler) internalError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	h.Logger.Error(message, zap.Error(err))
	writeError(w, http.StatusInternalServerError, message, err)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
