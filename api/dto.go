package api

import (
	"github.com/warp/checkin-engine/catalog"
	"github.com/warp/checkin-engine/generic"
)

// =============================================================================
// RESPONSES
// =============================================================================

// ShopDTO is a shop with the user's relation to it.
type ShopDTO struct {
	catalog.Shop
	Favorite       bool `json:"favorite"`
	CheckedInToday bool `json:"checked_in_today"`
}

// ShopListResponse is a search result.
type ShopListResponse struct {
	Query string         `json:"query,omitempty"`
	Shops []catalog.Shop `json:"shops"`
}

// NearbyResponse lists shops ranked by distance. Notice explains why no
// distances are given.
type NearbyResponse struct {
	From   *catalog.Coord   `json:"from,omitempty"`
	Shops  []catalog.Ranked `json:"shops"`
	Notice string           `json:"notice,omitempty"`
}

// ActionResponse reports the outcome of a user action on a shop.
type ActionResponse struct {
	ShopID    string `json:"shop_id"`
	Action    string `json:"action"`
	Favorited *bool  `json:"favorited,omitempty"`
	CheckedIn *bool  `json:"checked_in,omitempty"`
	Message   string `json:"message,omitempty"`
}

// FavoritesResponse lists favorited shops in the order they were added.
type FavoritesResponse struct {
	Shops []catalog.Shop `json:"shops"`
}

// TransactionDTO is a ledger entry.
type TransactionDTO struct {
	ID             string            `json:"id"`
	EffectiveAt    string            `json:"effective_at"`
	Points         int               `json:"points"`
	Type           string            `json:"type"`
	ReferenceID    string            `json:"reference_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// HistoryResponse is the points ledger with its running total.
type HistoryResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             string(tx.ID),
		EffectiveAt:    tx.EffectiveAt.String(),
		Points:         tx.Delta.IntPart(),
		Type:           string(tx.Type),
		ReferenceID:    tx.ReferenceID,
		Reason:         tx.Reason,
		IdempotencyKey: tx.IdempotencyKey,
		Metadata:       tx.Metadata,
	}
}
