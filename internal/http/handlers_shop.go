package http

import (
	"net/http"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/store"
)

type shopItemRequest struct {
	Name          string `json:"name"`
	Count         int    `json:"count"`
	PricePerUnit  string `json:"pricePerUnit"`
	PurchasePrice string `json:"purchasePrice"`
	OrderIndex    int    `json:"orderIndex"`
	Category      string `json:"category"`
}

func (req shopItemRequest) toShopItem() (core.ShopItem, error) {
	ppu, err := parseAmountField("pricePerUnit", req.PricePerUnit, false)
	if err != nil {
		return core.ShopItem{}, err
	}
	purchase, err := parseAmountField("purchasePrice", req.PurchasePrice, true)
	if err != nil {
		return core.ShopItem{}, err
	}
	return core.ShopItem{
		Name:          sanitizeInput(req.Name),
		Count:         req.Count,
		PricePerUnit:  ppu,
		PurchasePrice: purchase,
		OrderIndex:    req.OrderIndex,
		Category:      sanitizeInput(req.Category),
	}, nil
}

type sellRequest struct {
	SellPrice string `json:"sellPrice"`
}

// sellFailure is returned when the sale was booked but the stock could not
// be adjusted.
type sellFailure struct {
	errorBody
	SoldItem core.SoldItem `json:"soldItem"`
}

func (s *Server) handleCreateShopItem(w http.ResponseWriter, r *http.Request) {
	var req shopItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	it, err := req.toShopItem()
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	id, err := s.finance.AddShopItem(r.Context(), it)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.finance.ShopItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateShopItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	var req shopItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	it, err := req.toShopItem()
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	it.ID = id
	if err := s.finance.UpdateShopItem(r.Context(), it); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.finance.ShopItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteShopItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.finance.DeleteShopItem(r.Context(), core.ShopItem{ID: id}); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSellShopItem sells one unit of the item.
func (s *Server) handleSellShopItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpSell, err)
		return
	}
	var req sellRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpSell, err)
		return
	}
	price, err := parseProfitField("sellPrice", req.SellPrice)
	if err != nil {
		s.writeError(w, r, log.OpSell, err)
		return
	}
	it, err := s.finance.ShopItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, log.OpSell, err)
		return
	}

	sold, err := s.finance.SellItem(r.Context(), it, price)
	if err != nil {
		if sold.ID != 0 {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Sale booked without stock change",
				log.NewFields().WithRecord(store.ShopItemsCollection, id).WithOperation(log.OpSell).WithError(err).ToSlice()...)
			writeJSON(w, statusFor(err), sellFailure{errorBody: bodyFor(err), SoldItem: sold})
			return
		}
		s.writeError(w, r, log.OpSell, err)
		return
	}
	writeJSON(w, http.StatusCreated, sold)
}
