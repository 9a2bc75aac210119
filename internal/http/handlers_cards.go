package http

import (
	"net/http"
	"strings"

	"financecalc/internal/core"
	"financecalc/internal/log"

	"github.com/shopspring/decimal"
)

type cardRequest struct {
	HolderName string `json:"holderName"`
	CardNumber string `json:"cardNumber"`
	ExpiryDate string `json:"expiryDate"`
	Balance    string `json:"balance"`
	CardType   string `json:"cardType"`
	ColorTheme int    `json:"colorTheme"`
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.finance.CreditCards(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	if cards == nil {
		cards = []core.CreditCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	// card balances may be negative (money owed)
	balance := decimal.Zero
	if strings.TrimSpace(req.Balance) != "" {
		b, err := parseProfitField("balance", req.Balance)
		if err != nil {
			s.writeError(w, r, log.OpCreate, err)
			return
		}
		balance = b
	}
	card := core.CreditCard{
		HolderName: sanitizeInput(req.HolderName),
		CardNumber: sanitizeInput(req.CardNumber),
		ExpiryDate: sanitizeInput(req.ExpiryDate),
		Balance:    balance,
		CardType:   sanitizeInput(req.CardType),
		ColorTheme: req.ColorTheme,
	}
	id, err := s.finance.AddCreditCard(r.Context(), card)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	card.ID = id
	if card.CardType == "" {
		card.CardType = core.DefaultCardType
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.finance.DeleteCreditCard(r.Context(), core.CreditCard{ID: id}); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
