package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"microbank/internal/economy"
)

type tradeRequest struct {
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

type orderRequest struct {
	ItemID int64 `json:"itemId" validate:"required,gt=0"`
}

type playRequest struct {
	Guess string `json:"guess" validate:"max=16"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,len=4,numeric"`
}

type adjustRequest struct {
	Principal string           `json:"principal" validate:"required,max=64"`
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
}

type priceRequest struct {
	Price *decimal.Decimal `json:"price" validate:"required"`
}

type itemRequest struct {
	Name  string           `json:"name" validate:"required,max=64"`
	Price *decimal.Decimal `json:"price" validate:"required"`
}

type decisionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved declined"`
}

type seasonRequest struct {
	Name      string           `json:"name" validate:"required,max=64"`
	Rate      *decimal.Decimal `json:"rate" validate:"required"`
	StartDate *time.Time       `json:"startDate"`
	EndDate   *time.Time       `json:"endDate"`
	Frequency string           `json:"frequency" validate:"omitempty,oneof=weekly monthly yearly"`
}

func (s *Server) handleStocksList(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.ListStocks(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": out})
}

func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Stock(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleShopItems(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Items(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": economy.Games()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	user := callerFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"username": user.Username, "role": user.Role})
}

func (s *Server) handleChangeCode(w http.ResponseWriter, r *http.Request) {
	var in codeRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.econ.ChangeCode(r.Context(), callerFromContext(r.Context()), in.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Balances(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": out})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Transactions(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Portfolio(r.Context(), callerFromContext(r.Context()).Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holdings": out})
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(true, w, r)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(false, w, r)
}

func (s *Server) handleTrade(buy bool, w http.ResponseWriter, r *http.Request) {
	var in tradeRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	user := callerFromContext(r.Context()).Username
	symbol := chi.URLParam(r, "symbol")

	var (
		out economy.Trade
		err error
	)
	if buy {
		out, err = s.econ.Buy(r.Context(), user, symbol, in.Quantity)
	} else {
		out, err = s.econ.Sell(r.Context(), user, symbol, in.Quantity)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Orders(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in orderRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.PlaceOrder(r.Context(), callerFromContext(r.Context()).Username, in.ItemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Seasons(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rate, err := s.econ.CurrentRate(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"seasons": out, "currentRate": rate})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "game id must be a number")
		return
	}
	var in playRequest
	if r.ContentLength != 0 {
		if err := s.decodeJSON(r, &in); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	out, err := s.econ.Play(r.Context(), callerFromContext(r.Context()).Username, gameID, in.Guess)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Users(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var in adjustRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.ForceAdjust(r.Context(), callerFromContext(r.Context()), in.Principal, *in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetCode(w http.ResponseWriter, r *http.Request) {
	var in codeRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	target := chi.URLParam(r, "username")
	if err := s.econ.SetCode(r.Context(), callerFromContext(r.Context()), target, in.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	var in priceRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.SetPrice(r.Context(), callerFromContext(r.Context()), chi.URLParam(r, "symbol"), *in.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	s.handleMyOrders(w, r)
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in decisionRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.Decide(r.Context(), callerFromContext(r.Context()), id, economy.OrderStatus(in.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var in itemRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.AddItem(r.Context(), callerFromContext(r.Context()), in.Name, *in.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in itemRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.EditItem(r.Context(), callerFromContext(r.Context()), id, in.Name, *in.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.econ.DeleteItem(r.Context(), callerFromContext(r.Context()), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSeason(w http.ResponseWriter, r *http.Request) {
	var in seasonRequest
	if err := s.decodeJSON(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.AddSeason(r.Context(), callerFromContext(r.Context()), economy.SeasonInput{
		Name:      in.Name,
		Rate:      *in.Rate,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Frequency: economy.Frequency(in.Frequency),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleEndSeason(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.EndSeason(r.Context(), callerFromContext(r.Context()), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleApplyTax(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.ApplyPeriodicToAll(r.Context(), callerFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Drift(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": out})
}
