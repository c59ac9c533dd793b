package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pragun-bansal/expense-tracker-sub000/internal/ledger"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/models"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/service"
	"github.com/pragun-bansal/expense-tracker-sub000/internal/storage"
)

// api adapts LedgerService to JSON over HTTP. Authentication is handled
// upstream; the authenticated caller arrives in the X-User-ID header.
type api struct {
	svc *service.LedgerService
}

func newAPI(svc *service.LedgerService) *api {
	return &api{svc: svc}
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /groups", a.createGroup)
	mux.HandleFunc("POST /groups/{groupID}/expenses", a.createExpense)
	mux.HandleFunc("GET /groups/{groupID}/expenses", a.listExpenses)
	mux.HandleFunc("PUT /expenses/{expenseID}", a.updateExpense)
	mux.HandleFunc("DELETE /expenses/{expenseID}", a.deleteExpense)
	mux.HandleFunc("GET /expenses/{expenseID}", a.getExpense)
	mux.HandleFunc("POST /groups/{groupID}/settlements", a.recordSettlement)
	mux.HandleFunc("GET /groups/{groupID}/settlements", a.listSettlements)
	mux.HandleFunc("PATCH /settlements/{settlementID}/account", a.updateSettlementAccount)
	mux.HandleFunc("DELETE /settlements/{settlementID}", a.deleteSettlement)
	mux.HandleFunc("GET /groups/{groupID}/balances", a.getNetBalances)
	mux.HandleFunc("GET /groups/{groupID}/suggested-settlements", a.getSuggestedSettlements)
}

// caller extracts the authenticated user id, writing 401 when absent.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the engine's error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ledger.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Includes ledger inconsistencies: fatal, reported, never hidden.
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type lenderPayload struct {
	UserID    string  `json:"user_id"`
	Amount    float64 `json:"amount"`
	AccountID string  `json:"account_id,omitempty"`
}

type splitPayload struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}

type expensePayload struct {
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Date        int64           `json:"date,omitempty"`
	SplitType   string          `json:"split_type,omitempty"`
	Lenders     []lenderPayload `json:"lenders"`
	Splits      []splitPayload  `json:"splits"`
}

func (p expensePayload) toInput() service.ExpenseInput {
	in := service.ExpenseInput{
		Description: p.Description,
		Amount:      p.Amount,
		Date:        p.Date,
		SplitType:   models.SplitType(p.SplitType),
	}
	for _, lender := range p.Lenders {
		in.Lenders = append(in.Lenders, models.GroupLender{
			UserID:    lender.UserID,
			Amount:    lender.Amount,
			AccountID: lender.AccountID,
		})
	}
	for _, split := range p.Splits {
		in.Splits = append(in.Splits, models.ExpenseSplit{
			UserID: split.UserID,
			Amount: split.Amount,
		})
	}
	return in
}

func (a *api) createGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	group, err := a.svc.CreateGroup(r.Context(), userID, payload.Name, payload.Members)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (a *api) createExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var payload expensePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	exp, err := a.svc.CreateGroupExpense(r.Context(), userID, r.PathValue("groupID"), payload.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (a *api) updateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var payload expensePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	exp, err := a.svc.UpdateGroupExpense(r.Context(), userID, r.PathValue("expenseID"), payload.toInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (a *api) deleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteGroupExpense(r.Context(), userID, r.PathValue("expenseID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	exp, err := a.svc.GetGroupExpense(r.Context(), userID, r.PathValue("expenseID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (a *api) listExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	expenses, err := a.svc.ListGroupExpenses(r.Context(), userID, r.PathValue("groupID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (a *api) listSettlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	settlements, err := a.svc.ListSettlements(r.Context(), userID, r.PathValue("groupID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlements)
}

func (a *api) recordSettlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		FromUserID        string  `json:"from_user_id"`
		ToUserID          string  `json:"to_user_id"`
		Amount            float64 `json:"amount"`
		BorrowerAccountID string  `json:"borrower_account_id,omitempty"`
		LenderAccountID   string  `json:"lender_account_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := a.svc.RecordSettlement(r.Context(), userID, r.PathValue("groupID"),
		payload.FromUserID, payload.ToUserID, payload.Amount,
		payload.BorrowerAccountID, payload.LenderAccountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (a *api) updateSettlementAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Side      string `json:"side"`
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := a.svc.UpdateSettlementAccount(r.Context(), userID, r.PathValue("settlementID"),
		models.SettlementSide(payload.Side), payload.AccountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) deleteSettlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	count, err := a.svc.DeleteSettlement(r.Context(), userID, r.PathValue("settlementID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unsettled_split_count": count})
}

func (a *api) getNetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	balances, err := a.svc.GetNetBalances(r.Context(), userID, r.PathValue("groupID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (a *api) getSuggestedSettlements(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	transfers, err := a.svc.GetSuggestedSettlements(r.Context(), userID, r.PathValue("groupID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}
