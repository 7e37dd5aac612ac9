package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/store"
)

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	l, err := s.ledgers.Load(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, NewLedgerView(userID, l))
}

// handleReplaceLedger overwrites the whole ledger with the document in the
// body.
func (s *Server) handleReplaceLedger(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil || !p.IsJSON() {
		writeBadRequest(w, r, "expected a JSON ledger document")
		return
	}
	var doc store.Document
	if err := json.Unmarshal(p.Raw(), &doc); err != nil {
		writeBadRequest(w, r, "expected a JSON ledger document")
		return
	}
	l, err := doc.Ledger()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledgers.Save(r.Context(), userID, l); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, NewLedgerView(userID, l))
}

func (s *Server) handleSetIncome(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	l, err := s.ledgers.SetIncome(r.Context(), userID, p.Get("income"))
	s.respondMutation(w, r, http.StatusOK, userID, l, err)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeBadRequest(w, r, "invalid request body")
		return
	}
	l, err := s.ledgers.AddExpense(r.Context(), userID, p.Get("name"), p.Get("amount"))
	s.respondMutation(w, r, http.StatusCreated, userID, l, err)
}

func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeBadRequest(w, r, "expense index must be an integer")
		return
	}
	l, err := s.ledgers.RemoveExpenseAt(r.Context(), userID, i)
	s.respondMutation(w, r, http.StatusOK, userID, l, err)
}

func (s *Server) respondMutation(w http.ResponseWriter, r *http.Request, status int, userID string, l core.Ledger, err error) {
	if err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Ledger mutation failed",
			log.FieldUserID, userID,
			log.FieldError, err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, status, NewLedgerView(userID, l))
}
