package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/services"
)

const maxImportBody = 8 << 20

type reviewRequest struct {
	Correct    *bool `json:"correct" validate:"required"`
	Confidence *int  `json:"confidence" validate:"required"`
}

type reviewResponse struct {
	Interval int         `json:"interval"`
	Quality  int         `json:"quality"`
	DueDate  time.Time   `json:"due_date"`
	Card     models.Card `json:"card"`
}

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), s.BatchSize, "limit")
	if err != nil {
		handleError(w, r, err)
		return
	}
	filter := models.CardFilter{
		Subject: strings.TrimSpace(q.Get("subject")),
		Topic:   strings.TrimSpace(q.Get("topic")),
	}

	cards, err := s.Scheduler.NextBatchFiltered(ctx, s.now(), limit, filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.Scheduler.Card(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleCardHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), 0, "limit")
	if err != nil {
		handleError(w, r, err)
		return
	}

	events, err := s.Stats.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if events == nil {
		events = []models.ReviewEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	log := logger.FromContext(ctx).WithField("card_id", id)

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleError(w, r, errors.NewInvalidInputError("body", "malformed JSON"))
		return
	}
	if err := s.requestValidator().Struct(req); err != nil {
		handleError(w, r, validationError(err))
		return
	}

	result, err := s.Scheduler.RecordReview(ctx, id, *req.Correct, *req.Confidence)
	if err != nil {
		handleError(w, r, err)
		return
	}

	log.Debug("review applied: quality=%d, interval=%d", result.Quality, result.Interval)
	writeJSON(w, http.StatusOK, reviewResponse{
		Interval: result.Interval,
		Quality:  result.Quality,
		DueDate:  result.Card.DueAt,
		Card:     result.Card,
	})
}

func (s *Server) handleImportCards(w http.ResponseWriter, r *http.Request) {
	var cards []services.NewCard
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBody)).Decode(&cards); err != nil {
		handleError(w, r, errors.NewInvalidInputError("body", "expected a JSON array of cards"))
		return
	}

	result, err := s.Importer.Import(r.Context(), cards)
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusOK
	if len(result.Created) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// intParam parses an optional non-negative integer query parameter.
func intParam(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewInvalidInputError(name, "must be a non-negative integer")
	}
	return n, nil
}

func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return errors.NewInvalidInputError(strings.ToLower(verrs[0].Field()), "is required")
	}
	return errors.NewInvalidInputError("body", err.Error())
}
