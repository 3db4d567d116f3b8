package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/studyflash/internal/api"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository/sqlite"
	"github.com/vytor/studyflash/internal/services"
	"github.com/vytor/studyflash/internal/testutil"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type APISuite struct {
	suite.Suite
	handler http.Handler
}

func (s *APISuite) SetupTest() {
	db := testutil.NewTestDB(s.T())
	s.T().Cleanup(func() { testutil.MustClose(s.T(), db) })

	cards := sqlite.NewCardRepository(db)
	clock := func() time.Time { return now }
	srv := &api.Server{
		Scheduler:   services.NewReviewScheduler(cards, services.WithClock(clock)),
		Importer:    services.NewImportService(cards, nil, clock),
		Stats:       services.NewStatsService(sqlite.NewStatsRepository(db), cards),
		DB:          db,
		BatchSize:   10,
		CORSOrigins: []string{"*"},
		Now:         clock,
	}
	s.handler = srv.Routes()

	rec := s.do(http.MethodPost, "/api/cards", `[
		{"id": "a", "subject": "torts", "topic": "duty", "front": "Q1", "back": "A1"},
		{"id": "b", "subject": "contracts", "topic": "offer", "front": "Q2", "back": "A2"}
	]`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *APISuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *APISuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	s.decode(rec, &body)
	return body.Error.Code
}

func (s *APISuite) TestHealth() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/healthz", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/readyz", "").Code)
}

func (s *APISuite) TestDueCardsWithFilter() {
	rec := s.do(http.MethodGet, "/api/cards/due", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var all []models.Card
	s.decode(rec, &all)
	s.Len(all, 2)

	rec = s.do(http.MethodGet, "/api/cards/due?subject=torts&limit=5", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var torts []models.Card
	s.decode(rec, &torts)
	s.Require().Len(torts, 1)
	s.Equal("a", torts[0].ID)
}

func (s *APISuite) TestDueCardsRejectsBadLimit() {
	rec := s.do(http.MethodGet, "/api/cards/due?limit=-1", "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("INVALID_INPUT", s.errorCode(rec))
}

func (s *APISuite) TestReviewCard() {
	rec := s.do(http.MethodPost, "/api/cards/a/review", `{"correct": true, "confidence": 4}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Interval int       `json:"interval"`
		Quality  int       `json:"quality"`
		DueDate  time.Time `json:"due_date"`
	}
	s.decode(rec, &body)
	s.Equal(1, body.Interval)
	s.Equal(5, body.Quality)
	s.True(body.DueDate.Equal(now.Add(24*time.Hour)))

	rec = s.do(http.MethodGet, "/api/cards/a/history", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var events []models.ReviewEvent
	s.decode(rec, &events)
	s.Require().Len(events, 1)
	s.Equal(5, events[0].Quality)

	rec = s.do(http.MethodGet, "/api/cards/due", "")
	var due []models.Card
	s.decode(rec, &due)
	s.Require().Len(due, 1)
	s.Equal("b", due[0].ID)
}

func (s *APISuite) TestReviewFalseIsNotMissing() {
	rec := s.do(http.MethodPost, "/api/cards/a/review", `{"correct": false, "confidence": 0}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Quality int `json:"quality"`
	}
	s.decode(rec, &body)
	s.Equal(0, body.Quality)
}

func (s *APISuite) TestReviewValidation() {
	cases := map[string]string{
		"missing correct":    `{"confidence": 2}`,
		"missing confidence": `{"correct": true}`,
		"out of range":       `{"correct": true, "confidence": 5}`,
		"malformed":          `{"correct":`,
	}
	for name, body := range cases {
		s.Run(name, func() {
			rec := s.do(http.MethodPost, "/api/cards/a/review", body)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal("INVALID_INPUT", s.errorCode(rec))
		})
	}

	rec := s.do(http.MethodGet, "/api/cards/a/history", "")
	var events []models.ReviewEvent
	s.decode(rec, &events)
	s.Empty(events)
}

func (s *APISuite) TestUnknownCard() {
	for _, path := range []string{"/api/cards/zzz", "/api/cards/zzz/history"} {
		rec := s.do(http.MethodGet, path, "")
		s.Equal(http.StatusNotFound, rec.Code, path)
		s.Equal("NOT_FOUND", s.errorCode(rec))
	}

	rec := s.do(http.MethodPost, "/api/cards/zzz/review", `{"correct": true, "confidence": 3}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestReimportIsUnchanged() {
	rec := s.do(http.MethodPost, "/api/cards", `[{"id": "a", "subject": "torts", "topic": "duty", "front": "Q1", "back": "A1"}]`)
	s.Require().Equal(http.StatusOK, rec.Code)

	var result services.ImportResult
	s.decode(rec, &result)
	s.Equal([]string{"a"}, result.Unchanged)
	s.Empty(result.Created)
}

func (s *APISuite) TestStats() {
	rec := s.do(http.MethodGet, "/api/stats", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var report services.StatsReport
	s.decode(rec, &report)
	s.Require().NotNil(report.Summary)
	s.Equal(2, report.Summary.TotalCards)
	s.Equal(2, report.Summary.CardsDue)
	s.Len(report.Subjects, 2)
}

func (s *APISuite) TestCardByID() {
	rec := s.do(http.MethodGet, "/api/cards/b", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var card models.Card
	s.decode(rec, &card)
	s.Equal("Q2", card.Front)
	s.Equal(models.DefaultEaseFactor, card.EaseFactor)
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}
