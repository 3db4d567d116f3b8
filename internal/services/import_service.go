package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/worker"
)

// NewCard is imported content. ID is optional; one is assigned when empty.
type NewCard struct {
	ID      string `json:"id" validate:"omitempty,max=128"`
	Subject string `json:"subject" validate:"max=200"`
	Topic   string `json:"topic" validate:"max=200"`
	Front   string `json:"front" validate:"required"`
	Back    string `json:"back" validate:"required"`
}

type ImportFailure struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

type ImportResult struct {
	Created   []string        `json:"created"`
	Unchanged []string        `json:"unchanged"`
	Failed    []ImportFailure `json:"failed"`
}

// ImportService creates cards from imported content. Existing cards keep
// their schedule; re-importing changed content for an existing id fails.
type ImportService interface {
	Import(ctx context.Context, cards []NewCard) (*ImportResult, error)
	ImportFile(ctx context.Context, path string) (*ImportResult, error)
}

type importService struct {
	cards    repository.CardRepository
	pool     *worker.Pool
	now      func() time.Time
	validate *validator.Validate
}

// NewImportService creates a new ImportService. A nil pool imports
// sequentially; otherwise cards are written by the pool's workers.
func NewImportService(cards repository.CardRepository, pool *worker.Pool, now func() time.Time) ImportService {
	if now == nil {
		now = time.Now
	}
	return &importService{
		cards:    cards,
		pool:     pool,
		now:      now,
		validate: validator.New(),
	}
}

type importOutcome int

const (
	outcomeCreated importOutcome = iota
	outcomeUnchanged
)

func (s *importService) Import(ctx context.Context, cards []NewCard) (*ImportResult, error) {
	log := logger.FromContext(ctx).WithPrefix("import")
	log.Info("importing %d cards", len(cards))

	result := &ImportResult{Created: []string{}, Unchanged: []string{}, Failed: []ImportFailure{}}
	var mu sync.Mutex
	record := func(i int, id string, outcome importOutcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			result.Failed = append(result.Failed, ImportFailure{Index: i, ID: id, Error: err.Error()})
		case outcome == outcomeCreated:
			result.Created = append(result.Created, id)
		default:
			result.Unchanged = append(result.Unchanged, id)
		}
	}

	now := s.now()
	var wg sync.WaitGroup
	for i, nc := range cards {
		card, err := s.prepare(nc, now)
		if err != nil {
			record(i, nc.ID, 0, err)
			continue
		}

		if s.pool == nil {
			outcome, err := s.importOne(ctx, card)
			record(i, card.ID, outcome, err)
			continue
		}

		wg.Add(1)
		err = s.pool.Submit(ctx, worker.FuncJob{
			JobName: "import_card",
			Fn: func(jobCtx context.Context) error {
				defer wg.Done()
				if err := jobCtx.Err(); err != nil {
					record(i, card.ID, 0, errors.NewStorageError("import card", err))
					return err
				}
				outcome, err := s.importOne(jobCtx, card)
				record(i, card.ID, outcome, err)
				return err
			},
		})
		if err != nil {
			wg.Done()
			log.Error("failed to submit import job: %v", err)
			return nil, errors.NewInternalError(err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("import interrupted: %v", ctx.Err())
		return nil, errors.NewInternalError(ctx.Err())
	}

	sort.Strings(result.Created)
	sort.Strings(result.Unchanged)
	sort.Slice(result.Failed, func(a, b int) bool { return result.Failed[a].Index < result.Failed[b].Index })

	log.Info("import finished: created=%d, unchanged=%d, failed=%d", len(result.Created), len(result.Unchanged), len(result.Failed))
	return result, nil
}

func (s *importService) prepare(nc NewCard, now time.Time) (models.Card, error) {
	nc.Front = strings.TrimSpace(nc.Front)
	nc.Back = strings.TrimSpace(nc.Back)
	nc.ID = strings.TrimSpace(nc.ID)
	if err := s.validate.Struct(nc); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return models.Card{}, errors.NewInvalidInputError(strings.ToLower(verrs[0].Field()), "failed "+verrs[0].Tag())
		}
		return models.Card{}, errors.NewInvalidInputError("card", err.Error())
	}
	if nc.ID == "" {
		nc.ID = uuid.NewString()
	}
	return models.NewCard(nc.ID, nc.Subject, nc.Topic, nc.Front, nc.Back, now), nil
}

func (s *importService) importOne(ctx context.Context, card models.Card) (importOutcome, error) {
	existing, err := s.cards.Get(ctx, card.ID)
	switch {
	case err == nil:
		if !existing.SameContent(card) {
			return 0, errors.NewConflictError("card", card.ID, "content")
		}
		return outcomeUnchanged, nil
	case errors.IsNotFound(err):
		if err := s.cards.Upsert(ctx, card); err != nil {
			return 0, err
		}
		return outcomeCreated, nil
	default:
		return 0, err
	}
}

// ImportFile reads a JSON array of cards from path.
func (s *importService) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewInvalidInputError("file", err.Error())
	}
	var cards []NewCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, errors.NewInvalidInputError("file", fmt.Sprintf("%s is not a JSON array of cards: %v", path, err))
	}
	return s.Import(ctx, cards)
}
