package services_test

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/models"
	"github.com/vytor/studyflash/internal/repository"
	"github.com/vytor/studyflash/internal/repository/sqlite"
	"github.com/vytor/studyflash/internal/services"
	"github.com/vytor/studyflash/internal/testutil"
	"github.com/vytor/studyflash/internal/testutil/mocks"
)

var start = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type SchedulerSuite struct {
	suite.Suite
	db        *sql.DB
	cards     repository.CardRepository
	clock     *testutil.Clock
	scheduler services.ReviewScheduler
}

func (s *SchedulerSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.cards = sqlite.NewCardRepository(s.db)
	s.clock = &testutil.Clock{T: start}
	s.scheduler = services.NewReviewScheduler(s.cards, services.WithClock(s.clock.Now), services.WithRetry(0, 0))
}

func (s *SchedulerSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *SchedulerSuite) seed(c models.Card) {
	s.Require().NoError(s.cards.Upsert(context.Background(), c))
}

func (s *SchedulerSuite) stored(id string) *models.Card {
	c, err := s.cards.Get(context.Background(), id)
	s.Require().NoError(err)
	return c
}

func (s *SchedulerSuite) TestNewCardPerfectThenGood() {
	ctx := context.Background()
	s.seed(testutil.Card("c1", start))

	res, err := s.scheduler.RecordReview(ctx, "c1", true, 4)
	s.Require().NoError(err)
	s.Assert().Equal(5, res.Quality)
	s.Assert().Equal(1, res.Interval)

	card := s.stored("c1")
	s.Assert().InDelta(2.6, card.EaseFactor, 1e-9)
	s.Assert().Equal(1, card.IntervalDays)
	s.Assert().Equal(1, card.Repetitions)

	s.clock.Advance(day)
	res, err = s.scheduler.RecordReview(ctx, "c1", true, 2)
	s.Require().NoError(err)
	s.Assert().Equal(4, res.Quality)
	s.Assert().Equal(6, res.Interval)

	card = s.stored("c1")
	s.Assert().Equal(2, card.Repetitions)
	s.Assert().InDelta(2.6, card.EaseFactor, 1e-9)
	s.Assert().Equal(2, card.TimesSeen)
	s.Assert().Equal(2, card.TimesCorrect)
}

func (s *SchedulerSuite) TestThirdSuccessUsesEase() {
	ctx := context.Background()
	s.seed(testutil.Card("c1", start))

	for _, confidence := range []int{0, 4} {
		_, err := s.scheduler.RecordReview(ctx, "c1", true, confidence)
		s.Require().NoError(err)
		s.clock.Advance(day)
	}
	ease := s.stored("c1").EaseFactor

	res, err := s.scheduler.RecordReview(ctx, "c1", true, 3)
	s.Require().NoError(err)
	s.Assert().Equal(int(6*ease+0.5), res.Interval)
	s.Assert().Equal(3, s.stored("c1").Repetitions)
}

func (s *SchedulerSuite) TestLapseOnMatureCard() {
	ctx := context.Background()
	card := testutil.Card("c1", start.Add(-day))
	card.Repetitions = 5
	card.IntervalDays = 40
	card.EaseFactor = 2.3
	s.seed(card)

	res, err := s.scheduler.RecordReview(ctx, "c1", false, 0)
	s.Require().NoError(err)
	s.Assert().Equal(0, res.Quality)
	s.Assert().Equal(1, res.Interval)

	got := s.stored("c1")
	s.Assert().Equal(0, got.Repetitions)
	s.Assert().Equal(1, got.IntervalDays)
	s.Assert().InDelta(1.5, got.EaseFactor, 1e-9)
	s.Assert().GreaterOrEqual(got.EaseFactor, models.MinEaseFactor)
}

func (s *SchedulerSuite) TestEaseFloorOverManyFailures() {
	ctx := context.Background()
	s.seed(testutil.Card("c1", start))

	for i := 0; i < 15; i++ {
		_, err := s.scheduler.RecordReview(ctx, "c1", false, i%5)
		s.Require().NoError(err)
		got := s.stored("c1")
		s.Assert().GreaterOrEqual(got.EaseFactor, models.MinEaseFactor)
		s.Assert().Equal(0, got.Repetitions)
		s.Assert().Equal(1, got.IntervalDays)
		s.clock.Advance(time.Hour)
	}
}

func (s *SchedulerSuite) TestDueDateCountsFromReviewTime() {
	ctx := context.Background()
	card := testutil.Card("c1", start.Add(-10*day))
	card.Repetitions = 2
	card.IntervalDays = 6
	s.seed(card)

	res, err := s.scheduler.RecordReview(ctx, "c1", true, 2)
	s.Require().NoError(err)

	got := s.stored("c1")
	s.Assert().True(got.DueAt.Equal(start.Add(time.Duration(res.Interval)*day)), "due=%s", got.DueAt)
	s.Require().NotNil(got.LastReviewed)
	s.Assert().True(got.LastReviewed.Equal(start))
}

func (s *SchedulerSuite) TestReviewAppendsHistory() {
	ctx := context.Background()
	s.seed(testutil.Card("c1", start))

	_, err := s.scheduler.RecordReview(ctx, "c1", false, 3)
	s.Require().NoError(err)

	history, err := s.cards.ReviewHistory(ctx, "c1", 0)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Assert().Equal(models.ReviewEvent{
		ID: history[0].ID, CardID: "c1", ReviewedAt: history[0].ReviewedAt, Correct: false, Confidence: 3, Quality: 1,
	}, history[0])
	s.Assert().True(history[0].ReviewedAt.Equal(start))
}

func (s *SchedulerSuite) TestInvalidConfidenceLeavesCardUntouched() {
	ctx := context.Background()
	s.seed(testutil.Card("c1", start))
	before := s.stored("c1")

	res, err := s.scheduler.RecordReview(ctx, "c1", true, 7)
	s.Require().Error(err)
	s.Assert().Nil(res)
	s.Assert().True(errors.IsInvalidInput(err))

	s.Assert().Equal(before, s.stored("c1"))
	history, err := s.cards.ReviewHistory(ctx, "c1", 0)
	s.Require().NoError(err)
	s.Assert().Empty(history)
}

func (s *SchedulerSuite) TestUnknownCard() {
	res, err := s.scheduler.RecordReview(context.Background(), "missing", true, 2)
	s.Require().Error(err)
	s.Assert().Nil(res)
	s.Assert().True(errors.IsNotFound(err))
}

func (s *SchedulerSuite) TestNextBatchOrderingAndIdempotence() {
	ctx := context.Background()
	s.seed(testutil.Card("late", start.Add(-3*day)))
	practiced := testutil.Card("practiced", start.Add(-day))
	practiced.Repetitions = 4
	s.seed(practiced)
	s.seed(testutil.Card("fresh", start.Add(-day)))
	s.seed(testutil.Card("later", start.Add(day)))

	first, err := s.scheduler.NextBatch(ctx, start, 10)
	s.Require().NoError(err)
	second, err := s.scheduler.NextBatch(ctx, start, 10)
	s.Require().NoError(err)
	s.Assert().Equal(first, second)

	ids := []string{}
	for _, c := range first {
		ids = append(ids, c.ID)
	}
	s.Assert().Equal([]string{"late", "fresh", "practiced"}, ids)
}

func (s *SchedulerSuite) TestReviewedCardLeavesBatch() {
	ctx := context.Background()
	s.seed(testutil.Card("c1", start))
	s.seed(testutil.Card("c2", start))

	_, err := s.scheduler.RecordReview(ctx, "c1", true, 4)
	s.Require().NoError(err)

	batch, err := s.scheduler.NextBatch(ctx, start, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Assert().Equal("c2", batch[0].ID)

	batch, err = s.scheduler.NextBatch(ctx, start.Add(day), 10)
	s.Require().NoError(err)
	s.Assert().Len(batch, 2)
}

func (s *SchedulerSuite) TestNextBatchFiltered() {
	ctx := context.Background()
	s.seed(models.NewCard("t1", "torts", "duty", "q", "a", start))
	s.seed(models.NewCard("k1", "contracts", "offer", "q", "a", start))

	batch, err := s.scheduler.NextBatchFiltered(ctx, start, 10, models.CardFilter{Subject: "contracts"})
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Assert().Equal("k1", batch[0].ID)
}

func (s *SchedulerSuite) TestConcurrentReviewsOfOneCardSerialize() {
	ctx := context.Background()
	s.seed(testutil.Card("c1", start))

	const reviewers = 50
	var wg sync.WaitGroup
	errs := make(chan error, reviewers)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.scheduler.RecordReview(ctx, "c1", true, 4)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	card := s.stored("c1")
	s.Assert().Equal(reviewers, card.TimesSeen)
	s.Assert().Equal(reviewers, card.TimesCorrect)
	s.Assert().Equal(reviewers, card.Repetitions)
	s.Assert().Equal(models.MaxIntervalDays, card.IntervalDays)

	history, err := s.cards.ReviewHistory(ctx, "c1", 0)
	s.Require().NoError(err)
	s.Assert().Len(history, reviewers)
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func TestRecordReview_InvalidInputNeverTouchesStore(t *testing.T) {
	repo := new(mocks.MockCardRepository)
	scheduler := services.NewReviewScheduler(repo)

	_, err := scheduler.RecordReview(context.Background(), "c1", false, -1)

	assert.True(t, errors.IsInvalidInput(err))
	repo.AssertNotCalled(t, "RecordReview", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordReview_RetriesWholeCycleOnStorageError(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockCardRepository)
	card := testutil.Card("c1", start)

	repo.On("RecordReview", ctx, "c1", mock.Anything).
		Return(nil, errors.NewStorageError("record review", stderrors.New("database is locked"))).Once()
	repo.On("RecordReview", ctx, "c1", mock.Anything).
		Return(card, nil).Once()

	scheduler := services.NewReviewScheduler(repo, services.WithClock(func() time.Time { return start }), services.WithRetry(3, time.Millisecond))
	res, err := scheduler.RecordReview(ctx, "c1", true, 4)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Interval)
	assert.Equal(t, 5, res.Quality)
	assert.Equal(t, 1, res.Card.Repetitions)
	assert.True(t, res.Card.DueAt.Equal(start.Add(day)))
	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "RecordReview", 2)
}

func TestRecordReview_GivesUpAfterBoundedRetries(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockCardRepository)
	storageErr := errors.NewStorageError("record review", stderrors.New("disk I/O error"))
	repo.On("RecordReview", ctx, "c1", mock.Anything).Return(nil, storageErr)

	scheduler := services.NewReviewScheduler(repo, services.WithRetry(2, time.Millisecond))
	res, err := scheduler.RecordReview(ctx, "c1", true, 1)

	assert.Nil(t, res)
	assert.True(t, errors.IsStorage(err))
	repo.AssertNumberOfCalls(t, "RecordReview", 3)
}

func TestRecordReview_DoesNotRetryConflicts(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockCardRepository)
	repo.On("RecordReview", ctx, "c1", mock.Anything).Return(nil, errors.NewConflictError("card", "c1", "content"))

	scheduler := services.NewReviewScheduler(repo, services.WithRetry(5, time.Millisecond))
	_, err := scheduler.RecordReview(ctx, "c1", false, 0)

	assert.True(t, errors.IsConflict(err))
	repo.AssertNumberOfCalls(t, "RecordReview", 1)
}

func TestRecordReview_StopsRetryingWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := new(mocks.MockCardRepository)
	repo.On("RecordReview", mock.Anything, "c1", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.NewStorageError("record review", stderrors.New("busy")))

	scheduler := services.NewReviewScheduler(repo, services.WithRetry(10, time.Hour))
	_, err := scheduler.RecordReview(ctx, "c1", true, 2)

	assert.True(t, errors.IsStorage(err))
	assert.ErrorIs(t, err, context.Canceled)
	repo.AssertNumberOfCalls(t, "RecordReview", 1)
}

func TestRecordReview_UnclassifiedErrorIsInternal(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockCardRepository)
	repo.On("RecordReview", ctx, "c1", mock.Anything).Return(nil, stderrors.New("surprise"))

	scheduler := services.NewReviewScheduler(repo, services.WithRetry(3, time.Millisecond))
	_, err := scheduler.RecordReview(ctx, "c1", true, 2)

	assert.Equal(t, errors.ErrCodeInternal, errors.CodeOf(err))
	repo.AssertNumberOfCalls(t, "RecordReview", 1)
}

func TestNextBatch_Delegates(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockCardRepository)
	due := []models.Card{testutil.Card("a", start)}
	repo.On("DueBefore", ctx, start, 5, models.CardFilter{}).Return(due, nil)

	scheduler := services.NewReviewScheduler(repo)
	got, err := scheduler.NextBatch(ctx, start, 5)

	require.NoError(t, err)
	assert.Equal(t, due, got)
	repo.AssertExpectations(t)
}
