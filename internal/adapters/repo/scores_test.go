package repo

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberaware/internal/domain"
)

func TestSubmitScoreUpdatesTotals(t *testing.T) {
	p, mock := newMockRepo(t)
	completed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR SHARE").WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(77), completed).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO scores").WithArgs(int64(77), int64(5), 100, completed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("COUNT\\(DISTINCT quiz_id\\)").WithArgs(int64(77), []int{69, 100}).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count", "perfect"}).AddRow(int64(169), int64(2), int64(2)))
	mock.ExpectExec("INSERT INTO user_totals").
		WithArgs(int64(77), 169, 2, completed, 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	totals, err := p.SubmitScore(context.Background(), domain.Score{UserID: 77, QuizID: 5, Value: 100, CompletedAt: completed}, []int{69, 100})
	require.NoError(t, err)
	assert.Equal(t, domain.UserTotals{UserID: 77, TotalScore: 169, PerfectQuizzes: 2, QuizzesTaken: 2, LastQuiz: completed}, totals)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitScoreMissingQuiz(t *testing.T) {
	p, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR SHARE").WithArgs(int64(404)).WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := p.SubmitScore(context.Background(), domain.Score{UserID: 1, QuizID: 404, Value: 50}, nil)
	require.ErrorIs(t, err, domain.ErrQuizNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitScoreAlreadyTaken(t *testing.T) {
	p, mock := newMockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR SHARE").WithArgs(int64(5)).WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(1), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := p.SubmitScore(context.Background(), domain.Score{UserID: 1, QuizID: 5, Value: 50}, nil)
	require.ErrorIs(t, err, domain.ErrAlreadyTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitScoreRejectsOutOfRange(t *testing.T) {
	p, mock := newMockRepo(t)
	_, err := p.SubmitScore(context.Background(), domain.Score{UserID: 1, QuizID: 5, Value: 101}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidScore)
	require.NoError(t, mock.ExpectationsWereMet())
}
