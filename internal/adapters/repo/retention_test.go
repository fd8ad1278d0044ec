package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberaware/internal/domain"
)

func TestPruneDeletesInDependencyOrder(t *testing.T) {
	p, mock := newMockRepo(t)
	cutoff := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF q SKIP LOCKED").
		WithArgs(cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectQuery("DELETE FROM quiz").
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectQuery("DELETE FROM slides").
		WithArgs(cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery("DELETE FROM headlines").
		WithArgs(cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)).AddRow(int64(22)))
	mock.ExpectCommit()

	res, err := p.Prune(context.Background(), cutoff, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, res.QuizIDs)
	assert.Equal(t, []int64{11}, res.SlideIDs)
	assert.Equal(t, []int64{21, 22}, res.HeadlineIDs)
	assert.Equal(t, 5, res.Total())
	require.NoError(t, mock.ExpectationsWereMet())
}

// Старый слайд, на вопрос которого есть результат: вопрос не попадает в кандидаты,
// а слайд и заголовок защищены ссылками и остаются на месте.
// pgxmock сверяет только текст запросов, их порядок и аргументы. Пустые выборки
// здесь задаёт сам мок, поэтому тест доказывает наличие предикатов NOT EXISTS в SQL,
// но не то, что Postgres по ним отфильтрует строки. Это проверяется только на живой БД.
func TestPruneKeepsScoredChain(t *testing.T) {
	p, mock := newMockRepo(t)
	cutoff := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`NOT EXISTS \(SELECT 1 FROM scores sc WHERE sc.quiz_id = q.id\)`).
		WithArgs(cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`DELETE FROM slides[\s\S]*NOT EXISTS \(SELECT 1 FROM quiz q WHERE q.slide_id = slides.id\)`).
		WithArgs(cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`DELETE FROM headlines[\s\S]*NOT EXISTS \(SELECT 1 FROM slides s WHERE s.headline_id = headlines.id\)`).
		WithArgs(cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	res, err := p.Prune(context.Background(), cutoff, 5)
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	require.NoError(t, mock.ExpectationsWereMet())
}

// Результат, зафиксированный между выборкой кандидатов и удалением, защищает вопрос.
// Гонку мок не воспроизводит: ответ DELETE с одним id из двух задан вручную.
// Поведение SKIP LOCKED и повторной проверки под конкурентной вставкой видно только на живой БД.
func TestPruneRechecksScoresBeforeDelete(t *testing.T) {
	p, mock := newMockRepo(t)
	cutoff := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SKIP LOCKED").
		WithArgs(cutoff, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectQuery(`DELETE FROM quiz[\s\S]*NOT EXISTS`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectQuery("DELETE FROM slides").WithArgs(cutoff, 5).WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("DELETE FROM headlines").WithArgs(cutoff, 5).WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	res, err := p.Prune(context.Background(), cutoff, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, res.QuizIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneRollsBackOnError(t *testing.T) {
	p, mock := newMockRepo(t)
	cutoff := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SKIP LOCKED").WithArgs(cutoff, 5).WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery("DELETE FROM slides").WithArgs(cutoff, 5).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := p.Prune(context.Background(), cutoff, 5)
	var persistErr *domain.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "prune_slides", persistErr.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}
