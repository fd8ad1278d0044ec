package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContent возвращается, когда генератор исчерпал попытки и не вернул текст.
	ErrNoContent = errors.New("генератор не вернул контент")
	// ErrRefreshInProgress возвращается, если цикл обновления уже выполняется.
	ErrRefreshInProgress = errors.New("обновление уже выполняется")
	// ErrInvalidScore возвращается при некорректном значении баллов.
	ErrInvalidScore = errors.New("invalid score")
	// ErrAlreadyTaken возвращается, если пользователь уже проходил текущую викторину.
	ErrAlreadyTaken = errors.New("quiz already taken")
	// ErrQuizNotFound возвращается, если вопрос викторины не найден.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrNoPostCandidate возвращается, если нечего публиковать.
	ErrNoPostCandidate = errors.New("нет данных для публикации")
)

// FetchError описывает сбой получения одной ленты после всех попыток.
type FetchError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("лента %s: %d попыток: %v", e.Source, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// GenerationError возвращается, если генеративный API не ответил на этапе slides или quiz.
type GenerationError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("генерация %s: %d попыток: %v", e.Stage, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ParseError описывает некорректный ответ модели.
type ParseError struct {
	Stage  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("разбор %s: %s", e.Stage, e.Reason)
}

// PersistenceError оборачивает сбой записи в БД. Транзакция при этом откатывается.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("БД %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IntegrityViolation описывает ошибку валидации, которую видит пользователь.
type IntegrityViolation struct {
	Field string
	Msg   string
	Err   error
}

func (e *IntegrityViolation) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *IntegrityViolation) Unwrap() error { return e.Err }
