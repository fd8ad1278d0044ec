package domain

// ParseResult хранит результат разбора ответа модели: записи или причину, по которой
// ответ признан некорректным. Частичный результат допускается вместе с причиной.
type ParseResult[T any] struct {
	Records []T
	Reason  string
}

// Ok создаёт успешный результат.
func Ok[T any](records []T) ParseResult[T] {
	return ParseResult[T]{Records: records}
}

// Malformed создаёт результат с причиной ошибки.
func Malformed[T any](reason string, partial []T) ParseResult[T] {
	return ParseResult[T]{Records: partial, Reason: reason}
}

// IsMalformed сообщает, что ответ не прошёл проверку.
func (r ParseResult[T]) IsMalformed() bool {
	return r.Reason != ""
}

// Err возвращает ParseError для некорректного результата.
func (r ParseResult[T]) Err(stage string) error {
	if !r.IsMalformed() {
		return nil
	}
	return &ParseError{Stage: stage, Reason: r.Reason}
}
