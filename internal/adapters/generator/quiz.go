package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"cyberaware/internal/domain"
)

const (
	trueOption      = "True"
	falseOption     = "False"
	trueFalsePrefix = "True or False:"
	maxOptions      = 4
)

var (
	optionPrefix    = regexp.MustCompile(`^\s*[A-D1-4]\.\s*`)
	trueFalseSuffix = regexp.MustCompile(`(?i)\s*\(true/false\)`)
)

type quizItem struct {
	Question    *string          `json:"question"`
	Options     []string         `json:"options"`
	Correct     *json.RawMessage `json:"correct"`
	Explanation *string          `json:"explanation"`
}

// ParseQuiz разбирает JSON-массив вопросов. Некорректные элементы отбрасываются,
// результат обрезается до BatchSize; если валидных меньше, ответ некорректен.
func ParseQuiz(text string) domain.ParseResult[domain.QuizQuestion] {
	text = stripFence(text)
	if text == "" {
		return domain.Malformed[domain.QuizQuestion]("пустой ответ", nil)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.Malformed[domain.QuizQuestion](fmt.Sprintf("невалидный JSON: %v", err), nil)
	}

	quiz := make([]domain.QuizQuestion, 0, BatchSize)
	dropped := 0
	for _, item := range raw {
		q, ok := normalizeQuizItem(item)
		if !ok {
			dropped++
			continue
		}
		quiz = append(quiz, q)
	}
	if len(quiz) > BatchSize {
		quiz = quiz[:BatchSize]
	}
	if len(quiz) < BatchSize {
		return domain.Malformed(fmt.Sprintf("ожидали %d вопросов, получили %d (отброшено %d)", BatchSize, len(quiz), dropped), quiz)
	}
	return domain.Ok(quiz)
}

func normalizeQuizItem(raw json.RawMessage) (domain.QuizQuestion, bool) {
	var item quizItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.QuizQuestion{}, false
	}
	if item.Question == nil || item.Explanation == nil || item.Correct == nil || len(item.Options) < 2 {
		return domain.QuizQuestion{}, false
	}
	correct, err := strconv.Atoi(strings.TrimSpace(string(*item.Correct)))
	if err != nil || correct < 0 || correct >= len(item.Options) {
		return domain.QuizQuestion{}, false
	}

	options := make([]string, len(item.Options))
	for i, opt := range item.Options {
		options[i] = strings.TrimSpace(optionPrefix.ReplaceAllString(opt, ""))
	}
	question := strings.TrimSpace(*item.Question)
	q := domain.QuizQuestion{
		Question:    question,
		Options:     options,
		Correct:     correct,
		Explanation: strings.TrimSpace(*item.Explanation),
	}

	if isTrueFalse(question, options[correct]) {
		question = strings.TrimSpace(trueFalseSuffix.ReplaceAllString(question, ""))
		if !strings.HasPrefix(strings.ToLower(question), strings.ToLower(trueFalsePrefix)) {
			question = trueFalsePrefix + " " + question
		}
		q.Question = question
		q.Options = []string{trueOption, falseOption}
		q.Correct = 1
		if strings.EqualFold(options[correct], trueOption) {
			q.Correct = 0
		}
	} else if len(q.Options) > maxOptions {
		return domain.QuizQuestion{}, false
	}
	if q.Question == "" || !q.Valid() {
		return domain.QuizQuestion{}, false
	}
	return q, true
}

func isTrueFalse(question, correctOption string) bool {
	if strings.EqualFold(correctOption, trueOption) || strings.EqualFold(correctOption, falseOption) {
		return true
	}
	lower := strings.ToLower(question)
	return strings.HasSuffix(lower, "(true/false)") || strings.HasPrefix(lower, strings.ToLower(trueFalsePrefix))
}
