package domain

import (
	"strconv"
	"strings"
)

// MaxScore ограничивает баллы за одну викторину.
const MaxScore = 100

// ScoreScale описывает шкалу оценки: максимальный балл и порог прохождения.
type ScoreScale struct {
	Perfect int
	Pass    int
}

// Исторически викторина оценивалась по шкале 69, позже по шкале 100.
var defaultScales = []ScoreScale{
	{Perfect: 69, Pass: 48},
	{Perfect: 100, Pass: 80},
}

// Scoring определяет «идеальные» значения и статус прохождения.
type Scoring struct {
	scales []ScoreScale
}

// NewScoring создаёт правила оценки по списку идеальных значений.
// Пустой список означает шкалы 69 и 100.
func NewScoring(perfect []int) Scoring {
	if len(perfect) == 0 {
		return Scoring{scales: defaultScales}
	}
	scales := make([]ScoreScale, 0, len(perfect))
	for _, p := range perfect {
		if p <= 0 || p > MaxScore {
			continue
		}
		scales = append(scales, ScoreScale{Perfect: p, Pass: passFor(p)})
	}
	if len(scales) == 0 {
		return Scoring{scales: defaultScales}
	}
	return Scoring{scales: scales}
}

func passFor(perfect int) int {
	for _, s := range defaultScales {
		if s.Perfect == perfect {
			return s.Pass
		}
	}
	return perfect * 4 / 5
}

// ParsePerfectScores разбирает строку вида "69,100".
func ParsePerfectScores(raw string) []int {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// PerfectValues возвращает идеальные значения всех шкал.
func (s Scoring) PerfectValues() []int {
	out := make([]int, 0, len(s.scales))
	for _, sc := range s.scales {
		out = append(out, sc.Perfect)
	}
	return out
}

// IsPerfect сообщает, что результат максимален на одной из шкал.
func (s Scoring) IsPerfect(score int) bool {
	for _, sc := range s.scales {
		if score == sc.Perfect {
			return true
		}
	}
	return false
}

// scaleFor выбирает наименьшую шкалу, в которую укладывается результат.
func (s Scoring) scaleFor(score int) ScoreScale {
	best := ScoreScale{Perfect: MaxScore, Pass: passFor(MaxScore)}
	for _, sc := range s.scales {
		if score <= sc.Perfect && sc.Perfect <= best.Perfect {
			best = sc
		}
	}
	return best
}

// Status возвращает "Pass" или "Fail" для результата.
func (s Scoring) Status(score int) string {
	if score >= s.scaleFor(score).Pass {
		return "Pass"
	}
	return "Fail"
}

// ValidateScore проверяет диапазон баллов.
func ValidateScore(score int) error {
	if score < 0 || score > MaxScore {
		return &IntegrityViolation{Field: "score", Msg: "Error: Invalid score provided.", Err: ErrInvalidScore}
	}
	return nil
}
