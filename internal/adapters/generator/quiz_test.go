package generator

import (
	"strings"
	"testing"
)

const quizJSON = "```json\n" + `[
 {"question": "Which action best protects backups?", "options": ["A. Keep them offline", "B. Email them", "C. Share them", "D. Delete them"], "correct": 0, "explanation": "Offline copies survive ransomware."},
 {"question": "Payroll emails asking for bank changes are safe (True/False)", "options": ["True", "False"], "correct": 1, "explanation": "Verify by phone."},
 {"question": "True or False: card statements should be monitored", "options": ["Yes", "No"], "correct": 0, "explanation": "Monitoring spots fraud."},
 {"question": "Your VPN vendor issues a patch. What now?", "options": ["1. Wait a month", "2. Patch quickly", "3. Disable logging", "4. Ignore"], "correct": 1, "explanation": "Exploits follow fast."},
 {"question": "An extension asks for all site data. You should?", "options": ["Accept", "Review and remove", "Share", "Ignore"], "correct": 1, "explanation": "Least privilege."}
]` + "\n```"

func TestParseQuizNormalizes(t *testing.T) {
	res := ParseQuiz(quizJSON)
	if res.IsMalformed() {
		t.Fatalf("не ожидали ошибку разбора: %s", res.Reason)
	}
	if len(res.Records) != 5 {
		t.Fatalf("ожидали 5 вопросов, получили %d", len(res.Records))
	}
	if got := res.Records[0].Options[0]; got != "Keep them offline" {
		t.Fatalf("префикс варианта не удалён: %q", got)
	}
	if got := res.Records[3].Options[1]; got != "Patch quickly" {
		t.Fatalf("цифровой префикс не удалён: %q", got)
	}

	tf := res.Records[1]
	if tf.Question != "True or False: Payroll emails asking for bank changes are safe" {
		t.Fatalf("неожиданный вопрос true/false: %q", tf.Question)
	}
	if len(tf.Options) != 2 || tf.Options[0] != "True" || tf.Options[1] != "False" || tf.Correct != 1 {
		t.Fatalf("неожиданная нормализация: %+v", tf)
	}

	phrased := res.Records[2]
	if !strings.HasPrefix(phrased.Question, "True or False:") || strings.Count(phrased.Question, "True or False:") != 1 {
		t.Fatalf("префикс должен быть ровно один: %q", phrased.Question)
	}
	if phrased.Correct != 1 {
		t.Fatalf("вариант Yes не равен true, ожидали индекс 1, получили %d", phrased.Correct)
	}
	for _, q := range res.Records {
		if !q.Valid() {
			t.Fatalf("невалидный вопрос прошёл разбор: %+v", q)
		}
	}
}

func TestParseQuizDropsInvalidItems(t *testing.T) {
	text := `[
 {"question": "q1", "options": ["a", "b"], "correct": 2, "explanation": "e"},
 {"question": "q2", "options": ["a"], "correct": 0, "explanation": "e"},
 {"question": "q3", "options": ["a", "b"], "correct": 1.5, "explanation": "e"},
 {"question": "q4", "options": ["a", "b"], "correct": 0},
 {"options": ["a", "b"], "correct": 0, "explanation": "e"},
 {"question": "q6", "options": ["a", "b", "c", "d", "e"], "correct": 0, "explanation": "e"},
 {"question": "q7", "options": ["a", "b"], "correct": 1, "explanation": "e"}
]`
	res := ParseQuiz(text)
	if !res.IsMalformed() {
		t.Fatalf("ожидали некорректный результат")
	}
	if len(res.Records) != 1 || res.Records[0].Question != "q7" {
		t.Fatalf("ожидали только q7, получили %+v", res.Records)
	}
}

func TestParseQuizTruncatesToFive(t *testing.T) {
	item := `{"question": "q", "options": ["a", "b", "c", "d"], "correct": 3, "explanation": "e"}`
	text := "[" + strings.TrimSuffix(strings.Repeat(item+",", 7), ",") + "]"
	res := ParseQuiz(text)
	if res.IsMalformed() || len(res.Records) != 5 {
		t.Fatalf("ожидали 5 вопросов, получили %d (%s)", len(res.Records), res.Reason)
	}
}

func TestParseQuizInvalidJSON(t *testing.T) {
	for _, text := range []string{"", "not json", `{"question": "q"}`} {
		res := ParseQuiz(text)
		if !res.IsMalformed() || len(res.Records) != 0 {
			t.Fatalf("ожидали пустой некорректный результат для %q", text)
		}
	}
}
