package detector

import (
	"strings"

	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
)

// Grader — детерминированная таблица грейдов:
//
//	4 триггера                          -> A
//	2-3 триггера + сильный тренд        -> A
//	3 триггера, тренд без запаса        -> B
//	2 триггера, тренд без запаса        -> C
//	стоп дальше WideStopPct от входа    -> минус один грейд (не ниже C)
type Grader struct {
	policy Policy
	filter *TrendFilter
}

func NewGrader(policy Policy, filter *TrendFilter) *Grader {
	return &Grader{policy: policy, filter: filter}
}

func (g *Grader) Grade(res models.TriggerResult, trend *indicator.Snapshot, entry, stopLoss float64) models.Grade {
	count := res.Count()
	strong := g.filter.StrongAlignment(trend)

	var grade models.Grade
	switch {
	case count >= 4:
		grade = models.GradeA
	case strong:
		grade = models.GradeA
	case count >= 3:
		grade = models.GradeB
	default:
		grade = models.GradeC
	}

	if entry > 0 {
		stopDistPct := (entry - stopLoss) / entry * 100
		if stopDistPct > g.policy.WideStopPct {
			grade = demote(grade)
		}
	}
	return grade
}

func demote(g models.Grade) models.Grade {
	switch g {
	case models.GradeA:
		return models.GradeB
	default:
		return models.GradeC
	}
}

// Rationale собирает человекочитаемую причину сигнала из грейда и триггеров.
func Rationale(grade models.Grade, res models.TriggerResult) string {
	head := map[models.Grade]string{
		models.GradeA: "Strong setup",
		models.GradeB: "Good setup",
		models.GradeC: "High-risk setup",
	}[grade]
	if len(res.Reasons) == 0 {
		return head
	}
	return head + ": " + strings.Join(res.Reasons, ", ")
}
