package schemas

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
)

const (
	CrisisScoreMin     = 1
	CrisisScoreMax     = 100
	CrisisDefaultScore = 50

	// CrisisNeutralReasoning - пояснение нейтральной оценки, когда ответ генератора не разобран.
	CrisisNeutralReasoning = "분석이 불가능하여 중립적으로 처리됩니다."
)

// CrisisScore - оценка ответа агентства.
type CrisisScore struct {
	Score     int
	Reasoning string
}

// NeutralCrisisScore возвращает оценку по умолчанию.
func NeutralCrisisScore() CrisisScore {
	return CrisisScore{Score: CrisisDefaultScore, Reasoning: CrisisNeutralReasoning}
}

// ParseCrisisScore разбирает {score, reasoning}. Счет зажимается в [1,100];
// отсутствующий или нечисловой счет дает 50.
func ParseCrisisScore(raw string) (CrisisScore, error) {
	content := StripCodeFence(raw)
	if content == "" {
		return NeutralCrisisScore(), &ParseError{Raw: raw, Err: errors.New("empty content")}
	}

	var r struct {
		Score     json.RawMessage `json:"score"`
		Reasoning json.RawMessage `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return NeutralCrisisScore(), &ParseError{Raw: raw, Err: err}
	}

	result := NeutralCrisisScore()
	if score := coerceNumber(r.Score); score != 0 {
		result.Score = int(math.Round(clampFloat(score, CrisisScoreMin, CrisisScoreMax)))
	}
	if reasoning := strings.TrimSpace(stringField(r.Reasoning)); reasoning != "" {
		result.Reasoning = reasoning
	}
	return result, nil
}
