package models

// CrisisEvaluation - оценка ответа агентства на кризис в соцсетях.
type CrisisEvaluation struct {
	Score        int    `json:"score"`
	Reasoning    string `json:"reasoning"`
	CoreFandom   int    `json:"core_fandom"`
	CasualFandom int    `json:"casual_fandom"`
}
