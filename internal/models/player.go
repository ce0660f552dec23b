package models

import "time"

// BuffStat - характеристика карточки, к которой применяется временный бафф.
type BuffStat string

const (
	BuffStatVocal    BuffStat = "hr"
	BuffStatDance    BuffStat = "rh"
	BuffStatCharisma BuffStat = "ca"
)

// BuffStats в фиксированном порядке, по индексу выбирается бафф за прорыв.
var BuffStats = []BuffStat{BuffStatVocal, BuffStatDance, BuffStatCharisma}

// StatBuff - временный множитель характеристики.
type StatBuff struct {
	Stat      BuffStat  `json:"stat"`
	Amount    float64   `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Player - профиль игрока: билеты, валюты, баффы. Один на идентификатор.
type Player struct {
	PlayerKey    string     `json:"player_key" db:"player_key"`
	Tickets      int        `json:"tickets" db:"tickets"`
	GamesPlayed  int        `json:"games_played" db:"games_played"`
	BestTimeMs   *int64     `json:"best_time_ms,omitempty" db:"best_time_ms"`
	CoreFandom   int        `json:"core_fandom" db:"core_fandom"`
	CasualFandom int        `json:"casual_fandom" db:"casual_fandom"`
	EgoShards    int        `json:"ego_shards" db:"ego_shards"`
	DataCores    int        `json:"data_cores" db:"data_cores"`
	ActiveBuffs  []StatBuff `json:"active_buffs" db:"active_buffs"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// LiveBuffs возвращает баффы, которые еще не истекли на момент now.
func (p *Player) LiveBuffs(now time.Time) []StatBuff {
	live := make([]StatBuff, 0, len(p.ActiveBuffs))
	for _, b := range p.ActiveBuffs {
		if b.ExpiresAt.After(now) {
			live = append(live, b)
		}
	}
	return live
}
