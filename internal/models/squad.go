package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SquadSize - отряд всегда состоит ровно из стольких карт.
	SquadSize = 5
	// UnitNameMaxLength - в рунах.
	UnitNameMaxLength = 30
)

// StarterCardStats - характеристики базовой карты, которую игрок получает на каждую участницу.
var StarterCardStats = CardStats{Vocal: 30, Dance: 30, Charisma: 30}

// CardStats - три характеристики карты: вокал (hr), танец (rh), харизма (ca).
type CardStats struct {
	Vocal    int `json:"hr_vocal" db:"hr_vocal"`
	Dance    int `json:"rh_dance" db:"rh_dance"`
	Charisma int `json:"ca_charisma" db:"ca_charisma"`
}

// Card - карта участницы в коллекции игрока.
type Card struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PlayerKey   string    `json:"player_key" db:"player_key"`
	CharacterID uuid.UUID `json:"character_id" db:"character_id"`
	CardName    string    `json:"card_name" db:"card_name"`
	Rarity      int       `json:"rarity" db:"rarity"`
	Level       int       `json:"level" db:"level"`
	CardStats
	AvatarURL *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Unit - сохраненный отряд игрока с суммарными характеристиками.
type Unit struct {
	ID        uuid.UUID   `json:"id"`
	PlayerKey string      `json:"player_key"`
	UnitName  string      `json:"unit_name"`
	CardIDs   []uuid.UUID `json:"card_ids"`
	TotalHR   int         `json:"total_hr"`
	TotalRH   int         `json:"total_rh"`
	TotalCA   int         `json:"total_ca"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SumCardStats складывает характеристики карт отряда.
func SumCardStats(cards []Card) CardStats {
	var total CardStats
	for _, c := range cards {
		total.Vocal += c.Vocal
		total.Dance += c.Dance
		total.Charisma += c.Charisma
	}
	return total
}

// NewUnit собирает отряд из карт; порядок CardIDs совпадает с порядком cards.
func NewUnit(playerKey, name string, cards []Card) *Unit {
	ids := make([]uuid.UUID, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	total := SumCardStats(cards)
	return &Unit{
		PlayerKey: playerKey,
		UnitName:  name,
		CardIDs:   ids,
		TotalHR:   total.Vocal,
		TotalRH:   total.Dance,
		TotalCA:   total.Charisma,
	}
}
