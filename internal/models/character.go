package models

import "github.com/google/uuid"

// Character - запись статического ростера участниц. Только для чтения.
type Character struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	NameEn      string    `json:"name_en" db:"name_en"`
	Position    string    `json:"position" db:"position"`
	Personality string    `json:"personality" db:"personality"` // Вставляется в промпт
	Trait       string    `json:"trait" db:"trait"`
	ColorFrom   string    `json:"color_from" db:"color_from"`
	ColorTo     string    `json:"color_to" db:"color_to"`
	Emoji       string    `json:"emoji" db:"emoji"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
}
