package models

// Mood - нормализованный исход хода из закрытого словаря.
type Mood string

const (
	MoodAccept       Mood = "accept"
	MoodReject       Mood = "reject"
	MoodPassive      Mood = "passive"
	MoodCounterOffer Mood = "counter_offer"
	MoodAngry        Mood = "angry"
)

// MoodVocabulary в порядке перечисления; порядок решает ничьи при нормализации.
var MoodVocabulary = []Mood{MoodAccept, MoodReject, MoodPassive, MoodCounterOffer, MoodAngry}

// DefaultMood используется, когда метку не удалось сопоставить со словарем.
const DefaultMood = MoodPassive

// IsSuccessful - ход считается удачным при согласии или встречном предложении.
func (m Mood) IsSuccessful() bool {
	return m == MoodAccept || m == MoodCounterOffer
}
