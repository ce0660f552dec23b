// Package reward считает награду за ход. Расчет детерминирован: одинаковые
// сессия и текст предложения всегда дают одинаковую награду.
package reward

import (
	"hash/fnv"
	"strconv"
	"time"

	"idol-server/internal/models"
)

// Слоты независимых бросков внутри одного хода.
const (
	SlotPrimary     = 1
	SlotSecondary   = 2
	SlotConsolation = 3
	SlotBuff        = 4
	SlotFallback    = 5
)

const (
	BreakthroughEgoDelta        = 5
	BreakthroughMotivationDelta = 8

	BuffAmount   = 0.1
	BuffDuration = 24 * time.Hour

	fractionModulus = 10000
)

// Range - целочисленный диапазон с включенными границами.
type Range struct {
	Min int
	Max int
}

// Pick отображает дробь из [0,1) на диапазон равномерно.
func (r Range) Pick(fraction float64) int {
	span := r.Max - r.Min + 1
	v := r.Min + int(fraction*float64(span))
	if v > r.Max {
		return r.Max
	}
	return v
}

var (
	PrimaryRange     = Range{Min: 10, Max: 20}
	SecondaryRange   = Range{Min: 5, Max: 10}
	ConsolationRange = Range{Min: 1, Max: 2}
	BonusRange       = Range{Min: 0, Max: 10}
)

// Fraction возвращает воспроизводимую псевдослучайную дробь в [0,1)
// для пары сессия/текст и номера слота.
func Fraction(sessionKey, input string, slot int) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionKey))
	_, _ = h.Write([]byte(input))
	_, _ = h.Write([]byte(strconv.Itoa(slot)))
	return float64(h.Sum32()%fractionModulus) / fractionModulus
}

// Input - все, от чего зависит награда за ход.
type Input struct {
	SessionKey  string
	Text        string
	Mood        models.Mood
	Delta       models.StatDelta
	RewardBonus int
	Now         time.Time
}

// Calculate не обращается к генератору и не имеет побочных эффектов.
func Calculate(in Input) models.Reward {
	if !in.Mood.IsSuccessful() {
		return models.Reward{
			ShardGrant: ConsolationRange.Pick(Fraction(in.SessionKey, in.Text, SlotConsolation)),
		}
	}

	bonus := models.ClampInt(in.RewardBonus, BonusRange.Min, BonusRange.Max)
	r := models.Reward{
		ShardGrant: PrimaryRange.Pick(Fraction(in.SessionKey, in.Text, SlotPrimary)) + bonus,
		CoreGrant:  SecondaryRange.Pick(Fraction(in.SessionKey, in.Text, SlotSecondary)),
	}

	if in.Delta.Ego >= BreakthroughEgoDelta || in.Delta.Motivation >= BreakthroughMotivationDelta {
		r.Breakthrough = true
		idx := Range{Min: 0, Max: len(models.BuffStats) - 1}.Pick(Fraction(in.SessionKey, in.Text, SlotBuff))
		r.Buff = &models.StatBuff{
			Stat:      models.BuffStats[idx],
			Amount:    BuffAmount,
			ExpiresAt: in.Now.Add(BuffDuration).UTC(),
		}
	}
	return r
}
