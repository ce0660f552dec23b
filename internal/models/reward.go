package models

// Reward - результат расчета награды за ход. Отдельно не хранится:
// живет снимком в ответе участницы и приращением валют игрока.
type Reward struct {
	ShardGrant   int       `json:"ego_shards"`
	CoreGrant    int       `json:"data_cores"`
	Breakthrough bool      `json:"is_breakthrough"`
	Buff         *StatBuff `json:"buff,omitempty"`
}

// IsZero сообщает, что награда пустая.
func (r Reward) IsZero() bool {
	return r.ShardGrant == 0 && r.CoreGrant == 0 && !r.Breakthrough && r.Buff == nil
}
