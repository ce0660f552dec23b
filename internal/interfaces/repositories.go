package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"idol-server/internal/models"
)

// PlayerRepository - профили игроков. Все изменения балансов делаются
// одним UPDATE относительно текущего значения в БД.
type PlayerRepository interface {
	// Ensure создает профиль при первом обращении и возвращает актуальную запись.
	Ensure(ctx context.Context, querier DBTX, playerKey string, initialTickets int) (*models.Player, error)
	GetByKey(ctx context.Context, querier DBTX, playerKey string) (*models.Player, error)
	// GetForUpdate блокирует строку игрока до конца транзакции.
	GetForUpdate(ctx context.Context, querier DBTX, playerKey string) (*models.Player, error)
	// SpendTicket списывает один билет; models.ErrInsufficientTickets, если билетов нет.
	SpendTicket(ctx context.Context, querier DBTX, playerKey string) (remaining int, err error)
	CreditCurrencies(ctx context.Context, querier DBTX, playerKey string, egoShards, dataCores int) error
	AppendBuff(ctx context.Context, querier DBTX, playerKey string, buff models.StatBuff) error
	SetFandom(ctx context.Context, querier DBTX, playerKey string, coreFandom, casualFandom int) error
	// RecordMinigame начисляет билеты, увеличивает счетчик игр и обновляет лучшее время.
	RecordMinigame(ctx context.Context, querier DBTX, playerKey string, completionTimeMs int64, ticketsAwarded int) (*models.Player, error)
	PruneExpiredBuffs(ctx context.Context, querier DBTX, now time.Time) (int64, error)
}

// CharacterRepository - статический ростер.
type CharacterRepository interface {
	List(ctx context.Context, querier DBTX) ([]models.Character, error)
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Character, error)
}

// SessionRepository - переговорные сессии.
type SessionRepository interface {
	Create(ctx context.Context, querier DBTX, session *models.NegotiationSession) error
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.NegotiationSession, error)
	// GetForUpdate блокирует строку сессии: так сериализуются все изменения одной сессии.
	GetForUpdate(ctx context.Context, querier DBTX, id uuid.UUID) (*models.NegotiationSession, error)
	FindOpen(ctx context.Context, querier DBTX, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error)
	FindLatest(ctx context.Context, querier DBTX, playerKey string, characterID uuid.UUID) (*models.NegotiationSession, error)
	ListByPlayer(ctx context.Context, querier DBTX, playerKey string) ([]models.NegotiationSession, error)
	UpdateStats(ctx context.Context, querier DBTX, id uuid.UUID, stats models.SessionStats) error
	// UpdateArtifact не затирает декоративное поле пустым значением.
	UpdateArtifact(ctx context.Context, querier DBTX, id uuid.UUID, artifact string) (bool, error)
	Close(ctx context.Context, querier DBTX, id uuid.UUID) error
}

// MessageRepository - журнал сообщений сессии, только добавление.
type MessageRepository interface {
	Create(ctx context.Context, querier DBTX, msg *models.Message) error
	// CreateReply вставляет ответ на ход; false, если ответ на этот ход уже есть.
	CreateReply(ctx context.Context, querier DBTX, msg *models.Message) (bool, error)
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Message, error)
	// GetLatestWithAge возвращает последнее сообщение сессии и его возраст по часам базы.
	GetLatestWithAge(ctx context.Context, querier DBTX, sessionID uuid.UUID) (*models.Message, time.Duration, error)
	ReplyExists(ctx context.Context, querier DBTX, turnID uuid.UUID) (bool, error)
	// ListRecent возвращает последние limit сообщений в хронологическом порядке.
	ListRecent(ctx context.Context, querier DBTX, sessionID uuid.UUID, limit int) ([]models.Message, error)
	// ListUnanswered - сообщения игроков старше olderThan без ответа.
	ListUnanswered(ctx context.Context, querier DBTX, olderThan time.Time, limit int) ([]models.Message, error)
}

// MinigameRepository - журнал результатов мини-игр.
type MinigameRepository interface {
	Create(ctx context.Context, querier DBTX, result *models.MinigameResult) error
	GetLatestForPlayer(ctx context.Context, querier DBTX, playerKey string) (*models.MinigameResult, error)
}

// CardRepository - коллекция карт игроков.
type CardRepository interface {
	// GrantStarterSet выдает по базовой карте на каждую участницу ростера. Повторный вызов ничего не меняет.
	GrantStarterSet(ctx context.Context, querier DBTX, playerKey string, stats models.CardStats) (int64, error)
	ListByPlayer(ctx context.Context, querier DBTX, playerKey string) ([]models.Card, error)
	// GetOwnedForShare возвращает карты игрока из ids и блокирует их от изменения до конца транзакции.
	// Чужие и несуществующие id просто отсутствуют в результате.
	GetOwnedForShare(ctx context.Context, querier DBTX, playerKey string, ids []uuid.UUID) ([]models.Card, error)
}

// UnitRepository - отряды; у игрока не больше одного.
type UnitRepository interface {
	ListByPlayer(ctx context.Context, querier DBTX, playerKey string) ([]models.Unit, error)
	// Upsert заменяет отряд игрока целиком и заполняет ID и UpdatedAt.
	Upsert(ctx context.Context, querier DBTX, unit *models.Unit) error
}

// TurnLocker не дает двум воркерам одновременно генерировать ответ на один ход
// при повторной доставке задачи.
type TurnLocker interface {
	Acquire(ctx context.Context, turnID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, turnID uuid.UUID) error
}
