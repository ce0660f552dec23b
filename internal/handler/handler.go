package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"idol-server/internal/middleware"
	"idol-server/internal/service"
)

// Handler обслуживает HTTP API игрока.
type Handler struct {
	negotiation service.NegotiationService
	minigames   service.MinigameService
	crisis      service.CrisisService
	squads      service.SquadService
	logger      *zap.Logger
}

func NewHandler(
	negotiation service.NegotiationService,
	minigames service.MinigameService,
	crisis service.CrisisService,
	squads service.SquadService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		negotiation: negotiation,
		minigames:   minigames,
		crisis:      crisis,
		squads:      squads,
		logger:      logger.Named("Handler"),
	}
}

// RegisterRoutes вешает API на /api/v1. Все маршруты требуют токен.
// ws может быть nil (например, в тестах).
func (h *Handler) RegisterRoutes(router gin.IRouter, authMiddleware, rateLimit gin.HandlerFunc, ws gin.HandlerFunc) {
	api := router.Group("/api/v1", authMiddleware)

	if ws != nil {
		api.GET("/ws", ws)
	}

	limited := api.Group("")
	if rateLimit != nil {
		limited.Use(rateLimit)
	}

	players := limited.Group("/players")
	{
		players.POST("/me", h.ensurePlayer)
		players.GET("/me", h.getProfile)
	}

	limited.GET("/characters", h.listCharacters)

	sessions := limited.Group("/sessions")
	{
		sessions.POST("", h.getOrCreateSession)
		sessions.GET("", h.listSessions)
		sessions.GET("/:id", h.getSession)
		sessions.GET("/:id/messages", h.listMessages)
		sessions.POST("/:id/proposals", h.submitProposal)
		sessions.POST("/:id/close", h.closeSession)
	}

	limited.POST("/minigames/results", h.submitMinigameResult)
	limited.POST("/crisis/responses", h.respondToCrisis)

	limited.GET("/cards", h.listCards)
	limited.GET("/units", h.listUnits)
	limited.PUT("/units", h.saveUnit)
}

// sessionID разбирает :id. При ошибке ответ уже отправлен.
func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.badRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// ensurePlayer godoc
// @Summary Создать игрока, если его еще нет
// @Tags players
// @Produce json
// @Success 200 {object} models.Player
// @Failure 401 {object} models.ErrorResponse
// @Router /api/v1/players/me [post]
func (h *Handler) ensurePlayer(c *gin.Context) {
	player, err := h.negotiation.EnsurePlayer(c.Request.Context(), middleware.PlayerKey(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

// getProfile godoc
// @Summary Профиль игрока
// @Tags players
// @Produce json
// @Success 200 {object} models.Player
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/players/me [get]
func (h *Handler) getProfile(c *gin.Context) {
	player, err := h.negotiation.GetProfile(c.Request.Context(), middleware.PlayerKey(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

// listCharacters godoc
// @Summary Список участниц
// @Tags characters
// @Produce json
// @Success 200 {object} ListResponse[models.Character]
// @Router /api/v1/characters [get]
func (h *Handler) listCharacters(c *gin.Context) {
	characters, err := h.negotiation.ListCharacters(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listOf(characters))
}

// getOrCreateSession godoc
// @Summary Открытая сессия с участницей (создается при отсутствии)
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "Участница"
// @Success 200 {object} models.NegotiationSession
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/sessions [post]
func (h *Handler) getOrCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CharacterID == uuid.Nil {
		h.badRequest(c, "character_id is required")
		return
	}
	session, err := h.negotiation.GetOrCreateSession(c.Request.Context(), middleware.PlayerKey(c), req.CharacterID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// listSessions godoc
// @Summary Сессии игрока
// @Tags sessions
// @Produce json
// @Success 200 {object} ListResponse[models.NegotiationSession]
// @Router /api/v1/sessions [get]
func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.negotiation.ListSessions(c.Request.Context(), middleware.PlayerKey(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listOf(sessions))
}

// getSession godoc
// @Summary Снимок сессии
// @Tags sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} models.NegotiationSession
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/sessions/{id} [get]
func (h *Handler) getSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	session, err := h.negotiation.GetSession(c.Request.Context(), middleware.PlayerKey(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// listMessages godoc
// @Summary История сессии
// @Tags sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} ListResponse[models.Message]
// @Router /api/v1/sessions/{id}/messages [get]
func (h *Handler) listMessages(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	messages, err := h.negotiation.ListMessages(c.Request.Context(), middleware.PlayerKey(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listOf(messages))
}

// submitProposal godoc
// @Summary Отправить предложение
// @Description Ход принимается сразу, ответ участницы приходит через websocket.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "ID сессии"
// @Param request body SubmitProposalRequest true "Текст предложения"
// @Success 202 {object} service.SubmitResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 402 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /api/v1/sessions/{id}/proposals [post]
func (h *Handler) submitProposal(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	result, err := h.negotiation.SubmitProposal(c.Request.Context(), middleware.PlayerKey(c), id, req.Text)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// closeSession godoc
// @Summary Закрыть сессию
// @Tags sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} models.NegotiationSession
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/sessions/{id}/close [post]
func (h *Handler) closeSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	session, err := h.negotiation.CloseSession(c.Request.Context(), middleware.PlayerKey(c), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// submitMinigameResult godoc
// @Summary Результат мини-игры
// @Tags minigames
// @Accept json
// @Produce json
// @Param request body MinigameResultRequest true "Время прохождения"
// @Success 200 {object} models.MinigameOutcome
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/minigames/results [post]
func (h *Handler) submitMinigameResult(c *gin.Context) {
	var req MinigameResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "completion_time_ms is required")
		return
	}
	outcome, err := h.minigames.SubmitResult(c.Request.Context(), middleware.PlayerKey(c), req.CompletionTimeMs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// respondToCrisis godoc
// @Summary Ответ на кризис
// @Tags crisis
// @Accept json
// @Produce json
// @Param request body CrisisResponseRequest true "Кризис и ответ"
// @Success 200 {object} models.CrisisEvaluation
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/crisis/responses [post]
func (h *Handler) respondToCrisis(c *gin.Context) {
	var req CrisisResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "crisis_description is required")
		return
	}
	evaluation, err := h.crisis.RespondToCrisis(c.Request.Context(), middleware.PlayerKey(c), req.CrisisDescription, req.ResponseText)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}

// listCards godoc
// @Summary Коллекция карт игрока
// @Description При первом обращении игрок получает стартовый набор.
// @Tags squad
// @Produce json
// @Success 200 {object} ListResponse[models.Card]
// @Router /api/v1/cards [get]
func (h *Handler) listCards(c *gin.Context) {
	cards, err := h.squads.ListCards(c.Request.Context(), middleware.PlayerKey(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listOf(cards))
}

// listUnits godoc
// @Summary Отряды игрока (не больше одного)
// @Tags squad
// @Produce json
// @Success 200 {object} ListResponse[models.Unit]
// @Router /api/v1/units [get]
func (h *Handler) listUnits(c *gin.Context) {
	units, err := h.squads.ListUnits(c.Request.Context(), middleware.PlayerKey(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listOf(units))
}

// saveUnit godoc
// @Summary Сохранить отряд из пяти карт
// @Tags squad
// @Accept json
// @Produce json
// @Param request body SaveUnitRequest true "Название и карты"
// @Success 200 {object} models.Unit
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /api/v1/units [put]
func (h *Handler) saveUnit(c *gin.Context) {
	var req SaveUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "card_ids is required")
		return
	}
	unit, err := h.squads.SaveUnit(c.Request.Context(), middleware.PlayerKey(c), req.UnitName, req.CardIDs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}
