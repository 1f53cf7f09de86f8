package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"memory-portal/internal/db"
	"memory-portal/internal/models"
	"memory-portal/internal/session"
)

// Store is the slice of the database the handlers use directly; the
// conversation path goes through the Session instead.
type Store interface {
	ListProfiles(ctx context.Context) ([]models.UserProfile, error)
	SaveProfile(ctx context.Context, p *models.UserProfile) error
	SaveMemory(ctx context.Context, m *models.MemoryItem) error
	ListMemories(ctx context.Context, userID string) ([]models.MemoryItem, error)
	GetVideoJob(ctx context.Context, jobID string) (*models.VideoJob, error)
}

type Conversation interface {
	Submit(ctx context.Context, userID, text string) (*session.Exchange, error)
	History(ctx context.Context, userID string) ([]models.ConversationTurn, error)
}

type Profiles interface {
	GetOrCreate(ctx context.Context, userID string) (*models.UserProfile, error)
}

// Jobs creates rendering jobs; a successfully created job is already
// being polled by the time CreateJob returns.
type Jobs interface {
	CreateJob(ctx context.Context, userID, imageURL, text, sourceTurnID string) (string, error)
}

// JobView is the read side of the job status registry.
type JobView interface {
	Get(jobID string) (models.VideoJob, bool)
	All() map[string]models.VideoJob
}

type Handler struct {
	store    Store
	chat     Conversation
	profiles Profiles
	jobs     Jobs
	jobView  JobView
	logger   *zap.Logger
}

func NewHandler(store Store, chat Conversation, profiles Profiles, jobs Jobs, jobView JobView, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		chat:     chat,
		profiles: profiles,
		jobs:     jobs,
		jobView:  jobView,
		logger:   logger,
	}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/", h.root)
	g.GET("/profiles", h.listProfiles)
	g.POST("/profiles", h.saveProfile)
	g.GET("/profiles/:user_id", h.getProfile)
	g.POST("/memories", h.createMemory)
	g.POST("/memories/upload", h.uploadMemory)
	g.GET("/memories/:user_id", h.listMemories)
	g.POST("/chat", h.sendMessage)
	g.GET("/chat/:user_id", h.chatHistory)
	g.GET("/avatar", h.listJobs)
	g.POST("/avatar/create", h.createAvatarVideo)
	g.GET("/avatar/:job_id/status", h.avatarStatus)
}

func (h *Handler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Memory Portal API is running"})
}

// getProfile bootstraps: a profile is created with defaults on first
// access, so this never 404s for a well-formed user id.
func (h *Handler) getProfile(c echo.Context) error {
	userID := c.Param("user_id")
	p, err := h.profiles.GetOrCreate(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("failed to load profile", zap.String("userID", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) listProfiles(c echo.Context) error {
	profiles, err := h.store.ListProfiles(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list profiles", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list profiles")
	}
	return c.JSON(http.StatusOK, profiles)
}

type profileRequest struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	AvatarImageURL    string `json:"avatar_image_url"`
	PersonalityTraits string `json:"personality_traits"`
}

func (h *Handler) saveProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	p := models.UserProfile{
		ID:                req.ID,
		Name:              req.Name,
		AvatarImageURL:    req.AvatarImageURL,
		PersonalityTraits: req.PersonalityTraits,
	}
	if err := h.store.SaveProfile(c.Request().Context(), &p); err != nil {
		h.logger.Error("failed to save profile", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save profile")
	}
	return c.JSON(http.StatusCreated, p)
}

type memoryRequest struct {
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

func validMemoryType(t models.MemoryType) bool {
	switch t {
	case models.MemoryText, models.MemoryPhoto, models.MemoryAudio:
		return true
	}
	return false
}

func (h *Handler) createMemory(c echo.Context) error {
	var req memoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and content are required")
	}
	typ := models.MemoryType(req.Type)
	if !validMemoryType(typ) {
		return echo.NewHTTPError(http.StatusBadRequest, "type must be text, photo or audio")
	}

	m := models.MemoryItem{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Type:        typ,
		Content:     req.Content,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.SaveMemory(c.Request().Context(), &m); err != nil {
		h.logger.Error("failed to save memory", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save memory")
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) uploadMemory(c echo.Context) error {
	userID := c.FormValue("user_id")
	typ := models.MemoryType(c.FormValue("type"))
	description := c.FormValue("description")

	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	if !validMemoryType(typ) {
		return echo.NewHTTPError(http.StatusBadRequest, "type must be text, photo or audio")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		h.logger.Error("failed to read upload", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}

	if description == "" {
		description = fmt.Sprintf("%s file: %s", typ, fh.Filename)
	}

	m := models.MemoryItem{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ,
		Content:     base64.StdEncoding.EncodeToString(content),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.SaveMemory(c.Request().Context(), &m); err != nil {
		h.logger.Error("failed to save uploaded memory", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save memory")
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message":   "Memory uploaded successfully",
		"memory_id": m.ID,
	})
}

func (h *Handler) listMemories(c echo.Context) error {
	userID := c.Param("user_id")
	items, err := h.store.ListMemories(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("failed to list memories", zap.String("userID", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list memories")
	}
	return c.JSON(http.StatusOK, items)
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (h *Handler) sendMessage(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and message are required")
	}

	exchange, err := h.chat.Submit(c.Request().Context(), req.UserID, req.Message)
	if err != nil {
		// The user turn, if it was written, stays in history.
		h.logger.Error("failed to process message", zap.String("userID", req.UserID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process message")
	}
	return c.JSON(http.StatusOK, exchange)
}

func (h *Handler) chatHistory(c echo.Context) error {
	userID := c.Param("user_id")
	turns, err := h.chat.History(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("failed to load chat history", zap.String("userID", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load chat history")
	}
	return c.JSON(http.StatusOK, turns)
}

type createAvatarRequest struct {
	UserID   string `json:"user_id"`
	ImageURL string `json:"image_url"`
	Text     string `json:"text"`
}

func (h *Handler) createAvatarVideo(c echo.Context) error {
	var req createAvatarRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.ImageURL == "" || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id, image_url and text are required")
	}

	// Manually requested clips are not derived from a conversation
	// turn, so the source turn id stays empty.
	jobID, err := h.jobs.CreateJob(c.Request().Context(), req.UserID, req.ImageURL, req.Text, "")
	if err != nil {
		h.logger.Error("failed to create avatar video", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to create avatar video")
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"job_id": jobID,
		"status": string(models.JobCreated),
	})
}

func (h *Handler) avatarStatus(c echo.Context) error {
	jobID := c.Param("job_id")

	if job, ok := h.jobView.Get(jobID); ok {
		return c.JSON(http.StatusOK, job)
	}

	// Jobs from earlier runs are only in the database.
	job, err := h.store.GetVideoJob(c.Request().Context(), jobID)
	if errors.Is(err, db.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown job")
	}
	if err != nil {
		h.logger.Error("failed to load job", zap.String("jobID", jobID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load job")
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) listJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.jobView.All())
}
