package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/M7mdkimoo/myrockai/internal/config"
	"github.com/M7mdkimoo/myrockai/internal/models"
	"github.com/M7mdkimoo/myrockai/internal/redis"
	"github.com/M7mdkimoo/myrockai/internal/service/ai"
	"github.com/M7mdkimoo/myrockai/internal/service/expert"
	"github.com/M7mdkimoo/myrockai/internal/service/pool"
	"github.com/M7mdkimoo/myrockai/internal/state"
	"github.com/M7mdkimoo/myrockai/internal/toast"
)

// googleProvider is the credential slot the assistant runs on.
const googleProvider = "google"

const chatTimeout = 15 * time.Minute

// Assistant is the AI surface the handler drives.
type Assistant interface {
	Generate(ctx context.Context, history []models.Message, message string, category models.ServiceCategory, attachments []models.FileAttachment, opts ai.Options, onStream func(string)) (*ai.Reply, error)
	Speak(ctx context.Context, text string) (*models.GeneratedMedia, error)
	Estimate(ctx context.Context, title, description string, category models.ServiceCategory) (string, error)
}

// assistantFactory builds the assistant for a credential. Swapped in tests.
var assistantFactory = func(apiKey string, cfg config.ModelConfig) (Assistant, error) {
	return ai.New(apiKey, cfg)
}

// Handler wires HTTP routes to the application services.
type Handler struct {
	store   *state.Store
	toasts  *toast.Service
	experts *expert.Manager
	pool    *pool.Service
	models  config.ModelConfig
	cache   *redis.Client

	// chatBusy enforces a single in-flight chat generation.
	chatBusy atomic.Bool
}

// NewHandler constructs a Handler instance.
func NewHandler(store *state.Store, toasts *toast.Service, experts *expert.Manager, modelCfg config.ModelConfig, cache *redis.Client) *Handler {
	h := &Handler{
		store:   store,
		toasts:  toasts,
		experts: experts,
		models:  modelCfg,
		cache:   cache,
	}
	h.pool = pool.New(store, h, cache)
	return h
}

// countGeneration bumps the per-day generation counter, best effort.
func (h *Handler) countGeneration(ctx context.Context) {
	if h.cache == nil {
		return
	}
	key := "chat:generations:" + time.Now().UTC().Format("2006-01-02")
	if _, err := h.cache.IncrBy(ctx, key, 1); err != nil {
		log.Printf("count generation: %v", err)
	}
}

// aiService builds the assistant for the currently stored credential.
func (h *Handler) aiService() (Assistant, error) {
	key, ok := h.store.APIKey(googleProvider)
	if !ok {
		return nil, ai.ErrMissingCredential
	}
	return assistantFactory(key, h.models)
}

// Estimate lets the pool service price requests with the live credential.
func (h *Handler) Estimate(ctx context.Context, title, description string, category models.ServiceCategory) (string, error) {
	svc, err := h.aiService()
	if err != nil {
		return "", err
	}
	return svc.Estimate(ctx, title, description, category)
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.updateProfile)
	api.POST("/profile/role", h.toggleRole)

	api.POST("/keys", h.setKey)
	api.GET("/keys", h.listKeys)
	api.DELETE("/keys", h.deleteKey)

	api.POST("/chat", h.sendChat)
	api.GET("/chat/messages", h.getMessages)
	api.DELETE("/chat", h.resetChat)
	api.POST("/chat/speak", h.speak)

	api.POST("/pool", h.createPoolRequest)
	api.GET("/pool", h.listPoolRequests)
	api.POST("/pool/:id/bids", h.placeBid)

	api.POST("/expert/sessions", h.startExpertSession)
	api.GET("/expert/sessions/:id", h.getExpertSession)
	api.POST("/expert/sessions/:id/messages", h.sendExpertMessage)
	api.POST("/expert/sessions/:id/end", h.endExpertSession)
	api.POST("/expert/sessions/:id/rating", h.rateExpertSession)
	api.DELETE("/expert/sessions/:id", h.closeExpertSession)

	api.GET("/toasts", h.listToasts)
	api.DELETE("/toasts/:id", h.dismissToast)
}

// Profile

func (h *Handler) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profile": h.store.Profile()})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req state.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	profile, err := h.store.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.toasts.Push("Profile updated", models.ToastSuccess)
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *Handler) toggleRole(c *gin.Context) {
	role, err := h.store.ToggleRole(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

// API keys

func (h *Handler) setKey(c *gin.Context) {
	var req struct {
		Provider string `json:"provider"`
		Key      string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.store.SetAPIKey(c.Request.Context(), req.Provider, req.Key); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listKeys(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.store.Providers()})
}

func (h *Handler) deleteKey(c *gin.Context) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.store.DeleteAPIKey(c.Request.Context(), req.Provider); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Chat

type chatRequest struct {
	Content     string                  `json:"content"`
	Category    models.ServiceCategory  `json:"category"`
	Attachments []models.FileAttachment `json:"attachments"`
}

func (h *Handler) sendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
		return
	}
	if req.Category == "" {
		req.Category = models.CategoryText
	}
	if !req.Category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown service category"})
		return
	}

	svc, err := h.aiService()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.chatBusy.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a message is already being processed"})
		return
	}
	defer h.chatBusy.Store(false)

	history := h.store.Messages()
	userMessage := models.Message{
		ID:          uuid.NewString(),
		Role:        models.RoleUser,
		Text:        req.Content,
		Attachments: req.Attachments,
		CreatedAt:   time.Now().UTC(),
	}

	streamCtx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvent("ack", gin.H{"message": userMessage}); err != nil {
		return
	}

	prefs := h.store.Profile().Preferences
	reply, err := svc.Generate(streamCtx, history, req.Content, req.Category, req.Attachments, ai.Options{
		ThinkingMode: prefs.ThinkingMode,
		AspectRatio:  prefs.DefaultAspectRatio,
	}, func(cumulative string) {
		_ = sendEvent("stream", gin.H{"content": cumulative})
	})
	if err != nil {
		h.toasts.Push(err.Error(), models.ToastError)
		_ = sendEvent("error", gin.H{"message": err.Error()})
		return
	}

	aiMessage := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleModel,
		Text:      reply.Text,
		Media:     reply.Media,
		Citations: reply.Citations,
		CreatedAt: time.Now().UTC(),
	}
	// Both sides of the exchange land in the transcript only once the
	// reply is complete.
	h.store.AddMessage(userMessage)
	h.store.AddMessage(aiMessage)
	h.countGeneration(c.Request.Context())

	_ = sendEvent("done", gin.H{
		"user_message": userMessage,
		"ai_message":   aiMessage,
	})
}

func (h *Handler) getMessages(c *gin.Context) {
	messages := h.store.Messages()
	if messages == nil {
		messages = make([]models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) resetChat(c *gin.Context) {
	h.store.ResetChat()
	c.Status(http.StatusNoContent)
}

func (h *Handler) speak(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	svc, err := h.aiService()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	media, err := svc.Speak(c.Request.Context(), req.Text)
	if err != nil {
		h.toasts.Push("Speech synthesis failed", models.ToastError)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": media})
}

// Talent pool

type poolRequestBody struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Category    models.ServiceCategory  `json:"category"`
	Files       []models.FileAttachment `json:"files"`
}

func (h *Handler) createPoolRequest(c *gin.Context) {
	var req poolRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := h.pool.Create(c.Request.Context(), req.Title, req.Description, req.Category, req.Files)
	if err != nil {
		h.toasts.Push("Could not post your request", models.ToastError)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.toasts.Push("Request posted to the talent pool", models.ToastSuccess)
	c.JSON(http.StatusCreated, gin.H{"request": created})
}

func (h *Handler) listPoolRequests(c *gin.Context) {
	requests := h.pool.List(pool.Filter{
		Search:   c.Query("search"),
		Category: models.ServiceCategory(c.Query("category")),
		Status:   models.RequestStatus(c.Query("status")),
	})
	if requests == nil {
		requests = make([]models.PoolRequest, 0)
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *Handler) placeBid(c *gin.Context) {
	var req struct {
		Price        float64 `json:"price"`
		DeliveryTime string  `json:"delivery_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	profile := h.store.Profile()
	if profile.Role != models.RoleExpert {
		c.JSON(http.StatusForbidden, gin.H{"error": "switch to the expert role to bid"})
		return
	}
	err := h.pool.Bid(c.Param("id"), profile.ID, profile.Name, req.Price, req.DeliveryTime)
	if err != nil {
		if errors.Is(err, pool.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.toasts.Push("Bid submitted", models.ToastSuccess)
	c.Status(http.StatusNoContent)
}

// Expert sessions

func (h *Handler) startExpertSession(c *gin.Context) {
	var req struct {
		Category models.ServiceCategory `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.Category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown service category"})
		return
	}
	session := h.experts.Start(req.Category)
	c.JSON(http.StatusCreated, gin.H{"session": session.Snapshot()})
}

func (h *Handler) expertSession(c *gin.Context) (*expert.Session, bool) {
	session, err := h.experts.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return session, true
}

func (h *Handler) getExpertSession(c *gin.Context) {
	session, ok := h.expertSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session.Snapshot()})
}

func (h *Handler) sendExpertMessage(c *gin.Context) {
	session, ok := h.expertSession(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content is required"})
		return
	}
	if err := session.Message(req.Content); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session": session.Snapshot()})
}

func (h *Handler) endExpertSession(c *gin.Context) {
	session, ok := h.expertSession(c)
	if !ok {
		return
	}
	invoice, err := session.End()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

func (h *Handler) rateExpertSession(c *gin.Context) {
	session, ok := h.expertSession(c)
	if !ok {
		return
	}
	var req struct {
		Stars int `json:"stars"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := session.SubmitRating(req.Stars); err != nil {
		if errors.Is(err, expert.ErrInvalidRating) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.AddRating(c.Request.Context(), req.Stars); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.toasts.Push("Thanks for your feedback!", models.ToastSuccess)
	c.Status(http.StatusNoContent)
}

func (h *Handler) closeExpertSession(c *gin.Context) {
	session, ok := h.expertSession(c)
	if !ok {
		return
	}
	session.Close()
	c.Status(http.StatusNoContent)
}

// Toasts

func (h *Handler) listToasts(c *gin.Context) {
	active := h.toasts.Active()
	if active == nil {
		active = make([]models.Toast, 0)
	}
	c.JSON(http.StatusOK, gin.H{"toasts": active})
}

func (h *Handler) dismissToast(c *gin.Context) {
	h.toasts.Dismiss(c.Param("id"))
	c.Status(http.StatusNoContent)
}
