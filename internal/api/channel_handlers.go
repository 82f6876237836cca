package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/chansearch/internal/crawler"
)

const (
	defaultChannelLimit = 100
	maxChannelLimit     = 1000
	channelTimeout      = 3 * time.Second
)

// ChannelHandler exposes read-only crawl progress per channel.
type ChannelHandler struct {
	store   crawler.ChannelStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewChannelHandler wires the store and logger.
func NewChannelHandler(store crawler.ChannelStore, logger *zap.Logger) *ChannelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelHandler{
		store:   store,
		timeout: channelTimeout,
		logger:  logger,
	}
}

// ListChannels handles GET /api/channels?status=&limit=. Channels come back least recently
// crawled first, the same order the scheduler reads them in.
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "channel store unavailable")
		return
	}
	limit, err := parseLimit(r, defaultChannelLimit, maxChannelLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := crawler.ChannelStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	channels, err := h.store.ListChannels(ctx, crawler.ChannelQuery{Status: status, Limit: limit})
	if err != nil {
		h.logger.Error("list channels failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list channels")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": toChannelDTOs(channels)})
}

// GetChannel handles GET /api/channels/{channel_id}.
func (h *ChannelHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "channel store unavailable")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "channel_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "channel_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ch, err := h.store.GetChannel(ctx, id)
	if err != nil {
		if errors.Is(err, crawler.ErrChannelNotFound) {
			writeError(w, http.StatusNotFound, "channel not found")
			return
		}
		h.logger.Error("get channel failed", zap.String("channel_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load channel")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channel": toChannelDTO(ch)})
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	limStr := r.URL.Query().Get("limit")
	if limStr == "" {
		return def, nil
	}
	val, err := strconv.Atoi(limStr)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	if val > maxLimit {
		val = maxLimit
	}
	return val, nil
}

func toChannelDTOs(in []crawler.Channel) []channelDTO {
	out := make([]channelDTO, 0, len(in))
	for _, ch := range in {
		out = append(out, toChannelDTO(ch))
	}
	return out
}

func toChannelDTO(ch crawler.Channel) channelDTO {
	dto := channelDTO{
		ID:                ch.ID,
		Name:              ch.Name,
		Status:            string(ch.Status),
		LastSeenMessageID: ch.LastSeenMessageID,
	}
	if ch.LastCrawledTs > 0 {
		at := ch.LastCrawledAt()
		dto.LastCrawledAt = &at
	}
	return dto
}

type channelDTO struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	LastSeenMessageID int64      `json:"last_seen_message_id"`
	LastCrawledAt     *time.Time `json:"last_crawled_at,omitempty"`
}
