// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package callbackapi

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/vklongpoll/collector/longpoll"
)

// Event types delivered by Callback API and Bots Long Poll.
const (
	TypeConfirmation        = "confirmation"
	TypeMessageNew          = "message_new"
	TypeMessageReply        = "message_reply"
	TypeMessageEdit         = "message_edit"
	TypeMessageAllow        = "message_allow"
	TypeMessageDeny         = "message_deny"
	TypeMessageTypingState  = "message_typing_state"
	TypeMessageEvent        = "message_event"
	TypePhotoNew            = "photo_new"
	TypePhotoCommentNew     = "photo_comment_new"
	TypeAudioNew            = "audio_new"
	TypeVideoNew            = "video_new"
	TypeVideoCommentNew     = "video_comment_new"
	TypeWallPostNew         = "wall_post_new"
	TypeWallRepost          = "wall_repost"
	TypeWallReplyNew        = "wall_reply_new"
	TypeWallReplyEdit       = "wall_reply_edit"
	TypeWallReplyDelete     = "wall_reply_delete"
	TypeBoardPostNew        = "board_post_new"
	TypeMarketCommentNew    = "market_comment_new"
	TypeGroupLeave          = "group_leave"
	TypeGroupJoin           = "group_join"
	TypeUserBlock           = "user_block"
	TypeUserUnblock         = "user_unblock"
	TypePollVoteNew         = "poll_vote_new"
	TypeGroupOfficersEdit   = "group_officers_edit"
	TypeGroupChangeSettings = "group_change_settings"
	TypeGroupChangePhoto    = "group_change_photo"
	TypeVKPayTransaction    = "vkpay_transaction"
)

// Event is one notification as seen by handlers. Secret is empty for events
// received over long poll.
type Event struct {
	GroupID    int64
	Secret     string
	Type       string
	EventID    string
	APIVersion string
	Object     json.RawMessage
}

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, event Event) error

// Dispatcher routes events to handlers by type. Types without a handler go
// to the default handler, or are dropped when none is set.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	logger   *zap.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers h for eventType, replacing any previous handler.
func (d *Dispatcher) On(eventType string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// OnDefault registers the handler for types without a dedicated one.
func (d *Dispatcher) OnDefault(h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = h
}

// Dispatch routes event to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	d.mu.RLock()
	h, ok := d.handlers[event.Type]
	if !ok {
		h = d.fallback
	}
	d.mu.RUnlock()

	if h == nil {
		d.logger.Debug("No handler for event type", zap.String("type", event.Type))
		return nil
	}
	return h(ctx, event)
}

// Parse dispatches a single notification given by its parts.
func (d *Dispatcher) Parse(ctx context.Context, groupID int64, secret, eventType string, object json.RawMessage) error {
	return d.Dispatch(ctx, Event{
		GroupID: groupID,
		Secret:  secret,
		Type:    eventType,
		Object:  object,
	})
}

// EventFunc adapts the dispatcher to a long-poll executor.
func (d *Dispatcher) EventFunc() longpoll.EventFunc {
	return func(ctx context.Context, e longpoll.Event) error {
		return d.Dispatch(ctx, Event{
			GroupID:    e.GroupID,
			Type:       e.Type,
			EventID:    e.EventID,
			APIVersion: e.APIVersion,
			Object:     e.Object,
		})
	}
}
