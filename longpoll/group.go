// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package longpoll

import (
	"context"

	"github.com/vklongpoll/collector/vkapi"
)

// ServerGetter is the part of the API used to resolve community servers.
// *vkapi.Groups implements it.
type ServerGetter interface {
	GetLongPollServer(ctx context.Context, groupID int64) (vkapi.LongPollServer, error)
}

var _ ServerGetter = (*vkapi.Groups)(nil)

// GroupResolver resolves the Bots Long Poll server of groupID.
func GroupResolver(api ServerGetter, groupID int64) ResolveFunc {
	return func(ctx context.Context) (ServerDescriptor, error) {
		server, err := api.GetLongPollServer(ctx, groupID)
		if err != nil {
			return ServerDescriptor{}, err
		}
		return ServerDescriptor{
			URL: server.Server,
			Key: server.Key,
			TS:  int64(server.TS),
		}, nil
	}
}

// NewGroupExecutor creates an executor for a community's Bots Long Poll
// stream. Events without a group_id get groupID.
func NewGroupExecutor(transport vkapi.Transport, api ServerGetter, groupID int64, onEvent EventFunc, opts ...Option) *Executor {
	handler := func(ctx context.Context, event Event) error {
		if event.GroupID == 0 {
			event.GroupID = groupID
		}
		return onEvent(ctx, event)
	}
	return NewExecutor(transport, GroupResolver(api, groupID), handler, opts...)
}
