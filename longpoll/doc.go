// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package longpoll implements the client side of the VK long-poll protocol.
//
// An Executor holds one server descriptor and one cursor. Each Listen call
// resolves a server if needed, polls it once, hands the delivered events to
// the handler in order and returns the new cursor. Callers drive the loop:
//
//	exec := longpoll.NewGroupExecutor(transport, vkapi.NewGroups(client), groupID, handle)
//	for ctx.Err() == nil {
//		ts, err := exec.Listen(ctx, nil)
//		...
//	}
package longpoll
