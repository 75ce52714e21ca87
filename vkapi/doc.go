// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vkapi is a small client for the VK API: request formatting, the
// error envelope, the community long-poll methods and the OAuth helpers.
//
//	client := vkapi.NewClient(vkapi.NewHTTPTransport(nil), token)
//	server, err := vkapi.NewGroups(client).GetLongPollServer(ctx, groupID)
package vkapi
