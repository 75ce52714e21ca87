// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/consumer/consumererror"
	"go.opentelemetry.io/collector/receiver"
	"go.opentelemetry.io/collector/receiver/receiverhelper"
	"go.uber.org/zap"

	"github.com/vklongpoll/collector/callbackapi"
	"github.com/vklongpoll/collector/cursorstore"
	"github.com/vklongpoll/collector/extension/storageext"
	"github.com/vklongpoll/collector/longpoll"
	"github.com/vklongpoll/collector/vkapi"
)

// vkLongPollReceiver reads a community's Bots Long Poll stream and emits
// every event as a log record.
type vkLongPollReceiver struct {
	config       *Config
	settings     receiver.Settings
	logger       *zap.Logger
	nextConsumer consumer.Logs
	obsrep       *receiverhelper.ObsReport

	pollerID  string
	scopeName string

	client    *vkapi.Client
	executor  *longpoll.Executor
	cursors   cursorstore.Store
	cursorKey string
	savedTS   int64
	hasSaved  bool

	tail       *tailHub
	stats      pollStats
	serverHTTP *http.Server
	statusAddr string

	cancel     context.CancelFunc
	shutdownWG sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	startErr   error
}

func newVKLongPollReceiver(set receiver.Settings, cfg *Config, next consumer.Logs) (*vkLongPollReceiver, error) {
	obsrep, err := receiverhelper.NewObsReport(receiverhelper.ObsReportSettings{
		ReceiverID:             set.ID,
		Transport:              "http",
		ReceiverCreateSettings: set,
	})
	if err != nil {
		return nil, err
	}

	pollerID := uuid.NewString()
	logger := set.Logger.With(zap.Int64("group_id", cfg.GroupID), zap.String("poller_id", pollerID))

	return &vkLongPollReceiver{
		config:       cfg,
		settings:     set,
		logger:       logger,
		nextConsumer: next,
		obsrep:       obsrep,
		pollerID:     pollerID,
		scopeName:    set.ID.String(),
		cursorKey:    cursorstore.GroupKey(cfg.GroupID),
		tail:         newTailHub(logger),
	}, nil
}

// Start implements component.Component.
func (r *vkLongPollReceiver) Start(ctx context.Context, host component.Host) error {
	r.startOnce.Do(func() {
		r.startErr = r.start(ctx, host)
	})
	return r.startErr
}

func (r *vkLongPollReceiver) start(ctx context.Context, host component.Host) error {
	var storage storageext.Storage
	if r.config.StorageExtension != "" {
		s, err := storageext.FromHost(host, r.config.StorageExtension)
		if err != nil {
			return err
		}
		storage = s
		r.cursors = s.CursorStore()
	}

	token, err := r.resolveToken(ctx, storage)
	if err != nil {
		return err
	}

	httpClient, err := r.config.ClientConfig.ToClient(ctx, host, r.settings.TelemetrySettings)
	if err != nil {
		return fmt.Errorf("create http client: %w", err)
	}
	transport := vkapi.NewHTTPTransport(httpClient)

	clientOpts := []vkapi.Option{
		vkapi.WithVersion(r.config.APIVersion),
		vkapi.WithLanguage(r.config.Language),
		vkapi.WithLogger(r.logger),
	}
	if r.config.APIURL != "" {
		clientOpts = append(clientOpts, vkapi.WithBaseURL(r.config.APIURL))
	}
	r.client = vkapi.NewClient(transport, token, clientOpts...)

	if r.config.TokenRef != nil {
		if err := storage.WatchSecret(*r.config.TokenRef, r.rotateToken); err != nil {
			r.logger.Warn("Access token changes will not be followed", zap.Error(err))
		}
	}

	execOpts := []longpoll.Option{
		longpoll.WithWait(int(r.config.Wait / time.Second)),
		longpoll.WithLogger(r.logger),
	}
	if r.config.StrictDecoding {
		execOpts = append(execOpts, longpoll.WithStrictDecoding())
	}
	if ts, ok := r.restoreCursor(ctx); ok {
		execOpts = append(execOpts, longpoll.WithInitialCursor(ts))
	}

	dispatcher := callbackapi.NewDispatcher(r.logger)
	dispatcher.OnDefault(r.eventHandler(sourceLongPoll))
	r.executor = longpoll.NewGroupExecutor(transport, vkapi.NewGroups(r.client), r.config.GroupID,
		dispatcher.EventFunc(), execOpts...)

	if err := r.startHTTPServer(ctx, host); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.shutdownWG.Add(1)
	go r.run(loopCtx)

	r.logger.Info("VK long poll receiver started",
		zap.String("api_version", r.client.Version()),
		zap.Duration("wait", r.config.Wait),
		zap.Bool("cursor_persisted", r.cursors != nil),
	)
	return nil
}

func (r *vkLongPollReceiver) resolveToken(ctx context.Context, storage storageext.Storage) (string, error) {
	if r.config.TokenRef == nil {
		return string(r.config.AccessToken), nil
	}
	if storage == nil {
		return "", errors.New("token_ref requires storage_extension")
	}
	token, err := storage.ReadSecret(ctx, *r.config.TokenRef)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("access token %s is empty", r.config.TokenRef.DataID)
	}
	return token, nil
}

func (r *vkLongPollReceiver) rotateToken(token string) {
	if token == "" {
		r.logger.Warn("Ignoring empty access token update")
		return
	}
	r.client.SetAccessToken(token)
	r.logger.Info("Access token rotated")
}

func (r *vkLongPollReceiver) restoreCursor(ctx context.Context) (int64, bool) {
	if r.cursors == nil {
		return 0, false
	}
	ts, ok, err := r.cursors.Get(ctx, r.cursorKey)
	if err != nil {
		r.logger.Warn("Failed to restore long poll cursor", zap.Error(err))
		return 0, false
	}
	if ok {
		r.savedTS, r.hasSaved = ts, true
		r.logger.Info("Long poll cursor restored", zap.Int64("ts", ts))
	}
	return ts, ok
}

func (r *vkLongPollReceiver) saveCursor(ctx context.Context, ts int64) {
	if r.cursors == nil || (r.hasSaved && r.savedTS == ts) {
		return
	}
	if err := r.cursors.Set(ctx, r.cursorKey, ts); err != nil {
		r.logger.Warn("Failed to save long poll cursor", zap.Int64("ts", ts), zap.Error(err))
		return
	}
	r.savedTS, r.hasSaved = ts, true
}

// run polls until ctx is cancelled, backing off after failures.
func (r *vkLongPollReceiver) run(ctx context.Context) {
	defer r.shutdownWG.Done()

	bo := r.config.Backoff.newBackOff()
	for ctx.Err() == nil {
		ts, err := r.executor.Listen(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.stats.recordFailure(r.executor.State(), err, time.Now())
			delay := bo.NextBackOff()
			r.logFailure(err, delay)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		bo.Reset()
		r.stats.recordPoll(r.executor.State(), time.Now())
		r.saveCursor(ctx, ts)
	}
}

func (r *vkLongPollReceiver) logFailure(err error, delay time.Duration) {
	fields := []zap.Field{zap.Error(err), zap.Duration("retry_in", delay)}

	var apiErr *vkapi.APIError
	switch {
	case errors.Is(err, longpoll.ErrVersionInvalid):
		r.logger.Error("Long poll server rejected the API version", fields...)
	case errors.As(err, &apiErr) && (apiErr.Code == vkapi.ErrCodeAuthorization || apiErr.Code == vkapi.ErrCodeAccessGroup):
		r.logger.Error("Long poll server could not be resolved", fields...)
	default:
		r.logger.Warn("Long poll failed", fields...)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (cfg *BackoffConfig) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = cfg.Multiplier
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// eventHandler returns the dispatcher handler for events from source.
func (r *vkLongPollReceiver) eventHandler(source string) callbackapi.HandlerFunc {
	return func(ctx context.Context, e callbackapi.Event) error {
		groupID := e.GroupID
		if groupID == 0 {
			groupID = r.config.GroupID
		}
		return r.consume(ctx, vkEvent{
			Source:     source,
			GroupID:    groupID,
			Type:       e.Type,
			EventID:    e.EventID,
			APIVersion: e.APIVersion,
			Object:     e.Object,
			ReceivedAt: time.Now(),
		})
	}
}

// consume hands ev to the next consumer. A non-permanent consumer error is
// returned so the event is delivered again; permanent errors drop it.
func (r *vkLongPollReceiver) consume(ctx context.Context, ev vkEvent) error {
	ld := eventToLogs(ev, r.pollerID, r.scopeName)

	ctx = r.obsrep.StartLogsOp(ctx)
	err := r.nextConsumer.ConsumeLogs(ctx, ld)
	r.obsrep.EndLogsOp(ctx, "json", 1, err)

	if err != nil {
		if !consumererror.IsPermanent(err) {
			return err
		}
		r.stats.dropped.Add(1)
		r.logger.Warn("Dropping event rejected by the pipeline",
			zap.String("type", ev.Type),
			zap.String("event_id", ev.EventID),
			zap.Error(err),
		)
		return nil
	}

	if ev.Source == sourceCallback {
		r.stats.callback.Add(1)
	} else {
		r.stats.events.Add(1)
	}
	r.tail.publish(ev)
	return nil
}

// Shutdown implements component.Component.
func (r *vkLongPollReceiver) Shutdown(ctx context.Context) error {
	var err error
	r.stopOnce.Do(func() {
		err = r.shutdown(ctx)
	})
	return err
}

func (r *vkLongPollReceiver) shutdown(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	var err error
	if r.serverHTTP != nil {
		err = errors.Join(err, r.serverHTTP.Shutdown(ctx))
	}
	r.tail.closeAll()

	r.shutdownWG.Wait()
	return err
}
