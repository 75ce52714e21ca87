// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkeventprocessor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/processor"
	"go.uber.org/zap"

	"github.com/vklongpoll/collector/extension/storageext"
)

// Attribute keys written by the VK long poll receiver.
const (
	attrEventType = "vk.event.type"
	attrEventID   = "vk.event.id"
	attrGroupID   = "vk.group.id"
)

// vkEventProcessor filters VK event log records by type and drops
// duplicates by event id.
type vkEventProcessor struct {
	config       *Config
	logger       *zap.Logger
	nextConsumer consumer.Logs

	include map[string]bool
	exclude map[string]bool

	seen   *seenCache
	shared *sharedSeen

	stopCh    chan struct{}
	stopOnce  sync.Once
	cleanupWg sync.WaitGroup
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// newVKEventProcessor creates a new VK event processor.
func newVKEventProcessor(set processor.Settings, cfg *Config, next consumer.Logs) (*vkEventProcessor, error) {
	var seen *seenCache
	if cfg.Dedup.Enabled {
		seen = newSeenCache(cfg.Dedup)
	}

	return &vkEventProcessor{
		config:       cfg,
		logger:       set.Logger,
		nextConsumer: next,
		include:      toSet(cfg.IncludeTypes),
		exclude:      toSet(cfg.ExcludeTypes),
		seen:         seen,
		stopCh:       make(chan struct{}),
	}, nil
}

// Start implements component.Component.
func (p *vkEventProcessor) Start(_ context.Context, host component.Host) error {
	if p.seen != nil && p.config.Dedup.StorageExtension != "" {
		if err := p.connectShared(host); err != nil {
			return err
		}
	}

	if p.seen != nil && p.config.Dedup.CleanupInterval > 0 {
		p.cleanupWg.Add(1)
		go p.runCacheCleanup()
	}

	p.logger.Info("VK event processor started",
		zap.Strings("include_types", p.config.IncludeTypes),
		zap.Strings("exclude_types", p.config.ExcludeTypes),
		zap.Bool("dedup_enabled", p.config.Dedup.Enabled),
		zap.Bool("dedup_shared", p.shared != nil),
		zap.Int("dedup_ttl_seconds", p.config.Dedup.TTL),
	)
	return nil
}

func (p *vkEventProcessor) connectShared(host component.Host) error {
	storage, err := storageext.FromHost(host, p.config.Dedup.StorageExtension)
	if err != nil {
		return err
	}
	client, err := storage.GetRedis(p.config.Dedup.RedisName)
	if err != nil {
		return err
	}
	p.shared = &sharedSeen{
		client: client,
		prefix: p.config.Dedup.KeyPrefix,
		ttl:    time.Duration(p.config.Dedup.TTL) * time.Second,
		logger: p.logger,
	}
	return nil
}

// runCacheCleanup runs the background cache cleanup goroutine.
func (p *vkEventProcessor) runCacheCleanup() {
	defer p.cleanupWg.Done()

	ticker := time.NewTicker(time.Duration(p.config.Dedup.CleanupInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := p.seen.cleanup(); cleaned > 0 {
				p.logger.Debug("Dedup cache cleanup completed",
					zap.Int("entries_removed", cleaned))
			}
		case <-p.stopCh:
			return
		}
	}
}

// Shutdown implements component.Component.
func (p *vkEventProcessor) Shutdown(context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.cleanupWg.Wait()

	if p.seen != nil {
		accepted, duplicates, evicts, size := p.seen.stats()
		p.logger.Info("VK event processor shutdown",
			zap.Int64("accepted", accepted),
			zap.Int64("duplicates", duplicates),
			zap.Int64("evicts", evicts),
			zap.Int("cache_size", size),
		)
	}
	return nil
}

// Capabilities implements processor.Logs.
func (p *vkEventProcessor) Capabilities() consumer.Capabilities {
	return consumer.Capabilities{MutatesData: false}
}

// ConsumeLogs implements processor.Logs.
func (p *vkEventProcessor) ConsumeLogs(ctx context.Context, ld plog.Logs) error {
	kept := plog.NewLogs()
	var marked []string
	filtered, duplicates := 0, 0

	resourceLogs := ld.ResourceLogs()
	for i := 0; i < resourceLogs.Len(); i++ {
		rl := resourceLogs.At(i)
		groupID := attrString(rl.Resource().Attributes(), attrGroupID)

		var newRL plog.ResourceLogs
		hasRL := false
		scopeLogs := rl.ScopeLogs()
		for j := 0; j < scopeLogs.Len(); j++ {
			sl := scopeLogs.At(j)

			var newSL plog.ScopeLogs
			hasSL := false
			records := sl.LogRecords()
			for k := 0; k < records.Len(); k++ {
				lr := records.At(k)

				if !p.typeAllowed(attrString(lr.Attributes(), attrEventType)) {
					filtered++
					continue
				}
				if key, ok := p.dedupKey(groupID, lr.Attributes()); ok {
					if !p.markIfNew(ctx, key) {
						duplicates++
						continue
					}
					marked = append(marked, key)
				}

				if !hasRL {
					hasRL = true
					newRL = kept.ResourceLogs().AppendEmpty()
					rl.Resource().CopyTo(newRL.Resource())
					newRL.SetSchemaUrl(rl.SchemaUrl())
				}
				if !hasSL {
					hasSL = true
					newSL = newRL.ScopeLogs().AppendEmpty()
					sl.Scope().CopyTo(newSL.Scope())
					newSL.SetSchemaUrl(sl.SchemaUrl())
				}
				lr.CopyTo(newSL.LogRecords().AppendEmpty())
			}
		}
	}

	if p.config.LogDropped && filtered+duplicates > 0 {
		p.logger.Debug("Dropped VK events",
			zap.Int("filtered", filtered),
			zap.Int("duplicates", duplicates),
		)
	}

	if kept.ResourceLogs().Len() == 0 {
		return nil
	}

	if err := p.nextConsumer.ConsumeLogs(ctx, kept); err != nil {
		// Let the redelivered events through next time.
		p.forget(ctx, marked)
		return err
	}
	return nil
}

func (p *vkEventProcessor) typeAllowed(eventType string) bool {
	if p.include != nil && !p.include[eventType] {
		return false
	}
	return !p.exclude[eventType]
}

func (p *vkEventProcessor) dedupKey(groupID string, attrs pcommon.Map) (string, bool) {
	if p.seen == nil {
		return "", false
	}
	if groupID == "" {
		groupID = attrString(attrs, attrGroupID)
	}
	eventID := attrString(attrs, attrEventID)
	if eventID == "" {
		return "", false
	}
	return groupID + ":" + eventID, true
}

func (p *vkEventProcessor) markIfNew(ctx context.Context, key string) bool {
	if !p.seen.markIfNew(key) {
		return false
	}
	if p.shared != nil && !p.shared.markIfNew(ctx, key) {
		p.seen.duplicates.Add(1)
		return false
	}
	return true
}

func (p *vkEventProcessor) forget(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	p.seen.forget(keys)
	if p.shared != nil {
		p.shared.forget(ctx, keys)
	}
}

func attrString(attrs pcommon.Map, key string) string {
	v, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	if v.Type() == pcommon.ValueTypeInt {
		return strconv.FormatInt(v.Int(), 10)
	}
	return v.AsString()
}
