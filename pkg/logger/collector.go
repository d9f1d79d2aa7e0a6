package logger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const publishTimeout = 30 * time.Second

// Publisher is the sink aggregated logs are flushed to, usually a Kafka
// producer.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // unique lines that force an early flush
	Topic          string        // topic aggregated logs are published to
	Publisher      Publisher
}

// AggregatedLogEntry is one deduplicated log line with occurrence counts.
// Batch jobs emit many copies of the same fetch error; aggregation keeps the
// log topic readable.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector buffers error events and flushes them in batches, either on a
// timer or once enough unique lines have piled up.
type LogCollector struct {
	config  *CollectionConfig
	entries map[string]*AggregatedLogEntry
	mutex   sync.Mutex
	quit    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	c := &LogCollector{
		config:  config,
		entries: make(map[string]*AggregatedLogEntry),
		quit:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.flushLoop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := dedupeKey(level, message, fields, caller)

	c.mutex.Lock()
	if entry, ok := c.entries[key]; ok {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	var batch []AggregatedLogEntry
	if len(c.entries) >= c.config.CountThreshold {
		batch = c.drainLocked()
	}
	c.mutex.Unlock()

	c.publishAsync(batch)
}

// dedupeKey joins level, message, caller and the formatted fields. fmt prints
// maps in sorted key order, so equal lines always collapse together.
func dedupeKey(level, message string, fields map[string]interface{}, caller string) string {
	return level + "|" + message + "|" + caller + "|" + fmt.Sprint(fields)
}

func (c *LogCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.publishAsync(c.drain())
		case <-c.quit:
			c.publishAsync(c.drain())
			return
		}
	}
}

func (c *LogCollector) drain() []AggregatedLogEntry {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.drainLocked()
}

// drainLocked snapshots and resets the buffer. Caller must hold c.mutex.
func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	batch := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		batch = append(batch, *entry)
	}
	c.entries = make(map[string]*AggregatedLogEntry)
	return batch
}

// publishAsync ships a batch without blocking the logging path. The
// goroutine is tracked so Close waits for in flight publishes.
func (c *LogCollector) publishAsync(batch []AggregatedLogEntry) {
	if len(batch) == 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Printf("aggregated log publish failed: %v\n", err)
		}
	}()
}

// Close flushes whatever is buffered and waits for publishes to finish.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.quit) })
	c.wg.Wait()
}
