package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockEventSink is a test implementation of EventSink
type mockEventSink struct {
	mu       sync.Mutex
	events   []*AuditEvent
	writeErr error
	closed   bool
}

func newMockEventSink() *mockEventSink {
	return &mockEventSink{
		events: make([]*AuditEvent, 0),
	}
}

func (m *mockEventSink) Write(event *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockEventSink) getEvents() []*AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*AuditEvent, len(m.events))
	copy(result, m.events)
	return result
}

func (m *mockEventSink) setWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *mockEventSink) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func TestNewAuditLogger(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		logger := NewAuditLogger(nil)
		if logger == nil {
			t.Fatal("expected logger to be created")
		}
		if !logger.enabled {
			t.Error("expected logger to be enabled by default")
		}
	})

	t.Run("with custom config", func(t *testing.T) {
		zapLogger := zap.NewNop()
		config := &AuditLoggerConfig{
			Enabled:      true,
			Logger:       zapLogger,
			DefaultActor: "test-actor",
		}
		logger := NewAuditLogger(config)
		if logger == nil {
			t.Fatal("expected logger to be created")
		}
		if logger.defaultActor != "test-actor" {
			t.Errorf("expected default actor 'test-actor', got '%s'", logger.defaultActor)
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		config := &AuditLoggerConfig{
			Enabled: false,
		}
		logger := NewAuditLogger(config)
		if logger.enabled {
			t.Error("expected logger to be disabled")
		}
	})
}

func TestAuditLogger_Log(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	zapLogger := zap.New(core)

	sink := newMockEventSink()
	config := &AuditLoggerConfig{
		Enabled:      true,
		Logger:       zapLogger,
		DefaultActor: "recovery-engine",
		EventSinks:   []EventSink{sink},
	}
	logger := NewAuditLogger(config)

	ctx := context.Background()
	event := &AuditEvent{
		EventType: EventMigrationSucceeded,
		Message:   "service migrated",
		Outcome:   "success",
		Resource: &ResourceInfo{
			Kind: "Service",
			Name: "payments-api",
			Node: "worker-7",
		},
	}

	logger.Log(ctx, event)

	logs := recorded.All()
	if len(logs) != 1 {
		t.Errorf("expected 1 log entry, got %d", len(logs))
	}

	events := sink.getEvents()
	if len(events) != 1 {
		t.Errorf("expected 1 event in sink, got %d", len(events))
	}

	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if events[0].Actor != "recovery-engine" {
		t.Errorf("expected actor 'recovery-engine', got '%s'", events[0].Actor)
	}
	if events[0].Category != CategoryRecovery {
		t.Errorf("expected category 'recovery', got '%s'", events[0].Category)
	}
	if events[0].Severity != SeverityInfo {
		t.Errorf("expected severity 'info', got '%s'", events[0].Severity)
	}
}

func TestAuditLogger_Log_Disabled(t *testing.T) {
	sink := newMockEventSink()
	config := &AuditLoggerConfig{
		Enabled:    false,
		EventSinks: []EventSink{sink},
	}
	logger := NewAuditLogger(config)

	ctx := context.Background()
	event := &AuditEvent{
		EventType: EventMigrationSucceeded,
		Message:   "service migrated",
	}

	logger.Log(ctx, event)

	events := sink.getEvents()
	if len(events) != 0 {
		t.Errorf("expected 0 events when disabled, got %d", len(events))
	}
}

func TestAuditLogger_Log_SinkError(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	zapLogger := zap.New(core)

	sink := newMockEventSink()
	sink.setWriteError(errors.New("sink error"))

	config := &AuditLoggerConfig{
		Enabled:    true,
		Logger:     zapLogger,
		EventSinks: []EventSink{sink},
	}
	logger := NewAuditLogger(config)

	ctx := context.Background()
	event := &AuditEvent{
		EventType: EventMigrationSucceeded,
		Message:   "service migrated",
	}

	// Should not panic even with sink error
	logger.Log(ctx, event)

	logs := recorded.FilterMessage("Failed to write audit event to sink").All()
	if len(logs) != 1 {
		t.Errorf("expected 1 warning log for sink error, got %d", len(logs))
	}
}

func TestAuditLogger_Log_Severities(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		severity  EventSeverity
	}{
		{"critical event", EventMigrationRolledBack, SeverityCritical},
		{"error event", EventActionTransientError, SeverityError},
		{"warning event", EventScaleUpRefused, SeverityWarning},
		{"info event", EventMigrationSucceeded, SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, _ := observer.New(zapcore.DebugLevel)
			zapLogger := zap.New(core)

			config := &AuditLoggerConfig{
				Enabled: true,
				Logger:  zapLogger,
			}
			logger := NewAuditLogger(config)

			ctx := context.Background()
			event := &AuditEvent{
				EventType: tt.eventType,
				Message:   "Test event",
			}

			logger.Log(ctx, event)

			if event.Severity != tt.severity {
				t.Errorf("expected severity %s, got %s", tt.severity, event.Severity)
			}
		})
	}
}

func TestAuditLogger_EnableDisable(t *testing.T) {
	config := &AuditLoggerConfig{
		Enabled: true,
	}
	logger := NewAuditLogger(config)

	if !logger.IsEnabled() {
		t.Error("expected logger to be enabled initially")
	}

	logger.Disable()
	if logger.IsEnabled() {
		t.Error("expected logger to be disabled after Disable()")
	}

	logger.Enable()
	if !logger.IsEnabled() {
		t.Error("expected logger to be enabled after Enable()")
	}
}

func TestAuditLogger_Close(t *testing.T) {
	sink1 := newMockEventSink()
	sink2 := newMockEventSink()

	config := &AuditLoggerConfig{
		Enabled:    true,
		EventSinks: []EventSink{sink1, sink2},
	}
	logger := NewAuditLogger(config)

	err := logger.Close()
	if err != nil {
		t.Errorf("expected no error on close, got %v", err)
	}

	if !sink1.isClosed() {
		t.Error("expected sink1 to be closed")
	}
	if !sink2.isClosed() {
		t.Error("expected sink2 to be closed")
	}
}

func TestAuditLogger_LogMigration(t *testing.T) {
	tests := []struct {
		name         string
		outcome      string
		expectedType EventType
	}{
		{"success", "success", EventMigrationSucceeded},
		{"rolled back", "rolled_back", EventMigrationRolledBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMockEventSink()
			config := &AuditLoggerConfig{
				Enabled:    true,
				Logger:     zap.NewNop(),
				EventSinks: []EventSink{sink},
			}
			logger := NewAuditLogger(config)

			ctx := context.Background()
			logger.LogMigration(ctx, "payments-api", "worker-3", "worker-7", tt.outcome, 12*time.Second)

			events := sink.getEvents()
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}

			event := events[0]
			if event.EventType != tt.expectedType {
				t.Errorf("expected event type %s, got %s", tt.expectedType, event.EventType)
			}
			if event.Duration != 12*time.Second {
				t.Errorf("expected duration 12s, got %v", event.Duration)
			}
			if event.Resource.Kind != "Service" {
				t.Errorf("expected resource kind 'Service', got '%s'", event.Resource.Kind)
			}
			if event.Details["toNode"] != "worker-7" {
				t.Errorf("expected toNode 'worker-7', got %v", event.Details["toNode"])
			}
		})
	}
}

func TestAuditLogger_LogScaleUp(t *testing.T) {
	tests := []struct {
		name         string
		outcome      string
		expectedType EventType
	}{
		{"success", "success", EventScaleUpSucceeded},
		{"refused", "refused", EventScaleUpRefused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMockEventSink()
			config := &AuditLoggerConfig{
				Enabled:    true,
				Logger:     zap.NewNop(),
				EventSinks: []EventSink{sink},
			}
			logger := NewAuditLogger(config)

			ctx := context.Background()
			logger.LogScaleUp(ctx, "payments-api", 2, 3, tt.outcome)

			events := sink.getEvents()
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}

			event := events[0]
			if event.EventType != tt.expectedType {
				t.Errorf("expected event type %s, got %s", tt.expectedType, event.EventType)
			}
			if event.Details["before"] != 2 {
				t.Errorf("expected before 2, got %v", event.Details["before"])
			}
			if event.Details["after"] != 3 {
				t.Errorf("expected after 3, got %v", event.Details["after"])
			}
		})
	}
}

func TestAuditLogger_LogScaleDown(t *testing.T) {
	sink := newMockEventSink()
	config := &AuditLoggerConfig{
		Enabled:    true,
		Logger:     zap.NewNop(),
		EventSinks: []EventSink{sink},
	}
	logger := NewAuditLogger(config)

	ctx := context.Background()
	logger.LogScaleDown(ctx, "payments-api", 3, 2, "success")

	events := sink.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.EventType != EventScaleDownSucceeded {
		t.Errorf("expected event type %s, got %s", EventScaleDownSucceeded, event.EventType)
	}
	if event.Details["before"] != 3 {
		t.Errorf("expected before 3, got %v", event.Details["before"])
	}
	if event.Details["after"] != 2 {
		t.Errorf("expected after 2, got %v", event.Details["after"])
	}
}

func TestAuditLogger_LogCircuitBreakerStateChange(t *testing.T) {
	tests := []struct {
		name         string
		to           string
		expectedType EventType
	}{
		{"opened", "open", EventCircuitBreakerOpened},
		{"closed", "closed", EventCircuitBreakerClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMockEventSink()
			config := &AuditLoggerConfig{
				Enabled:    true,
				Logger:     zap.NewNop(),
				EventSinks: []EventSink{sink},
			}
			logger := NewAuditLogger(config)

			ctx := context.Background()
			logger.LogCircuitBreakerStateChange(ctx, "closed", tt.to, "consecutive failures")

			events := sink.getEvents()
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}

			event := events[0]
			if event.EventType != tt.expectedType {
				t.Errorf("expected event type %s, got %s", tt.expectedType, event.EventType)
			}
			if event.Details["reason"] != "consecutive failures" {
				t.Errorf("expected reason 'consecutive failures', got %v", event.Details["reason"])
			}
		})
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	sink := newMockEventSink()
	config := &AuditLoggerConfig{
		Enabled:    true,
		Logger:     zap.NewNop(),
		EventSinks: []EventSink{sink},
	}
	logger := NewAuditLogger(config)

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			event := &AuditEvent{
				EventType: EventMigrationSucceeded,
				Message:   "Test event",
				Details: map[string]interface{}{
					"index": i,
				},
			}
			logger.Log(ctx, event)
		}(i)
	}

	wg.Wait()

	events := sink.getEvents()
	if len(events) != numGoroutines {
		t.Errorf("expected %d events, got %d", numGoroutines, len(events))
	}
}

func TestGetGlobalAuditLogger(t *testing.T) {
	// Reset global logger
	globalAuditLoggerMu.Lock()
	globalAuditLogger = nil
	globalAuditLoggerMu.Unlock()

	// First call should create a default logger
	logger1 := GetGlobalAuditLogger()
	if logger1 == nil {
		t.Fatal("expected global logger to be created")
	}

	// Second call should return the same logger
	logger2 := GetGlobalAuditLogger()
	if logger1 != logger2 {
		t.Error("expected same logger instance")
	}
}

func TestSetGlobalAuditLogger(t *testing.T) {
	customLogger := NewAuditLogger(&AuditLoggerConfig{
		Enabled:      true,
		DefaultActor: "custom-actor",
	})

	SetGlobalAuditLogger(customLogger)

	retrieved := GetGlobalAuditLogger()
	if retrieved != customLogger {
		t.Error("expected retrieved logger to be the custom logger")
	}

	// Clean up
	SetGlobalAuditLogger(nil)
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  EventCategory
	}{
		{EventMigrationSucceeded, CategoryRecovery},
		{EventScaleUpSucceeded, CategoryRecovery},
		{EventScaleDownSucceeded, CategoryRecovery},
		{EventAlertCooldownHit, CategoryAlert},
		{EventCircuitBreakerOpened, CategoryResilience},
		{EventNoHealthyReplica, CategoryRouter},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			result := GetCategory(tt.eventType)
			if result != tt.expected {
				t.Errorf("expected category %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  EventSeverity
	}{
		{EventMigrationRolledBack, SeverityCritical},
		{EventNoHealthyReplica, SeverityCritical},
		{EventActionTransientError, SeverityError},
		{EventScaleUpRefused, SeverityWarning},
		{EventMigrationSucceeded, SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			result := GetSeverity(tt.eventType)
			if result != tt.expected {
				t.Errorf("expected severity %s, got %s", tt.expected, result)
			}
		})
	}
}
