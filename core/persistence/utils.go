package persistence

import (
	"time"
)

func createEvent(
	eventType PersistenceEventType,
	operation string,
	databaseName string,
	collectionName string,
	input any,
	output any,
	query any,
	err *string,
	startTime time.Time,
) PersistenceEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	event := PersistenceEvent{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Operation: operation,
		Input:     input,
		Output:    output,
		Error:     err,
		Query:     query,
		Duration:  duration,
	}
	if databaseName != "" {
		event.Database = &databaseName
	}
	if collectionName != "" {
		event.Collection = &collectionName
	}
	return event
}
