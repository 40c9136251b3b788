// Package notify delivers fire-and-forget notifications to principals.
// Dispatch never fails the operation that triggered it: callers invoke it
// after a successful mutation and move on.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

// Notification categories, matching the closed set stored per message.
const (
	CategoryAppointment = "appointment"
	CategoryReport      = "report"
	CategoryGeneral     = "general"
)

// Dispatcher delivers a message to a principal.
type Dispatcher interface {
	// Dispatch is fire-and-forget: implementations log failures and return
	// nothing. The record mutations that trigger notifications must not
	// depend on delivery.
	Dispatch(ctx context.Context, principalID, message, category string)
}

// logEntry mirrors the line-JSON log shape used across the service.
func logEntry(fields map[string]any) {
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := fields["level"]; !ok {
		fields["level"] = "info"
	}
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(fields); err != nil {
		log.Printf("failed to encode notification log: %v", err)
	}
}
