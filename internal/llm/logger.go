package llm

import (
	"log"
	"time"
)

// LogRequest logs an outgoing model call.
func LogRequest(client, purpose string, promptBytes int) {
	log.Printf("[llm] %s %s request bytes=%d", client, purpose, promptBytes)
}

// LogResponse logs a completed model call.
func LogResponse(client, purpose string, duration time.Duration, replyBytes int) {
	log.Printf("[llm] %s %s response duration=%dms bytes=%d",
		client, purpose, duration.Milliseconds(), replyBytes)
}

// LogError logs a failed model call.
func LogError(client, purpose string, err error) {
	log.Printf("[llm] %s %s error: %v", client, purpose, err)
}
