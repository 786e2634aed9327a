// Package audit emits best-effort audit events to a Discord webhook.
// Emission never fails the mutation that triggered it.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const emitTimeout = 10 * time.Second

// Event describes a single audit record.
type Event struct {
	Title    string
	Executor string
	Target   string
	Action   string
	Extra    string
}

// Logger delivers audit events to a webhook. A nil Logger or empty webhook
// URL disables delivery.
type Logger struct {
	webhookURL string
	client     *http.Client
}

// New constructs a Logger for the given webhook URL.
func New(webhookURL string) *Logger {
	return &Logger{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: emitTimeout},
	}
}

// Log emits an audit event asynchronously. Failures are logged and swallowed.
func (l *Logger) Log(event Event) {
	if l == nil || l.webhookURL == "" {
		return
	}
	go l.emit(event)
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Timestamp string       `json:"timestamp"`
	Fields    []embedField `json:"fields"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

func (l *Logger) emit(event Event) {
	payload := webhookPayload{Embeds: []embed{{
		Title:     event.Title,
		Color:     0x0099ff,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fields: []embedField{
			{Name: "Executor", Value: orDash(event.Executor, "System"), Inline: true},
			{Name: "Target", Value: orDash(event.Target, "-"), Inline: true},
			{Name: "Action", Value: event.Action, Inline: true},
			{Name: "Extra", Value: orDash(event.Extra, "-")},
			{Name: "Time", Value: fmt.Sprintf("<t:%d:F>", time.Now().Unix())},
		},
	}}}

	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		log.WithError(errMarshal).Error("audit: marshal event failed")
		return
	}

	resp, errPost := l.client.Post(l.webhookURL, "application/json", bytes.NewReader(body))
	if errPost != nil {
		log.WithError(errPost).Error("audit: webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.WithField("status", resp.StatusCode).Error("audit: webhook rejected event")
	}
}

func orDash(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
