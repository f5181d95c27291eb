package model

import "time"

// NotificationStatus is the aggregate status of an alert group (or of a
// single alert within it).
type NotificationStatus string

const (
	StatusFiring   NotificationStatus = "firing"
	StatusResolved NotificationStatus = "resolved"
)

// SupportedVersion is the Alertmanager webhook payload version this
// service accepts.
const SupportedVersion = "4"

// Notification is the Alertmanager webhook payload.
// https://prometheus.io/docs/alerting/latest/configuration/#webhook_config
type Notification struct {
	Version           string             `json:"version"`
	GroupKey          string             `json:"groupKey"`
	Status            NotificationStatus `json:"status"`
	Receiver          string             `json:"receiver,omitempty"`
	GroupLabels       map[string]string  `json:"groupLabels,omitempty"`
	CommonLabels      map[string]string  `json:"commonLabels,omitempty"`
	CommonAnnotations map[string]string  `json:"commonAnnotations,omitempty"`
	ExternalURL       string             `json:"externalURL,omitempty"`
	Alerts            []Alert            `json:"alerts" binding:"required"`
}

// Alert is a single alert within a group.
type Alert struct {
	Status       NotificationStatus `json:"status"`
	Labels       map[string]string  `json:"labels"`
	Annotations  map[string]string  `json:"annotations,omitempty"`
	StartsAt     time.Time          `json:"startsAt"`
	EndsAt       time.Time          `json:"endsAt"`
	GeneratorURL string             `json:"generatorURL,omitempty"`
}
