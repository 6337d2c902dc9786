// ================================
// internal/models/alert.go
// ================================

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type severityStyle struct {
	color      string // hex accent used by email and teams
	slackColor string
	logLevel   string
}

// Fixed severity lookup table shared by every delivery channel.
var severityStyles = map[Severity]severityStyle{
	SeverityInfo:     {color: "#36a64f", slackColor: "good", logLevel: "info"},
	SeverityWarning:  {color: "#ff9900", slackColor: "warning", logLevel: "warn"},
	SeverityCritical: {color: "#d00000", slackColor: "danger", logLevel: "error"},
}

// ParseSeverity accepts the three known severities, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := severityStyles[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

func (s Severity) Valid() bool {
	_, ok := severityStyles[s]
	return ok
}

// Color is the hex accent: green for info, amber for warning, red for critical.
func (s Severity) Color() string {
	if st, ok := severityStyles[s]; ok {
		return st.color
	}
	return "#439fe0"
}

func (s Severity) SlackColor() string {
	if st, ok := severityStyles[s]; ok {
		return st.slackColor
	}
	return "#439FE0"
}

// LogLevel is the logger priority for the severity; critical alerts are
// logged at error, the highest non-terminating level.
func (s Severity) LogLevel() string {
	if st, ok := severityStyles[s]; ok {
		return st.logLevel
	}
	return "info"
}

// alertNamespace seeds the deterministic alert IDs.
var alertNamespace = uuid.MustParse("6f1c3a52-3f7e-4b8e-9f0d-2c4b6a8e1d57")

// Alert is one raised condition. It is built once by NewAlert and not
// modified afterwards.
type Alert struct {
	AlertID      string    `json:"alert_id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Severity     Severity  `json:"severity"`
	Component    string    `json:"component"`
	Metric       *string   `json:"metric,omitempty"`
	CurrentValue *float64  `json:"current_value,omitempty"`
	Threshold    *float64  `json:"threshold,omitempty"`
	Metadata     Metadata  `json:"metadata,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// AlertOption sets an optional Alert field in NewAlert.
type AlertOption func(*Alert)

func WithMetric(metric string) AlertOption {
	return func(a *Alert) { a.Metric = &metric }
}

func WithValues(current, threshold float64) AlertOption {
	return func(a *Alert) {
		a.CurrentValue = &current
		a.Threshold = &threshold
	}
}

func WithCurrentValue(current float64) AlertOption {
	return func(a *Alert) { a.CurrentValue = &current }
}

func WithThreshold(threshold float64) AlertOption {
	return func(a *Alert) { a.Threshold = &threshold }
}

func WithMetadata(key string, value interface{}) AlertOption {
	return func(a *Alert) { a.Metadata = a.Metadata.Set(key, value) }
}

func WithTimestamp(ts time.Time) AlertOption {
	return func(a *Alert) { a.Timestamp = ts }
}

func NewAlert(title, message string, severity Severity, component string, opts ...AlertOption) *Alert {
	a := &Alert{
		Title:     title,
		Message:   message,
		Severity:  severity,
		Component: component,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Timestamp = a.Timestamp.UTC()
	a.AlertID = DeriveAlertID(a.Component, a.MetricName(), a.Timestamp)
	return a
}

// DeriveAlertID is a UUIDv5 over component, metric and the timestamp in
// whole seconds, so the same condition raised within one second by two
// replicas gets the same id.
func DeriveAlertID(component, metric string, ts time.Time) string {
	name := component + "|" + metric + "|" + strconv.FormatInt(ts.Unix(), 10)
	return uuid.NewSHA1(alertNamespace, []byte(name)).String()
}

func (a *Alert) MetricName() string {
	if a.Metric == nil {
		return ""
	}
	return *a.Metric
}

// CooldownKey is the store key that gates repeat notifications. Severity is
// deliberately not part of it.
func (a *Alert) CooldownKey() string {
	metric := a.MetricName()
	if metric == "" {
		metric = "_"
	}
	return "alert:cooldown:" + a.Component + ":" + metric
}

var ErrInvalidAlertField = errors.New("invalid alert")

func (a *Alert) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAlertField)
	}
	if strings.TrimSpace(a.Component) == "" {
		return fmt.Errorf("%w: component is required", ErrInvalidAlertField)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlertField, a.Severity)
	}
	if a.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidAlertField)
	}
	for _, e := range a.Metadata {
		if !isScalar(e.Value) {
			return fmt.Errorf("%w: metadata %q is not a scalar", ErrInvalidAlertField, e.Key)
		}
	}
	return nil
}

// ToMap flattens the alert for logs and API responses. Timestamps are
// ISO-8601; optional fields are nil when absent.
func (a *Alert) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"alert_id":      a.AlertID,
		"title":         a.Title,
		"message":       a.Message,
		"severity":      string(a.Severity),
		"component":     a.Component,
		"metric":        nil,
		"current_value": nil,
		"threshold":     nil,
		"metadata":      a.Metadata.Clone(),
		"timestamp":     a.Timestamp.Format(time.RFC3339Nano),
	}
	if a.Metric != nil {
		m["metric"] = *a.Metric
	}
	if a.CurrentValue != nil {
		m["current_value"] = *a.CurrentValue
	}
	if a.Threshold != nil {
		m["threshold"] = *a.Threshold
	}
	return m
}

// AlertFromMap rebuilds an alert from ToMap output, or from the same shape
// decoded from JSON (metadata as a plain object, numbers as float64).
func AlertFromMap(m map[string]interface{}) (*Alert, error) {
	a := &Alert{}
	var err error

	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}

	a.Title = str("title")
	a.Message = str("message")
	a.Component = str("component")
	if a.Severity, err = ParseSeverity(str("severity")); err != nil {
		return nil, err
	}

	switch ts := m["timestamp"].(type) {
	case string:
		if a.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
	case time.Time:
		a.Timestamp = ts
	default:
		return nil, fmt.Errorf("timestamp is required")
	}
	a.Timestamp = a.Timestamp.UTC()

	if s, ok := m["metric"].(string); ok {
		a.Metric = &s
	}
	if a.CurrentValue, err = optionalFloat(m, "current_value"); err != nil {
		return nil, err
	}
	if a.Threshold, err = optionalFloat(m, "threshold"); err != nil {
		return nil, err
	}

	switch md := m["metadata"].(type) {
	case Metadata:
		a.Metadata = md.Clone()
	case map[string]interface{}:
		keys := make([]string, 0, len(md))
		for k := range md {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			a.Metadata = a.Metadata.Set(k, md[k])
		}
	case nil:
	default:
		return nil, fmt.Errorf("metadata has unsupported type %T", md)
	}

	a.AlertID = str("alert_id")
	if a.AlertID == "" {
		a.AlertID = DeriveAlertID(a.Component, a.MetricName(), a.Timestamp)
	}
	return a, nil
}

func optionalFloat(m map[string]interface{}, key string) (*float64, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case float32:
		f := float64(v)
		return &f, nil
	case int:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("%s has unsupported type %T", key, v)
	}
}

// MetadataEntry is one key/value pair of alert metadata.
type MetadataEntry struct {
	Key   string
	Value interface{}
}

// Metadata is an insertion-ordered string -> scalar mapping. It encodes as a
// JSON object with keys in insertion order.
type Metadata []MetadataEntry

// Set replaces the value of an existing key in place or appends a new one.
func (md Metadata) Set(key string, value interface{}) Metadata {
	for i := range md {
		if md[i].Key == key {
			md[i].Value = value
			return md
		}
	}
	return append(md, MetadataEntry{Key: key, Value: value})
}

func (md Metadata) Get(key string) (interface{}, bool) {
	for _, e := range md {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func (md Metadata) Clone() Metadata {
	if md == nil {
		return nil
	}
	out := make(Metadata, len(md))
	copy(out, md)
	return out
}

func (md Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range md {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", e.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (md *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*md = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata must be a JSON object")
	}

	out := Metadata{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata key must be a string")
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("metadata %q: %w", key, err)
		}
		out = out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*md = out
	return nil
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}
