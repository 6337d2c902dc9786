package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, sev)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestSeverityLookup(t *testing.T) {
	cases := []struct {
		sev   Severity
		color string
		slack string
		level string
	}{
		{SeverityInfo, "#36a64f", "good", "info"},
		{SeverityWarning, "#ff9900", "warning", "warn"},
		{SeverityCritical, "#d00000", "danger", "error"},
	}
	for _, tc := range cases {
		t.Run(string(tc.sev), func(t *testing.T) {
			assert.Equal(t, tc.color, tc.sev.Color())
			assert.Equal(t, tc.slack, tc.sev.SlackColor())
			assert.Equal(t, tc.level, tc.sev.LogLevel())
		})
	}
}

func TestNewAlert_DeterministicID(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := NewAlert("Lag high", "consumer lag above threshold", SeverityWarning, "ingest",
		WithMetric("lag"), WithTimestamp(ts))
	b := NewAlert("Other title", "different message", SeverityCritical, "ingest",
		WithMetric("lag"), WithTimestamp(ts.Add(400*time.Millisecond)))
	c := NewAlert("Lag high", "consumer lag above threshold", SeverityWarning, "ingest",
		WithMetric("lag"), WithTimestamp(ts.Add(time.Second)))

	assert.Equal(t, a.AlertID, b.AlertID, "same component, metric and second")
	assert.NotEqual(t, a.AlertID, c.AlertID)
	assert.Len(t, a.AlertID, 36)
}

func TestAlert_CooldownKey(t *testing.T) {
	withMetric := NewAlert("t", "m", SeverityInfo, "ingest", WithMetric("lag"))
	assert.Equal(t, "alert:cooldown:ingest:lag", withMetric.CooldownKey())

	noMetric := NewAlert("t", "m", SeverityInfo, "ingest")
	assert.Equal(t, "alert:cooldown:ingest:_", noMetric.CooldownKey())

	crit := NewAlert("t", "m", SeverityCritical, "ingest", WithMetric("lag"))
	assert.Equal(t, withMetric.CooldownKey(), crit.CooldownKey(), "severity shares the bucket")
}

func TestAlert_Validate(t *testing.T) {
	ok := NewAlert("title", "msg", SeverityInfo, "api")
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, NewAlert("", "msg", SeverityInfo, "api").Validate(), ErrInvalidAlertField)
	assert.ErrorIs(t, NewAlert("t", "msg", SeverityInfo, " ").Validate(), ErrInvalidAlertField)
	assert.ErrorIs(t, NewAlert("t", "msg", Severity("loud"), "api").Validate(), ErrInvalidAlertField)

	nested := NewAlert("t", "msg", SeverityInfo, "api", WithMetadata("tags", []string{"a"}))
	assert.ErrorIs(t, nested.Validate(), ErrInvalidAlertField)
}

func TestAlert_MapRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 15, 123456789, time.UTC)
	orig := NewAlert("PM2.5 high", "sensor 12 above limit", SeverityCritical, "sensors",
		WithMetric("pm25"),
		WithValues(88.5, 55),
		WithMetadata("station", "north"),
		WithMetadata("retries", 3),
		WithMetadata("calibrated", true),
		WithTimestamp(ts),
	)

	back, err := AlertFromMap(orig.ToMap())
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestAlert_MapRoundTripOptionalFieldsAbsent(t *testing.T) {
	orig := NewAlert("Restarted", "", SeverityInfo, "worker")

	m := orig.ToMap()
	assert.Nil(t, m["metric"])
	assert.Nil(t, m["current_value"])
	assert.Nil(t, m["threshold"])

	back, err := AlertFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestAlert_JSONRoundTripKeepsMetadataOrder(t *testing.T) {
	orig := NewAlert("t", "m", SeverityWarning, "ingest",
		WithMetadata("zeta", "last-alpha"),
		WithMetadata("alpha", 1.5),
		WithMetadata("mid", nil),
	)

	b, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"metadata":{"zeta":"last-alpha","alpha":1.5,"mid":null}`)

	var back Alert
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, orig.AlertID, back.AlertID)
	assert.True(t, orig.Timestamp.Equal(back.Timestamp))
	require.Len(t, back.Metadata, 3)
	assert.Equal(t, "zeta", back.Metadata[0].Key)
	assert.Equal(t, "alpha", back.Metadata[1].Key)
	assert.Equal(t, "mid", back.Metadata[2].Key)
}

func TestAlertFromMap_PlainMetadataAndMissingID(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0).UTC()
	m := map[string]interface{}{
		"title":         "t",
		"message":       "m",
		"severity":      "warning",
		"component":     "ingest",
		"metric":        "lag",
		"current_value": 12,
		"metadata":      map[string]interface{}{"b": "2", "a": "1"},
		"timestamp":     ts.Format(time.RFC3339),
	}

	a, err := AlertFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, DeriveAlertID("ingest", "lag", ts), a.AlertID)
	require.NotNil(t, a.CurrentValue)
	assert.Equal(t, 12.0, *a.CurrentValue)
	assert.Nil(t, a.Threshold)
	assert.Equal(t, Metadata{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, a.Metadata)

	m["severity"] = "nope"
	_, err = AlertFromMap(m)
	assert.Error(t, err)
}

func TestMetadata_SetReplacesInPlace(t *testing.T) {
	var md Metadata
	md = md.Set("a", 1)
	md = md.Set("b", 2)
	md = md.Set("a", 3)

	require.Len(t, md, 2)
	v, ok := md.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, "a", md[0].Key)
}

func TestSLAMetrics_ToMap(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := SLAMetrics{
		PeriodStart:   start,
		PeriodEnd:     start.Add(time.Hour),
		TotalChecks:   3,
		UptimePercent: 66.67,
		SLATarget:     99.5,
	}.ToMap()

	assert.Equal(t, "2024-01-01T00:00:00Z", m["period_start"])
	assert.Equal(t, "2024-01-01T01:00:00Z", m["period_end"])
	assert.Equal(t, 3, m["total_checks"])
	assert.Equal(t, false, m["sla_met"])
}
