/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const alertsPath = "../../deploy/prometheus/alerts.yml"

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

func loadAlerts(t *testing.T) []alertGroup {
	t.Helper()
	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
	}
	var config struct {
		Groups []alertGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Invalid YAML in alerts.yml: %v", err)
	}
	if len(config.Groups) == 0 {
		t.Fatal("alerts.yml 'groups' is empty")
	}
	return config.Groups
}

// TestCriticalAlertsPresent verifies critical alerts are defined.
func TestCriticalAlertsPresent(t *testing.T) {
	names := map[string]bool{}
	for _, g := range loadAlerts(t) {
		for _, r := range g.Rules {
			names[r.Alert] = true
		}
	}
	for _, want := range []string{"CompileStale", "StuckCompileLock", "HighAPIErrorRate", "DatabaseDown"} {
		if !names[want] {
			t.Errorf("Critical alert '%s' not found in alerts.yml", want)
		}
	}
}

// TestAlertLabels verifies alerts have required labels.
func TestAlertLabels(t *testing.T) {
	for _, group := range loadAlerts(t) {
		for _, alert := range group.Rules {
			if alert.Alert == "" {
				continue
			}
			if _, ok := alert.Labels["severity"]; !ok {
				t.Errorf("Alert '%s' missing 'severity' label", alert.Alert)
			}
			if _, ok := alert.Annotations["summary"]; !ok {
				t.Errorf("Alert '%s' missing 'summary' annotation", alert.Alert)
			}
		}
	}
}

// TestAlertMetricsExist verifies every inkintime_ metric an alert references is declared.
func TestAlertMetricsExist(t *testing.T) {
	data, err := os.ReadFile("metrics.go")
	if err != nil {
		t.Fatalf("Failed to read metrics.go: %v", err)
	}
	declared := string(data)

	for _, group := range loadAlerts(t) {
		for _, alert := range group.Rules {
			for _, name := range metricNames(alert.Expr) {
				if !strings.Contains(declared, `"`+name+`"`) {
					t.Errorf("Alert '%s' uses undeclared metric %s", alert.Alert, name)
				}
			}
		}
	}
}

// metricNames pulls inkintime_ identifiers out of a PromQL expression,
// dropping histogram series suffixes.
func metricNames(expr string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(expr, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if !strings.HasPrefix(field, "inkintime_") {
			continue
		}
		for _, suffix := range []string{"_bucket", "_sum", "_count"} {
			if strings.HasSuffix(field, "_seconds"+suffix) {
				field = strings.TrimSuffix(field, suffix)
			}
		}
		out = append(out, field)
	}
	return out
}
