// Copyright 2026 Popform Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Component Labels.
	ComponentFormSupervisor = "form_supervisor"
	ComponentActorRegistry  = "actor_registry"
	ComponentFieldActor     = "field_actor"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "popform"
	subsystem = "core"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	// Commands accepted by the supervisor, including ones dropped by guards.
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commands_total",
			Help:      "Total number of commands received by the form supervisor",
		},
		[]string{"instance", "command"},
	)

	// Supervisor state transitions.
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total number of supervisor state transitions",
		},
		[]string{"instance", "from", "to"},
	)

	// Validation round outcomes (passed or failed).
	validationRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_rounds_total",
			Help:      "Total number of completed validation rounds by outcome",
		},
		[]string{"instance", "outcome"},
	)

	// Submission attempt outcomes (succeeded, failed or cancelled).
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "submissions_total",
			Help:      "Total number of submission attempts by outcome",
		},
		[]string{"instance", "outcome"},
	)

	// Live field actors per form.
	liveActors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live_actors",
			Help:      "Number of live field actors registered with the supervisor",
		},
		[]string{"instance"},
	)
)

// InitErrorCounter initializes the error counter for a component and instance.
// This ensures the metric exists even before the first error occurs.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// IncErrorCount increments the error counter for a component and instance.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// IncCommand counts one received supervisor command.
func IncCommand(instance, command string) {
	commandsTotal.WithLabelValues(instance, command).Inc()
}

// ObserveTransition counts one supervisor state transition.
func ObserveTransition(instance, from, to string) {
	transitionsTotal.WithLabelValues(instance, from, to).Inc()
}

// IncValidationRound counts one completed validation round.
func IncValidationRound(instance, outcome string) {
	validationRoundsTotal.WithLabelValues(instance, outcome).Inc()
}

// IncSubmission counts one finished submission attempt.
func IncSubmission(instance, outcome string) {
	submissionsTotal.WithLabelValues(instance, outcome).Inc()
}

// SetLiveActors records the current number of live field actors.
func SetLiveActors(instance string, count int) {
	liveActors.WithLabelValues(instance).Set(float64(count))
}

// Handler returns an HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
