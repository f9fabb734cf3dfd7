// Package metrics exposes runtime counters via expvar.
//
// The counter names below are a contract: dashboards and alerts key on
// them, so renaming one is a breaking change.
package metrics

import "expvar"

var (
	// Per-detector-type maps, keyed by detector type string.
	DetectorEvaluations = expvar.NewMap("detector_evaluations")
	DetectorTriggered   = expvar.NewMap("detector_triggered")

	// Per-outcome skip counters emitted by the stateful handler.
	SkippedAlreadyProcessed      = expvar.NewInt("skipping_already_processed_update")
	SkippedInvalidConditionGroup = expvar.NewInt("skipping_invalid_condition_group")

	DetectorsMissingGroupType = expvar.NewInt("detectors_missing_grouptype")
	DetectorsMissingHandler   = expvar.NewInt("detectors_missing_handler")

	PacketsConsumed  = expvar.NewInt("packets_consumed")
	PacketsMalformed = expvar.NewInt("packets_malformed")

	ResultsPublished = expvar.NewInt("results_published")
	PublishFailures  = expvar.NewInt("publish_failures")

	ActionsFiltered = expvar.NewInt("actions_filtered")
	ActionsEligible = expvar.NewInt("actions_eligible")

	SourcesStale = expvar.NewInt("sources_stale")
)
