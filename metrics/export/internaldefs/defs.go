package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef maps one session counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef maps one session histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter fed from Manager.EventsDropped.
const (
	EventsDroppedName = "gosession_events_dropped_total"
	EventsDroppedHelp = "Lifecycle events dropped by a full dispatcher buffer."
)

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Logins that committed a session."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Logins that returned an error."},
	{ID: goSession.MetricLoginRejected, Name: "gosession_login_rejected_total", Help: "Logins refused by the identity service."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Accounts created."},
	{ID: goSession.MetricRegisterFailure, Name: "gosession_register_failure_total", Help: "Failed account creations."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout calls."},
	{ID: goSession.MetricReconcileValidated, Name: "gosession_reconcile_validated_total", Help: "Reconciles confirmed by the identity service."},
	{ID: goSession.MetricReconcileRejected, Name: "gosession_reconcile_rejected_total", Help: "Reconciles that found the stored token rejected."},
	{ID: goSession.MetricReconcileOffline, Name: "gosession_reconcile_offline_total", Help: "Reconciles that fell back to the cached profile."},
	{ID: goSession.MetricReconcileOfflineExpired, Name: "gosession_reconcile_offline_expired_total", Help: "Offline reconciles refused by an offline rule."},
	{ID: goSession.MetricProfileUpdateSuccess, Name: "gosession_profile_update_success_total", Help: "Successful profile updates."},
	{ID: goSession.MetricProfileUpdateFailure, Name: "gosession_profile_update_failure_total", Help: "Failed profile updates."},
	{ID: goSession.MetricPasswordChangeSuccess, Name: "gosession_password_change_success_total", Help: "Successful password changes."},
	{ID: goSession.MetricPasswordChangeFailure, Name: "gosession_password_change_failure_total", Help: "Failed password changes."},
	{ID: goSession.MetricAvatarUpdateSuccess, Name: "gosession_avatar_update_success_total", Help: "Successful avatar replacements."},
	{ID: goSession.MetricAvatarUpdateFailure, Name: "gosession_avatar_update_failure_total", Help: "Failed avatar replacements."},
	{ID: goSession.MetricOperationInFlight, Name: "gosession_operation_in_flight_total", Help: "Calls rejected because the same operation was running."},
	{ID: goSession.MetricStaleDiscarded, Name: "gosession_stale_discarded_total", Help: "Responses dropped because their session or caller was gone."},
	{ID: goSession.MetricStorageFailure, Name: "gosession_storage_failure_total", Help: "Session store failures that were logged and ignored."},
	{ID: goSession.MetricEventDropped, Name: "gosession_event_dropped_total", Help: "Events dropped at emit time."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRequestLatency, Name: "gosession_request_latency_seconds", Help: "Identity service round-trip latency."},
}

// HistogramBounds are the upper bounds in seconds; the last bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
