package authcore

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID int

const (
	// MetricLoginSuccess counts completed password logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected password logins.
	MetricLoginFailure
	// MetricTwoFactorChallenged counts logins deferred to a second factor.
	MetricTwoFactorChallenged
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh rotations, replays
	// included.
	MetricRefreshFailure
	// MetricTokenRevoked counts blacklisted access tokens.
	MetricTokenRevoked
	// MetricOTPIssued counts generated one-time codes.
	MetricOTPIssued
	// MetricOTPVerified counts successful OTP verifications.
	MetricOTPVerified
	// MetricOTPFailure counts OTP mismatches and expiries.
	MetricOTPFailure
	// MetricTwoFactorEnabled counts completed 2FA enrollments.
	MetricTwoFactorEnabled
	// MetricTwoFactorDisabled counts 2FA disablements.
	MetricTwoFactorDisabled
	// MetricTwoFactorLoginSuccess counts completed 2FA logins.
	MetricTwoFactorLoginSuccess
	// MetricTwoFactorLoginFailure counts rejected 2FA logins.
	MetricTwoFactorLoginFailure
	// MetricRecoveryCodeUsed counts consumed recovery codes.
	MetricRecoveryCodeUsed
	// MetricRecoveryCodesGenerated counts recovery-set regenerations.
	MetricRecoveryCodesGenerated
	// MetricEmailDispatchFailure counts failed outbound deliveries.
	MetricEmailDispatchFailure

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:           "login_success",
	MetricLoginFailure:           "login_failure",
	MetricTwoFactorChallenged:    "twofactor_challenged",
	MetricRefreshSuccess:         "refresh_success",
	MetricRefreshFailure:         "refresh_failure",
	MetricTokenRevoked:           "token_revoked",
	MetricOTPIssued:              "otp_issued",
	MetricOTPVerified:            "otp_verified",
	MetricOTPFailure:             "otp_failure",
	MetricTwoFactorEnabled:       "twofactor_enabled",
	MetricTwoFactorDisabled:      "twofactor_disabled",
	MetricTwoFactorLoginSuccess:  "twofactor_login_success",
	MetricTwoFactorLoginFailure:  "twofactor_login_failure",
	MetricRecoveryCodeUsed:       "recovery_code_used",
	MetricRecoveryCodesGenerated: "recovery_codes_generated",
	MetricEmailDispatchFailure:   "email_dispatch_failure",
}

// Name returns the stable export name of the metric.
func (id MetricID) Name() string {
	if id < 0 || id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined id in export order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricIDCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// paddedCounter keeps each slot on its own cache line so concurrent
// increments of different metrics never share one.
type paddedCounter struct {
	value uint64
	_     [56]byte
}

// Metrics holds lock-free counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics returns a counter set; when cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot deep-copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for i := MetricID(0); i < metricIDCount; i++ {
		snap.Counters[i] = atomic.LoadUint64(&m.counters[i].value)
	}
	return snap
}
