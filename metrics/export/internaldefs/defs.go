// Package internaldefs holds the shared metric export definitions used by
// the otel and prometheus exporter packages.
package internaldefs

import (
	authcore "github.com/authcore-io/authcore"
)

// CounterDef binds an engine counter to its stable export name and help
// text. Instances are configured at init and treated as immutable.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful password logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Rejected password logins."},
	{ID: authcore.MetricTwoFactorChallenged, Name: "authcore_twofactor_challenged_total", Help: "Logins deferred to a second factor."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected refresh rotations, replays included."},
	{ID: authcore.MetricTokenRevoked, Name: "authcore_token_revoked_total", Help: "Blacklisted access tokens."},
	{ID: authcore.MetricOTPIssued, Name: "authcore_otp_issued_total", Help: "Generated one-time codes."},
	{ID: authcore.MetricOTPVerified, Name: "authcore_otp_verified_total", Help: "Successful one-time code verifications."},
	{ID: authcore.MetricOTPFailure, Name: "authcore_otp_failure_total", Help: "One-time code mismatches and expiries."},
	{ID: authcore.MetricTwoFactorEnabled, Name: "authcore_twofactor_enabled_total", Help: "Completed two-factor enrollments."},
	{ID: authcore.MetricTwoFactorDisabled, Name: "authcore_twofactor_disabled_total", Help: "Two-factor disablements."},
	{ID: authcore.MetricTwoFactorLoginSuccess, Name: "authcore_twofactor_login_success_total", Help: "Completed two-factor logins."},
	{ID: authcore.MetricTwoFactorLoginFailure, Name: "authcore_twofactor_login_failure_total", Help: "Rejected two-factor logins."},
	{ID: authcore.MetricRecoveryCodeUsed, Name: "authcore_recovery_code_used_total", Help: "Consumed recovery codes."},
	{ID: authcore.MetricRecoveryCodesGenerated, Name: "authcore_recovery_codes_generated_total", Help: "Recovery-set regenerations."},
	{ID: authcore.MetricEmailDispatchFailure, Name: "authcore_email_dispatch_failure_total", Help: "Failed outbound email deliveries."},
}
