// Package session owns a portal client's authenticated identity across
// process restarts: it reconciles a persisted (possibly stale) user snapshot
// against a short-lived bearer token, drives login, registration, logout,
// refresh, and password-reset flows against the remote portal API, and
// exposes route-intent decisions (allow, redirect, pending) to page guards.
//
// Session lifecycle:
//   - Manager is the state machine. It starts anonymous-and-loading; a single
//     Reconcile pass settles it from the TokenStore plus SnapshotStore before
//     any guard decision is made. Login and Logout mutate state, token, and
//     snapshot together so they never diverge past one reconciliation.
//   - Logout is unconditionally local: the client tears down its own session
//     even when the backend is unreachable, and only surfaces the backend
//     outcome as a warning.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter describing login, logout,
//     refresh, registration, and reconcile events. Sink errors are logged,
//     never propagated, so telemetry cannot block authentication.
//
// Guards:
//   - ResolveRouteIntent is a pure function of session state and a page
//     requirement; RouteGuard subscribes to the Manager so an in-tab logout
//     immediately flips guarded pages.
package session
