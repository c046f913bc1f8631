// Package workflow holds the data-access transaction state machine.
//
// The transition table in this package is the only place that knows which
// action moves a transaction between statuses and which party may take it.
// Everything here is pure: callers load state, ask Decide for a verdict and
// commit the result themselves, and Replay recomputes a status from the
// approval ledger so the stored status can be checked against it.
package workflow
