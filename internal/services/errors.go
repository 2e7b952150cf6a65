// Package services implements the reconciler's background work: the daily
// meta-scheduler, the cost and inventory collection workers, and the
// discrepancy engine. This file centralizes the service-level error values
// so handlers and the ops API can classify failures consistently.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrAccountNotConfigured indicates that no role configuration is stored
	// for the account. Jobs fail with it and go through the retry envelope,
	// since the configuration may still be propagating.
	ErrAccountNotConfigured = errors.New("account not configured")

	// ErrInvalidPayload is returned when a job payload is malformed or lacks
	// an account id.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrAllRegionsFailed is returned by an inventory scan when no region
	// could be read. The stored resource set is left as it was.
	ErrAllRegionsFailed = errors.New("inventory scan failed in every region")

	// ErrInvalidStatus is returned for a discrepancy status outside
	// ACTIVE, RESOLVED and IGNORED.
	ErrInvalidStatus = errors.New("invalid discrepancy status")

	// ErrInvalidAccountConfig is returned when a role configuration is
	// incomplete or malformed.
	ErrInvalidAccountConfig = errors.New("invalid account configuration")

	// ErrExternalIDInUse is returned when the external id is already bound
	// to another account.
	ErrExternalIDInUse = errors.New("external id already in use")

	// ErrDiscrepancyNotFound indicates that the discrepancy does not exist
	// or belongs to another account.
	ErrDiscrepancyNotFound = errors.New("discrepancy not found")

	// ErrJobNotFound indicates that no job has the requested id.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownQueue is returned for a queue name outside the fixed set.
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrInvalidJobStatus is returned for a job status filter outside
	// waiting, active, completed and failed.
	ErrInvalidJobStatus = errors.New("invalid job status")
)
