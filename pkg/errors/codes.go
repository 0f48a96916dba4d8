// Package errors provides centralized error code definitions for the
// pharmsearch engine. All error codes are grouped by subsystem and mapped to
// HTTP status codes for the thin status-reporting surfaces that sit above the
// core search pipeline.
package errors

import "net/http"

// ErrorCode represents a typed error code used throughout pharmsearch.
// Codes are partitioned by subsystem to avoid conflicts and simplify
// maintenance.
type ErrorCode int

// ─────────────────────────────────────────────────────────────────────────────
// General / cross-cutting error codes  (1xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeOK indicates no error.
	CodeOK ErrorCode = 0

	// CodeUnknown is a catch-all for errors that have not been categorised.
	CodeUnknown ErrorCode = 10000

	// CodeInvalidParam is returned when one or more request parameters fail
	// validation (missing required fields, type mismatch, out-of-range values, etc.).
	CodeInvalidParam ErrorCode = 10001

	// CodeNotFound is returned when a requested resource does not exist.
	CodeNotFound ErrorCode = 10004

	// CodeInternal is returned for unexpected internal errors not attributable
	// to the caller.
	CodeInternal ErrorCode = 10007

	// CodeNotImplemented is returned for a recognised but unimplemented option.
	CodeNotImplemented ErrorCode = 10008
)

// ─────────────────────────────────────────────────────────────────────────────
// Query / config error codes  (2xxxx) — §7 of the search specification
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeQueryTooLarge is returned when a query has fewer than 3 points or
	// its point count would require a correspondence bitmask wider than the
	// 128-bit cap.
	CodeQueryTooLarge ErrorCode = 20001

	// CodeBadConfig is returned when a QueryParameters/Config value fails
	// validation (e.g. negative maxRMSD, maxRot < minRot).
	CodeBadConfig ErrorCode = 20002

	// CodeCancelled is not a true failure: a search was stopped early via the
	// shared stop flag. Carried as a typed code so callers can distinguish it
	// from a genuine error when deciding whether a partial result is usable.
	CodeCancelled ErrorCode = 20003
)

// ─────────────────────────────────────────────────────────────────────────────
// Index error codes  (3xxxx) — §6/§7, triplet index (C2)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeInvalidIndex is returned when an index file's magic or version does
	// not match what the reader supports. Fatal at shard-open time.
	CodeInvalidIndex ErrorCode = 30001

	// CodeCorruptRecord is returned when a single index record fails its
	// range/ordering check mid-scan. The reader skips the record and logs;
	// this code is surfaced only for diagnostics, never returned from a scan.
	CodeCorruptRecord ErrorCode = 30002

	// CodeIOError is returned for filesystem/mmap failures opening or reading
	// an index file.
	CodeIOError ErrorCode = 30003
)

// ─────────────────────────────────────────────────────────────────────────────
// Alignment error codes  (4xxxx) — C5
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeAlignmentFailed is returned when the Kabsch eigendecomposition does
	// not converge for a candidate correspondence. The caller drops the
	// candidate and continues; this code is informational only.
	CodeAlignmentFailed ErrorCode = 40001
)

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure error codes  (7xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeDBConnectionError is returned when the application cannot establish
	// or re-use a connection to the shard catalog (PostgreSQL).
	CodeDBConnectionError ErrorCode = 70001

	// CodeCacheError is returned when a Redis cache operation fails.
	CodeCacheError ErrorCode = 70002

	// CodeSearchError is returned when an OpenSearch metadata query or a
	// Milvus shape pre-filter query fails.
	CodeSearchError ErrorCode = 70003

	// CodeMessageQueueError is returned when producing to or consuming from a
	// Kafka topic fails.
	CodeMessageQueueError ErrorCode = 70004

	// CodeStorageError is returned when a MinIO object-storage operation
	// (upload, download, stat, delete) fails.
	CodeStorageError ErrorCode = 70005

	// CodeGraphError is returned when a Neo4j scaffold-graph operation fails.
	CodeGraphError ErrorCode = 70006
)

// ─────────────────────────────────────────────────────────────────────────────
// String — human-readable name of the error code
// ─────────────────────────────────────────────────────────────────────────────

// String returns the human-readable name associated with an ErrorCode.
// It is safe to call on any value, including unknown codes.
func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeUnknown:
		return "UNKNOWN"
	case CodeInvalidParam:
		return "INVALID_PARAM"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeInternal:
		return "INTERNAL_ERROR"
	case CodeNotImplemented:
		return "NOT_IMPLEMENTED"
	case CodeQueryTooLarge:
		return "QUERY_TOO_LARGE"
	case CodeBadConfig:
		return "BAD_CONFIG"
	case CodeCancelled:
		return "CANCELLED"
	case CodeInvalidIndex:
		return "INVALID_INDEX"
	case CodeCorruptRecord:
		return "CORRUPT_RECORD"
	case CodeIOError:
		return "IO_ERROR"
	case CodeAlignmentFailed:
		return "ALIGNMENT_FAILED"
	case CodeDBConnectionError:
		return "DB_CONNECTION_ERROR"
	case CodeCacheError:
		return "CACHE_ERROR"
	case CodeSearchError:
		return "SEARCH_ERROR"
	case CodeMessageQueueError:
		return "MESSAGE_QUEUE_ERROR"
	case CodeStorageError:
		return "STORAGE_ERROR"
	case CodeGraphError:
		return "GRAPH_ERROR"
	default:
		return "UNKNOWN_CODE"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTPStatus — mapping from domain error codes to HTTP status codes
// ─────────────────────────────────────────────────────────────────────────────

// HTTPStatus returns the most appropriate HTTP status code for the given
// ErrorCode. pharmsearch has no HTTP surface of its own, but status-reporting
// adapters built on top of the pipeline (health checks, the shard-watcher's
// debug endpoint) use this mapping to stay consistent with the rest of the
// corpus's error-handling conventions.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeQueryTooLarge, CodeBadConfig:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeCancelled:
		return http.StatusRequestTimeout
	case CodeInvalidIndex, CodeDBConnectionError, CodeMessageQueueError, CodeStorageError:
		return http.StatusServiceUnavailable
	case CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
