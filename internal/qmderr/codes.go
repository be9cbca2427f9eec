package qmderr

// Stable error codes referenced by callers (CLI, MCP handlers, tests).
const (
	CodeUnknownIndex      = "E_UNKNOWN_INDEX"
	CodeUnknownCollection = "E_UNKNOWN_COLLECTION"
	CodeUnknownDocument    = "E_UNKNOWN_DOCUMENT"
	CodeMalformedQuery    = "E_MALFORMED_QUERY"
	CodeShellExpandedGlob = "E_SHELL_EXPANDED_GLOB"
	CodeUnsupportedVerb   = "E_UNSUPPORTED_VERB"

	CodeOrphanedVectors   = "E_ORPHANED_VECTORS"
	CodePartialEmbeddings = "E_PARTIAL_EMBEDDINGS"
	CodeFTSMismatch       = "E_FTS_MISMATCH"
	CodeOrphanedDocuments = "E_ORPHANED_DOCUMENTS"

	CodeModelLoad   = "E_MODEL_LOAD"
	CodeRemoteAPI   = "E_REMOTE_API"
	CodeSQLEngine   = "E_SQL_ENGINE"
	CodeIO          = "E_IO"

	CodeSessionReleased = "E_SESSION_RELEASED"
	CodeShutdown        = "E_SHUTDOWN"

	CodeSchemaIncompatible = "E_SCHEMA_INCOMPATIBLE"
	CodeMissingExtension   = "E_MISSING_EXTENSION"
	CodeCorruptDatabase    = "E_CORRUPT_DATABASE"
)

// ErrSessionReleased is returned by any operation on a non-Active session.
var ErrSessionReleased = Cancelled(CodeSessionReleased, "session released")
