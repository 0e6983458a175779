package logger

// Most non-error log messages are given a message ID that can be used to set
// the log level for that message. Errors do not get a message ID because you
// cannot turn errors into non-errors (otherwise the build would incorrectly
// succeed). These correspond to the warning codes named in the build graph
// engine's external interface.
type MsgID uint8

const (
	MsgID_None MsgID = iota

	// Linker
	MsgID_CircularDependency
	MsgID_MissingExport
	MsgID_NonExistentExport

	// Includer
	MsgID_UnusedExternalImport

	// Orchestrator / option handling
	MsgID_DeprecatedFeature

	// Chunker
	MsgID_ManualChunkConflict
)

func (id MsgID) String() string {
	switch id {
	case MsgID_CircularDependency:
		return "CIRCULAR_DEPENDENCY"
	case MsgID_MissingExport:
		return "MISSING_EXPORT"
	case MsgID_NonExistentExport:
		return "NON_EXISTENT_EXPORT"
	case MsgID_UnusedExternalImport:
		return "UNUSED_EXTERNAL_IMPORT"
	case MsgID_DeprecatedFeature:
		return "DEPRECATED_FEATURE"
	case MsgID_ManualChunkConflict:
		return "MANUAL_CHUNK_CONFLICT"
	default:
		return ""
	}
}
