package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Item-local faults. The offending item is dropped and the run continues.
const (
	// ErrCodeItemFault is the generic item-local fault.
	ErrCodeItemFault ErrorCode = "ITEM_FAULT"
	// ErrCodeDecode indicates the item's content could not be decoded.
	ErrCodeDecode ErrorCode = "DECODE_ERROR"
	// ErrCodeMetadata indicates the item's metadata could not be read.
	ErrCodeMetadata ErrorCode = "METADATA_ERROR"
	// ErrCodeWrite indicates the item could not be written to its destination.
	ErrCodeWrite ErrorCode = "WRITE_ERROR"
)

// Configuration faults. Raised before any item is processed.
const (
	// ErrCodeConfigFault is the generic configuration fault.
	ErrCodeConfigFault ErrorCode = "CONFIG_FAULT"
	// ErrCodeUnknownStage indicates a stage name missing from the registry.
	ErrCodeUnknownStage ErrorCode = "UNKNOWN_STAGE"
	// ErrCodeTopology indicates a malformed stream topology.
	ErrCodeTopology ErrorCode = "TOPOLOGY_ERROR"
	// ErrCodeInvalidArgument indicates an invalid option value.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Systemic faults. The whole run aborts.
const (
	// ErrCodeSystemic is the generic systemic fault.
	ErrCodeSystemic ErrorCode = "SYSTEMIC_FAULT"
	// ErrCodeInputUnavailable indicates the input root is missing or unreadable.
	ErrCodeInputUnavailable ErrorCode = "INPUT_UNAVAILABLE"
	// ErrCodeOutputUnavailable indicates the output root is not writable.
	ErrCodeOutputUnavailable ErrorCode = "OUTPUT_UNAVAILABLE"
	// ErrCodeInternal indicates a broken invariant inside the engine.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Kind is the fault class of an error.
type Kind int

const (
	// KindNone is reported for nil errors.
	KindNone Kind = iota
	// KindItem marks faults isolated to one item.
	KindItem
	// KindConfig marks configuration faults.
	KindConfig
	// KindSystemic marks faults that abort the run.
	KindSystemic
)

// String returns the log name of the fault class.
func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindConfig:
		return "config"
	case KindSystemic:
		return "systemic"
	default:
		return "none"
	}
}

var codeKinds = map[ErrorCode]Kind{
	ErrCodeItemFault:         KindItem,
	ErrCodeDecode:            KindItem,
	ErrCodeMetadata:          KindItem,
	ErrCodeWrite:             KindItem,
	ErrCodeConfigFault:       KindConfig,
	ErrCodeUnknownStage:      KindConfig,
	ErrCodeTopology:          KindConfig,
	ErrCodeInvalidArgument:   KindConfig,
	ErrCodeSystemic:          KindSystemic,
	ErrCodeInputUnavailable:  KindSystemic,
	ErrCodeOutputUnavailable: KindSystemic,
	ErrCodeInternal:          KindSystemic,
}

// KindOfCode returns the fault class of a code. Unknown codes are systemic.
func KindOfCode(code ErrorCode) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindSystemic
}
