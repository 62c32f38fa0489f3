package log

// Canonical field names.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldAction    = "action"
	FieldKind      = "kind"
	FieldAssetID   = "asset_id"
	FieldPrompt    = "prompt"
	FieldFPS       = "fps"
	FieldSize      = "size"
	FieldEncoder   = "encoder"
	FieldFormat    = "format"
	FieldPath      = "path"
	FieldOldState  = "old_state"
	FieldNewState  = "new_state"
	FieldSubject   = "subject"
)
