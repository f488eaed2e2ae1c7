package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"

	FieldTarget        = "target_rupees"
	FieldDeadline      = "deadline"
	FieldAmount        = "amount_rupees"
	FieldPayMethod     = "pay_method"
	FieldSaved         = "saved_rupees"
	FieldContributions = "contributions"
	FieldAttempt       = "attempt"
	FieldMaxAttempts   = "max_attempts"
	FieldDelay         = "delay"
	FieldStorageKey    = "storage_key"
	FieldUpstream      = "upstream"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentTracker   = "tracker"
	ComponentStorage   = "storage"
	ComponentAnalysis  = "analysis"
	ComponentProxy     = "proxy"
	ComponentEvents    = "events"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentWorker    = "worker"
)

// Operations defines standard operation names
const (
	OpSetGoal         = "set_goal"
	OpEditGoal        = "edit_goal"
	OpAddContribution = "add_contribution"
	OpLoad            = "load"
	OpSave            = "save"
	OpAnalyze         = "analyze"
	OpMotivate        = "motivate"
	OpForward         = "forward"
	OpPublish         = "publish"
	OpExport          = "export"
	OpShutdown        = "shutdown"
	OpStartup         = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithContribution adds the fields describing a single drop
func (f LogFields) WithContribution(amountRupees float64, method string) LogFields {
	f[FieldAmount] = amountRupees
	f[FieldPayMethod] = method
	return f
}

// WithGoal adds the fields describing the goal state
func (f LogFields) WithGoal(targetRupees, savedRupees float64, deadline string, contributions int) LogFields {
	f[FieldTarget] = targetRupees
	f[FieldSaved] = savedRupees
	f[FieldDeadline] = deadline
	f[FieldContributions] = contributions
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
