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
	FieldMessageID     = "message_id"
	FieldSender        = "sender"
	FieldChannel       = "bot_channel"
	FieldEventKind     = "event_kind"
	FieldCommand       = "command"
	FieldUserID        = "user_id"
	FieldPeriod        = "period"
	FieldUpstream      = "upstream"
	FieldReplyType     = "reply_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentWebhook   = "webhook"
	ComponentRouter    = "router"
	ComponentDirectory = "directory"
	ComponentLedger    = "ledger"
	ComponentWhatsApp  = "whatsapp"
	ComponentDispatch  = "dispatch"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentToken     = "token"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpLookup    = "lookup"
	OpAggregate = "aggregate"
	OpSend      = "send"
	OpVerify    = "verify"
	OpDecode    = "decode"
	OpDispatch  = "dispatch"
	OpRecord    = "record"
	OpRefresh   = "refresh"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
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
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
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

// WithEvent adds the identifying fields of an inbound message.
func (f LogFields) WithEvent(messageID, sender, channel, kind string) LogFields {
	if messageID != "" {
		f[FieldMessageID] = messageID
	}
	f[FieldSender] = sender
	f[FieldChannel] = channel
	f[FieldEventKind] = kind
	return f
}

// WithCommand adds the classified command name
func (f LogFields) WithCommand(command string) LogFields {
	f[FieldCommand] = command
	return f
}

// WithUpstream names the external API involved in a call
func (f LogFields) WithUpstream(upstream string) LogFields {
	f[FieldUpstream] = upstream
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
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
