package a2a

// Method is an A2A JSON-RPC method identifier.
type Method string

// A2A method names.
const (
	// Messaging
	MessageSendMethod   Method = "message/send"
	MessageStreamMethod Method = "message/stream"

	// Tasks
	TasksGetMethod         Method = "tasks/get"
	TasksCancelMethod      Method = "tasks/cancel"
	TasksResubscribeMethod Method = "tasks/resubscribe"

	// Push notification configuration
	TasksPushNotificationConfigSetMethod    Method = "tasks/pushNotificationConfig/set"
	TasksPushNotificationConfigGetMethod    Method = "tasks/pushNotificationConfig/get"
	TasksPushNotificationConfigListMethod   Method = "tasks/pushNotificationConfig/list"
	TasksPushNotificationConfigDeleteMethod Method = "tasks/pushNotificationConfig/delete"

	// Agent
	AgentGetAuthenticatedExtendedCardMethod Method = "agent/getAuthenticatedExtendedCard"
)

// IsStreaming reports whether m answers with an event stream.
func (m Method) IsStreaming() bool {
	return m == MessageStreamMethod || m == TasksResubscribeMethod
}

// ProtocolVersion is the A2A protocol revision these types describe.
const ProtocolVersion = "0.3.0"
