package types

import "strings"

// Well-known queue message property keys.
const (
	PropertySpecificationID = "specification-id"
	PropertyFundingStreamID = "funding-stream-id"
	PropertyTemplateVersion = "template-version"
	PropertyUserID          = "user-id"
	PropertyUserName        = "user-name"
	PropertyCorrelationID   = "sfa-correlationId"
	PropertyJobID           = "jobId"
	PropertyPartitionIndex  = "provider-summaries-partition-index"
)

// QueueMessage is the transport-neutral form of an inbound queue message:
// a user-property bag plus an opaque JSON body.
type QueueMessage struct {
	Topic          string            `json:"topic"`
	UserProperties map[string]string `json:"userProperties"`
	Body           []byte            `json:"body,omitempty"`
}

// UserProperty returns the trimmed property value, or "" when absent.
func (m *QueueMessage) UserProperty(key string) string {
	if m == nil || m.UserProperties == nil {
		return ""
	}
	return strings.TrimSpace(m.UserProperties[key])
}

func (m *QueueMessage) HasUserProperty(key string) bool {
	return m.UserProperty(key) != ""
}
