package mqtt

import "fmt"

// Topic prefixes.
//
// Bridge traffic uses the flat scheme graylogic/{category}/{integration}/{entity_id}.
const (
	// TopicPrefix is the root of every Gray Logic topic.
	TopicPrefix = "graylogic"

	// TopicPrefixAutomation is the base for automation service topics.
	TopicPrefixAutomation = "graylogic/automation"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.EntityCommand("knx", "light.kitchen")
//	// "graylogic/command/knx/light.kitchen"
type Topics struct{}

// EntityCommand returns the topic a bridge receives entity commands on.
//
// Example: graylogic/command/knx/light.kitchen
func (Topics) EntityCommand(integration, entityID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, integration, entityID)
}

// TriggerFired returns the topic fired device triggers are announced on.
//
// Example: graylogic/automation/knx/trigger/turned_on
func (Topics) TriggerFired(integration, kind string) string {
	return fmt.Sprintf("%s/%s/trigger/%s", TopicPrefixAutomation, integration, kind)
}

// SystemStatus returns the system status topic used for online/offline (LWT).
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEntityStates returns a pattern matching every bridge state message.
//
// Pattern: graylogic/state/+/+
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}
