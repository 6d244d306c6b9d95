package mqtt

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "sunwatch"

// Topics builds the sunwatch topic tree under a configurable prefix.
//
//	<prefix>/snapshot          retained JSON snapshot
//	<prefix>/status            retained online/offline status (LWT)
//	<prefix>/command/refresh   any payload forces a refresh
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Snapshot returns the topic carrying the latest snapshot.
//
// Example: sunwatch/snapshot
func (t Topics) Snapshot() string {
	return t.prefix() + "/snapshot"
}

// Status returns the service status topic.
//
// Example: sunwatch/status
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// Command returns the topic for a named command.
//
// Example: sunwatch/command/refresh
func (t Topics) Command(name string) string {
	return t.prefix() + "/command/" + name
}

// RefreshCommand returns the topic that triggers a forced refresh.
func (t Topics) RefreshCommand() string {
	return t.Command("refresh")
}

// AllCommands matches every command topic.
//
// Pattern: sunwatch/command/+
func (t Topics) AllCommands() string {
	return t.prefix() + "/command/+"
}
