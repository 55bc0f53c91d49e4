package types

import "fmt"

// BrokerEntry identifies a broker's two endpoints: task_port carries
// tasks/results/variables (dealer-to-router semantics), info_port carries
// broadcast control (subscribe semantics). Equality is structural.
type BrokerEntry struct {
	Hostname string
	TaskPort int
	InfoPort int
}

// TaskEndpoint is the "tcp://host:port" dial address for the task socket.
func (b BrokerEntry) TaskEndpoint() string {
	return fmt.Sprintf("tcp://%s:%d", b.Hostname, b.TaskPort)
}

// InfoEndpoint is the "tcp://host:port" dial address for the control socket.
func (b BrokerEntry) InfoEndpoint() string {
	return fmt.Sprintf("tcp://%s:%d", b.Hostname, b.InfoPort)
}
