package domain

import "time"

// Command is a single line of the command file. Commands are immutable once
// read and are delivered to the backend in file order.
type Command struct {
	// Index is the 1-based position of the command among the loaded commands.
	Index int

	// Line is the 1-based line number in the command file.
	Line int

	// Text is the payload sent to the backend, trailing whitespace trimmed.
	Text string
}

// Message is one payload decoded from a backend frame.
type Message struct {
	// Seq is the 1-based order in which the message was received.
	Seq int

	// Payload is the decoded text, exactly the declared number of bytes.
	Payload string

	// ReceivedAt is when the decode loop finished reading the payload.
	ReceivedAt time.Time
}

// Delivery selects how encoded commands reach the backend.
type Delivery string

const (
	// DeliveryFile pre-encodes all commands into a side file and passes its
	// path as the backend's sole argument.
	DeliveryFile Delivery = "file"

	// DeliveryStdin writes frames live to the backend's standard input.
	DeliveryStdin Delivery = "stdin"
)

// ProgressMode selects what drives the [i/N] progress lines.
type ProgressMode string

const (
	// ProgressHeartbeat prints one line per command at a fixed pace.
	ProgressHeartbeat ProgressMode = "heartbeat"

	// ProgressMessages prints one line per decoded message.
	ProgressMessages ProgressMode = "messages"
)

// Report summarizes a finished session.
type Report struct {
	SessionID   string
	Delivery    Delivery
	Commands    int
	Messages    int
	EncodedPath string
	OutputPath  string
	Duration    time.Duration
}
