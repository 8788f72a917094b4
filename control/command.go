// Package control is the rover's command core: a single-consumer
// dispatch loop that turns named motion commands into drivetrain calls,
// and a safety monitor that preempts them when clearance drops.
package control

import "github.com/pkg/errors"

// A Command is a named motion intent. Commands carry no payload; their
// identity is the whole message.
type Command string

// The full command vocabulary.
const (
	Forward      Command = "forward"
	Back         Command = "back"
	Left         Command = "left"
	Right        Command = "right"
	TurnLeft     Command = "turn_left"
	TurnRight    Command = "turn_right"
	LeftForward  Command = "left_forward"
	RightForward Command = "right_forward"
	LeftBack     Command = "left_back"
	RightBack    Command = "right_back"
	Stop         Command = "stop"
)

var commands = map[Command]bool{
	Forward:      true,
	Back:         true,
	Left:         true,
	Right:        true,
	TurnLeft:     true,
	TurnRight:    true,
	LeftForward:  true,
	RightForward: true,
	LeftBack:     true,
	RightBack:    true,
	Stop:         true,
}

// Parse maps a command name from the boundary (API, voice, tool call)
// to a Command. Unknown names are a caller error.
func Parse(name string) (Command, error) {
	cmd := Command(name)
	if !commands[cmd] {
		return "", errors.Errorf("unknown command %q", name)
	}
	return cmd, nil
}
