// Package cli parses parley argv into a command and its call options.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandCall     Command = "call"
	CommandStop     Command = "stop"
	CommandRetry    Command = "retry"
	CommandReset    Command = "reset"
	CommandStatus   Command = "status"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandDiagnose Command = "diagnose"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandCall:     {},
	CommandStop:     {},
	CommandRetry:    {},
	CommandReset:    {},
	CommandStatus:   {},
	CommandDevices:  {},
	CommandDoctor:   {},
	CommandDiagnose: {},
	CommandVersion:  {},
	CommandHelp:     {},
}

// Diagnostic profiles accepted by `diagnose --profile`.
const (
	ProfileInterview = "interview"
	ProfileWorkflow  = "workflow"
)

// CallOptions carries the session fields given to `call` and `diagnose`.
type CallOptions struct {
	Mode          string
	Name          string
	CandidateID   string
	InterviewID   string
	FeedbackID    string
	Questions     []string
	Profile       string
	ExitOnFailure bool
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	Call       CallOptions
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			switch cmd {
			case CommandCall:
				opts, err := parseCallFlags(rest)
				if err != nil {
					return Parsed{}, err
				}
				parsed.Call = opts
			case CommandDiagnose:
				opts, err := parseDiagnoseFlags(rest)
				if err != nil {
					return Parsed{}, err
				}
				parsed.Call = opts
			default:
				if len(rest) > 0 {
					return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
				}
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseCallFlags(args []string) (CallOptions, error) {
	opts := CallOptions{Mode: "interview"}

	err := walkFlags(args, func(flag string, value func() (string, error)) error {
		switch flag {
		case "--exit-on-failure":
			opts.ExitOnFailure = true
			return nil
		case "--mode":
			v, err := value()
			if err != nil {
				return err
			}
			if v != "interview" && v != "onboarding" {
				return fmt.Errorf("--mode must be interview or onboarding, got %q", v)
			}
			opts.Mode = v
		case "--name":
			return assign(&opts.Name, value)
		case "--candidate-id":
			return assign(&opts.CandidateID, value)
		case "--interview-id":
			return assign(&opts.InterviewID, value)
		case "--feedback-id":
			return assign(&opts.FeedbackID, value)
		case "--question":
			v, err := value()
			if err != nil {
				return err
			}
			opts.Questions = append(opts.Questions, v)
		default:
			return fmt.Errorf("unknown call flag: %s", flag)
		}
		return nil
	})
	return opts, err
}

func parseDiagnoseFlags(args []string) (CallOptions, error) {
	opts := CallOptions{Mode: "diagnostic", Profile: ProfileInterview}

	err := walkFlags(args, func(flag string, value func() (string, error)) error {
		switch flag {
		case "--profile":
			v, err := value()
			if err != nil {
				return err
			}
			if v != ProfileInterview && v != ProfileWorkflow {
				return fmt.Errorf("--profile must be interview or workflow, got %q", v)
			}
			opts.Profile = v
		case "--question":
			v, err := value()
			if err != nil {
				return err
			}
			opts.Questions = append(opts.Questions, v)
		default:
			return fmt.Errorf("unknown diagnose flag: %s", flag)
		}
		return nil
	})
	return opts, err
}

func walkFlags(args []string, fn func(flag string, value func() (string, error)) error) error {
	for i := 0; i < len(args); i++ {
		flag := args[i]
		if !strings.HasPrefix(flag, "--") {
			return fmt.Errorf("unexpected argument: %s", flag)
		}
		value := func() (string, error) {
			i++
			if i >= len(args) || strings.HasPrefix(args[i], "--") {
				return "", fmt.Errorf("%s requires a value", flag)
			}
			return args[i], nil
		}
		if err := fn(flag, value); err != nil {
			return err
		}
	}
	return nil
}

func assign(dst *string, value func() (string, error)) error {
	v, err := value()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [flags]

Commands:
  call      Run one voice session and stay attached until it settles
  stop      End the running call
  retry     Clear a failed call and start it again
  reset     Clear a failed call back to idle
  status    Print the running call's state and latest message
  devices   List available input devices
  doctor    Run configuration and environment checks
  diagnose  Run a test call with synthetic variables (never submits feedback)
  version   Print version information
  help      Show this help

Call flags:
  --mode interview|onboarding   Session mode (default: interview)
  --name NAME                   Candidate display name
  --candidate-id ID             Candidate id (required for onboarding)
  --interview-id ID             Interview id used for feedback submission
  --feedback-id ID              Existing feedback id to replace
  --question TEXT               Interview question (repeatable)
  --exit-on-failure             Exit instead of waiting for retry after a failure

Diagnose flags:
  --profile interview|workflow  Test profile (default: interview)
  --question TEXT               Override the sample questions (repeatable)

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parley/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
