package conversation

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

var _ domain.Notifier = (*CLINotifier)(nil)

// ANSI escape codes for terminal formatting.
const (
	reset = "\033[0m"
	bold  = "\033[1m"
	red   = "\033[31m"
	green = "\033[32m"
)

// PrintFunc prints one formatted line. Matches display.UI.Printf.
type PrintFunc func(format string, a ...any)

// CLINotifier writes notices to the terminal.
type CLINotifier struct {
	log     *logger.Logger
	printFn PrintFunc
}

// NewCLINotifier creates a terminal notifier. A nil printFn prints to
// stdout.
func NewCLINotifier(log *logger.Logger, printFn PrintFunc) *CLINotifier {
	if printFn == nil {
		printFn = func(format string, a ...any) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &CLINotifier{log: log, printFn: printFn}
}

// Notify prints a normal notice.
func (n *CLINotifier) Notify(_ context.Context, message string) error {
	n.log.Debug("notify: %s", message)
	n.printFn("%s%s%s", green, message, reset)
	return nil
}

// NotifyUrgent prints in bold red.
func (n *CLINotifier) NotifyUrgent(_ context.Context, message string) error {
	n.log.Debug("notify-urgent: %s", message)
	n.printFn("%s%s%s%s", red, bold, message, reset)
	return nil
}
