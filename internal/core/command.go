package core

const (
	CommandUnrecognized CommandKind = iota
	CommandGreeting
	CommandOpenMainMenu
	CommandOpenExpenseMenu
	CommandMonthlyExpense
	CommandQuarterlyExpense
	CommandAnnualExpense
	CommandCustomRangePrompt
	CommandCustomRangeQuery
	CommandAddExpense
	CommandConfigureAlerts
	CommandUnsupported
)

// CommandKind is the closed set of intents the bot understands.
type CommandKind int

// Command is the classified intent of one inbound event. RangeStart and
// RangeEnd are only set for CommandCustomRangeQuery.
type Command struct {
	Kind       CommandKind
	RangeStart string
	RangeEnd   string
}

var commandNames = map[CommandKind]string{
	CommandUnrecognized:      "unrecognized",
	CommandGreeting:          "greeting",
	CommandOpenMainMenu:      "main_menu",
	CommandOpenExpenseMenu:   "expense_menu",
	CommandMonthlyExpense:    "monthly_expense",
	CommandQuarterlyExpense:  "quarterly_expense",
	CommandAnnualExpense:     "annual_expense",
	CommandCustomRangePrompt: "custom_range_prompt",
	CommandCustomRangeQuery:  "custom_range_query",
	CommandAddExpense:        "add_expense",
	CommandConfigureAlerts:   "configure_alerts",
	CommandUnsupported:       "unsupported",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Aggregates reports whether the command needs a ledger call.
func (k CommandKind) Aggregates() bool {
	switch k {
	case CommandMonthlyExpense, CommandQuarterlyExpense, CommandAnnualExpense, CommandCustomRangeQuery:
		return true
	}
	return false
}

// ParseCommandKind is the inverse of CommandKind.String.
func ParseCommandKind(name string) (CommandKind, bool) {
	for k, n := range commandNames {
		if n == name {
			return k, true
		}
	}
	return CommandUnrecognized, false
}
