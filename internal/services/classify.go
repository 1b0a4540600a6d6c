package services

import (
	"strings"

	"gastosbot/internal/core"
)

// Option ids carried by the bot's own buttons.
const (
	OptMainMenu        = "CMD_VOLTAR_MENU"
	OptExpenseMenu     = "CMD_GASTOS"
	OptMonthly         = "CMD_GASTOS_MENSAIS"
	OptQuarterly       = "CMD_GASTOS_TRIMESTRAL"
	OptAnnual          = "CMD_GASTOS_ANUAL"
	OptCustomRange     = "CMD_GASTOS_PERIODO"
	OptAddExpense      = "CMD_ADD_GASTO"
	OptConfigureAlerts = "CMD_ALERTAS_GASTOS"
)

// RangeSeparator splits "start - end" in a custom range query.
const RangeSeparator = " - "

const addExpensePrefix = "adicionar gasto"

var textKeywords = map[string]core.CommandKind{
	"oi":                    core.CommandGreeting,
	"olá":                   core.CommandGreeting,
	"ola":                   core.CommandGreeting,
	"menu":                  core.CommandOpenMainMenu,
	"gastos":                core.CommandOpenExpenseMenu,
	"gastos mensais":        core.CommandMonthlyExpense,
	"gastos trimestrais":    core.CommandQuarterlyExpense,
	"gastos trimestral":     core.CommandQuarterlyExpense,
	"gastos anuais":         core.CommandAnnualExpense,
	"gastos anual":          core.CommandAnnualExpense,
	"gastos por período":    core.CommandCustomRangePrompt,
	"gastos personalizados": core.CommandCustomRangePrompt,
}

var optionIDs = map[string]core.CommandKind{
	OptMainMenu:        core.CommandOpenMainMenu,
	OptExpenseMenu:     core.CommandOpenExpenseMenu,
	OptMonthly:         core.CommandMonthlyExpense,
	OptQuarterly:       core.CommandQuarterlyExpense,
	OptAnnual:          core.CommandAnnualExpense,
	OptCustomRange:     core.CommandCustomRangePrompt,
	OptAddExpense:      core.CommandAddExpense,
	OptConfigureAlerts: core.CommandConfigureAlerts,
}

// Classify maps an event to exactly one command. Text is matched after
// trimming and lower-casing; option ids are matched exactly.
func Classify(ev core.InboundEvent) core.Command {
	if ev.IsInteractive() {
		if kind, ok := optionIDs[ev.OptionID]; ok {
			return core.Command{Kind: kind}
		}
		return core.Command{Kind: core.CommandUnrecognized}
	}

	switch ev.Kind {
	case core.EventText:
		return classifyText(ev.Text)
	case core.EventUnsupported:
		return core.Command{Kind: core.CommandUnsupported}
	}
	return core.Command{Kind: core.CommandUnrecognized}
}

func classifyText(text string) core.Command {
	normalized := strings.ToLower(strings.TrimSpace(text))

	if kind, ok := textKeywords[normalized]; ok {
		return core.Command{Kind: kind}
	}
	if strings.HasPrefix(normalized, addExpensePrefix) {
		return core.Command{Kind: core.CommandAddExpense}
	}

	// The separator is looked up before trimming so " - 31/01/2023" still
	// counts as a range with an empty start.
	if start, end, found := strings.Cut(text, RangeSeparator); found {
		return core.Command{
			Kind:       core.CommandCustomRangeQuery,
			RangeStart: strings.TrimSpace(start),
			RangeEnd:   strings.TrimSpace(end),
		}
	}
	return core.Command{Kind: core.CommandUnrecognized}
}
