package services

import (
	"fmt"

	"gastosbot/internal/core"
)

const (
	RegistrationText       = "Olá! Para utilizar o assistente de controle de gastos, por favor, primeiro realize seu cadastro ou vincule seu número WhatsApp em nosso sistema."
	UnknownInteractionText = "Recebi uma interação que ainda não sei processar."
)

var (
	mainMenuOptions = []core.Option{
		{ID: OptExpenseMenu, Title: "Ver Meus Gastos"},
		{ID: OptAddExpense, Title: "Adicionar Gasto"},
		{ID: OptConfigureAlerts, Title: "Configurar Alertas"},
	}

	expenseMenuOptions = []core.Option{
		{ID: OptMonthly, Title: "Mensal"},
		{ID: OptQuarterly, Title: "Trimestral"},
		{ID: OptAnnual, Title: "Anual"},
		{ID: OptCustomRange, Title: "Por Período"},
	}
)

func greetingReply(first string) core.OutboundReply {
	return core.TextReply(fmt.Sprintf("Olá, %s! Sou Mark, seu assistente de controle de gastos. 😊\nPara ver serviços disponíveis digite: menu", first))
}

func mainMenuReply(first string) core.OutboundReply {
	return core.ButtonsReply(fmt.Sprintf("%s, aqui estão algumas opções que você pode escolher:", first), mainMenuOptions...)
}

func expenseMenuReply(first string) core.OutboundReply {
	return core.ButtonsReply(fmt.Sprintf("Claro, %s! Aqui estão algumas opções que você pode escolher:", first), expenseMenuOptions...)
}

func customRangePromptReply(first string) core.OutboundReply {
	return core.TextReply(fmt.Sprintf("Certo, %s! Envie o período no formato DD/MM/AAAA - DD/MM/AAAA.\nExemplo: 01/01/2024 - 31/01/2024", first))
}

func rangeFormatErrorReply(first string) core.OutboundReply {
	return core.TextReply(fmt.Sprintf("Desculpe, %s, não entendi o período. Use o formato DD/MM/AAAA - DD/MM/AAAA.", first))
}

func addExpenseReply(first string) core.OutboundReply {
	return core.TextReply(fmt.Sprintf("Ok, %s, vamos adicionar um novo gasto... (em desenvolvimento)", first))
}

func configureAlertsReply(first string) core.OutboundReply {
	return core.TextReply(fmt.Sprintf("Ok, %s, a configuração de alertas de gastos está em desenvolvimento.", first))
}

func unrecognizedReply(first string) core.OutboundReply {
	return core.TextReply(fmt.Sprintf("Desculpe, %s, não entendi o que você disse. Digite 'menu' para opções.", first))
}

func unsupportedReply(ev core.InboundEvent) core.OutboundReply {
	if ev.IsUnknownInteraction() {
		return core.TextReply(UnknownInteractionText)
	}
	return core.TextReply(fmt.Sprintf("Recebi uma mensagem do tipo %s, mas só entendo texto ou botões/listas.", ev.RawType))
}

// periodNoun is the adjective used in error and retry texts.
func periodNoun(k core.PeriodKind) string {
	switch k {
	case core.PeriodMonth:
		return "mensais"
	case core.PeriodQuarter:
		return "trimestrais"
	case core.PeriodYear:
		return "anuais"
	default:
		return "do período"
	}
}

func aggregationReply(first string, p core.Period, res core.AggregationResult) core.OutboundReply {
	switch {
	case res.Err != "":
		return core.TextReply(fmt.Sprintf("Desculpe, %s, não consegui calcular seus gastos %s. (Erro: %s)", first, periodNoun(p.Kind), res.Err))
	case res.Total != nil:
		return core.TextReply(fmt.Sprintf("%s, seus gastos para %s são de R$ %s.", first, p.Label(), res.Total.FormatBRL()))
	default:
		return core.TextReply(fmt.Sprintf("Houve um problema ao buscar seus gastos %s, %s. Tente novamente.", periodNoun(p.Kind), first))
	}
}
