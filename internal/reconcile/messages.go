package reconcile

import (
	"fmt"
	"strings"

	"recibo/internal/ledger"
)

// Outbound texts mirror what the payers are used to seeing on WhatsApp,
// emoji included.
const (
	msgHelp           = "👋 Envie 'lista' para ver os mensalistas ou envie o comprovante (foto)."
	msgResetOK        = "✅ Lista resetada com sucesso."
	msgResetDenied    = "⚠️ Você não tem permissão para resetar."
	msgResetFailed    = "Erro ao resetar a lista. Tente novamente."
	msgAllSettled     = "Todos já estão como PAGO. Nenhuma ação necessária."
	msgMediaFailed    = "Erro ao processar imagem. Tente novamente."
	msgOracleFailed   = "Erro ao analisar comprovante (IA). Tente novamente mais tarde."
	msgNotApproved    = "❌ Comprovante não aprovado. Verifique o valor/nome e tente novamente."
	msgSettleFailed   = "Erro ao registrar o pagamento. Tente novamente."
)

func statusListMessage(payees []ledger.Payee) string {
	var b strings.Builder
	b.WriteString("📄 Lista de Pagamentos:\n\n")
	writeRows(&b, payees)
	return b.String()
}

func updatedListMessage(payees []ledger.Payee) string {
	var b strings.Builder
	b.WriteString("📄 Lista atualizada:\n\n")
	writeRows(&b, payees)
	return b.String()
}

func writeRows(b *strings.Builder, payees []ledger.Payee) {
	for i, p := range payees {
		fmt.Fprintf(b, "%d. %s - %s\n", i+1, p.Name, p.Status)
	}
}

func settledMessage(name string) string {
	return fmt.Sprintf("✅ Recebido. %s marcado como PAGO.", name)
}

func alreadySettledMessage(name string) string {
	return fmt.Sprintf("ℹ️ %s já constava como PAGO.", name)
}

func nameNotFoundMessage(name string) string {
	return fmt.Sprintf("⚠️ Nome \"%s\" não encontrado na lista.", name)
}
