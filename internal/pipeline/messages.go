package pipeline

// User-facing texts. Subscribers write in Spanish.
const (
	PromptText = "Hola, por favor envía el capture de tu pago para generar tu comprobante automático."

	ReceiptCaption = "¡Gracias por tu pago!\n\n" +
		"Te adjuntamos tu comprobante oficial de recepción.\n" +
		"Estamos validando tu transferencia y en minutos te confirmaremos."

	DuplicateText = "Este comprobante ya fue procesado anteriormente. " +
		"Si realizaste un nuevo pago, envía el capture correspondiente."

	// The proof stays claimed after a failure, so this must not ask for a resend.
	FailureText = "Recibimos tu comprobante pero no pudimos generar tu recibo. " +
		"Nuestro equipo lo revisará y te enviará el comprobante manualmente."
)
