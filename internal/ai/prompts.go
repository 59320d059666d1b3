// prompts.go - Prompt builder for invoice line-item extraction

package ai

// BuildInvoiceExtractionPrompt returns the instruction sent alongside the
// invoice image. The response contract is a bare JSON array so the mapper can
// consume it without guessing the envelope, but real model output still drifts
// and the normalizer handles that.
func BuildInvoiceExtractionPrompt() string {
	return `You are an expert invoice data extraction system.

Extract ALL line items (products/services) from this invoice image.

Return ONLY a JSON array. Each element must be an object with EXACTLY these keys:
- "item_id": item code or line number (string, null if absent)
- "description": item description text (string)
- "unit_price": price per unit (number, null if absent)
- "quantity": quantity (number, null if absent)
- "tax": tax amount for the line (number, null if absent)
- "total_amount": total amount for the line (number)
- "invoice_date": invoice date in DD-MM-YYYY format (string, null if absent)

Rules:
- The invoice may be in English or Arabic. Keep Arabic text exactly as written, do not translate it.
- Use null for any value not visible on the invoice. Never invent values.
- Numbers must not contain currency symbols.
- If the date appears once at invoice level, repeat it on every line item.
- Output the JSON array only. No markdown fences, no commentary, no wrapper object.`
}
