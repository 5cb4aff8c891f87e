package newebpay

import (
	"bytes"
	"html/template"
)

var autoSubmitTemplate = template.Must(template.New("autosubmit").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>NewebPay</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Key}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

// SubmitFields are the browser-posted fields for kind. The periodic gateway
// takes the ciphertext alone under its own field names.
func SubmitFields(kind Kind, payload *EncryptedPayload) []Field {
	if kind == KindPeriod {
		return []Field{
			{Key: "MerchantID_", Value: payload.MerchantID},
			{Key: "PostData_", Value: payload.TradeInfo},
		}
	}
	return []Field{
		{Key: "MerchantID", Value: payload.MerchantID},
		{Key: "TradeInfo", Value: payload.TradeInfo},
		{Key: "TradeSha", Value: payload.TradeSha},
		{Key: "Version", Value: payload.Version},
	}
}

// RenderAutoSubmitForm returns a page that posts the payload to the processor on load.
func RenderAutoSubmitForm(kind Kind, action string, payload *EncryptedPayload) (string, error) {
	var buf bytes.Buffer
	err := autoSubmitTemplate.Execute(&buf, struct {
		Action string
		Fields []Field
	}{Action: action, Fields: SubmitFields(kind, payload)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
