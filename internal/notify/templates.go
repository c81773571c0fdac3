package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
)

type tmpl struct {
	subject string
	body    string
}

// View is the data every template is rendered with.
type View struct {
	Name        string
	OrderNumber string
	Total       string
	Amount      string
	Reason      string
	Notes       string
	ETA         string
	Product     string
	Quantity    string
	Threshold   string
}

var templates = map[domain.NotificationType]map[string]tmpl{
	domain.NotifyOrderPlaced: {
		"en": {"Order {{.OrderNumber}} received", "Hi {{.Name}}, we received your order {{.OrderNumber}} for AED {{.Total}}. Expected delivery: {{.ETA}}."},
		"ar": {"تم استلام الطلب {{.OrderNumber}}", "مرحباً {{.Name}}، تم استلام طلبك {{.OrderNumber}} بقيمة {{.Total}} درهم. موعد التوصيل المتوقع: {{.ETA}}."},
	},
	domain.NotifyOrderConfirmed: {
		"en": {"Order {{.OrderNumber}} confirmed", "Hi {{.Name}}, your order {{.OrderNumber}} is confirmed.{{if .Notes}} Note: {{.Notes}}{{end}}"},
		"ar": {"تم تأكيد الطلب {{.OrderNumber}}", "مرحباً {{.Name}}، تم تأكيد طلبك {{.OrderNumber}}.{{if .Notes}} ملاحظة: {{.Notes}}{{end}}"},
	},
	domain.NotifyOrderProcessing: {
		"en": {"Order {{.OrderNumber}} is being prepared", "Hi {{.Name}}, our butchers are preparing order {{.OrderNumber}}.{{if .Notes}} Note: {{.Notes}}{{end}}"},
		"ar": {"جاري تجهيز الطلب {{.OrderNumber}}", "مرحباً {{.Name}}، جاري تجهيز طلبك {{.OrderNumber}}.{{if .Notes}} ملاحظة: {{.Notes}}{{end}}"},
	},
	domain.NotifyOrderReady: {
		"en": {"Order {{.OrderNumber}} is ready", "Hi {{.Name}}, order {{.OrderNumber}} is ready for pickup.{{if .Notes}} Note: {{.Notes}}{{end}}"},
		"ar": {"الطلب {{.OrderNumber}} جاهز", "مرحباً {{.Name}}، طلبك {{.OrderNumber}} جاهز للاستلام.{{if .Notes}} ملاحظة: {{.Notes}}{{end}}"},
	},
	domain.NotifyOrderOutForDelivery: {
		"en": {"Order {{.OrderNumber}} is on its way", "Hi {{.Name}}, order {{.OrderNumber}} is out for delivery.{{if .Notes}} Note: {{.Notes}}{{end}}"},
		"ar": {"الطلب {{.OrderNumber}} في الطريق", "مرحباً {{.Name}}، طلبك {{.OrderNumber}} في الطريق إليك.{{if .Notes}} ملاحظة: {{.Notes}}{{end}}"},
	},
	domain.NotifyOrderDelivered: {
		"en": {"Order {{.OrderNumber}} delivered", "Hi {{.Name}}, order {{.OrderNumber}} was delivered. Enjoy your meal!"},
		"ar": {"تم توصيل الطلب {{.OrderNumber}}", "مرحباً {{.Name}}، تم توصيل طلبك {{.OrderNumber}}. بالهناء والشفاء!"},
	},
	domain.NotifyOrderCancelled: {
		"en": {"Order {{.OrderNumber}} cancelled", "Hi {{.Name}}, order {{.OrderNumber}} was cancelled.{{if .Reason}} Reason: {{.Reason}}.{{end}}"},
		"ar": {"تم إلغاء الطلب {{.OrderNumber}}", "مرحباً {{.Name}}، تم إلغاء طلبك {{.OrderNumber}}.{{if .Reason}} السبب: {{.Reason}}.{{end}}"},
	},
	domain.NotifyOrderRefunded: {
		"en": {"Order {{.OrderNumber}} refunded", "Hi {{.Name}}, order {{.OrderNumber}} has been fully refunded."},
		"ar": {"تم استرداد مبلغ الطلب {{.OrderNumber}}", "مرحباً {{.Name}}، تم استرداد كامل مبلغ طلبك {{.OrderNumber}}."},
	},
	domain.NotifyPaymentReceived: {
		"en": {"Payment received for {{.OrderNumber}}", "Hi {{.Name}}, we received AED {{.Amount}} for order {{.OrderNumber}}."},
		"ar": {"تم استلام الدفع للطلب {{.OrderNumber}}", "مرحباً {{.Name}}، تم استلام {{.Amount}} درهم للطلب {{.OrderNumber}}."},
	},
	domain.NotifyPaymentFailed: {
		"en": {"Payment failed for {{.OrderNumber}}", "Hi {{.Name}}, the payment for order {{.OrderNumber}} failed.{{if .Reason}} {{.Reason}}.{{end}} Please try again."},
		"ar": {"فشل الدفع للطلب {{.OrderNumber}}", "مرحباً {{.Name}}، فشلت عملية الدفع للطلب {{.OrderNumber}}. يرجى المحاولة مرة أخرى."},
	},
	domain.NotifyRefundProcessed: {
		"en": {"Refund processed for {{.OrderNumber}}", "Hi {{.Name}}, AED {{.Amount}} was refunded for order {{.OrderNumber}}."},
		"ar": {"تمت معالجة الاسترداد للطلب {{.OrderNumber}}", "مرحباً {{.Name}}، تم استرداد {{.Amount}} درهم للطلب {{.OrderNumber}}."},
	},
	domain.NotifyLowStock: {
		"en": {"Low stock: {{.Product}}", "{{.Product}} is low on stock: {{.Quantity}} left (threshold {{.Threshold}})."},
		"ar": {"مخزون منخفض: {{.Product}}", "المخزون من {{.Product}} منخفض: متبقي {{.Quantity}} (الحد {{.Threshold}})."},
	},
}

var parsed = mustParse()

type parsedTmpl struct {
	subject *template.Template
	body    *template.Template
}

func mustParse() map[domain.NotificationType]map[string]parsedTmpl {
	out := make(map[domain.NotificationType]map[string]parsedTmpl, len(templates))
	for typ, langs := range templates {
		out[typ] = make(map[string]parsedTmpl, len(langs))
		for lang, t := range langs {
			name := fmt.Sprintf("%s.%s", typ, lang)
			out[typ][lang] = parsedTmpl{
				subject: template.Must(template.New(name + ".subject").Parse(t.subject)),
				body:    template.Must(template.New(name + ".body").Parse(t.body)),
			}
		}
	}
	return out
}

// Render picks the template for typ in lang, falling back to English.
func Render(typ domain.NotificationType, lang string, v View) (subject, body string, err error) {
	langs, ok := parsed[typ]
	if !ok {
		return "", "", fmt.Errorf("no template for %s", typ)
	}
	t, ok := langs[lang]
	if !ok {
		t = langs["en"]
	}
	var sb, bb bytes.Buffer
	if err := t.subject.Execute(&sb, v); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", typ, err)
	}
	if err := t.body.Execute(&bb, v); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", typ, err)
	}
	return sb.String(), bb.String(), nil
}
