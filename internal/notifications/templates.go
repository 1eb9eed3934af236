package notifications

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/digitalstore/api/internal/domain"
)

// strict strips all markup from buyer-controlled strings before they are
// interpolated into HTML messages.
var strict = bluemonday.StrictPolicy()

func sanitize(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

func displayAmount(order domain.Order) string {
	return order.Currency + " " + domain.FormatAmount(order.Total)
}

// orderCreatedTelegram builds the operator alert for a fresh order.
func orderCreatedTelegram(order domain.Order, adminURL string, now time.Time) string {
	var b strings.Builder
	b.WriteString("<b>\U0001F6A8 Nueva Orden Recibida!</b>\n\n")
	fmt.Fprintf(&b, "<b>Orden:</b> <code>%s</code>\n", template.HTMLEscapeString(order.OrderNumber))
	fmt.Fprintf(&b, "<b>Cliente:</b> %s\n", template.HTMLEscapeString(sanitize(order.CustomerName)))
	fmt.Fprintf(&b, "<b>Monto:</b> %s\n", displayAmount(order))
	fmt.Fprintf(&b, "<b>Pago:</b> %s\n", order.Method)
	fmt.Fprintf(&b, "<b>Estado:</b> %s\n", order.PaymentStatus)
	fmt.Fprintf(&b, "<b>Fecha:</b> %s\n\n", now.Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "<a href=\"%s\">Ver detalles en Admin</a>", adminURL)
	return b.String()
}

// paymentVerifiedTelegram builds the operator alert for a confirmed payment.
func paymentVerifiedTelegram(order domain.Order, adminURL string) string {
	var b strings.Builder
	b.WriteString("<b>✅ Pago Verificado</b>\n\n")
	fmt.Fprintf(&b, "<b>Orden:</b> <code>%s</code>\n", template.HTMLEscapeString(order.OrderNumber))
	fmt.Fprintf(&b, "<b>Cliente:</b> %s\n", template.HTMLEscapeString(sanitize(order.CustomerName)))
	fmt.Fprintf(&b, "<b>Monto:</b> %s\n\n", displayAmount(order))
	fmt.Fprintf(&b, "<a href=\"%s\">Ver detalles en Admin</a>", adminURL)
	return b.String()
}

var orderCreatedEmailTmpl = template.Must(template.New("order_created").Parse(`
<div style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <div style="background-color: #0f0f0f; padding: 20px; text-align: center; border-radius: 8px 8px 0 0;">
    <h2 style="color: #ffffff; margin: 0;">{{.StoreName}}</h2>
  </div>
  <div style="border: 1px solid #ddd; padding: 20px; border-top: none; border-radius: 0 0 8px 8px;">
    <h3 style="color: #E50914; margin-top: 0;">Nueva Orden Recibida</h3>
    <p>Se ha generado una nueva orden en la tienda.</p>
    <table style="width: 100%; border-collapse: collapse; font-size: 14px;">
      <tr><td style="padding: 8px;"><strong>Orden #:</strong></td><td style="padding: 8px;">{{.OrderNumber}}</td></tr>
      <tr><td style="padding: 8px;"><strong>Cliente:</strong></td><td style="padding: 8px;">{{.CustomerName}}</td></tr>
      <tr><td style="padding: 8px;"><strong>Email:</strong></td><td style="padding: 8px;">{{.CustomerEmail}}</td></tr>
      <tr><td style="padding: 8px;"><strong>Monto Total:</strong></td><td style="padding: 8px;">{{.Amount}}</td></tr>
      <tr><td style="padding: 8px;"><strong>Método de Pago:</strong></td><td style="padding: 8px;">{{.Method}}</td></tr>
      <tr><td style="padding: 8px;"><strong>Estado:</strong></td><td style="padding: 8px;">{{.PaymentStatus}}</td></tr>
    </table>
    <div style="text-align: center; margin-top: 30px;">
      <a href="{{.AdminURL}}" style="background-color: #E50914; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; font-weight: bold;">Ver Orden en Admin</a>
    </div>
  </div>
  <p style="text-align: center; color: #999; font-size: 12px; margin-top: 20px;">Este es un mensaje automático del sistema.</p>
</div>`))

var paymentVerifiedEmailTmpl = template.Must(template.New("payment_verified").Parse(`
<div style="font-family: 'Segoe UI', Tahoma, sans-serif; background-color: #0f0f0f; color: #ffffff; padding: 40px 20px;">
  <div style="max-width: 600px; margin: 0 auto;">
    <div style="text-align: center; margin-bottom: 30px; font-size: 24px; font-weight: bold;">&#128717;&#65039; {{.StoreName}}</div>
    <div style="background-color: #1a1a1a; border: 1px solid #333; border-radius: 12px; padding: 40px; text-align: center;">
      <div style="font-size: 48px;">&#9989;</div>
      <h1 style="font-size: 24px; color: #ffffff;">¡Pago Confirmado!</h1>
      <p style="color: #a3a3a3; line-height: 1.6;">Hola {{.CustomerName}}, hemos verificado tu pago satisfactoriamente para la orden <strong>#{{.OrderNumber}}</strong>.</p>
      <div style="background-color: #0f0f0f; border-radius: 8px; padding: 20px; margin-bottom: 25px; border: 1px solid #333; text-align: left;">
        {{range .Items}}
        <div style="border-bottom: 1px solid #333; padding-bottom: 10px; margin-bottom: 15px;">
          <p style="margin: 0; color: #ffffff; font-weight: 600;">{{.Title}}</p>
          <p style="margin: 0; color: #666; font-size: 12px;">Cantidad: {{.Quantity}}</p>
          <p style="margin: 0; color: #ef4444; font-weight: bold; text-align: right;">{{.LineTotal}}</p>
        </div>
        {{end}}
      </div>
      <p style="color: #a3a3a3;">Ya puedes acceder a tus productos digitales y credenciales directamente desde tu panel de usuario.</p>
      <a href="{{.AccountURL}}" style="display: inline-block; background-color: #ef4444; color: #ffffff; text-decoration: none; padding: 14px 32px; border-radius: 8px; font-weight: 600;">Ver Mis Productos</a>
    </div>
    <p style="text-align: center; color: #666; font-size: 12px; margin-top: 30px;">Trujillo, Peru &#127477;&#127466;</p>
  </div>
</div>`))

type emailItem struct {
	Title     string
	Quantity  int
	LineTotal string
}

func orderCreatedEmail(order domain.Order, storeName, adminURL string) (subject, body string) {
	subject = fmt.Sprintf("Nueva Orden #%s - %s", order.OrderNumber, sanitize(order.CustomerName))
	var b strings.Builder
	_ = orderCreatedEmailTmpl.Execute(&b, map[string]any{
		"StoreName":     storeName,
		"OrderNumber":   order.OrderNumber,
		"CustomerName":  sanitize(order.CustomerName),
		"CustomerEmail": sanitize(order.CustomerEmail),
		"Amount":        displayAmount(order),
		"Method":        string(order.Method),
		"PaymentStatus": string(order.PaymentStatus),
		"AdminURL":      template.URL(adminURL),
	})
	return subject, b.String()
}

func paymentVerifiedEmail(order domain.Order, storeName, accountURL string) (subject, body string) {
	subject = fmt.Sprintf("Pago confirmado - Orden #%s", order.OrderNumber)
	items := make([]emailItem, 0, len(order.Items))
	prefix := "S/ "
	if order.Currency == domain.CurrencyUSD {
		prefix = "$ "
	}
	for _, item := range order.Items {
		items = append(items, emailItem{
			Title:     sanitize(item.Title),
			Quantity:  item.Quantity,
			LineTotal: prefix + domain.FormatAmount(item.UnitPrice*int64(item.Quantity)),
		})
	}
	var b strings.Builder
	_ = paymentVerifiedEmailTmpl.Execute(&b, map[string]any{
		"StoreName":    storeName,
		"OrderNumber":  order.OrderNumber,
		"CustomerName": sanitize(order.CustomerName),
		"Items":        items,
		"AccountURL":   template.URL(accountURL),
	})
	return subject, b.String()
}
