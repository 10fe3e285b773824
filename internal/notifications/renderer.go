package notifications

import "strings"

// Template names resolved by the renderer.
const (
	TemplateDefault           = "default"
	TemplateOrderConfirmation = "order_confirmation"
	TemplatePasswordReset     = "password_reset"
)

var templates = map[string]string{
	TemplateDefault: `<html>
<body>
    <h2>{{subject}}</h2>
    <p>{{message}}</p>
    <p>Best regards,<br>ElectroMart Team</p>
</body>
</html>`,
	TemplateOrderConfirmation: `<html>
<body>
    <h2>Order Confirmation</h2>
    <p>Dear {{user.firstName}},</p>
    <p>Your order #{{orderNumber}} has been confirmed.</p>
    <p>Total: ${{total}}</p>
    <p>Thank you for shopping with ElectroMart!</p>
</body>
</html>`,
	TemplatePasswordReset: `<html>
<body>
    <h2>Password Reset</h2>
    <p>Dear {{user.firstName}},</p>
    <p>Click the link below to reset your password:</p>
    <a href="{{resetLink}}">Reset Password</a>
    <p>This link will expire in 1 hour.</p>
</body>
</html>`,
}

// Renderer substitutes user and data fields into a fixed set of named
// templates. Rendering is best-effort and never fails: unknown template
// names fall back to the default template and unmatched placeholders are
// left verbatim.
type Renderer struct {
	templates map[string]string
}

// NewRenderer creates a renderer over the built-in template set.
func NewRenderer() *Renderer {
	return &Renderer{templates: templates}
}

// Render resolves the named template and substitutes its placeholders.
func (r *Renderer) Render(name string, data, userFields map[string]string) string {
	tmpl, ok := r.templates[name]
	if !ok {
		tmpl = r.templates[TemplateDefault]
	}
	return r.RenderText(tmpl, data, userFields)
}

// RenderText replaces all `{{user.<key>}}` placeholders from userFields,
// then all `{{<key>}}` placeholders from data.
func (r *Renderer) RenderText(text string, data, userFields map[string]string) string {
	for key, value := range userFields {
		text = strings.ReplaceAll(text, "{{user."+key+"}}", value)
	}
	for key, value := range data {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}
