package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2 style="color: #0f766e;">Monitora Saúde</h2>
  <p>Olá{{if .Name}}, {{.Name}}{{end}}!</p>
  <p>Recebemos um pedido para redefinir a senha da sua conta.</p>
  <p><a href="{{.Link}}" style="background: #0f766e; color: #ffffff; padding: 10px 18px; border-radius: 6px; text-decoration: none;">Redefinir senha</a></p>
  <p>O link expira em {{.Expires}}. Se você não fez este pedido, ignore este e-mail.</p>
</body>
</html>`))

// PasswordResetMessage monta o e-mail de redefinição de senha.
func PasswordResetMessage(to, name, link string, ttl time.Duration) (Message, error) {
	data := struct {
		Name    string
		Link    string
		Expires string
	}{Name: name, Link: link, Expires: humanize(ttl)}

	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, data); err != nil {
		return Message{}, err
	}

	text := fmt.Sprintf("Olá! Para redefinir sua senha do Monitora Saúde acesse %s (válido por %s).", link, data.Expires)
	return Message{
		To:      to,
		ToName:  name,
		Subject: "Redefinição de senha - Monitora Saúde",
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hora"
		}
		return fmt.Sprintf("%d horas", h)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutos", int(d/time.Minute))
	default:
		return d.String()
	}
}
