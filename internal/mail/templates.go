package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
)

var verifyTemplate = template.Must(template.New("verify").Parse(`
<html>
  <body style="font-family:Arial,sans-serif">
    <h2>Bienvenue sur yaoundeConnect</h2>
    <p>Cliquez sur le lien pour confirmer votre adresse e-mail :</p>
    <p><a href="{{.Link}}">Confirmer mon adresse</a></p>
    <p>Si vous n'avez pas créé de compte, ignorez ce message.</p>
  </body>
</html>`))

var moderationTemplate = template.Must(template.New("moderation").Parse(`
<html>
  <body style="font-family:Arial,sans-serif">
    <h2>{{.Title}}</h2>
    <p>Votre point d'intérêt <strong>{{.POIName}}</strong> {{.Outcome}}.</p>
    {{if .Detail}}<p>Commentaire du modérateur : {{.Detail}}</p>{{end}}
  </body>
</html>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<html>
  <body style="font-family:Arial,sans-serif">
    <h2>Votre compte est actif</h2>
    <p>Merci d'avoir confirmé votre adresse. Vous pouvez maintenant explorer
    et commenter les points d'intérêt de Yaoundé.</p>
  </body>
</html>`))

var passwordTemplate = template.Must(template.New("password").Parse(`
<html>
  <body style="font-family:Arial,sans-serif">
    <h2>Mot de passe modifié</h2>
    <p>Le mot de passe de votre compte yaoundeConnect vient d'être changé.</p>
    <p>Si vous n'êtes pas à l'origine de ce changement, contactez un administrateur.</p>
  </body>
</html>`))

// RenderVerifyEmail produces the account verification message body.
func RenderVerifyEmail(baseURL, token string) (string, error) {
	link := fmt.Sprintf("%s?token=%s", baseURL, url.QueryEscape(token))
	var buf bytes.Buffer
	if err := verifyTemplate.Execute(&buf, struct{ Link string }{Link: link}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderWelcomeEmail produces the message sent once an account is verified.
func RenderWelcomeEmail() (string, error) {
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPasswordEmail produces the password-change notice.
func RenderPasswordEmail() (string, error) {
	var buf bytes.Buffer
	if err := passwordTemplate.Execute(&buf, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderModerationEmail produces the message sent to a POI creator after a
// moderation decision.
func RenderModerationEmail(eventType, poiName, detail string) (subject, body string, err error) {
	data := struct {
		Title   string
		POIName string
		Outcome string
		Detail  string
	}{POIName: poiName, Detail: detail}

	switch eventType {
	case "poi.approved":
		subject = "Votre point d'intérêt a été approuvé"
		data.Title = "Point d'intérêt approuvé"
		data.Outcome = "a été approuvé et est maintenant visible dans l'annuaire"
	case "poi.rejected":
		subject = "Votre point d'intérêt a été rejeté"
		data.Title = "Point d'intérêt rejeté"
		data.Outcome = "a été rejeté"
	default:
		subject = "Mise à jour de votre point d'intérêt"
		data.Title = "Mise à jour"
		data.Outcome = "a été mis à jour"
	}

	var buf bytes.Buffer
	if err := moderationTemplate.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
