package email

import (
	"fmt"
	"html"
	"strings"
)

// AccessRequest is what someone fills in on the contact-the-admin page.
type AccessRequest struct {
	Name  string
	Email string
	Note  string
}

// NewAccessRequestMessage builds the notification sent to the admin. Replies
// go straight to the requester.
func NewAccessRequestMessage(adminEmail string, req AccessRequest) Message {
	return Message{
		To:       adminEmail,
		ReplyTo:  req.Email,
		Category: CategoryAccessRequest,
		Subject:  fmt.Sprintf("UCL Walks access request from %s", req.Name),
		HTML:     buildAccessRequestHTML(req),
		Text:     buildAccessRequestText(req),
	}
}

func buildAccessRequestHTML(req AccessRequest) string {
	note := ""
	if strings.TrimSpace(req.Note) != "" {
		note = fmt.Sprintf("<blockquote style=\"border-left: 3px solid #319795; margin: 0; padding-left: 12px;\">%s</blockquote>",
			strings.ReplaceAll(html.EscapeString(req.Note), "\n", "<br>"))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1 style="color: #1a1a1a;">New access request</h1>
    <p><strong>%s</strong> (%s) would like an account on UCL Walks.</p>
    %s
    <p style="color: #666; font-size: 14px;">Reply to this email to get in touch with them.</p>
</body>
</html>`, html.EscapeString(req.Name), html.EscapeString(req.Email), note)
}

func buildAccessRequestText(req AccessRequest) string {
	text := fmt.Sprintf("New access request\n\n%s (%s) would like an account on UCL Walks.\n", req.Name, req.Email)
	if strings.TrimSpace(req.Note) != "" {
		text += "\n" + req.Note + "\n"
	}
	return text + "\nReply to this email to get in touch with them.\n"
}

// NewConfirmationCodeMessage builds the signup confirmation email.
func NewConfirmationCodeMessage(to, code string) Message {
	return Message{
		To:       to,
		Category: CategoryConfirmationCode,
		Subject:  "Your UCL Walks confirmation code",
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1 style="color: #1a1a1a;">Confirm your account</h1>
    <p>Your confirmation code is:</p>
    <p style="font-size: 28px; letter-spacing: 4px; font-weight: bold;">%s</p>
</body>
</html>`, html.EscapeString(code)),
		Text: fmt.Sprintf("Confirm your account\n\nYour confirmation code is: %s\n", code),
	}
}
