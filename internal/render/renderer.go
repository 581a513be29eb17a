package render

import (
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/inkwell/courier/internal/domain"
)

// Message is a fully rendered, personalized email for one subscriber.
type Message struct {
	Subject  string
	TextBody string
	HTMLBody string
}

// The issue body is author-provided HTML and passes through unescaped;
// the subscriber email in the footer is escaped by html/template.
const htmlBody = `{{.Content}}
<hr>
<p>You are receiving this issue because {{.Email}} subscribed to this newsletter.</p>
`

const textBody = `{{.Content}}

--
You are receiving this issue because {{.Email}} subscribed to this newsletter.
`

// Renderer combines issue content with a subscriber address to produce a
// personalized message. Rendering the same inputs always yields the same
// result, so a render failure is permanent: the dispatcher abandons the
// task instead of retrying.
type Renderer struct {
	html *template.Template
	text *texttemplate.Template
}

func New() *Renderer {
	return &Renderer{
		html: template.Must(template.New("html").Parse(htmlBody)),
		text: texttemplate.Must(texttemplate.New("text").Parse(textBody)),
	}
}

func (r *Renderer) Render(issue *domain.Issue, subscriberEmail string) (*Message, error) {
	if issue.Title == "" || issue.TextContent == "" || issue.HTMLContent == "" {
		return nil, fmt.Errorf("issue %s has empty content", issue.ID)
	}

	var html strings.Builder
	err := r.html.Execute(&html, struct {
		Content template.HTML
		Email   string
	}{
		Content: template.HTML(issue.HTMLContent),
		Email:   subscriberEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	var text strings.Builder
	err = r.text.Execute(&text, struct {
		Content string
		Email   string
	}{
		Content: issue.TextContent,
		Email:   subscriberEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}

	return &Message{
		Subject:  issue.Title,
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}
