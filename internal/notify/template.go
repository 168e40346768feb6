package notify

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const ticketEmailHTML = `<!DOCTYPE html>
<html>
<body>
<p>Hi {{.AttendeeName}},</p>
<p>Your payment was received. Here is your ticket for <strong>{{.EventTitle}}</strong>.</p>
<table>
<tr><td>Date</td><td>{{.EventStartsAt.Format "Mon, 02 Jan 2006 15:04 MST"}}</td></tr>
{{if .EventLocation}}<tr><td>Location</td><td>{{.EventLocation}}</td></tr>{{end}}
<tr><td>Ticket code</td><td><code>{{.TicketCode}}</code></td></tr>
</table>
<p>Show this QR code at the entrance:</p>
{{if .QRURL}}<p><img src="{{.QRURL}}" alt="{{.TicketCode}}" width="256" height="256"></p>
{{else}}<p><img src="cid:ticket-qr" alt="{{.TicketCode}}" width="256" height="256"></p>
{{end}}<p>See you there!</p>
</body>
</html>
`

var ticketTemplate = template.Must(template.New("ticket").Parse(ticketEmailHTML))

func renderHTML(msg TicketMessage) (string, error) {
	var buf bytes.Buffer
	if err := ticketTemplate.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// htmlToText flattens the rendered HTML into the plain-text alternative.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	var lines []string
	doc.Find("p, tr").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "tr" {
			cells := s.Find("td").Map(func(_ int, td *goquery.Selection) string {
				return strings.TrimSpace(td.Text())
			})
			lines = append(lines, strings.Join(cells, ": "))
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})
	return strings.Join(lines, "\n"), nil
}

func subjectFor(msg TicketMessage) string {
	return "Your ticket for " + msg.EventTitle
}
