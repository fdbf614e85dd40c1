package mailer

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Invite describes one meeting invitation to compose.
type Invite struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Link        string
	MeetingID   string
	Organizer   string
	Recipient   string
	IsModerator bool
}

// ComposeInvite builds the invitation message for one recipient,
// including an ICS calendar attachment.
func ComposeInvite(inv *Invite) *Message {
	roleLine := "You are invited to join a video meeting."
	action := "Join the meeting"
	if inv.IsModerator {
		roleLine = "You are the host of a video meeting. Opening your link starts the room for everyone."
		action = "Start the meeting"
	}

	summary := inv.Summary
	if summary == "" {
		summary = "Video meeting"
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(summary))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(roleLine))
	if inv.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(inv.Description))
	}
	fmt.Fprintf(&b, "<p><b>When:</b> %s &ndash; %s</p>",
		inv.Start.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		inv.End.UTC().Format("15:04 MST"))
	fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`, inv.Link, html.EscapeString(action))
	b.WriteString("<p>The link is personal. Please do not forward it.</p>")
	b.WriteString("</body></html>")

	text := fmt.Sprintf("%s\n\n%s\n\nWhen: %s - %s\n\n%s: %s\n\nThe link is personal. Please do not forward it.\n",
		summary, roleLine,
		inv.Start.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		inv.End.UTC().Format("15:04 MST"),
		action, inv.Link)

	return &Message{
		To:      []string{inv.Recipient},
		Subject: fmt.Sprintf("Meeting invitation: %s", summary),
		HTML:    b.String(),
		Text:    text,
		Attachments: []Attachment{
			{
				Filename:    "invite.ics",
				ContentType: "text/calendar; method=REQUEST",
				Content:     []byte(BuildICS(inv)),
			},
		},
	}
}

const icsTimeLayout = "20060102T150405Z"

// BuildICS renders an RFC 5545 calendar request for the invite.
func BuildICS(inv *Invite) string {
	summary := inv.Summary
	if summary == "" {
		summary = "Video meeting"
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//aegis-meet//meeting//EN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:" + escapeICS(inv.MeetingID) + "@aegis-meet",
		"DTSTAMP:" + time.Now().UTC().Format(icsTimeLayout),
		"DTSTART:" + inv.Start.UTC().Format(icsTimeLayout),
		"DTEND:" + inv.End.UTC().Format(icsTimeLayout),
		"SUMMARY:" + escapeICS(summary),
	}
	if inv.Description != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICS(inv.Description))
	}
	if inv.Link != "" {
		lines = append(lines, "URL:"+escapeICS(inv.Link))
	}
	if inv.Organizer != "" {
		lines = append(lines, "ORGANIZER:mailto:"+inv.Organizer)
	}
	if inv.Recipient != "" {
		lines = append(lines, "ATTENDEE;RSVP=TRUE:mailto:"+inv.Recipient)
	}
	lines = append(lines,
		"END:VEVENT",
		"END:VCALENDAR",
	)

	return strings.Join(lines, "\r\n") + "\r\n"
}

// escapeICS escapes the characters RFC 5545 treats as special in text values.
func escapeICS(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
	)
	return r.Replace(s)
}
