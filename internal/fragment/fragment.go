// Package fragment renders the HTML email document that stacks the header,
// body and footer images of a campaign.
package fragment

import (
	"html"
	"strings"
)

// Fixed alt texts, one per slot.
const (
	HeaderAlt = "Header Municipalidad"
	BodyAlt   = "Maipú crece en obras"
	FooterAlt = "Footer Municipalidad"
)

// Title is the document <title>.
const Title = "Maipú crece en obras"

// Placeholder is rendered when no image is available at all.
const Placeholder = "(Sin imágenes disponibles)"

const imgStyle = "display:block; width:100%; max-width:600px; height:auto; border:0; outline:0;"

const linkStyle = "text-decoration:none; border:0; outline:0; display:inline-block;"

const openRow = `        <tr><td align="center">`

const closeRow = "        </td></tr>"

// Build returns the complete HTML document for the given image URLs.
// An empty string means the slot is absent. bodyLink only ever wraps the body
// image and is dropped when there is no body.
//
// Build is pure: the same arguments always produce the same bytes.
func Build(headerURL, bodyURL, footerURL, bodyLink string) string {
	var rows []string

	if headerURL != "" {
		rows = append(rows,
			openRow,
			`          <img src="`+attr(headerURL)+`" alt="`+HeaderAlt+`" style="`+imgStyle+`">`,
			closeRow,
		)
	}

	if bodyURL != "" {
		var openLink, closeLink string
		if bodyLink != "" {
			openLink = `          <a href="` + attr(bodyLink) + `" target="_blank" style="` + linkStyle + `">`
			closeLink = "          </a>"
		}
		// Without a link the anchor lines are emitted empty.
		rows = append(rows,
			openRow,
			openLink,
			`            <img src="`+attr(bodyURL)+`" alt="`+BodyAlt+`" style="`+imgStyle+`">`,
			closeLink,
			closeRow,
		)
	}

	if footerURL != "" {
		rows = append(rows,
			openRow,
			`          <img src="`+attr(footerURL)+`" alt="`+FooterAlt+`" style="`+imgStyle+`">`,
			closeRow,
		)
	}

	if headerURL == "" && bodyURL == "" && footerURL == "" {
		rows = append(rows,
			`        <tr><td align="center" style="font-family:Arial, sans-serif; font-size:14px; color:#111827; padding:20px;">`,
			"          "+Placeholder,
			closeRow,
		)
	}

	return strings.Join([]string{
		"<!DOCTYPE html>",
		`<html lang="es">`,
		"<head>",
		`  <meta charset="UTF-8">`,
		"  <title>" + Title + "</title>",
		`  <meta name="viewport" content="width=device-width, initial-scale=1.0">`,
		"</head>",
		`<body style="margin:0; padding:0; background-color:#ffffff;">`,
		`  <table align="center" border="0" cellpadding="0" cellspacing="0" width="100%" style="background-color:#ffffff;">`,
		`    <tr><td align="center">`,
		`      <table align="center" border="0" cellpadding="0" cellspacing="0" width="100%" style="max-width:600px; border-collapse:collapse; background-color:#ffffff;">`,
		strings.Join(rows, "\n"),
		"      </table>",
		"    </td></tr>",
		"  </table>",
		"</body>",
		"</html>",
	}, "\n")
}

// attr escapes a value for use inside a double-quoted attribute.
func attr(s string) string {
	return html.EscapeString(s)
}
