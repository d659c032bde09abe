// Package graph implements a Provider that mails the generated document to
// preview recipients through the Microsoft Graph sendMail endpoint.
package graph

import "github.com/shineum/slicemail/internal/email"

// sendMailRequest is the request body for the sendMail endpoint.
type sendMailRequest struct {
	Message         message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

type message struct {
	Subject      string      `json:"subject"`
	Body         itemBody    `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
	CcRecipients []recipient `json:"ccRecipients,omitempty"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

// tokenResponse represents the OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// errorResponse represents an error response from the Graph API.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newSendMailRequest wraps the HTML document in a sendMail request body.
func newSendMailRequest(msg *email.Email, saveToSent bool) *sendMailRequest {
	return &sendMailRequest{
		Message: message{
			Subject: msg.Subject,
			Body: itemBody{
				ContentType: "HTML",
				Content:     msg.HtmlBody,
			},
			ToRecipients: recipients(msg.To),
			CcRecipients: recipients(msg.Cc),
		},
		SaveToSentItems: saveToSent,
	}
}

func recipients(addrs []string) []recipient {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, recipient{EmailAddress: emailAddress{Address: a}})
	}
	return out
}
