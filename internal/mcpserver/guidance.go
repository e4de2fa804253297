package mcpserver

import (
	"strings"
)

// emailAdvice is a plain rule lookup over known account conventions; the
// portal only issues accounts under these domains and rejects everything
// else at the login form with an unhelpful generic message.
var knownAccountDomains = []string{
	"example-school.jp",
	"stu.example-school.jp",
}

type emailCheck struct {
	Email    string `json:"email"`
	Valid    bool   `json:"valid"`
	Guidance string `json:"guidance"`
}

func emailAdvice(email string) emailCheck {
	email = strings.TrimSpace(email)

	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return emailCheck{
			Email:    email,
			Guidance: "This is not an email address. Use the full school-issued address, e.g. name@stu.example-school.jp.",
		}
	}

	domain := strings.ToLower(email[at+1:])
	for _, known := range knownAccountDomains {
		if domain == known {
			return emailCheck{
				Email:    email,
				Valid:    true,
				Guidance: "This looks like a school-issued address. If login still fails, reset the password from the portal's login page.",
			}
		}
	}

	return emailCheck{
		Email: email,
		Guidance: "The portal only accepts school-issued addresses (" +
			strings.Join(knownAccountDomains, ", ") +
			"). Personal addresses cannot log in.",
	}
}
