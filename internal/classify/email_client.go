package classify

import "strings"

type emailClientRule struct {
	match func(ua string) bool
	label string
}

func contains(tokens ...string) func(string) bool {
	return func(ua string) bool {
		for _, t := range tokens {
			if strings.Contains(ua, t) {
				return true
			}
		}
		return false
	}
}

func both(a, b func(string) bool) func(string) bool {
	return func(ua string) bool {
		return a(ua) && b(ua)
	}
}

// Evaluated top to bottom against the lower-cased user agent, first match
// wins. Gmail has to stay first: its image proxy rewrites the fetch so any
// other client token in the string describes the original device, not the
// client that loaded the image.
var emailClientRules = []emailClientRule{
	{contains("googleimageproxy"), "Gmail"},
	{contains("microsoft outlook", "msoffice"), "Microsoft Outlook"},
	{contains("outlook-express"), "Outlook Express"},
	{contains("outlook.com"), "Outlook.com"},
	{contains("applemail"), "Apple Mail"},
	{contains("yahoomail"), "Yahoo Mail"},
	{contains("thunderbird"), "Mozilla Thunderbird"},
	{both(contains("iphone", "ipad"), contains("mail/")), "iOS Mail"},
	{both(contains("android"), contains("mail")), "Android Mail"},
	{contains("samsungemail"), "Samsung Mail"},
	{contains("mail/", "email/"), "Email Client"},
}

// EmailClient returns the mail client label for a user agent, or "" when no
// rule matches.
func EmailClient(userAgent string) string {
	ua := strings.ToLower(userAgent)

	for _, r := range emailClientRules {
		if r.match(ua) {
			return r.label
		}
	}

	return ""
}
