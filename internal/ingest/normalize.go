package ingest

import (
	"net/mail"
	"net/url"
	"strings"

	"github.com/shivortex/lead-scraper/internal/model"
)

// Phone numbers must have between minPhoneDigits and maxPhoneDigits digits
// (E.164 allows at most 15).
const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// disposableDomains are throwaway mailbox providers. Addresses on them are
// dropped like malformed ones.
var disposableDomains = map[string]bool{
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"sharklasers.com":   true,
	"tempmail.com":      true,
	"throwaway.email":   true,
	"trashmail.com":     true,
	"yopmail.com":       true,
}

// Normalize cleans a raw listing into a lead. Text fields are trimmed with
// inner whitespace collapsed; email is lowercased. A field that fails its
// format check is set to nil and reported in dropped; the record itself is
// kept. Required-field checks are left to the caller.
func Normalize(raw model.RawListing) (lead model.Lead, dropped []model.FieldError) {
	lead = model.Lead{
		Name:      clean(raw.Name),
		Category:  clean(raw.Category),
		Address:   clean(raw.Address),
		City:      clean(raw.City),
		SourceURL: clean(raw.SourceURL),
	}

	if v := clean(raw.Email); v != nil {
		if email, ok := normalizeEmail(*v); ok {
			lead.Email = &email
		} else {
			dropped = append(dropped, model.FieldError{Field: "email", Message: "invalid or disposable address"})
		}
	}

	if v := clean(raw.Phone); v != nil {
		if validPhone(*v) {
			lead.Phone = v
		} else {
			dropped = append(dropped, model.FieldError{Field: "phone", Message: "invalid phone number"})
		}
	}

	if v := clean(raw.Website); v != nil {
		if site, ok := normalizeWebsite(*v); ok {
			lead.Website = &site
		} else {
			dropped = append(dropped, model.FieldError{Field: "website", Message: "invalid url"})
		}
	}

	if errs := model.CheckCoordinates(raw.Latitude, raw.Longitude); len(errs) > 0 {
		dropped = append(dropped, errs...)
	} else {
		lead.Latitude, lead.Longitude = raw.Latitude, raw.Longitude
	}

	return lead, dropped
}

func clean(s *string) *string {
	if s == nil {
		return nil
	}
	return model.Str(strings.Join(strings.Fields(*s), " "))
}

func normalizeEmail(s string) (string, bool) {
	s = strings.TrimPrefix(strings.ToLower(s), "mailto:")
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", false
	}
	_, domain, ok := strings.Cut(addr.Address, "@")
	if !ok || !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", false
	}
	if disposableDomains[domain] {
		return "", false
	}
	return addr.Address, true
}

func validPhone(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}

// normalizeWebsite accepts absolute http(s) URLs and bare domains, which get
// an https scheme.
func normalizeWebsite(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, " ") || (!strings.Contains(host, ".") && host != "localhost") {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String(), true
}
