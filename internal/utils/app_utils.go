package utils

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// GetCookieDomain returns the domain session cookies are scoped to. Localhost
// and IP based app URLs get host-only cookies.
func GetCookieDomain(appURL string) (string, error) {
	parsed, err := url.Parse(appURL)
	if err != nil {
		return "", err
	}

	host := parsed.Hostname()

	if host == "" {
		return "", errors.New("app url has no host")
	}

	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return "", nil
	}

	_, err = publicsuffix.DomainFromListWithOptions(publicsuffix.DefaultList, host, nil)
	if err != nil {
		return "", errors.New("domain in public suffix list, cannot set cookies")
	}

	return host, nil
}

// GenerateIdentifier returns a short stable identifier, used to suffix cookie names.
func GenerateIdentifier(str string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(str))
	return strings.Split(id.String(), "-")[0]
}

// InAllowList reports whether value matches an entry of list. Entries are
// compared case-insensitively, entries wrapped in slashes are regexes.
func InAllowList(list []string, value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))

	if value == "" {
		return false
	}

	for _, entry := range list {
		entry = strings.TrimSpace(entry)

		if len(entry) > 2 && strings.HasPrefix(entry, "/") && strings.HasSuffix(entry, "/") {
			re, err := regexp.Compile("(?i)" + entry[1:len(entry)-1])
			if err != nil {
				continue
			}
			if re.MatchString(value) {
				return true
			}
			continue
		}

		if strings.ToLower(entry) == value {
			return true
		}
	}

	return false
}

// CleanList trims entries and drops empty ones.
func CleanList(list []string) []string {
	cleaned := make([]string, 0, len(list))
	for _, item := range list {
		if strings.TrimSpace(item) == "" {
			continue
		}
		cleaned = append(cleaned, strings.TrimSpace(item))
	}
	return cleaned
}
