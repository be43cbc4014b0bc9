// Package classify derives device, client and location attributes from the
// signals of a beacon fetch
package classify

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Classification is what a user agent says about the client that fetched a
// beacon. Every field is nil when the user agent is missing.
type Classification struct {
	Browser     *string
	OS          *string
	DeviceType  *string
	EmailClient *string
}

// Classify parses userAgent. It is a pure function and safe for concurrent
// use.
func Classify(userAgent *string) Classification {
	if userAgent == nil || strings.TrimSpace(*userAgent) == "" {
		return Classification{}
	}

	ua := useragent.New(*userAgent)
	browser, _ := ua.Browser()
	osName, _ := osNameVersion(ua)
	deviceType := deviceType(ua, *userAgent)

	return Classification{
		Browser:     nonEmpty(browser),
		OS:          nonEmpty(osName),
		DeviceType:  &deviceType,
		EmailClient: nonEmpty(EmailClient(*userAgent)),
	}
}

// Environment describes the browser a beacon was created from.
type Environment struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Device         string
	DeviceType     string
}

// DescribeEnvironment extracts versions and a device name on top of what
// Classify returns. Unknown values are left empty.
func DescribeEnvironment(userAgent string) Environment {
	if strings.TrimSpace(userAgent) == "" {
		return Environment{}
	}

	ua := useragent.New(userAgent)
	browser, browserVersion := ua.Browser()
	osName, osVersion := osNameVersion(ua)
	dt := deviceType(ua, userAgent)

	return Environment{
		Browser:        browser,
		BrowserVersion: browserVersion,
		OS:             osName,
		OSVersion:      osVersion,
		Device:         deviceName(ua.Platform(), osName, dt),
		DeviceType:     dt,
	}
}

func isApplePlatform(platform string) bool {
	switch platform {
	case "iPhone", "iPad", "iPod", "iPod touch":
		return true
	}
	return false
}

func osNameVersion(ua *useragent.UserAgent) (string, string) {
	info := ua.OSInfo()

	// The library reports whatever the UA calls it ("iPhone OS", "OS")
	if isApplePlatform(ua.Platform()) {
		return "iOS", info.Version
	}

	return info.Name, info.Version
}

func deviceType(ua *useragent.UserAgent, raw string) string {
	lower := strings.ToLower(raw)

	// iPads also carry a Mobile token, check tablets first
	if ua.Platform() == "iPad" || strings.Contains(lower, "tablet") {
		return DeviceTablet
	}

	if ua.Mobile() {
		return DeviceMobile
	}

	return DeviceDesktop
}

func deviceName(platform, osName, dt string) string {
	switch {
	case isApplePlatform(platform):
		if platform == "iPod touch" {
			return "iPod"
		}
		return platform
	case osName == "Android" && dt == DeviceTablet:
		return "Android Tablet"
	case osName == "Android":
		return "Android Phone"
	case dt == DeviceDesktop:
		return "Desktop"
	}

	return ""
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
