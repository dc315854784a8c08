package scrape

import "math/rand"

// BrowserProfile is a consistent user agent and header set for one desktop browser.
type BrowserProfile struct {
	UserAgent       string
	AcceptLanguage  string
	SecChUa         string
	SecChUaPlatform string
}

var desktopProfiles = []BrowserProfile{
	{
		UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage:  "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
		SecChUa:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUaPlatform: `"macOS"`,
	},
	{
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage:  "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
		SecChUa:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUaPlatform: `"Windows"`,
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
		AcceptLanguage: "fr-FR,fr;q=0.8,en-US;q=0.5,en;q=0.3",
	},
}

// RandomProfile picks one of the desktop profiles.
func RandomProfile() BrowserProfile {
	return desktopProfiles[rand.Intn(len(desktopProfiles))]
}

// Headers returns the extra request headers matching the profile.
func (p BrowserProfile) Headers() map[string]string {
	h := map[string]string{
		"Accept-Language":           p.AcceptLanguage,
		"Upgrade-Insecure-Requests": "1",
	}
	if p.SecChUa != "" {
		h["Sec-Ch-Ua"] = p.SecChUa
		h["Sec-Ch-Ua-Mobile"] = "?0"
		h["Sec-Ch-Ua-Platform"] = p.SecChUaPlatform
	}
	return h
}
