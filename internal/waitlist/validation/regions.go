package validation

import (
	"regexp"
	"slices"
	"strings"
)

// Region is a dial-code region with its phone digit-count rule.
type Region struct {
	DialCode    string   `json:"dial_code"`
	Label       string   `json:"label"`
	AreaCodes   []string `json:"area_codes"`
	Placeholder string   `json:"placeholder"`
	MinDigits   int      `json:"min_digits"`
	MaxDigits   int      `json:"max_digits"`
	Message     string   `json:"-"`
}

// Accepts reports whether a digits-only number satisfies the region's rule.
func (r Region) Accepts(digits string) bool {
	n := len(digits)
	return n >= r.MinDigits && n <= r.MaxDigits
}

const defaultPhonePlaceholder = "Enter your phone number"

// regions is ordered; area-code resolution takes the first match.
var regions = []Region{
	{
		DialCode:    "+1",
		Label:       "North America (+1)",
		AreaCodes:   []string{"201", "202", "203", "205", "206", "207", "208", "209", "210", "212", "213", "214", "215", "216", "217", "218", "219", "220", "224", "225"},
		Placeholder: "(555) 000-0000",
		MinDigits:   10,
		MaxDigits:   10,
		Message:     "Please enter a valid 10-digit phone number",
	},
	{
		DialCode:    "+44",
		Label:       "United Kingdom (+44)",
		AreaCodes:   []string{"20", "113", "114", "115", "116", "117", "118", "121", "131", "141", "151"},
		Placeholder: defaultPhonePlaceholder,
		MinDigits:   10,
		MaxDigits:   11,
		Message:     "Please enter a valid UK phone number",
	},
	{
		DialCode:    "+91",
		Label:       "India (+91)",
		AreaCodes:   []string{"11", "22", "33", "44", "80", "40", "79", "20", "92", "484"},
		Placeholder: defaultPhonePlaceholder,
		MinDigits:   10,
		MaxDigits:   10,
		Message:     "Please enter a valid 10-digit phone number",
	},
	{
		DialCode:    "+61",
		Label:       "Australia (+61)",
		AreaCodes:   []string{"2", "3", "4", "7", "8"},
		Placeholder: defaultPhonePlaceholder,
		MinDigits:   9,
		MaxDigits:   10,
		Message:     "Please enter a valid Australian phone number",
	},
	{
		DialCode:    "+86",
		Label:       "China (+86)",
		AreaCodes:   []string{"10", "20", "21", "22", "23", "24", "25", "27", "28", "29"},
		Placeholder: defaultPhonePlaceholder,
		MinDigits:   11,
		MaxDigits:   11,
		Message:     "Please enter a valid Chinese phone number",
	},
	{
		DialCode:    "+33",
		Label:       "France (+33)",
		AreaCodes:   []string{"1", "2", "3", "4", "5"},
		Placeholder: defaultPhonePlaceholder,
		MinDigits:   9,
		MaxDigits:   9,
		Message:     "Please enter a valid French phone number",
	},
	{
		DialCode:    "+49",
		Label:       "Germany (+49)",
		AreaCodes:   []string{"30", "40", "69", "89", "201"},
		Placeholder: defaultPhonePlaceholder,
		MinDigits:   10,
		MaxDigits:   11,
		Message:     "Please enter a valid German phone number",
	},
	{
		DialCode:    "+81",
		Label:       "Japan (+81)",
		AreaCodes:   []string{"3", "6", "11", "22", "45", "52", "82", "92", "93", "99"},
		Placeholder: defaultPhonePlaceholder,
		MinDigits:   10,
		MaxDigits:   11,
		Message:     "Please enter a valid Japanese phone number",
	},
}

// byDialCode indexes regions for direct token lookup.
var byDialCode = func() map[string]Region {
	m := make(map[string]Region, len(regions))
	for _, r := range regions {
		m[r.DialCode] = r
	}
	return m
}()

// fallbackRegion applies to well-formed dial codes outside the table.
var fallbackRegion = Region{
	Label:       "Other",
	Placeholder: defaultPhonePlaceholder,
	MinDigits:   7,
	MaxDigits:   15,
	Message:     "Please enter a valid phone number",
}

var dialCodePattern = regexp.MustCompile(`^\+[0-9]{1,4}$`)

// Regions returns the known regions in display order.
func Regions() []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = r.clone()
	}
	return out
}

// clone detaches the area-code table so callers cannot edit the shared one.
func (r Region) clone() Region {
	r.AreaCodes = slices.Clone(r.AreaCodes)
	return r
}

// ResolveRegion maps a region token to its rule. The token is either a dial
// code ("+44") or a locally entered area code ("212") matched by prefix
// against each region's area-code table in order.
func ResolveRegion(token string) (Region, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Region{}, false
	}
	if r, ok := byDialCode[token]; ok {
		return r.clone(), true
	}
	for _, r := range regions {
		for _, code := range r.AreaCodes {
			if strings.HasPrefix(token, code) {
				return r.clone(), true
			}
		}
	}
	if dialCodePattern.MatchString(token) {
		fb := fallbackRegion
		fb.DialCode = token
		return fb, true
	}
	return Region{}, false
}
