// ABOUTME: Device list normalisation and selection
// ABOUTME: Drops synthetic alias entries and resolves the default by label
package device

import "strings"

// aliasIDs are synthetic entries some backends add alongside real devices.
var aliasIDs = map[string]bool{
	"default":        true,
	"communications": true,
}

// Normalize removes alias entries. Device ids are opaque and can rotate,
// so when no real entry is flagged default the alias label ("Default -
// Name") is matched against device names instead.
func Normalize(list []Info) []Info {
	var defaultLabel string
	out := make([]Info, 0, len(list))
	hasDefault := false

	for _, d := range list {
		if aliasIDs[strings.ToLower(d.ID)] {
			if strings.ToLower(d.ID) == "default" {
				defaultLabel = aliasTarget(d.Name)
			}
			continue
		}
		if d.Name == "" {
			d.Name = shortID(d.ID)
		}
		hasDefault = hasDefault || d.IsDefault
		out = append(out, d)
	}

	if !hasDefault && defaultLabel != "" {
		for i := range out {
			if out[i].Name == defaultLabel {
				out[i].IsDefault = true
				break
			}
		}
	}
	return out
}

// Select picks preferred when present, else the default, else the first
// device. It returns "" for an empty list.
func Select(list []Info, preferred string) string {
	if preferred != "" {
		for _, d := range list {
			if d.ID == preferred {
				return d.ID
			}
		}
	}
	for _, d := range list {
		if d.IsDefault {
			return d.ID
		}
	}
	if len(list) > 0 {
		return list[0].ID
	}
	return ""
}

// Contains reports whether id is in list.
func Contains(list []Info, id string) bool {
	for _, d := range list {
		if d.ID == id {
			return true
		}
	}
	return false
}

func aliasTarget(label string) string {
	for _, prefix := range []string{"Default - ", "Communications - "} {
		if strings.HasPrefix(label, prefix) {
			return strings.TrimPrefix(label, prefix)
		}
	}
	return label
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[:6]
	}
	return id
}
