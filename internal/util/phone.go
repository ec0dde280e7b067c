package util

import "strings"

// PhoneKey is the join key between contacts and RSVPs: the phone with all
// spaces removed. Stored phones keep the spacing they were entered with.
func PhoneKey(p string) string {
	// TODO -  may use libphonenumber
	return strings.ReplaceAll(strings.TrimSpace(p), " ", "")
}
