// Package formid translates between runtime form IDs and load-order-stable
// persistent IDs of the form "Plugin.esp|0x000ABC".
//
// A runtime form ID is a process-unique 32-bit value whose high byte is the
// plugin slot assigned at load time. Light plugins share the 0xFE slot and
// carry a 12-bit light index, leaving 12 bits for the local ID; regular
// plugins keep 24 local bits. Because slot assignment depends on load order,
// anything written to disk uses the persistent form instead.
package formid

import (
	"fmt"
	"strconv"
	"strings"
)

// FormID is a runtime 32-bit form identifier.
type FormID uint32

// LightSlot is the shared high byte of all light-plugin form IDs.
const LightSlot = 0xFE

// IsLight reports whether the ID belongs to a light plugin.
func (id FormID) IsLight() bool {
	return uint32(id)>>24 == LightSlot
}

// Local returns the plugin-local part of the ID (12 bits for light plugins,
// 24 bits otherwise).
func (id FormID) Local() uint32 {
	if id.IsLight() {
		return uint32(id) & 0xFFF
	}
	return uint32(id) & 0xFFFFFF
}

// String formats the ID the way the host logs form IDs.
func (id FormID) String() string {
	return fmt.Sprintf("0x%08X", uint32(id))
}

// ParseHex parses a "0x12AB34CD" (or bare hex) string into a FormID.
func ParseHex(s string) (FormID, error) {
	clean := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if clean == "" {
		return 0, fmt.Errorf("empty form id")
	}
	v, err := strconv.ParseUint(clean, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse form id %q: %w", s, err)
	}
	return FormID(v), nil
}
