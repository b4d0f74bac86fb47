package gamepad

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fingerprints for devices the browser reports with a standard mapping
// and for devices nothing more specific is known about.
const (
	XInput = "XInput"
	DInput = "DInput"
)

var (
	chromeID  = regexp.MustCompile(`(?i)vendor:\s*([0-9a-f]{1,4})\s+product:\s*([0-9a-f]{1,4})`)
	firefoxID = regexp.MustCompile(`(?i)^([0-9a-f]{1,4})-([0-9a-f]{1,4})-`)
)

// Fingerprint derives the device identity from a Gamepad API id string:
// "XInput" for XInput devices and for ids Chrome marks as standard mapped,
// eight lowercase hex digits (vendor then product) when the id carries
// them, "DInput" otherwise.
func Fingerprint(id string) string {
	lower := strings.ToLower(id)
	if strings.Contains(lower, "xinput") || strings.Contains(lower, "standard gamepad") {
		return XInput
	}
	if m := chromeID.FindStringSubmatch(id); m != nil {
		return hexPair(m[1], m[2])
	}
	if m := firefoxID.FindStringSubmatch(id); m != nil {
		return hexPair(m[1], m[2])
	}
	return DInput
}

// DeviceFingerprint formats USB vendor/product ids as a fingerprint.
func DeviceFingerprint(vendor, product uint16) string {
	return fmt.Sprintf("%04x%04x", vendor, product)
}

// VendorPrefix returns the 4-hex-digit vendor part of a fingerprint, or ""
// for the symbolic fingerprints.
func VendorPrefix(fp string) string {
	if len(fp) != 8 {
		return ""
	}
	if _, err := strconv.ParseUint(fp, 16, 32); err != nil {
		return ""
	}
	return fp[:4]
}

func hexPair(vendor, product string) string {
	v, _ := strconv.ParseUint(vendor, 16, 16)
	p, _ := strconv.ParseUint(product, 16, 16)
	return DeviceFingerprint(uint16(v), uint16(p))
}

// Hat directions as SDL reports them.
const (
	hatUp    uint8 = 0x01
	hatRight uint8 = 0x02
	hatDown  uint8 = 0x04
	hatLeft  uint8 = 0x08
)

// HatAxis is where browsers expose a DirectInput hat switch.
const HatAxis = 9

// HatNeutral is the value browsers report for a centred hat. It is outside
// [-1,1] on purpose.
const HatNeutral = 9.0 / 7.0

// HatAxisValue encodes an SDL hat bitmask the way browsers expose a hat
// switch: one axis stepping clockwise from up=-1 in sevenths.
func HatAxisValue(hat uint8) float64 {
	switch hat {
	case hatUp:
		return -1
	case hatUp | hatRight:
		return -5.0 / 7.0
	case hatRight:
		return -3.0 / 7.0
	case hatDown | hatRight:
		return -1.0 / 7.0
	case hatDown:
		return 1.0 / 7.0
	case hatDown | hatLeft:
		return 3.0 / 7.0
	case hatLeft:
		return 5.0 / 7.0
	case hatUp | hatLeft:
		return 1
	}
	return HatNeutral
}
