package discovery

import (
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Bonjour TXT keys of the _hap._tcp service.
const (
	TXTKeyConfigNumber    = "c#"
	TXTKeyFeatureFlags    = "ff"
	TXTKeyDeviceID        = "id"
	TXTKeyModel           = "md"
	TXTKeyProtocolVersion = "pv"
	TXTKeyStateNumber     = "s#"
	TXTKeyStatusFlags     = "sf"
	TXTKeyCategory        = "ci"
	TXTKeySetupHash       = "sh"
)

// ProtocolVersion is the advertised HAP protocol version.
const ProtocolVersion = "1.1"

// StatusFlags is the sf bitmask.
type StatusFlags uint8

const (
	// StatusFlagNotPaired is set while the accessory has no pairing.
	StatusFlagNotPaired StatusFlags = 0x01
	// StatusFlagNotConfiguredForWiFi is set for unconfigured Wi-Fi accessories.
	StatusFlagNotConfiguredForWiFi StatusFlags = 0x02
	// StatusFlagProblem signals a problem detected on the accessory.
	StatusFlagProblem StatusFlags = 0x04
)

// Category is the accessory category identifier (ci).
type Category uint16

// Common accessory categories.
const (
	CategoryOther      Category = 1
	CategoryBridge     Category = 2
	CategoryFan        Category = 3
	CategoryGarageDoor Category = 4
	CategoryLightbulb  Category = 5
	CategoryDoorLock   Category = 6
	CategoryOutlet     Category = 7
	CategorySwitch     Category = 8
	CategoryThermostat Category = 9
	CategorySensor     Category = 10
)

// TXT holds the TXT record of a HAP accessory.
type TXT struct {
	// ConfigNumber changes whenever the accessory database changes.
	// Values start at 1 and wrap to 1 after 65535.
	ConfigNumber uint32

	// FeatureFlags advertises pairing features. Zero for software
	// authentication.
	FeatureFlags uint8

	// DeviceID is the accessory pairing identifier ("XX:XX:XX:XX:XX:XX").
	DeviceID string

	// Model is the model name.
	Model string

	// ProtocolVersion defaults to ProtocolVersion.
	ProtocolVersion string

	// StateNumber is always 1 for IP accessories.
	StateNumber uint32

	// StatusFlags reflects the pairing state.
	StatusFlags StatusFlags

	// Category is the primary accessory category.
	Category Category

	// SetupHash is derived from the setup ID and device ID. Optional.
	SetupHash string
}

// Paired reports whether the record advertises a paired accessory.
func (t TXT) Paired() bool {
	return t.StatusFlags&StatusFlagNotPaired == 0
}

// Validate checks required fields.
func (t TXT) Validate() error {
	if t.DeviceID == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidTXTRecord, TXTKeyDeviceID)
	}
	if t.Model == "" {
		return fmt.Errorf("%w: missing %s", ErrInvalidTXTRecord, TXTKeyModel)
	}
	if t.ConfigNumber == 0 {
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalidTXTRecord, TXTKeyConfigNumber)
	}
	if t.Category == 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidTXTRecord, TXTKeyCategory)
	}
	return nil
}

// Encode returns the TXT strings in key=value form.
func (t TXT) Encode() []string {
	pv := t.ProtocolVersion
	if pv == "" {
		pv = ProtocolVersion
	}
	sn := t.StateNumber
	if sn == 0 {
		sn = 1
	}
	txt := []string{
		TXTKeyConfigNumber + "=" + strconv.FormatUint(uint64(t.ConfigNumber), 10),
		TXTKeyFeatureFlags + "=" + strconv.FormatUint(uint64(t.FeatureFlags), 10),
		TXTKeyDeviceID + "=" + t.DeviceID,
		TXTKeyModel + "=" + t.Model,
		TXTKeyProtocolVersion + "=" + pv,
		TXTKeyStateNumber + "=" + strconv.FormatUint(uint64(sn), 10),
		TXTKeyStatusFlags + "=" + strconv.FormatUint(uint64(t.StatusFlags), 10),
		TXTKeyCategory + "=" + strconv.FormatUint(uint64(t.Category), 10),
	}
	if t.SetupHash != "" {
		txt = append(txt, TXTKeySetupHash+"="+t.SetupHash)
	}
	return txt
}

// ParseTXT parses TXT strings into key/value pairs. Entries without "=" are
// boolean keys with an empty value.
func ParseTXT(records []string) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		k, v, _ := strings.Cut(r, "=")
		m[k] = v
	}
	return m
}

// DecodeTXT parses a HAP TXT record.
func DecodeTXT(records []string) (TXT, error) {
	m := ParseTXT(records)
	var (
		t   TXT
		err error
	)
	uintField := func(key string, bits int) uint64 {
		if err != nil {
			return 0
		}
		s, ok := m[key]
		if !ok {
			return 0
		}
		var v uint64
		v, err = strconv.ParseUint(s, 10, bits)
		if err != nil {
			err = fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, key, s)
		}
		return v
	}

	t.ConfigNumber = uint32(uintField(TXTKeyConfigNumber, 32))
	t.FeatureFlags = uint8(uintField(TXTKeyFeatureFlags, 8))
	t.StateNumber = uint32(uintField(TXTKeyStateNumber, 32))
	t.StatusFlags = StatusFlags(uintField(TXTKeyStatusFlags, 8))
	t.Category = Category(uintField(TXTKeyCategory, 16))
	if err != nil {
		return TXT{}, err
	}
	t.DeviceID = m[TXTKeyDeviceID]
	t.Model = m[TXTKeyModel]
	t.ProtocolVersion = m[TXTKeyProtocolVersion]
	t.SetupHash = m[TXTKeySetupHash]
	if err := t.Validate(); err != nil {
		return TXT{}, err
	}
	return t, nil
}

// SetupHash returns the sh value for a 4-character setup ID: the base64 of
// the first four bytes of SHA-512(setupID || deviceID).
func SetupHash(setupID, deviceID string) string {
	sum := sha512.Sum512([]byte(setupID + deviceID))
	return base64.StdEncoding.EncodeToString(sum[:4])
}

// NextConfigNumber increments a config number, wrapping from 65535 to 1.
func NextConfigNumber(n uint32) uint32 {
	if n >= 65535 {
		return 1
	}
	return n + 1
}
