package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap represents TXT records as key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT builds the TXT records for info.
func EncodeTXT(info *DeviceInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyEndpoint: info.Endpoint,
		TXTKeyVersion:  info.Version,
		TXTKeyBinding:  info.Binding,
		TXTKeyState:    info.State.String(),
	}
	if txt[TXTKeyVersion] == "" {
		txt[TXTKeyVersion] = DefaultVersion
	}
	if txt[TXTKeyBinding] == "" {
		txt[TXTKeyBinding] = BindingUDP
	}
	if info.Security != "" {
		txt[TXTKeySecurity] = info.Security
	}
	if info.Manufacturer != "" {
		txt[TXTKeyManufacturer] = info.Manufacturer
	}
	if info.Model != "" {
		txt[TXTKeyModel] = info.Model
	}
	return txt
}

// DecodeTXT parses TXT records into a DeviceInfo. The port is not part of
// the TXT records and is left zero.
func DecodeTXT(txt TXTRecordMap) (*DeviceInfo, error) {
	for _, key := range []string{TXTKeyEndpoint, TXTKeyVersion, TXTKeyBinding} {
		if txt[key] == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequired, key)
		}
	}
	return &DeviceInfo{
		Endpoint:     txt[TXTKeyEndpoint],
		Version:      txt[TXTKeyVersion],
		Binding:      txt[TXTKeyBinding],
		State:        parseRegistrationState(txt[TXTKeyState]),
		Security:     txt[TXTKeySecurity],
		Manufacturer: txt[TXTKeyManufacturer],
		Model:        txt[TXTKeyModel],
	}, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		if found {
			txt[k] = v
		} else {
			// Key without value (boolean flag)
			txt[k] = ""
		}
	}
	return txt
}

// ValidateTXT checks the encoded size of the records.
func ValidateTXT(txt TXTRecordMap) error {
	size := 0
	for _, s := range TXTRecordsToStrings(txt) {
		size += len(s) + 1
	}
	if size > MaxTXTRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrTXTTooLarge, size)
	}
	return nil
}

// InstanceName derives the DNS-SD instance name from an endpoint name.
// URN prefixes are kept; the name is cut at the DNS label limit.
func InstanceName(endpoint string) string {
	if len(endpoint) > MaxInstanceNameLen {
		return endpoint[:MaxInstanceNameLen]
	}
	return endpoint
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
