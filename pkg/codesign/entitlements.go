package codesign

import (
	"fmt"
	"sort"

	"howett.net/plist"
)

// ParseEntitlementsXML decodes an entitlements property list. Any of the
// plist encodings is accepted; the top level must be a dictionary.
func ParseEntitlementsXML(data []byte) (map[string]interface{}, error) {
	var entitlements map[string]interface{}
	if _, err := plist.Unmarshal(data, &entitlements); err != nil {
		return nil, fmt.Errorf("failed to parse entitlements: %w", err)
	}
	if entitlements == nil {
		entitlements = map[string]interface{}{}
	}
	return entitlements, nil
}

// EntitlementKeys returns the entitlement names in sorted order.
func EntitlementKeys(entitlements map[string]interface{}) []string {
	keys := make([]string, 0, len(entitlements))
	for k := range entitlements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
