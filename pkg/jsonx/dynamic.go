package jsonx

import "encoding/json"

// ToDynamicJSON converts any value into a map[string]any by round-tripping it
// through JSON. Used to hand schemas to SDKs that want loosely typed maps.
func ToDynamicJSON(val any) (map[string]any, error) {
	result := make(map[string]any)
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}
