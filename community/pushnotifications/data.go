// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// CoerceData converts arbitrary caller data into the string map FCM requires.
//
// Strings are kept as they are, nil becomes an empty string, numbers and
// booleans use their canonical text form and everything else is JSON encoded.
func CoerceData(extra map[string]interface{}) (map[string]string, error) {
	data := make(map[string]string, len(extra))
	for key, value := range extra {
		text, err := coerceValue(value)
		if err != nil {
			return nil, ErrDispatch.New("extraData %q: %v", key, err)
		}
		data[key] = text
	}
	return data, nil
}

func coerceValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case json.Number:
		return v.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// mergeData builds the data map of a role dispatch. Reserved keys are placed
// first; extra keys that collide with them are dropped.
func mergeData(log *zap.Logger, reserved map[string]string, extra map[string]interface{}) (map[string]string, error) {
	coerced, err := CoerceData(extra)
	if err != nil {
		return nil, err
	}

	data := make(map[string]string, len(reserved)+len(coerced))
	for key, value := range reserved {
		data[key] = value
	}

	var dropped []string
	for key, value := range coerced {
		if _, ok := reserved[key]; ok {
			dropped = append(dropped, key)
			continue
		}
		data[key] = value
	}

	if len(dropped) > 0 {
		sort.Strings(dropped)
		log.Warn("dropping extraData keys that collide with reserved keys", zap.Strings("keys", dropped))
	}
	return data, nil
}
