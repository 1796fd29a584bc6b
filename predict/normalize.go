package predict

import "encoding/json"

var booleanSpellings = map[string]bool{
	"True":  true,
	"true":  true,
	"1":     true,
	"False": false,
	"false": false,
	"0":     false,
}

// NormalizeBoolean maps the accepted spellings of a boolean-like field to a
// bool. Anything else maps to nil, which the model sees as a missing value.
func NormalizeBoolean(value interface{}) interface{} {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		if b, ok := booleanSpellings[v]; ok {
			return b
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			switch f {
			case 1:
				return true
			case 0:
				return false
			}
		}
	case float64:
		switch v {
		case 1:
			return true
		case 0:
			return false
		}
	}
	return nil
}
