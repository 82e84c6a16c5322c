package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/buger/jsonparser"
)

const chartPricePath = "$.chart.result[0].meta.regularMarketPrice"

// numberField reads a numeric field that may be encoded as a JSON number or a
// numeric string. Missing and null fields are no_data, anything else that
// does not parse is a format error.
func numberField(body []byte, keys ...string) (float64, ErrorKind, error) {
	path := strings.Join(keys, ".")

	value, dataType, _, err := jsonparser.Get(body, keys...)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) || dataType == jsonparser.Null {
		return 0, KindNoData, fmt.Errorf("field %q missing", path)
	}
	if err != nil {
		return 0, KindFormat, fmt.Errorf("field %q: %w", path, err)
	}

	var v float64
	switch dataType {
	case jsonparser.Number:
		v, err = jsonparser.ParseFloat(value)
	case jsonparser.String:
		var s string
		if s, err = jsonparser.ParseString(value); err == nil {
			if strings.TrimSpace(s) == "" {
				return 0, KindNoData, fmt.Errorf("field %q empty", path)
			}
			v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		}
	default:
		return 0, KindFormat, fmt.Errorf("field %q has type %s", path, dataType)
	}
	if err != nil {
		return 0, KindFormat, fmt.Errorf("field %q: %w", path, err)
	}
	return v, "", nil
}

// chartPrice extracts the regular market price from a Yahoo chart payload.
func chartPrice(body []byte) (float64, ErrorKind, error) {
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return 0, KindFormat, fmt.Errorf("invalid chart payload: %w", err)
	}

	jval, err := jsonpath.Get(chartPricePath, jobj)
	if err != nil {
		return 0, KindNoData, fmt.Errorf("no price in chart payload: %w", err)
	}
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return 0, KindNoData, errors.New("no price in chart payload")
		}
		jval = jlist[0]
	}

	switch v := jval.(type) {
	case float64:
		return v, "", nil
	case nil:
		return 0, KindNoData, errors.New("null price in chart payload")
	default:
		return 0, KindFormat, fmt.Errorf("price is %T, not a number", jval)
	}
}
