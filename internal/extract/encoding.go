package extract

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"trip_planner/internal/domain"
)

// PayloadEncoding is one of the shapes a tool output can take in a trace.
type PayloadEncoding int

const (
	// EncodingTextEnvelope is an object with a single text field holding a
	// JSON string, e.g. {"text": "{\"success\":true,...}"}.
	EncodingTextEnvelope PayloadEncoding = iota
	// EncodingObject is an already decoded value.
	EncodingObject
	// EncodingJSONString is the raw JSON text.
	EncodingJSONString
)

// encodings is the fixed detection order. The envelope must be tried
// before the plain object, which it would otherwise also match.
var encodings = []PayloadEncoding{EncodingTextEnvelope, EncodingObject, EncodingJSONString}

var envelopeFields = []string{"text", "content"}

func (e PayloadEncoding) String() string {
	switch e {
	case EncodingTextEnvelope:
		return "text_envelope"
	case EncodingObject:
		return "object"
	case EncodingJSONString:
		return "json_string"
	}
	return "unknown"
}

func (e PayloadEncoding) matches(raw any) bool {
	switch e {
	case EncodingTextEnvelope:
		m, ok := raw.(map[string]any)
		if !ok || len(m) != 1 {
			return false
		}
		for _, f := range envelopeFields {
			if _, ok := m[f].(string); ok {
				return true
			}
		}
		return false
	case EncodingObject:
		switch raw.(type) {
		case domain.SearchResponse, *domain.SearchResponse, map[string]any, []any, []map[string]any:
			return true
		}
		return false
	case EncodingJSONString:
		switch v := raw.(type) {
		case string:
			return gjson.Valid(strings.TrimSpace(v))
		case []byte:
			return gjson.ValidBytes(v)
		}
		return false
	}
	return false
}

func (e PayloadEncoding) decode(raw any) (domain.SearchResponse, error) {
	switch e {
	case EncodingTextEnvelope:
		m := raw.(map[string]any)
		for _, f := range envelopeFields {
			if s, ok := m[f].(string); ok {
				if !EncodingJSONString.matches(s) {
					return domain.SearchResponse{}, fmt.Errorf("%w: envelope %q is not JSON", domain.ErrMalformedPayload, f)
				}
				return EncodingJSONString.decode(s)
			}
		}
	case EncodingObject:
		return decodeObject(raw)
	case EncodingJSONString:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		}
		return decodeJSON(gjson.Parse(strings.TrimSpace(s)))
	}
	return domain.SearchResponse{}, fmt.Errorf("%w: unsupported encoding", domain.ErrMalformedPayload)
}

// DecodePayload tries each encoding in order and decodes with the first
// that matches.
func DecodePayload(raw any) (domain.SearchResponse, PayloadEncoding, error) {
	for _, e := range encodings {
		if e.matches(raw) {
			resp, err := e.decode(raw)
			return resp, e, err
		}
	}
	return domain.SearchResponse{}, -1, fmt.Errorf("%w: unrecognized output of type %T", domain.ErrMalformedPayload, raw)
}

func decodeObject(raw any) (domain.SearchResponse, error) {
	switch v := raw.(type) {
	case domain.SearchResponse:
		return v, nil
	case *domain.SearchResponse:
		if v == nil {
			return domain.SearchResponse{}, fmt.Errorf("%w: nil response", domain.ErrMalformedPayload)
		}
		return *v, nil
	case []map[string]any:
		return domain.SearchResponse{Success: true, Data: v}, nil
	case []any:
		return domain.SearchResponse{Success: true, Data: itemsOf(v)}, nil
	case map[string]any:
		resp := domain.SearchResponse{
			Message: lookupStr(v, "message"),
			Error:   lookupStr(v, "error"),
		}
		data, hasData := firstPresent(v, "data", "records", "results")
		switch d := data.(type) {
		case []any:
			resp.Data = itemsOf(d)
		case []map[string]any:
			resp.Data = d
		case nil:
		default:
			return domain.SearchResponse{}, fmt.Errorf("%w: data of type %T", domain.ErrMalformedPayload, data)
		}
		if ok, present := v["success"].(bool); present {
			resp.Success = ok
		} else {
			resp.Success = hasData && resp.Error == ""
		}
		return resp, nil
	}
	return domain.SearchResponse{}, fmt.Errorf("%w: object of type %T", domain.ErrMalformedPayload, raw)
}

func decodeJSON(res gjson.Result) (domain.SearchResponse, error) {
	if res.IsArray() {
		return decodeObject(res.Value())
	}
	if !res.IsObject() {
		return domain.SearchResponse{}, fmt.Errorf("%w: JSON %s is not an object", domain.ErrMalformedPayload, res.Type)
	}
	obj, _ := res.Value().(map[string]any)
	if EncodingTextEnvelope.matches(obj) {
		return EncodingTextEnvelope.decode(obj)
	}
	return decodeObject(obj)
}

func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// itemsOf keeps object items; stray scalars are dropped.
func itemsOf(in []any) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, it := range in {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
