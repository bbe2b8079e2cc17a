package snapshot

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/thoreinstein/siteconf/internal/errors"
)

const fieldDomains = "domains"

// Encode serializes s as indented JSON with a trailing newline.
// Byte-level output is stable for equal input because object keys are
// emitted in sorted order, but callers should only rely on semantic equality.
func Encode(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.Mark(errors.New("nil snapshot"), ErrEncode)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "encoding snapshot"), ErrEncode)
	}
	return append(data, '\n'), nil
}

// Decode parses an encoded snapshot.
//
// It fails with ErrDecode for malformed JSON, ErrSchema when the document is
// not an object with a "domains" object, and ErrShape when a recognized
// domain has the wrong shape. Unknown top-level fields are ignored and
// unknown domains are preserved in Domains.Extra.
func Decode(data []byte) (*Snapshot, error) {
	if !json.Valid(data) {
		return nil, errors.Mark(errors.New("input is not valid JSON"), ErrDecode)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil || envelope == nil {
		return nil, errors.Mark(errors.New("snapshot must be a JSON object"), ErrSchema)
	}

	rawDomains, ok := envelope[fieldDomains]
	if !ok {
		return nil, errors.Mark(errors.New(`snapshot has no "domains" field`), ErrSchema)
	}

	var header struct {
		SchemaVersion        string `json:"schemaVersion"`
		CreatedAt            int64  `json:"createdAt"`
		OriginSiteIdentifier string `json:"originSiteIdentifier"`
		Reason               Reason `json:"reason"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding snapshot header"), ErrSchema)
	}

	domains, err := decodeDomains(rawDomains)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		SchemaVersion:        header.SchemaVersion,
		CreatedAt:            header.CreatedAt,
		OriginSiteIdentifier: header.OriginSiteIdentifier,
		Reason:               header.Reason,
		Domains:              domains,
	}, nil
}

// MarshalJSON emits every present domain plus any preserved unknown ones.
func (d Domains) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+4)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.CustomizationValues != nil {
		out[DomainCustomizationValues] = d.CustomizationValues
	}
	if d.WidgetData != nil {
		wd := *d.WidgetData
		if wd.Sidebars == nil {
			wd.Sidebars = map[string][]string{}
		}
		if wd.Instances == nil {
			wd.Instances = map[string]map[string]any{}
		}
		out[DomainWidgetData] = wd
	}
	if d.MenuAssignments != nil {
		out[DomainMenuAssignments] = d.MenuAssignments
	}
	if d.AuxiliaryOptions != nil {
		out[DomainAuxiliaryOptions] = d.AuxiliaryOptions
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler with the same rules as Decode.
func (d *Domains) UnmarshalJSON(data []byte) error {
	decoded, err := decodeDomains(data)
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}

func decodeDomains(raw json.RawMessage) (Domains, error) {
	var d Domains

	fields, ok := asObject(raw)
	if !ok {
		return d, errors.Mark(errors.New(`"domains" must be a JSON object`), ErrSchema)
	}

	for key, value := range fields {
		var err error
		switch key {
		case DomainCustomizationValues:
			d.CustomizationValues, err = decodeAnyMap(key, value)
		case DomainWidgetData:
			d.WidgetData, err = decodeWidgetData(value)
		case DomainMenuAssignments:
			d.MenuAssignments, err = decodeMenuAssignments(value)
		case DomainAuxiliaryOptions:
			d.AuxiliaryOptions, err = decodeAnyMap(key, value)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[key] = append(json.RawMessage(nil), value...)
		}
		if err != nil {
			return Domains{}, err
		}
	}

	return d, nil
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func shapeError(domain, want string) error {
	return errors.Mark(errors.Newf("domain %q must be %s", domain, want), ErrShape)
}

func decodeAnyMap(domain string, raw json.RawMessage) (map[string]any, error) {
	fields, ok := asObject(raw)
	if !ok {
		return nil, shapeError(domain, "an object")
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		value, err := UnmarshalValue(v)
		if err != nil {
			return nil, shapeError(domain, "an object of JSON values")
		}
		out[k] = value
	}
	return out, nil
}

func decodeWidgetData(raw json.RawMessage) (*WidgetData, error) {
	fields, ok := asObject(raw)
	if !ok {
		return nil, shapeError(DomainWidgetData, "an object")
	}

	wd := &WidgetData{
		Sidebars:  map[string][]string{},
		Instances: map[string]map[string]any{},
	}
	if v, ok := fields["sidebars"]; ok {
		sidebars, ok := asObject(v)
		if !ok {
			return nil, shapeError(DomainWidgetData, `an object whose "sidebars" is an object`)
		}
		for id, list := range sidebars {
			var ids []string
			if err := json.Unmarshal(list, &ids); err != nil {
				return nil, shapeError(DomainWidgetData, "sidebars of string lists")
			}
			if ids == nil {
				ids = []string{}
			}
			wd.Sidebars[id] = ids
		}
	}
	if v, ok := fields["instances"]; ok {
		types, ok := asObject(v)
		if !ok {
			return nil, shapeError(DomainWidgetData, `an object whose "instances" is an object`)
		}
		for widgetType, settings := range types {
			m, err := decodeAnyMap(DomainWidgetData, settings)
			if err != nil {
				return nil, shapeError(DomainWidgetData, "instances keyed by widget type")
			}
			wd.Instances[widgetType] = m
		}
	}
	return wd, nil
}

// decodeMenuAssignments accepts string or integral numeric menu IDs and
// normalizes them to decimal strings.
func decodeMenuAssignments(raw json.RawMessage) (map[string]string, error) {
	fields, ok := asObject(raw)
	if !ok {
		return nil, shapeError(DomainMenuAssignments, "an object")
	}
	out := make(map[string]string, len(fields))
	for location, v := range fields {
		value, err := UnmarshalValue(v)
		if err != nil {
			return nil, shapeError(DomainMenuAssignments, "an object of menu IDs")
		}
		id, ok := MenuID(value)
		if !ok {
			return nil, shapeError(DomainMenuAssignments, "an object of string or integer menu IDs")
		}
		out[location] = id
	}
	return out, nil
}

// MenuID normalizes a decoded menu identifier to its string form. Numbers
// must be whole and fit in an int64.
func MenuID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return floatMenuID(id)
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10), true
		}
		f, err := id.Float64()
		if err != nil {
			return "", false
		}
		return floatMenuID(f)
	default:
		return "", false
	}
}

func floatMenuID(f float64) (string, bool) {
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

// UnmarshalValue decodes a single JSON value, keeping numbers as json.Number
// so integers beyond 2^53 survive a round trip.
func UnmarshalValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}
