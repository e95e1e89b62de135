package protocol

import (
	"encoding/json"
	"strings"
)

// Dictionary is the data dictionary the firmware serves through
// identify. Command and response keys are "name arg=%fmt ..." strings
// mapped to their message IDs.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]any            `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ParseDictionary decodes dictionary JSON.
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, err
	}
	return d, nil
}

// MessageFormat is one parsed dictionary entry.
type MessageFormat struct {
	ID     uint16
	Name   string
	Params []Param
}

// Param is one "name=%fmt" argument of a message.
type Param struct {
	Name   string
	Format string // c, hu, u, i, *s
}

// ParseFormat splits a dictionary key into its name and parameters.
func ParseFormat(key string, id int) MessageFormat {
	fields := strings.Fields(key)
	mf := MessageFormat{ID: uint16(id)}
	if len(fields) == 0 {
		return mf
	}
	mf.Name = fields[0]
	for _, f := range fields[1:] {
		name, format, ok := strings.Cut(f, "=%")
		if !ok {
			continue
		}
		mf.Params = append(mf.Params, Param{Name: name, Format: format})
	}
	return mf
}

// IsBytes reports whether the parameter is a length-prefixed buffer.
func (p Param) IsBytes() bool { return p.Format == "*s" }

// Formats indexes entries of one dictionary section by message name.
func Formats(section map[string]int) map[string]MessageFormat {
	out := make(map[string]MessageFormat, len(section))
	for key, id := range section {
		mf := ParseFormat(key, id)
		out[mf.Name] = mf
	}
	return out
}
