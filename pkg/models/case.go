package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredCase is the durable, per-case record keyed by Code
type StructuredCase struct {
	Code         string            `json:"code"`
	SourceID     string            `json:"odyssey id"`
	CaptureDate  CaptureDate       `json:"date"`
	Name         string            `json:"name"`
	Fields       map[string]string `json:"-"`
	RelatedCases []string          `json:"related cases,omitempty"`
	Party        PartyInformation  `json:"party information"`
	Charges      []Charge          `json:"charge information"`
}

// PartyInformation holds the decoded party table
type PartyInformation struct {
	Defendant                  string `json:"defendant"`
	Sex                        string `json:"sex"`
	Race                       string `json:"race"`
	DateOfBirth                string `json:"date of birth"`
	Height                     string `json:"height"`
	Weight                     string `json:"weight"`
	DefenseAttorney            string `json:"defense attorney"`
	AppointedOrRetained        string `json:"appointed or retained"`
	DefenseAttorneyPhone       string `json:"defense attorney phone number"`
	DefendantAddress           string `json:"defendant address"`
	SID                        string `json:"SID"`
	ProsecutingAttorney        string `json:"prosecuting attorney"`
	ProsecutingAttorneyPhone   string `json:"prosecuting attorney phone number"`
	ProsecutingAttorneyAddress string `json:"prosecuting attorney address"`
	Bondsman                   string `json:"bondsman"`
	BondsmanAddress            string `json:"bondsman address"`
}

// Charge is one entry of the charge table
type Charge struct {
	Charges string `json:"Charges"`
	Statute string `json:"Statute"`
	Level   string `json:"Level"`
	Date    string `json:"Date"`
}

type caseAlias StructuredCase

var fixedKeys = map[string]bool{
	"code":               true,
	"odyssey id":         true,
	"date":               true,
	"name":               true,
	"related cases":      true,
	"party information":  true,
	"charge information": true,
}

// fieldPrefix namespaces a header field whose key would shadow a fixed key,
// such as a "Date:" label. Keys already carrying the prefix get it too, so
// the mapping stays reversible.
const fieldPrefix = "header "

func fieldJSONKey(k string) string {
	if fixedKeys[k] || strings.HasPrefix(k, fieldPrefix) {
		return fieldPrefix + k
	}
	return k
}

// MarshalJSON flattens the header label fields into the top-level object
func (c StructuredCase) MarshalJSON() ([]byte, error) {
	fixed, err := json.Marshal(caseAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Fields) == 0 {
		return fixed, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(fixed, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		merged[fieldJSONKey(k)] = raw
	}
	return json.Marshal(merged)
}

// UnmarshalJSON collects unknown top-level string keys into Fields
func (c *StructuredCase) UnmarshalJSON(data []byte) error {
	var alias caseAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, raw := range all {
		if fixedKeys[k] {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if alias.Fields == nil {
			alias.Fields = make(map[string]string)
		}
		alias.Fields[strings.TrimPrefix(k, fieldPrefix)] = v
	}

	*c = StructuredCase(alias)
	return nil
}
