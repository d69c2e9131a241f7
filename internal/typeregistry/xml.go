package typeregistry

import (
	"encoding/xml"
	"fmt"
)

// xmlExtentType mirrors the XML-shaped extent-type descriptor:
//
//	<ExtentType name="..." namespace="..." version.major="1" version.minor="0">
//	  <field type="int32" name="a" pack_relative="a" />
//	  <field type="variable32" name="b" pack_unique="yes" />
//	</ExtentType>
type xmlExtentType struct {
	XMLName      xml.Name   `xml:"ExtentType"`
	Name         string     `xml:"name,attr"`
	Namespace    string     `xml:"namespace,attr"`
	VersionMajor int        `xml:"version.major,attr"`
	VersionMinor int        `xml:"version.minor,attr"`
	Fields       []xmlField `xml:"field"`
}

type xmlField struct {
	Type         string  `xml:"type,attr"`
	Name         string  `xml:"name,attr"`
	Nullable     bool    `xml:"opt_nullable,attr"`
	PackRelative string  `xml:"pack_relative,attr"`
	PackUnique   string  `xml:"pack_unique,attr"`
	PackScale    float64 `xml:"pack_scale,attr"`
}

// ParseExtentType parses an XML-shaped extent-type descriptor and
// returns the resulting ExtentType with field offsets assigned.
func ParseExtentType(data []byte) (*ExtentType, error) {
	var x xmlExtentType
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("typeregistry: parse descriptor: %w", err)
	}
	if x.Name == "" || x.Namespace == "" {
		return nil, fmt.Errorf("%w: missing name or namespace", ErrMalformedDescriptor)
	}
	if len(x.Fields) == 0 {
		return nil, fmt.Errorf("%w: %s:%s has no fields", ErrMalformedDescriptor, x.Namespace, x.Name)
	}

	fields := make([]Field, len(x.Fields))
	for i, xf := range x.Fields {
		ft, err := parseFieldType(xf.Type)
		if err != nil {
			return nil, fmt.Errorf("typeregistry: field %q: %w", xf.Name, err)
		}
		fields[i] = Field{
			Name:         xf.Name,
			Type:         ft,
			Nullable:     xf.Nullable,
			PackRelative: xf.PackRelative,
			PackUnique:   xf.PackUnique == "yes",
			PackScale:    xf.PackScale,
		}
	}

	return NewExtentType(x.Namespace, x.Name, x.VersionMajor, x.VersionMinor, fields)
}

// MarshalXML renders t back to its XML descriptor form, the inverse of
// ParseExtentType. Used when a library must persist its own types.
func (t *ExtentType) MarshalXML() ([]byte, error) {
	x := xmlExtentType{
		Name:         t.Name,
		Namespace:    t.Namespace,
		VersionMajor: t.VersionMajor,
		VersionMinor: t.VersionMinor,
		Fields:       make([]xmlField, len(t.Fields)),
	}
	for i, f := range t.Fields {
		pu := ""
		if f.PackUnique {
			pu = "yes"
		}
		x.Fields[i] = xmlField{
			Type:         f.Type.String(),
			Name:         f.Name,
			Nullable:     f.Nullable,
			PackRelative: f.PackRelative,
			PackUnique:   pu,
			PackScale:    f.PackScale,
		}
	}
	out, err := xml.MarshalIndent(x, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("typeregistry: marshal descriptor: %w", err)
	}
	return out, nil
}
