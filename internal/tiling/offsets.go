package tiling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"os"
)

// OffsetMap maps tile names to their top-left offset in the source image.
// Iteration and JSON encoding follow insertion order.
//
// The JSON form is an object of two-element arrays:
//
//	{"scene_0_0.png": [0, 0], "scene_0_1600.png": [0, 1600]}
type OffsetMap struct {
	names   []string
	offsets map[string]image.Point
}

// NewOffsetMap returns an empty map.
func NewOffsetMap() *OffsetMap {
	return &OffsetMap{offsets: make(map[string]image.Point)}
}

// Set records the offset of a tile. Setting an existing name updates its
// offset and keeps its position.
func (m *OffsetMap) Set(name string, offset image.Point) {
	if _, ok := m.offsets[name]; !ok {
		m.names = append(m.names, name)
	}
	m.offsets[name] = offset
}

// Get returns the offset of a tile.
func (m *OffsetMap) Get(name string) (image.Point, bool) {
	if m == nil {
		return image.Point{}, false
	}
	p, ok := m.offsets[name]
	return p, ok
}

// Names returns tile names in insertion order.
func (m *OffsetMap) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.names...)
}

// Len returns the number of tiles.
func (m *OffsetMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// MarshalJSON encodes the map in insertion order.
func (m *OffsetMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		p := m.offsets[name]
		buf.Write(key)
		fmt.Fprintf(&buf, ":[%d,%d]", p.X, p.Y)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (m *OffsetMap) UnmarshalJSON(data []byte) error {
	fresh := NewOffsetMap()
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var xy []int
		if err := json.Unmarshal(raw, &xy); err != nil {
			return fmt.Errorf("offset of %s: %w", key, err)
		}
		if len(xy) != 2 {
			return fmt.Errorf("offset of %s has %d values, want 2", key, len(xy))
		}
		fresh.Set(key, image.Pt(xy[0], xy[1]))
		return nil
	})
	if err != nil {
		return err
	}
	*m = *fresh
	return nil
}

// Dictionary groups the offset maps of a batch by source image.
//
//	{"scene": {"scene_0_0.png": [0, 0], ...}, "other": {...}}
type Dictionary struct {
	sources []string
	maps    map[string]*OffsetMap
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{maps: make(map[string]*OffsetMap)}
}

// Add stores the offset map of a source, replacing any previous one.
func (d *Dictionary) Add(source string, m *OffsetMap) {
	if _, ok := d.maps[source]; !ok {
		d.sources = append(d.sources, source)
	}
	d.maps[source] = m
}

// Get returns the offset map of a source.
func (d *Dictionary) Get(source string) (*OffsetMap, bool) {
	m, ok := d.maps[source]
	return m, ok
}

// Sources returns source names in insertion order.
func (d *Dictionary) Sources() []string {
	return append([]string(nil), d.sources...)
}

// Len returns the number of sources.
func (d *Dictionary) Len() int {
	return len(d.sources)
}

// TileCount returns the total number of tiles across all sources.
func (d *Dictionary) TileCount() int {
	n := 0
	for _, m := range d.maps {
		n += m.Len()
	}
	return n
}

// MarshalJSON encodes sources in insertion order.
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, source := range d.sources {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(source)
		if err != nil {
			return nil, err
		}
		val, err := d.maps[source].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of offset maps, keeping key order.
func (d *Dictionary) UnmarshalJSON(data []byte) error {
	fresh := NewDictionary()
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		m := NewOffsetMap()
		if err := m.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("source %s: %w", key, err)
		}
		fresh.Add(key, m)
		return nil
	})
	if err != nil {
		return err
	}
	*d = *fresh
	return nil
}

// LoadDictionary reads a dictionary from a JSON file.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read offsets file: %w", err)
	}
	d := NewDictionary()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse offsets file: %w", err)
	}
	return d, nil
}

// Save writes the dictionary to path as indented JSON.
func (d *Dictionary) Save(path string) error {
	raw, err := d.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to encode offsets: %w", err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write offsets file: %w", err)
	}
	return nil
}

// decodeOrderedObject calls fn for each member of a JSON object in the
// order the members appear.
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}
