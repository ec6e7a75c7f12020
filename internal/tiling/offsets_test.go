package tiling

import (
	"encoding/json"
	"image"
	"path/filepath"
	"testing"
)

func TestOffsetMap_JSONOrder(t *testing.T) {
	m := NewOffsetMap()
	m.Set("b_50_0.png", image.Pt(50, 0))
	m.Set("a_0_0.png", image.Pt(0, 0))
	m.Set("b_50_0.png", image.Pt(50, 0))

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"b_50_0.png":[50,0],"a_0_0.png":[0,0]}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	back := NewOffsetMap()
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if names := back.Names(); len(names) != 2 || names[0] != "b_50_0.png" {
		t.Errorf("order not preserved: %v", names)
	}
	if off, ok := back.Get("b_50_0.png"); !ok || off != image.Pt(50, 0) {
		t.Errorf("offset = %v, %v", off, ok)
	}
}

func TestOffsetMap_UnmarshalErrors(t *testing.T) {
	for _, in := range []string{`[1,2]`, `{"a":[1]}`, `{"a":"x"}`, `{"a":[1,2]`} {
		if err := json.Unmarshal([]byte(in), NewOffsetMap()); err == nil {
			t.Errorf("Unmarshal(%s) should fail", in)
		}
	}
}

func TestOffsetMap_Nil(t *testing.T) {
	var m *OffsetMap
	if _, ok := m.Get("x"); ok {
		t.Error("nil map should have no entries")
	}
	if m.Len() != 0 || m.Names() != nil {
		t.Error("nil map should be empty")
	}
}

func TestDictionary_SaveLoad(t *testing.T) {
	first := NewOffsetMap()
	first.Set("first_0_0.png", image.Pt(0, 0))
	first.Set("first_0_50.png", image.Pt(0, 50))
	second := NewOffsetMap()
	second.Set("second_0_0.png", image.Pt(0, 0))

	d := NewDictionary()
	d.Add("first", first)
	d.Add("second", second)

	path := filepath.Join(t.TempDir(), "2024-05-01.json")
	if err := d.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadDictionary(path)
	if err != nil {
		t.Fatalf("LoadDictionary failed: %v", err)
	}
	if s := loaded.Sources(); len(s) != 2 || s[0] != "first" || s[1] != "second" {
		t.Errorf("sources = %v", s)
	}
	if loaded.TileCount() != 3 {
		t.Errorf("TileCount = %d, want 3", loaded.TileCount())
	}
	m, ok := loaded.Get("first")
	if !ok {
		t.Fatal("missing source first")
	}
	if off, _ := m.Get("first_0_50.png"); off != image.Pt(0, 50) {
		t.Errorf("offset = %v", off)
	}
}

func TestLoadDictionary_Errors(t *testing.T) {
	if _, err := LoadDictionary(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
