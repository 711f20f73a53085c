package models

import (
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestTeaDraft_MergeFillsRecognizedFields(t *testing.T) {
	var d TeaDraft
	price := 28.0
	report := d.Merge(ParsedTeaInfo{
		Brand: strPtr("喜茶"),
		Name:  strPtr("多肉葡萄"),
		Price: &price,
	}, false)

	if d.Brand != "喜茶" || d.Name != "多肉葡萄" || d.Price != 28 {
		t.Errorf("draft = %+v", d)
	}
	if want := []string{FieldBrand, FieldName, FieldPrice}; !reflect.DeepEqual(report.Filled, want) {
		t.Errorf("Filled = %v, want %v", report.Filled, want)
	}
	if want := []string{FieldSugar, FieldIce}; !reflect.DeepEqual(report.Missing, want) {
		t.Errorf("Missing = %v, want %v", report.Missing, want)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("Skipped = %v", report.Skipped)
	}
}

func TestTeaDraft_MergeKeepsEditedFields(t *testing.T) {
	var d TeaDraft
	d.SetSugar("无糖")

	report := d.Merge(ParsedTeaInfo{Sugar: strPtr("全糖"), Ice: strPtr("去冰")}, false)

	if d.Sugar != "无糖" {
		t.Errorf("Sugar = %q, edited value overwritten", d.Sugar)
	}
	if d.Ice != "去冰" {
		t.Errorf("Ice = %q", d.Ice)
	}
	if !reflect.DeepEqual(report.Skipped, []string{FieldSugar}) {
		t.Errorf("Skipped = %v", report.Skipped)
	}
	if !d.Edited(FieldSugar) {
		t.Error("edited flag lost")
	}
}

func TestTeaDraft_ForcedMergeOverwrites(t *testing.T) {
	var d TeaDraft
	d.SetSugar("无糖")

	report := d.Merge(ParsedTeaInfo{Sugar: strPtr("全糖")}, true)

	if d.Sugar != "全糖" {
		t.Errorf("Sugar = %q, want 全糖", d.Sugar)
	}
	if d.Edited(FieldSugar) {
		t.Error("edited flag kept after forced overwrite")
	}
	if !reflect.DeepEqual(report.Filled, []string{FieldSugar}) {
		t.Errorf("Filled = %v", report.Filled)
	}
}

func TestTeaDraft_EmptyResultChangesNothing(t *testing.T) {
	d := TeaDraft{Brand: "古茗"}
	report := d.Merge(ParsedTeaInfo{}, false)

	if d.Brand != "古茗" {
		t.Errorf("Brand = %q", d.Brand)
	}
	if len(report.Filled) != 0 || len(report.Missing) != len(AllFields) {
		t.Errorf("report = %+v", report)
	}
}
