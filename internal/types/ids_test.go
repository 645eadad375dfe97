package types

import (
	"testing"
	"time"
)

func TestNewLineItemID(t *testing.T) {
	a := NewLineItemID()
	b := NewLineItemID()
	if a == b {
		t.Error("consecutive ids must differ")
	}
	if _, err := ParseLineItemID(string(a)); err != nil {
		t.Errorf("generated id failed to parse: %v", err)
	}
}

func TestParseLineItemID_Invalid(t *testing.T) {
	if _, err := ParseLineItemID("not-a-uuid"); err == nil {
		t.Error("malformed uuid accepted")
	}
}

func TestImportRunTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewImportRunID()
	after := time.Now().Add(time.Second)

	got := ImportRunTime(id)
	if got.Before(before) || got.After(after) {
		t.Errorf("embedded timestamp %v outside [%v, %v]", got, before, after)
	}

	if !ImportRunTime(ImportRunID("garbage")).IsZero() {
		t.Error("invalid id should yield zero time")
	}
}
