package catalog

import "testing"

func TestValidTrigger(t *testing.T) {
	for _, trigger := range AllTriggers() {
		if !ValidTrigger(trigger) {
			t.Errorf("expected %q to be valid", trigger)
		}
	}
	if ValidTrigger("unknown_trigger") {
		t.Error("unknown trigger must be invalid")
	}
	if ValidTrigger("") {
		t.Error("empty trigger must be invalid")
	}
}

func TestValidChannel(t *testing.T) {
	for _, channel := range AllChannels() {
		if !ValidChannel(channel) {
			t.Errorf("expected %q to be valid", channel)
		}
	}
	if ValidChannel("pigeon") {
		t.Error("unknown channel must be invalid")
	}
}

func TestAllTriggers_ReturnsCopy(t *testing.T) {
	first := AllTriggers()
	first[0] = "tampered"
	if AllTriggers()[0] == "tampered" {
		t.Error("AllTriggers must return a defensive copy")
	}
}

func TestAllChannels_ReturnsCopy(t *testing.T) {
	first := AllChannels()
	first[0] = "tampered"
	if AllChannels()[0] == "tampered" {
		t.Error("AllChannels must return a defensive copy")
	}
}
