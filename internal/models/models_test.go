package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSessionJSONOmitsCredential(t *testing.T) {
	s := Session{ID: "s1", Credential: "AIza-user-key", History: []ChatMessage{}}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "AIza-user-key") || strings.Contains(string(raw), "credential") {
		t.Errorf("credential leaked into JSON: %s", raw)
	}

	var back Session
	if err := json.Unmarshal([]byte(`{"id":"s1","credential":"old-key","history":[]}`), &back); err != nil {
		t.Fatal(err)
	}
	if back.Credential != "" {
		t.Errorf("credential read back from JSON: %q", back.Credential)
	}
}

func TestCloneKeepsCredential(t *testing.T) {
	s := Session{ID: "s1", Credential: "k", Pages: []string{"p"}}
	c := s.Clone()
	c.Pages[0] = "changed"
	if c.Credential != "k" || s.Pages[0] != "p" {
		t.Errorf("clone = %+v, original = %+v", c, s)
	}
}
