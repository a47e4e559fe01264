// SPDX-License-Identifier: MIT
package build

import "testing"

func TestInitializeDefaults(t *testing.T) {
	Initialize()
	got := GetInfo()

	if got.Name == "" {
		t.Error("expected a non-empty name after Initialize")
	}
	if got.Version == "" {
		t.Error("expected a non-empty version after Initialize")
	}
}

func TestInitializeOverrides(t *testing.T) {
	buildName = "custom"
	buildVersion = "1.2.3"
	defer func() {
		buildName = ""
		buildVersion = ""
	}()

	Initialize()
	got := GetInfo()

	if got.Name != "custom" {
		t.Errorf("name = %q, want %q", got.Name, "custom")
	}
	if got.Version != "1.2.3" {
		t.Errorf("version = %q, want %q", got.Version, "1.2.3")
	}
}
