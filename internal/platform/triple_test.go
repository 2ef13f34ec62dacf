package platform

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Triple
		wantErr bool
	}{
		{in: "x86_64-unknown-linux-musl", want: Triple{Arch: "x86_64", Vendor: "unknown", OS: "linux", ABI: "musl"}},
		{in: "aarch64-apple-darwin", want: Triple{Arch: "aarch64", Vendor: "apple", OS: "darwin"}},
		{in: " X86_64-Unknown-Linux-GNU ", want: Triple{Arch: "x86_64", Vendor: "unknown", OS: "linux", ABI: "gnu"}},
		{in: "x86_64", wantErr: true},
		{in: "x86_64--linux-gnu", wantErr: true},
		{in: "a-b-c-d-e", wantErr: true},
		{in: "wasm32-unknown-unknown", want: Triple{Arch: "wasm32", Vendor: "unknown", OS: "unknown"}},
		{in: "not-a-triple", wantErr: true},
		{in: "x86_64-unknown-plan9-gnu", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"x86_64-unknown-linux-musl", "aarch64-apple-darwin"} {
		if got := MustParse(s).String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
	}
}

func TestEnvSuffix(t *testing.T) {
	tr := MustParse("aarch64-unknown-linux-musl")
	if got := tr.EnvSuffix(); got != "AARCH64_UNKNOWN_LINUX_MUSL" {
		t.Fatalf("EnvSuffix = %q", got)
	}
	if got := tr.EnvSuffixLower(); got != "aarch64_unknown_linux_musl" {
		t.Fatalf("EnvSuffixLower = %q", got)
	}
}

func TestStaticAndFamily(t *testing.T) {
	if !MustParse("x86_64-unknown-linux-musl").Static() {
		t.Error("musl triple should be static")
	}
	if MustParse("x86_64-unknown-linux-gnu").Static() {
		t.Error("gnu triple should not be static")
	}
	if got := MustParse("aarch64-apple-darwin").Family(); got != FamilyDarwin {
		t.Errorf("Family = %q, want darwin", got)
	}
	if got := MustParse("aarch64-unknown-linux-musl").Family(); got != "linux" {
		t.Errorf("Family = %q, want linux", got)
	}
}

func TestOCIPlatform(t *testing.T) {
	tests := []struct {
		triple string
		want   string
	}{
		{"x86_64-unknown-linux-musl", "linux/amd64"},
		{"aarch64-unknown-linux-musl", "linux/arm64"},
		{"armv7-unknown-linux-musleabihf", "linux/arm/v7"},
	}
	for _, tt := range tests {
		got, err := MustParse(tt.triple).OCIPlatformString()
		if err != nil {
			t.Fatalf("%s: %v", tt.triple, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.triple, got, tt.want)
		}
	}

	if _, err := MustParse("aarch64-apple-darwin").OCIPlatform(); err == nil {
		t.Fatal("darwin triple should have no image platform")
	}
}

func TestRoles(t *testing.T) {
	native := MustParse("x86_64-unknown-linux-gnu")
	if !NativeRoles(native).IsNative() {
		t.Fatal("native roles reported as cross")
	}

	cross := CrossRoles(native, MustParse("aarch64-unknown-linux-musl"))
	if cross.IsNative() {
		t.Fatal("cross roles reported as native")
	}
	if cross.Host != cross.Target {
		t.Fatalf("host %s != target %s", cross.Host, cross.Target)
	}
}
