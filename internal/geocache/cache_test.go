package geocache

import "testing"

func TestParseCacheType(t *testing.T) {
	tests := []struct {
		input string
		want  CacheType
	}{
		{"Geocache|Traditional Cache", TypeTraditional},
		{"Multi-cache", TypeMulti},
		{"Geocache|Unknown Cache", TypeMystery},
		{"Earthcache", TypeEarth},
		{"Geocache|Wherigo Cache", TypeWherigo},
		{"Geocache", TypeUnknown},
		{"", TypeUnknown},
	}

	for _, tt := range tests {
		if got := ParseCacheType(tt.input); got != tt.want {
			t.Errorf("ParseCacheType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseCacheSize(t *testing.T) {
	tests := []struct {
		input string
		want  CacheSize
	}{
		{"Micro", SizeMicro},
		{" small ", SizeSmall},
		{"Regular", SizeRegular},
		{"Large", SizeLarge},
		{"Not chosen", SizeNotChosen},
		{"", SizeNotChosen},
	}

	for _, tt := range tests {
		if got := ParseCacheSize(tt.input); got != tt.want {
			t.Errorf("ParseCacheSize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsGeocode(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"GC1A2B3", true},
		{"gc12345", true},
		{" GCXYZ ", true},
		{"GC", false},
		{"OC1234", false},
		{"GC12-34", false},
	}

	for _, tt := range tests {
		if got := IsGeocode(tt.input); got != tt.want {
			t.Errorf("IsGeocode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
