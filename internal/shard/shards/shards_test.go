package shards

import "testing"

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "material", false},
		{"material", "material", false},
		{"fnv32", "fnv32", false},
		{"crc", "", true},
	}
	for _, tt := range tests {
		s, err := ByName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if !tt.wantErr && s.Name() != tt.want {
			t.Errorf("ByName(%q).Name() = %q, want %q", tt.name, s.Name(), tt.want)
		}
	}
}
